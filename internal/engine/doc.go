// Package engine runs the external simulation engine once per trial and
// classifies how the run ended. It never interprets the engine's results;
// that is the job of the results package.
package engine
