// Package app contains the core application logic. It loads the experiment,
// wires the trial pipeline behind a single background worker and runs the
// selected action, decoupled from any specific entrypoint like a CLI.
package app
