// Package config loads the experiment file: an HCL document describing how
// to invoke the engine, which batch to run and the base trial parameters.
//
// Expressions are evaluated against a context exposing the process
// environment as `env`, overlaid on values from an optional .env file next
// to the experiment file.
package config
