// Package cli turns command-line arguments into an app.Config. It validates
// flag values, resolves the experiment file path and reports usage problems
// as ExitError values carrying the process exit code.
package cli
