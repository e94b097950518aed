package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/manetbench/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// setFlag collects repeated -set key=value pairs.
type setFlag map[string]string

func (s setFlag) String() string {
	pairs := make([]string, 0, len(s))
	for k, v := range s {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (s setFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	s[key] = strings.TrimSpace(value)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("manetbench", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
manetbench - Monte Carlo benchmarking of MANET routing protocols on an
external network simulator.

Usage:
  manetbench [options] [EXPERIMENT_FILE]

Arguments:
  EXPERIMENT_FILE
    Path to the .hcl experiment file.

Options:
`)
		flagSet.PrintDefaults()
	}

	set := setFlag{}
	experimentFlag := flagSet.String("experiment", "", "Path to the experiment file.")
	eFlag := flagSet.String("e", "", "Path to the experiment file (shorthand).")
	modeFlag := flagSet.String("mode", "", "Action to run: 'single', 'compare' or 'networks'. Overrides the experiment file.")
	protocolFlag := flagSet.String("protocol", "", "Protocol for single mode. Overrides the experiment file.")
	seedFlag := flagSet.Int("seed", 0, "First seed of the batch. Overrides the experiment file.")
	runsFlag := flagSet.Int("runs", 0, "Number of Monte Carlo runs. Overrides the experiment file.")
	strictFlag := flagSet.Bool("strict", false, "Reject unknown protocol names instead of falling back to the default.")
	timeoutFlag := flagSet.Duration("timeout", 0, "Wall-clock limit per engine run, e.g. 600s. Overrides the experiment file.")
	flagSet.Var(set, "set", "Parameter override as key=value. May be repeated.")
	networkFlag := flagSet.String("network", "", "In networks mode, print the qualified name of this network only.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	eventsURLFlag := flagSet.String("events-url", "", "socket.io server to publish progress events to.")
	reportOutFlag := flagSet.String("report-out", "", "Write a YAML report of the action to this file.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *experimentFlag != "" {
		path = *experimentFlag
	} else if *eFlag != "" {
		path = *eFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Experiment path determined.", "path", path)

	if path == "" {
		slog.Debug("No experiment path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg := app.Config{
		ExperimentPath:  path,
		Mode:            strings.ToLower(*modeFlag),
		Protocol:        *protocolFlag,
		Strict:          *strictFlag,
		Timeout:         *timeoutFlag,
		Set:             set,
		Network:         *networkFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		EventsURL:       *eventsURLFlag,
		ReportOut:       *reportOutFlag,
	}
	// Only flags given on the command line override the experiment file.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.StartSeed = seedFlag
		case "runs":
			cfg.Runs = runsFlag
		}
	})
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
