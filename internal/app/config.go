package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/manetbench/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
// Zero values leave the experiment file in charge; pointer fields are set
// only when the operator overrode them.
type Config struct {
	ExperimentPath string // hcl file

	Mode      string
	Protocol  string
	StartSeed *int
	Runs      *int
	Strict    bool
	Timeout   time.Duration
	// Set holds -set key=value parameter overrides, applied after the
	// parameters block.
	Set map[string]string
	// Network, in networks mode, asks for one qualified name instead of
	// the full listing.
	Network string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	EventsURL       string
	ReportOut       string
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ExperimentPath == "" {
		return nil, errors.New("ExperimentPath is a required configuration field and cannot be empty")
	}
	if cfg.Mode != "" && !config.ValidMode(cfg.Mode) {
		return nil, fmt.Errorf("invalid mode %q: must be %q, %q or %q", cfg.Mode, config.ModeSingle, config.ModeCompare, config.ModeNetworks)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("invalid timeout %s: must not be negative", cfg.Timeout)
	}
	if cfg.HealthcheckPort < 0 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	if cfg.Set == nil {
		cfg.Set = map[string]string{}
	}
	return &cfg, nil
}

// apply overlays the operator overrides onto x.
func (c *Config) apply(x *config.Experiment) {
	if c.Mode != "" {
		x.Mode = c.Mode
	}
	if c.Protocol != "" {
		x.Protocol = c.Protocol
	}
	if c.StartSeed != nil {
		x.StartSeed = *c.StartSeed
	}
	if c.Runs != nil {
		x.Runs = *c.Runs
	}
	if c.Strict {
		x.StrictProtocols = true
	}
	if c.Timeout > 0 {
		x.Engine.Timeout = c.Timeout
	}
}
