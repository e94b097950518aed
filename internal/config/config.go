package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/specialistvlad/manetbench/internal/engine"
	"github.com/specialistvlad/manetbench/internal/params"
	"github.com/zclconf/go-cty/cty"
)

// Modes accepted by the experiment block and the -mode flag.
const (
	ModeSingle   = "single"
	ModeCompare  = "compare"
	ModeNetworks = "networks"
)

// ValidMode reports whether m is one of the known modes.
func ValidMode(m string) bool {
	switch m {
	case ModeSingle, ModeCompare, ModeNetworks:
		return true
	}
	return false
}

// Experiment is the decoded experiment file with defaults applied.
type Experiment struct {
	// Path of the file it was loaded from, empty for Default().
	Path            string
	StrictProtocols bool
	Engine          Engine
	Mode            string
	Protocol        string
	StartSeed       int
	Runs            int
	// Parameters are the raw values of the parameters block. They are
	// validated by BaseParameters, not by the loader.
	Parameters map[string]cty.Value
}

// Engine holds the engine block. WorkingDir is absolute after loading.
type Engine struct {
	Executable  string
	WorkingDir  string
	Library     string
	NEDPath     string
	ConfigFile  string
	Section     string
	ResultsDir  string
	Timeout     time.Duration
	OmnetppRoot string
	SearchPaths []string
}

// Default returns the experiment used when a file leaves everything out.
func Default() *Experiment {
	return &Experiment{
		Engine: Engine{
			Executable: "opp_run",
			WorkingDir: ".",
			Library:    "src/INET",
			NEDPath:    "src;examples",
			ConfigFile: "omnetpp.ini",
			Section:    "General",
			ResultsDir: "results",
			Timeout:    engine.DefaultTimeout,
		},
		Mode:       ModeSingle,
		Protocol:   "AODV",
		StartSeed:  0,
		Runs:       10,
		Parameters: map[string]cty.Value{},
	}
}

// BaseParameters overlays the parameters block onto params.Defaults.
func (x *Experiment) BaseParameters() (params.Parameters, error) {
	return params.Apply(params.Defaults(), x.Parameters)
}

// ConfigPath is where the synthesized configuration is written.
func (e Engine) ConfigPath() string {
	return e.resolve(e.ConfigFile)
}

// ResultsPath is the directory the engine writes scalar files into.
func (e Engine) ResultsPath() string {
	return e.resolve(e.ResultsDir)
}

// RunnerConfig translates the block into the engine invocation settings.
func (e Engine) RunnerConfig() engine.Config {
	return engine.Config{
		Executable:  e.Executable,
		WorkingDir:  e.WorkingDir,
		Library:     e.Library,
		NEDPath:     e.NEDPath,
		ConfigFile:  e.ConfigPath(),
		Section:     e.Section,
		Timeout:     e.Timeout,
		SearchPaths: e.SearchPaths,
		OmnetppRoot: e.OmnetppRoot,
	}
}

func (e Engine) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.WorkingDir, p)
}

func (x *Experiment) validate() error {
	if !ValidMode(x.Mode) {
		return fmt.Errorf("experiment mode %q: must be %q, %q or %q", x.Mode, ModeSingle, ModeCompare, ModeNetworks)
	}
	if x.Engine.Timeout <= 0 {
		return fmt.Errorf("engine timeout must be positive, got %s", x.Engine.Timeout)
	}
	if x.Engine.Executable == "" {
		return errors.New("engine executable must not be empty")
	}
	return nil
}
