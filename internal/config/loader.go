package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/specialistvlad/manetbench/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot is the top level of an experiment file.
type fileRoot struct {
	StrictProtocols bool             `hcl:"strict_protocols,optional"`
	Engine          *engineBlock     `hcl:"engine,block"`
	Experiment      *experimentBlock `hcl:"experiment,block"`
	Parameters      *parametersBlock `hcl:"parameters,block"`
}

type engineBlock struct {
	Executable  string   `hcl:"executable,optional"`
	WorkingDir  string   `hcl:"working_dir,optional"`
	Library     string   `hcl:"library,optional"`
	NEDPath     string   `hcl:"ned_path,optional"`
	ConfigFile  string   `hcl:"config_file,optional"`
	Section     string   `hcl:"section,optional"`
	ResultsDir  string   `hcl:"results_dir,optional"`
	Timeout     string   `hcl:"timeout,optional"`
	OmnetppRoot string   `hcl:"omnetpp_root,optional"`
	SearchPaths []string `hcl:"search_paths,optional"`
}

type experimentBlock struct {
	Mode      string `hcl:"mode,optional"`
	Protocol  string `hcl:"protocol,optional"`
	StartSeed *int   `hcl:"start_seed,optional"`
	Runs      *int   `hcl:"runs,optional"`
}

type parametersBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Load parses the experiment file at path. A .env file in the same
// directory, when present, supplies env values the process does not set.
func Load(ctx context.Context, path string) (*Experiment, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Experiment loader started.", "path", path)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}

	env, err := Environment(filepath.Join(filepath.Dir(abs), ".env"))
	if err != nil {
		return nil, err
	}
	evalCtx := NewEvalContext(env)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(abs)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse experiment file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode experiment file %s: %w", path, diags)
	}

	x := Default()
	x.Path = abs
	x.StrictProtocols = root.StrictProtocols
	if err := applyEngine(&x.Engine, root.Engine); err != nil {
		return nil, fmt.Errorf("experiment file %s: %w", path, err)
	}
	if !filepath.IsAbs(x.Engine.WorkingDir) {
		x.Engine.WorkingDir = filepath.Join(filepath.Dir(abs), x.Engine.WorkingDir)
	}
	applyExperiment(x, root.Experiment)

	if root.Parameters != nil {
		values, diags := evalAttributes(root.Parameters.Body, evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate parameters in %s: %w", path, diags)
		}
		x.Parameters = values
	}

	if err := x.validate(); err != nil {
		return nil, fmt.Errorf("experiment file %s: %w", path, err)
	}

	logger.Debug("Experiment loaded.",
		"mode", x.Mode,
		"protocol", x.Protocol,
		"runs", x.Runs,
		"working_dir", x.Engine.WorkingDir,
		"parameters", len(x.Parameters),
	)
	return x, nil
}

func applyEngine(dst *Engine, b *engineBlock) error {
	if b == nil {
		return nil
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&dst.Executable, b.Executable)
	set(&dst.WorkingDir, b.WorkingDir)
	set(&dst.Library, b.Library)
	set(&dst.NEDPath, b.NEDPath)
	set(&dst.ConfigFile, b.ConfigFile)
	set(&dst.Section, b.Section)
	set(&dst.ResultsDir, b.ResultsDir)
	set(&dst.OmnetppRoot, b.OmnetppRoot)
	if len(b.SearchPaths) > 0 {
		dst.SearchPaths = b.SearchPaths
	}
	if b.Timeout != "" {
		d, err := time.ParseDuration(b.Timeout)
		if err != nil {
			return fmt.Errorf("invalid engine timeout %q: %w", b.Timeout, err)
		}
		dst.Timeout = d
	}
	return nil
}

func applyExperiment(x *Experiment, b *experimentBlock) {
	if b == nil {
		return
	}
	if b.Mode != "" {
		x.Mode = strings.ToLower(b.Mode)
	}
	if b.Protocol != "" {
		x.Protocol = b.Protocol
	}
	if b.StartSeed != nil {
		x.StartSeed = *b.StartSeed
	}
	if b.Runs != nil {
		x.Runs = *b.Runs
	}
}

func evalAttributes(body hcl.Body, evalCtx *hcl.EvalContext) (map[string]cty.Value, hcl.Diagnostics) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	out := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, d := attr.Expr.Value(evalCtx)
		diags = append(diags, d...)
		out[name] = v
	}
	return out, diags
}

// Environment returns the process environment overlaid on the values of
// the dotenv file at path. A missing file is not an error.
func Environment(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		env = map[string]string{}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			env[k] = v
		}
	}
	return env, nil
}

// NewEvalContext exposes env to expressions as the object `env`.
func NewEvalContext(env map[string]string) *hcl.EvalContext {
	vals := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vals[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vals),
		},
	}
}
