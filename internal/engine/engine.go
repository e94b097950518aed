package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/exp/slices"

	"github.com/specialistvlad/manetbench/internal/ctxlog"
)

// DefaultTimeout bounds a single engine invocation when Config.Timeout is 0.
const DefaultTimeout = 600 * time.Second

// Outcome classifies how an engine invocation ended.
type Outcome int

const (
	Success Outcome = iota
	Timeout
	NonZeroExit
	LaunchFailure
	// Cancelled means the caller's context ended before the engine did.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case NonZeroExit:
		return "non_zero_exit"
	case LaunchFailure:
		return "launch_failure"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Exit codes that mean the engine or its model library could not be loaded
// rather than that the simulation itself failed.
const (
	codeAccessViolation = 0xC0000005
	codeDLLNotFound     = 0xC0000135
	codeNotFound        = 127
)

// Config describes how to invoke the engine. Paths in SearchPaths, Library
// and NEDPath are interpreted relative to WorkingDir by the engine itself.
type Config struct {
	Executable string
	WorkingDir string
	Library    string
	NEDPath    string
	ConfigFile string
	Section    string
	RunIndex   int
	Timeout    time.Duration
	// SearchPaths are prepended to PATH and the dynamic loader path when
	// they exist. Relative entries are resolved against WorkingDir.
	SearchPaths []string
	// OmnetppRoot is exported as OMNETPP_ROOT when non-empty.
	OmnetppRoot string
	// WaitDelay bounds how long output pipes are drained after the process
	// is killed. Defaults to 5s.
	WaitDelay time.Duration
}

// Result is the classified outcome of one invocation.
type Result struct {
	Outcome  Outcome
	ExitCode int
	// EnvironmentFault is set on NonZeroExit when the exit code points at a
	// missing or broken native dependency.
	EnvironmentFault bool
	Stdout           []byte
	Stderr           []byte
	Duration         time.Duration
	Err              error
}

// OK reports whether the engine exited cleanly.
func (r Result) OK() bool { return r.Outcome == Success }

// Runner invokes the engine with a fixed configuration.
type Runner struct {
	cfg Config
}

// New creates a Runner.
func New(cfg Config) *Runner {
	if cfg.Section == "" {
		cfg.Section = "General"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 5 * time.Second
	}
	return &Runner{cfg: cfg}
}

// Config returns the effective configuration.
func (r *Runner) Config() Config { return r.cfg }

// Args returns the engine argument vector, without the executable.
func (r *Runner) Args() []string {
	return []string{
		"-u", "Cmdenv",
		"-l", r.cfg.Library,
		"-n", r.cfg.NEDPath,
		"-f", r.cfg.ConfigFile,
		"-c", r.cfg.Section,
		"-r", fmt.Sprint(r.cfg.RunIndex),
	}
}

// Environ builds the child environment from base. Only search paths that
// exist are prepended, in the order given.
func (r *Runner) Environ(base []string) []string {
	var dirs []string
	for _, p := range r.cfg.SearchPaths {
		if !filepath.IsAbs(p) && r.cfg.WorkingDir != "" {
			p = filepath.Join(r.cfg.WorkingDir, p)
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			dirs = append(dirs, p)
		}
	}

	env := make([]string, 0, len(base)+3)
	overrides := map[string]string{}
	if len(dirs) > 0 {
		prefix := strings.Join(dirs, string(os.PathListSeparator))
		for _, key := range pathKeys() {
			overrides[key] = prependList(prefix, lookup(base, key))
		}
	}
	if r.cfg.OmnetppRoot != "" {
		overrides["OMNETPP_ROOT"] = r.cfg.OmnetppRoot
	}

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		env = append(env, kv)
	}
	for _, key := range sortedKeys(overrides) {
		env = append(env, key+"="+overrides[key])
	}
	return env
}

// Run executes the engine once. It never returns an error directly: every
// failure is folded into the Result.
func (r *Runner) Run(ctx context.Context) Result {
	logger := ctxlog.FromContext(ctx)

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd := exec.CommandContext(runCtx, r.cfg.Executable, r.Args()...)
	cmd.Dir = r.cfg.WorkingDir
	cmd.Env = r.Environ(os.Environ())
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.WaitDelay = r.cfg.WaitDelay

	logger.Debug("Starting engine.", "executable", r.cfg.Executable, "args", r.Args(), "dir", r.cfg.WorkingDir)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		logger.Error("Engine could not be launched.", "executable", r.cfg.Executable, "error", err)
		return Result{
			Outcome:  LaunchFailure,
			ExitCode: -1,
			Duration: time.Since(start),
			Err:      fmt.Errorf("launch %s: %w", r.cfg.Executable, err),
		}
	}

	waitErr := cmd.Wait()
	res := Result{
		Duration: time.Since(start),
		Stdout:   stdoutBuf.Bytes(),
		Stderr:   stderrBuf.Bytes(),
	}

	switch {
	case waitErr != nil && ctx.Err() != nil:
		res.Outcome = Cancelled
		res.ExitCode = -1
		res.Err = fmt.Errorf("engine run cancelled: %w", ctx.Err())
		logger.Info("Engine run cancelled and was killed.", "error", ctx.Err())
	case waitErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Outcome = Timeout
		res.ExitCode = -1
		res.Err = fmt.Errorf("engine did not finish within %s: %w", r.cfg.Timeout, runCtx.Err())
		logger.Warn("Engine timed out and was killed.", "timeout", r.cfg.Timeout)
	case waitErr == nil:
		res.Outcome = Success
	default:
		res.Outcome = NonZeroExit
		res.ExitCode = exitCodeForError(waitErr)
		res.EnvironmentFault = isEnvironmentFault(waitErr, res.ExitCode)
		res.Err = fmt.Errorf("engine exited with code %d: %w", res.ExitCode, waitErr)
		if res.EnvironmentFault {
			logger.Error("Engine failed to load its native dependencies.", "exit_code", res.ExitCode, "search_paths", r.cfg.SearchPaths)
		} else {
			logger.Warn("Engine exited with a non-zero code.", "exit_code", res.ExitCode)
		}
	}

	if res.Outcome != Success {
		logger.Debug("Engine output.", "stdout", tail(res.Stdout), "stderr", tail(res.Stderr))
	}
	logger.Debug("Engine finished.", "outcome", res.Outcome, "duration", res.Duration)
	return res
}

func exitCodeForError(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return exitCodeFromStatus(status)
		}
		return exitErr.ExitCode()
	}
	return 1
}

func exitCodeFromStatus(status syscall.WaitStatus) int {
	if status.Exited() {
		return status.ExitStatus()
	}
	if status.Signaled() {
		return 128 + int(status.Signal())
	}
	return 1
}

func isEnvironmentFault(err error, code int) bool {
	switch uint32(code) {
	case codeAccessViolation, codeDLLNotFound, codeNotFound:
		return true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return status.Signal() == syscall.SIGSEGV
		}
	}
	return false
}

func pathKeys() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"PATH"}
	case "darwin":
		return []string{"DYLD_LIBRARY_PATH", "PATH"}
	default:
		return []string{"LD_LIBRARY_PATH", "PATH"}
	}
}

func lookup(env []string, key string) string {
	for i := len(env) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(env[i], "="); ok && k == key {
			return v
		}
	}
	return ""
}

func prependList(prefix, existing string) string {
	if existing == "" {
		return prefix
	}
	return prefix + string(os.PathListSeparator) + existing
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func tail(b []byte) string {
	const limit = 2048
	if len(b) > limit {
		b = b[len(b)-limit:]
	}
	return string(b)
}
