// Package trial runs the synthesize, execute and extract sequence for one
// seed at a time and collects the outcome of every trial in a batch.
package trial

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/specialistvlad/manetbench/internal/ctxlog"
	"github.com/specialistvlad/manetbench/internal/engine"
	"github.com/specialistvlad/manetbench/internal/params"
	"github.com/specialistvlad/manetbench/internal/protocol"
	"github.com/specialistvlad/manetbench/internal/results"
)

// Stage names the step of a trial that failed.
type Stage string

const (
	StageNone    Stage = ""
	StageExecute Stage = "execute"
	StageExtract Stage = "extract"
)

// Record is the immutable outcome of one trial. A failed trial carries zero
// metrics and the stage that failed.
type Record struct {
	Protocol protocol.Protocol
	Seed     int
	Result   engine.Result
	Metrics  results.Metrics
	Stage    Stage
	Err      error
}

// Failed reports whether any stage of the trial failed.
func (r Record) Failed() bool { return r.Stage != StageNone }

// Batch is a run of consecutive seeds for one protocol.
type Batch struct {
	Protocol  string
	Params    params.Parameters
	StartSeed int
	Runs      int
}

// Seeds lists StartSeed .. StartSeed+Runs-1.
func (b Batch) Seeds() []int {
	seeds := make([]int, 0, max(b.Runs, 0))
	for i := 0; i < b.Runs; i++ {
		seeds = append(seeds, b.StartSeed+i)
	}
	return seeds
}

// Validate checks the batch shape and its parameters.
func (b Batch) Validate() error {
	var errs []error
	if b.Runs < 1 {
		errs = append(errs, &params.ValidationError{Field: "runs", Value: fmt.Sprint(b.Runs), Reason: "at least one run is required"})
	}
	if b.StartSeed < 0 {
		errs = append(errs, &params.ValidationError{Field: "start_seed", Value: fmt.Sprint(b.StartSeed), Reason: "must not be negative"})
	}
	if err := b.Params.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Synthesizer writes the configuration artifact for one trial.
type Synthesizer interface {
	Write(ctx context.Context, name string, p params.Parameters, scalarFile string) (protocol.Profile, error)
}

// Executor runs the engine once.
type Executor interface {
	Run(ctx context.Context) engine.Result
}

// Extractor reads the metrics a trial produced.
type Extractor interface {
	Extract(ctx context.Context, path string, since time.Time) (results.Metrics, error)
}

// Sink receives every record as soon as it is produced.
type Sink interface {
	Append(Record)
}

// Orchestrator serializes trials. The artifact and the result file are
// shared single-slot resources, so one trial owns them from synthesis until
// its metrics are extracted.
type Orchestrator struct {
	mu sync.Mutex

	synth      Synthesizer
	exec       Executor
	extract    Extractor
	sink       Sink
	resultsDir string
}

// New creates an Orchestrator. sink may be nil.
func New(s Synthesizer, e Executor, x Extractor, sink Sink, resultsDir string) *Orchestrator {
	if abs, err := filepath.Abs(resultsDir); err == nil {
		resultsDir = abs
	}
	return &Orchestrator{synth: s, exec: e, extract: x, sink: sink, resultsDir: resultsDir}
}

// ScalarPath is the explicit result file of the trial for p and seed.
func (o *Orchestrator) ScalarPath(p protocol.Protocol, seed int) string {
	return filepath.Join(o.resultsDir, fmt.Sprintf("%s-seed%d.sca", p, seed))
}

// RunTrial runs one full trial. Only a configuration write failure is
// returned as an error; every other failure is folded into the Record.
func (o *Orchestrator) RunTrial(ctx context.Context, name string, p params.Parameters) (Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	profile, _ := protocol.Resolve(name)
	ctx, logger := ctxlog.With(ctx, "protocol", profile.Protocol, "seed", p.Seed)
	rec := Record{Protocol: profile.Protocol, Seed: p.Seed}

	scalar := o.ScalarPath(profile.Protocol, p.Seed)
	if err := os.Remove(scalar); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Could not remove stale result file.", "path", scalar, "error", err)
	}

	start := time.Now()
	if _, err := o.synth.Write(ctx, name, p, scalar); err != nil {
		return rec, err
	}

	rec.Result = o.exec.Run(ctx)
	if !rec.Result.OK() {
		rec.Stage = StageExecute
		rec.Err = rec.Result.Err
		logger.Error("Trial failed.", "stage", rec.Stage, "outcome", rec.Result.Outcome, "error", rec.Err)
		o.emit(rec)
		return rec, nil
	}

	m, err := o.extract.Extract(ctx, scalar, start)
	if err != nil {
		rec.Stage = StageExtract
		rec.Err = err
		logger.Error("Trial failed.", "stage", rec.Stage, "error", err)
		o.emit(rec)
		return rec, nil
	}
	rec.Metrics = m

	logger.Info("Trial finished.", "pdr", m.DeliveryRatio, "sent", m.Sent, "received", m.Received, "duration", rec.Result.Duration)
	o.emit(rec)
	return rec, nil
}

// RunBatch runs every seed of b in order. observe, if set, sees each record
// as soon as it is produced. A configuration write failure or a cancelled
// context stops the batch; the records collected so far are returned.
func (o *Orchestrator) RunBatch(ctx context.Context, b Batch, observe func(Record)) ([]Record, error) {
	logger := ctxlog.FromContext(ctx)
	if err := b.Validate(); err != nil {
		return nil, err
	}

	seeds := b.Seeds()
	logger.Info("Starting batch.", "protocol", b.Protocol, "start_seed", b.StartSeed, "runs", b.Runs)

	records := make([]Record, 0, len(seeds))
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		rec, err := o.RunTrial(ctx, b.Protocol, b.Params.WithSeed(seed))
		if err != nil {
			logger.Error("Batch aborted.", "seed", seed, "error", err)
			return records, err
		}
		records = append(records, rec)
		if observe != nil {
			observe(rec)
		}
	}
	return records, nil
}

func (o *Orchestrator) emit(rec Record) {
	if o.sink != nil {
		o.sink.Append(rec)
	}
}
