// Package controller implements the two operator actions: a Monte Carlo run
// of one protocol and a ranked comparison across the protocol roster.
package controller

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/exp/slices"

	"github.com/specialistvlad/manetbench/internal/ctxlog"
	"github.com/specialistvlad/manetbench/internal/events"
	"github.com/specialistvlad/manetbench/internal/params"
	"github.com/specialistvlad/manetbench/internal/protocol"
	"github.com/specialistvlad/manetbench/internal/report"
	"github.com/specialistvlad/manetbench/internal/session"
	"github.com/specialistvlad/manetbench/internal/stats"
	"github.com/specialistvlad/manetbench/internal/trial"
)

// Roster is the fixed order of protocols in comparison mode. OLSR is left
// out: its topology crashes the engine too often to rank fairly.
var Roster = []protocol.Protocol{protocol.AODV, protocol.DSR}

// Request describes one action.
type Request struct {
	Protocol  string
	Params    params.Parameters
	StartSeed int
	Runs      int
	// Strict turns an unknown protocol name into a validation error instead
	// of a logged fallback.
	Strict bool
}

// Runner is the subset of trial.Orchestrator the controller needs.
type Runner interface {
	RunBatch(ctx context.Context, b trial.Batch, observe func(trial.Record)) ([]trial.Record, error)
}

// Outcome is what an action produced, for export.
type Outcome struct {
	Records    []trial.Record
	Summaries  []stats.Summary
	Comparison *stats.Comparison
}

// Controller runs actions against a session store and reports to out.
type Controller struct {
	runner    Runner
	store     *session.Store
	out       io.Writer
	publisher events.Publisher
}

// New creates a Controller. publisher may be nil.
func New(runner Runner, store *session.Store, out io.Writer, publisher events.Publisher) *Controller {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Controller{runner: runner, store: store, out: out, publisher: publisher}
}

// Store returns the session store.
func (c *Controller) Store() *session.Store { return c.store }

// RunSingle runs one batch and prints every trial and the full summary of
// that batch. Records from earlier actions stay in the session store but do
// not enter the summary.
func (c *Controller) RunSingle(ctx context.Context, req Request) (stats.Summary, Outcome, error) {
	ctx, logger := ctxlog.With(ctx, "action", "single")
	p, err := c.resolve(ctx, req.Protocol, req.Strict)
	if err != nil {
		return stats.Summary{}, Outcome{}, err
	}

	fmt.Fprintf(c.out, "Running %d trials of %s (seeds %d..%d)\n", req.Runs, p, req.StartSeed, req.StartSeed+req.Runs-1)
	recs, err := c.runner.RunBatch(ctx, c.batch(req, string(p)), func(rec trial.Record) {
		fmt.Fprintln(c.out, report.TrialLine(rec))
		c.publisher.Publish(ctx, events.Trial(rec))
	})
	out := Outcome{Records: recs}
	if err != nil {
		logger.Error("Action aborted.", "error", err)
		return stats.Summary{}, out, err
	}

	summary := stats.Summarize(p, samples(recs))
	report.WriteSummary(c.out, summary)
	for _, w := range report.Warnings(recs) {
		fmt.Fprintln(c.out, w)
	}
	c.publisher.Publish(ctx, events.Summary(summary))

	out.Summaries = []stats.Summary{summary}
	return summary, out, nil
}

// RunComparison runs one batch per roster protocol, in order, and ranks the
// batches it just ran. Req.Protocol is ignored.
func (c *Controller) RunComparison(ctx context.Context, req Request) (stats.Comparison, Outcome, error) {
	ctx, logger := ctxlog.With(ctx, "action", "compare")
	var out Outcome

	for _, p := range Roster {
		fmt.Fprintf(c.out, "--- %s ---\n", p)
		recs, err := c.runner.RunBatch(ctx, c.batch(req, string(p)), func(rec trial.Record) {
			fmt.Fprintln(c.out, report.TrialLine(rec))
			c.publisher.Publish(ctx, events.Trial(rec))
		})
		out.Records = append(out.Records, recs...)
		if err != nil {
			logger.Error("Action aborted.", "protocol", p, "error", err)
			return stats.Comparison{}, out, err
		}

		summary := stats.Summarize(p, samples(recs))
		fmt.Fprintln(c.out, report.CompactLine(summary))
		c.publisher.Publish(ctx, events.Summary(summary))
		out.Summaries = append(out.Summaries, summary)
	}

	comparison := stats.Rank(out.Summaries)
	report.WriteRanking(c.out, comparison)
	for _, w := range report.Warnings(out.Records) {
		fmt.Fprintln(c.out, w)
	}
	c.publisher.Publish(ctx, events.Comparison(comparison))
	out.Comparison = &comparison
	return comparison, out, nil
}

// Reset clears the session store.
func (c *Controller) Reset(ctx context.Context) {
	ctxlog.FromContext(ctx).Info("Session results cleared.", "records", c.store.Len())
	c.store.Reset()
}

// samples returns the delivery ratios of recs in seed order. Failed trials
// contribute 0.
func samples(recs []trial.Record) []float64 {
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = r.Metrics.DeliveryRatio
	}
	return out
}

func (c *Controller) batch(req Request, p string) trial.Batch {
	return trial.Batch{Protocol: p, Params: req.Params, StartSeed: req.StartSeed, Runs: req.Runs}
}

func (c *Controller) resolve(ctx context.Context, name string, strict bool) (protocol.Protocol, error) {
	p, err := protocol.Parse(name)
	if err == nil {
		return p, nil
	}
	if strict {
		return "", &params.ValidationError{Field: "protocol", Value: name, Reason: fmt.Sprintf("must be one of %v", protocol.Known())}
	}
	ctxlog.FromContext(ctx).Warn("Unrecognized protocol, using default profile.", "requested", name, "profile", protocol.Default)
	return protocol.Default, nil
}

// InRoster reports whether p takes part in comparisons.
func InRoster(p protocol.Protocol) bool {
	return slices.Contains(Roster, p)
}
