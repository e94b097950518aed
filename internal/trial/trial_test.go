package trial

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/manetbench/internal/engine"
	"github.com/specialistvlad/manetbench/internal/params"
	"github.com/specialistvlad/manetbench/internal/protocol"
	"github.com/specialistvlad/manetbench/internal/results"
	"github.com/specialistvlad/manetbench/internal/synth"
	"github.com/specialistvlad/manetbench/internal/testutil"
)

type fakeSynth struct {
	calls []int
	err   error
}

func (f *fakeSynth) Write(_ context.Context, name string, p params.Parameters, _ string) (protocol.Profile, error) {
	f.calls = append(f.calls, p.Seed)
	prof, _ := protocol.Resolve(name)
	return prof, f.err
}

type fakeExec struct {
	results []engine.Result
	n       int
}

func (f *fakeExec) Run(context.Context) engine.Result {
	res := f.results[f.n%len(f.results)]
	f.n++
	return res
}

type fakeExtract struct {
	metrics []results.Metrics
	err     error
	n       int
}

func (f *fakeExtract) Extract(context.Context, string, time.Time) (results.Metrics, error) {
	if f.err != nil {
		return results.Metrics{}, f.err
	}
	m := f.metrics[f.n%len(f.metrics)]
	f.n++
	return m, nil
}

type recorder struct {
	mu   sync.Mutex
	recs []Record
}

func (r *recorder) Append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

func batch(runs int) Batch {
	return Batch{Protocol: "AODV", Params: params.Defaults(), StartSeed: 5, Runs: runs}
}

func TestBatch_Seeds(t *testing.T) {
	assert.Equal(t, []int{5, 6}, batch(2).Seeds())
	assert.Empty(t, batch(0).Seeds())
}

func TestRunBatch_TimeoutRecordedAsZeroAndBatchContinues(t *testing.T) {
	exec := &fakeExec{results: []engine.Result{
		{Outcome: engine.Timeout, Err: context.DeadlineExceeded},
		{Outcome: engine.Success},
	}}
	extract := &fakeExtract{metrics: []results.Metrics{{Sent: 10, Received: 9, DeliveryRatio: 90}}}
	sink := &recorder{}
	o := New(&fakeSynth{}, exec, extract, sink, t.TempDir())

	var observed []int
	recs, err := o.RunBatch(context.Background(), batch(2), func(r Record) { observed = append(observed, r.Seed) })

	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, StageExecute, recs[0].Stage)
	assert.True(t, recs[0].Failed())
	assert.Equal(t, 0.0, recs[0].Metrics.DeliveryRatio)
	assert.ErrorIs(t, recs[0].Err, context.DeadlineExceeded)
	assert.Equal(t, 90.0, recs[1].Metrics.DeliveryRatio)
	assert.Equal(t, []int{5, 6}, observed)
	assert.Len(t, sink.recs, 2)
}

func TestRunBatch_ExtractFailureYieldsZeroRecord(t *testing.T) {
	parseErr := &results.ParseError{Path: "x.sca", Err: errors.New("boom")}
	o := New(&fakeSynth{}, &fakeExec{results: []engine.Result{{Outcome: engine.Success}}}, &fakeExtract{err: parseErr}, nil, t.TempDir())

	recs, err := o.RunBatch(context.Background(), batch(1), nil)

	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, StageExtract, recs[0].Stage)
	assert.Equal(t, results.Metrics{}, recs[0].Metrics)
	var pErr *results.ParseError
	assert.True(t, errors.As(recs[0].Err, &pErr))
}

func TestRunBatch_WriteFailureAbortsBatch(t *testing.T) {
	s := &fakeSynth{err: &synth.WriteError{Path: "omnetpp.ini", Err: errors.New("read-only")}}
	o := New(s, &fakeExec{results: []engine.Result{{Outcome: engine.Success}}}, &fakeExtract{metrics: []results.Metrics{{}}}, nil, t.TempDir())

	recs, err := o.RunBatch(context.Background(), batch(3), nil)

	var wErr *synth.WriteError
	require.True(t, errors.As(err, &wErr))
	assert.Empty(t, recs)
	assert.Equal(t, []int{5}, s.calls)
}

func TestRunBatch_RejectsInvalidBatch(t *testing.T) {
	b := batch(0)
	b.Params.Nodes = 1
	o := New(&fakeSynth{}, &fakeExec{}, &fakeExtract{}, nil, t.TempDir())

	_, err := o.RunBatch(context.Background(), b, nil)

	var vErr *params.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, err.Error(), "invalid runs")
	assert.Contains(t, err.Error(), "invalid nodes")
}

func TestRunBatch_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeSynth{}
	o := New(s, &fakeExec{results: []engine.Result{{Outcome: engine.Success}}}, &fakeExtract{metrics: []results.Metrics{{}}}, nil, t.TempDir())

	recs, err := o.RunBatch(ctx, batch(2), nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, recs)
	assert.Empty(t, s.calls)
}

func TestRunTrial_UnknownProtocolRecordedUnderDefault(t *testing.T) {
	o := New(&fakeSynth{}, &fakeExec{results: []engine.Result{{Outcome: engine.Success}}}, &fakeExtract{metrics: []results.Metrics{{}}}, nil, t.TempDir())

	rec, err := o.RunTrial(context.Background(), "BATMAN", params.Defaults())

	require.NoError(t, err)
	assert.Equal(t, protocol.Default, rec.Protocol)
}

// TestRunBatch_EndToEnd drives the real synthesizer, runner and extractor
// against a fake engine that copies a fixed result file into place.
func TestRunBatch_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	body := testutil.EngineWritingScalars(testutil.ScalarFile(
		testutil.ScalarLine("Net.host[0].udpApp[0]", "sentPk:count", 100),
		testutil.ScalarLine("Net.host[1].udpApp[0]", "rcvdPk:count", 80),
	))
	runner := engine.New(engine.Config{
		Executable: testutil.FakeEngine(t, dir, body),
		WorkingDir: dir,
		ConfigFile: "omnetpp.ini",
		Timeout:    10 * time.Second,
	})
	resultsDir := filepath.Join(dir, "results")
	sink := &recorder{}
	o := New(synth.New(filepath.Join(dir, "omnetpp.ini"), synth.Options{}), runner, results.NewExtractor(resultsDir), sink, resultsDir)

	recs, err := o.RunBatch(context.Background(), batch(2), nil)

	require.NoError(t, err)
	require.Len(t, recs, 2)
	for i, rec := range recs {
		assert.Equal(t, 5+i, rec.Seed)
		assert.False(t, rec.Failed(), "seed %d: %v", rec.Seed, rec.Err)
		assert.Equal(t, 80.0, rec.Metrics.DeliveryRatio)
		assert.Equal(t, o.ScalarPath(protocol.AODV, rec.Seed), rec.Metrics.Artifact)
	}
	assert.Len(t, sink.recs, 2)
}
