package results

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/manetbench/internal/ctxlog"
	"github.com/specialistvlad/manetbench/internal/testutil"
)

func parseString(t *testing.T, lines ...string) Metrics {
	t.Helper()
	m, err := Parse(strings.NewReader(testutil.ScalarFile(lines...)))
	require.NoError(t, err)
	return m
}

func TestParse_DeliveryRatio(t *testing.T) {
	m := parseString(t,
		testutil.ScalarLine("Net.host[0].udpApp[0]", "sentPk:count", 100),
		testutil.ScalarLine("Net.host[1].udpApp[0]", "rcvdPk:count", 80),
	)

	assert.Equal(t, int64(100), m.Sent)
	assert.Equal(t, int64(80), m.Received)
	assert.Equal(t, 80.00, m.DeliveryRatio)
}

func TestParse_NothingSentIsZero(t *testing.T) {
	m := parseString(t, testutil.ScalarLine("Net.host[1].udpApp[0]", "rcvdPk:count", 5))

	assert.Equal(t, 0.0, m.DeliveryRatio)
}

func TestParse_ExcludesControlPlane(t *testing.T) {
	m := parseString(t,
		testutil.ScalarLine("Net.host[0].udpApp[0]", "sentPk:count", 40),
		testutil.ScalarLine("Net.host[1].udpApp[0]", "rcvdPk:count", 30),
		testutil.ScalarLine("Net.host[0].aodv", "sentPk:count", 900),
		testutil.ScalarLine("Net.host[1].wlan[0].mac", "rcvdPk:count", 1200),
	)

	want := Metrics{Sent: 40, Received: 30, DeliveryRatio: 75}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_HopCountFromNetworkLayer(t *testing.T) {
	m := parseString(t,
		testutil.ScalarLine("Net.host[0].udpApp[0]", "sentPk:count", 10),
		testutil.ScalarLine("Net.host[1].udpApp[0]", "rcvdPk:count", 8),
		testutil.ScalarLine("Net.host[0].networkLayer.ip", "hopCount:mean", 0),
		testutil.ScalarLine("Net.host[1].networkLayer.ip", "hopCount:mean", 3),
		testutil.ScalarLine("Net.host[2].networkLayer.ip", "numHops:mean", 5),
	)

	assert.Equal(t, 80.0, m.DeliveryRatio)
	assert.Equal(t, 3.0, m.HopCount)
}

func TestParse_SumsEveryPair(t *testing.T) {
	m := parseString(t,
		testutil.ScalarLine("Net.host[0].udpApp[0]", "sentPk:count", 50),
		testutil.ScalarLine("Net.host[2].udpApp[0]", "packetSent:count", 50),
		testutil.ScalarLine("Net.host[1].udpApp[0]", "rcvdPk:count", 45),
		testutil.ScalarLine("Net.host[3].udpApp[0]", "packetReceived:count", 40),
	)

	assert.Equal(t, int64(100), m.Sent)
	assert.Equal(t, int64(85), m.Received)
	assert.Equal(t, 85.0, m.DeliveryRatio)
}

func TestParse_FirstNonzeroDelayAndHopsWin(t *testing.T) {
	m := parseString(t,
		testutil.ScalarLine("Net.host[1].udpApp[0]", "endToEndDelay:mean", 0),
		testutil.ScalarLine("Net.host[3].udpApp[0]", "endToEndDelay:mean", 0.01234),
		testutil.ScalarLine("Net.host[5].udpApp[0]", "endToEndDelay:mean", 0.5),
		testutil.ScalarLine("Net.host[1].udpApp[0]", "hopCount:mean", 2.456),
		testutil.ScalarLine("Net.host[3].udpApp[0]", "numHops:mean", 7),
	)

	assert.Equal(t, 12.34, m.DelayMs)
	assert.Equal(t, 2.46, m.HopCount)
}

func TestParse_QuotedNamesAndMalformedValues(t *testing.T) {
	m := parseString(t,
		`scalar "Net.host[0].udpApp[0]" "sentPk:count" 10`,
		`scalar Net.host[1].udpApp[0] rcvdPk:count not-a-number`,
		`scalar Net.host[1].udpApp[0] rcvdPk:count 9`,
		`statistic Net.host[1].udpApp[0] rcvdPk:count 1000`,
		`scalar truncated`,
	)

	assert.Equal(t, int64(10), m.Sent)
	assert.Equal(t, int64(9), m.Received)
	assert.Equal(t, 90.0, m.DeliveryRatio)
}

func TestParse_RatioAboveHundredIsKept(t *testing.T) {
	m := parseString(t,
		testutil.ScalarLine("Net.host[0].udpApp[0]", "sentPk:count", 10),
		testutil.ScalarLine("Net.host[1].udpApp[0]", "rcvdPk:count", 12),
	)

	assert.Equal(t, 120.0, m.DeliveryRatio)
	assert.True(t, m.Anomalous())
}

func TestLatest_IgnoresFilesFromBeforeTheTrial(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.sca")
	fresh := filepath.Join(dir, "fresh.sca")
	require.NoError(t, os.WriteFile(old, nil, 0o644))
	require.NoError(t, os.WriteFile(fresh, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh.vec"), nil, 0o644))

	trialStart := time.Now()
	require.NoError(t, os.Chtimes(old, trialStart.Add(-time.Hour), trialStart.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(fresh, trialStart.Add(time.Second), trialStart.Add(time.Second)))

	got, err := Latest(dir, trialStart)
	require.NoError(t, err)
	assert.Equal(t, fresh, got)

	got, err = Latest(dir, trialStart.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLatest_MissingDirectory(t *testing.T) {
	got, err := Latest(filepath.Join(t.TempDir(), "nope"), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtract_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AODV-3.sca")
	require.NoError(t, os.WriteFile(path, []byte(testutil.ScalarFile(
		testutil.ScalarLine("Net.host[0].udpApp[0]", "sentPk:count", 20),
		testutil.ScalarLine("Net.host[1].udpApp[0]", "rcvdPk:count", 19),
	)), 0o644))

	m, err := NewExtractor(dir).Extract(context.Background(), path, time.Now().Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 95.0, m.DeliveryRatio)
	assert.Equal(t, path, m.Artifact)
}

func TestExtract_FallsBackToNewestFile(t *testing.T) {
	dir := t.TempDir()
	start := time.Now().Add(-time.Minute)
	fallback := filepath.Join(dir, "General-0.sca")
	require.NoError(t, os.WriteFile(fallback, []byte(testutil.ScalarFile(
		testutil.ScalarLine("Net.host[0].udpApp[0]", "sentPk:count", 4),
		testutil.ScalarLine("Net.host[1].udpApp[0]", "rcvdPk:count", 1),
	)), 0o644))

	m, err := NewExtractor(dir).Extract(context.Background(), filepath.Join(dir, "missing.sca"), start)

	require.NoError(t, err)
	assert.Equal(t, 25.0, m.DeliveryRatio)
	assert.Equal(t, fallback, m.Artifact)
}

func TestExtract_NoFileYieldsZeroMetrics(t *testing.T) {
	m, err := NewExtractor(t.TempDir()).Extract(context.Background(), "", time.Now())

	require.NoError(t, err)
	assert.Equal(t, Metrics{}, m)
}

func TestExtract_UnreadableFileIsParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.sca")
	line := "scalar Net.host[0].udpApp[0] sentPk:count " + strings.Repeat("9", 2*1024*1024)
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	_, err := NewExtractor(dir).Extract(context.Background(), path, time.Now())

	var pErr *ParseError
	require.True(t, errors.As(err, &pErr), "expected ParseError, got %v", err)
	assert.Equal(t, path, pErr.Path)
}

func TestExtract_LogsAnomalousRatio(t *testing.T) {
	logs := &testutil.SafeBuffer{}
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(logs, nil)))
	dir := t.TempDir()
	path := filepath.Join(dir, "t.sca")
	require.NoError(t, os.WriteFile(path, []byte(testutil.ScalarFile(
		testutil.ScalarLine("Net.host[0].udpApp[0]", "sentPk:count", 10),
		testutil.ScalarLine("Net.host[1].udpApp[0]", "rcvdPk:count", 11),
	)), 0o644))

	m, err := NewExtractor(dir).Extract(ctx, path, time.Now())

	require.NoError(t, err)
	assert.Equal(t, 110.0, m.DeliveryRatio)
	assert.Contains(t, logs.String(), "exceeds 100%")
}
