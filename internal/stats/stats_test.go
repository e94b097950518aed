package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/manetbench/internal/protocol"
)

func TestSummarize_IgnoresFailedTrials(t *testing.T) {
	s := Summarize(protocol.AODV, []float64{80, 0, 90})

	require.True(t, s.HasValid())
	assert.Equal(t, 85.0, s.Mean)
	assert.InDelta(t, 7.07, s.StdDev, 0.01)
	assert.Equal(t, 80.0, s.Min)
	assert.Equal(t, 90.0, s.Max)
	assert.Equal(t, 2, s.Valid)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, []float64{80, 0, 90}, s.Samples)
}

func TestSummarize_AllZeroHasNoValidResults(t *testing.T) {
	s := Summarize(protocol.DSR, []float64{0, 0, 0})

	assert.False(t, s.HasValid())
	assert.Zero(t, s.Mean)
	assert.Equal(t, 3, s.Total)
}

func TestSummarize_SingleSampleHasZeroStdDev(t *testing.T) {
	s := Summarize(protocol.AODV, []float64{42.5})

	assert.Equal(t, 42.5, s.Mean)
	assert.Zero(t, s.StdDev)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(protocol.AODV, nil)

	assert.False(t, s.HasValid())
	assert.Zero(t, s.Total)
}

func TestRank_StableOnTies(t *testing.T) {
	c := Rank([]Summary{
		Summarize(protocol.AODV, []float64{85}),
		Summarize(protocol.OLSR, []float64{85}),
		Summarize(protocol.DSR, []float64{90}),
	})

	require.Len(t, c.Ranked, 3)
	got := []protocol.Protocol{c.Ranked[0].Protocol, c.Ranked[1].Protocol, c.Ranked[2].Protocol}
	assert.Equal(t, []protocol.Protocol{protocol.DSR, protocol.AODV, protocol.OLSR}, got)

	best, ok := c.Best()
	require.True(t, ok)
	assert.Equal(t, protocol.DSR, best.Protocol)
}

func TestRank_NoValidResultsRankLast(t *testing.T) {
	c := Rank([]Summary{
		Summarize(protocol.AODV, []float64{0}),
		Summarize(protocol.DSR, []float64{12}),
	})

	assert.Equal(t, protocol.DSR, c.Ranked[0].Protocol)
	assert.Equal(t, protocol.AODV, c.Ranked[1].Protocol)
}

func TestRank_DoesNotReorderInput(t *testing.T) {
	in := []Summary{Summarize(protocol.AODV, []float64{1}), Summarize(protocol.DSR, []float64{2})}

	Rank(in)

	assert.Equal(t, protocol.AODV, in[0].Protocol)
}

func TestComparison_BestEmpty(t *testing.T) {
	_, ok := Comparison{}.Best()
	assert.False(t, ok)
}
