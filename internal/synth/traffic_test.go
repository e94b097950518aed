package synth

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestEffectivePairs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		nodes, requested, want int
	}{
		{nodes: 10, requested: 3, want: 3},
		{nodes: 3, requested: 5, want: 1},
		{nodes: 2, requested: 1, want: 1},
		{nodes: 4, requested: 5, want: 2},
		{nodes: 9, requested: 10, want: 4},
		{nodes: 20, requested: 1, want: 1},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, EffectivePairs(tc.nodes, tc.requested), "nodes=%d requested=%d", tc.nodes, tc.requested)
	}
}

func TestPlanTraffic_TenNodesThreePairs(t *testing.T) {
	want := []Pair{
		{Index: 0, Source: 0, Destination: 1, Port: 5000, StartTime: 2},
		{Index: 1, Source: 2, Destination: 3, Port: 5001, StartTime: 2.1},
		{Index: 2, Source: 4, Destination: 5, Port: 5002, StartTime: 2.2},
	}
	if diff := cmp.Diff(want, PlanTraffic(10, 3)); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanTraffic_SmallNetworkGetsOnePair(t *testing.T) {
	want := []Pair{{Index: 0, Source: 0, Destination: 1, Port: 5000, StartTime: 2}}
	if diff := cmp.Diff(want, PlanTraffic(3, 5)); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanTraffic_NoHostIsBothSourceAndDestination(t *testing.T) {
	seen := map[int]string{}
	for _, p := range PlanTraffic(50, 40) {
		_, dupSrc := seen[p.Source]
		_, dupDst := seen[p.Destination]
		assert.False(t, dupSrc || dupDst, "host reused in pair %d", p.Index)
		seen[p.Source] = "src"
		seen[p.Destination] = "dst"
	}
	assert.Len(t, seen, 50)
}
