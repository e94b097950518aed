package synth

// BasePort is the UDP port of the first traffic pair; pair i uses BasePort+i.
const BasePort = 5000

// Pair is one independent source/destination flow.
type Pair struct {
	Index       int
	Source      int
	Destination int
	Port        int
	// StartTime is the source application's start, in simulated seconds.
	StartTime float64
}

// EffectivePairs caps the requested pair count so that every pair gets two
// distinct hosts. Networks with fewer than four nodes always get one pair.
func EffectivePairs(nodes, requested int) int {
	if nodes < 4 {
		return 1
	}
	return min(requested, nodes/2)
}

// PlanTraffic lays out the pairs as (0,1), (2,3), ... so that no host is
// both a source and a destination and hosts past the last pair stay idle.
// Sources start staggered by 100ms to avoid a synchronized burst.
func PlanTraffic(nodes, requested int) []Pair {
	n := EffectivePairs(nodes, requested)
	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, Pair{
			Index:       i,
			Source:      2 * i,
			Destination: 2*i + 1,
			Port:        BasePort + i,
			StartTime:   float64(20+i) / 10,
		})
	}
	return pairs
}
