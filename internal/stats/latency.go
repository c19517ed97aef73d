package stats

import (
	"math"
	"sort"

	"github.com/danmuck/rpcscope/internal/message"
)

// Latency describes the round trips recorded on received entries, in
// milliseconds.
type Latency struct {
	Count int     `json:"count"`
	Min   int64   `json:"minMs"`
	Max   int64   `json:"maxMs"`
	Mean  float64 `json:"meanMs"`
	P50   int64   `json:"p50Ms"`
	P95   int64   `json:"p95Ms"`
}

// ComputeLatency aggregates roundTripMs over received entries. An empty log
// yields the zero value.
func ComputeLatency(entries []message.Entry) Latency {
	samples := make([]int64, 0, len(entries))
	for _, e := range entries {
		if e.Kind == message.KindReceived && e.RoundTripMs != nil {
			samples = append(samples, *e.RoundTripMs)
		}
	}
	return summarize(samples)
}

func summarize(samples []int64) Latency {
	if len(samples) == 0 {
		return Latency{}
	}
	sorted := append([]int64(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var sum int64
	for _, v := range sorted {
		sum += v
	}
	return Latency{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  float64(sum) / float64(len(sorted)),
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
	}
}

// percentile uses the nearest-rank method over an ascending slice.
func percentile(sorted []int64, q float64) int64 {
	rank := int(math.Ceil(q * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
