package stats

import "github.com/danmuck/rpcscope/internal/message"

// PingStats summarizes ping liveness over a log.
type PingStats struct {
	TotalPings int `json:"totalPings"`
	Matched    int `json:"matched"`
	Missing    int `json:"missing"`
}

// ComputePingStats counts distinct sent ping correlation ids and how many of
// them have a received entry with the same correlation id anywhere in the log.
// Error responses count as answers.
func ComputePingStats(entries []message.Entry) PingStats {
	pings := make(map[int64]struct{})
	for _, e := range entries {
		if e.Kind == message.KindSent && e.Method == message.MethodPing && e.CorrelationID != nil {
			pings[*e.CorrelationID] = struct{}{}
		}
	}
	answered := make(map[int64]struct{})
	for _, e := range entries {
		if e.Kind != message.KindReceived || e.CorrelationID == nil {
			continue
		}
		if _, ok := pings[*e.CorrelationID]; ok {
			answered[*e.CorrelationID] = struct{}{}
		}
	}
	return PingStats{
		TotalPings: len(pings),
		Matched:    len(answered),
		Missing:    len(pings) - len(answered),
	}
}
