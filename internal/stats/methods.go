package stats

import (
	"sort"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
	"github.com/danmuck/rpcscope/internal/message"
)

// MethodStats is the per-method traffic breakdown.
type MethodStats struct {
	Method   string  `json:"method"`
	Sent     int     `json:"sent"`
	Received int     `json:"received"`
	Errors   int     `json:"errors"`
	MeanMs   float64 `json:"meanMs"`
}

// ComputeMethodStats groups traffic by method. Received responses are
// attributed to the method of the request they answer when the request is
// still in the log; error responses are those carrying an "error" member.
// Rows are ordered by total traffic, then by name.
func ComputeMethodStats(entries []message.Entry) []MethodStats {
	sentMethod := make(map[int64]string)
	for _, e := range entries {
		if e.Kind == message.KindSent && e.CorrelationID != nil {
			sentMethod[*e.CorrelationID] = e.Method
		}
	}

	rows := make(map[string]*MethodStats)
	row := func(method string) *MethodStats {
		r, ok := rows[method]
		if !ok {
			r = &MethodStats{Method: method}
			rows[method] = r
		}
		return r
	}
	rtt := make(map[string][]int64)

	for _, e := range entries {
		switch e.Kind {
		case message.KindSent:
			if e.Method != "" {
				row(e.Method).Sent++
			}
		case message.KindReceived:
			method := e.Method
			if e.CorrelationID != nil {
				if m, ok := sentMethod[*e.CorrelationID]; ok {
					method = m
				}
			}
			if method == "" {
				continue
			}
			r := row(method)
			r.Received++
			if jsonrpc.HasField(e.Payload, "error") {
				r.Errors++
			}
			if e.RoundTripMs != nil {
				rtt[method] = append(rtt[method], *e.RoundTripMs)
			}
		}
	}

	out := make([]MethodStats, 0, len(rows))
	for method, r := range rows {
		if samples := rtt[method]; len(samples) > 0 {
			r.MeanMs = summarize(samples).Mean
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Sent+out[i].Received, out[j].Sent+out[j].Received
		if ti != tj {
			return ti > tj
		}
		return out[i].Method < out[j].Method
	})
	return out
}
