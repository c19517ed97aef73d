package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/rpcscope/internal/message"
	"github.com/danmuck/rpcscope/internal/stats"
	"github.com/fatih/color"
)

var (
	kindColors = map[message.Kind]*color.Color{
		message.KindSent:     color.New(color.FgCyan),
		message.KindReceived: color.New(color.FgGreen),
		message.KindError:    color.New(color.FgRed, color.Bold),
		message.KindSystem:   color.New(color.FgYellow),
	}
	dimColor     = color.New(color.Faint)
	pendingColor = color.New(color.FgHiBlack)
	errColor     = color.New(color.FgRed)
	warnColor    = color.New(color.FgMagenta)
)

// formatEntry renders one log entry as a single line.
func formatEntry(e message.Entry) string {
	var b strings.Builder
	b.WriteString(dimColor.Sprint(e.CreatedAt.Format("15:04:05.000")))
	b.WriteByte(' ')

	kind := fmt.Sprintf("%-8s", e.Kind)
	if c, ok := kindColors[e.Kind]; ok {
		kind = c.Sprint(kind)
	}
	b.WriteString(kind)

	if e.Kind == message.KindSystem || e.Kind == message.KindError {
		b.WriteByte(' ')
		b.WriteString(e.PayloadText())
		return b.String()
	}

	if e.Method != "" {
		b.WriteByte(' ')
		b.WriteString(e.Method)
	}
	if e.CorrelationID != nil {
		fmt.Fprintf(&b, " #%d", *e.CorrelationID)
	}
	if e.IsBatch {
		fmt.Fprintf(&b, " [%d]", e.BatchSize)
	}
	if e.RoundTripMs != nil {
		fmt.Fprintf(&b, " (%dms)", *e.RoundTripMs)
	}
	if e.Pending {
		b.WriteString(pendingColor.Sprint(" pending"))
	}
	b.WriteByte(' ')
	b.WriteString(e.PayloadJSON())
	if len(e.ValidationErrors) > 0 {
		b.WriteString(errColor.Sprintf(" x %s", strings.Join(e.ValidationErrors, "; ")))
	}
	if len(e.ValidationWarnings) > 0 {
		b.WriteString(warnColor.Sprintf(" ! %s", strings.Join(e.ValidationWarnings, "; ")))
	}
	return b.String()
}

func printEntries(w io.Writer, entries []message.Entry) {
	for _, e := range entries {
		fmt.Fprintln(w, formatEntry(e))
	}
}

func printStats(w io.Writer, entries []message.Entry) {
	ping := stats.ComputePingStats(entries)
	lat := stats.ComputeLatency(entries)
	fmt.Fprintf(w, "entries   %d\n", len(entries))
	fmt.Fprintf(w, "pings     total=%d matched=%d missing=%d\n", ping.TotalPings, ping.Matched, ping.Missing)
	if lat.Count > 0 {
		fmt.Fprintf(w, "latency   n=%d min=%dms p50=%dms p95=%dms max=%dms mean=%.1fms\n",
			lat.Count, lat.Min, lat.P50, lat.P95, lat.Max, lat.Mean)
	} else {
		fmt.Fprintln(w, "latency   n=0")
	}
	rows := stats.ComputeMethodStats(entries)
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(w, "%-24s %6s %8s %6s %8s\n", "method", "sent", "received", "errors", "mean")
	for _, r := range rows {
		fmt.Fprintf(w, "%-24s %6d %8d %6d %7.1fms\n", r.Method, r.Sent, r.Received, r.Errors, r.MeanMs)
	}
}
