package main

import (
	"fmt"

	"github.com/danmuck/rpcscope/internal/message"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	var (
		filter    message.QuickFilter
		where     string
		showStats bool
		tail      int
	)
	cmd := &cobra.Command{
		Use:   "inspect <export.json|->",
		Short: "Filter and summarize an exported message log",
		Long: `Inspect loads a log written by "export" and prints the entries that pass
the quick filter (--method, --id, --text) and the --where expression.

Expressions see: kind, method, ids, correlationId, roundTripMs, pending,
isNotification, isBatch, batchSize, text, payload, errors, warnings,
valid, linked. Example: --where 'kind == "received" && roundTripMs > 50'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			entries, err := message.Deserialize(data)
			if err != nil {
				return err
			}
			view, err := applyFilters(entries, filter, where)
			if err != nil {
				return err
			}
			if tail > 0 && len(view) > tail {
				view = view[len(view)-tail:]
			}
			out := cmd.OutOrStdout()
			printEntries(out, view)
			if showStats {
				fmt.Fprintln(out)
				printStats(out, view)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Method, "method", "", "method substring")
	cmd.Flags().StringVar(&filter.ID, "id", "", "JSON-RPC id")
	cmd.Flags().StringVar(&filter.Text, "text", "", "payload substring")
	cmd.Flags().StringVar(&where, "where", "", "filter expression")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print ping, latency and per-method statistics")
	cmd.Flags().IntVar(&tail, "tail", 0, "only the last N matching entries")
	return cmd
}

func applyFilters(entries []message.Entry, f message.QuickFilter, where string) ([]message.Entry, error) {
	view := message.FilterEntries(entries, f)
	if where == "" {
		return view, nil
	}
	x, err := message.CompileExpr(where)
	if err != nil {
		return nil, err
	}
	return message.FilterExpr(view, x), nil
}
