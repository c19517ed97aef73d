package message

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expr is a compiled boolean predicate over log entries, for filters the
// quick filter cannot express, e.g. `kind == "received" && roundTripMs > 50`.
type Expr struct {
	source  string
	program *vm.Program
}

// CompileExpr compiles source against the entry environment. The expression
// must evaluate to a bool.
func CompileExpr(source string) (*Expr, error) {
	program, err := expr.Compile(source, expr.Env(exprEnv(Entry{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("message: compile filter %q: %w", source, err)
	}
	return &Expr{source: source, program: program}, nil
}

func (x *Expr) String() string { return x.source }

// Matches evaluates the predicate for e. Runtime errors (a payload member of
// the wrong type, for instance) count as no match.
func (x *Expr) Matches(e Entry) bool {
	out, err := expr.Run(x.program, exprEnv(e))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// FilterExpr returns the entries x matches, in log order.
func FilterExpr(entries []Entry, x *Expr) []Entry {
	if x == nil {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if x.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func exprEnv(e Entry) map[string]any {
	method, _ := entryMethod(e)
	var rtt int64 = -1
	if e.RoundTripMs != nil {
		rtt = *e.RoundTripMs
	}
	var correlation int64 = -1
	if e.CorrelationID != nil {
		correlation = *e.CorrelationID
	}
	return map[string]any{
		"kind":           string(e.Kind),
		"method":         method,
		"ids":            entryIDs(e),
		"correlationId":  correlation,
		"roundTripMs":    rtt,
		"pending":        e.Pending,
		"isNotification": e.IsNotification,
		"isBatch":        e.IsBatch,
		"batchSize":      e.BatchSize,
		"text":           e.PayloadJSON(),
		"payload":        e.Payload,
		"errors":         append([]string{}, e.ValidationErrors...),
		"warnings":       append([]string{}, e.ValidationWarnings...),
		"valid":          len(e.ValidationErrors) == 0,
		"linked":         e.LinkedEntryID != "",
	}
}
