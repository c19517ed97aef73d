package message

import (
	"strconv"
	"strings"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
)

// QuickFilter narrows a view of the log without touching it. Empty fields
// match everything.
type QuickFilter struct {
	// Method is a case-insensitive substring of the entry method.
	Method string
	// ID must equal one of the JSON-RPC ids carried by the entry.
	ID string
	// Text is a case-insensitive substring of the rendered payload.
	Text string
}

func (f QuickFilter) IsZero() bool {
	return strings.TrimSpace(f.Method) == "" &&
		strings.TrimSpace(f.ID) == "" &&
		strings.TrimSpace(f.Text) == ""
}

// Matches reports whether e passes every non-empty criterion.
func (f QuickFilter) Matches(e Entry) bool {
	if m := strings.TrimSpace(f.Method); m != "" {
		method, ok := entryMethod(e)
		if !ok || !strings.Contains(strings.ToLower(method), strings.ToLower(m)) {
			return false
		}
	}
	if id := strings.TrimSpace(f.ID); id != "" {
		if !containsString(entryIDs(e), id) {
			return false
		}
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		if !strings.Contains(strings.ToLower(e.PayloadJSON()), strings.ToLower(text)) {
			return false
		}
	}
	return true
}

// FilterEntries returns the entries matching f, in log order. A zero filter
// returns entries unchanged.
func FilterEntries(entries []Entry, f QuickFilter) []Entry {
	if f.IsZero() {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func entryMethod(e Entry) (string, bool) {
	if e.Method != "" {
		return e.Method, true
	}
	return jsonrpc.StringField(e.Payload, "method")
}

func entryIDs(e Entry) []string {
	var ids []string
	collect := func(v any) {
		raw, ok := jsonrpc.Field(v, "id")
		if !ok {
			return
		}
		if s, ok := jsonrpc.IDString(raw); ok {
			ids = append(ids, s)
		}
	}
	if items, ok := e.Payload.([]any); ok {
		for _, item := range items {
			collect(item)
		}
	} else {
		collect(e.Payload)
	}
	if e.CorrelationID != nil {
		ids = append(ids, strconv.FormatInt(*e.CorrelationID, 10))
	}
	return ids
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
