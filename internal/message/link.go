package message

import (
	"reflect"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
)

// FindLinked returns the counterpart of e: the entry named by LinkedEntryID
// when set, otherwise the first entry of the opposite direction whose payload
// carries the same JSON-RPC id.
func FindLinked(entries []Entry, e Entry) (Entry, bool) {
	if e.LinkedEntryID != "" {
		for _, candidate := range entries {
			if candidate.ID == e.LinkedEntryID {
				return candidate, true
			}
		}
		return Entry{}, false
	}

	id, ok := jsonrpc.Field(e.Payload, "id")
	if !ok {
		return Entry{}, false
	}
	for _, candidate := range entries {
		if candidate.ID == e.ID {
			continue
		}
		other, ok := jsonrpc.Field(candidate.Payload, "id")
		if !ok || !sameID(id, other) {
			continue
		}
		if e.Kind == KindSent && candidate.Kind == KindReceived {
			return candidate, true
		}
		if e.Kind == KindReceived && candidate.Kind == KindSent {
			return candidate, true
		}
		return Entry{}, false
	}
	return Entry{}, false
}

func sameID(a, b any) bool {
	if jsonrpc.KindOf(a) == jsonrpc.KindNumber && jsonrpc.KindOf(b) == jsonrpc.KindNumber {
		fa, okA := jsonrpc.Float(a)
		fb, okB := jsonrpc.Float(b)
		return okA && okB && fa == fb
	}
	return reflect.DeepEqual(a, b)
}
