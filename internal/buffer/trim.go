package buffer

import "github.com/danmuck/rpcscope/internal/message"

// Eviction counts what one trim removed.
type Eviction struct {
	Dropped int // removed by the preference-aware pass
	Forced  int // removed from the front after every candidate was preferred
}

func (e Eviction) Total() int { return e.Dropped + e.Forced }

func (p Policy) prefers(e message.Entry) bool {
	if p.preferPending && e.Pending {
		return true
	}
	return p.preferBatches && e.IsBatch
}

// Trim bounds log to the policy limit and preserves the order of survivors.
// The input slice is never modified; an already-compliant log is returned
// as is.
func Trim(log []message.Entry, p Policy) []message.Entry {
	out, _ := TrimCounted(log, p)
	return out
}

// Append is Trim(log + [e]).
func Append(log []message.Entry, e message.Entry, p Policy) []message.Entry {
	out, _ := AppendCounted(log, e, p)
	return out
}

// AppendCounted is Append that also reports the eviction.
func AppendCounted(log []message.Entry, e message.Entry, p Policy) ([]message.Entry, Eviction) {
	next := make([]message.Entry, 0, len(log)+1)
	next = append(next, log...)
	next = append(next, e)
	if len(next) <= p.limit {
		return next, Eviction{}
	}
	return trimInPlace(next, p)
}

// TrimCounted is Trim that also reports the eviction.
func TrimCounted(log []message.Entry, p Policy) ([]message.Entry, Eviction) {
	if len(log) <= p.limit {
		return log, Eviction{}
	}
	next := make([]message.Entry, len(log))
	copy(next, log)
	return trimInPlace(next, p)
}

func trimInPlace(next []message.Entry, p Policy) ([]message.Entry, Eviction) {
	var ev Eviction
	limit := p.limit
	if limit < 0 {
		limit = 0
	}

	// Pass 1: drop the oldest entries, stepping over preferred ones.
	toDrop := len(next) - limit
	start := 0
	for toDrop > 0 && start < len(next) {
		if p.prefers(next[start]) {
			start++
			continue
		}
		next = append(next[:start], next[start+1:]...)
		toDrop--
		ev.Dropped++
	}

	// Pass 2: only preferred entries are left in the excess, drop from the
	// front in chunks.
	chunkSize := p.dropChunkSize
	if chunkSize < 1 {
		chunkSize = 1
	}
	for len(next) > limit {
		chunk := min(chunkSize, len(next)-limit)
		next = next[chunk:]
		ev.Forced += chunk
	}
	return next, ev
}
