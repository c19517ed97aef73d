package correlate

// Mode selects how a response array is matched against pending batches.
type Mode int

const (
	// ModeAll matches a batch only when every one of its correlation ids is
	// present in the response.
	ModeAll Mode = iota
	// ModeAny matches on any overlap. Sessions never select it; it exists
	// for partial-batch experiments.
	ModeAny
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeAny:
		return "any"
	default:
		return "unknown"
	}
}

// MatchBatch returns the first batch, in the order given, whose correlation
// ids satisfy mode against responseIDs.
func MatchBatch(batches []PendingBatch, responseIDs []int64, mode Mode) (PendingBatch, bool) {
	seen := make(map[int64]struct{}, len(responseIDs))
	for _, id := range responseIDs {
		seen[id] = struct{}{}
	}
	for _, b := range batches {
		if matches(b.CorrelationIDs, seen, mode) {
			return b, true
		}
	}
	return PendingBatch{}, false
}

func matches(ids []int64, seen map[int64]struct{}, mode Mode) bool {
	switch mode {
	case ModeAny:
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				return true
			}
		}
		return false
	default:
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				return false
			}
		}
		return true
	}
}
