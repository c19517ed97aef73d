package correlate

import (
	"time"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
	"github.com/danmuck/rpcscope/internal/message"
)

// Engine classifies incoming frames and resolves them against the pending
// maps. The zero value matches batches in ModeAll.
type Engine struct {
	Mode Mode
}

// Resolution names a sent entry to patch: pending cleared and linked to the
// response entry.
type Resolution struct {
	EntryID     string
	LinkEntryID string
}

// Result is the outcome of classifying one frame.
type Result struct {
	// Entry is the received entry to append. Validation is left to the caller.
	Entry message.Entry
	// Resolved is set when the frame answered a pending request or batch.
	Resolved *Resolution
}

// Matched reports whether the frame resolved pending state.
func (r Result) Matched() bool { return r.Resolved != nil }

// ProcessFrame decodes text and classifies it. Frames that are not JSON are
// kept verbatim as raw received entries.
func (en Engine) ProcessFrame(text string, pending *Pending, now time.Time, entryID string) Result {
	payload, err := jsonrpc.DecodeString(text)
	if err != nil {
		return Result{Entry: message.Entry{
			ID:        entryID,
			Kind:      message.KindReceived,
			CreatedAt: now,
			Payload:   text,
		}}
	}
	return en.Process(payload, pending, now, entryID)
}

// Process classifies one decoded payload. Matched pending state is removed
// from pending. It never fails; unknown shapes get a best-effort label.
func (en Engine) Process(payload any, pending *Pending, now time.Time, entryID string) Result {
	e := message.Entry{
		ID:        entryID,
		Kind:      message.KindReceived,
		CreatedAt: now,
		Payload:   payload,
	}
	if items, ok := payload.([]any); ok {
		return en.processArray(e, items, pending, now)
	}
	return processSingle(e, pending, now)
}

func (en Engine) processArray(e message.Entry, items []any, pending *Pending, now time.Time) Result {
	e.IsBatch = true
	e.BatchSize = len(items)

	if allNotifications(items) {
		e.Method = message.MethodBatchNotification
		e.IsNotification = true
		return Result{Entry: e}
	}

	e.Method = message.MethodBatchResponse
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		raw, ok := jsonrpc.Field(item, "id")
		if !ok {
			continue
		}
		if id, ok := jsonrpc.IntID(raw); ok {
			ids = append(ids, id)
		}
	}
	batch, ok := MatchBatch(pending.Batches(), ids, en.Mode)
	if !ok {
		return Result{Entry: e}
	}
	pending.RemoveBatch(batch.BatchID)
	e.RoundTripMs = message.Int64(elapsedMs(batch.IssuedAt, now))
	e.LinkedEntryID = batch.EntryID
	return Result{
		Entry:    e,
		Resolved: &Resolution{EntryID: batch.EntryID, LinkEntryID: e.ID},
	}
}

func allNotifications(items []any) bool {
	for _, item := range items {
		if jsonrpc.KindOf(item) != jsonrpc.KindObject || jsonrpc.HasField(item, "id") {
			return false
		}
		if _, ok := jsonrpc.StringField(item, "method"); !ok {
			return false
		}
	}
	return true
}

func processSingle(e message.Entry, pending *Pending, now time.Time) Result {
	rawID, hasID := jsonrpc.Field(e.Payload, "id")
	method, hasMethod := jsonrpc.StringField(e.Payload, "method")

	if hasID {
		if id, ok := jsonrpc.IntID(rawID); ok {
			if req, ok := pending.Request(id); ok {
				pending.RemoveRequest(id)
				e.Method = message.MethodResponse
				if method != "" {
					e.Method = method
				}
				e.CorrelationID = message.Int64(id)
				e.RoundTripMs = message.Int64(elapsedMs(req.IssuedAt, now))
				e.LinkedEntryID = req.EntryID
				return Result{
					Entry:    e,
					Resolved: &Resolution{EntryID: req.EntryID, LinkEntryID: e.ID},
				}
			}
		}
	}

	switch {
	case hasMethod:
		e.Method = method
	case jsonrpc.HasField(e.Payload, "result") || jsonrpc.HasField(e.Payload, "error"):
		e.Method = message.MethodResponse
	default:
		e.Method = message.MethodNotification
	}
	e.IsNotification = !hasID && hasMethod
	return Result{Entry: e}
}

func elapsedMs(issuedAt, now time.Time) int64 {
	ms := now.Sub(issuedAt).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
