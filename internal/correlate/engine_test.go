package correlate

import (
	"testing"
	"time"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
	"github.com/danmuck/rpcscope/internal/message"
	"github.com/danmuck/rpcscope/internal/testutil/testlog"
)

var t0 = time.Unix(1700000000, 0)

func decode(t *testing.T, text string) any {
	t.Helper()
	v, err := jsonrpc.DecodeString(text)
	if err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	return v
}

func TestBatchAllModeRequiresEveryID(t *testing.T) {
	testlog.Start(t)
	pending := NewPending()
	pending.AddBatch(PendingBatch{BatchID: "B", IssuedAt: t0, CorrelationIDs: []int64{3, 4}, EntryID: "B"})
	var en Engine

	partial := en.Process(decode(t, `[{"jsonrpc":"2.0","result":1,"id":3}]`), pending, t0.Add(10*time.Millisecond), "r1")
	if partial.Matched() {
		t.Fatalf("partial overlap must not match in all mode")
	}
	if partial.Entry.Method != message.MethodBatchResponse || !partial.Entry.IsBatch || partial.Entry.BatchSize != 1 {
		t.Fatalf("unexpected unmatched batch entry %+v", partial.Entry)
	}
	if partial.Entry.RoundTripMs != nil || partial.Entry.LinkedEntryID != "" {
		t.Fatalf("unmatched batch should carry no timing or link: %+v", partial.Entry)
	}
	if _, ok := pending.Batch("B"); !ok {
		t.Fatalf("batch should still be pending")
	}

	full := en.Process(decode(t, `[{"jsonrpc":"2.0","result":1,"id":3},{"jsonrpc":"2.0","result":2,"id":4}]`), pending, t0.Add(75*time.Millisecond), "r2")
	if !full.Matched() {
		t.Fatalf("expected full match")
	}
	if got := *full.Entry.RoundTripMs; got != 75 {
		t.Fatalf("roundTripMs=%d want 75", got)
	}
	if full.Entry.LinkedEntryID != "B" || full.Entry.BatchSize != 2 {
		t.Fatalf("unexpected matched entry %+v", full.Entry)
	}
	if full.Resolved.EntryID != "B" || full.Resolved.LinkEntryID != "r2" {
		t.Fatalf("unexpected resolution %+v", *full.Resolved)
	}
	if _, ok := pending.Batch("B"); ok {
		t.Fatalf("matched batch should be removed")
	}
}

func TestBatchAnyModeMatchesOverlap(t *testing.T) {
	testlog.Start(t)
	batches := []PendingBatch{{BatchID: "B", CorrelationIDs: []int64{3, 4}}}
	if _, ok := MatchBatch(batches, []int64{3}, ModeAny); !ok {
		t.Fatalf("any mode should match on overlap")
	}
	if _, ok := MatchBatch(batches, []int64{3}, ModeAll); ok {
		t.Fatalf("all mode should not match on overlap")
	}
	if _, ok := MatchBatch(batches, []int64{3, 4, 9}, ModeAll); !ok {
		t.Fatalf("superset should match in all mode")
	}
}

func TestBatchMatchPrefersOldest(t *testing.T) {
	testlog.Start(t)
	pending := NewPending()
	pending.AddBatch(PendingBatch{BatchID: "late", IssuedAt: t0.Add(time.Second), CorrelationIDs: []int64{1}, EntryID: "late"})
	pending.AddBatch(PendingBatch{BatchID: "early", IssuedAt: t0, CorrelationIDs: []int64{1}, EntryID: "early"})
	res := Engine{}.Process(decode(t, `[{"jsonrpc":"2.0","result":1,"id":1}]`), pending, t0.Add(2*time.Second), "r")
	if !res.Matched() || res.Resolved.EntryID != "early" {
		t.Fatalf("expected oldest batch to match, got %+v", res.Resolved)
	}
}

func TestBatchNotification(t *testing.T) {
	testlog.Start(t)
	pending := NewPending()
	res := Engine{}.Process(decode(t, `[{"jsonrpc":"2.0","method":"a"},{"jsonrpc":"2.0","method":"b","params":[1]}]`), pending, t0, "n")
	e := res.Entry
	if res.Matched() || e.Method != message.MethodBatchNotification || !e.IsNotification || !e.IsBatch || e.BatchSize != 2 {
		t.Fatalf("unexpected batch notification entry %+v", e)
	}

	mixed := Engine{}.Process(decode(t, `[{"jsonrpc":"2.0","method":"a"},{"jsonrpc":"2.0","method":"b","id":null}]`), pending, t0, "m")
	if mixed.Entry.Method != message.MethodBatchResponse {
		t.Fatalf("an id member disqualifies the notification label: %+v", mixed.Entry)
	}
}

func TestSingleResponseResolvesPending(t *testing.T) {
	testlog.Start(t)
	pending := NewPending()
	pending.AddRequest(PendingRequest{CorrelationID: 7, IssuedAt: t0, EntryID: "req"})

	res := Engine{}.Process(decode(t, `{"jsonrpc":"2.0","result":{"pong":true},"id":7}`), pending, t0.Add(12*time.Millisecond), "resp")
	if !res.Matched() {
		t.Fatalf("expected match")
	}
	e := res.Entry
	if e.Kind != message.KindReceived || e.Method != message.MethodResponse {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.CorrelationID == nil || *e.CorrelationID != 7 || *e.RoundTripMs != 12 {
		t.Fatalf("unexpected correlation %+v", e)
	}
	if e.LinkedEntryID != "req" || res.Resolved.EntryID != "req" || res.Resolved.LinkEntryID != "resp" {
		t.Fatalf("links not symmetric: entry=%q resolution=%+v", e.LinkedEntryID, *res.Resolved)
	}
	if _, ok := pending.Request(7); ok {
		t.Fatalf("pending request should be removed")
	}

	again := Engine{}.Process(decode(t, `{"jsonrpc":"2.0","result":{"pong":true},"id":7}`), pending, t0, "dup")
	if again.Matched() || again.Entry.CorrelationID != nil || again.Entry.Method != message.MethodResponse {
		t.Fatalf("duplicate response should be unlinked: %+v", again.Entry)
	}
}

func TestSingleMatchedKeepsPayloadMethod(t *testing.T) {
	testlog.Start(t)
	pending := NewPending()
	pending.AddRequest(PendingRequest{CorrelationID: 1, IssuedAt: t0, EntryID: "req"})
	res := Engine{}.Process(decode(t, `{"jsonrpc":"2.0","method":"odd","result":1,"id":1}`), pending, t0, "resp")
	if res.Entry.Method != "odd" {
		t.Fatalf("method label=%q", res.Entry.Method)
	}
}

func TestSingleClassification(t *testing.T) {
	testlog.Start(t)
	pending := NewPending()
	pending.AddRequest(PendingRequest{CorrelationID: 1, IssuedAt: t0, EntryID: "req"})

	cases := []struct {
		name         string
		frame        string
		method       string
		notification bool
	}{
		{"notification", `{"jsonrpc":"2.0","method":"tick","params":{"n":1}}`, "tick", true},
		{"unknown id result", `{"jsonrpc":"2.0","result":1,"id":99}`, message.MethodResponse, false},
		{"unknown id error", `{"jsonrpc":"2.0","error":{"code":-32600,"message":"x"},"id":null}`, message.MethodResponse, false},
		{"string id", `{"jsonrpc":"2.0","result":1,"id":"1"}`, message.MethodResponse, false},
		{"fractional id", `{"jsonrpc":"2.0","result":1,"id":1.5}`, message.MethodResponse, false},
		{"bare object", `{"foo":1}`, message.MethodNotification, false},
		{"scalar", `42`, message.MethodNotification, false},
		{"request with id", `{"jsonrpc":"2.0","method":"srv.call","id":5}`, "srv.call", false},
	}
	for _, tc := range cases {
		res := Engine{}.ProcessFrame(tc.frame, pending, t0, "x")
		if res.Matched() {
			t.Fatalf("%s: unexpected match", tc.name)
		}
		if res.Entry.Method != tc.method || res.Entry.IsNotification != tc.notification {
			t.Fatalf("%s: method=%q notification=%v", tc.name, res.Entry.Method, res.Entry.IsNotification)
		}
	}
	if _, ok := pending.Request(1); !ok {
		t.Fatalf("unrelated frames must not touch pending request 1")
	}
}

func TestProcessFrameKeepsRawText(t *testing.T) {
	testlog.Start(t)
	res := Engine{}.ProcessFrame(`{"broken":`, NewPending(), t0, "raw")
	if s, ok := res.Entry.Payload.(string); !ok || s != `{"broken":` {
		t.Fatalf("raw payload not kept verbatim: %#v", res.Entry.Payload)
	}
	if res.Entry.Kind != message.KindReceived || res.Entry.Method != "" || res.Matched() {
		t.Fatalf("raw frames are not classified: %+v", res.Entry)
	}
}

func TestPendingClearAndOrdering(t *testing.T) {
	testlog.Start(t)
	p := NewPending()
	p.AddRequest(PendingRequest{CorrelationID: 3})
	p.AddRequest(PendingRequest{CorrelationID: 1})
	p.AddBatch(PendingBatch{BatchID: "b", CorrelationIDs: []int64{4}})
	p.AddBatch(PendingBatch{BatchID: " "})
	if reqs, batches := p.Len(); reqs != 2 || batches != 1 {
		t.Fatalf("len=%d,%d", reqs, batches)
	}
	if got := p.Requests(); got[0].CorrelationID != 1 || got[1].CorrelationID != 3 {
		t.Fatalf("requests not ordered: %+v", got)
	}
	p.Clear()
	if reqs, batches := p.Len(); reqs != 0 || batches != 0 {
		t.Fatalf("clear left %d,%d", reqs, batches)
	}
}
