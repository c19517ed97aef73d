package message

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
	"github.com/danmuck/rpcscope/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

func decode(t *testing.T, text string) any {
	t.Helper()
	v, err := jsonrpc.DecodeString(text)
	if err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	return v
}

func sampleLog(t *testing.T) []Entry {
	t.Helper()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Entry{
		{
			ID:            "e1",
			Kind:          KindSent,
			CreatedAt:     at,
			Payload:       decode(t, `{"jsonrpc":"2.0","method":"echo","params":{"x":1},"id":1}`),
			Method:        "echo",
			CorrelationID: Int64(1),
			LinkedEntryID: "e2",
		},
		{
			ID:            "e2",
			Kind:          KindReceived,
			CreatedAt:     at.Add(42 * time.Millisecond),
			Payload:       decode(t, `{"jsonrpc":"2.0","result":{"x":1},"id":1}`),
			Method:        "echo",
			CorrelationID: Int64(1),
			RoundTripMs:   Int64(42),
			LinkedEntryID: "e1",
		},
		{
			ID:             "e3",
			Kind:           KindReceived,
			CreatedAt:      at.Add(time.Second),
			Payload:        decode(t, `{"jsonrpc":"2.0","method":"heartbeat","params":{"seq":1}}`),
			Method:         "heartbeat",
			IsNotification: true,
		},
		{
			ID:        "e4",
			Kind:      KindSent,
			CreatedAt: at.Add(2 * time.Second),
			Payload:   decode(t, `[{"jsonrpc":"2.0","method":"ping","id":2},{"jsonrpc":"2.0","method":"echo","id":3}]`),
			Method:    MethodBatchRequest,
			IsBatch:   true,
			BatchSize: 2,
			Pending:   true,
		},
		{
			ID:        "e5",
			Kind:      KindError,
			CreatedAt: at.Add(3 * time.Second),
			Payload:   Text("WebSocket error"),
		},
		{
			ID:        "e6",
			Kind:      KindReceived,
			CreatedAt: at.Add(4 * time.Second),
			Payload:   "not json",
		},
	}
}

func TestExportRoundTrip(t *testing.T) {
	testlog.Start(t)
	entries := sampleLog(t)

	var buf bytes.Buffer
	if err := Export(&buf, entries); err != nil {
		t.Fatalf("export: %v", err)
	}
	back, err := Import(&buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if diff := cmp.Diff(entries, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeShape(t *testing.T) {
	testlog.Start(t)
	raw, err := Serialize(sampleLog(t)[:1])
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one record, got %d", len(out))
	}
	for _, key := range []string{"id", "kind", "createdAt", "payload", "method", "correlationId", "linkedEntryId"} {
		if _, ok := out[0][key]; !ok {
			t.Fatalf("missing %q in %s", key, raw)
		}
	}
	for _, key := range []string{"roundTripMs", "pending", "isBatch", "validationErrors"} {
		if _, ok := out[0][key]; ok {
			t.Fatalf("unset %q should be omitted: %s", key, raw)
		}
	}
	if !strings.Contains(string(raw), "\n  ") {
		t.Fatalf("expected indented output: %s", raw)
	}

	empty, err := Serialize(nil)
	if err != nil || string(empty) != "[]" {
		t.Fatalf("empty log should serialize to [] got %q err=%v", empty, err)
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	testlog.Start(t)
	if _, err := Deserialize([]byte(`{"id":"x"}`)); err == nil {
		t.Fatalf("expected object input to fail")
	}
}

func TestAnnotateRoles(t *testing.T) {
	testlog.Start(t)
	sent := Entry{Kind: KindSent, Payload: decode(t, `{"jsonrpc":"2.0","method":"x"}`)}
	sent.Annotate()
	if len(sent.ValidationErrors) != 0 || len(sent.ValidationWarnings) != 1 {
		t.Fatalf("notification request: %+v", sent)
	}

	resp := Entry{Kind: KindReceived, Payload: decode(t, `{"jsonrpc":"2.0","id":1}`)}
	resp.Annotate()
	if len(resp.ValidationErrors) != 1 {
		t.Fatalf("response without result should fail: %+v", resp.ValidationErrors)
	}

	note := Entry{Kind: KindReceived, IsNotification: true, Payload: decode(t, `{"jsonrpc":"2.0","method":"tick"}`)}
	note.Annotate()
	if len(note.ValidationErrors) != 0 {
		t.Fatalf("incoming notification validates as a request: %+v", note.ValidationErrors)
	}

	sys := Entry{Kind: KindSystem, Payload: Text("Connected")}
	sys.Annotate()
	if sys.ValidationErrors != nil || sys.ValidationWarnings != nil {
		t.Fatalf("system entries are not validated")
	}
	if sys.PayloadText() != "Connected" {
		t.Fatalf("payload text: %q", sys.PayloadText())
	}
}

func TestCloneDetachesPointers(t *testing.T) {
	testlog.Start(t)
	e := Entry{CorrelationID: Int64(4), ValidationErrors: []string{"a"}}
	c := e.Clone()
	*c.CorrelationID = 9
	c.ValidationErrors[0] = "b"
	if *e.CorrelationID != 4 || e.ValidationErrors[0] != "a" {
		t.Fatalf("clone shares state with the original")
	}
}

func TestFindLinked(t *testing.T) {
	testlog.Start(t)
	entries := sampleLog(t)

	got, ok := FindLinked(entries, entries[0])
	if !ok || got.ID != "e2" {
		t.Fatalf("explicit link: %v %q", ok, got.ID)
	}

	// Without explicit links, fall back to payload id equality across directions.
	plain := make([]Entry, len(entries))
	for i, e := range entries {
		e.LinkedEntryID = ""
		plain[i] = e
	}
	got, ok = FindLinked(plain, plain[1])
	if !ok || got.ID != "e1" {
		t.Fatalf("id fallback: %v %q", ok, got.ID)
	}
	if _, ok := FindLinked(plain, plain[2]); ok {
		t.Fatalf("notifications have no counterpart")
	}

	dangling := entries[0]
	dangling.LinkedEntryID = "missing"
	if _, ok := FindLinked(entries, dangling); ok {
		t.Fatalf("dangling link should not resolve")
	}
}

func TestFindLinkedSameDirectionStops(t *testing.T) {
	testlog.Start(t)
	a := Entry{ID: "a", Kind: KindSent, Payload: decode(t, `{"jsonrpc":"2.0","method":"m","id":5}`)}
	b := Entry{ID: "b", Kind: KindSent, Payload: decode(t, `{"jsonrpc":"2.0","method":"m","id":5}`)}
	c := Entry{ID: "c", Kind: KindReceived, Payload: decode(t, `{"jsonrpc":"2.0","result":1,"id":5}`)}
	if _, ok := FindLinked([]Entry{b, c, a}, a); ok {
		t.Fatalf("first id match is a sent entry; lookup should stop there")
	}
}

func TestQuickFilter(t *testing.T) {
	testlog.Start(t)
	entries := sampleLog(t)

	ids := func(list []Entry) []string {
		out := make([]string, 0, len(list))
		for _, e := range list {
			out = append(out, e.ID)
		}
		return out
	}

	cases := []struct {
		name   string
		filter QuickFilter
		want   []string
	}{
		{"zero", QuickFilter{}, []string{"e1", "e2", "e3", "e4", "e5", "e6"}},
		{"method", QuickFilter{Method: "ECH"}, []string{"e1", "e2"}},
		{"batch label", QuickFilter{Method: "batch"}, []string{"e4"}},
		{"id", QuickFilter{ID: "1"}, []string{"e1", "e2"}},
		{"batch item id", QuickFilter{ID: "3"}, []string{"e4"}},
		{"text", QuickFilter{Text: "SEQ"}, []string{"e3"}},
		{"raw text", QuickFilter{Text: "not json"}, []string{"e6"}},
		{"combined", QuickFilter{Method: "echo", Text: "result"}, []string{"e2"}},
		{"no match", QuickFilter{ID: "99"}, []string{}},
	}
	for _, tc := range cases {
		got := ids(FilterEntries(entries, tc.filter))
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("%s: (-want +got):\n%s", tc.name, diff)
		}
	}
}

func TestExprFilter(t *testing.T) {
	testlog.Start(t)
	entries := sampleLog(t)

	x, err := CompileExpr(`kind == "received" && roundTripMs > 10`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got := FilterExpr(entries, x)
	if len(got) != 1 || got[0].ID != "e2" {
		t.Fatalf("rtt filter: %+v", got)
	}

	x, err = CompileExpr(`isBatch && batchSize == 2 && "3" in ids`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := FilterExpr(entries, x); len(got) != 1 || got[0].ID != "e4" {
		t.Fatalf("batch filter: %+v", got)
	}

	if _, err := CompileExpr(`kind + 1`); err == nil {
		t.Fatalf("non-boolean expression should not compile")
	}
	if got := FilterExpr(entries, nil); len(got) != len(entries) {
		t.Fatalf("nil expression keeps everything")
	}
}
