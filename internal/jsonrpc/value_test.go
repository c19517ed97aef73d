package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/danmuck/rpcscope/internal/testutil/testlog"
)

func TestDecodeKinds(t *testing.T) {
	testlog.Start(t)
	cases := map[string]Kind{
		`null`:      KindNull,
		`false`:     KindBool,
		`12.5`:      KindNumber,
		`"s"`:       KindString,
		`[1,2]`:     KindArray,
		`{"a":1}`:   KindObject,
		` {"a":1} `: KindObject,
	}
	for text, want := range cases {
		v, err := DecodeString(text)
		if err != nil {
			t.Fatalf("decode %q: %v", text, err)
		}
		if got := KindOf(v); got != want {
			t.Fatalf("KindOf(%q)=%s want %s", text, got, want)
		}
	}
	if KindOf(struct{}{}) != KindInvalid {
		t.Fatalf("structs are outside the value set")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	testlog.Start(t)
	if _, err := DecodeString(`{"a":`); err == nil {
		t.Fatalf("expected truncated JSON to fail")
	}
	if _, err := DecodeString(`{} {}`); !errors.Is(err, ErrTrailingData) {
		t.Fatalf("expected ErrTrailingData, got %v", err)
	}
	if _, err := DecodeString(`not json`); err == nil {
		t.Fatalf("expected plain text to fail")
	}
}

func TestIntID(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{json.Number("7"), 7, true},
		{json.Number("7.0"), 7, true},
		{json.Number("7.5"), 0, false},
		{json.Number("1e3"), 1000, true},
		{"7", 0, false},
		{nil, 0, false},
		{float64(3), 3, true},
		{42, 42, true},
	}
	for _, tc := range cases {
		got, ok := IntID(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("IntID(%#v)=%d,%v want %d,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestEncodeRequestShape(t *testing.T) {
	testlog.Start(t)
	req, err := NewRequest("echo", map[string]any{"x": 1}, 3)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	text, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if text != `{"jsonrpc":"2.0","method":"echo","params":{"x":1},"id":3}` {
		t.Fatalf("unexpected frame: %s", text)
	}

	note, err := NewNotification("tick", nil)
	if err != nil {
		t.Fatalf("new notification: %v", err)
	}
	text, err = EncodeRequest(note)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if text != `{"jsonrpc":"2.0","method":"tick"}` {
		t.Fatalf("unexpected notification frame: %s", text)
	}
}

func TestEncodeBatch(t *testing.T) {
	testlog.Start(t)
	a, _ := NewRequest("ping", nil, 1)
	b, _ := NewRequest("echo", []int{1, 2}, 2)
	text, err := EncodeBatch([]Request{a, b})
	if err != nil {
		t.Fatalf("encode batch: %v", err)
	}
	want := `[{"jsonrpc":"2.0","method":"ping","id":1},{"jsonrpc":"2.0","method":"echo","params":[1,2],"id":2}]`
	if text != want {
		t.Fatalf("batch frame:\n got %s\nwant %s", text, want)
	}
	res := Validate(mustDecode(t, text), RoleRequest)
	if !res.IsValid || len(res.Warnings) != 0 {
		t.Fatalf("encoded batch should validate cleanly: %+v", res)
	}
}

func TestIDString(t *testing.T) {
	testlog.Start(t)
	if s, ok := IDString(json.Number("12")); !ok || s != "12" {
		t.Fatalf("number id: %q %v", s, ok)
	}
	if s, ok := IDString("abc"); !ok || s != "abc" {
		t.Fatalf("string id: %q %v", s, ok)
	}
	if s, ok := IDString(nil); !ok || s != "null" {
		t.Fatalf("null id: %q %v", s, ok)
	}
	if _, ok := IDString([]any{}); ok {
		t.Fatalf("arrays are not ids")
	}
}

func TestEncodeParamsRejectsScalars(t *testing.T) {
	testlog.Start(t)
	for _, params := range []any{5, "x", true, 1.5, json.RawMessage(`7`), json.RawMessage(` "s" `)} {
		if _, err := EncodeParams(params); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("EncodeParams(%#v) err=%v want ErrInvalidParams", params, err)
		}
		if _, err := NewRequest("m", params, 1); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("NewRequest with %#v err=%v", params, err)
		}
	}
	for _, params := range []any{nil, json.RawMessage(" "), json.RawMessage("null")} {
		raw, err := EncodeParams(params)
		if err != nil || raw != nil {
			t.Fatalf("EncodeParams(%#v)=%s,%v want no params", params, raw, err)
		}
	}
	raw, err := EncodeParams(json.RawMessage(` [1] `))
	if err != nil || string(raw) != "[1]" {
		t.Fatalf("raw array=%s,%v", raw, err)
	}
}
