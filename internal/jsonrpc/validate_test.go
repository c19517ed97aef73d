package jsonrpc

import (
	"strings"
	"testing"

	"github.com/danmuck/rpcscope/internal/testutil/testlog"
)

func mustDecode(t *testing.T, text string) any {
	t.Helper()
	v, err := DecodeString(text)
	if err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	return v
}

func TestValidateRequestNotificationWarns(t *testing.T) {
	testlog.Start(t)
	res := Validate(mustDecode(t, `{"jsonrpc":"2.0","method":"m"}`), RoleRequest)
	if !res.IsValid {
		t.Fatalf("expected valid, errors=%v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "notification") {
		t.Fatalf("expected exactly one notification warning, got %v", res.Warnings)
	}
}

func TestValidateRequestNullIDIsNotNotification(t *testing.T) {
	testlog.Start(t)
	res := Validate(mustDecode(t, `{"jsonrpc":"2.0","method":"m","id":null}`), RoleRequest)
	if !res.IsValid || len(res.Warnings) != 0 {
		t.Fatalf("null id should be valid without warnings: %+v", res)
	}
}

func TestValidateRequestErrors(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		text string
		want string
	}{
		{"version", `{"jsonrpc":"1.0","method":"m","id":1}`, `"jsonrpc"`},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, `missing required "method"`},
		{"method type", `{"jsonrpc":"2.0","method":7,"id":1}`, `"method" field must be a string`},
		{"params scalar", `{"jsonrpc":"2.0","method":"m","params":3,"id":1}`, `"params" must be an array or object`},
		{"params null", `{"jsonrpc":"2.0","method":"m","params":null,"id":1}`, `"params" must be an array or object`},
		{"id object", `{"jsonrpc":"2.0","method":"m","id":{}}`, `"id" must be a string, number, or null`},
	}
	for _, tc := range cases {
		res := Validate(mustDecode(t, tc.text), RoleRequest)
		if res.IsValid {
			t.Fatalf("%s: expected invalid", tc.name)
		}
		if !containsSubstring(res.Errors, tc.want) {
			t.Fatalf("%s: errors %v missing %q", tc.name, res.Errors, tc.want)
		}
	}
}

func TestValidateResponseRequiresResultOrError(t *testing.T) {
	testlog.Start(t)
	res := Validate(mustDecode(t, `{"jsonrpc":"2.0","id":1}`), RoleResponse)
	if res.IsValid {
		t.Fatalf("response without result/error must be invalid")
	}
	res = Validate(mustDecode(t, `{"jsonrpc":"2.0","id":1,"result":1,"error":{"code":1,"message":"x"}}`), RoleResponse)
	if res.IsValid || !containsSubstring(res.Errors, "cannot have both") {
		t.Fatalf("expected both-members error, got %+v", res)
	}
	res = Validate(mustDecode(t, `{"jsonrpc":"2.0","result":true}`), RoleResponse)
	if res.IsValid || !containsSubstring(res.Errors, `missing required "id"`) {
		t.Fatalf("expected missing id error, got %+v", res)
	}
}

func TestValidateResponseReservedCodeWarns(t *testing.T) {
	testlog.Start(t)
	res := Validate(mustDecode(t, `{"jsonrpc":"2.0","error":{"code":-32601,"message":"x"},"id":1}`), RoleResponse)
	if !res.IsValid {
		t.Fatalf("expected valid, errors=%v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "-32601") {
		t.Fatalf("expected reserved code warning, got %v", res.Warnings)
	}

	res = Validate(mustDecode(t, `{"jsonrpc":"2.0","error":{"code":-32050,"message":"busy","data":[1]},"id":"a"}`), RoleResponse)
	if !res.IsValid || len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "server error") {
		t.Fatalf("expected server band warning, got %+v", res)
	}

	res = Validate(mustDecode(t, `{"jsonrpc":"2.0","error":{"code":1001,"message":"auth"},"id":1}`), RoleResponse)
	if !res.IsValid || len(res.Warnings) != 0 {
		t.Fatalf("application code should be clean, got %+v", res)
	}
}

func TestValidateResponseErrorObject(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		text string
		want string
	}{
		{`{"jsonrpc":"2.0","error":"boom","id":1}`, `"error" must be an object`},
		{`{"jsonrpc":"2.0","error":null,"id":1}`, `"error" must be an object`},
		{`{"jsonrpc":"2.0","error":{"code":"x","message":"m"},"id":1}`, `"error.code" must be a number`},
		{`{"jsonrpc":"2.0","error":{"code":1.5,"message":"m"},"id":1}`, `"error.code" must be an integer`},
		{`{"jsonrpc":"2.0","error":{"code":1},"id":1}`, `"error.message" must be a string`},
	}
	for _, tc := range cases {
		res := Validate(mustDecode(t, tc.text), RoleResponse)
		if res.IsValid || !containsSubstring(res.Errors, tc.want) {
			t.Fatalf("%s: expected %q in %v", tc.text, tc.want, res.Errors)
		}
	}
}

func TestValidateBatch(t *testing.T) {
	testlog.Start(t)
	res := Validate(mustDecode(t, `[]`), RoleRequest)
	if res.IsValid || len(res.Errors) != 1 || res.Errors[0] != "batch must not be empty" {
		t.Fatalf("empty batch: %+v", res)
	}

	res = Validate(mustDecode(t, `[{"jsonrpc":"2.0","method":"a","id":1},{"jsonrpc":"2.0","id":2},{"jsonrpc":"2.0","method":"n"}]`), RoleRequest)
	if res.IsValid {
		t.Fatalf("batch with an invalid item must be invalid")
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "[Item 1] ") {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.HasPrefix(res.Warnings[0], "[Item 2] ") {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestValidateIsTotal(t *testing.T) {
	testlog.Start(t)
	for _, text := range []string{`null`, `true`, `3`, `"x"`, `[1,"a",null]`, `{}`} {
		for _, role := range []Role{RoleRequest, RoleResponse} {
			res := Validate(mustDecode(t, text), role)
			if res.IsValid {
				t.Fatalf("%s as %s should not be valid", text, role)
			}
		}
	}
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
