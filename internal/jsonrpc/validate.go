package jsonrpc

import "fmt"

// Role selects which side of the protocol a message is checked against.
type Role string

const (
	RoleRequest  Role = "request"
	RoleResponse Role = "response"
)

// Result is the outcome of a structural check. Errors make a message
// non-compliant; warnings never do.
type Result struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// Pre-defined error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerErrorMin = -32099
	CodeServerErrorMax = -32000
)

var predefinedCodes = map[int64]string{
	CodeParseError:     "parse error",
	CodeInvalidRequest: "invalid request",
	CodeMethodNotFound: "method not found",
	CodeInvalidParams:  "invalid params",
	CodeInternalError:  "internal error",
}

// ReservedCode reports whether code is pre-defined by JSON-RPC 2.0 or falls in
// the implementation-defined server error band, with a short label.
func ReservedCode(code int64) (string, bool) {
	if name, ok := predefinedCodes[code]; ok {
		return name, true
	}
	if code >= CodeServerErrorMin && code <= CodeServerErrorMax {
		return "server error", true
	}
	return "", false
}

// Validate checks payload for JSON-RPC 2.0 structural conformance. It is
// total over decoded JSON values: anything that is not an object is checked
// as an object with no members.
func Validate(payload any, role Role) Result {
	if items, ok := payload.([]any); ok {
		return validateBatch(items, role)
	}
	var errs, warns []string
	if v, _ := Field(payload, "jsonrpc"); v != Version {
		errs = append(errs, `missing or invalid "jsonrpc" field (must be "2.0")`)
	}
	if role == RoleResponse {
		errs, warns = validateResponse(payload, errs, warns)
	} else {
		errs, warns = validateRequest(payload, errs, warns)
	}
	return Result{IsValid: len(errs) == 0, Errors: errs, Warnings: warns}
}

func validateRequest(msg any, errs, warns []string) ([]string, []string) {
	method, ok := Field(msg, "method")
	switch {
	case !ok || method == nil || method == "":
		errs = append(errs, `missing required "method" field`)
	case KindOf(method) != KindString:
		errs = append(errs, `"method" field must be a string`)
	}

	if params, ok := Field(msg, "params"); ok {
		if k := KindOf(params); k != KindArray && k != KindObject {
			errs = append(errs, `"params" must be an array or object`)
		}
	}

	id, ok := Field(msg, "id")
	if !ok {
		warns = append(warns, `no "id" field - this is a notification`)
		return errs, warns
	}
	if k := KindOf(id); k != KindString && k != KindNumber && k != KindNull {
		errs = append(errs, `"id" must be a string, number, or null`)
	}
	return errs, warns
}

func validateResponse(msg any, errs, warns []string) ([]string, []string) {
	_, hasResult := Field(msg, "result")
	rpcErr, hasError := Field(msg, "error")

	switch {
	case !hasResult && !hasError:
		errs = append(errs, `response must have either "result" or "error" field`)
	case hasResult && hasError:
		errs = append(errs, `response cannot have both "result" and "error" fields`)
	}

	if !HasField(msg, "id") {
		errs = append(errs, `missing required "id" field in response`)
	}

	if !hasError {
		return errs, warns
	}
	if KindOf(rpcErr) != KindObject {
		errs = append(errs, `"error" must be an object`)
		return errs, warns
	}

	code, _ := Field(rpcErr, "code")
	switch {
	case KindOf(code) != KindNumber:
		errs = append(errs, `"error.code" must be a number`)
	case !IsInteger(code):
		errs = append(errs, `"error.code" must be an integer`)
	default:
		if n, ok := IntID(code); ok {
			if label, reserved := ReservedCode(n); reserved {
				warns = append(warns, fmt.Sprintf(`"error.code" %d is reserved by JSON-RPC 2.0 (%s)`, n, label))
			}
		}
	}

	if _, ok := StringField(rpcErr, "message"); !ok {
		errs = append(errs, `"error.message" must be a string`)
	}
	return errs, warns
}

func validateBatch(items []any, role Role) Result {
	var errs, warns []string
	if len(items) == 0 {
		errs = append(errs, "batch must not be empty")
	}
	for i, item := range items {
		res := Validate(item, role)
		for _, e := range res.Errors {
			errs = append(errs, fmt.Sprintf("[Item %d] %s", i, e))
		}
		for _, w := range res.Warnings {
			warns = append(warns, fmt.Sprintf("[Item %d] %s", i, w))
		}
	}
	return Result{IsValid: len(errs) == 0, Errors: errs, Warnings: warns}
}
