package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
)

// Version is the only protocol version accepted in the "jsonrpc" member.
const Version = "2.0"

var ErrTrailingData = errors.New("jsonrpc: trailing data after value")

// Kind classifies a decoded JSON value.
type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// KindOf reports the JSON kind of v. Values produced by Decode always map to
// a kind other than KindInvalid; float and int Go values are accepted as
// numbers so hand-built payloads classify the same way.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindInvalid
	}
}

// Decode parses one JSON text into the closed value set
// nil | bool | json.Number | string | []any | map[string]any.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return v, nil
}

// DecodeString is Decode for text frames.
func DecodeString(text string) (any, error) {
	return Decode([]byte(text))
}

// Normalize round-trips v through encoding/json so hand-built values
// (map[string]int, structs, ...) land in the closed value set.
func Normalize(v any) (any, error) {
	switch KindOf(v) {
	case KindNull, KindBool, KindString:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Field returns the member key of an object value. ok is false when v is not
// an object or the member is absent; a present null member returns (nil, true).
func Field(v any, key string) (any, bool) {
	obj, isObj := v.(map[string]any)
	if !isObj {
		return nil, false
	}
	out, ok := obj[key]
	return out, ok
}

// HasField reports whether v is an object carrying member key.
func HasField(v any, key string) bool {
	_, ok := Field(v, key)
	return ok
}

// StringField returns member key when it is a string.
func StringField(v any, key string) (string, bool) {
	raw, ok := Field(v, key)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

// IntID converts a numeric JSON value into a correlation id. Only integral
// numbers qualify; strings, fractions and out-of-range values do not.
func IntID(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToID(f)
	case float64:
		return floatToID(n)
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	default:
		return 0, false
	}
}

func floatToID(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// IsInteger reports whether a numeric value has no fractional part.
func IsInteger(v any) bool {
	switch n := v.(type) {
	case json.Number:
		s := string(n)
		if !strings.ContainsAny(s, ".eE") {
			return true
		}
		f, err := strconv.ParseFloat(s, 64)
		return err == nil && !math.IsInf(f, 0) && f == math.Trunc(f)
	case float64:
		return !math.IsInf(n, 0) && !math.IsNaN(n) && n == math.Trunc(n)
	case float32:
		f := float64(n)
		return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
	case int, int64, int32, uint, uint64, uint32:
		return true
	default:
		return false
	}
}

// Float returns a numeric value as float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

// IDString renders an id member the way a user would type it: numbers and
// strings verbatim, null as "null". Other kinds are not ids.
func IDString(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "null", true
	case string:
		return id, true
	case json.Number:
		return id.String(), true
	}
	if f, ok := Float(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}
