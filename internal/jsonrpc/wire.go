package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParams rejects params that do not encode to an object or array.
var ErrInvalidParams = errors.New("jsonrpc: params must be an object or array")

// Request is the outgoing request shape. ID is nil for notifications.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *int64          `json:"id,omitempty"`
}

// NewRequest builds a request carrying id. params may be nil, a JSON object
// or a JSON array (any Go value that marshals to one of those).
func NewRequest(method string, params any, id int64) (Request, error) {
	raw, err := EncodeParams(params)
	if err != nil {
		return Request{}, err
	}
	return Request{JSONRPC: Version, Method: method, Params: raw, ID: &id}, nil
}

// NewNotification builds a request without an id.
func NewNotification(method string, params any) (Request, error) {
	raw, err := EncodeParams(params)
	if err != nil {
		return Request{}, err
	}
	return Request{JSONRPC: Version, Method: method, Params: raw}, nil
}

// EncodeParams marshals params for the wire. nil yields no params member;
// anything but an object or array fails with ErrInvalidParams.
func EncodeParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, ok := params.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("jsonrpc: encode params: %w", err)
		}
	}
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "" || trimmed == "null":
		return nil, nil
	case trimmed[0] == '{' || trimmed[0] == '[':
		return json.RawMessage(trimmed), nil
	default:
		return nil, fmt.Errorf("%w: got %s", ErrInvalidParams, trimmed)
	}
}

// EncodeRequest returns the text frame for one request.
func EncodeRequest(req Request) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("jsonrpc: encode request: %w", err)
	}
	return string(raw), nil
}

// EncodeBatch returns the text frame for a batch of requests.
func EncodeBatch(reqs []Request) (string, error) {
	if reqs == nil {
		reqs = []Request{}
	}
	raw, err := json.Marshal(reqs)
	if err != nil {
		return "", fmt.Errorf("jsonrpc: encode batch: %w", err)
	}
	return string(raw), nil
}
