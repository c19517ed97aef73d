package rpcserver

import (
	"bytes"
	"encoding/json"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is a JSON-RPC response. Result is always present on success,
// as null when there is nothing to return.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      any             `json:"id"`
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

var nullResult = json.RawMessage("null")

// Handle answers one incoming frame. A batch yields one array of the
// responses its members produced; ok is false when nothing should be
// written (notifications, or a batch made only of notifications).
func Handle(frame []byte) (out []byte, ok bool) {
	var batch []json.RawMessage
	if err := json.Unmarshal(frame, &batch); err == nil {
		responses := make([]Response, 0, len(batch))
		for _, item := range batch {
			if resp, ok := handleSingle(item); ok {
				responses = append(responses, resp)
			}
		}
		if len(responses) == 0 {
			return nil, false
		}
		out, err := json.Marshal(responses)
		return out, err == nil
	}
	resp, ok := handleSingle(frame)
	if !ok {
		return nil, false
	}
	out, err := json.Marshal(resp)
	return out, err == nil
}

func handleSingle(raw []byte) (Response, bool) {
	var req request
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return failure(nil, jsonrpc.CodeParseError, "Parse error"), true
	}

	// No id (or a null id) means notification: no response.
	if req.ID == nil {
		return Response{}, false
	}
	if req.JSONRPC != jsonrpc.Version {
		return failure(req.ID, jsonrpc.CodeInvalidRequest, "Invalid Request: jsonrpc must be '2.0'"), true
	}

	switch req.Method {
	case "ping":
		return success(req.ID, json.RawMessage(`{"pong":true}`)), true
	case "echo":
		params := req.Params
		if len(params) == 0 {
			params = nullResult
		}
		return success(req.ID, params), true
	default:
		return failure(req.ID, jsonrpc.CodeMethodNotFound, "Method not found"), true
	}
}

func success(id any, result json.RawMessage) Response {
	return Response{JSONRPC: jsonrpc.Version, Result: result, ID: id}
}

func failure(id any, code int64, msg string) Response {
	return Response{JSONRPC: jsonrpc.Version, Error: &Error{Code: code, Message: msg}, ID: id}
}
