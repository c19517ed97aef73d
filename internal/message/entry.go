package message

import (
	"encoding/json"
	"time"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
)

// Kind is the direction/category of a log entry.
type Kind string

const (
	KindSent     Kind = "sent"
	KindReceived Kind = "received"
	KindError    Kind = "error"
	KindSystem   Kind = "system"
)

// Method labels assigned by the session engine.
const (
	MethodBatchRequest      = "batch.request"
	MethodBatchResponse     = "batch.response"
	MethodBatchNotification = "batch.notification"
	MethodResponse          = "response"
	MethodNotification      = "notification"
	MethodPing              = "ping"
)

// Entry is one record of the message log. Only Pending and LinkedEntryID
// change after an entry is appended.
type Entry struct {
	ID                 string    `json:"id"`
	Kind               Kind      `json:"kind"`
	CreatedAt          time.Time `json:"createdAt"`
	Payload            any       `json:"payload"`
	Method             string    `json:"method,omitempty"`
	CorrelationID      *int64    `json:"correlationId,omitempty"`
	RoundTripMs        *int64    `json:"roundTripMs,omitempty"`
	Pending            bool      `json:"pending,omitempty"`
	IsNotification     bool      `json:"isNotification,omitempty"`
	IsBatch            bool      `json:"isBatch,omitempty"`
	BatchSize          int       `json:"batchSize,omitempty"`
	LinkedEntryID      string    `json:"linkedEntryId,omitempty"`
	ValidationErrors   []string  `json:"validationErrors,omitempty"`
	ValidationWarnings []string  `json:"validationWarnings,omitempty"`
}

// Text builds the {"message": text} payload used by system and error entries.
func Text(text string) map[string]any {
	return map[string]any{"message": text}
}

// PayloadText returns the message member of a system/error payload.
func (e Entry) PayloadText() string {
	s, _ := jsonrpc.StringField(e.Payload, "message")
	return s
}

// ValidationRole is the role an entry's payload is checked against: outgoing
// traffic and incoming notifications are requests, everything else received
// is a response. ok is false for entries that are not protocol traffic.
func (e Entry) ValidationRole() (jsonrpc.Role, bool) {
	switch e.Kind {
	case KindSent:
		return jsonrpc.RoleRequest, true
	case KindReceived:
		if e.IsNotification {
			return jsonrpc.RoleRequest, true
		}
		return jsonrpc.RoleResponse, true
	default:
		return "", false
	}
}

// Annotate runs the validator for the entry's role and attaches the findings.
func (e *Entry) Annotate() {
	role, ok := e.ValidationRole()
	if !ok {
		return
	}
	res := jsonrpc.Validate(e.Payload, role)
	e.ValidationErrors = res.Errors
	e.ValidationWarnings = res.Warnings
}

// PayloadJSON renders the payload for display and text search. Raw frames are
// stored as Go strings and are returned verbatim.
func (e Entry) PayloadJSON() string {
	if s, ok := e.Payload.(string); ok {
		return s
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Clone copies the slice headers of an entry so callers can hold it without
// observing later patches.
func (e Entry) Clone() Entry {
	if e.CorrelationID != nil {
		v := *e.CorrelationID
		e.CorrelationID = &v
	}
	if e.RoundTripMs != nil {
		v := *e.RoundTripMs
		e.RoundTripMs = &v
	}
	if e.ValidationErrors != nil {
		e.ValidationErrors = append([]string(nil), e.ValidationErrors...)
	}
	if e.ValidationWarnings != nil {
		e.ValidationWarnings = append([]string(nil), e.ValidationWarnings...)
	}
	return e
}

// Int64 returns a pointer to v, for the optional numeric fields.
func Int64(v int64) *int64 {
	return &v
}
