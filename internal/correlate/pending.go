package correlate

import (
	"sort"
	"strings"
	"time"
)

// PendingRequest tracks one single request awaiting its response.
type PendingRequest struct {
	CorrelationID int64
	IssuedAt      time.Time
	EntryID       string
}

// PendingBatch tracks one batch awaiting a response array.
type PendingBatch struct {
	BatchID        string
	IssuedAt       time.Time
	CorrelationIDs []int64
	// EntryID is the sent batch entry the response links back to.
	EntryID string
}

// Pending stores in-flight requests by correlation id and batches by batch
// id. It is not safe for concurrent use; the owning session serializes access.
type Pending struct {
	requests map[int64]PendingRequest
	batches  map[string]PendingBatch
}

func NewPending() *Pending {
	return &Pending{
		requests: make(map[int64]PendingRequest),
		batches:  make(map[string]PendingBatch),
	}
}

func (p *Pending) AddRequest(item PendingRequest) {
	p.requests[item.CorrelationID] = item
}

func (p *Pending) AddBatch(item PendingBatch) {
	key := strings.TrimSpace(item.BatchID)
	if key == "" {
		return
	}
	item.CorrelationIDs = append([]int64(nil), item.CorrelationIDs...)
	p.batches[key] = item
}

func (p *Pending) Request(id int64) (PendingRequest, bool) {
	item, ok := p.requests[id]
	return item, ok
}

func (p *Pending) Batch(batchID string) (PendingBatch, bool) {
	item, ok := p.batches[strings.TrimSpace(batchID)]
	return item, ok
}

func (p *Pending) RemoveRequest(id int64) {
	delete(p.requests, id)
}

func (p *Pending) RemoveBatch(batchID string) {
	delete(p.batches, strings.TrimSpace(batchID))
}

// Requests lists pending requests ordered by correlation id.
func (p *Pending) Requests() []PendingRequest {
	out := make([]PendingRequest, 0, len(p.requests))
	for _, item := range p.requests {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CorrelationID < out[j].CorrelationID
	})
	return out
}

// Batches lists pending batches oldest first, ties broken by batch id, which
// is the order batch responses are matched in.
func (p *Pending) Batches() []PendingBatch {
	out := make([]PendingBatch, 0, len(p.batches))
	for _, item := range p.batches {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.Before(out[j].IssuedAt)
		}
		return out[i].BatchID < out[j].BatchID
	})
	return out
}

func (p *Pending) Len() (requests, batches int) {
	return len(p.requests), len(p.batches)
}

// Clear abandons every in-flight correlation.
func (p *Pending) Clear() {
	clear(p.requests)
	clear(p.batches)
}
