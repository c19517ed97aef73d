package buffer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLimit     = errors.New("buffer: limit must be greater than zero")
	ErrInvalidDropChunk = errors.New("buffer: drop chunk size must be at least one")
)

const (
	DefaultLimit         = 2000
	DefaultDropChunkSize = 1
)

// Policy bounds the message log. Values are immutable once built; callers
// change the policy by building a new one.
type Policy struct {
	limit         int
	preferPending bool
	preferBatches bool
	dropChunkSize int
}

// DefaultPolicy keeps 2000 entries and protects pending requests.
func DefaultPolicy() Policy {
	return Policy{
		limit:         DefaultLimit,
		preferPending: true,
		preferBatches: false,
		dropChunkSize: DefaultDropChunkSize,
	}
}

// NewPolicy validates and builds a policy.
func NewPolicy(limit int, preferPending, preferBatches bool, dropChunkSize int) (Policy, error) {
	if limit <= 0 {
		return Policy{}, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	if dropChunkSize < 1 {
		return Policy{}, fmt.Errorf("%w: got %d", ErrInvalidDropChunk, dropChunkSize)
	}
	return Policy{
		limit:         limit,
		preferPending: preferPending,
		preferBatches: preferBatches,
		dropChunkSize: dropChunkSize,
	}, nil
}

func (p Policy) Limit() int          { return p.limit }
func (p Policy) PreferPending() bool { return p.preferPending }
func (p Policy) PreferBatches() bool { return p.preferBatches }
func (p Policy) DropChunkSize() int  { return p.dropChunkSize }

// WithLimit returns a copy of p with a new limit.
func (p Policy) WithLimit(limit int) (Policy, error) {
	return NewPolicy(limit, p.preferPending, p.preferBatches, p.dropChunkSize)
}

// WithPreferPending returns a copy of p with the pending preference set.
func (p Policy) WithPreferPending(v bool) Policy {
	p.preferPending = v
	return p
}

// WithPreferBatches returns a copy of p with the batch preference set.
func (p Policy) WithPreferBatches(v bool) Policy {
	p.preferBatches = v
	return p
}

// WithDropChunkSize returns a copy of p with a new forced-drop chunk.
func (p Policy) WithDropChunkSize(n int) (Policy, error) {
	return NewPolicy(p.limit, p.preferPending, p.preferBatches, n)
}

func (p Policy) String() string {
	return fmt.Sprintf("limit=%d prefer_pending=%t prefer_batches=%t drop_chunk=%d",
		p.limit, p.preferPending, p.preferBatches, p.dropChunkSize)
}
