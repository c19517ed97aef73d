package session

import (
	"time"

	"github.com/danmuck/rpcscope/internal/buffer"
	"github.com/danmuck/rpcscope/internal/message"
)

// Observer is notified of Manager activity after each step completes,
// outside the Manager lock. Observers may call Manager methods; operations
// they start run after the current step.
type Observer interface {
	StateChanged(from, to State)
	EntryAppended(e message.Entry)
	EntriesEvicted(ev buffer.Eviction)
	ReconnectScheduled(attempt int, delay time.Duration)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	OnState     func(from, to State)
	OnEntry     func(e message.Entry)
	OnEvict     func(ev buffer.Eviction)
	OnReconnect func(attempt int, delay time.Duration)
}

func (o ObserverFuncs) StateChanged(from, to State) {
	if o.OnState != nil {
		o.OnState(from, to)
	}
}

func (o ObserverFuncs) EntryAppended(e message.Entry) {
	if o.OnEntry != nil {
		o.OnEntry(e)
	}
}

func (o ObserverFuncs) EntriesEvicted(ev buffer.Eviction) {
	if o.OnEvict != nil {
		o.OnEvict(ev)
	}
}

func (o ObserverFuncs) ReconnectScheduled(attempt int, delay time.Duration) {
	if o.OnReconnect != nil {
		o.OnReconnect(attempt, delay)
	}
}
