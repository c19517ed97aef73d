package session

import "errors"

var (
	ErrTransportNotOpen = errors.New("session: transport not open")
	ErrTransportClosed  = errors.New("session: transport closed")
)

// Handlers receives transport notifications. A transport calls OnClose at
// most once, after which it delivers nothing else.
type Handlers struct {
	OnOpen    func()
	OnMessage func(text string)
	OnError   func(err error)
	OnClose   func()
}

// Transport carries whole, ordered text frames. Send fails synchronously
// when the transport is not open.
type Transport interface {
	Send(text string) error
	Close() error
}

// TransportFactory opens a transport to url wired to h. A returned error
// means no transport exists and no handler will fire.
type TransportFactory func(url string, h Handlers) (Transport, error)
