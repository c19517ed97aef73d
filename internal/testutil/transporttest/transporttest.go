package transporttest

import (
	"sync"

	"github.com/danmuck/rpcscope/internal/session"
)

// Factory records every transport a session opens.
type Factory struct {
	mu         sync.Mutex
	urls       []string
	transports []*Transport
	// Err makes construction fail.
	Err error
}

// New is a session.TransportFactory.
func (f *Factory) New(url string, h session.Handlers) (session.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.Err != nil {
		return nil, f.Err
	}
	t := &Transport{url: url, h: h}
	f.transports = append(f.transports, t)
	return t, nil
}

// Calls counts factory invocations, failed ones included.
func (f *Factory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

func (f *Factory) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// Last returns the most recently opened transport, or nil.
func (f *Factory) Last() *Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transports) == 0 {
		return nil
	}
	return f.transports[len(f.transports)-1]
}

// Transport is a scripted session.Transport. Tests drive its notifications
// explicitly; Close reports a close the way a socket does.
type Transport struct {
	mu      sync.Mutex
	url     string
	h       session.Handlers
	open    bool
	closed  bool
	sent    []string
	SendErr error
}

func (t *Transport) URL() string { return t.url }

func (t *Transport) Send(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || !t.open {
		return session.ErrTransportNotOpen
	}
	if t.SendErr != nil {
		return t.SendErr
	}
	t.sent = append(t.sent, text)
	return nil
}

func (t *Transport) Close() error {
	if !t.markClosed() {
		return nil
	}
	t.h.OnClose()
	return nil
}

func (t *Transport) markClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.closed = true
	t.open = false
	return true
}

// Open reports the transport as open.
func (t *Transport) Open() {
	t.mu.Lock()
	t.open = true
	t.mu.Unlock()
	t.h.OnOpen()
}

// Deliver hands text to the session as a received frame.
func (t *Transport) Deliver(text string) {
	t.h.OnMessage(text)
}

// Fail reports a transport error without closing.
func (t *Transport) Fail(err error) {
	t.h.OnError(err)
}

// Drop closes the transport from the remote side.
func (t *Transport) Drop() {
	_ = t.Close()
}

// Sent returns the frames written so far.
func (t *Transport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
