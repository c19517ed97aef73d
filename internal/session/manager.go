package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/rpcscope/internal/buffer"
	"github.com/danmuck/rpcscope/internal/correlate"
	"github.com/danmuck/rpcscope/internal/jsonrpc"
	"github.com/danmuck/rpcscope/internal/message"
	"github.com/rs/zerolog"
)

var (
	ErrTransportFactoryRequired = errors.New("session: transport factory required")
	ErrInvalidFastPingInterval  = errors.New("session: fast ping interval must be positive")
)

// Log texts of synthetic entries.
const (
	textNotConnected   = "Not connected to WebSocket"
	textConnected      = "Connected successfully"
	textClosed         = "Connection closed"
	textTransportError = "WebSocket error occurred"
	textEmptyBatch     = "batch must not be empty"
)

// BatchRequest is one element of SendBatch.
type BatchRequest struct {
	Method string
	Params any
}

// Manager owns one JSON-RPC session: the transport, the connection state
// machine, reconnect and fast-ping timers, the pending correlation maps and
// the bounded message log.
//
// Every operation and every transport or timer callback is a step. Steps run
// one at a time in arrival order, so the log, the pending maps and the state
// never see interleaved mutations. Operations return without blocking on the
// network; their effects are observed through the log and state.
type Manager struct {
	clock          Clock
	newID          func() string
	factory        TransportFactory
	offlineFactory TransportFactory
	reconnect      ReconnectConfig
	engine         correlate.Engine
	log            zerolog.Logger
	observers      []Observer

	exec executor

	mu      sync.Mutex
	url     string
	offline bool
	state   State
	entries []message.Entry
	policy  buffer.Policy
	pending *correlate.Pending
	nextID  int64

	transport     Transport
	generation    uint64
	connOffline   bool
	autoReconnect bool
	attempt       int
	reconnectT    Timer
	reconnectSeq  uint64

	fastPing      FastPingConfig
	fastPingT     Timer
	fastPingEvery time.Duration
	fastPingSeq   uint64

	closed bool
	events []func()
}

// NewManager builds a disconnected Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Factory == nil && cfg.OfflineFactory == nil {
		return nil, ErrTransportFactoryRequired
	}
	if cfg.FastPing.Interval < 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidFastPingInterval, cfg.FastPing.Interval)
	}
	cfg = cfg.WithDefaults()
	return &Manager{
		clock:          cfg.Clock,
		newID:          cfg.NewID,
		factory:        cfg.Factory,
		offlineFactory: cfg.OfflineFactory,
		reconnect:      cfg.Reconnect,
		engine:         correlate.Engine{Mode: cfg.MatchMode},
		log:            *cfg.Logger,
		observers:      append([]Observer(nil), cfg.Observers...),
		url:            cfg.URL,
		offline:        cfg.Offline,
		state:          StateDisconnected,
		policy:         cfg.Buffer,
		pending:        correlate.NewPending(),
		nextID:         1,
		fastPing:       cfg.FastPing,
	}, nil
}

// step runs fn as one serialized step and delivers the observer events it
// queued once the lock is released.
func (m *Manager) step(fn func()) {
	m.exec.submit(func() {
		m.mu.Lock()
		fn()
		events := m.events
		m.events = nil
		m.mu.Unlock()
		for _, ev := range events {
			ev()
		}
	})
}

func (m *Manager) emit(fn func(o Observer)) {
	if len(m.observers) == 0 {
		return
	}
	m.events = append(m.events, func() {
		for _, o := range m.observers {
			fn(o)
		}
	})
}

// Connect opens a transport unless one is already connecting or connected.
func (m *Manager) Connect() {
	m.step(m.connectLocked)
}

// Disconnect disables automatic reconnect, cancels a scheduled reconnect and
// closes the transport. The transport's close notification still updates
// the state. Safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.step(func() {
		m.autoReconnect = false
		m.cancelReconnectLocked()
		if m.transport == nil {
			return
		}
		m.log.Debug().Str("url", m.url).Msg("disconnect requested")
		if err := m.transport.Close(); err != nil {
			m.log.Debug().Err(err).Msg("transport close")
		}
	})
}

// Send issues a request and registers it for correlation.
func (m *Manager) Send(method string, params any) {
	m.step(func() { m.sendLocked(method, params) })
}

// SendPing is Send("ping", {}).
func (m *Manager) SendPing() {
	m.Send(message.MethodPing, map[string]any{})
}

// Notify sends a notification. Nothing is registered for correlation.
func (m *Manager) Notify(method string, params any) {
	m.step(func() {
		if !m.writableLocked() {
			m.appendTextLocked(message.KindError, textNotConnected)
			return
		}
		req, err := jsonrpc.NewNotification(method, params)
		if err != nil {
			m.appendTextLocked(message.KindError, "Failed to send: "+err.Error())
			return
		}
		frame, payload, err := encodeFrame(jsonrpc.EncodeRequest(req))
		if err != nil {
			m.appendTextLocked(message.KindError, "Failed to send: "+err.Error())
			return
		}
		m.appendLocked(message.Entry{
			ID:             m.newID(),
			Kind:           message.KindSent,
			CreatedAt:      m.clock.Now(),
			Payload:        payload,
			Method:         method,
			IsNotification: true,
		})
		m.writeLocked(frame, "Failed to send: ")
	})
}

// SendBatch issues reqs as one array frame correlated as a unit.
func (m *Manager) SendBatch(reqs []BatchRequest) {
	reqs = append([]BatchRequest(nil), reqs...)
	m.step(func() { m.sendBatchLocked(reqs) })
}

// InjectFrame processes text as if the transport had delivered it.
func (m *Manager) InjectFrame(text string) {
	m.step(func() { m.ingestLocked(text) })
}

// ClearLog empties the log and abandons every pending correlation.
func (m *Manager) ClearLog() {
	m.step(func() {
		m.entries = nil
		m.pending.Clear()
	})
}

// SetPolicy replaces the buffer policy and re-trims the log.
func (m *Manager) SetPolicy(p buffer.Policy) {
	m.step(func() { m.setPolicyLocked(p) })
}

// SetBufferLimit changes the log limit.
func (m *Manager) SetBufferLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: got %d", buffer.ErrInvalidLimit, limit)
	}
	m.step(func() {
		p, err := m.policy.WithLimit(limit)
		if err == nil {
			m.setPolicyLocked(p)
		}
	})
	return nil
}

// SetDropChunkSize changes the forced-drop chunk.
func (m *Manager) SetDropChunkSize(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: got %d", buffer.ErrInvalidDropChunk, n)
	}
	m.step(func() {
		p, err := m.policy.WithDropChunkSize(n)
		if err == nil {
			m.setPolicyLocked(p)
		}
	})
	return nil
}

func (m *Manager) SetPreferPending(v bool) {
	m.step(func() { m.setPolicyLocked(m.policy.WithPreferPending(v)) })
}

func (m *Manager) SetPreferBatches(v bool) {
	m.step(func() { m.setPolicyLocked(m.policy.WithPreferBatches(v)) })
}

// SetFastPing toggles the periodic ping loop.
func (m *Manager) SetFastPing(enabled bool) {
	m.step(func() {
		m.fastPing.Enabled = enabled
		m.syncFastPingLocked()
	})
}

// SetFastPingInterval changes the ping period; a running loop restarts with
// the new period.
func (m *Manager) SetFastPingInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidFastPingInterval, d)
	}
	m.step(func() {
		m.fastPing.Interval = d
		m.syncFastPingLocked()
	})
	return nil
}

// SetURL changes the endpoint used by the next connect.
func (m *Manager) SetURL(url string) {
	m.step(func() { m.url = strings.TrimSpace(url) })
}

// SetOffline selects the offline transport for the next connect.
func (m *Manager) SetOffline(offline bool) {
	m.step(func() { m.offline = offline })
}

// Close tears the Manager down: timers are cancelled, the transport is
// closed without further processing of its events, and later operations are
// ignored.
func (m *Manager) Close() {
	m.step(func() {
		if m.closed {
			return
		}
		m.closed = true
		m.autoReconnect = false
		m.cancelReconnectLocked()
		m.stopFastPingLocked()
		if m.transport != nil {
			t := m.transport
			m.detachLocked()
			if err := t.Close(); err != nil {
				m.log.Debug().Err(err).Msg("transport close")
			}
		}
		m.setStateLocked(StateDisconnected)
	})
}

// Snapshot accessors. They read under the lock and may be called from any
// goroutine, including observers.

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Entries returns a copy of the log.
func (m *Manager) Entries() []message.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]message.Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Clone()
	}
	return out
}

func (m *Manager) Policy() buffer.Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

func (m *Manager) FastPing() FastPingConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fastPing
}

func (m *Manager) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

func (m *Manager) Offline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offline
}

// PendingCounts reports in-flight requests and batches.
func (m *Manager) PendingCounts() (requests, batches int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Len()
}

// --- steps; m.mu is held ---

func (m *Manager) connectLocked() {
	if m.closed {
		return
	}
	if m.state == StateConnecting || m.state == StateConnected {
		return
	}
	factory := m.factory
	if m.offline {
		factory = m.offlineFactory
	}
	m.connOffline = m.offline
	m.autoReconnect = true
	m.cancelReconnectLocked()
	if m.transport != nil {
		// An errored transport that never closed is replaced.
		old := m.transport
		m.detachLocked()
		_ = old.Close()
	}
	m.setStateLocked(StateConnecting)
	if m.connOffline {
		m.appendTextLocked(message.KindSystem, "Starting offline mode")
	} else {
		m.appendTextLocked(message.KindSystem, "Connecting to "+m.url)
	}
	m.log.Info().Str("url", m.url).Bool("offline", m.connOffline).Int("attempt", m.attempt).Msg("connecting")

	if factory == nil {
		m.failConnectLocked(ErrTransportFactoryRequired)
		return
	}
	m.generation++
	t, err := factory(m.url, m.handlers(m.generation))
	if err != nil {
		m.failConnectLocked(err)
		return
	}
	m.transport = t
}

func (m *Manager) failConnectLocked(err error) {
	m.log.Warn().Err(err).Str("url", m.url).Msg("transport construction failed")
	m.setStateLocked(StateError)
	m.appendTextLocked(message.KindError, "Failed to connect: "+err.Error())
}

// handlers binds transport notifications to generation gen; notifications
// from a replaced or detached transport are dropped.
func (m *Manager) handlers(gen uint64) Handlers {
	current := func(fn func()) func() {
		return func() {
			if m.generation == gen && !m.closed {
				fn()
			}
		}
	}
	return Handlers{
		OnOpen: func() {
			m.step(current(m.openLocked))
		},
		OnMessage: func(text string) {
			m.step(current(func() { m.ingestLocked(text) }))
		},
		OnError: func(err error) {
			m.step(current(func() { m.transportErrorLocked(err) }))
		},
		OnClose: func() {
			m.step(current(m.closeLocked))
		},
	}
}

func (m *Manager) openLocked() {
	m.attempt = 0
	m.setStateLocked(StateConnected)
	m.appendTextLocked(message.KindSystem, textConnected)
	m.log.Info().Str("url", m.url).Msg("connected")
}

func (m *Manager) transportErrorLocked(err error) {
	m.setStateLocked(StateError)
	text := textTransportError
	if err != nil {
		text += ": " + err.Error()
	}
	m.appendTextLocked(message.KindError, text)
	m.log.Warn().Err(err).Str("url", m.url).Msg("transport error")
}

func (m *Manager) closeLocked() {
	m.transport = nil
	m.generation++
	m.setStateLocked(StateDisconnected)
	m.appendTextLocked(message.KindSystem, textClosed)
	m.pending.Clear()
	m.log.Info().Str("url", m.url).Msg("connection closed")

	if !m.autoReconnect || m.connOffline {
		return
	}
	attempt := m.attempt
	delay := NextReconnectDelay(m.reconnect, attempt)
	m.attempt = attempt + 1
	m.reconnectSeq++
	seq := m.reconnectSeq
	m.reconnectT = m.clock.AfterFunc(delay, func() {
		m.step(func() {
			if m.reconnectSeq != seq || !m.autoReconnect {
				return
			}
			m.reconnectT = nil
			m.connectLocked()
		})
	})
	m.log.Info().Int("attempt", attempt+1).Dur("delay", delay).Msg("reconnect scheduled")
	m.emit(func(o Observer) { o.ReconnectScheduled(attempt+1, delay) })
}

func (m *Manager) cancelReconnectLocked() {
	m.reconnectSeq++
	if m.reconnectT != nil {
		m.reconnectT.Stop()
		m.reconnectT = nil
	}
}

// detachLocked forgets the current transport so its notifications are
// dropped.
func (m *Manager) detachLocked() {
	m.transport = nil
	m.generation++
}

func (m *Manager) writableLocked() bool {
	return m.state == StateConnected && m.transport != nil
}

func (m *Manager) sendLocked(method string, params any) {
	if !m.writableLocked() {
		m.appendTextLocked(message.KindError, textNotConnected)
		return
	}
	id := m.nextID
	req, err := jsonrpc.NewRequest(method, params, id)
	if err != nil {
		m.appendTextLocked(message.KindError, "Failed to send: "+err.Error())
		return
	}
	frame, payload, err := encodeFrame(jsonrpc.EncodeRequest(req))
	if err != nil {
		m.appendTextLocked(message.KindError, "Failed to send: "+err.Error())
		return
	}
	m.nextID++

	now := m.clock.Now()
	entryID := m.newID()
	m.pending.AddRequest(correlate.PendingRequest{CorrelationID: id, IssuedAt: now, EntryID: entryID})
	m.appendLocked(message.Entry{
		ID:            entryID,
		Kind:          message.KindSent,
		CreatedAt:     now,
		Payload:       payload,
		Method:        method,
		CorrelationID: message.Int64(id),
		Pending:       true,
	})
	m.writeLocked(frame, "Failed to send: ")
}

func (m *Manager) sendBatchLocked(reqs []BatchRequest) {
	if !m.writableLocked() {
		m.appendTextLocked(message.KindError, textNotConnected)
		return
	}
	if len(reqs) == 0 {
		m.appendTextLocked(message.KindError, textEmptyBatch)
		return
	}
	wire := make([]jsonrpc.Request, 0, len(reqs))
	ids := make([]int64, 0, len(reqs))
	for i, r := range reqs {
		id := m.nextID + int64(i)
		req, err := jsonrpc.NewRequest(r.Method, r.Params, id)
		if err != nil {
			m.appendTextLocked(message.KindError, "Failed to send batch: "+err.Error())
			return
		}
		wire = append(wire, req)
		ids = append(ids, id)
	}
	frame, payload, err := encodeFrame(jsonrpc.EncodeBatch(wire))
	if err != nil {
		m.appendTextLocked(message.KindError, "Failed to send batch: "+err.Error())
		return
	}
	m.nextID += int64(len(reqs))

	now := m.clock.Now()
	batchID := m.newID()
	m.pending.AddBatch(correlate.PendingBatch{
		BatchID:        batchID,
		IssuedAt:       now,
		CorrelationIDs: ids,
		EntryID:        batchID,
	})
	m.appendLocked(message.Entry{
		ID:        batchID,
		Kind:      message.KindSent,
		CreatedAt: now,
		Payload:   payload,
		Method:    message.MethodBatchRequest,
		Pending:   true,
		IsBatch:   true,
		BatchSize: len(reqs),
	})
	m.writeLocked(frame, "Failed to send batch: ")
}

// writeLocked writes frame; a failure is logged as an error entry and any
// pending registration stays in place.
func (m *Manager) writeLocked(frame, failPrefix string) {
	if err := m.transport.Send(frame); err != nil {
		m.log.Warn().Err(err).Msg("send failed")
		m.appendTextLocked(message.KindError, failPrefix+err.Error())
	}
}

func encodeFrame(frame string, err error) (string, any, error) {
	if err != nil {
		return "", nil, err
	}
	payload, err := jsonrpc.DecodeString(frame)
	if err != nil {
		return "", nil, err
	}
	return frame, payload, nil
}

func (m *Manager) ingestLocked(text string) {
	res := m.engine.ProcessFrame(text, m.pending, m.clock.Now(), m.newID())
	if res.Resolved != nil {
		m.resolveLocked(*res.Resolved)
	}
	m.appendLocked(res.Entry)
}

// resolveLocked patches the sent entry named by r, if it is still in the log.
func (m *Manager) resolveLocked(r correlate.Resolution) {
	for i := range m.entries {
		if m.entries[i].ID == r.EntryID {
			m.entries[i].Pending = false
			m.entries[i].LinkedEntryID = r.LinkEntryID
			return
		}
	}
}

func (m *Manager) appendTextLocked(kind message.Kind, text string) {
	m.appendLocked(message.Entry{
		ID:        m.newID(),
		Kind:      kind,
		CreatedAt: m.clock.Now(),
		Payload:   message.Text(text),
	})
}

func (m *Manager) appendLocked(e message.Entry) {
	e.Annotate()
	var ev buffer.Eviction
	m.entries, ev = buffer.AppendCounted(m.entries, e, m.policy)
	appended := e.Clone()
	m.emit(func(o Observer) { o.EntryAppended(appended) })
	if ev.Total() > 0 {
		m.emit(func(o Observer) { o.EntriesEvicted(ev) })
	}
}

func (m *Manager) setPolicyLocked(p buffer.Policy) {
	m.policy = p
	var ev buffer.Eviction
	m.entries, ev = buffer.TrimCounted(m.entries, p)
	m.log.Debug().Stringer("policy", p).Int("evicted", ev.Total()).Msg("buffer policy changed")
	if ev.Total() > 0 {
		m.emit(func(o Observer) { o.EntriesEvicted(ev) })
	}
}

func (m *Manager) setStateLocked(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.syncFastPingLocked()
	m.emit(func(o Observer) { o.StateChanged(from, to) })
}

// syncFastPingLocked keeps exactly one ping loop alive while fast ping is
// enabled and the session is connected, and none otherwise.
func (m *Manager) syncFastPingLocked() {
	want := m.fastPing.Enabled && m.state == StateConnected && !m.closed
	if !want {
		m.stopFastPingLocked()
		return
	}
	if m.fastPingT != nil && m.fastPingEvery == m.fastPing.Interval {
		return
	}
	m.stopFastPingLocked()
	m.fastPingSeq++
	seq := m.fastPingSeq
	m.fastPingEvery = m.fastPing.Interval
	m.fastPingT = m.clock.Every(m.fastPing.Interval, func() {
		m.step(func() {
			if m.fastPingSeq != seq {
				return
			}
			m.sendLocked(message.MethodPing, map[string]any{})
		})
	})
	m.log.Debug().Dur("interval", m.fastPing.Interval).Msg("fast ping started")
}

func (m *Manager) stopFastPingLocked() {
	m.fastPingSeq++
	if m.fastPingT != nil {
		m.fastPingT.Stop()
		m.fastPingT = nil
		m.log.Debug().Msg("fast ping stopped")
	}
}
