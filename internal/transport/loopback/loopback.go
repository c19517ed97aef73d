package loopback

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
	"github.com/danmuck/rpcscope/internal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config defines the simulated peer.
type Config struct {
	OpenDelay time.Duration
	// Replies to a single request arrive after ReplyMin plus up to ReplySpread.
	ReplyMin    time.Duration
	ReplySpread time.Duration
	// Batch replies use their own window.
	BatchReplyMin    time.Duration
	BatchReplySpread time.Duration
	// ErrorRate is the chance, per reply, of an internal error instead of a
	// result.
	ErrorRate float64
	// NotificationInterval of zero or less disables the unsolicited stream.
	NotificationInterval time.Duration

	Clock  session.Clock
	Rand   *rand.Rand
	Logger *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		OpenDelay:            800 * time.Millisecond,
		ReplyMin:             300 * time.Millisecond,
		ReplySpread:          700 * time.Millisecond,
		BatchReplyMin:        400 * time.Millisecond,
		BatchReplySpread:     800 * time.Millisecond,
		ErrorRate:            0.15,
		NotificationInterval: 1500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = session.SystemClock{}
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.Logger == nil {
		l := log.Logger.With().Str("component", "loopback").Logger()
		c.Logger = &l
	}
	return c
}

// NewFactory returns a session.TransportFactory whose transports answer
// locally instead of dialing. The url is recorded but never contacted.
func NewFactory(cfg Config) session.TransportFactory {
	cfg = cfg.withDefaults()
	var rngMu sync.Mutex
	return func(url string, h session.Handlers) (session.Transport, error) {
		t := &Transport{
			cfg:   cfg,
			h:     h,
			rngMu: &rngMu,
			log:   cfg.Logger.With().Str("url", url).Logger(),
		}
		t.mu.Lock()
		t.scheduleLocked(cfg.OpenDelay, t.open)
		t.mu.Unlock()
		return t, nil
	}
}

// Transport simulates a server: it opens after a delay, answers every
// request with a result or an internal error, and streams notifications.
type Transport struct {
	cfg   Config
	h     session.Handlers
	rngMu *sync.Mutex
	log   zerolog.Logger

	mu     sync.Mutex
	opened bool
	closed bool
	seq    int
	timers map[int]session.Timer
	ticker session.Timer
}

// scheduleLocked runs fn once after d, forgetting the timer when it fires.
func (t *Transport) scheduleLocked(d time.Duration, fn func()) {
	if t.timers == nil {
		t.timers = make(map[int]session.Timer)
	}
	t.seq++
	seq := t.seq
	t.timers[seq] = t.cfg.Clock.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.timers, seq)
		t.mu.Unlock()
		fn()
	})
}

func (t *Transport) open() {
	t.mu.Lock()
	if t.closed || t.opened {
		t.mu.Unlock()
		return
	}
	t.opened = true
	if t.cfg.NotificationInterval > 0 {
		t.ticker = t.cfg.Clock.Every(t.cfg.NotificationInterval, t.notify)
	}
	t.mu.Unlock()

	t.log.Debug().Msg("loopback open")
	t.h.OnOpen()
}

// Send accepts one request or batch frame and schedules the reply.
// Notifications and unparsable frames are accepted and never answered.
func (t *Transport) Send(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return session.ErrTransportClosed
	}
	if !t.opened {
		return session.ErrTransportNotOpen
	}

	payload, err := jsonrpc.DecodeString(text)
	if err != nil {
		t.log.Debug().Err(err).Msg("ignoring unparsable frame")
		return nil
	}

	var (
		reply any
		delay time.Duration
	)
	if items, ok := payload.([]any); ok {
		var out []any
		for _, item := range items {
			if id, ok := jsonrpc.Field(item, "id"); ok && id != nil {
				out = append(out, t.response(item, id))
			}
		}
		if len(out) == 0 {
			return nil
		}
		reply = out
		delay = t.cfg.BatchReplyMin + t.spread(t.cfg.BatchReplySpread)
	} else {
		id, ok := jsonrpc.Field(payload, "id")
		if !ok || id == nil {
			return nil
		}
		reply = t.response(payload, id)
		delay = t.cfg.ReplyMin + t.spread(t.cfg.ReplySpread)
	}

	raw, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	frame := string(raw)
	t.scheduleLocked(delay, func() { t.deliver(frame) })
	return nil
}

// Close stops every timer and reports OnClose once.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	timers := t.timers
	t.timers = nil
	ticker := t.ticker
	t.ticker = nil
	t.mu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}
	if ticker != nil {
		ticker.Stop()
	}
	t.log.Debug().Msg("loopback closed")
	t.h.OnClose()
	return nil
}

func (t *Transport) deliver(frame string) {
	if !t.live() {
		return
	}
	t.h.OnMessage(frame)
}

func (t *Transport) notify() {
	if !t.live() {
		return
	}
	var n jsonrpc.Request
	var err error
	t.rngMu.Lock()
	roll := t.cfg.Rand.Float64()
	value := t.cfg.Rand.Float64()
	t.rngMu.Unlock()
	switch {
	case roll < 0.6:
		n, err = jsonrpc.NewNotification("stream.data", map[string]any{"t": t.cfg.Clock.Now().UnixMilli()})
	case roll < 0.85:
		n, err = jsonrpc.NewNotification("notification", map[string]any{"n": value})
	default:
		return
	}
	if err != nil {
		t.log.Error().Err(err).Msg("encode notification")
		return
	}
	frame, err := jsonrpc.EncodeRequest(n)
	if err != nil {
		t.log.Error().Err(err).Msg("encode notification")
		return
	}
	t.h.OnMessage(frame)
}

func (t *Transport) live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opened && !t.closed
}

// response answers ping and echo the way the reference server does; any
// other method gets {"ok":true}. Every answer may instead fail at ErrorRate.
func (t *Transport) response(req, id any) map[string]any {
	t.rngMu.Lock()
	failed := t.cfg.Rand.Float64() < t.cfg.ErrorRate
	t.rngMu.Unlock()
	if failed {
		return map[string]any{
			"jsonrpc": jsonrpc.Version,
			"error":   map[string]any{"code": jsonrpc.CodeInternalError, "message": "Internal error"},
			"id":      id,
		}
	}
	var result any = map[string]any{"ok": true}
	switch method, _ := jsonrpc.StringField(req, "method"); method {
	case "ping":
		result = map[string]any{"pong": true}
	case "echo":
		result, _ = jsonrpc.Field(req, "params")
	}
	return map[string]any{
		"jsonrpc": jsonrpc.Version,
		"result":  result,
		"id":      id,
	}
}

func (t *Transport) spread(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	t.rngMu.Lock()
	defer t.rngMu.Unlock()
	return time.Duration(t.cfg.Rand.Float64() * float64(d))
}
