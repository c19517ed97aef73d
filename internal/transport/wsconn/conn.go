package wsconn

import (
	"context"
	"sync"
	"time"

	"github.com/danmuck/rpcscope/internal/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config defines the websocket client transport.
type Config struct {
	SecurityMode     SecurityMode
	TLS              TLSConfig
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadLimit caps one incoming frame, in bytes.
	ReadLimit int64
	Logger    *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		SecurityMode:     SecurityModeDevelopment,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        1 << 20,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.SecurityMode == "" {
		c.SecurityMode = def.SecurityMode
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.Logger == nil {
		l := log.Logger.With().Str("component", "wsconn").Logger()
		c.Logger = &l
	}
	return c
}

// NewFactory validates cfg and returns a session.TransportFactory that dials
// with gorilla/websocket. Each transport dials in the background; the
// factory itself fails only for a bad URL or TLS material.
func NewFactory(cfg Config) (session.TransportFactory, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, err
	}
	return func(rawURL string, h session.Handlers) (session.Transport, error) {
		u, err := cfg.checkURL(rawURL)
		if err != nil {
			return nil, err
		}
		tlsCfg, err := cfg.clientTLSConfig(u.Hostname())
		if err != nil {
			return nil, err
		}
		dialer := &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLSClientConfig:  tlsCfg,
		}
		ctx, cancel := context.WithCancel(context.Background())
		c := &Conn{
			url:    u.String(),
			cfg:    cfg,
			h:      h,
			cancel: cancel,
			log:    cfg.Logger.With().Str("url", u.Redacted()).Logger(),
		}
		go c.run(ctx, dialer)
		return c, nil
	}, nil
}

// Conn is one websocket client connection. OnClose fires exactly once, after
// a dial failure, a read failure or Close.
type Conn struct {
	url    string
	cfg    Config
	h      session.Handlers
	cancel context.CancelFunc
	log    zerolog.Logger

	mu        sync.Mutex
	ws        *websocket.Conn
	open      bool
	closed    bool
	closeOnce sync.Once
}

func (c *Conn) run(ctx context.Context, dialer *websocket.Dialer) {
	defer c.finish()

	ws, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if !c.isClosed() {
			c.log.Debug().Err(err).Msg("dial failed")
			c.h.OnError(err)
		}
		return
	}
	ws.SetReadLimit(c.cfg.ReadLimit)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		return
	}
	c.ws = ws
	c.open = true
	c.mu.Unlock()

	c.log.Debug().Msg("websocket open")
	c.h.OnOpen()
	c.readLoop(ws)
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
				c.h.OnError(err)
			}
			c.markClosed()
			return
		}
		c.h.OnMessage(string(data))
	}
}

// Send writes one text frame.
func (c *Conn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open || c.closed {
		return session.ErrTransportNotOpen
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

// Close sends a normal close frame and tears the connection down. A dial in
// progress is cancelled.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.open = false
	ws := c.ws
	if ws != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
	}
	c.mu.Unlock()

	c.cancel()
	if ws == nil {
		return nil
	}
	return ws.Close()
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.open = false
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) finish() {
	c.cancel()
	c.closeOnce.Do(func() {
		c.log.Debug().Msg("websocket closed")
		c.h.OnClose()
	})
}
