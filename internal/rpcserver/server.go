package rpcserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HeartbeatMethod is the notification pushed to every client on a timer.
const HeartbeatMethod = "stream.heartbeat"

type Config struct {
	// HeartbeatInterval of zero or less disables the heartbeat.
	HeartbeatInterval time.Duration
	ReadLimit         int64
	WriteTimeout      time.Duration
	Logger            *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: time.Second,
		ReadLimit:         1 << 20,
		WriteTimeout:      5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Logger == nil {
		l := log.Logger.With().Str("component", "rpcserver").Logger()
		c.Logger = &l
	}
	return c
}

// Server is a small JSON-RPC 2.0 websocket endpoint used to exercise the
// client: ping, echo and a heartbeat stream.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func New(cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: *cfg.Logger,
	}
}

type client struct {
	ws      *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer ws.Close()
	ws.SetReadLimit(s.cfg.ReadLimit)

	c := &client{ws: ws, timeout: s.cfg.WriteTimeout}
	remote := r.RemoteAddr
	s.log.Info().Str("remote", remote).Msg("client connected")

	done := make(chan struct{})
	defer close(done)
	if s.cfg.HeartbeatInterval > 0 {
		go s.heartbeat(c, done)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Str("remote", remote).Msg("read failed")
			}
			s.log.Info().Str("remote", remote).Msg("client disconnected")
			return
		}
		out, ok := Handle(data)
		if !ok {
			continue
		}
		if err := c.write(out); err != nil {
			s.log.Warn().Err(err).Str("remote", remote).Msg("write failed")
			return
		}
	}
}

func (s *Server) heartbeat(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			frame, err := heartbeatFrame(now)
			if err != nil {
				s.log.Error().Err(err).Msg("encode heartbeat")
				return
			}
			if err := c.write(frame); err != nil {
				return
			}
		}
	}
}

func heartbeatFrame(now time.Time) ([]byte, error) {
	n, err := jsonrpc.NewNotification(HeartbeatMethod, map[string]any{"t": now.UnixMilli()})
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}
