package session

import (
	"time"

	"github.com/danmuck/rpcscope/internal/buffer"
	"github.com/danmuck/rpcscope/internal/correlate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultURL              = "ws://localhost:8080"
	DefaultFastPingInterval = 100 * time.Millisecond
)

// FastPingConfig controls the periodic ping loop.
type FastPingConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Config defines a Manager. Zero-valued collaborators are filled by
// WithDefaults.
type Config struct {
	URL       string
	Reconnect ReconnectConfig
	Buffer    buffer.Policy
	FastPing  FastPingConfig
	// Offline selects OfflineFactory and disables automatic reconnect.
	Offline bool
	// MatchMode selects batch correlation. Production sessions use ModeAll.
	MatchMode correlate.Mode

	Factory        TransportFactory
	OfflineFactory TransportFactory
	Clock          Clock
	// NewID generates entry and batch ids.
	NewID     func() string
	Logger    *zerolog.Logger
	Observers []Observer
}

// DefaultConfig returns the session defaults.
func DefaultConfig() Config {
	return Config{
		URL: DefaultURL,
		Reconnect: ReconnectConfig{
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  4 * time.Second,
		},
		Buffer: buffer.DefaultPolicy(),
		FastPing: FastPingConfig{
			Enabled:  false,
			Interval: DefaultFastPingInterval,
		},
		MatchMode: correlate.ModeAll,
	}
}

// WithDefaults fills unset collaborators and invalid tunables.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.URL == "" {
		c.URL = def.URL
	}
	if c.Reconnect.BaseDelay <= 0 {
		c.Reconnect.BaseDelay = def.Reconnect.BaseDelay
	}
	if c.Reconnect.MaxDelay <= 0 {
		c.Reconnect.MaxDelay = def.Reconnect.MaxDelay
	}
	if c.Buffer.Limit() <= 0 {
		c.Buffer = def.Buffer
	}
	if c.FastPing.Interval <= 0 {
		c.FastPing.Interval = def.FastPing.Interval
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.Logger == nil {
		l := log.Logger.With().Str("component", "session").Logger()
		c.Logger = &l
	}
	return c
}
