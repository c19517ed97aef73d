package session

import (
	"math"
	"math/rand"
	"time"
)

// JitterFunc rewrites the exponential delay for an attempt (0-based).
type JitterFunc func(delay time.Duration, attempt int) time.Duration

// ReconnectConfig defines automatic reconnect backoff.
type ReconnectConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Jitter is applied before the cap. Nil means no jitter.
	Jitter JitterFunc
}

// NextReconnectDelay returns the delay before reconnect attempt N (0-based):
// min(MaxDelay, max(0, jitter(BaseDelay * 2^N))).
func NextReconnectDelay(cfg ReconnectConfig, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(math.MaxInt64)
	if delay := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)); delay < float64(math.MaxInt64) {
		d = time.Duration(delay)
	}
	if cfg.Jitter != nil {
		d = cfg.Jitter(d, attempt)
	}
	if d < 0 {
		d = 0
	}
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}

// RandomJitter scales each delay by a factor in [0.5, 1.5).
func RandomJitter(rng *rand.Rand) JitterFunc {
	return func(delay time.Duration, _ int) time.Duration {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		return time.Duration(float64(delay) * f)
	}
}
