package config

import (
	"math/rand"
	"time"

	"github.com/danmuck/rpcscope/internal/buffer"
	"github.com/danmuck/rpcscope/internal/session"
	"github.com/danmuck/rpcscope/internal/transport/loopback"
	"github.com/danmuck/rpcscope/internal/transport/wsconn"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Rand returns the simulator random source.
func (c Config) Rand() *rand.Rand {
	seed := c.Simulator.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Session maps the file settings onto a session config. Transport
// factories, clock and observers are left to the caller.
func (c Config) Session(rng *rand.Rand) (session.Config, error) {
	policy, err := buffer.NewPolicy(c.Buffer.Limit, c.Buffer.PreferPending, c.Buffer.PreferBatches, c.Buffer.DropChunkSize)
	if err != nil {
		return session.Config{}, err
	}
	out := session.DefaultConfig()
	out.URL = c.URL
	out.Offline = c.Offline
	out.Buffer = policy
	out.Reconnect = session.ReconnectConfig{
		BaseDelay: ms(c.Reconnect.BaseMS),
		MaxDelay:  ms(c.Reconnect.MaxMS),
	}
	if c.Reconnect.Jitter {
		out.Reconnect.Jitter = session.RandomJitter(rng)
	}
	out.FastPing = session.FastPingConfig{
		Enabled:  c.FastPing.Enabled,
		Interval: ms(c.FastPing.IntervalMS),
	}
	return out, nil
}

func (c Config) Transport() wsconn.Config {
	out := wsconn.DefaultConfig()
	out.SecurityMode = wsconn.SecurityMode(c.TLS.SecurityMode)
	out.TLS = wsconn.TLSConfig{
		Enabled:            c.TLS.Enabled,
		Mutual:             c.TLS.Mutual,
		CAFile:             c.TLS.CAFile,
		CertFile:           c.TLS.CertFile,
		KeyFile:            c.TLS.KeyFile,
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	return out
}

func (c Config) Loopback(clock session.Clock, rng *rand.Rand) loopback.Config {
	out := loopback.DefaultConfig()
	out.ErrorRate = c.Simulator.ErrorRate
	out.NotificationInterval = ms(c.Simulator.NotificationIntervalMS)
	out.Clock = clock
	out.Rand = rng
	return out
}

func (c Config) Traffic(clock session.Clock, rng *rand.Rand) loopback.TrafficConfig {
	out := loopback.DefaultTrafficConfig()
	out.Interval = ms(c.Simulator.RequestIntervalMS)
	out.Clock = clock
	out.Rand = rng
	return out
}
