package loopback

import (
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/rpcscope/internal/session"
)

// DummyMethod is the method name used by generated traffic.
const DummyMethod = "dummy.method"

// Target is the session surface driven by StartTraffic. *session.Manager
// satisfies it.
type Target interface {
	State() session.State
	Send(method string, params any)
	SendBatch(reqs []session.BatchRequest)
}

// TrafficConfig shapes the generated request stream.
type TrafficConfig struct {
	Interval time.Duration
	// BatchRate is the chance that one tick sends a batch instead of a
	// single request.
	BatchRate float64
	// Batches hold BatchMin plus up to BatchSpread-1 extra requests.
	BatchMin    int
	BatchSpread int
	Clock       session.Clock
	Rand        *rand.Rand
}

func DefaultTrafficConfig() TrafficConfig {
	return TrafficConfig{
		Interval:    2500 * time.Millisecond,
		BatchRate:   0.4,
		BatchMin:    2,
		BatchSpread: 3,
	}
}

// StartTraffic sends a request or a batch to target every Interval while it
// is connected. Stop the returned timer to end the stream.
func StartTraffic(target Target, cfg TrafficConfig) session.Timer {
	def := DefaultTrafficConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchMin <= 0 {
		cfg.BatchMin = def.BatchMin
	}
	if cfg.BatchSpread <= 0 {
		cfg.BatchSpread = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = session.SystemClock{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var (
		mu      sync.Mutex
		counter int
	)
	return cfg.Clock.Every(cfg.Interval, func() {
		if target.State() != session.StateConnected {
			return
		}
		mu.Lock()
		counter++
		n := counter
		batch := cfg.Rand.Float64() < cfg.BatchRate
		var reqs []session.BatchRequest
		if batch {
			size := cfg.BatchMin + cfg.Rand.Intn(cfg.BatchSpread)
			reqs = make([]session.BatchRequest, size)
			for i := range reqs {
				reqs[i] = session.BatchRequest{Method: DummyMethod, Params: map[string]any{"n": cfg.Rand.Float64()}}
			}
		}
		mu.Unlock()

		if batch {
			target.SendBatch(reqs)
			return
		}
		target.Send(DummyMethod, map[string]any{"n": n})
	})
}
