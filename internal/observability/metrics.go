package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/rpcscope/internal/buffer"
	"github.com/danmuck/rpcscope/internal/message"
	"github.com/danmuck/rpcscope/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rpcscope"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// SessionMetrics exports session activity. It is a session.Observer; pass
// it in session.Config.Observers.
type SessionMetrics struct {
	frames     *prometheus.CounterVec
	errors     prometheus.Counter
	roundTrip  prometheus.Histogram
	reconnects prometheus.Counter
	validation *prometheus.CounterVec
	evicted    *prometheus.CounterVec
	state      *prometheus.GaugeVec
}

var _ session.Observer = (*SessionMetrics)(nil)

// NewSessionMetrics registers the session collectors with reg. A nil reg
// uses the default registerer.
func NewSessionMetrics(reg prometheus.Registerer) (*SessionMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &SessionMetrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_total",
			Help:      "Logged frames by direction and kind.",
		}, []string{"direction", "kind"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "errors_total",
			Help:      "Error entries appended to the log.",
		}),
		roundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "round_trip_seconds",
			Help:      "Request to response latency of correlated responses.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Scheduled reconnect attempts.",
		}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "validation_issues_total",
			Help:      "Validation findings by severity.",
		}, []string{"severity"}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "evicted_entries_total",
			Help:      "Entries dropped by the buffer policy.",
		}, []string{"forced"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
	}
	for _, c := range []prometheus.Collector{m.frames, m.errors, m.roundTrip, m.reconnects, m.validation, m.evicted, m.state} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	m.StateChanged(session.StateDisconnected, session.StateDisconnected)
	return m, nil
}

func (m *SessionMetrics) StateChanged(_, to session.State) {
	for _, s := range session.States {
		v := 0.0
		if s == to {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}

func (m *SessionMetrics) EntryAppended(e message.Entry) {
	switch e.Kind {
	case message.KindSent, message.KindReceived:
		m.frames.WithLabelValues(string(e.Kind), frameKind(e)).Inc()
	case message.KindError:
		m.errors.Inc()
	}
	if e.RoundTripMs != nil {
		m.roundTrip.Observe(float64(*e.RoundTripMs) / 1000)
	}
	if n := len(e.ValidationErrors); n > 0 {
		m.validation.WithLabelValues("error").Add(float64(n))
	}
	if n := len(e.ValidationWarnings); n > 0 {
		m.validation.WithLabelValues("warning").Add(float64(n))
	}
}

func (m *SessionMetrics) EntriesEvicted(ev buffer.Eviction) {
	if ev.Dropped > 0 {
		m.evicted.WithLabelValues("false").Add(float64(ev.Dropped))
	}
	if ev.Forced > 0 {
		m.evicted.WithLabelValues("true").Add(float64(ev.Forced))
	}
}

func (m *SessionMetrics) ReconnectScheduled(int, time.Duration) {
	m.reconnects.Inc()
}

func frameKind(e message.Entry) string {
	switch {
	case e.IsBatch:
		return "batch"
	case e.IsNotification:
		return "notification"
	case e.Kind == message.KindReceived && e.Method == message.MethodResponse:
		return "response"
	case e.Kind == message.KindSent:
		return "request"
	default:
		return "other"
	}
}
