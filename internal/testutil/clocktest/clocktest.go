package clocktest

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/rpcscope/internal/session"
)

// Clock is a manual session.Clock. Time moves only through Advance, which
// fires due timers synchronously on the calling goroutine.
type Clock struct {
	mu       sync.Mutex
	now      time.Time
	seq      int
	timers   []*timer
	timeouts []time.Duration
}

type timer struct {
	c      *Clock
	seq    int
	due    time.Time
	period time.Duration
	fn     func()
	live   bool
}

func (t *timer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := t.live
	t.live = false
	return was
}

func New(start time.Time) *Clock {
	return &Clock{now: start}
}

var _ session.Clock = (*Clock)(nil)

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, fn func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeouts = append(c.timeouts, d)
	return c.addLocked(d, 0, fn)
}

func (c *Clock) Every(d time.Duration, fn func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		d = time.Nanosecond
	}
	return c.addLocked(d, d, fn)
}

func (c *Clock) addLocked(d, period time.Duration, fn func()) *timer {
	c.seq++
	t := &timer{c: c, seq: c.seq, due: c.now.Add(d), period: period, fn: fn, live: true}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d, firing every timer that falls due in
// order of due time, then creation order.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}
		c.now = next.due
		if next.period > 0 {
			next.due = next.due.Add(next.period)
		} else {
			next.live = false
		}
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func (c *Clock) nextDueLocked(target time.Time) *timer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if t.live {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.SliceStable(c.timers, func(i, j int) bool {
		if !c.timers[i].due.Equal(c.timers[j].due) {
			return c.timers[i].due.Before(c.timers[j].due)
		}
		return c.timers[i].seq < c.timers[j].seq
	})
	if len(c.timers) == 0 || c.timers[0].due.After(target) {
		return nil
	}
	return c.timers[0]
}

// Timeouts returns the delay of every AfterFunc call so far.
func (c *Clock) Timeouts() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.timeouts...)
}

// PendingTimeouts counts live one-shot timers.
func (c *Clock) PendingTimeouts() int {
	return c.countLive(false)
}

// ActiveIntervals counts live periodic timers.
func (c *Clock) ActiveIntervals() int {
	return c.countLive(true)
}

func (c *Clock) countLive(periodic bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if t.live && (t.period > 0) == periodic {
			n++
		}
	}
	return n
}
