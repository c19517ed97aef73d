package session

import "sync"

// executor runs submitted steps one at a time, in submission order. The
// goroutine that finds the executor idle drains the queue; callers arriving
// while it drains return immediately and their step runs later on the
// draining goroutine. Steps submitted from inside a step therefore never
// re-enter.
type executor struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

func (x *executor) submit(step func()) {
	x.mu.Lock()
	x.queue = append(x.queue, step)
	if x.running {
		x.mu.Unlock()
		return
	}
	x.running = true
	for len(x.queue) > 0 {
		next := x.queue[0]
		x.queue[0] = nil
		x.queue = x.queue[1:]
		x.mu.Unlock()
		next()
		x.mu.Lock()
	}
	x.running = false
	x.mu.Unlock()
}
