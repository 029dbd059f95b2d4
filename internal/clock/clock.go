// Package clock abstracts the repeating interval behind the recorder's
// elapsed counter. Tests drive a Manual clock instead of sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock schedules callbacks. Stop functions returned by Every are
// idempotent.
type Clock interface {
	Now() time.Time
	// Every calls fn once per interval until stop is called.
	Every(interval time.Duration, fn func()) (stop func())
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now.
func (Real) Now() time.Time { return time.Now() }

// Every runs fn on its own goroutine for each tick of a time.Ticker.
func (Real) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// Manual is a deterministic clock. Callbacks run synchronously on the
// goroutine calling Advance, so callers must not hold locks the callbacks
// need.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]*manualTimer
}

type manualTimer struct {
	due      time.Time
	interval time.Duration
	fn       func()
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, timers: make(map[int]*manualTimer)}
}

// Now returns the manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Every registers a repeating timer.
func (m *Manual) Every(interval time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{due: m.now.Add(interval), interval: interval, fn: fn}
	id := m.nextID
	m.nextID++
	m.timers[id] = t
	return func() {
		m.mu.Lock()
		delete(m.timers, id)
		m.mu.Unlock()
	}
}

// Active reports how many timers are registered.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves time forward by d, firing due timers in order. A timer
// stopped by an earlier callback in the same Advance does not fire.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		t := m.earliestDue(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = t.due
		t.due = t.due.Add(t.interval)
		fn := t.fn
		m.mu.Unlock()

		fn()
	}
}

func (m *Manual) earliestDue(target time.Time) *manualTimer {
	bestID := -1
	var best *manualTimer
	for id, t := range m.timers {
		if t.due.After(target) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && id < bestID) {
			bestID, best = id, t
		}
	}
	return best
}
