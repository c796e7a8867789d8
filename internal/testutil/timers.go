// Package testutil provides deterministic test doubles for the collection
// engine: manual debounce timers and fixed request ids. Nothing in this
// package sleeps or touches the wall clock.
package testutil

import (
	"sync"
	"time"

	"github.com/bmsj23/animomart-client/internal/collection"
)

// ManualTimers is a collection.TimerFactory whose timers only fire when the
// test calls Fire. Debounce behavior becomes fully deterministic: scheduling
// order is preserved, Stop cancels, and firing happens synchronously on the
// calling goroutine.
type ManualTimers struct {
	mu    sync.Mutex
	next  int
	armed map[int]*manualTimer
	order []int
}

// NewManualTimers creates an empty factory.
func NewManualTimers() *ManualTimers {
	return &ManualTimers{armed: make(map[int]*manualTimer)}
}

// AfterFunc registers fn without scheduling anything. The delay is recorded
// but never waited on.
func (m *ManualTimers) AfterFunc(d time.Duration, fn func()) collection.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	t := &manualTimer{owner: m, id: m.next, delay: d, fn: fn}
	m.armed[t.id] = t
	m.order = append(m.order, t.id)
	return t
}

// Armed returns the number of timers that are scheduled and not stopped.
func (m *ManualTimers) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.armed)
}

// Fire fires every armed timer in scheduling order, synchronously. Timers
// armed by the callbacks themselves are NOT fired in the same pass; call
// Fire again to run them.
func (m *ManualTimers) Fire() {
	m.mu.Lock()
	ids := make([]int, len(m.order))
	copy(ids, m.order)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		if t, ok := m.armed[id]; ok {
			delete(m.armed, id)
			fns = append(fns, t.fn)
		}
	}
	m.order = m.order[:0]
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

type manualTimer struct {
	owner *ManualTimers
	id    int
	delay time.Duration
	fn    func()
}

// Stop cancels the timer. Reports whether it was still armed.
func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if _, ok := t.owner.armed[t.id]; !ok {
		return false
	}
	delete(t.owner.armed, t.id)
	return true
}

// FixedRequestIDs returns predetermined request ids for deterministic
// traces. Panics when exhausted - a test asking for more ids than it
// provided is a bug in the test.
type FixedRequestIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedRequestIDs creates a generator that returns ids in order.
func NewFixedRequestIDs(ids ...string) *FixedRequestIDs {
	return &FixedRequestIDs{ids: ids}
}

// Next returns the next predetermined id.
func (g *FixedRequestIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("testutil: fixed request ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
