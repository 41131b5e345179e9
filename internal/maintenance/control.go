package maintenance

import (
	"sync"
	"time"
)

// pausePollInterval is how often a worker re-checks the bus while Paused.
// Sub-second responsiveness is adequate for operator-facing control, and a
// polled model avoids condvar bookkeeping across goroutine boundaries.
const pausePollInterval = 150 * time.Millisecond

// backoffChunk bounds how long a single retry-sleep iteration runs before
// re-checking the bus.
const backoffChunk = 100 * time.Millisecond

// ControlBus is the per-profile broadcast of the current ControlState. It
// has latest-value semantics: observers always see the most recent state,
// and missed intermediate states are acceptable.
type ControlBus struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state ControlState
}

// NewControlBus creates a bus initialized to Running.
func NewControlBus() *ControlBus {
	b := &ControlBus{state: Running}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish sets the current state. Idempotent under repeated equal states.
func (b *ControlBus) Publish(state ControlState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == state {
		return
	}
	b.state = state
	b.cond.Broadcast()
}

// Observe is a cheap peek at the current state.
func (b *ControlBus) Observe() ControlState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ResetRunning restores Running, used after a SkipDatabase has been
// consumed by the worker that observed it.
func (b *ControlBus) ResetRunning() {
	b.Publish(Running)
}

// Check returns ("", false) if Running; otherwise it returns the
// interrupting state (Stop or SkipDatabase). It blocks, polling at
// pausePollInterval, while the bus is Paused.
func (b *ControlBus) Check() (ControlState, bool) {
	for {
		switch b.Observe() {
		case Running:
			return "", false
		case Stop, SkipDatabase:
			return b.Observe(), true
		case Paused:
			time.Sleep(pausePollInterval)
		}
	}
}

// Wait sleeps up to totalMs, in chunks of at most backoffChunk, returning
// early with the interrupting state if Stop or SkipDatabase is observed.
// A Paused observation extends the wait without consuming budget.
func (b *ControlBus) Wait(totalMs uint64) (ControlState, bool) {
	remaining := time.Duration(totalMs) * time.Millisecond
	for remaining > 0 {
		if ctrl, interrupted := b.Check(); interrupted {
			return ctrl, true
		}
		step := backoffChunk
		if remaining < step {
			step = remaining
		}
		time.Sleep(step)
		remaining -= step
	}
	return "", false
}
