package rps

import (
	"math"
	"sync"
	"time"
)

// Timer is a single-shot phase timer with generation tracking.
// Every Arm or Cancel bumps the generation; a callback carrying an older
// generation is stale and must be ignored by the owner.
type Timer struct {
	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	deadline time.Time
	onFire   func(gen uint64)
}

// NewTimer creates an unarmed timer that calls onFire with the generation it was armed with.
func NewTimer(onFire func(gen uint64)) *Timer {
	return &Timer{onFire: onFire}
}

// Arm schedules the timer to fire after d, replacing any pending schedule.
func (t *Timer) Arm(d time.Duration) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.deadline = time.Now().Add(d)
	t.timer = time.AfterFunc(d, func() { t.onFire(gen) })
	return gen
}

// Refresh re-arms the timer with a new duration.
func (t *Timer) Refresh(d time.Duration) uint64 {
	return t.Arm(d)
}

// Cancel stops the timer. Callbacks already in flight become stale.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.deadline = time.Time{}
}

// Current reports whether gen is the live, armed generation.
func (t *Timer) Current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil && t.gen == gen
}

// Remaining returns the time left before firing, or 0 when unarmed or elapsed.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer == nil {
		return 0
	}
	if r := time.Until(t.deadline); r > 0 {
		return r
	}
	return 0
}

// RemainingSeconds returns Remaining rounded up to whole seconds.
func (t *Timer) RemainingSeconds() int {
	r := t.Remaining()
	if r <= 0 {
		return 0
	}
	return int(math.Ceil(r.Seconds()))
}
