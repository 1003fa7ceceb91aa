package joy

import (
	"sync"
	"time"
)

const (
	TicksPerSec  = 100
	MSecPerSec   = 1000
	DefaultSlice = time.Second / TicksPerSec
)

// Clock is the machine's time source.
type Clock interface {
	Now() time.Duration
}

type wallClock struct {
	boot time.Time
}

// NewWallClock measures time since its creation.
func NewWallClock() Clock {
	return &wallClock{boot: time.Now()}
}

func (w *wallClock) Now() time.Duration {
	return time.Since(w.boot)
}

// StepClock moves forward by a fixed step every time it is read, so a run
// with it is repeatable.
type StepClock struct {
	mu   sync.Mutex
	now  time.Duration
	step time.Duration
}

func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{step: step}
}

func (s *StepClock) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.now
	s.now += s.step
	return n
}

// Timer tracks the time slice of the running task. Expiry is only noticed
// when the trap layer asks, at the next trap boundary.
type Timer struct {
	clock Clock
	slice time.Duration

	mu    sync.Mutex
	start time.Duration
}

func NewTimer(clock Clock, slice time.Duration) *Timer {
	if slice <= 0 {
		slice = DefaultSlice
	}
	return &Timer{clock: clock, slice: slice}
}

// Reset starts a new slice.
func (t *Timer) Reset() {
	now := t.clock.Now()
	t.mu.Lock()
	t.start = now
	t.mu.Unlock()
}

func (t *Timer) Expired() bool {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	return now-t.start >= t.slice
}

// Millis is the time since boot in milliseconds.
func (t *Timer) Millis() int64 {
	return int64(t.clock.Now() / time.Millisecond)
}
