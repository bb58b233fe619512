package services

import (
	"log/slog"
	"sync"
	"time"
)

// CountdownTimer counts down a fixed number of seconds, ticking once per
// second. Pausing freezes the remaining time; resuming continues from where
// it left off. Reset stops the countdown and rearms it with a new limit.
// The expiry callback fires at most once per armed countdown.
type CountdownTimer struct {
	mu         sync.Mutex
	remaining  int
	running    bool
	generation uint64
	interval   time.Duration
	onTick     func(remaining int)
	onExpire   func()
	stop       chan struct{}
}

// NewCountdownTimer creates a timer armed with the given limit in seconds.
func NewCountdownTimer(seconds int) *CountdownTimer {
	return &CountdownTimer{
		remaining: seconds,
		interval:  time.Second,
	}
}

// SetInterval overrides the tick interval. Tests use this to run fast.
func (t *CountdownTimer) SetInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
}

// SetOnTick registers a callback invoked after every elapsed second with
// the remaining time. Must be set before Start.
func (t *CountdownTimer) SetOnTick(fn func(remaining int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = fn
}

// SetOnExpire registers a callback invoked once when the countdown reaches
// zero. Must be set before Start.
func (t *CountdownTimer) SetOnExpire(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExpire = fn
}

// Start begins or resumes the countdown. Calling Start on a running timer
// is a no-op. A timer armed with zero seconds expires immediately.
func (t *CountdownTimer) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	if t.remaining <= 0 {
		gen := t.generation
		fn := t.onExpire
		t.mu.Unlock()
		t.fireExpire(gen, fn)
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	gen := t.generation
	stop := t.stop
	interval := t.interval
	t.mu.Unlock()

	go t.run(gen, stop, interval)
}

func (t *CountdownTimer) run(gen uint64, stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			if !t.running || t.generation != gen {
				t.mu.Unlock()
				return
			}
			t.remaining--
			remaining := t.remaining
			onTick := t.onTick
			onExpire := t.onExpire
			if remaining <= 0 {
				t.running = false
				t.stop = nil
			}
			t.mu.Unlock()

			if onTick != nil {
				t.safeCall(func() { onTick(remaining) })
			}
			if remaining <= 0 {
				t.fireExpire(gen, onExpire)
				return
			}
		}
	}
}

// fireExpire invokes the expiry callback if the countdown has not been
// reset since the goroutine observed generation gen.
func (t *CountdownTimer) fireExpire(gen uint64, fn func()) {
	t.mu.Lock()
	if t.generation != gen {
		t.mu.Unlock()
		return
	}
	t.generation++
	t.mu.Unlock()

	if fn != nil {
		t.safeCall(fn)
	}
}

// safeCall shields the timer goroutine from panics in user callbacks.
func (t *CountdownTimer) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Timer callback panicked", "panic", r)
		}
	}()
	fn()
}

// Pause freezes the countdown, preserving the remaining time. Pausing a
// stopped timer is a no-op.
func (t *CountdownTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
	t.stop = nil
}

// Resume continues a paused countdown. A no-op when nothing remains; the
// expiry already fired or will be rearmed by Reset.
func (t *CountdownTimer) Resume() {
	t.mu.Lock()
	if t.remaining <= 0 {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.Start()
}

// Reset stops the countdown and rearms the timer with a new limit. Any
// in-flight tick from the previous countdown is discarded; the previous
// expiry callback will not fire. Reset does not start the new countdown:
// callers follow with Start once the next question is announced, so no
// ticks land before listeners are ready.
func (t *CountdownTimer) Reset(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	if t.running {
		t.running = false
		close(t.stop)
		t.stop = nil
	}
	t.remaining = seconds
}

// Remaining returns the seconds left on the countdown.
func (t *CountdownTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// IsRunning reports whether the countdown is actively ticking.
func (t *CountdownTimer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
