package services

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestCountdownTimerExpiresExactlyOnce(t *testing.T) {
	timer := NewCountdownTimer(3)
	timer.SetInterval(5 * time.Millisecond)

	var expired int32
	timer.SetOnExpire(func() {
		atomic.AddInt32(&expired, 1)
	})

	timer.Start()
	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&expired) > 0
	})

	// Give any stray extra callback a chance to fire
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&expired); got != 1 {
		t.Errorf("expire callback fired %d times, want 1", got)
	}
	if timer.Remaining() != 0 {
		t.Errorf("Remaining() = %d after expiry, want 0", timer.Remaining())
	}
	if timer.IsRunning() {
		t.Error("timer still running after expiry")
	}
}

func TestCountdownTimerZeroSecondsExpiresImmediately(t *testing.T) {
	timer := NewCountdownTimer(0)

	expired := make(chan struct{})
	timer.SetOnExpire(func() { close(expired) })

	timer.Start()
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("zero-second timer did not expire on Start")
	}
	if timer.IsRunning() {
		t.Error("zero-second timer should not be running")
	}
}

func TestCountdownTimerPausePreservesRemaining(t *testing.T) {
	timer := NewCountdownTimer(100)
	timer.SetInterval(5 * time.Millisecond)

	timer.Start()
	waitFor(t, 2*time.Second, func() bool {
		return timer.Remaining() < 100
	})
	timer.Pause()

	remaining := timer.Remaining()
	if remaining <= 0 || remaining >= 100 {
		t.Fatalf("Remaining() = %d after pause, want between 1 and 99", remaining)
	}

	time.Sleep(50 * time.Millisecond)
	if timer.Remaining() != remaining {
		t.Errorf("remaining changed while paused: %d -> %d", remaining, timer.Remaining())
	}
	if timer.IsRunning() {
		t.Error("timer running while paused")
	}

	timer.Resume()
	waitFor(t, 2*time.Second, func() bool {
		return timer.Remaining() < remaining
	})
	timer.Pause()
}

func TestCountdownTimerResetDiscardsPendingExpiry(t *testing.T) {
	timer := NewCountdownTimer(1)
	timer.SetInterval(5 * time.Millisecond)

	var expired int32
	timer.SetOnExpire(func() {
		atomic.AddInt32(&expired, 1)
	})

	timer.Start()
	timer.Reset(50)

	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&expired); got != 0 {
		t.Errorf("expire callback fired %d times after Reset, want 0", got)
	}
	if timer.Remaining() != 50 {
		t.Errorf("Remaining() = %d after Reset(50), want 50", timer.Remaining())
	}
	if timer.IsRunning() {
		t.Error("timer running after Reset without Start")
	}
}

func TestCountdownTimerDoubleStartIsNoop(t *testing.T) {
	timer := NewCountdownTimer(1000)
	timer.SetInterval(time.Hour)

	timer.Start()
	timer.Start()

	if !timer.IsRunning() {
		t.Error("timer not running after Start")
	}
	timer.Pause()
	if timer.IsRunning() {
		t.Error("timer running after Pause")
	}
}

func TestCountdownTimerSurvivesCallbackPanic(t *testing.T) {
	timer := NewCountdownTimer(2)
	timer.SetInterval(5 * time.Millisecond)

	timer.SetOnTick(func(remaining int) {
		panic("tick handler blew up")
	})
	expired := make(chan struct{})
	timer.SetOnExpire(func() { close(expired) })

	timer.Start()
	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire after panicking tick callback")
	}
}
