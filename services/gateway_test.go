package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newTestGateway builds an unstarted gateway; tests override the sleep
// hook before calling Start.
func newTestGateway() *RequestGateway {
	return NewRequestGateway(GatewayConfig{
		BaseDelay:      10 * time.Millisecond,
		MaxDelay:       80 * time.Millisecond,
		MaxRetries:     3,
		RequestTimeout: time.Second,
	})
}

func TestGatewayOneRequestInFlight(t *testing.T) {
	g := newTestGateway()
	g.Start()
	defer g.Stop()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), "probe", func(ctx context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					cur := atomic.LoadInt32(&maxInFlight)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
			if err != nil {
				t.Errorf("Do() = %v, want nil", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("max in-flight requests = %d, want 1", got)
	}
	if g.IsProcessing() {
		t.Error("gateway still processing after all requests resolved")
	}
}

func TestGatewayProcessesInArrivalOrder(t *testing.T) {
	g := newTestGateway()
	g.Start()
	defer g.Stop()

	release := make(chan struct{})
	var first sync.WaitGroup
	first.Add(1)
	go func() {
		defer first.Done()
		g.Do(context.Background(), "blocker", func(ctx context.Context) error {
			<-release
			return nil
		})
	}()

	// Let the blocker occupy the worker, then queue three more.
	time.Sleep(20 * time.Millisecond)

	var mu sync.Mutex
	var order []string
	var rest sync.WaitGroup
	for _, name := range []string{"a", "b", "c"} {
		name := name
		rest.Add(1)
		go func() {
			defer rest.Done()
			g.Do(context.Background(), name, func(ctx context.Context) error {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return nil
			})
		}()
		time.Sleep(10 * time.Millisecond)
	}

	close(release)
	first.Wait()
	rest.Wait()

	want := []string{"a", "b", "c"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("executed %d requests, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("execution order = %v, want %v", order, want)
			break
		}
	}
}

func TestGatewayRetriesRateLimitWithBackoff(t *testing.T) {
	g := newTestGateway()
	var mu sync.Mutex
	var delays []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return nil
	}
	g.Start()
	defer g.Stop()

	attempts := 0
	err := g.Do(context.Background(), "rate_limited", func(ctx context.Context) error {
		attempts++
		if attempts <= 2 {
			return &RemoteError{StatusCode: 429, Message: "rate limited"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil after retries", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("backoff sleeps = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("backoff[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestGatewayNonRetryableFailsImmediately(t *testing.T) {
	g := newTestGateway()
	g.sleep = func(ctx context.Context, d time.Duration) error {
		t.Error("gateway slept for a non-retryable error")
		return nil
	}
	g.Start()
	defer g.Stop()

	attempts := 0
	badRequest := &RemoteError{StatusCode: 400, Message: "bad request"}
	err := g.Do(context.Background(), "bad_request", func(ctx context.Context) error {
		attempts++
		return badRequest
	})

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.StatusCode != 400 {
		t.Errorf("Do() = %v, want the original 400 error", err)
	}
}

func TestGatewayExhaustsRetriesAndWrapsLastError(t *testing.T) {
	g := newTestGateway()
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	g.Start()
	defer g.Stop()

	attempts := 0
	err := g.Do(context.Background(), "always_503", func(ctx context.Context) error {
		attempts++
		return &RemoteError{StatusCode: 503, Message: "unavailable"}
	})

	// Initial attempt plus maxRetries
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	if err == nil {
		t.Fatal("Do() = nil, want terminal error")
	}
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.StatusCode != 503 {
		t.Errorf("terminal error does not wrap the last failure: %v", err)
	}
}

func TestGatewayBackoffCapsAtMaxDelay(t *testing.T) {
	g := NewRequestGateway(GatewayConfig{
		BaseDelay:  time.Second,
		MaxDelay:   4 * time.Second,
		MaxRetries: 10,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 4 * time.Second},
		{10, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := g.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestGatewayCancelledWhileQueued(t *testing.T) {
	g := newTestGateway()
	g.Start()
	defer g.Stop()

	release := make(chan struct{})
	go g.Do(context.Background(), "blocker", func(ctx context.Context) error {
		<-release
		return nil
	})
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- g.Do(ctx, "cancelled", func(ctx context.Context) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled request did not return")
	}
	close(release)
}
