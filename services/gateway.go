package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RemoteError is an upstream AI provider failure carrying the HTTP status
// code returned by the provider.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is transient: rate limiting or a
// server-side error.
func (e *RemoteError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// RequestGateway serializes calls to the AI provider. Requests are executed
// strictly one at a time in arrival order; transient failures are retried
// with exponential backoff before the error is surfaced to the caller.
type RequestGateway struct {
	baseDelay      time.Duration
	maxDelay       time.Duration
	maxRetries     int
	requestTimeout time.Duration

	queue chan *gatewayRequest

	mu         sync.Mutex
	processing bool
	started    bool
	cancel     context.CancelFunc
	done       chan struct{}

	// sleep is swapped out in tests to avoid real backoff waits
	sleep func(ctx context.Context, d time.Duration) error
}

type gatewayRequest struct {
	name string
	ctx  context.Context
	fn   func(ctx context.Context) error
	resp chan error
}

// NewRequestGateway creates a gateway from config. Call Start before use.
func NewRequestGateway(config GatewayConfig) *RequestGateway {
	return &RequestGateway{
		baseDelay:      config.BaseDelay,
		maxDelay:       config.MaxDelay,
		maxRetries:     config.MaxRetries,
		requestTimeout: config.RequestTimeout,
		queue:          make(chan *gatewayRequest, 64),
		sleep:          sleepContext,
	}
}

// Start launches the worker goroutine that drains the queue.
func (g *RequestGateway) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return
	}
	g.started = true
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})
	go g.worker(ctx)
	slog.Info("Request gateway started",
		"max_retries", g.maxRetries,
		"base_delay", g.baseDelay,
		"request_timeout", g.requestTimeout)
}

// Stop shuts down the worker. Queued requests fail with context.Canceled.
func (g *RequestGateway) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	cancel := g.cancel
	done := g.done
	g.mu.Unlock()

	cancel()
	<-done
}

// Do enqueues fn and blocks until it has been executed (including retries)
// or ctx is cancelled while the request is still waiting in the queue.
func (g *RequestGateway) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	req := &gatewayRequest{
		name: name,
		ctx:  ctx,
		fn:   fn,
		resp: make(chan error, 1),
	}

	select {
	case g.queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsProcessing reports whether a request is currently in flight.
func (g *RequestGateway) IsProcessing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.processing
}

func (g *RequestGateway) worker(ctx context.Context) {
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			g.drain()
			return
		case req := <-g.queue:
			g.setProcessing(true)
			err := g.execute(ctx, req)
			g.setProcessing(false)
			req.resp <- err
		}
	}
}

// drain fails any requests still queued at shutdown.
func (g *RequestGateway) drain() {
	for {
		select {
		case req := <-g.queue:
			req.resp <- context.Canceled
		default:
			return
		}
	}
}

func (g *RequestGateway) setProcessing(v bool) {
	g.mu.Lock()
	g.processing = v
	g.mu.Unlock()
}

// execute runs one request with per-attempt timeouts and exponential
// backoff on transient failures.
func (g *RequestGateway) execute(ctx context.Context, req *gatewayRequest) error {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if err := req.ctx.Err(); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(req.ctx, g.requestTimeout)
		err := req.fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 0 {
				slog.Info("Request succeeded after retry", "name", req.name, "attempt", attempt)
			}
			return nil
		}

		lastErr = err
		if !isRetryable(err) {
			slog.Error("Request failed", "name", req.name, "error", err)
			return err
		}
		if attempt == g.maxRetries {
			break
		}

		delay := g.backoff(attempt)
		slog.Warn("Transient request failure, backing off",
			"name", req.name,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		if err := g.sleep(ctx, delay); err != nil {
			return lastErr
		}
	}

	slog.Error("Request exhausted retries", "name", req.name, "retries", g.maxRetries, "error", lastErr)
	return fmt.Errorf("request %s failed after %d retries: %w", req.name, g.maxRetries, lastErr)
}

// backoff returns baseDelay doubled per attempt, capped at maxDelay.
func (g *RequestGateway) backoff(attempt int) time.Duration {
	delay := g.baseDelay << attempt
	if delay > g.maxDelay || delay <= 0 {
		delay = g.maxDelay
	}
	return delay
}

func isRetryable(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
