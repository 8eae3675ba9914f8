package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without any network attempt while a destination is cooling down
var ErrCircuitOpen = errors.New("circuit open")

// Defaults applied to zero-valued CallOptions and Settings
const (
	DefaultTimeout     = 2 * time.Second
	DefaultBackoffBase = 200 * time.Millisecond
	DefaultThreshold   = 5
	DefaultCooldown    = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// CallOptions bound a single Call
type CallOptions struct {
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
}

func (o CallOptions) withDefaults() CallOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	return o
}

// Settings configure the circuit breaker shared by all calls of a Client
type Settings struct {
	Threshold int
	Cooldown  time.Duration
}

// Client performs outbound HTTP calls with per-attempt timeouts, retry with
// exponential backoff on transport errors, and a per-destination circuit breaker.
type Client struct {
	httpClient *http.Client
	store      BreakerStore
	threshold  int
	cooldown   time.Duration
	logger     *zap.Logger
	observer   CallObserver
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default traced HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithObserver sets the call observer
func WithObserver(o CallObserver) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithClock overrides the time source used for cool-down checks
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithSleeper overrides how the client waits between attempts
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient creates a Client backed by store
func NewClient(store BreakerStore, settings Settings, opts ...Option) *Client {
	if settings.Threshold <= 0 {
		settings.Threshold = DefaultThreshold
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = DefaultCooldown
	}

	c := &Client{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		store:      store,
		threshold:  settings.Threshold,
		cooldown:   settings.Cooldown,
		logger:     zap.NewNop(),
		observer:   noopObserver{},
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends req to destination. A non-2xx response is returned as-is without
// retry; only transport failures are retried. The returned response body is
// fully buffered and safe to read after Call returns.
func (c *Client) Call(ctx context.Context, destination string, req *http.Request, opts CallOptions) (*http.Response, error) {
	opts = opts.withDefaults()

	if c.isOpen(ctx, destination) {
		c.observer.ObserveCircuitOpen(ctx, destination)
		c.logger.Warn("Circuit open, skipping call", zap.String("destination", destination))
		return nil, fmt.Errorf("%s: %w", destination, ErrCircuitOpen)
	}

	schedule := newSchedule(opts.BackoffBase)
	attempts := opts.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		resp, err := c.do(ctx, req, opts.Timeout)
		elapsed := time.Since(start)

		if err == nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				c.observer.ObserveAttempt(ctx, destination, OutcomeSuccess, elapsed)
				c.reset(ctx, destination)
				return resp, nil
			}
			c.observer.ObserveAttempt(ctx, destination, OutcomeRejected, elapsed)
			c.recordFailure(ctx, destination)
			c.logger.Debug("Remote call rejected",
				zap.String("destination", destination),
				zap.Int("status", resp.StatusCode),
			)
			return resp, nil
		}

		lastErr = err
		c.observer.ObserveAttempt(ctx, destination, OutcomeTransport, elapsed)
		c.recordFailure(ctx, destination)
		c.logger.Warn("Remote call failed",
			zap.String("destination", destination),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)

		if attempt == attempts || ctx.Err() != nil {
			break
		}
		if err := c.sleep(ctx, schedule.NextBackOff()); err != nil {
			break
		}
	}
	return nil, lastErr
}

// do performs one attempt bounded by timeout, buffering the body so the
// attempt context can be released before returning.
func (c *Client) do(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := req.Clone(attemptCtx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		r.Body = body
	}

	resp, err := c.httpClient.Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(buf))
	return resp, nil
}

func (c *Client) isOpen(ctx context.Context, destination string) bool {
	failures, last, err := c.store.State(ctx, destination)
	if err != nil {
		c.logger.Warn("Breaker state unavailable, allowing call",
			zap.String("destination", destination),
			zap.Error(err),
		)
		return false
	}
	return failures >= c.threshold && c.now().Sub(last) < c.cooldown
}

func (c *Client) recordFailure(ctx context.Context, destination string) {
	failures, err := c.store.RecordFailure(ctx, destination, c.now())
	if err != nil {
		c.logger.Warn("Failed to record breaker failure", zap.String("destination", destination), zap.Error(err))
		return
	}
	if failures == c.threshold {
		c.logger.Warn("Circuit opened",
			zap.String("destination", destination),
			zap.Int("failures", failures),
			zap.Duration("cooldown", c.cooldown),
		)
	}
}

func (c *Client) reset(ctx context.Context, destination string) {
	if err := c.store.Reset(ctx, destination); err != nil {
		c.logger.Warn("Failed to reset breaker", zap.String("destination", destination), zap.Error(err))
	}
}

// newSchedule yields base, 2*base, 4*base, ... with no jitter and no cap on elapsed time
func newSchedule(base time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
