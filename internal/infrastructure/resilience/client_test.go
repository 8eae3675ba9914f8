package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	failures map[string]int
	last     map[string]time.Time
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{failures: map[string]int{}, last: map[string]time.Time{}}
}

func (s *fakeStore) State(_ context.Context, dest string) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[dest], s.last[dest], s.err
}

func (s *fakeStore) RecordFailure(_ context.Context, dest string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[dest]++
	s.last[dest] = at
	return s.failures[dest], nil
}

func (s *fakeStore) Reset(_ context.Context, dest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, dest)
	delete(s.last, dest)
	return nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func failingTransport(calls *int32) http.RoundTripper {
	return roundTripFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(calls, 1)
		return nil, errors.New("connection refused")
	})
}

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestClient_Call_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"success"}`)
	}))
	defer srv.Close()

	store := newFakeStore()
	store.failures["auth"] = 3
	client := NewClient(store, Settings{}, WithHTTPClient(srv.Client()))

	resp, err := client.Call(context.Background(), "auth", newRequest(t, srv.URL), CallOptions{})
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success"}`, string(body))
	assert.Zero(t, store.failures["auth"], "success resets the failure counter")
}

func TestClient_Call_NonSuccessIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := newFakeStore()
	sleeper := &sleepRecorder{}
	client := NewClient(store, Settings{}, WithHTTPClient(srv.Client()), WithSleeper(sleeper.Sleep))

	resp, err := client.Call(context.Background(), "notify", newRequest(t, srv.URL), CallOptions{MaxRetries: 3})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 1, store.failures["notify"])
	assert.Empty(t, sleeper.delays)
}

func TestClient_Call_RetriesTransportErrorsWithDoublingBackoff(t *testing.T) {
	var calls int32
	store := newFakeStore()
	sleeper := &sleepRecorder{}
	client := NewClient(store, Settings{Threshold: 100},
		WithHTTPClient(&http.Client{Transport: failingTransport(&calls)}),
		WithSleeper(sleeper.Sleep),
	)

	_, err := client.Call(context.Background(), "auth", newRequest(t, "http://auth.invalid"), CallOptions{
		MaxRetries:  3,
		BackoffBase: 100 * time.Millisecond,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, sleeper.delays)
	assert.Equal(t, 4, store.failures["auth"])
}

func TestClient_Call_CircuitBreaker(t *testing.T) {
	var calls int32
	store := newFakeStore()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	client := NewClient(store, Settings{Threshold: 5, Cooldown: 10 * time.Second},
		WithHTTPClient(&http.Client{Transport: failingTransport(&calls)}),
		WithClock(clock.Now),
		WithSleeper((&sleepRecorder{}).Sleep),
	)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.Call(ctx, "auth", newRequest(t, "http://auth.invalid"), CallOptions{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	require.Equal(t, int32(5), atomic.LoadInt32(&calls))

	t.Run("open circuit makes no network attempt", func(t *testing.T) {
		clock.Advance(9 * time.Second)
		_, err := client.Call(ctx, "auth", newRequest(t, "http://auth.invalid"), CallOptions{MaxRetries: 2})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
	})

	t.Run("other destinations are unaffected", func(t *testing.T) {
		_, err := client.Call(ctx, "notify", newRequest(t, "http://notify.invalid"), CallOptions{})
		assert.NotErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
	})

	t.Run("call is attempted after cool-down", func(t *testing.T) {
		clock.Advance(2 * time.Second)
		_, err := client.Call(ctx, "auth", newRequest(t, "http://auth.invalid"), CallOptions{})
		assert.NotErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, int32(7), atomic.LoadInt32(&calls))
	})

	t.Run("failed probe re-opens the circuit", func(t *testing.T) {
		_, err := client.Call(ctx, "auth", newRequest(t, "http://auth.invalid"), CallOptions{})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, int32(7), atomic.LoadInt32(&calls))
	})
}

func TestClient_Call_AttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	store := newFakeStore()
	client := NewClient(store, Settings{}, WithHTTPClient(srv.Client()))

	start := time.Now()
	_, err := client.Call(context.Background(), "slow", newRequest(t, srv.URL), CallOptions{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, store.failures["slow"])
}

func TestClient_Call_ReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	var calls int32
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("ok")), Request: r}, nil
	})

	client := NewClient(newFakeStore(), Settings{},
		WithHTTPClient(&http.Client{Transport: transport}),
		WithSleeper((&sleepRecorder{}).Sleep),
	)

	req, err := http.NewRequest(http.MethodPost, "http://notify.invalid", strings.NewReader(`{"email":"a@b.c"}`))
	require.NoError(t, err)

	resp, err := client.Call(context.Background(), "notify", req, CallOptions{MaxRetries: 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{`{"email":"a@b.c"}`, `{"email":"a@b.c"}`}, bodies)
}

func TestClient_Call_CancelledContextStopsRetries(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(newFakeStore(), Settings{Threshold: 100},
		WithHTTPClient(&http.Client{Transport: failingTransport(&calls)}),
		WithSleeper(func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}),
	)

	_, err := client.Call(ctx, "auth", newRequest(t, "http://auth.invalid"), CallOptions{MaxRetries: 5})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Call_StoreErrorFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := newFakeStore()
	store.err = errors.New("redis: connection refused")
	client := NewClient(store, Settings{}, WithHTTPClient(srv.Client()))

	resp, err := client.Call(context.Background(), "auth", newRequest(t, srv.URL), CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
