package resilience

import (
	"context"
	"time"
)

// BreakerStore holds per-destination failure state. Implementations must be
// safe for concurrent use; the state lives as long as the store does.
type BreakerStore interface {
	// State returns the consecutive failure count and the time of the last failure
	State(ctx context.Context, destination string) (failures int, lastFailure time.Time, err error)
	// RecordFailure increments the failure count and stamps the failure time
	RecordFailure(ctx context.Context, destination string, at time.Time) (int, error)
	// Reset clears the failure count after a successful response
	Reset(ctx context.Context, destination string) error
}

// CallObserver receives call outcomes, typically to record metrics
type CallObserver interface {
	ObserveAttempt(ctx context.Context, destination, outcome string, duration time.Duration)
	ObserveCircuitOpen(ctx context.Context, destination string)
}

// Attempt outcomes reported to CallObserver
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport_error"
)

type noopObserver struct{}

func (noopObserver) ObserveAttempt(context.Context, string, string, time.Duration) {}
func (noopObserver) ObserveCircuitOpen(context.Context, string)                    {}
