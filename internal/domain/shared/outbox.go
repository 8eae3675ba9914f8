package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the delivery status of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending  OutboxStatus = "pending"
	OutboxStatusInFlight OutboxStatus = "in_flight"
	OutboxStatusSent     OutboxStatus = "sent"
	OutboxStatusFailed   OutboxStatus = "failed"
)

// DefaultMaxAttempts is the number of delivery attempts before an entry is demoted to failed.
const DefaultMaxAttempts = 5

var (
	ErrOutboxTerminal   = errors.New("outbox entry is in a terminal state")
	ErrOutboxNotClaimed = errors.New("outbox entry is not in flight")
	ErrOutboxInFlight   = errors.New("outbox entry is already in flight")
	// ErrOutboxClaimLost means the entry was reclaimed or settled after this claim was taken
	ErrOutboxClaimLost = errors.New("outbox claim no longer held")
)

// claimExpiredError is recorded as LastError when a stuck claim is taken over
const claimExpiredError = "claim expired before delivery was recorded"

// OutboxEntry is a notification recorded alongside a transfer and delivered later by the relay.
type OutboxEntry struct {
	ID         uuid.UUID
	TransferID uuid.UUID
	Recipient  string
	Message    string
	Status     OutboxStatus
	Attempts   int
	LastError  string
	ClaimedAt  *time.Time
	SentAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewOutboxEntry creates a pending entry addressed to recipient
func NewOutboxEntry(transferID uuid.UUID, recipient, message string) *OutboxEntry {
	now := time.Now()
	return &OutboxEntry{
		ID:         uuid.New(),
		TransferID: transferID,
		Recipient:  recipient,
		Message:    message,
		Status:     OutboxStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsTerminal returns true once the entry is sent or failed
func (e *OutboxEntry) IsTerminal() bool {
	return e.Status == OutboxStatusSent || e.Status == OutboxStatusFailed
}

// Claim marks a pending entry as in flight. Stale in-flight entries go through Reclaim.
func (e *OutboxEntry) Claim(now time.Time) error {
	if e.IsTerminal() {
		return ErrOutboxTerminal
	}
	if e.Status == OutboxStatusInFlight {
		return ErrOutboxInFlight
	}
	e.Status = OutboxStatusInFlight
	e.ClaimedAt = &now
	e.UpdatedAt = now
	return nil
}

// Reclaim takes over an in-flight entry whose claim expired. The interrupted
// delivery counts as an attempt, so an entry that keeps stalling the relay
// ends up failed.
func (e *OutboxEntry) Reclaim(now time.Time, maxAttempts int) error {
	if e.Status != OutboxStatusInFlight {
		return ErrOutboxNotClaimed
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	e.Attempts++
	e.LastError = claimExpiredError
	e.UpdatedAt = now
	if e.Attempts >= maxAttempts {
		e.Status = OutboxStatusFailed
		e.ClaimedAt = nil
		return nil
	}
	e.ClaimedAt = &now
	return nil
}

// MarkSent records a successful delivery
func (e *OutboxEntry) MarkSent(now time.Time) error {
	if e.Status != OutboxStatusInFlight {
		return ErrOutboxNotClaimed
	}
	e.Status = OutboxStatusSent
	e.SentAt = &now
	e.ClaimedAt = nil
	e.LastError = ""
	e.UpdatedAt = now
	return nil
}

// MarkAttemptFailed counts a failed delivery. The entry goes back to pending,
// or to failed once attempts reach maxAttempts.
func (e *OutboxEntry) MarkAttemptFailed(errMsg string, maxAttempts int, now time.Time) error {
	if e.Status != OutboxStatusInFlight {
		return ErrOutboxNotClaimed
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	e.Attempts++
	e.LastError = errMsg
	e.ClaimedAt = nil
	e.UpdatedAt = now
	if e.Attempts >= maxAttempts {
		e.Status = OutboxStatusFailed
	} else {
		e.Status = OutboxStatusPending
	}
	return nil
}

// OutboxRepository defines the interface for outbox persistence
type OutboxRepository interface {
	// Save persists one or more outbox entries
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// ClaimPending atomically selects deliverable entries, oldest first, and marks them in flight.
	// In-flight entries claimed before stuckBefore are eligible again.
	ClaimPending(ctx context.Context, limit, maxAttempts int, stuckBefore time.Time) ([]*OutboxEntry, error)
	// Update persists the delivery outcome of an entry claimed at claimedAt. It returns
	// ErrOutboxClaimLost when the row is no longer held by that claim.
	Update(ctx context.Context, entry *OutboxEntry, claimedAt time.Time) error
	// FindByID retrieves a single outbox entry by ID
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	// DeleteSentBefore removes delivered entries older than the given time
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
	// CountByStatus returns count of entries for each status
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
