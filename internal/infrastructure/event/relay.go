package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"go.uber.org/zap"
)

// Delivery outcomes reported to the DeliveryRecorder
const (
	DeliverySent    = "sent"
	DeliveryRetry   = "retry"
	DeliveryFailed  = "failed"
	DeliveryErrored = "store_error"
	DeliveryStale   = "claim_lost"
)

// Notifier delivers a single notification message
type Notifier interface {
	Notify(ctx context.Context, email, message string) error
}

// DeliveryRecorder receives one outcome per processed entry
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordDelivery(context.Context, string) {}

// RelayConfig holds configuration for the outbox relay
type RelayConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	MaxAttempts      int
	StuckTimeout     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultRelayConfig returns default configuration
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BatchSize:        10,
		PollInterval:     5 * time.Second,
		MaxAttempts:      shared.DefaultMaxAttempts,
		StuckTimeout:     5 * time.Minute,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Relay delivers pending outbox entries through a Notifier in the background
type Relay struct {
	repo     shared.OutboxRepository
	notifier Notifier
	config   RelayConfig
	logger   *zap.Logger
	recorder DeliveryRecorder
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RelayOption is a functional option for configuring the relay
type RelayOption func(*Relay)

// WithDeliveryRecorder sets the recorder notified of every delivery outcome
func WithDeliveryRecorder(r DeliveryRecorder) RelayOption {
	return func(relay *Relay) {
		if r != nil {
			relay.recorder = r
		}
	}
}

// WithRelayClock overrides the relay time source
func WithRelayClock(now func() time.Time) RelayOption {
	return func(relay *Relay) {
		relay.now = now
	}
}

// NewRelay creates a new outbox relay
func NewRelay(repo shared.OutboxRepository, notifier Notifier, config RelayConfig, logger *zap.Logger, opts ...RelayOption) *Relay {
	defaults := DefaultRelayConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.StuckTimeout <= 0 {
		config.StuckTimeout = defaults.StuckTimeout
	}
	if config.CleanupRetention <= 0 {
		config.CleanupRetention = defaults.CleanupRetention
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Relay{
		repo:     repo,
		notifier: notifier,
		config:   config,
		logger:   logger,
		recorder: noopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start starts the background delivery loop and, if enabled, the cleanup loop
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.processLoop(ctx)

	if r.config.CleanupEnabled {
		r.wg.Add(1)
		go r.cleanupLoop(ctx)
	}

	r.logger.Info("Outbox relay started",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval),
		zap.Int("max_attempts", r.config.MaxAttempts),
	)
	return nil
}

// Stop signals the loops to exit and waits for them, bounded by ctx
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Outbox relay stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the number of entries per status
func (r *Relay) Stats(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	return r.repo.CountByStatus(ctx)
}

func (r *Relay) processLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.processBatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.processBatch(ctx)
		}
	}
}

// processBatch claims and delivers one batch, returning how many entries were claimed
func (r *Relay) processBatch(ctx context.Context) int {
	stuckBefore := r.now().Add(-r.config.StuckTimeout)
	entries, err := r.repo.ClaimPending(ctx, r.config.BatchSize, r.config.MaxAttempts, stuckBefore)
	if err != nil {
		r.logger.Error("Failed to claim outbox entries", zap.Error(err))
		return 0
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		r.deliver(ctx, entry)
	}
	return len(entries)
}

func (r *Relay) deliver(ctx context.Context, entry *shared.OutboxEntry) {
	log := r.logger.With(
		zap.String("outbox_id", entry.ID.String()),
		zap.String("transfer_id", entry.TransferID.String()),
	)

	if entry.ClaimedAt == nil {
		log.Error("Outbox entry handed to relay without a claim")
		r.recorder.RecordDelivery(ctx, DeliveryErrored)
		return
	}
	claimedAt := *entry.ClaimedAt

	err := r.notifier.Notify(ctx, entry.Recipient, entry.Message)
	now := r.now()

	var transition error
	if err == nil {
		transition = entry.MarkSent(now)
	} else {
		transition = entry.MarkAttemptFailed(err.Error(), r.config.MaxAttempts, now)
	}
	if transition != nil {
		log.Error("Outbox entry rejected delivery outcome",
			zap.String("status", string(entry.Status)),
			zap.NamedError("notify_error", err),
			zap.Error(transition),
		)
		r.recorder.RecordDelivery(ctx, DeliveryErrored)
		return
	}

	outcome := DeliverySent
	switch {
	case err == nil:
	case entry.Status == shared.OutboxStatusFailed:
		outcome = DeliveryFailed
		log.Warn("Notification moved to failed",
			zap.Int("attempts", entry.Attempts),
			zap.String("last_error", entry.LastError),
		)
	default:
		outcome = DeliveryRetry
		log.Info("Notification delivery failed, will retry",
			zap.Int("attempts", entry.Attempts),
			zap.Error(err),
		)
	}

	if updateErr := r.repo.Update(ctx, entry, claimedAt); updateErr != nil {
		if errors.Is(updateErr, shared.ErrOutboxClaimLost) {
			log.Warn("Outbox claim taken over before the outcome was recorded",
				zap.String("outcome", outcome),
			)
			r.recorder.RecordDelivery(ctx, DeliveryStale)
			return
		}
		log.Error("Failed to update outbox entry", zap.Error(updateErr))
		r.recorder.RecordDelivery(ctx, DeliveryErrored)
		return
	}
	if outcome == DeliverySent {
		log.Debug("Notification delivered")
	}
	r.recorder.RecordDelivery(ctx, outcome)
}

func (r *Relay) cleanupLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanup(ctx)
		}
	}
}

func (r *Relay) cleanup(ctx context.Context) {
	cutoff := r.now().Add(-r.config.CleanupRetention)
	deleted, err := r.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("Failed to clean up outbox entries", zap.Error(err))
		return
	}

	if deleted > 0 {
		r.logger.Info("Cleaned up delivered outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
