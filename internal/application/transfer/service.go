package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/account"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/transfer"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcomes reported to Metrics besides lowercased error codes
const (
	OutcomeCompleted = "completed"
	OutcomeReplayed  = "replayed"
)

// ErrKeyOwnedByAnotherPayer is returned when an idempotency key was already used by a different payer.
var ErrKeyOwnedByAnotherPayer = shared.NewDomainError(shared.CodeConflict, "Idempotency key already used by another account")

// Authorizer approves or denies a transfer before any balance moves.
// It returns nil on approval, shared.ErrNotAuthorized on denial and
// shared.ErrServiceUnavailable when the decision could not be obtained.
type Authorizer interface {
	Authorize(ctx context.Context) error
}

// Metrics records transfer outcomes
type Metrics interface {
	RecordTransfer(ctx context.Context, outcome string, amount int64)
}

type noopMetrics struct{}

func (noopMetrics) RecordTransfer(context.Context, string, int64) {}

// ExecuteInput is the request to move Amount from PayerID to PayeeID
type ExecuteInput struct {
	PayerID        uuid.UUID
	PayeeID        uuid.UUID
	Amount         int64
	IdempotencyKey string
}

// Service orchestrates a transfer: replay lookup, validation, external
// authorization and the atomic balance movement.
type Service struct {
	accounts   account.Repository
	store      transfer.Store
	authorizer Authorizer
	metrics    Metrics
	logger     *zap.Logger
}

// NewService creates a new transfer service. metrics may be nil.
func NewService(
	accounts account.Repository,
	store transfer.Store,
	authorizer Authorizer,
	metrics Metrics,
	logger *zap.Logger,
) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		accounts:   accounts,
		store:      store,
		authorizer: authorizer,
		metrics:    metrics,
		logger:     logger,
	}
}

// Execute runs a transfer. The boolean is true when the result is a replay of
// an earlier transfer recorded under the same idempotency key.
func (s *Service) Execute(ctx context.Context, input ExecuteInput) (*transfer.Transfer, bool, error) {
	log := logger.WithTrace(ctx, logger.FromContextOr(ctx, s.logger)).With(
		zap.String("payer_id", input.PayerID.String()),
		zap.String("payee_id", input.PayeeID.String()),
		zap.Int64("value", input.Amount),
	)

	t, replayed, err := s.execute(ctx, input, log)
	if err != nil {
		err = s.classify(err, log)
		s.metrics.RecordTransfer(ctx, outcomeOf(err), input.Amount)
		return nil, false, err
	}

	if replayed {
		s.metrics.RecordTransfer(ctx, OutcomeReplayed, t.Amount)
	} else {
		s.metrics.RecordTransfer(ctx, OutcomeCompleted, t.Amount)
	}
	return t, replayed, nil
}

func (s *Service) execute(ctx context.Context, input ExecuteInput, log *zap.Logger) (*transfer.Transfer, bool, error) {
	if input.IdempotencyKey != "" {
		existing, err := s.findReplay(ctx, input)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			log.Info("Replaying transfer for idempotency key", zap.String("transfer_id", existing.ID.String()))
			return existing, true, nil
		}
	}

	t, err := transfer.NewTransfer(input.PayerID, input.PayeeID, input.Amount, input.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}

	payer, err := s.accounts.FindByID(ctx, input.PayerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false, shared.NewDomainError(shared.CodeNotFound, "Payer not found")
		}
		return nil, false, err
	}
	if !payer.CanSend() {
		return nil, false, shared.NewDomainError(shared.CodeForbidden, "Business accounts cannot send transfers")
	}

	payee, err := s.accounts.FindByID(ctx, input.PayeeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false, shared.NewDomainError(shared.CodeNotFound, "Payee not found")
		}
		return nil, false, err
	}

	// Advisory only: the guarded debit in CommitTransfer is what enforces it.
	if !payer.HasFunds(input.Amount) {
		return nil, false, shared.ErrInsufficientFunds
	}

	if err := s.authorizer.Authorize(ctx); err != nil {
		return nil, false, err
	}

	entry := shared.NewOutboxEntry(t.ID, payee.Email, t.NotificationMessage())
	if err := s.store.CommitTransfer(ctx, t, entry); err != nil {
		raced := errors.Is(err, transfer.ErrDuplicateKey)
		if input.IdempotencyKey == "" || !(raced || errors.Is(err, shared.ErrInsufficientFunds)) {
			return nil, false, err
		}
		// A same-key request may have drained the balance before this one reached
		// its debit, so an insufficient-funds outcome is checked against the key too.
		existing, findErr := s.findReplay(ctx, input)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing == nil {
			if raced {
				return nil, false, fmt.Errorf("idempotency key %q collided but no transfer carries it", input.IdempotencyKey)
			}
			return nil, false, err
		}
		log.Info("Concurrent request committed first, replaying",
			zap.String("transfer_id", existing.ID.String()),
		)
		return existing, true, nil
	}

	log.Info("Transfer completed", zap.String("transfer_id", t.ID.String()))
	return t, false, nil
}

// findReplay returns the transfer already recorded under the input key, or nil
// when there is none. A key recorded by another payer is a conflict.
func (s *Service) findReplay(ctx context.Context, input ExecuteInput) (*transfer.Transfer, error) {
	existing, err := s.store.FindByIdempotencyKey(ctx, input.IdempotencyKey)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.PayerID != input.PayerID {
		return nil, ErrKeyOwnedByAnotherPayer
	}
	return existing, nil
}

// classify passes domain errors through and hides everything else behind ErrInternal
func (s *Service) classify(err error, log *zap.Logger) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		log.Info("Transfer rejected", zap.String("code", domainErr.Code), zap.String("reason", domainErr.Message))
		return domainErr
	}
	log.Error("Transfer failed", zap.Error(err))
	return shared.ErrInternal
}

func outcomeOf(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return strings.ToLower(domainErr.Code)
	}
	return strings.ToLower(shared.CodeInternal)
}
