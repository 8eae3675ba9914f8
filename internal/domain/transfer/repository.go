package transfer

import (
	"context"
	"errors"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
)

// ErrDuplicateKey is returned when a transfer with the same idempotency key was committed first.
var ErrDuplicateKey = errors.New("transfer idempotency key already used")

// Store persists transfers. CommitTransfer is the only way balances change.
type Store interface {
	// FindByIdempotencyKey returns shared.ErrNotFound when no transfer carries key
	FindByIdempotencyKey(ctx context.Context, key string) (*Transfer, error)

	// CommitTransfer debits the payer only if the balance still covers the amount,
	// credits the payee, and records the transfer and its outbox entry in one
	// transaction. It returns shared.ErrInsufficientFunds when the guarded debit
	// matches no row and ErrDuplicateKey on an idempotency key collision.
	CommitTransfer(ctx context.Context, t *Transfer, entry *shared.OutboxEntry) error
}
