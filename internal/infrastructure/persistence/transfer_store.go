package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/transfer"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/event"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTransferStore implements transfer.Store using GORM
type GormTransferStore struct {
	db     *gorm.DB
	outbox *event.GormOutboxRepository
}

// NewGormTransferStore creates a new GormTransferStore
func NewGormTransferStore(db *gorm.DB) *GormTransferStore {
	return &GormTransferStore{db: db, outbox: event.NewGormOutboxRepository(db)}
}

// FindByIdempotencyKey finds the transfer recorded under key
func (s *GormTransferStore) FindByIdempotencyKey(ctx context.Context, key string) (*transfer.Transfer, error) {
	var model models.TransferModel
	if err := s.db.WithContext(ctx).First(&model, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CommitTransfer records the transfer, moves the balance and enqueues its
// notification in a single transaction. The transfer row goes first so a
// concurrent request holding the same idempotency key collides on the unique
// index before its debit is evaluated.
func (s *GormTransferStore) CommitTransfer(ctx context.Context, t *transfer.Transfer, entry *shared.OutboxEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		if err := tx.Create(models.TransferModelFromDomain(t)).Error; err != nil {
			switch {
			case errors.Is(err, gorm.ErrDuplicatedKey):
				return transfer.ErrDuplicateKey
			case errors.Is(err, gorm.ErrForeignKeyViolated):
				return shared.NewDomainError(shared.CodeNotFound, "Account not found")
			}
			return fmt.Errorf("failed to insert transfer: %w", err)
		}

		// The balance predicate is evaluated by the engine at write time. Zero rows
		// means a concurrent debit got there first.
		debit := tx.Model(&models.AccountModel{}).
			Where("id = ? AND balance >= ?", t.PayerID, t.Amount).
			Updates(map[string]any{
				"balance":    gorm.Expr("balance - ?", t.Amount),
				"updated_at": now,
			})
		if debit.Error != nil {
			return fmt.Errorf("failed to debit payer: %w", debit.Error)
		}
		if debit.RowsAffected == 0 {
			return shared.ErrInsufficientFunds
		}

		credit := tx.Model(&models.AccountModel{}).
			Where("id = ?", t.PayeeID).
			Updates(map[string]any{
				"balance":    gorm.Expr("balance + ?", t.Amount),
				"updated_at": now,
			})
		if credit.Error != nil {
			return fmt.Errorf("failed to credit payee: %w", credit.Error)
		}
		if credit.RowsAffected == 0 {
			return shared.NewDomainError(shared.CodeNotFound, "Payee not found")
		}

		if err := s.outbox.WithTx(tx).Save(ctx, entry); err != nil {
			return fmt.Errorf("failed to insert outbox entry: %w", err)
		}
		return nil
	})
}

var _ transfer.Store = (*GormTransferStore)(nil)
