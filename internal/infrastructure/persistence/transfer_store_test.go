package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/transfer"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/persistence/models"
	"github.com/Gstxxx/picpay-simplificado/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransferWithEntry(t *testing.T, payer, payee uuid.UUID, amount int64, key string) (*transfer.Transfer, *shared.OutboxEntry) {
	t.Helper()
	tr, err := transfer.NewTransfer(payer, payee, amount, key)
	require.NoError(t, err)
	return tr, shared.NewOutboxEntry(tr.ID, "payee@example.com", tr.NotificationMessage())
}

func TestGormTransferStore_CommitTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("moves funds and records transfer with outbox entry", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		store := NewGormTransferStore(db)
		payer := testutil.SeedAccount(t, db, "personal", 50000)
		payee := testutil.SeedAccount(t, db, "personal", 10000)

		tr, entry := newTransferWithEntry(t, payer, payee, 10000, "")
		require.NoError(t, store.CommitTransfer(ctx, tr, entry))

		assert.Equal(t, int64(40000), testutil.Balance(t, db, payer))
		assert.Equal(t, int64(20000), testutil.Balance(t, db, payee))

		var outbox []models.OutboxModel
		require.NoError(t, db.Find(&outbox).Error)
		require.Len(t, outbox, 1)
		assert.Equal(t, string(shared.OutboxStatusPending), outbox[0].Status)
		assert.Equal(t, tr.ID, outbox[0].TransferID)
		assert.Equal(t, "You received a transfer of 10000", outbox[0].Message)
	})

	t.Run("aborts whole unit when balance no longer covers amount", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		store := NewGormTransferStore(db)
		payer := testutil.SeedAccount(t, db, "personal", 500)
		payee := testutil.SeedAccount(t, db, "personal", 0)

		tr, entry := newTransferWithEntry(t, payer, payee, 501, "")
		err := store.CommitTransfer(ctx, tr, entry)
		assert.True(t, errors.Is(err, shared.ErrInsufficientFunds))

		assert.Equal(t, int64(500), testutil.Balance(t, db, payer))
		assert.Equal(t, int64(0), testutil.Balance(t, db, payee))
		var count int64
		require.NoError(t, db.Model(&models.TransferModel{}).Count(&count).Error)
		assert.Zero(t, count)
		require.NoError(t, db.Model(&models.OutboxModel{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("rolls back debit when payee row is missing", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		store := NewGormTransferStore(db)
		payer := testutil.SeedAccount(t, db, "personal", 500)

		tr, entry := newTransferWithEntry(t, payer, uuid.New(), 100, "")
		err := store.CommitTransfer(ctx, tr, entry)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		assert.Equal(t, int64(500), testutil.Balance(t, db, payer))
	})

	t.Run("duplicate idempotency key rolls back and reports collision", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		store := NewGormTransferStore(db)
		payer := testutil.SeedAccount(t, db, "personal", 1000)
		payee := testutil.SeedAccount(t, db, "personal", 0)

		first, entry := newTransferWithEntry(t, payer, payee, 100, "key-1")
		require.NoError(t, store.CommitTransfer(ctx, first, entry))

		second, entry2 := newTransferWithEntry(t, payer, payee, 100, "key-1")
		err := store.CommitTransfer(ctx, second, entry2)
		assert.ErrorIs(t, err, transfer.ErrDuplicateKey)

		assert.Equal(t, int64(900), testutil.Balance(t, db, payer))
		assert.Equal(t, int64(100), testutil.Balance(t, db, payee))

		found, err := store.FindByIdempotencyKey(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, found.ID)
	})

	t.Run("duplicate key collides before the guarded debit", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		store := NewGormTransferStore(db)
		payer := testutil.SeedAccount(t, db, "personal", 100)
		payee := testutil.SeedAccount(t, db, "personal", 0)

		first, entry := newTransferWithEntry(t, payer, payee, 100, "drain-key")
		require.NoError(t, store.CommitTransfer(ctx, first, entry))
		require.Equal(t, int64(0), testutil.Balance(t, db, payer))

		second, entry2 := newTransferWithEntry(t, payer, payee, 100, "drain-key")
		err := store.CommitTransfer(ctx, second, entry2)
		assert.ErrorIs(t, err, transfer.ErrDuplicateKey)
		assert.False(t, errors.Is(err, shared.ErrInsufficientFunds))
	})

	t.Run("concurrent debits never overdraw", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		store := NewGormTransferStore(db)
		payer := testutil.SeedAccount(t, db, "personal", 1000)
		payees := []uuid.UUID{
			testutil.SeedAccount(t, db, "personal", 0),
			testutil.SeedAccount(t, db, "personal", 0),
		}

		var wg sync.WaitGroup
		results := make([]error, len(payees))
		for i, payee := range payees {
			wg.Add(1)
			go func(i int, payee uuid.UUID) {
				defer wg.Done()
				tr, entry := newTransferWithEntry(t, payer, payee, 1000, "")
				results[i] = store.CommitTransfer(ctx, tr, entry)
			}(i, payee)
		}
		wg.Wait()

		var succeeded, insufficient int
		for _, err := range results {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, shared.ErrInsufficientFunds):
				insufficient++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, insufficient)
		assert.Equal(t, int64(0), testutil.Balance(t, db, payer))
		assert.Equal(t, int64(1000), testutil.Balance(t, db, payees[0])+testutil.Balance(t, db, payees[1]))
	})
}

func TestGormTransferStore_CommitTransfer_SQL(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	store := NewGormTransferStore(mdb.DB)

	payer, payee := uuid.New(), uuid.New()
	tr, entry := newTransferWithEntry(t, payer, payee, 250, "")

	mdb.Mock.ExpectBegin()
	mdb.Mock.ExpectExec(`INSERT INTO "transfers"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mdb.Mock.ExpectExec(`UPDATE "accounts" SET "balance"=balance - \$1,"updated_at"=\$2 WHERE id = \$3 AND balance >= \$4`).
		WithArgs(int64(250), sqlmock.AnyArg(), payer, int64(250)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mdb.Mock.ExpectRollback()

	err := store.CommitTransfer(context.Background(), tr, entry)
	assert.True(t, errors.Is(err, shared.ErrInsufficientFunds))
	mdb.ExpectationsWereMet(t)
}

func TestGormTransferStore_FindByIdempotencyKey_NotFound(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	store := NewGormTransferStore(db)

	_, err := store.FindByIdempotencyKey(context.Background(), "missing")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}
