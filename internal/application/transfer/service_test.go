package transfer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/account"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/transfer"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Create(ctx context.Context, acc *account.Account) error {
	return m.Called(ctx, acc).Error(0)
}

func (m *mockAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *mockAccountRepository) FindByLogin(ctx context.Context, login string) (*account.Account, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *mockAccountRepository) ExistsByEmailOrDocument(ctx context.Context, email, documentNumber string) (bool, error) {
	args := m.Called(ctx, email, documentNumber)
	return args.Bool(0), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindByIdempotencyKey(ctx context.Context, key string) (*transfer.Transfer, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.Transfer), args.Error(1)
}

func (m *mockStore) CommitTransfer(ctx context.Context, t *transfer.Transfer, entry *shared.OutboxEntry) error {
	return m.Called(ctx, t, entry).Error(0)
}

type mockAuthorizer struct {
	mock.Mock
}

func (m *mockAuthorizer) Authorize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingMetrics) RecordTransfer(_ context.Context, outcome string, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

type fixture struct {
	accounts   *mockAccountRepository
	store      *mockStore
	authorizer *mockAuthorizer
	metrics    *recordingMetrics
	service    *Service
	payer      *account.Account
	payee      *account.Account
}

func newFixture() *fixture {
	f := &fixture{
		accounts:   new(mockAccountRepository),
		store:      new(mockStore),
		authorizer: new(mockAuthorizer),
		metrics:    &recordingMetrics{},
		payer: &account.Account{
			ID:      uuid.New(),
			Email:   "payer@example.com",
			Kind:    account.KindPersonal,
			Balance: 50000,
		},
		payee: &account.Account{
			ID:      uuid.New(),
			Email:   "payee@example.com",
			Kind:    account.KindBusiness,
			Balance: 0,
		},
	}
	f.service = NewService(f.accounts, f.store, f.authorizer, f.metrics, zap.NewNop())
	return f
}

func (f *fixture) input(amount int64, key string) ExecuteInput {
	return ExecuteInput{PayerID: f.payer.ID, PayeeID: f.payee.ID, Amount: amount, IdempotencyKey: key}
}

func (f *fixture) expectAccounts() {
	f.accounts.On("FindByID", mock.Anything, f.payer.ID).Return(f.payer, nil)
	f.accounts.On("FindByID", mock.Anything, f.payee.ID).Return(f.payee, nil)
}

func TestService_Execute_Success(t *testing.T) {
	f := newFixture()
	f.expectAccounts()
	f.store.On("FindByIdempotencyKey", mock.Anything, "key-1").Return(nil, shared.ErrNotFound)
	f.authorizer.On("Authorize", mock.Anything).Return(nil)
	f.store.On("CommitTransfer", mock.Anything,
		mock.MatchedBy(func(tr *transfer.Transfer) bool {
			return tr.PayerID == f.payer.ID && tr.PayeeID == f.payee.ID && tr.Amount == 10000 &&
				tr.IdempotencyKey != nil && *tr.IdempotencyKey == "key-1"
		}),
		mock.MatchedBy(func(e *shared.OutboxEntry) bool {
			return e.Recipient == "payee@example.com" &&
				e.Message == "You received a transfer of 10000" &&
				e.Status == shared.OutboxStatusPending
		}),
	).Return(nil)

	tr, replayed, err := f.service.Execute(context.Background(), f.input(10000, "key-1"))
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, transfer.StatusCompleted, tr.Status)
	assert.Equal(t, []string{OutcomeCompleted}, f.metrics.outcomes)
	f.store.AssertExpectations(t)
	f.authorizer.AssertExpectations(t)
}

func TestService_Execute_ReplayHasNoSideEffects(t *testing.T) {
	f := newFixture()
	key := "key-1"
	existing := &transfer.Transfer{ID: uuid.New(), PayerID: f.payer.ID, PayeeID: f.payee.ID, Amount: 10000, IdempotencyKey: &key}
	f.store.On("FindByIdempotencyKey", mock.Anything, key).Return(existing, nil)

	tr, replayed, err := f.service.Execute(context.Background(), f.input(999999, key))
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, existing.ID, tr.ID)
	f.accounts.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	f.authorizer.AssertNotCalled(t, "Authorize", mock.Anything)
	f.store.AssertNotCalled(t, "CommitTransfer", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []string{OutcomeReplayed}, f.metrics.outcomes)
}

func TestService_Execute_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture) ExecuteInput
		wantCode string
	}{
		{
			name: "self transfer",
			setup: func(f *fixture) ExecuteInput {
				return ExecuteInput{PayerID: f.payer.ID, PayeeID: f.payer.ID, Amount: 100}
			},
			wantCode: shared.CodeInvalidRequest,
		},
		{
			name: "non positive value",
			setup: func(f *fixture) ExecuteInput {
				return f.input(0, "")
			},
			wantCode: shared.CodeInvalidRequest,
		},
		{
			name: "unknown payer",
			setup: func(f *fixture) ExecuteInput {
				f.accounts.On("FindByID", mock.Anything, f.payer.ID).Return(nil, shared.ErrNotFound)
				return f.input(100, "")
			},
			wantCode: shared.CodeNotFound,
		},
		{
			name: "business payer",
			setup: func(f *fixture) ExecuteInput {
				f.payer.Kind = account.KindBusiness
				f.accounts.On("FindByID", mock.Anything, f.payer.ID).Return(f.payer, nil)
				return f.input(100, "")
			},
			wantCode: shared.CodeForbidden,
		},
		{
			name: "unknown payee",
			setup: func(f *fixture) ExecuteInput {
				f.accounts.On("FindByID", mock.Anything, f.payer.ID).Return(f.payer, nil)
				f.accounts.On("FindByID", mock.Anything, f.payee.ID).Return(nil, shared.ErrNotFound)
				return f.input(100, "")
			},
			wantCode: shared.CodeNotFound,
		},
		{
			name: "advisory balance check",
			setup: func(f *fixture) ExecuteInput {
				f.expectAccounts()
				return f.input(50001, "")
			},
			wantCode: shared.CodeInsufficientFunds,
		},
		{
			name: "denied by authorizer",
			setup: func(f *fixture) ExecuteInput {
				f.expectAccounts()
				f.authorizer.On("Authorize", mock.Anything).Return(shared.ErrNotAuthorized)
				return f.input(100, "")
			},
			wantCode: shared.CodeNotAuthorized,
		},
		{
			name: "authorizer unavailable",
			setup: func(f *fixture) ExecuteInput {
				f.expectAccounts()
				f.authorizer.On("Authorize", mock.Anything).Return(shared.ErrServiceUnavailable)
				return f.input(100, "")
			},
			wantCode: shared.CodeServiceUnavailable,
		},
		{
			name: "guarded debit lost the race",
			setup: func(f *fixture) ExecuteInput {
				f.expectAccounts()
				f.authorizer.On("Authorize", mock.Anything).Return(nil)
				f.store.On("CommitTransfer", mock.Anything, mock.Anything, mock.Anything).Return(shared.ErrInsufficientFunds)
				return f.input(100, "")
			},
			wantCode: shared.CodeInsufficientFunds,
		},
		{
			name: "unexpected store failure",
			setup: func(f *fixture) ExecuteInput {
				f.expectAccounts()
				f.authorizer.On("Authorize", mock.Anything).Return(nil)
				f.store.On("CommitTransfer", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))
				return f.input(100, "")
			},
			wantCode: shared.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			input := tt.setup(f)

			tr, replayed, err := f.service.Execute(context.Background(), input)
			require.Error(t, err)
			assert.Nil(t, tr)
			assert.False(t, replayed)

			var domainErr *shared.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tt.wantCode, domainErr.Code)
			if tt.wantCode == shared.CodeInternal {
				assert.NotContains(t, err.Error(), "connection reset")
			}
		})
	}
}

func TestService_Execute_SelfTransferIsCheckedBeforeLookups(t *testing.T) {
	f := newFixture()

	_, _, err := f.service.Execute(context.Background(), ExecuteInput{PayerID: f.payer.ID, PayeeID: f.payer.ID, Amount: 1})
	assert.ErrorIs(t, err, shared.ErrInvalidRequest)
	f.accounts.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestService_Execute_DuplicateKeyReplays(t *testing.T) {
	f := newFixture()
	f.expectAccounts()
	key := "key-race"
	winner := &transfer.Transfer{ID: uuid.New(), PayerID: f.payer.ID, PayeeID: f.payee.ID, Amount: 100, IdempotencyKey: &key}

	f.store.On("FindByIdempotencyKey", mock.Anything, key).Return(nil, shared.ErrNotFound).Once()
	f.authorizer.On("Authorize", mock.Anything).Return(nil)
	f.store.On("CommitTransfer", mock.Anything, mock.Anything, mock.Anything).Return(transfer.ErrDuplicateKey)
	f.store.On("FindByIdempotencyKey", mock.Anything, key).Return(winner, nil).Once()

	tr, replayed, err := f.service.Execute(context.Background(), f.input(100, key))
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, winner.ID, tr.ID)
	f.store.AssertExpectations(t)
}

func TestService_Execute_DrainedBySameKeyReplays(t *testing.T) {
	f := newFixture()
	f.expectAccounts()
	key := "key-drain"
	winner := &transfer.Transfer{ID: uuid.New(), PayerID: f.payer.ID, PayeeID: f.payee.ID, Amount: 50000, IdempotencyKey: &key}

	f.store.On("FindByIdempotencyKey", mock.Anything, key).Return(nil, shared.ErrNotFound).Once()
	f.authorizer.On("Authorize", mock.Anything).Return(nil)
	f.store.On("CommitTransfer", mock.Anything, mock.Anything, mock.Anything).Return(shared.ErrInsufficientFunds)
	f.store.On("FindByIdempotencyKey", mock.Anything, key).Return(winner, nil).Once()

	tr, replayed, err := f.service.Execute(context.Background(), f.input(50000, key))
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, winner.ID, tr.ID)
	assert.Equal(t, []string{OutcomeReplayed}, f.metrics.outcomes)
	f.store.AssertExpectations(t)
}

func TestService_Execute_DrainedWithoutKeyHolderStaysInsufficient(t *testing.T) {
	f := newFixture()
	f.expectAccounts()
	key := "key-lonely"

	f.store.On("FindByIdempotencyKey", mock.Anything, key).Return(nil, shared.ErrNotFound).Twice()
	f.authorizer.On("Authorize", mock.Anything).Return(nil)
	f.store.On("CommitTransfer", mock.Anything, mock.Anything, mock.Anything).Return(shared.ErrInsufficientFunds)

	_, replayed, err := f.service.Execute(context.Background(), f.input(100, key))
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)
	assert.False(t, replayed)
	f.store.AssertExpectations(t)
}

func TestService_Execute_KeyOwnedByAnotherPayer(t *testing.T) {
	f := newFixture()
	key := "key-1"
	other := &transfer.Transfer{ID: uuid.New(), PayerID: uuid.New(), PayeeID: f.payee.ID, Amount: 10000, IdempotencyKey: &key}
	f.store.On("FindByIdempotencyKey", mock.Anything, key).Return(other, nil)

	tr, replayed, err := f.service.Execute(context.Background(), f.input(10000, key))
	assert.ErrorIs(t, err, ErrKeyOwnedByAnotherPayer)
	assert.Nil(t, tr)
	assert.False(t, replayed)
	f.authorizer.AssertNotCalled(t, "Authorize", mock.Anything)
	assert.Equal(t, []string{strings.ToLower(shared.CodeConflict)}, f.metrics.outcomes)
}
