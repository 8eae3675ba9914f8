package identity

import (
	"context"
	"errors"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/account"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errInvalidCredentials = shared.NewDomainError(shared.CodeUnauthenticated, "Invalid credentials")

// TokenIssuer issues access tokens for authenticated accounts
type TokenIssuer interface {
	GenerateAccessToken(accountID uuid.UUID, role string) (*auth.AccessToken, error)
}

// AccountService handles registration and login
type AccountService struct {
	accounts account.Repository
	tokens   TokenIssuer
	logger   *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(accounts account.Repository, tokens TokenIssuer, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger,
	}
}

// Register creates a new account with a zero balance
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*AccountDTO, error) {
	if input.Password != input.PasswordConfirmation {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "Passwords do not match")
	}

	kind, err := account.ParseKind(input.DocumentType)
	if err != nil {
		return nil, err
	}

	acc, err := account.NewAccount(input.Name, input.Email, input.DocumentNumber, input.Password, kind, 0)
	if err != nil {
		return nil, err
	}

	exists, err := s.accounts.ExistsByEmailOrDocument(ctx, acc.Email, acc.DocumentNumber)
	if err != nil {
		s.logger.Error("Failed to check account uniqueness", zap.Error(err))
		return nil, shared.ErrInternal
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeConflict, "Email or document number already registered")
	}

	if err := s.accounts.Create(ctx, acc); err != nil {
		// A concurrent registration may still win the unique index
		if errors.Is(err, shared.ErrConflict) {
			return nil, err
		}
		s.logger.Error("Failed to create account", zap.Error(err))
		return nil, shared.ErrInternal
	}

	s.logger.Info("Account registered",
		zap.String("account_id", acc.ID.String()),
		zap.String("kind", string(acc.Kind)),
	)
	return ToAccountDTO(acc), nil
}

// Login verifies credentials and issues an access token
func (s *AccountService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	acc, err := s.accounts.FindByLogin(ctx, input.Login)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Info("Login for unknown account")
			return nil, errInvalidCredentials
		}
		s.logger.Error("Failed to load account for login", zap.Error(err))
		return nil, shared.ErrInternal
	}

	if !acc.VerifyPassword(input.Password) {
		s.logger.Warn("Invalid password attempt", zap.String("account_id", acc.ID.String()))
		return nil, errInvalidCredentials
	}

	token, err := s.tokens.GenerateAccessToken(acc.ID, DocumentTypeOf(acc.Kind))
	if err != nil {
		s.logger.Error("Failed to generate access token", zap.Error(err))
		return nil, shared.ErrInternal
	}

	s.logger.Info("Account logged in", zap.String("account_id", acc.ID.String()))
	return &LoginResult{
		Token:     token.Token,
		TokenType: token.TokenType,
		ExpiresAt: token.ExpiresAt,
		Account:   ToAccountDTO(acc),
	}, nil
}
