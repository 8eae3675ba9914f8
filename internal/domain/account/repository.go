package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for account persistence
type Repository interface {
	// Create persists a new account
	Create(ctx context.Context, account *Account) error

	// FindByID finds an account by ID, returning shared.ErrNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// FindByLogin finds an account by email or document number
	FindByLogin(ctx context.Context, login string) (*Account, error)

	// ExistsByEmailOrDocument checks uniqueness before registration
	ExistsByEmailOrDocument(ctx context.Context, email, documentNumber string) (bool, error)
}
