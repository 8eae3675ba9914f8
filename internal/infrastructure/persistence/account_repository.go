package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/account"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAccountRepository implements account.Repository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// Create persists a new account
func (r *GormAccountRepository) Create(ctx context.Context, acc *account.Account) error {
	if err := r.db.WithContext(ctx).Create(models.AccountModelFromDomain(acc)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeConflict, "Email or document number already registered")
		}
		return err
	}
	return nil
}

// FindByID finds an account by its ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLogin finds an account by email or document number
func (r *GormAccountRepository) FindByLogin(ctx context.Context, login string) (*account.Account, error) {
	login = strings.TrimSpace(login)
	var model models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("email = ? OR document_number = ?", strings.ToLower(login), login).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByEmailOrDocument checks if an account already uses email or documentNumber
func (r *GormAccountRepository) ExistsByEmailOrDocument(ctx context.Context, email, documentNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("email = ? OR document_number = ?", strings.ToLower(email), documentNumber).
		Count(&count).Error
	return count > 0, err
}

var _ account.Repository = (*GormAccountRepository)(nil)
