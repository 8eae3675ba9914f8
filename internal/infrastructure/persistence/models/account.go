package models

import (
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/account"
	"github.com/google/uuid"
)

// AccountModel is the persistence model for accounts
type AccountModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name           string    `gorm:"type:varchar(100);not null"`
	Email          string    `gorm:"type:varchar(200);not null;uniqueIndex"`
	DocumentNumber string    `gorm:"type:varchar(14);not null;uniqueIndex"`
	PasswordHash   string    `gorm:"type:varchar(255);not null"`
	Kind           string    `gorm:"type:varchar(16);not null"`
	Balance        int64     `gorm:"not null;default:0;check:balance >= 0"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the model to a domain Account
func (m *AccountModel) ToDomain() *account.Account {
	return &account.Account{
		ID:             m.ID,
		Name:           m.Name,
		Email:          m.Email,
		DocumentNumber: m.DocumentNumber,
		PasswordHash:   m.PasswordHash,
		Kind:           account.Kind(m.Kind),
		Balance:        m.Balance,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// AccountModelFromDomain converts a domain Account to its model
func AccountModelFromDomain(a *account.Account) *AccountModel {
	return &AccountModel{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		DocumentNumber: a.DocumentNumber,
		PasswordHash:   a.PasswordHash,
		Kind:           string(a.Kind),
		Balance:        a.Balance,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}
