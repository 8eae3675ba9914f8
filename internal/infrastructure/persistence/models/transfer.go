package models

import (
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/transfer"
	"github.com/google/uuid"
)

// TransferModel is the persistence model for transfers
type TransferModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PayerID        uuid.UUID `gorm:"type:uuid;not null;index"`
	PayeeID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Amount         int64     `gorm:"not null;check:amount > 0"`
	Status         string    `gorm:"type:varchar(16);not null"`
	IdempotencyKey *string   `gorm:"type:varchar(255);uniqueIndex"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TransferModel) TableName() string {
	return "transfers"
}

// ToDomain converts the model to a domain Transfer
func (m *TransferModel) ToDomain() *transfer.Transfer {
	return &transfer.Transfer{
		ID:             m.ID,
		PayerID:        m.PayerID,
		PayeeID:        m.PayeeID,
		Amount:         m.Amount,
		Status:         transfer.Status(m.Status),
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt,
	}
}

// TransferModelFromDomain converts a domain Transfer to its model
func TransferModelFromDomain(t *transfer.Transfer) *TransferModel {
	return &TransferModel{
		ID:             t.ID,
		PayerID:        t.PayerID,
		PayeeID:        t.PayeeID,
		Amount:         t.Amount,
		Status:         string(t.Status),
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      t.CreatedAt,
	}
}
