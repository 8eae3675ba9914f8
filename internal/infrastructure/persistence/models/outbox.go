package models

import (
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/google/uuid"
)

// OutboxModel is the persistence model for notification outbox entries
type OutboxModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TransferID uuid.UUID `gorm:"type:uuid;not null;index"`
	Recipient  string    `gorm:"type:varchar(200);not null"`
	Message    string    `gorm:"type:text;not null"`
	Status     string    `gorm:"type:varchar(16);not null;index:idx_outbox_status_created,priority:1"`
	Attempts   int       `gorm:"not null;default:0"`
	LastError  string    `gorm:"type:text"`
	ClaimedAt  *time.Time
	SentAt     *time.Time
	CreatedAt  time.Time `gorm:"not null;index:idx_outbox_status_created,priority:2"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OutboxModel) TableName() string {
	return "outbox_entries"
}

// ToDomain converts the model to a domain OutboxEntry
func (m *OutboxModel) ToDomain() *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:         m.ID,
		TransferID: m.TransferID,
		Recipient:  m.Recipient,
		Message:    m.Message,
		Status:     shared.OutboxStatus(m.Status),
		Attempts:   m.Attempts,
		LastError:  m.LastError,
		ClaimedAt:  m.ClaimedAt,
		SentAt:     m.SentAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// OutboxModelFromDomain converts a domain OutboxEntry to its model
func OutboxModelFromDomain(e *shared.OutboxEntry) *OutboxModel {
	return &OutboxModel{
		ID:         e.ID,
		TransferID: e.TransferID,
		Recipient:  e.Recipient,
		Message:    e.Message,
		Status:     string(e.Status),
		Attempts:   e.Attempts,
		LastError:  e.LastError,
		ClaimedAt:  e.ClaimedAt,
		SentAt:     e.SentAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// All returns every model managed by the service, in dependency order.
func All() []any {
	return []any{&AccountModel{}, &TransferModel{}, &OutboxModel{}}
}
