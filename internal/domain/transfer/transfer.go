package transfer

import (
	"fmt"
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/google/uuid"
)

// Status of a recorded transfer. Rejected attempts are never stored.
type Status string

const StatusCompleted Status = "completed"

// Transfer moves Amount from PayerID to PayeeID
type Transfer struct {
	ID             uuid.UUID `json:"id"`
	PayerID        uuid.UUID `json:"payer_id"`
	PayeeID        uuid.UUID `json:"payee_id"`
	Amount         int64     `json:"value"`
	Status         Status    `json:"status"`
	IdempotencyKey *string   `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewTransfer builds a completed transfer record
func NewTransfer(payerID, payeeID uuid.UUID, amount int64, idempotencyKey string) (*Transfer, error) {
	if amount <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "Transfer value must be positive")
	}
	if payerID == payeeID {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "Payer and payee must be different accounts")
	}

	t := &Transfer{
		ID:        uuid.New(),
		PayerID:   payerID,
		PayeeID:   payeeID,
		Amount:    amount,
		Status:    StatusCompleted,
		CreatedAt: time.Now(),
	}
	if idempotencyKey != "" {
		t.IdempotencyKey = &idempotencyKey
	}
	return t, nil
}

// NotificationMessage is the text delivered to the payee
func (t *Transfer) NotificationMessage() string {
	return fmt.Sprintf("You received a transfer of %d", t.Amount)
}
