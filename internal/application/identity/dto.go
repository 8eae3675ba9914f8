package identity

import (
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/account"
	"github.com/google/uuid"
)

// RegisterInput contains input for account registration
type RegisterInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
	DocumentType         string // COMMON or MERCHANT
	DocumentNumber       string
}

// LoginInput contains input for login. Login is an email or document number.
type LoginInput struct {
	Login    string
	Password string
}

// AccountDTO is the public view of an account. It never carries the password hash.
type AccountDTO struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	DocumentType   string    `json:"document_type"`
	DocumentNumber string    `json:"document_number"`
	Balance        int64     `json:"balance"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LoginResult is returned on successful login
type LoginResult struct {
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	ExpiresAt time.Time   `json:"expires_at"`
	Account   *AccountDTO `json:"account"`
}

// ToAccountDTO converts a domain account to its public view
func ToAccountDTO(a *account.Account) *AccountDTO {
	return &AccountDTO{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		DocumentType:   DocumentTypeOf(a.Kind),
		DocumentNumber: a.DocumentNumber,
		Balance:        a.Balance,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// DocumentTypeOf maps an account kind to the COMMON/MERCHANT document type
func DocumentTypeOf(kind account.Kind) string {
	if kind == account.KindBusiness {
		return "MERCHANT"
	}
	return "COMMON"
}
