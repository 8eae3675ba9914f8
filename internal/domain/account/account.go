package account

import (
	"regexp"
	"strings"
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Kind distinguishes people from merchants
type Kind string

const (
	KindPersonal Kind = "personal"
	KindBusiness Kind = "business"
)

// Document lengths per kind (CPF and CNPJ).
const (
	personalDocumentLength = 11
	businessDocumentLength = 14
)

const bcryptCost = 10

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	digitsRegex = regexp.MustCompile(`^\d+$`)
	upperRegex  = regexp.MustCompile(`[A-Z]`)
	lowerRegex  = regexp.MustCompile(`[a-z]`)
	numberRegex = regexp.MustCompile(`[0-9]`)
)

// Account is a wallet holder. Balance is kept in the smallest currency unit.
type Account struct {
	ID             uuid.UUID
	Name           string
	Email          string
	DocumentNumber string
	PasswordHash   string
	Kind           Kind
	Balance        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount validates the registration data and hashes the password
func NewAccount(name, email, documentNumber, password string, kind Kind, openingBalance int64) (*Account, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 100 {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "Name must be between 2 and 100 characters")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateDocument(documentNumber, kind); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if openingBalance < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "Opening balance cannot be negative")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeInternal, "Failed to hash password")
	}

	now := time.Now()
	return &Account{
		ID:             uuid.New(),
		Name:           name,
		Email:          email,
		DocumentNumber: documentNumber,
		PasswordHash:   string(hash),
		Kind:           kind,
		Balance:        openingBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanSend returns false for business accounts, which may only receive transfers
func (a *Account) CanSend() bool {
	return a.Kind == KindPersonal
}

// HasFunds reports whether the last known balance covers amount
func (a *Account) HasFunds(amount int64) bool {
	return a.Balance >= amount
}

// VerifyPassword checks password against the stored hash
func (a *Account) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

// ParseKind accepts the internal kind names and the COMMON/MERCHANT document types
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PERSONAL", "COMMON":
		return KindPersonal, nil
	case "BUSINESS", "MERCHANT":
		return KindBusiness, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidRequest, "Document type must be either COMMON or MERCHANT")
}

// ValidateDocument checks the document number length required by kind
func ValidateDocument(doc string, kind Kind) error {
	if !digitsRegex.MatchString(doc) {
		return shared.NewDomainError(shared.CodeInvalidRequest, "Document number must contain only digits")
	}
	switch kind {
	case KindPersonal:
		if len(doc) != personalDocumentLength {
			return shared.NewDomainError(shared.CodeInvalidRequest, "Personal accounts must provide a CPF (11 digits)")
		}
	case KindBusiness:
		if len(doc) != businessDocumentLength {
			return shared.NewDomainError(shared.CodeInvalidRequest, "Business accounts must provide a CNPJ (14 digits)")
		}
	default:
		return shared.NewDomainError(shared.CodeInvalidRequest, "Unknown account kind")
	}
	return nil
}

// ValidateEmail checks email format
func ValidateEmail(email string) error {
	if len(email) > 200 || !emailRegex.MatchString(email) {
		return shared.NewDomainError(shared.CodeInvalidRequest, "Invalid email format")
	}
	return nil
}

// ValidatePassword enforces length and character classes
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return shared.NewDomainError(shared.CodeInvalidRequest, "Password must be at least 8 characters")
	}
	if len(password) > 72 {
		return shared.NewDomainError(shared.CodeInvalidRequest, "Password cannot exceed 72 characters")
	}
	if !upperRegex.MatchString(password) || !lowerRegex.MatchString(password) || !numberRegex.MatchString(password) {
		return shared.NewDomainError(shared.CodeInvalidRequest, "Password must contain an uppercase letter, a lowercase letter and a number")
	}
	return nil
}
