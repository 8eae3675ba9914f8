package shared

import "errors"

// Error codes shared by the domain and application layers.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeNotAuthorized      = "NOT_AUTHORIZED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so wrapped errors with a
// custom message still match the sentinel values below.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidRequest     = NewDomainError(CodeInvalidRequest, "Invalid request")
	ErrNotFound           = NewDomainError(CodeNotFound, "Resource not found")
	ErrForbidden          = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
	ErrInsufficientFunds  = NewDomainError(CodeInsufficientFunds, "Insufficient balance")
	ErrUnauthenticated    = NewDomainError(CodeUnauthenticated, "Authentication required")
	ErrNotAuthorized      = NewDomainError(CodeNotAuthorized, "Transaction not authorized")
	ErrServiceUnavailable = NewDomainError(CodeServiceUnavailable, "Authorization service unavailable")
	ErrRateLimited        = NewDomainError(CodeRateLimited, "Too many requests")
	ErrConflict           = NewDomainError(CodeConflict, "Resource already exists")
	ErrInternal           = NewDomainError(CodeInternal, "Internal server error")
)
