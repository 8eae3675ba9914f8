package dto

import (
	"net/http"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeInvalidRequest:     http.StatusBadRequest,
	shared.CodeInsufficientFunds:  http.StatusBadRequest,
	shared.CodeUnauthenticated:    http.StatusUnauthorized,
	shared.CodeForbidden:          http.StatusForbidden,
	shared.CodeNotAuthorized:      http.StatusForbidden,
	shared.CodeNotFound:           http.StatusNotFound,
	shared.CodeConflict:           http.StatusConflict,
	shared.CodeRateLimited:        http.StatusTooManyRequests,
	shared.CodeServiceUnavailable: http.StatusServiceUnavailable,
	shared.CodeInternal:           http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
