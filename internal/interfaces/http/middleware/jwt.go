package middleware

import (
	"errors"
	"net/http"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/auth"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey    = "jwt_claims"
	JWTAccountIDKey = "jwt_account_id"
	JWTRoleKey      = "jwt_role"
	AuthHeaderKey   = "Authorization"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// JWTAuth requires a valid bearer token and stores the account ID and role in the context
func JWTAuth(validator TokenValidator, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.GetHeader(AuthHeaderKey))
		if err != nil {
			rejectToken(c, log, err, "Missing or malformed authorization header")
			return
		}

		claims, err := validator.ValidateAccessToken(token)
		if err != nil {
			rejectToken(c, log, err, tokenErrorMessage(err))
			return
		}

		accountID, err := claims.AccountID()
		if err != nil {
			rejectToken(c, log, err, "Invalid token")
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTAccountIDKey, accountID)
		c.Set(JWTRoleKey, claims.Role)
		c.Request = c.Request.WithContext(logger.WithAccountID(c.Request.Context(), accountID.String()))

		c.Next()
	}
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return "Token is not yet valid"
	default:
		return "Invalid token"
	}
}

func rejectToken(c *gin.Context, log *zap.Logger, err error, message string) {
	log.Debug("JWT authentication failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", GetRequestID(c)),
	)
	abortWithError(c, http.StatusUnauthorized, shared.CodeUnauthenticated, message)
}

// GetAccountID returns the authenticated account ID, or false when the request is anonymous
func GetAccountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(JWTAccountIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetRole returns the role claim of the authenticated account
func GetRole(c *gin.Context) string {
	return c.GetString(JWTRoleKey)
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
