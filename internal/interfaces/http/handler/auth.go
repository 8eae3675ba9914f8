package handler

import (
	"context"

	"github.com/Gstxxx/picpay-simplificado/internal/application/identity"
	"github.com/Gstxxx/picpay-simplificado/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccountService registers accounts and issues tokens
type AccountService interface {
	Register(ctx context.Context, input identity.RegisterInput) (*identity.AccountDTO, error)
	Login(ctx context.Context, input identity.LoginInput) (*identity.LoginResult, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	BaseHandler
	accounts AccountService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts AccountService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(log),
		accounts:    accounts,
	}
}

// Register creates an account and answers 201 with its public view
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), identity.RegisterInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.ConfirmPassword,
		DocumentType:         req.DocumentType,
		DocumentNumber:       req.DocumentNumber,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, account)
}

// Login authenticates by email or document number
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), identity.LoginInput{
		Login:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
