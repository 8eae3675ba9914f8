package handler

import (
	"errors"
	"net/http"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/logger"
	"github.com/Gstxxx/picpay-simplificado/internal/interfaces/http/dto"
	"github.com/Gstxxx/picpay-simplificado/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const genericErrorMessage = "An unexpected error occurred"

// BaseHandler provides common handler utilities
type BaseHandler struct {
	logger *zap.Logger
}

// NewBaseHandler creates a BaseHandler logging unexpected errors to log
func NewBaseHandler(log *zap.Logger) BaseHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return BaseHandler{logger: log}
}

// Success sends a 200 response in the standard envelope
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response in the standard envelope
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BindError answers a failed ShouldBindJSON with 400 and per-field details when available
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	resp := dto.NewErrorResponse(shared.CodeInvalidRequest, "Request validation failed", middleware.GetRequestID(c))
	if details := middleware.ValidationDetails(err); details != nil {
		resp.Error.Details = details
	} else {
		resp.Error.Message = "Invalid request body"
	}
	c.JSON(http.StatusBadRequest, resp)
}

// HandleError maps domain errors to their status. Anything else is logged
// with the request ID and answered with a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		if domainErr.Code == shared.CodeInternal {
			h.Error(c, http.StatusInternalServerError, shared.CodeInternal, genericErrorMessage)
			return
		}
		h.Error(c, dto.GetHTTPStatus(domainErr.Code), domainErr.Code, domainErr.Message)
		return
	}

	logger.FromContextOr(c.Request.Context(), h.logger).Error("Unhandled error",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	_ = c.Error(err)
	h.Error(c, http.StatusInternalServerError, shared.CodeInternal, genericErrorMessage)
}
