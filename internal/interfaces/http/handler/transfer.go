package handler

import (
	"context"
	"net/http"
	"strings"

	apptransfer "github.com/Gstxxx/picpay-simplificado/internal/application/transfer"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/domain/transfer"
	"github.com/Gstxxx/picpay-simplificado/internal/interfaces/http/dto"
	"github.com/Gstxxx/picpay-simplificado/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transfer endpoint headers
const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLength  = 255
)

// TransferExecutor runs transfers
type TransferExecutor interface {
	Execute(ctx context.Context, input apptransfer.ExecuteInput) (*transfer.Transfer, bool, error)
}

// TransferHandler handles POST /transactions/transfer
type TransferHandler struct {
	BaseHandler
	transfers TransferExecutor
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(transfers TransferExecutor, log *zap.Logger) *TransferHandler {
	return &TransferHandler{
		BaseHandler: NewBaseHandler(log),
		transfers:   transfers,
	}
}

// Transfer moves value from the authenticated payer to payee.
// A replay of an earlier Idempotency-Key answers 200 with Idempotent-Replayed: true.
func (h *TransferHandler) Transfer(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		h.HandleError(c, shared.ErrUnauthenticated)
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLength {
		h.Error(c, http.StatusBadRequest, shared.CodeInvalidRequest, "Idempotency-Key is too long")
		return
	}

	payerID, err := uuid.Parse(req.Payer)
	if err != nil {
		h.Error(c, http.StatusBadRequest, shared.CodeInvalidRequest, "Invalid payer")
		return
	}
	payeeID, err := uuid.Parse(req.Payee)
	if err != nil {
		h.Error(c, http.StatusBadRequest, shared.CodeInvalidRequest, "Invalid payee")
		return
	}
	if payerID != accountID {
		h.Error(c, http.StatusForbidden, shared.CodeForbidden, "Payer must be the authenticated account")
		return
	}

	t, replayed, err := h.transfers.Execute(c.Request.Context(), apptransfer.ExecuteInput{
		PayerID:        payerID,
		PayeeID:        payeeID,
		Amount:         req.Value,
		IdempotencyKey: key,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if replayed {
		c.Header(IdempotentReplayedHeader, "true")
	}
	c.JSON(http.StatusOK, dto.TransferResponse{
		Message:     "Transfer completed successfully",
		Transaction: t,
	})
}
