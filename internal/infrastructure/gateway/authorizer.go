package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/config"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/resilience"
	"go.uber.org/zap"
)

// AuthorizerDestination names the authorizer in breaker state and metrics
const AuthorizerDestination = "authorizer"

type authorizeResponse struct {
	Status string `json:"status"`
	Data   struct {
		Authorization bool `json:"authorization"`
	} `json:"data"`
}

// HTTPAuthorizer asks the external authorizer whether a transfer may proceed
type HTTPAuthorizer struct {
	client *resilience.Client
	cfg    config.RemoteConfig
	logger *zap.Logger
}

// NewHTTPAuthorizer creates an authorizer calling cfg.URL
func NewHTTPAuthorizer(client *resilience.Client, cfg config.RemoteConfig, logger *zap.Logger) *HTTPAuthorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPAuthorizer{client: client, cfg: cfg, logger: logger}
}

// Authorize returns nil only on an explicit approval. Transport failures and an
// open circuit map to ErrServiceUnavailable, anything else to ErrNotAuthorized.
func (a *HTTPAuthorizer) Authorize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build authorize request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Call(ctx, AuthorizerDestination, req, callOptions(a.cfg))
	if err != nil {
		a.logger.Warn("Authorizer unavailable", zap.Error(err))
		return shared.ErrServiceUnavailable
	}
	defer resp.Body.Close()

	var body authorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		a.logger.Info("Authorizer returned unreadable body",
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return shared.ErrNotAuthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || body.Status != "success" || !body.Data.Authorization {
		a.logger.Info("Transfer denied by authorizer",
			zap.Int("status", resp.StatusCode),
			zap.String("authorizer_status", body.Status),
		)
		return shared.ErrNotAuthorized
	}
	return nil
}

func callOptions(cfg config.RemoteConfig) resilience.CallOptions {
	return resilience.CallOptions{
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
	}
}
