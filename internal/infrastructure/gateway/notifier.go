package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/config"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/resilience"
)

// NotifierDestination names the notifier in breaker state and metrics
const NotifierDestination = "notifier"

type notifyRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// HTTPNotifier posts notifications to the external notification service
type HTTPNotifier struct {
	client *resilience.Client
	cfg    config.RemoteConfig
}

// NewHTTPNotifier creates a notifier posting to cfg.URL
func NewHTTPNotifier(client *resilience.Client, cfg config.RemoteConfig) *HTTPNotifier {
	return &HTTPNotifier{client: client, cfg: cfg}
}

// Notify delivers message to email. Any 2xx response counts as accepted.
func (n *HTTPNotifier) Notify(ctx context.Context, email, message string) error {
	payload, err := json.Marshal(notifyRequest{Email: email, Message: message})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Call(ctx, NotifierDestination, req, callOptions(n.cfg))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
