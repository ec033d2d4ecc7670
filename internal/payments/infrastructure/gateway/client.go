// Package gateway talks to the bank service that settles ticket payments.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"eventmanagement/internal/common/logging"
	"eventmanagement/internal/common/metrics"
	"eventmanagement/internal/payments/domain"
)

const transactionsPath = "/transactions/"

// maxErrorBody bounds how much of an error response is kept for logs.
const maxErrorBody = 512

// Client implements domain.PaymentGateway over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a bank client. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Process submits tx with PUT {base}/transactions/.
//
// Status mapping:
//   - 2xx: settled
//   - 503: ErrGatewayUnreachable, the bank is down and the payment can be deferred
//   - other 4xx: ErrTransactionProcessClient
//   - other 5xx: ErrTransactionProcessServer
//
// Dial failures, resets and timeouts are reported as ErrGatewayUnreachable.
func (c *Client) Process(ctx context.Context, tx domain.TransactionRequest) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encoding transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+transactionsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building bank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := logging.CorrelationIDFromContext(ctx); !id.IsEmpty() {
		req.Header.Set("X-Correlation-ID", id.String())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordGatewayRequest("unreachable", time.Since(start))
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	result, mapped := classify(resp.StatusCode)
	metrics.RecordGatewayRequest(result, time.Since(start))
	if mapped == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	logging.WarnContext(ctx, "Bank refused transaction",
		"status", resp.StatusCode,
		"result", result,
		"body", strings.TrimSpace(string(detail)),
	)
	return fmt.Errorf("%w: status %d", mapped, resp.StatusCode)
}

func classify(status int) (string, error) {
	switch {
	case status >= 200 && status < 300:
		return "settled", nil
	case status == http.StatusServiceUnavailable:
		return "unavailable", domain.ErrGatewayUnreachable
	case status >= 400 && status < 500:
		return "client_error", domain.ErrTransactionProcessClient
	case status >= 500:
		return "server_error", domain.ErrTransactionProcessServer
	default:
		return "unexpected", domain.ErrTransactionProcessServer
	}
}

var _ domain.PaymentGateway = (*Client)(nil)
