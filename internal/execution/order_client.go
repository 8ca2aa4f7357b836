package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/execution-harness/pkg/types"
	"go.uber.org/zap"
)

const (
	// DefaultSubmitPath is the execution service's submission endpoint.
	DefaultSubmitPath = "/api/orders/execute"

	maxResponseBytes = 1 << 20
	maxMessageBytes  = 200
)

// OrderClient submits orders to the execution service.
// Submissions are never retried: a duplicate submit would create a second order.
type OrderClient struct {
	submitURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

// OrderClientConfig holds configuration for the order client.
type OrderClientConfig struct {
	BaseURL    string
	SubmitPath string
	HTTPClient *http.Client // Optional, timeouts are applied per call
	Logger     *zap.Logger
}

// NewOrderClient creates a new order client.
func NewOrderClient(cfg *OrderClientConfig) (*OrderClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", base.Scheme)
	}

	path := cfg.SubmitPath
	if path == "" {
		path = DefaultSubmitPath
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OrderClient{
		submitURL:  strings.TrimRight(base.String(), "/") + "/" + strings.TrimLeft(path, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// SubmitOrder posts req and returns the acknowledged order id.
// Any outcome other than a 2xx response carrying an order id is a *types.SubmissionError.
func (c *OrderClient) SubmitOrder(ctx context.Context, req types.OrderRequest, timeout time.Duration) (*types.SubmitResponse, error) {
	start := time.Now()

	resp, err := c.submit(ctx, req, timeout)

	SubmissionDurationSeconds.Observe(time.Since(start).Seconds())
	SubmissionsTotal.WithLabelValues(outcomeLabel(err)).Inc()

	if err != nil {
		c.logger.Debug("order-submission-failed",
			zap.String("token-in", req.TokenIn),
			zap.String("token-out", req.TokenOut),
			zap.Float64("amount", req.Amount),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("order-submitted",
		zap.String("order-id", resp.OrderID),
		zap.String("status", string(resp.Status)),
		zap.Duration("duration", time.Since(start)))

	return resp, nil
}

func (c *OrderClient) submit(ctx context.Context, req types.OrderRequest, timeout time.Duration) (*types.SubmitResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, &types.SubmissionError{Message: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.submitURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &types.SubmissionError{Message: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &types.SubmissionError{Message: fmt.Sprintf("timed out after %s", timeout), Err: err}
		}
		return nil, &types.SubmissionError{Message: "send request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &types.SubmissionError{StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.SubmissionError{StatusCode: resp.StatusCode, Message: truncate(string(body))}
	}

	var submitResp types.SubmitResponse
	err = json.Unmarshal(body, &submitResp)
	if err != nil {
		return nil, &types.SubmissionError{StatusCode: resp.StatusCode, Message: "parse response", Err: err}
	}

	if submitResp.OrderID == "" {
		return nil, &types.SubmissionError{StatusCode: resp.StatusCode, Message: "response carries no order_id"}
	}

	return &submitResp, nil
}

func outcomeLabel(err error) string {
	if err == nil {
		return "accepted"
	}

	var subErr *types.SubmissionError
	if !errors.As(err, &subErr) {
		return "error"
	}

	switch {
	case subErr.StatusCode >= 300:
		return "rejected"
	case subErr.StatusCode != 0:
		return "bad_response"
	case errors.Is(subErr.Err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport_error"
	}
}

func truncate(message string) string {
	message = strings.TrimSpace(message)
	if len(message) > maxMessageBytes {
		return message[:maxMessageBytes] + "..."
	}
	return message
}
