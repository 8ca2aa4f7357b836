package execution

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/execution-harness/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL string) *OrderClient {
	t.Helper()

	client, err := NewOrderClient(&OrderClientConfig{
		BaseURL: baseURL,
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)

	return client
}

func testRequest() types.OrderRequest {
	return types.OrderRequest{
		TokenIn:     "SOL",
		TokenOut:    "USDC",
		Amount:      15.5,
		OrderType:   types.OrderTypeMarket,
		MaxSlippage: 0.04,
	}
}

func TestNewOrderClient(t *testing.T) {
	t.Run("default-submit-path", func(t *testing.T) {
		client := newTestClient(t, "http://localhost:3000/")
		assert.Equal(t, "http://localhost:3000/api/orders/execute", client.submitURL)
	})

	t.Run("custom-submit-path", func(t *testing.T) {
		client, err := NewOrderClient(&OrderClientConfig{
			BaseURL:    "https://exec.example.com",
			SubmitPath: "v2/orders",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://exec.example.com/v2/orders", client.submitURL)
	})

	t.Run("rejects-websocket-scheme", func(t *testing.T) {
		_, err := NewOrderClient(&OrderClientConfig{BaseURL: "ws://localhost:3000"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported scheme")
	})
}

func TestSubmitOrder_Success(t *testing.T) {
	var received types.OrderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders/execute", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order_id":"0b6f4a1e","status":"pending"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).SubmitOrder(context.Background(), testRequest(), time.Second)
	require.NoError(t, err)

	assert.Equal(t, "0b6f4a1e", resp.OrderID)
	assert.Equal(t, types.StatusPending, resp.Status)
	assert.Equal(t, testRequest(), received)
}

func TestSubmitOrder_Failures(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantStatus   int
		wantRejected bool
		wantMessage  string
	}{
		{
			name:         "bad-request",
			status:       http.StatusBadRequest,
			body:         `{"error":"max_slippage out of range"}`,
			wantStatus:   400,
			wantRejected: true,
			wantMessage:  "max_slippage out of range",
		},
		{
			name:        "server-error",
			status:      http.StatusInternalServerError,
			body:        "boom",
			wantStatus:  500,
			wantMessage: "boom",
		},
		{
			name:        "missing-order-id",
			status:      http.StatusOK,
			body:        `{"status":"pending"}`,
			wantStatus:  200,
			wantMessage: "no order_id",
		},
		{
			name:        "malformed-body",
			status:      http.StatusOK,
			body:        `not json`,
			wantStatus:  200,
			wantMessage: "parse response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := newTestClient(t, srv.URL).SubmitOrder(context.Background(), testRequest(), time.Second)
			require.Error(t, err)
			assert.Nil(t, resp)

			var subErr *types.SubmissionError
			require.True(t, errors.As(err, &subErr))
			assert.Equal(t, tt.wantStatus, subErr.StatusCode)
			assert.Equal(t, tt.wantRejected, subErr.Rejected())
			assert.Contains(t, err.Error(), tt.wantMessage)
		})
	}
}

func TestSubmitOrder_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := newTestClient(t, srv.URL).SubmitOrder(context.Background(), testRequest(), 50*time.Millisecond)
	require.Error(t, err)

	assert.Less(t, time.Since(start), time.Second)

	var subErr *types.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, 0, subErr.StatusCode)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, strings.Contains(err.Error(), "timed out after 50ms"))
}

func TestSubmitOrder_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).SubmitOrder(context.Background(), testRequest(), time.Second)

	var subErr *types.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "transport_error", outcomeLabel(err))
}

func TestOutcomeLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"accepted", nil, "accepted"},
		{"rejected", &types.SubmissionError{StatusCode: 400}, "rejected"},
		{"bad-response", &types.SubmissionError{StatusCode: 200}, "bad_response"},
		{"timeout", &types.SubmissionError{Err: context.DeadlineExceeded}, "timeout"},
		{"transport", &types.SubmissionError{Err: errors.New("reset")}, "transport_error"},
		{"untyped", errors.New("other"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomeLabel(tt.err))
		})
	}
}
