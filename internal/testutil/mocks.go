package testutil

import (
	"net/http/httptest"
	"strings"

	"github.com/mselser95/execution-harness/internal/mockservice"
)

// MockExecutionService runs the mock execution service on a local test server.
type MockExecutionService struct {
	*httptest.Server
	Service *mockservice.Service
	APIURL  string
	WSURL   string
}

// NewMockExecutionService starts a mock execution service.
func NewMockExecutionService(cfg mockservice.Config) *MockExecutionService {
	svc := mockservice.New(cfg)
	srv := httptest.NewServer(svc.Handler())

	return &MockExecutionService{
		Server:  srv,
		Service: svc,
		APIURL:  srv.URL,
		WSURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + mockservice.OrdersPath,
	}
}

// Close stops the order processors and the test server.
func (m *MockExecutionService) Close() {
	m.Service.Close()
	m.Server.Close()
}
