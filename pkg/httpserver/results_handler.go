package httpserver

import (
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/mselser95/execution-harness/internal/scenario"
	"go.uber.org/zap"
)

// ResultSource provides the most recent scenario results, oldest first.
type ResultSource interface {
	Latest() []*scenario.Result
}

// ResultsHandler serves scenario results.
type ResultsHandler struct {
	source ResultSource
	logger *zap.Logger
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(source ResultSource, logger *zap.Logger) *ResultsHandler {
	return &ResultsHandler{
		source: source,
		logger: logger,
	}
}

// ResultsResponse is the body of GET /api/results.
type ResultsResponse struct {
	Total   int               `json:"total"`
	Passed  int               `json:"passed"`
	Failed  int               `json:"failed"`
	Results []scenario.Report `json:"results"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleResults handles GET /api/results?limit=<n>&failed=<bool> requests.
func (h *ResultsHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	onlyFailed := false
	if raw := r.URL.Query().Get("failed"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, "failed must be a boolean", http.StatusBadRequest)
			return
		}
		onlyFailed = b
	}

	results := h.source.Latest()

	resp := ResultsResponse{Results: make([]scenario.Report, 0, len(results))}
	for _, result := range results {
		if result.Passed {
			resp.Passed++
		} else {
			resp.Failed++
		}
		if onlyFailed && result.Passed {
			continue
		}
		resp.Results = append(resp.Results, result.Report())
	}
	resp.Total = resp.Passed + resp.Failed

	if limit > 0 && len(resp.Results) > limit {
		resp.Results = resp.Results[len(resp.Results)-limit:]
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(resp)
	if err != nil {
		h.logger.Error("failed-to-encode-results", zap.Error(err))
	}
}

func (h *ResultsHandler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
