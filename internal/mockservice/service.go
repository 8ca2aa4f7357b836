// Package mockservice is an in-process stand-in for the execution service: a
// submission endpoint plus a WebSocket push channel streaming scripted status flows.
package mockservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mselser95/execution-harness/pkg/types"
	"go.uber.org/zap"
)

// OrdersPath serves both the submission endpoint and the push channel.
const OrdersPath = "/api/orders/execute"

const subscriberBuffer = 64

// Config holds mock service configuration.
type Config struct {
	Bounds types.SlippageBounds
	Script Script // Defaults to DexScript(DefaultDexOptions())

	// DropConnectionsAfter closes every push connection after that many events.
	// Zero never drops.
	DropConnectionsAfter int

	// RejectSubmissions answers every submission with 503.
	RejectSubmissions bool

	Logger *zap.Logger
}

// Service is the mock execution service.
type Service struct {
	config   Config
	logger   *zap.Logger
	router   chi.Router
	upgrader websocket.Upgrader

	mu     sync.Mutex
	orders map[string]*feed

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	server *http.Server
}

// New creates a mock service.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Bounds == (types.SlippageBounds{}) {
		cfg.Bounds = types.DefaultSlippageBounds
	}
	if cfg.Script == nil {
		cfg.Script = DexScript(DefaultDexOptions())
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		config: cfg,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		orders: make(map[string]*feed),
		ctx:    ctx,
		cancel: cancel,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post(OrdersPath, s.handleSubmit)
	r.Get(OrdersPath, s.handleStream)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.router = r

	return s
}

// Handler returns the HTTP handler serving both channels.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Orders returns how many orders were accepted.
func (s *Service) Orders() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, f := range s.orders {
		if f.accepted {
			count++
		}
	}
	return count
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Service) ListenAndServe(addr string) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	s.logger.Info("mock-service-starting", zap.String("addr", addr))

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown stops the listener, if any, and every order processor.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	var err error
	if server != nil {
		err = server.Shutdown(ctx)
	}

	s.Close()

	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close stops every order processor and waits for them to exit.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.config.RejectSubmissions {
		SubmissionsTotal.WithLabelValues("unavailable").Inc()
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		SubmissionsTotal.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read body"})
		return
	}

	var req types.OrderRequest
	err = json.Unmarshal(body, &req)
	if err != nil {
		SubmissionsTotal.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid body: %v", err)})
		return
	}

	err = req.Validate(s.config.Bounds)
	if err != nil {
		SubmissionsTotal.WithLabelValues("invalid").Inc()
		s.logger.Debug("submission-rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	orderID := uuid.NewString()
	f := s.accept(orderID)

	s.wg.Add(1)
	go s.process(orderID, req, f)

	SubmissionsTotal.WithLabelValues("accepted").Inc()
	s.logger.Debug("order-accepted",
		zap.String("order-id", orderID),
		zap.String("token-in", req.TokenIn),
		zap.String("token-out", req.TokenOut),
		zap.Float64("amount", req.Amount))

	writeJSON(w, http.StatusOK, types.SubmitResponse{OrderID: orderID, Status: types.StatusPending})
}

func (s *Service) process(orderID string, req types.OrderRequest, f *feed) {
	defer s.wg.Done()

	for _, step := range s.config.Script(orderID, req) {
		if step.Delay > 0 {
			timer := time.NewTimer(step.Delay)
			select {
			case <-timer.C:
			case <-s.ctx.Done():
				timer.Stop()
				return
			}
		}

		event := step.Event
		if event.OrderID == "" {
			event.OrderID = orderID
		}
		f.publish(event)
	}
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade-failed", zap.Error(err))
		return
	}
	defer conn.Close()

	StreamsTotal.Inc()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}
	orderID := string(msg)

	f := s.feedFor(orderID)
	history, events, unsubscribe := f.subscribe()
	defer unsubscribe()

	s.logger.Debug("stream-registered", zap.String("order-id", orderID), zap.Int("backlog", len(history)))

	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sent := 0
	send := func(event types.StatusEvent) bool {
		if s.config.DropConnectionsAfter > 0 && sent >= s.config.DropConnectionsAfter {
			return false
		}
		data, err := json.Marshal(event)
		if err != nil {
			return false
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return false
		}
		sent++
		return true
	}

	for _, event := range history {
		if !send(event) {
			return
		}
	}

	for {
		select {
		case event := <-events:
			if !send(event) {
				return
			}
		case <-clientGone:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) feedFor(orderID string) *feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.orders[orderID]
	if !ok {
		f = &feed{}
		s.orders[orderID] = f
	}
	return f
}

func (s *Service) accept(orderID string) *feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := &feed{accepted: true}
	s.orders[orderID] = f
	return f
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// feed buffers an order's events and fans them out to connected streams.
type feed struct {
	accepted bool

	mu          sync.Mutex
	history     []types.StatusEvent
	subscribers map[chan types.StatusEvent]struct{}
}

func (f *feed) publish(event types.StatusEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.history = append(f.history, event)
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (f *feed) subscribe() ([]types.StatusEvent, <-chan types.StatusEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subscribers == nil {
		f.subscribers = make(map[chan types.StatusEvent]struct{})
	}

	ch := make(chan types.StatusEvent, subscriberBuffer)
	f.subscribers[ch] = struct{}{}

	history := make([]types.StatusEvent, len(f.history))
	copy(history, f.history)

	unsubscribe := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subscribers, ch)
	}

	return history, ch, unsubscribe
}
