// Package correlation ties order ids returned by the submission endpoint to the
// status events arriving on their push channels.
package correlation

import (
	"sync"
	"time"

	"github.com/mselser95/execution-harness/pkg/cache"
	"github.com/mselser95/execution-harness/pkg/types"
	"go.uber.org/zap"
)

// RouteResult describes what Route did with an event.
type RouteResult int

const (
	// RouteAccepted means the event was appended to a live order.
	RouteAccepted RouteResult = iota
	// RouteResolved means the event was terminal and resolved its order.
	RouteResolved
	// RouteAfterTerminal means the order was already resolved; the event was discarded.
	RouteAfterTerminal
	// RouteUnknown means no order with this id is tracked; the event was discarded.
	RouteUnknown
	// RouteLate means the id belongs to an order that was already unregistered.
	RouteLate
)

func (r RouteResult) String() string {
	switch r {
	case RouteAccepted:
		return "accepted"
	case RouteResolved:
		return "resolved"
	case RouteAfterTerminal:
		return "after_terminal"
	case RouteUnknown:
		return "unknown"
	case RouteLate:
		return "late"
	default:
		return "invalid"
	}
}

// Discarded reports whether the event left every tracked order untouched.
func (r RouteResult) Discarded() bool {
	return r != RouteAccepted && r != RouteResolved
}

// Config holds correlator configuration.
type Config struct {
	// Resolved remembers unregistered ids so late events can be classified.
	// Optional.
	Resolved    cache.Cache
	ResolvedTTL time.Duration
	Logger      *zap.Logger
}

// Correlator maps order ids to their tracked state for one scenario run.
// The map lock only guards lookups; each TrackedOrder carries its own lock, so
// concurrent orders never contend on each other's state.
type Correlator struct {
	mu       sync.RWMutex
	orders   map[string]*TrackedOrder
	resolved cache.Cache
	ttl      time.Duration
	logger   *zap.Logger
}

// New creates an empty correlator.
func New(cfg Config) *Correlator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ttl := cfg.ResolvedTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Correlator{
		orders:   make(map[string]*TrackedOrder),
		resolved: cfg.Resolved,
		ttl:      ttl,
		logger:   logger,
	}
}

// Register starts tracking orderID. Registering an id twice is a correlation bug
// and returns *types.DuplicateRegistrationError.
func (c *Correlator) Register(orderID string) (*TrackedOrder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.orders[orderID]; exists {
		return nil, &types.DuplicateRegistrationError{OrderID: orderID}
	}

	order := newTrackedOrder(orderID)
	c.orders[orderID] = order
	TrackedOrders.Inc()

	c.logger.Debug("order-registered", zap.String("order-id", orderID))

	return order, nil
}

// Route applies event to the order it belongs to.
func (c *Correlator) Route(event types.StatusEvent) RouteResult {
	c.mu.RLock()
	order, ok := c.orders[event.OrderID]
	c.mu.RUnlock()

	var result RouteResult
	if ok {
		result = order.apply(event)
	} else {
		result = c.classifyUnknown(event.OrderID)
	}

	EventsRoutedTotal.WithLabelValues(result.String()).Inc()

	switch result {
	case RouteAfterTerminal:
		c.logger.Warn("event-after-terminal",
			zap.String("order-id", event.OrderID),
			zap.String("status", string(event.Status)))
	case RouteUnknown, RouteLate:
		c.logger.Debug("event-discarded",
			zap.String("order-id", event.OrderID),
			zap.String("status", string(event.Status)),
			zap.String("reason", result.String()))
	case RouteResolved:
		c.logger.Debug("order-resolved",
			zap.String("order-id", event.OrderID),
			zap.String("status", string(event.Status)))
	}

	return result
}

// Unregister stops tracking orderID. It is safe to call for unknown ids and more
// than once.
func (c *Correlator) Unregister(orderID string) {
	c.mu.Lock()
	order, ok := c.orders[orderID]
	if ok {
		delete(c.orders, orderID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	TrackedOrders.Dec()

	if c.resolved != nil {
		c.resolved.Set(orderID, string(order.lastStatus()), c.ttl)
		c.resolved.Wait()
	}
}

// Len returns the number of tracked orders.
func (c *Correlator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.orders)
}

func (c *Correlator) classifyUnknown(orderID string) RouteResult {
	if c.resolved == nil || orderID == "" {
		return RouteUnknown
	}

	if _, found := c.resolved.Get(orderID); found {
		return RouteLate
	}

	return RouteUnknown
}
