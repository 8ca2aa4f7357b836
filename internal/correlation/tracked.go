package correlation

import (
	"sync"
	"time"

	"github.com/mselser95/execution-harness/pkg/types"
)

// TrackedOrder is the state accumulated for one registered order.
type TrackedOrder struct {
	orderID      string
	registeredAt time.Time

	mu        sync.Mutex
	events    []types.StatusEvent
	firstSeen time.Time
	lastSeen  time.Time
	terminal  *types.StatusEvent
	done      chan struct{}
}

func newTrackedOrder(orderID string) *TrackedOrder {
	return &TrackedOrder{
		orderID:      orderID,
		registeredAt: time.Now(),
		done:         make(chan struct{}),
	}
}

// OrderID returns the tracked order id.
func (o *TrackedOrder) OrderID() string {
	return o.orderID
}

// Done is closed exactly once, when the first terminal status is applied.
func (o *TrackedOrder) Done() <-chan struct{} {
	return o.done
}

func (o *TrackedOrder) apply(event types.StatusEvent) RouteResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.terminal != nil {
		return RouteAfterTerminal
	}

	seen := event.ReceivedAt
	if seen.IsZero() {
		seen = time.Now()
	}
	if o.firstSeen.IsZero() {
		o.firstSeen = seen
	}
	o.lastSeen = seen
	o.events = append(o.events, event)

	if !event.Status.IsTerminal() {
		return RouteAccepted
	}

	terminal := event
	o.terminal = &terminal
	close(o.done)

	return RouteResolved
}

func (o *TrackedOrder) lastStatus() types.Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.events) == 0 {
		return ""
	}
	return o.events[len(o.events)-1].Status
}

// Snapshot is an immutable copy of a tracked order's state.
type Snapshot struct {
	OrderID       string
	RegisteredAt  time.Time
	Events        []types.StatusEvent
	Statuses      []types.Status
	FirstSeen     time.Time
	LastSeen      time.Time
	Terminal      bool
	TerminalEvent *types.StatusEvent
}

// Snapshot copies the current state.
func (o *TrackedOrder) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	events := make([]types.StatusEvent, len(o.events))
	copy(events, o.events)

	statuses := make([]types.Status, len(o.events))
	for i, event := range o.events {
		statuses[i] = event.Status
	}

	snap := Snapshot{
		OrderID:      o.orderID,
		RegisteredAt: o.registeredAt,
		Events:       events,
		Statuses:     statuses,
		FirstSeen:    o.firstSeen,
		LastSeen:     o.lastSeen,
		Terminal:     o.terminal != nil,
	}

	if o.terminal != nil {
		terminal := *o.terminal
		snap.TerminalEvent = &terminal
	}

	return snap
}

// LastStatus returns the most recent status, or empty when nothing was received.
func (s Snapshot) LastStatus() types.Status {
	if len(s.Statuses) == 0 {
		return ""
	}
	return s.Statuses[len(s.Statuses)-1]
}
