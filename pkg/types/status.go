package types

import (
	"fmt"
	"time"
)

// Status is one step of an order's execution lifecycle.
type Status string

// Lifecycle statuses. Confirmed and failed are terminal.
const (
	StatusPending   Status = "pending"
	StatusRouting   Status = "routing"
	StatusBuilding  Status = "building"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// LifecycleStatuses are the transient statuses a full lifecycle passes through, in order.
//
//nolint:gochecknoglobals // Immutable lifecycle definition
var LifecycleStatuses = []Status{
	StatusPending,
	StatusRouting,
	StatusBuilding,
	StatusSubmitted,
}

const terminalRank = 4

// IsTerminal reports whether no further status is expected after s.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of s in the lifecycle partial order, or -1 when unknown.
// Both terminal statuses share the highest rank.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRouting:
		return 1
	case StatusBuilding:
		return 2
	case StatusSubmitted:
		return 3
	case StatusConfirmed, StatusFailed:
		return terminalRank
	default:
		return -1
	}
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", value)
	}
	return s, nil
}

// StatusEvent is one lifecycle update pushed for an order.
type StatusEvent struct {
	OrderID        string   `json:"order_id"`
	Status         Status   `json:"status"`
	TxHash         string   `json:"tx_hash,omitempty"`
	ExecutionPrice *float64 `json:"execution_price,omitempty"`
	Reason         string   `json:"reason,omitempty"`

	// ReceivedAt is stamped locally when the frame is read.
	ReceivedAt time.Time `json:"-"`
}

// Price returns the execution price, or zero when the event carries none.
func (e StatusEvent) Price() float64 {
	if e.ExecutionPrice == nil {
		return 0
	}
	return *e.ExecutionPrice
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
