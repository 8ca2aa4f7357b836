package storage

import (
	"context"

	"github.com/mselser95/execution-harness/internal/scenario"
)

// Storage is the interface for persisting scenario results.
type Storage interface {
	// StoreResult stores one finished scenario.
	StoreResult(ctx context.Context, result *scenario.Result) error

	// Close closes the storage connection.
	Close() error
}
