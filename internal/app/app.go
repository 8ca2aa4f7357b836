package app

import (
	"context"
	"sync"

	"github.com/mselser95/execution-harness/internal/scenario"
	"github.com/mselser95/execution-harness/internal/storage"
	"github.com/mselser95/execution-harness/pkg/cache"
	"github.com/mselser95/execution-harness/pkg/config"
	"github.com/mselser95/execution-harness/pkg/healthprobe"
	"github.com/mselser95/execution-harness/pkg/httpserver"
	"go.uber.org/zap"
)

// App wires the harness components and runs a suite against the execution service.
type App struct {
	cfg           *config.Config
	opts          *Options
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server // nil unless metrics are enabled
	orchestrator  *scenario.Orchestrator
	opener        scenario.ChannelOpener
	suite         *scenario.Suite
	storage       storage.Storage
	results       *storage.MemoryStorage
	resolved      *cache.RistrettoCache
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	shutdownOnce  sync.Once

	mu      sync.Mutex
	lastRun *scenario.SuiteRun
}

// Options holds application options.
type Options struct {
	SuiteFile   string   // Overrides SUITE_FILE
	Scenarios   []string // Run only scenarios with these names or kinds
	KeepServing bool     // Keep the HTTP server up after the suite until a signal arrives
}

// LastRun returns the most recent suite run, or nil before one finished.
func (a *App) LastRun() *scenario.SuiteRun {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRun
}
