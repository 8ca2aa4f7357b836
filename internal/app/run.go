package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mselser95/execution-harness/internal/scenario"
	"go.uber.org/zap"
)

const (
	serviceCheckTimeout = 5 * time.Second
	storeTimeout        = 5 * time.Second
)

// ErrSuiteFailed is returned by Run when at least one scenario failed.
var ErrSuiteFailed = errors.New("suite failed")

// Run starts the application, runs the suite and blocks until it finishes,
// or until a signal arrives when KeepServing is set.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("suite", a.suite.Name),
		zap.Int("scenarios", len(a.suite.Scenarios)),
		zap.String("api-url", a.cfg.APIURL),
		zap.String("ws-url", a.cfg.WSURL),
		zap.String("storage", a.cfg.StorageMode),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()

	a.wg.Add(1)
	go a.watchSignals()

	a.checkService()

	run, runErr := a.orchestrator.RunSuite(a.ctx, a.suite, a.storeResult)

	a.mu.Lock()
	a.lastRun = run
	a.mu.Unlock()

	if run != nil {
		a.logger.Info("suite-finished",
			zap.String("run-id", run.ID),
			zap.String("suite", run.Suite),
			zap.Int("total", run.Totals.Total),
			zap.Int("passed", run.Totals.Passed),
			zap.Int("failed", run.Totals.Failed),
			zap.Float64("success-percent", run.Totals.SuccessPercent))
	}

	if a.opts.KeepServing && a.httpServer != nil && a.ctx.Err() == nil {
		a.logger.Info("serving-results", zap.String("http-addr", ":"+a.cfg.HTTPPort))
		<-a.ctx.Done()
	}

	shutdownErr := a.Shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run suite: %w", runErr)
	}
	if shutdownErr != nil {
		return shutdownErr
	}
	if run != nil && run.Totals.Failed > 0 {
		return fmt.Errorf("%w: %d of %d scenarios failed", ErrSuiteFailed, run.Totals.Failed, run.Totals.Total)
	}

	return nil
}

func (a *App) startComponents() {
	if a.httpServer == nil {
		return
	}

	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// checkService marks the harness ready once the push channel accepts a connection.
// An unreachable service is logged and the suite still runs, so its failures are recorded.
func (a *App) checkService() {
	ctx, cancel := context.WithTimeout(a.ctx, serviceCheckTimeout)
	defer cancel()

	err := a.opener.Probe(ctx, 0)
	if err != nil {
		a.logger.Warn("execution-service-unreachable",
			zap.String("ws-url", a.cfg.WSURL),
			zap.Error(err))
		return
	}

	a.healthChecker.SetReady(true)
	a.logger.Info("application-ready", zap.String("ws-url", a.cfg.WSURL))
}

func (a *App) watchSignals() {
	defer a.wg.Done()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
		a.cancel()
	case <-a.ctx.Done():
	}
}

// storeResult is the suite sink: it persists each finished scenario and
// updates the progress the health endpoint reports.
func (a *App) storeResult(result *scenario.Result) {
	a.healthChecker.RecordResult(result.Passed)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := a.results.StoreResult(ctx, result)
	if err != nil {
		a.logger.Error("result-buffer-error", zap.Error(err))
	}

	err = a.storage.StoreResult(ctx, result)
	if err != nil {
		a.logger.Error("store-result-error",
			zap.String("scenario", result.Scenario),
			zap.Error(err))
	}
}
