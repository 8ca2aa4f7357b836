package app

import (
	"context"
	"fmt"

	"github.com/mselser95/execution-harness/internal/execution"
	"github.com/mselser95/execution-harness/internal/scenario"
	"github.com/mselser95/execution-harness/internal/storage"
	"github.com/mselser95/execution-harness/pkg/cache"
	"github.com/mselser95/execution-harness/pkg/config"
	"github.com/mselser95/execution-harness/pkg/healthprobe"
	"github.com/mselser95/execution-harness/pkg/httpserver"
	"github.com/mselser95/execution-harness/pkg/websocket"
	"go.uber.org/zap"
)

const (
	resolvedCacheSize = 10000
	resultsCapacity   = 200
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	suite, err := setupSuite(cfg, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup suite: %w", err)
	}

	healthChecker := setupHealthChecker()
	results := storage.NewMemoryStorage(resultsCapacity)
	httpServer := setupHTTPServer(cfg, logger, healthChecker, results)

	resolved, err := cache.NewResolvedOrderCache(resolvedCacheSize, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	orderClient, err := setupOrderClient(cfg, logger)
	if err != nil {
		resolved.Close()
		cancel()
		return nil, fmt.Errorf("setup order client: %w", err)
	}

	resultStorage, err := setupStorage(ctx, cfg, logger)
	if err != nil {
		resolved.Close()
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	opener := scenario.NewDialerOpener(setupDialer(cfg, logger))
	orchestrator := setupOrchestrator(cfg, logger, orderClient, opener, resolved, healthChecker)

	return &App{
		cfg:           cfg,
		opts:          opts,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		orchestrator:  orchestrator,
		opener:        opener,
		suite:         suite,
		storage:       resultStorage,
		results:       results,
		resolved:      resolved,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupHealthChecker() *healthprobe.HealthChecker {
	return healthprobe.New()
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	results httpserver.ResultSource,
) *httpserver.Server {
	if !cfg.MetricsEnabled {
		return nil
	}

	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Results:       results,
	})
}

func setupOrderClient(cfg *config.Config, logger *zap.Logger) (*execution.OrderClient, error) {
	return execution.NewOrderClient(&execution.OrderClientConfig{
		BaseURL:    cfg.APIURL,
		SubmitPath: cfg.SubmitPath,
		Logger:     logger,
	})
}

func setupDialer(cfg *config.Config, logger *zap.Logger) *websocket.Dialer {
	return websocket.NewDialer(websocket.Config{
		URL:                   cfg.WSURL,
		DialTimeout:           cfg.WSDialTimeout,
		WriteTimeout:          cfg.WSWriteTimeout,
		EventBufferSize:       cfg.WSEventBufferSize,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		ReconnectMaxAttempts:  cfg.WSReconnectMaxAttempts,
		Logger:                logger,
	})
}

func setupOrchestrator(
	cfg *config.Config,
	logger *zap.Logger,
	submitter scenario.Submitter,
	opener scenario.ChannelOpener,
	resolved cache.Cache,
	healthChecker *healthprobe.HealthChecker,
) *scenario.Orchestrator {
	return scenario.New(scenario.Config{
		Submitter: submitter,
		Opener:    opener,
		Resolved:  resolved,
		Logger:    logger,
		OnStart: func(name string, kind scenario.Kind) {
			healthChecker.SetScenario(name)
		},
		SubmitTimeout:              cfg.SubmitTimeout,
		ProbeSubmitTimeout:         cfg.ProbeSubmitTimeout,
		HighFrequencySubmitTimeout: cfg.HighFrequencySubmitTimeout,
		OrderTimeout:               cfg.OrderTimeout,
		AckTimeoutWindow:           cfg.AckTimeoutWindow,
		LargeOrderWindow:           cfg.LargeOrderWindow,
		ResolvedCacheTTL:           cfg.ResolvedCacheTTL,
		ConcurrentOrders:           cfg.ConcurrentOrders,
		MinSuccessRatio:            cfg.MinSuccessRatio,
		MaxInFlight:                cfg.MaxInFlight,
		RapidConnections:           cfg.RapidConnections,
		RapidConnectHold:           cfg.RapidConnectHold,
		ReconnectWindow:            cfg.ReconnectWindow,
		HighFrequencyOrders:        cfg.HighFrequencyOrders,
		HighFrequencyMinRatio:      cfg.HighFrequencyMinRatio,
		SuitePause:                 cfg.SuitePause,
	})
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupSuite(cfg *config.Config, opts *Options) (*scenario.Suite, error) {
	path := opts.SuiteFile
	if path == "" {
		path = cfg.SuiteFile
	}

	suite := scenario.DefaultSuite()
	if path != "" {
		loaded, err := scenario.LoadSuite(path)
		if err != nil {
			return nil, err
		}
		suite = loaded
	}

	if len(opts.Scenarios) == 0 {
		return suite, nil
	}

	return filterSuite(suite, opts.Scenarios)
}

// filterSuite keeps scenarios whose name or kind is in names, preserving order.
func filterSuite(suite *scenario.Suite, names []string) (*scenario.Suite, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	filtered := &scenario.Suite{Name: suite.Name, Pause: suite.Pause}
	for _, spec := range suite.Scenarios {
		if wanted[spec.Name] || wanted[string(spec.Kind)] {
			filtered.Scenarios = append(filtered.Scenarios, spec)
		}
	}

	if len(filtered.Scenarios) == 0 {
		return nil, fmt.Errorf("no scenario in suite %q matches %v", suite.Name, names)
	}

	return filtered, nil
}
