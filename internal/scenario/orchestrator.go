package scenario

import (
	"context"
	"time"

	"github.com/mselser95/execution-harness/internal/correlation"
	"github.com/mselser95/execution-harness/pkg/cache"
	"github.com/mselser95/execution-harness/pkg/types"
	"github.com/mselser95/execution-harness/pkg/websocket"
	"go.uber.org/zap"
)

// Submitter places orders on the synchronous submission endpoint.
type Submitter interface {
	SubmitOrder(ctx context.Context, req types.OrderRequest, timeout time.Duration) (*types.SubmitResponse, error)
}

// EventStream is one order's open push channel.
type EventStream interface {
	Events() <-chan types.StatusEvent
	Err() error
	Close() error
}

// ChannelOpener opens push channels and runs connection-level probes.
type ChannelOpener interface {
	Open(ctx context.Context, orderID string) (EventStream, error)
	Probe(ctx context.Context, hold time.Duration) error
	Reconnect(ctx context.Context, hold time.Duration) error
}

type dialerOpener struct {
	dialer *websocket.Dialer
}

// NewDialerOpener adapts a websocket dialer to ChannelOpener.
func NewDialerOpener(dialer *websocket.Dialer) ChannelOpener {
	return &dialerOpener{dialer: dialer}
}

func (d *dialerOpener) Open(ctx context.Context, orderID string) (EventStream, error) {
	ch, err := d.dialer.Open(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (d *dialerOpener) Probe(ctx context.Context, hold time.Duration) error {
	return d.dialer.Probe(ctx, hold)
}

func (d *dialerOpener) Reconnect(ctx context.Context, hold time.Duration) error {
	return d.dialer.Reconnect(ctx, hold)
}

// Config holds orchestrator configuration.
type Config struct {
	Submitter Submitter
	Opener    ChannelOpener
	Resolved  cache.Cache // Optional, shared across runs
	Logger    *zap.Logger

	// OnStart, when set, is called as each scenario begins.
	OnStart func(name string, kind Kind)

	// Submission timeouts
	SubmitTimeout              time.Duration
	ProbeSubmitTimeout         time.Duration
	HighFrequencySubmitTimeout time.Duration

	// Order tracking
	OrderTimeout     time.Duration
	AckTimeoutWindow time.Duration
	LargeOrderWindow time.Duration
	ResolvedCacheTTL time.Duration

	// Scenario thresholds
	ConcurrentOrders      int
	MinSuccessRatio       float64
	MaxInFlight           int // 0 means unbounded
	RapidConnections      int
	RapidConnectHold      time.Duration
	ReconnectWindow       time.Duration
	HighFrequencyOrders   int
	HighFrequencyMinRatio float64
	SuitePause            time.Duration
}

// DefaultConfig returns the thresholds the acknowledgment and integration suites use.
func DefaultConfig() Config {
	return Config{
		SubmitTimeout:              10 * time.Second,
		ProbeSubmitTimeout:         5 * time.Second,
		HighFrequencySubmitTimeout: 3 * time.Second,
		OrderTimeout:               30 * time.Second,
		AckTimeoutWindow:           10 * time.Second,
		LargeOrderWindow:           20 * time.Second,
		ResolvedCacheTTL:           5 * time.Minute,
		ConcurrentOrders:           5,
		MinSuccessRatio:            0.8,
		RapidConnections:           10,
		RapidConnectHold:           100 * time.Millisecond,
		ReconnectWindow:            2 * time.Second,
		HighFrequencyOrders:        20,
		HighFrequencyMinRatio:      0.75,
		SuitePause:                 5 * time.Second,
	}
}

// Orchestrator runs scenarios against the execution service.
// It is safe to run scenarios from several goroutines; every scenario call gets its
// own correlator.
type Orchestrator struct {
	cfg       Config
	submitter Submitter
	opener    ChannelOpener
	logger    *zap.Logger
}

// New creates a new Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Orchestrator{
		cfg:       cfg,
		submitter: cfg.Submitter,
		opener:    cfg.Opener,
		logger:    cfg.Logger,
	}
}

// run is the state of one scenario execution.
type run struct {
	o          *Orchestrator
	name       string
	kind       Kind
	started    time.Time
	correlator *correlation.Correlator
	logger     *zap.Logger
}

func (o *Orchestrator) newRun(name string, kind Kind) *run {
	if name == "" {
		name = string(kind)
	}

	logger := o.logger.With(zap.String("scenario", name))
	logger.Info("scenario-started", zap.String("kind", string(kind)))

	if o.cfg.OnStart != nil {
		o.cfg.OnStart(name, kind)
	}

	return &run{
		o:       o,
		name:    name,
		kind:    kind,
		started: time.Now(),
		correlator: correlation.New(correlation.Config{
			Resolved:    o.cfg.Resolved,
			ResolvedTTL: o.cfg.ResolvedCacheTTL,
			Logger:      logger,
		}),
		logger: logger,
	}
}

// finish seals result with timing, summary and metrics.
func (r *run) finish(result *Result) *Result {
	result.Scenario = r.name
	result.Kind = r.kind
	result.StartedAt = r.started
	result.Duration = time.Since(r.started)
	result.collectViolations()
	result.summarize()

	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}
	ScenariosTotal.WithLabelValues(string(r.kind), outcome).Inc()
	ScenarioDurationSeconds.WithLabelValues(string(r.kind)).Observe(result.Duration.Seconds())

	r.logger.Info("scenario-finished",
		zap.Bool("passed", result.Passed),
		zap.Int("orders", len(result.Orders)),
		zap.Int("violations", len(result.Violations)),
		zap.Duration("duration", result.Duration))

	return result
}

// fail seals result as failed with a fatal error.
func (r *run) fail(result *Result, err error) (*Result, error) {
	result.Passed = false
	result.Err = err
	r.logger.Error("scenario-aborted", zap.Error(err))
	return r.finish(result), err
}
