package scenario

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/execution-harness/internal/aggregator"
	"github.com/mselser95/execution-harness/pkg/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ScenarioSpec describes one scenario in a suite file.
type ScenarioSpec struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`

	// Order is used by single-order kinds. Defaults to LifecycleRequest.
	Order *types.OrderRequest `yaml:"order,omitempty"`
	// Orders is used by concurrent_orders. Defaults to Count generated orders.
	Orders []types.OrderRequest `yaml:"orders,omitempty"`
	// Count is the number of orders, connections or submissions.
	Count int `yaml:"count,omitempty"`
	// Window overrides the acknowledgment window.
	Window time.Duration `yaml:"window,omitempty"`
	// Hold is how long rapid_connect keeps each connection open.
	Hold time.Duration `yaml:"hold,omitempty"`
}

// Suite is an ordered list of scenarios run one after another.
type Suite struct {
	Name      string         `yaml:"name"`
	Pause     time.Duration  `yaml:"pause,omitempty"`
	Scenarios []ScenarioSpec `yaml:"scenarios"`
}

// Validate checks that every scenario has a known kind.
func (s *Suite) Validate() error {
	if len(s.Scenarios) == 0 {
		return fmt.Errorf("suite %q has no scenarios", s.Name)
	}

	for i, spec := range s.Scenarios {
		if !spec.Kind.Valid() {
			return fmt.Errorf("scenario %d (%s): unknown kind %q", i, spec.Name, spec.Kind)
		}
		if spec.Count < 0 {
			return fmt.Errorf("scenario %d (%s): count cannot be negative", i, spec.Name)
		}
	}

	return nil
}

// Valid reports whether k is a known scenario kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSingleOrder, KindConcurrent, KindAckTimeout, KindRapidConnect, KindReconnect,
		KindInvalidSlippage, KindEdgeCases, KindHighFrequency, KindDataConsistency:
		return true
	default:
		return false
	}
}

// LoadSuite reads a suite from a YAML file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite file: %w", err)
	}

	return ParseSuite(data)
}

// ParseSuite decodes a suite from YAML.
func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	err := yaml.Unmarshal(data, &suite)
	if err != nil {
		return nil, fmt.Errorf("decode suite: %w", err)
	}

	err = suite.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate suite: %w", err)
	}

	return &suite, nil
}

// DefaultSuite runs the acknowledgment scenarios followed by the integration ones.
func DefaultSuite() *Suite {
	return &Suite{
		Name: "conformance",
		Scenarios: []ScenarioSpec{
			{Name: "order-lifecycle", Kind: KindSingleOrder},
			{Name: "concurrent-orders", Kind: KindConcurrent},
			{Name: "acknowledgment-timeout", Kind: KindAckTimeout},
			{Name: "rapid-connections", Kind: KindRapidConnect},
			{Name: "reconnection", Kind: KindReconnect},
			{Name: "invalid-slippage", Kind: KindInvalidSlippage},
			{Name: "edge-cases", Kind: KindEdgeCases},
			{Name: "high-frequency-submission", Kind: KindHighFrequency},
			{Name: "data-consistency", Kind: KindDataConsistency},
		},
	}
}

// SuiteRun is the outcome of RunSuite.
type SuiteRun struct {
	ID      string
	Suite   string
	Results []*Result
	Totals  aggregator.Totals
}

// RunSuite runs every scenario of suite in order, pausing between scenarios, and
// hands each result to sink as soon as it is available. Only fatal scenario errors
// and cancellation stop the suite early.
func (o *Orchestrator) RunSuite(ctx context.Context, suite *Suite, sink func(*Result)) (*SuiteRun, error) {
	pause := suite.Pause
	if pause <= 0 {
		pause = o.cfg.SuitePause
	}

	sr := &SuiteRun{ID: uuid.NewString(), Suite: suite.Name}
	logger := o.logger.With(zap.String("suite", suite.Name), zap.String("run-id", sr.ID))
	logger.Info("suite-started", zap.Int("scenarios", len(suite.Scenarios)))

	var runErr error
	for i, spec := range suite.Scenarios {
		if i > 0 && pause > 0 {
			timer := time.NewTimer(pause)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		result, err := o.runSpec(ctx, spec)
		if result != nil {
			sr.Results = append(sr.Results, result)
			if sink != nil {
				sink(result)
			}
		}
		if err != nil {
			runErr = fmt.Errorf("scenario %s: %w", spec.Name, err)
			break
		}
	}

	passed := make([]bool, len(sr.Results))
	for i, result := range sr.Results {
		passed[i] = result.Passed
	}
	sr.Totals = aggregator.Tally(passed)

	logger.Info("suite-finished",
		zap.Int("total", sr.Totals.Total),
		zap.Int("passed", sr.Totals.Passed),
		zap.Int("failed", sr.Totals.Failed),
		zap.Float64("success-percent", sr.Totals.SuccessPercent))

	return sr, runErr
}

func (o *Orchestrator) runSpec(ctx context.Context, spec ScenarioSpec) (*Result, error) {
	r := o.newRun(spec.Name, spec.Kind)

	order := LifecycleRequest()
	if spec.Order != nil {
		order = *spec.Order
	}

	switch spec.Kind {
	case KindSingleOrder:
		return o.singleOrder(ctx, r, order)
	case KindConcurrent:
		reqs := spec.Orders
		if len(reqs) == 0 && spec.Count > 0 {
			reqs = ConcurrentRequests(spec.Count)
		}
		return o.concurrentOrders(ctx, r, reqs)
	case KindAckTimeout:
		return o.acknowledgmentTimeout(ctx, r, order, spec.Window)
	case KindRapidConnect:
		return o.rapidConnect(ctx, r, spec.Count, spec.Hold)
	case KindReconnect:
		return o.reconnectAfterClose(ctx, r)
	case KindInvalidSlippage:
		return o.invalidSlippage(ctx, r)
	case KindEdgeCases:
		return o.edgeCaseProbes(ctx, r)
	case KindHighFrequency:
		return o.highFrequencySubmission(ctx, r, spec.Count)
	case KindDataConsistency:
		if spec.Order == nil {
			order = marketOrder("SOL", "USDC", 7.5, 0.03)
		}
		return o.dataConsistency(ctx, r, order)
	default:
		return nil, fmt.Errorf("unknown scenario kind %q", spec.Kind)
	}
}
