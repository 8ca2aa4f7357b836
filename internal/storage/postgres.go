package storage

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mselser95/execution-harness/internal/scenario"
	"go.uber.org/zap"
)

// Schema creates the result tables when they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS scenario_runs (
	id           UUID PRIMARY KEY,
	scenario     TEXT NOT NULL,
	kind         TEXT NOT NULL,
	passed       BOOLEAN NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL,
	probes_total INTEGER NOT NULL,
	probes_ok    INTEGER NOT NULL,
	violations   INTEGER NOT NULL,
	notes        TEXT[],
	summary      JSONB NOT NULL,
	error        TEXT
);

CREATE TABLE IF NOT EXISTS order_results (
	id              BIGSERIAL PRIMARY KEY,
	run_id          UUID NOT NULL REFERENCES scenario_runs(id) ON DELETE CASCADE,
	label           TEXT,
	order_id        TEXT,
	token_in        TEXT NOT NULL,
	token_out       TEXT NOT NULL,
	amount          DOUBLE PRECISION NOT NULL,
	max_slippage    DOUBLE PRECISION NOT NULL,
	outcome         TEXT NOT NULL,
	statuses        TEXT[],
	tx_hash         TEXT,
	execution_price DOUBLE PRECISION,
	reason          TEXT,
	completion_ms   BIGINT NOT NULL,
	error           TEXT
);

CREATE INDEX IF NOT EXISTS idx_order_results_order_id ON order_results(order_id);
CREATE INDEX IF NOT EXISTS idx_scenario_runs_started_at ON scenario_runs(started_at);
`

const insertRunQuery = `
	INSERT INTO scenario_runs (
		id, scenario, kind, passed, started_at, duration_ms,
		probes_total, probes_ok, violations, notes, summary, error
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
	)
`

const insertOrderQuery = `
	INSERT INTO order_results (
		run_id, label, order_id, token_in, token_out, amount, max_slippage,
		outcome, statuses, tx_hash, execution_price, reason, completion_ms, error
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
	)
`

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage connects to PostgreSQL and creates the result tables.
func NewPostgresStorage(ctx context.Context, cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}

	err = p.migrate(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return p, nil
}

func (p *PostgresStorage) migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// StoreResult stores a scenario run and its orders in one transaction.
func (p *PostgresStorage) StoreResult(ctx context.Context, result *scenario.Result) error {
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	runID := uuid.NewString()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	_, err = tx.ExecContext(ctx, insertRunQuery,
		runID,
		result.Scenario,
		string(result.Kind),
		result.Passed,
		result.StartedAt,
		result.Duration.Milliseconds(),
		result.Probes.Attempted,
		result.Probes.Succeeded,
		len(result.Violations),
		pq.Array(result.Notes),
		summary,
		errString(result.Err),
	)
	if err != nil {
		return fmt.Errorf("insert scenario run: %w", err)
	}

	for _, order := range result.Orders {
		statuses := make([]string, len(order.Statuses))
		for i, s := range order.Statuses {
			statuses[i] = string(s)
		}

		_, err = tx.ExecContext(ctx, insertOrderQuery,
			runID,
			order.Label,
			nullString(order.OrderID),
			order.Request.TokenIn,
			order.Request.TokenOut,
			order.Request.Amount,
			order.Request.MaxSlippage,
			string(order.Outcome),
			pq.Array(statuses),
			nullString(order.TxHash),
			order.ExecutionPrice,
			nullString(order.Reason),
			order.CompletionTime.Milliseconds(),
			errString(order.Err),
		)
		if err != nil {
			return fmt.Errorf("insert order result %s: %w", order.OrderID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	p.logger.Debug("result-stored",
		zap.String("run-id", runID),
		zap.String("scenario", result.Scenario),
		zap.Int("orders", len(result.Orders)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func errString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
