package clickhouse

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

// Repository writes telemetry rows to the ClickHouse warehouse
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new telemetry repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the telemetry tables when they do not exist yet.
// The warehouse is optional infrastructure, so the product owns its DDL
// instead of running it through the migration pipeline.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS workflow_node_events (
			created_at DateTime64(3),
			run_id String,
			node String,
			status String,
			detail String,
			duration_ms Int64
		) ENGINE = MergeTree() ORDER BY (created_at, run_id)`,
		`CREATE TABLE IF NOT EXISTS llm_usage (
			created_at DateTime64(3),
			provider String,
			model String,
			kind String,
			input_chars Int64,
			output_chars Int64,
			cost_usd Float64
		) ENGINE = MergeTree() ORDER BY created_at`,
	}

	for _, stmt := range ddl {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create telemetry table: %w", err)
		}
	}

	return nil
}

// SaveNodeEvents writes workflow trace rows
func (r *Repository) SaveNodeEvents(ctx context.Context, events []models.AgentLog) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO workflow_node_events
		(created_at, run_id, node, status, detail, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		_, err = stmt.ExecContext(ctx,
			event.CreatedAt,
			event.RunID,
			event.Node,
			event.Status,
			event.Detail,
			event.DurationMS,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert node event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved node events to ClickHouse",
		zap.Int("count", len(events)),
	)

	return nil
}

// SaveLLMUsage writes generative call rows
func (r *Repository) SaveLLMUsage(ctx context.Context, rows []models.LLMUsage) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO llm_usage
		(created_at, provider, model, kind, input_chars, output_chars, cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.CreatedAt,
			row.Provider,
			row.Model,
			row.Kind,
			row.InputChars,
			row.OutputChars,
			row.CostUSD,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert usage row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved llm usage to ClickHouse",
		zap.Int("count", len(rows)),
	)

	return nil
}
