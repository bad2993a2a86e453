package store

import (
	"context"
	"fmt"

	"github.com/vantage-intel/vantage/pkg/models"
)

// SaveAgentLogs appends node execution records for one workflow run.
func (s *Store) SaveAgentLogs(ctx context.Context, logs []models.AgentLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin agent log save: %w", err)
	}
	defer tx.Rollback()

	for _, l := range logs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO agent_logs (run_id, node, status, detail, duration_ms)
			VALUES ($1, $2, $3, $4, $5)
		`, l.RunID, l.Node, l.Status, l.Detail, l.DurationMS)
		if err != nil {
			return fmt.Errorf("failed to save agent log %s/%s: %w", l.RunID, l.Node, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit agent log save: %w", err)
	}
	return nil
}

// LogsForRun returns the execution trail of one workflow run in order.
func (s *Store) LogsForRun(ctx context.Context, runID string) ([]models.AgentLog, error) {
	var out []models.AgentLog
	err := s.db.DB().SelectContext(ctx, &out, `
		SELECT id, run_id, node, status, detail, duration_ms, created_at
		FROM agent_logs
		WHERE run_id = $1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load logs for run %s: %w", runID, err)
	}
	return out, nil
}
