package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/vantage-intel/vantage/pkg/models"
)

// alertRow mirrors the alerts table; affected holdings travel as JSONB.
type alertRow struct {
	models.Alert
	AffectedJSON []byte `db:"affected"`
}

func (r *alertRow) alert() (models.Alert, error) {
	a := r.Alert
	if len(r.AffectedJSON) > 0 {
		if err := json.Unmarshal(r.AffectedJSON, &a.Affected); err != nil {
			return a, fmt.Errorf("failed to decode affected holdings for alert %s: %w", a.ID, err)
		}
	}
	return a, nil
}

// SaveAlert persists an alert together with its reasoning trail in one
// transaction. Either both land or neither does.
func (s *Store) SaveAlert(ctx context.Context, alert *models.Alert, trail []models.ImpactStep) error {
	affected, err := json.Marshal(alert.Affected)
	if err != nil {
		return fmt.Errorf("failed to encode affected holdings: %w", err)
	}
	if alert.Affected == nil {
		affected = []byte("[]")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin alert save: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO alerts
			(id, headline, severity, event_summary, factor_name,
			 total_impact_pct, total_impact_usd, confidence, recommendation,
			 trigger_article_id, full_reasoning, affected, sources)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`, alert.ID, alert.Headline, alert.Severity, alert.EventSummary, alert.FactorName,
		alert.TotalImpactPct, alert.TotalImpactUSD, alert.Confidence, alert.Recommendation,
		alert.TriggerArticleID, alert.FullReasoning, affected, alert.Sources).Scan(&alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}

	for i, step := range trail {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO impact_analysis
				(alert_id, level, ticker, description, impact_pct, confidence, step_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, alert.ID, step.Level, step.Ticker, step.Description, step.ImpactPct, step.Confidence, i)
		if err != nil {
			return fmt.Errorf("failed to save reasoning step %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alert save: %w", err)
	}
	return nil
}

// RecentAlerts returns the newest alerts, most recent first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	var rows []alertRow
	err := s.db.DB().SelectContext(ctx, &rows, `
		SELECT id, headline, severity, event_summary, factor_name,
		       total_impact_pct, total_impact_usd, confidence, recommendation,
		       trigger_article_id, full_reasoning, affected, sources, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent alerts: %w", err)
	}

	out := make([]models.Alert, 0, len(rows))
	for i := range rows {
		a, err := rows[i].alert()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// AlertByID returns one alert with its reasoning trail attached.
func (s *Store) AlertByID(ctx context.Context, id string) (*models.Alert, []models.ImpactStep, error) {
	var row alertRow
	err := s.db.DB().GetContext(ctx, &row, `
		SELECT id, headline, severity, event_summary, factor_name,
		       total_impact_pct, total_impact_usd, confidence, recommendation,
		       trigger_article_id, full_reasoning, affected, sources, created_at
		FROM alerts
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load alert %s: %w", id, err)
	}

	a, err := row.alert()
	if err != nil {
		return nil, nil, err
	}

	trails, err := s.ReasoningForAlerts(ctx, []string{id})
	if err != nil {
		return nil, nil, err
	}
	return &a, trails[id], nil
}

// ReasoningForAlerts loads the reasoning trails for a batch of alerts
// in a single query, keyed by alert id and ordered by step.
func (s *Store) ReasoningForAlerts(ctx context.Context, ids []string) (map[string][]models.ImpactStep, error) {
	if len(ids) == 0 {
		return map[string][]models.ImpactStep{}, nil
	}
	var steps []models.ImpactStep
	err := s.db.DB().SelectContext(ctx, &steps, `
		SELECT id, alert_id, level, ticker, description, impact_pct, confidence, step_order
		FROM impact_analysis
		WHERE alert_id = ANY($1)
		ORDER BY alert_id, step_order
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load reasoning trails: %w", err)
	}

	out := make(map[string][]models.ImpactStep, len(ids))
	for _, step := range steps {
		out[step.AlertID] = append(out[step.AlertID], step)
	}
	return out, nil
}
