package store

import (
	"context"
	"fmt"

	"github.com/vantage-intel/vantage/pkg/models"
)

// SavePrecedent records one historical market event for severity scaling.
func (s *Store) SavePrecedent(ctx context.Context, p models.HistoricalPrecedent) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO historical_precedents
			(event_type, event_name, impact_magnitude, date_occurred, description)
		VALUES ($1, $2, $3, $4, $5)
	`, p.EventType, p.EventName, p.ImpactMagnitude, p.DateOccurred, p.Description)
	if err != nil {
		return fmt.Errorf("failed to save precedent %s: %w", p.EventName, err)
	}
	return nil
}

// PrecedentsMatching returns historical events whose type contains the
// factor name, case-insensitively. No match means no precedent scaling.
func (s *Store) PrecedentsMatching(ctx context.Context, factorName string) ([]models.HistoricalPrecedent, error) {
	var out []models.HistoricalPrecedent
	err := s.db.DB().SelectContext(ctx, &out, `
		SELECT id, event_type, event_name, impact_magnitude, date_occurred, description
		FROM historical_precedents
		WHERE event_type ILIKE '%' || $1 || '%'
		ORDER BY date_occurred DESC
	`, factorName)
	if err != nil {
		return nil, fmt.Errorf("failed to load precedents for %q: %w", factorName, err)
	}
	return out, nil
}
