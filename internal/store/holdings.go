package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vantage-intel/vantage/pkg/models"
)

// Holdings returns all portfolio positions.
func (s *Store) Holdings(ctx context.Context) ([]models.Holding, error) {
	var out []models.Holding
	err := s.db.DB().SelectContext(ctx, &out, `
		SELECT id, ticker, quantity, avg_price, current_price, updated_at
		FROM holdings
		ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}
	return out, nil
}

// UpsertHolding inserts or replaces the position for a ticker.
func (s *Store) UpsertHolding(ctx context.Context, h models.Holding) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO holdings (ticker, quantity, avg_price, current_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_price = EXCLUDED.avg_price,
			current_price = EXCLUDED.current_price,
			updated_at = NOW()
	`, strings.ToUpper(h.Ticker), h.Quantity, h.AvgPrice, h.CurrentPrice)
	if err != nil {
		return fmt.Errorf("failed to upsert holding %s: %w", h.Ticker, err)
	}
	return nil
}

// PortfolioValue returns the mark-to-market value of all holdings.
// Zero when the book is empty; callers decide what to assume then.
func (s *Store) PortfolioValue(ctx context.Context) (decimal.Decimal, error) {
	holdings, err := s.Holdings(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return models.ValuePortfolio(holdings).TotalValue, nil
}
