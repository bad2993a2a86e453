package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vantage-intel/vantage/pkg/models"
)

// UpsertCompany inserts or refreshes a tracked company.
func (s *Store) UpsertCompany(ctx context.Context, c models.Company) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO companies (ticker, name, sector, is_portfolio, last_updated)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (ticker) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			is_portfolio = EXCLUDED.is_portfolio,
			last_updated = NOW()
	`, strings.ToUpper(c.Ticker), c.Name, c.Sector, c.IsPortfolio)

	if err != nil {
		return fmt.Errorf("failed to upsert company %s: %w", c.Ticker, err)
	}
	return nil
}

// Companies returns the full tracked-company catalog, portfolio first.
func (s *Store) Companies(ctx context.Context) ([]models.Company, error) {
	var out []models.Company
	err := s.db.DB().SelectContext(ctx, &out, `
		SELECT ticker, name, sector, is_portfolio, last_updated
		FROM companies
		ORDER BY is_portfolio DESC, ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load companies: %w", err)
	}
	return out, nil
}

// PortfolioCompanies returns companies flagged as portfolio members.
func (s *Store) PortfolioCompanies(ctx context.Context) ([]models.Company, error) {
	var out []models.Company
	err := s.db.DB().SelectContext(ctx, &out, `
		SELECT ticker, name, sector, is_portfolio, last_updated
		FROM companies
		WHERE is_portfolio
		ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio companies: %w", err)
	}
	return out, nil
}

// CompanyByTicker loads a single company.
func (s *Store) CompanyByTicker(ctx context.Context, ticker string) (*models.Company, error) {
	var c models.Company
	err := s.db.DB().GetContext(ctx, &c, `
		SELECT ticker, name, sector, is_portfolio, last_updated
		FROM companies
		WHERE ticker = $1
	`, strings.ToUpper(ticker))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load company %s: %w", ticker, err)
	}
	return &c, nil
}
