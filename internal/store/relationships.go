package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vantage-intel/vantage/pkg/models"
)

const relCachePrefix = "relcache:"

// UpsertRelationships merges discovered edges into the cache. An existing
// edge keeps the higher confidence and the stronger criticality, and
// accumulates sources and evidence without duplicates.
func (s *Store) UpsertRelationships(ctx context.Context, rels []models.Relationship) error {
	if len(rels) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin relationship upsert: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rels {
		if r.LastVerified.IsZero() {
			r.LastVerified = time.Now()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO company_relationships
				(source_ticker, related_company, relationship_type, criticality,
				 confidence, discovered_via, sources, evidence, last_verified)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (source_ticker, UPPER(related_company), relationship_type)
			DO UPDATE SET
				confidence = GREATEST(company_relationships.confidence, EXCLUDED.confidence),
				criticality = CASE
					WHEN ARRAY_POSITION(ARRAY['low','medium','high','critical'], EXCLUDED.criticality)
					   > ARRAY_POSITION(ARRAY['low','medium','high','critical'], company_relationships.criticality)
					THEN EXCLUDED.criticality
					ELSE company_relationships.criticality
				END,
				sources = (
					SELECT COALESCE(jsonb_agg(DISTINCT e), '[]'::jsonb)
					FROM jsonb_array_elements(company_relationships.sources || EXCLUDED.sources) AS t(e)
				),
				evidence = (
					SELECT COALESCE(jsonb_agg(DISTINCT e), '[]'::jsonb)
					FROM jsonb_array_elements(company_relationships.evidence || EXCLUDED.evidence) AS t(e)
				),
				last_verified = EXCLUDED.last_verified
		`, strings.ToUpper(r.SourceTicker), r.RelatedCompany, r.Type, r.Criticality,
			r.Confidence, r.DiscoveredVia, r.Sources, r.Evidence, r.LastVerified)
		if err != nil {
			return fmt.Errorf("failed to upsert relationship %s -> %s: %w", r.SourceTicker, r.RelatedCompany, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit relationship upsert: %w", err)
	}
	return nil
}

// RelationshipsFor returns all cached edges originating at a ticker.
func (s *Store) RelationshipsFor(ctx context.Context, ticker string) ([]models.Relationship, error) {
	var out []models.Relationship
	err := s.db.DB().SelectContext(ctx, &out, `
		SELECT id, source_ticker, related_company, relationship_type, criticality,
		       confidence, discovered_via, sources, evidence, last_verified
		FROM company_relationships
		WHERE source_ticker = $1
		ORDER BY confidence DESC, related_company
	`, strings.ToUpper(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to load relationships for %s: %w", ticker, err)
	}
	return out, nil
}

// HasRelationships reports whether any edge is cached for the ticker.
func (s *Store) HasRelationships(ctx context.Context, ticker string) (bool, error) {
	var n int
	err := s.db.DB().GetContext(ctx, &n, `
		SELECT COUNT(*) FROM company_relationships WHERE source_ticker = $1
	`, strings.ToUpper(ticker))
	if err != nil {
		return false, fmt.Errorf("failed to count relationships for %s: %w", ticker, err)
	}
	return n > 0, nil
}

// TouchRelationshipCache records a successful discovery pass for the
// ticker so staleness checks can skip it until the TTL lapses.
func (s *Store) TouchRelationshipCache(ctx context.Context, ticker string) error {
	return s.SetMeta(ctx, relCachePrefix+strings.ToUpper(ticker), time.Now().UTC().Format(time.RFC3339))
}

// CachedTickers returns tickers whose discovery pass is newer than maxAge.
func (s *Store) CachedTickers(ctx context.Context, maxAge time.Duration) (map[string]bool, error) {
	var keys []string
	err := s.db.DB().SelectContext(ctx, &keys, `
		SELECT key FROM cache_metadata
		WHERE key LIKE $1 AND updated_at > $2
	`, relCachePrefix+"%", time.Now().Add(-maxAge))
	if err != nil {
		return nil, fmt.Errorf("failed to load relationship cache index: %w", err)
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[strings.TrimPrefix(k, relCachePrefix)] = true
	}
	return out, nil
}
