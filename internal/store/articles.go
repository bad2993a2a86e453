package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vantage-intel/vantage/pkg/models"
)

// SaveArticles upserts fetched articles, deduplicating on canonical URL.
// Returned articles carry their persisted ids; an article whose URL was
// already stored comes back with the existing row's id and processed flag.
func (s *Store) SaveArticles(ctx context.Context, articles []models.Article) ([]models.Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin article save: %w", err)
	}
	defer tx.Rollback()

	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if a.FetchedAt.IsZero() {
			a.FetchedAt = time.Now()
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO articles (title, content, url, source, published_at, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (url) DO UPDATE SET fetched_at = EXCLUDED.fetched_at
			RETURNING id, processed
		`, a.Title, a.Content, a.URL, a.Source, a.PublishedAt, a.FetchedAt).Scan(&a.ID, &a.Processed)
		if err != nil {
			return nil, fmt.Errorf("failed to save article %s: %w", a.URL, err)
		}
		out = append(out, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit article save: %w", err)
	}
	return out, nil
}

// RecentArticles returns the newest articles by publication time.
func (s *Store) RecentArticles(ctx context.Context, limit int) ([]models.Article, error) {
	var out []models.Article
	err := s.db.DB().SelectContext(ctx, &out, `
		SELECT id, title, content, url, source, published_at, fetched_at, processed
		FROM articles
		ORDER BY published_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent articles: %w", err)
	}
	return out, nil
}

// SearchArticles returns recent articles whose title or content contains
// the query, case-insensitively. Used by the news co-mention probe.
func (s *Store) SearchArticles(ctx context.Context, query string, limit int) ([]models.Article, error) {
	var out []models.Article
	err := s.db.DB().SelectContext(ctx, &out, `
		SELECT id, title, content, url, source, published_at, fetched_at, processed
		FROM articles
		WHERE title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%'
		ORDER BY published_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search articles for %q: %w", query, err)
	}
	return out, nil
}

// UpdateClassification stores the factor verdict on an article and marks
// it processed.
func (s *Store) UpdateClassification(ctx context.Context, c models.Classification) error {
	res, err := s.db.DB().ExecContext(ctx, `
		UPDATE articles
		SET factor_id = $2,
		    factor_name = $3,
		    sentiment = $4,
		    sentiment_score = $5,
		    reasoning = $6,
		    confidence = $7,
		    processed = TRUE
		WHERE id = $1
	`, c.ArticleID, c.FactorID, c.FactorName, c.Sentiment, c.SentimentScore, c.Reasoning, c.Confidence)
	if err != nil {
		return fmt.Errorf("failed to store classification for article %d: %w", c.ArticleID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("classification update for article %d: %w", c.ArticleID, ErrNotFound)
	}
	return nil
}

// MarkProcessed flags a batch of articles as handled.
func (s *Store) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.DB().ExecContext(ctx, `
		UPDATE articles SET processed = TRUE WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to mark articles processed: %w", err)
	}
	return nil
}
