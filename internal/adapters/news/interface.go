package news

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/internal/catalog"
	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

// ErrNoProviders means no live source is enabled and no fallback is wired.
var ErrNoProviders = errors.New("no news providers enabled")

// minContentLen drops items whose body is too thin to classify.
const minContentLen = 50

// Provider represents a news source.
type Provider interface {
	// GetName returns provider name
	GetName() string

	// FetchLatestNews fetches latest articles for the given queries.
	// Queries mix ticker symbols and free-text search phrases; each
	// provider interprets the entries it understands.
	FetchLatestNews(ctx context.Context, queries []string, limit int) ([]models.Article, error)

	// IsEnabled returns whether provider is enabled
	IsEnabled() bool
}

// Aggregator fans out to all enabled providers and merges their articles
// into a deduplicated, ticker-tagged batch.
type Aggregator struct {
	providers []Provider
	fallback  Provider
	catalog   *catalog.Catalog
	maxAge    time.Duration
	now       func() time.Time
	log       *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewAggregator creates new news aggregator. The fallback provider is
// consulted only when every live source comes back empty.
func NewAggregator(providers []Provider, fallback Provider, cat *catalog.Catalog, maxAge time.Duration) *Aggregator {
	return &Aggregator{
		providers: providers,
		fallback:  fallback,
		catalog:   cat,
		maxAge:    maxAge,
		now:       time.Now,
		log:       logger.Named("news"),
		seen:      make(map[string]struct{}),
	}
}

// FetchAll fetches news from all enabled providers in parallel, then
// drops stale, thin, already-seen and untracked articles. Results are
// newest first, capped at limit.
func (a *Aggregator) FetchAll(ctx context.Context, queries []string, limit int) ([]models.Article, error) {
	type result struct {
		name     string
		articles []models.Article
		err      error
	}

	results := make(chan result, len(a.providers))
	enabled := 0

	for _, provider := range a.providers {
		if !provider.IsEnabled() {
			continue
		}
		enabled++

		go func(p Provider) {
			articles, err := p.FetchLatestNews(ctx, queries, limit)
			results <- result{name: p.GetName(), articles: articles, err: err}
		}(provider)
	}

	merged := make([]models.Article, 0, limit)
	for i := 0; i < enabled; i++ {
		res := <-results
		if res.err != nil {
			a.log.Warn("news provider failed",
				zap.String("provider", res.name),
				zap.Error(res.err),
			)
			continue
		}
		merged = append(merged, res.articles...)
	}

	kept := a.filter(merged)
	if len(kept) == 0 {
		return a.fetchFallback(ctx, queries, limit, enabled)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].PublishedAt.Equal(kept[j].PublishedAt) {
			return kept[i].PublishedAt.After(kept[j].PublishedAt)
		}
		return kept[i].URL < kept[j].URL
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}

	a.log.Info("news batch assembled",
		zap.Int("fetched", len(merged)),
		zap.Int("kept", len(kept)),
		zap.Int("providers", enabled),
	)

	return kept, nil
}

// filter applies the ingestion rules: dedup by URL (per process),
// freshness horizon, minimum body length, and at least one tracked
// ticker mention.
func (a *Aggregator) filter(articles []models.Article) []models.Article {
	now := a.now()
	kept := make([]models.Article, 0, len(articles))

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, art := range articles {
		if art.URL == "" || art.Title == "" {
			continue
		}
		if _, ok := a.seen[art.URL]; ok {
			continue
		}
		if a.maxAge > 0 && art.Stale(now, a.maxAge) {
			continue
		}
		if len(art.Content) < minContentLen {
			continue
		}

		tagged := a.catalog.Tag(art.Title + " " + art.Content)
		art.Tickers = unionTickers(art.Tickers, tagged)
		if len(art.Tickers) == 0 {
			continue
		}

		a.seen[art.URL] = struct{}{}
		kept = append(kept, art)
	}

	return kept
}

// fetchFallback serves the fallback provider when live sources are dry.
// Fallback articles are constructed, not fetched, so they bypass the
// seen set and a looped re-fetch can surface them again.
func (a *Aggregator) fetchFallback(ctx context.Context, queries []string, limit, enabled int) ([]models.Article, error) {
	if a.fallback == nil || !a.fallback.IsEnabled() {
		if enabled == 0 {
			return nil, ErrNoProviders
		}
		return nil, nil
	}

	articles, err := a.fallback.FetchLatestNews(ctx, queries, limit)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	a.log.Warn("live sources empty, serving fallback articles",
		zap.String("provider", a.fallback.GetName()),
		zap.Int("count", len(articles)),
	)

	return articles, nil
}

// ResetSeen clears the per-process URL dedup set.
func (a *Aggregator) ResetSeen() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = make(map[string]struct{})
}

func unionTickers(primary, extra []string) []string {
	if len(primary) == 0 {
		return extra
	}
	have := make(map[string]struct{}, len(primary))
	out := make([]string, 0, len(primary)+len(extra))
	for _, t := range primary {
		if _, ok := have[t]; ok {
			continue
		}
		have[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range extra {
		if _, ok := have[t]; ok {
			continue
		}
		have[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
