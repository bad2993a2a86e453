package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/internal/adapters/llm"
	"github.com/vantage-intel/vantage/internal/catalog"
	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

const (
	maxListedTickerLen = 5
	newsSearchLimit    = 10
)

// FilingsSource fetches regulatory filing text for a ticker.
type FilingsSource interface {
	LatestAnnualReportText(ctx context.Context, ticker string) (string, error)
}

// Store is the slice of persistence the extractor needs.
type Store interface {
	SearchArticles(ctx context.Context, query string, limit int) ([]models.Article, error)
	UpsertRelationships(ctx context.Context, rels []models.Relationship) error
	TouchRelationshipCache(ctx context.Context, ticker string) error
}

// Extractor discovers supply chain edges for a ticker. Four probes run
// in parallel against independent sources; their sightings are fused
// into one edge per company and relation type.
type Extractor struct {
	llm     llm.Generator
	filings FilingsSource
	store   Store
	catalog *catalog.Catalog
	timeout time.Duration
	workers int
	log     *zap.Logger
}

// New creates an extractor. probeTimeout bounds each probe; maxWorkers
// bounds concurrent tickers in DiscoverAll.
func New(gen llm.Generator, filings FilingsSource, st Store, cat *catalog.Catalog, probeTimeout time.Duration, maxWorkers int) *Extractor {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Extractor{
		llm:     gen,
		filings: filings,
		store:   st,
		catalog: cat,
		timeout: probeTimeout,
		workers: maxWorkers,
		log:     logger.Named("discovery"),
	}
}

// Discover runs all probes for one ticker, fuses the sightings and
// persists the result. articles is the current batch, mined for
// co-mentions alongside stored ones. The fused edges are returned even
// when persistence fails so the caller can keep working from memory.
func (e *Extractor) Discover(ctx context.Context, ticker string, articles []models.Article) ([]models.Relationship, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	start := time.Now()

	probes := []struct {
		name string
		run  func(context.Context, string) []models.Relationship
	}{
		{"filings", e.filingsProbe},
		{"llm", e.llmProbe},
		{"news", func(ctx context.Context, t string) []models.Relationship {
			return e.newsProbe(ctx, t, articles)
		}},
		{"web", e.webProbe},
	}

	// Each probe writes its own slot so fusion input order stays fixed.
	results := make([][]models.Relationship, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, run func(context.Context, string) []models.Relationship) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			results[i] = run(probeCtx, ticker)
		}(i, p.run)
	}
	wg.Wait()

	var sightings []models.Relationship
	for _, rs := range results {
		sightings = append(sightings, rs...)
	}
	fused := Fuse(sightings)

	if err := e.store.UpsertRelationships(ctx, fused); err != nil {
		return fused, fmt.Errorf("failed to persist edges for %s: %w", ticker, err)
	}
	if err := e.store.TouchRelationshipCache(ctx, ticker); err != nil {
		return fused, fmt.Errorf("failed to touch relationship cache for %s: %w", ticker, err)
	}

	e.log.Info("discovery pass complete",
		zap.String("ticker", ticker),
		zap.Int("edges", len(fused)),
		zap.Int("from_filings", len(results[0])),
		zap.Int("from_llm", len(results[1])),
		zap.Int("from_news", len(results[2])),
		zap.Duration("took", time.Since(start)),
	)
	return fused, nil
}

// DiscoverAll runs discovery for a set of tickers on a bounded worker
// pool. Per-ticker persistence failures are logged, not fatal.
func (e *Extractor) DiscoverAll(ctx context.Context, tickers []string, articles []models.Article) map[string][]models.Relationship {
	out := make(map[string][]models.Relationship, len(tickers))
	if len(tickers) == 0 {
		return out
	}

	workers := e.workers
	if len(tickers) < workers {
		workers = len(tickers)
	}

	type result struct {
		ticker string
		rels   []models.Relationship
	}
	jobs := make(chan string)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				rels, err := e.Discover(ctx, ticker, articles)
				if err != nil {
					e.log.Warn("discovery pass degraded",
						zap.String("ticker", ticker),
						zap.Error(err),
					)
				}
				results <- result{ticker: ticker, rels: rels}
			}
		}()
	}

	go func() {
		for _, t := range tickers {
			jobs <- t
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		out[r.ticker] = r.rels
	}
	return out
}

// filingsProbe extracts disclosed relationships from the latest annual
// report. Degraded model output is discarded: an edge labeled sec_edgar
// must come from the filing itself.
func (e *Extractor) filingsProbe(ctx context.Context, ticker string) []models.Relationship {
	if len(ticker) > maxListedTickerLen || strings.ContainsAny(ticker, " .") {
		e.log.Debug("skipping filings probe, not a listed symbol", zap.String("ticker", ticker))
		return nil
	}

	text, err := e.filings.LatestAnnualReportText(ctx, ticker)
	if err != nil {
		e.log.Warn("filings probe failed", zap.String("ticker", ticker), zap.Error(err))
		return nil
	}

	res, err := e.llm.Generate(ctx, llm.Request{
		Kind:      llm.KindRelationships,
		Prompt:    filingsPrompt(e.displayName(ticker), ticker, text),
		MaxTokens: 900,
	})
	if err != nil {
		e.log.Warn("filings extraction failed", zap.String("ticker", ticker), zap.Error(err))
		return nil
	}
	if res.Degraded {
		e.log.Debug("filings extraction degraded, discarding", zap.String("ticker", ticker))
		return nil
	}

	return e.stamp(ticker, parseRelationshipList(res.Text), models.SourceSECEdgar, "sec_filings", 0)
}

// llmProbe asks the model for relationships from general knowledge.
// Degraded output is accepted; it carries the same low base confidence
// either way.
func (e *Extractor) llmProbe(ctx context.Context, ticker string) []models.Relationship {
	res, err := e.llm.Generate(ctx, llm.Request{
		Kind:      llm.KindRelationships,
		Prompt:    inductivePrompt(e.displayName(ticker), ticker),
		MaxTokens: 700,
	})
	if err != nil {
		e.log.Warn("llm probe failed", zap.String("ticker", ticker), zap.Error(err))
		return nil
	}
	return e.stamp(ticker, parseRelationshipList(res.Text), models.SourceLLMInference, "llm_inference", maxInductiveEdges)
}

// newsProbe mines co-mentions: a company appearing in the same article
// as the subject suggests a supply chain link. Every article emits its
// own sighting so repeats corroborate during fusion.
func (e *Extractor) newsProbe(ctx context.Context, ticker string, pool []models.Article) []models.Relationship {
	articles := make([]models.Article, 0, len(pool)+newsSearchLimit)
	articles = append(articles, pool...)

	found, err := e.store.SearchArticles(ctx, e.displayName(ticker), newsSearchLimit)
	if err != nil {
		e.log.Warn("news probe search failed", zap.String("ticker", ticker), zap.Error(err))
	} else {
		articles = append(articles, found...)
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(articles))
	var out []models.Relationship
	for _, a := range articles {
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true

		tags := a.Tickers
		if len(tags) == 0 {
			tags = e.catalog.Tag(a.Title + " " + a.Content)
		}
		if !containsTicker(tags, ticker) {
			continue
		}
		for _, other := range tags {
			if other == ticker {
				continue
			}
			out = append(out, models.Relationship{
				SourceTicker:   ticker,
				RelatedCompany: e.displayName(other),
				Type:           models.RelationSupplier,
				Criticality:    models.CriticalityMedium,
				Confidence:     models.SourceConfidence(models.SourceNewsReport),
				DiscoveredVia:  "news_comention",
				Sources:        models.StringList{models.SourceNewsReport},
				Evidence:       models.StringList{"Co-mentioned in news: " + a.Title},
				LastVerified:   now,
			})
		}
	}
	return out
}

// webProbe is the reserved slot for investor relations page scraping.
func (e *Extractor) webProbe(context.Context, string) []models.Relationship {
	return nil
}

// stamp converts parsed edges into relationship rows attributed to one
// source. Related names resolve to their catalog display name when the
// company is known, so the same company fuses across probes.
func (e *Extractor) stamp(ticker string, edges []llmEdge, source, via string, limit int) []models.Relationship {
	if limit > 0 && len(edges) > limit {
		edges = edges[:limit]
	}

	now := time.Now().UTC()
	out := make([]models.Relationship, 0, len(edges))
	for _, edge := range edges {
		name, relTicker := e.canonicalName(edge.RelatedCompany)
		if relTicker == ticker || strings.EqualFold(name, ticker) {
			continue
		}
		rel := models.Relationship{
			SourceTicker:   ticker,
			RelatedCompany: name,
			Type:           models.RelationType(edge.Type),
			Criticality:    models.Criticality(edge.Criticality),
			Confidence:     models.SourceConfidence(source),
			DiscoveredVia:  via,
			Sources:        models.StringList{source},
			LastVerified:   now,
		}
		if edge.Evidence != "" {
			rel.Evidence = models.StringList{edge.Evidence}
		}
		out = append(out, rel)
	}
	return out
}

// canonicalName maps a mention to the catalog display name and ticker
// when the company is known; unknown names pass through trimmed.
func (e *Extractor) canonicalName(mention string) (string, string) {
	if t, ok := e.catalog.Resolve(mention); ok {
		if co, ok := e.catalog.Get(t); ok {
			return co.Name, t
		}
	}
	return strings.TrimSpace(mention), ""
}

// displayName returns the catalog company name for a ticker, or the
// ticker itself for companies outside the catalog.
func (e *Extractor) displayName(ticker string) string {
	if co, ok := e.catalog.Get(ticker); ok {
		return co.Name
	}
	return ticker
}

func containsTicker(tickers []string, ticker string) bool {
	for _, t := range tickers {
		if t == ticker {
			return true
		}
	}
	return false
}
