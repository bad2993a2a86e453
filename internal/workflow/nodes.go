package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

// Fetcher pulls fresh articles from the configured news providers.
type Fetcher interface {
	FetchAll(ctx context.Context, queries []string, limit int) ([]models.Article, error)
}

// Classifier assigns a factor verdict to one article.
type Classifier interface {
	Classify(ctx context.Context, article models.Article) (models.Classification, error)
}

// Discoverer maps supply chain edges for tickers missing from the cache.
type Discoverer interface {
	DiscoverAll(ctx context.Context, tickers []string, articles []models.Article) map[string][]models.Relationship
}

// Assessor turns classified articles into portfolio impact figures.
type Assessor interface {
	Assess(ctx context.Context, articles []models.ClassifiedArticle, portfolio []string) ([]models.StockImpact, []models.ImpactStep, error)
	Aggregate(impacts []models.StockImpact, portfolioValue decimal.Decimal) models.PortfolioImpact
	AffectedHoldings(impacts []models.StockImpact, holdings []models.Holding) []models.AffectedHolding
}

// Store is the slice of persistence the nodes touch directly.
type Store interface {
	SaveArticles(ctx context.Context, articles []models.Article) ([]models.Article, error)
	UpdateClassification(ctx context.Context, c models.Classification) error
	CachedTickers(ctx context.Context, maxAge time.Duration) (map[string]bool, error)
	Holdings(ctx context.Context) ([]models.Holding, error)
	PortfolioValue(ctx context.Context) (decimal.Decimal, error)
	SaveAlert(ctx context.Context, alert *models.Alert, trail []models.ImpactStep) error
}

// Notifier pushes a finished alert to an external channel.
type Notifier interface {
	SendAlert(ctx context.Context, alert *models.Alert) error
}

// Deps bundles everything the nodes need. Notifier may be nil.
type Deps struct {
	Fetcher    Fetcher
	Classifier Classifier
	Discoverer Discoverer
	Assessor   Assessor
	Store      Store
	Notifier   Notifier
	Validator  *Validator
	CacheTTL   time.Duration
	FetchLimit int
}

// Nodes implements the seven workflow stages over a shared dependency set.
type Nodes struct {
	fetcher    Fetcher
	classifier Classifier
	discoverer Discoverer
	assessor   Assessor
	store      Store
	notifier   Notifier
	validator  *Validator
	cacheTTL   time.Duration
	fetchLimit int
	log        *zap.Logger
}

func NewNodes(d Deps) *Nodes {
	if d.FetchLimit <= 0 {
		d.FetchLimit = 20
	}
	return &Nodes{
		fetcher:    d.Fetcher,
		classifier: d.Classifier,
		discoverer: d.Discoverer,
		assessor:   d.Assessor,
		store:      d.Store,
		notifier:   d.Notifier,
		validator:  d.Validator,
		cacheTTL:   d.CacheTTL,
		fetchLimit: d.FetchLimit,
		log:        logger.Named("workflow"),
	}
}

// Register wires the node graph into the engine and compiles it:
//
//	monitor -> classify -> match_fast -> [discover ->] impact -> validate
//	validate -> monitor (more data) | alert (accept) -> end
func (n *Nodes) Register(e *Engine) error {
	e.Add("monitor", n.Monitor)
	e.Add("classify", n.Classify)
	e.Add("match_fast", n.MatchFast)
	e.Add("discover", n.Discover)
	e.Add("impact", n.Impact)
	e.Add("validate", n.Validate)
	e.Add("alert", n.Alert)

	e.StartAt("monitor")
	e.Connect("monitor", "classify")
	e.Connect("classify", "match_fast")
	e.Branch("match_fast", func(s State) string {
		if len(s.CacheMisses) == 0 {
			return "impact"
		}
		return "discover"
	})
	e.Connect("discover", "impact")
	e.Connect("impact", "validate")
	e.Branch("validate", func(s State) string {
		if s.Validation == DecisionMoreData {
			return "monitor"
		}
		return "alert"
	})
	e.Connect("alert", End)

	return e.Compile()
}

// Monitor fetches the current news batch for the portfolio plus any refined
// queries from a previous validation pass, and persists it.
func (n *Nodes) Monitor(ctx context.Context, s State) (Patch, error) {
	if len(s.Portfolio) == 0 {
		return Patch{}, errors.New("portfolio is empty")
	}

	queries := make([]string, 0, len(s.Portfolio)+len(s.RefinedQueries))
	queries = append(queries, s.Portfolio...)
	queries = append(queries, s.RefinedQueries...)

	articles, err := n.fetcher.FetchAll(ctx, queries, n.fetchLimit)
	if err != nil {
		return Patch{}, fmt.Errorf("failed to fetch news: %w", err)
	}
	saved, err := n.store.SaveArticles(ctx, articles)
	if err != nil {
		return Patch{}, fmt.Errorf("failed to persist articles: %w", err)
	}
	if saved == nil {
		saved = []models.Article{}
	}

	now := time.Now().UTC()
	return Patch{
		Detail:        fmt.Sprintf("fetched %d articles", len(saved)),
		NewsArticles:  saved,
		LastFetchTime: &now,
	}, nil
}

// Classify runs the factor classifier over the batch and persists each
// verdict. The classifier absorbs provider failures by degrading to its
// keyword heuristic, so an error here is terminal.
func (n *Nodes) Classify(ctx context.Context, s State) (Patch, error) {
	classified := make([]models.ClassifiedArticle, 0, len(s.NewsArticles))
	high := make([]models.ClassifiedArticle, 0, len(s.NewsArticles))
	degraded := 0

	for _, a := range s.NewsArticles {
		cls, err := n.classifier.Classify(ctx, a)
		if err != nil {
			return Patch{}, fmt.Errorf("classification halted at article %d: %w", a.ID, err)
		}
		if err := n.store.UpdateClassification(ctx, cls); err != nil {
			return Patch{}, fmt.Errorf("failed to persist classification for article %d: %w", a.ID, err)
		}
		ca := models.ClassifiedArticle{Article: a, Classification: cls}
		classified = append(classified, ca)
		if cls.HighPriority() {
			high = append(high, ca)
		}
		if cls.Degraded {
			degraded++
		}
	}

	patch := Patch{
		Detail:               fmt.Sprintf("classified=%d high_priority=%d", len(classified), len(high)),
		ClassifiedArticles:   classified,
		HighPriorityArticles: high,
	}
	if degraded > 0 {
		patch.Errors = []string{fmt.Sprintf("classify: %d of %d verdicts from keyword heuristic", degraded, len(classified))}
	}
	return patch, nil
}

// MatchFast sorts article subjects into cache hits and misses. Portfolio
// tickers are always hits: their impact is direct and needs no edges.
// Everything else hits only while its discovery cache entry is fresh.
func (n *Nodes) MatchFast(ctx context.Context, s State) (Patch, error) {
	fresh, err := n.store.CachedTickers(ctx, n.cacheTTL)
	if err != nil {
		return Patch{}, fmt.Errorf("failed to load relationship cache: %w", err)
	}

	inPortfolio := make(map[string]bool, len(s.Portfolio))
	for _, t := range s.Portfolio {
		inPortfolio[strings.ToUpper(t)] = true
	}

	seen := make(map[string]bool)
	hits := []string{}
	misses := []string{}
	for _, ca := range s.ClassifiedArticles {
		subject := strings.ToUpper(ca.Article.PrimaryTicker())
		if subject == "" || seen[subject] {
			continue
		}
		seen[subject] = true
		if inPortfolio[subject] || fresh[subject] {
			hits = append(hits, subject)
		} else {
			misses = append(misses, subject)
		}
	}

	return Patch{
		Detail:      fmt.Sprintf("cache hits=%d misses=%d", len(hits), len(misses)),
		CacheHits:   hits,
		CacheMisses: misses,
	}, nil
}

// Discover maps supply chain edges for every cache miss. Edge persistence
// happens inside the discoverer; per-ticker failures degrade to empty
// results there, so this node never aborts the run.
func (n *Nodes) Discover(ctx context.Context, s State) (Patch, error) {
	results := n.discoverer.DiscoverAll(ctx, s.CacheMisses, s.NewsArticles)

	discovered := []models.Relationship{}
	for _, ticker := range s.CacheMisses {
		discovered = append(discovered, results[ticker]...)
	}

	return Patch{
		Detail:     fmt.Sprintf("discovered %d edges across %d tickers", len(discovered), len(s.CacheMisses)),
		Discovered: discovered,
	}, nil
}

// Impact scores the classified batch against the portfolio and aggregates
// the result into one portfolio-level figure.
func (n *Nodes) Impact(ctx context.Context, s State) (Patch, error) {
	impacts, trail, err := n.assessor.Assess(ctx, s.ClassifiedArticles, s.Portfolio)
	if err != nil {
		return Patch{}, fmt.Errorf("impact assessment failed: %w", err)
	}
	value, err := n.store.PortfolioValue(ctx)
	if err != nil {
		return Patch{}, fmt.Errorf("failed to value portfolio: %w", err)
	}
	total := n.assessor.Aggregate(impacts, value)

	if impacts == nil {
		impacts = []models.StockImpact{}
	}
	if trail == nil {
		trail = []models.ImpactStep{}
	}
	return Patch{
		Detail:          fmt.Sprintf("impacts=%d total_pct=%.2f severity=%s", len(impacts), total.TotalImpactPct, total.Severity),
		StockImpacts:    impacts,
		ReasoningTrail:  trail,
		PortfolioImpact: &total,
	}, nil
}

// Validate applies the confidence gate and bumps the loop counter when the
// run is sent back for more data.
func (n *Nodes) Validate(_ context.Context, s State) (Patch, error) {
	verdict := n.validator.Validate(s)

	decision := verdict.Decision
	loops := s.LoopCount
	if decision == DecisionMoreData {
		loops++
	}
	gaps := verdict.Gaps
	if gaps == nil {
		gaps = []string{}
	}
	queries := verdict.Queries
	if queries == nil {
		queries = []string{}
	}

	return Patch{
		Detail:          fmt.Sprintf("score=%.2f decision=%s loop=%d", verdict.Score, decision, loops),
		ConfidenceScore: &verdict.Score,
		Validation:      &decision,
		LoopCount:       &loops,
		Gaps:            gaps,
		RefinedQueries:  queries,
	}, nil
}

// Alert persists the run's findings as an alert with its reasoning trail.
// A run that found nothing skips the alert, except at loop exhaustion,
// where a best-effort alert records the low-confidence outcome.
func (n *Nodes) Alert(ctx context.Context, s State) (Patch, error) {
	if len(s.ReasoningTrail) == 0 && s.LoopCount < n.validator.maxLoops {
		return Patch{Detail: "skipped: no reasoning trail"}, nil
	}

	trigger := triggerArticle(s)
	alert := models.Alert{
		ID:               uuid.NewString(),
		CreatedAt:        time.Now().UTC(),
		Headline:         fmt.Sprintf("Portfolio Risk Alert: %.2f%% change", s.PortfolioImpact.TotalImpactPct),
		EventSummary:     trigger.Title,
		Severity:         s.PortfolioImpact.Severity,
		Recommendation:   s.PortfolioImpact.Recommendation,
		FullReasoning:    fullReasoning(s.ReasoningTrail),
		TotalImpactUSD:   s.PortfolioImpact.TotalImpactUSD,
		TotalImpactPct:   s.PortfolioImpact.TotalImpactPct,
		Confidence:       s.ConfidenceScore,
		Sources:          sourceURLs(s),
		TriggerArticleID: trigger.ID,
	}
	if len(s.HighPriorityArticles) > 0 {
		alert.FactorName = s.HighPriorityArticles[0].Classification.FactorName
	} else if len(s.ClassifiedArticles) > 0 {
		alert.FactorName = s.ClassifiedArticles[0].Classification.FactorName
	}

	holdings, err := n.store.Holdings(ctx)
	if err != nil {
		return Patch{}, fmt.Errorf("failed to load holdings: %w", err)
	}
	alert.Affected = n.assessor.AffectedHoldings(s.StockImpacts, holdings)

	if err := n.store.SaveAlert(ctx, &alert, s.ReasoningTrail); err != nil {
		return Patch{}, fmt.Errorf("failed to save alert: %w", err)
	}

	patch := Patch{
		Detail:  fmt.Sprintf("alert %s severity=%s pct=%.2f", alert.ID, alert.Severity, alert.TotalImpactPct),
		AlertID: &alert.ID,
	}
	if n.notifier != nil {
		if err := n.notifier.SendAlert(ctx, &alert); err != nil {
			n.log.Warn("alert notification failed", zap.String("alert_id", alert.ID), zap.Error(err))
			patch.Errors = []string{fmt.Sprintf("alert: notification failed: %v", err)}
		}
	}
	return patch, nil
}

// triggerArticle picks the article an alert points back to: the first
// high-priority one, else the first of the batch.
func triggerArticle(s State) models.Article {
	if len(s.HighPriorityArticles) > 0 {
		return s.HighPriorityArticles[0].Article
	}
	if len(s.NewsArticles) > 0 {
		return s.NewsArticles[0]
	}
	return models.Article{}
}

// sourceURLs collects the unique URLs backing the alert, preferring the
// high-priority articles that drove the impact figures.
func sourceURLs(s State) models.StringList {
	var pool []models.Article
	for _, ca := range s.HighPriorityArticles {
		pool = append(pool, ca.Article)
	}
	if len(pool) == 0 {
		pool = s.NewsArticles
	}

	seen := make(map[string]bool, len(pool))
	var urls models.StringList
	for _, a := range pool {
		if a.URL == "" || seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		urls = append(urls, a.URL)
	}
	return urls
}

// fullReasoning renders the trail as one numbered, human-readable block.
func fullReasoning(trail []models.ImpactStep) string {
	if len(trail) == 0 {
		return "No portfolio impacts were identified in this pass."
	}
	var b strings.Builder
	for i, step := range trail {
		fmt.Fprintf(&b, "%d. %s: %s (impact %.2f%%, confidence %.2f)", i+1, step.Ticker, step.Description, step.ImpactPct, step.Confidence)
		if i < len(trail)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
