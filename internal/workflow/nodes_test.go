package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vantage-intel/vantage/pkg/models"
)

type stubFetcher struct {
	mu      sync.Mutex
	batches [][]models.Article
	calls   [][]string
	err     error
}

func (f *stubFetcher) FetchAll(_ context.Context, queries []string, _ int) ([]models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{}, queries...))
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	idx := len(f.calls) - 1
	if idx >= len(f.batches) {
		idx = len(f.batches) - 1
	}
	return f.batches[idx], nil
}

type stubNodeClassifier struct {
	verdicts map[int64]models.Classification
	err      error
}

func (c *stubNodeClassifier) Classify(_ context.Context, a models.Article) (models.Classification, error) {
	if c.err != nil {
		return models.Classification{}, c.err
	}
	v, ok := c.verdicts[a.ID]
	if !ok {
		v = models.Classification{FactorName: "Market Sentiment & Psychology", SentimentScore: 0.1, Confidence: 0.4}
	}
	v.ArticleID = a.ID
	return v, nil
}

type stubNodeDiscoverer struct {
	mu    sync.Mutex
	rels  map[string][]models.Relationship
	calls [][]string
}

func (d *stubNodeDiscoverer) DiscoverAll(_ context.Context, tickers []string, _ []models.Article) map[string][]models.Relationship {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, append([]string{}, tickers...))
	out := make(map[string][]models.Relationship, len(tickers))
	for _, t := range tickers {
		if rels, ok := d.rels[t]; ok {
			out[t] = rels
		}
	}
	return out
}

type stubAssessor struct {
	impacts []models.StockImpact
	trail   []models.ImpactStep
	err     error
}

func (a *stubAssessor) Assess(_ context.Context, _ []models.ClassifiedArticle, _ []string) ([]models.StockImpact, []models.ImpactStep, error) {
	if a.err != nil {
		return nil, nil, a.err
	}
	return a.impacts, a.trail, nil
}

func (a *stubAssessor) Aggregate(impacts []models.StockImpact, value decimal.Decimal) models.PortfolioImpact {
	if len(impacts) == 0 {
		return models.PortfolioImpact{
			TotalImpactUSD: decimal.Zero,
			Severity:       models.SeverityLow,
			Recommendation: models.RecommendationHold,
		}
	}
	var pct, conf float64
	for _, im := range impacts {
		pct += im.ImpactPct
		conf += im.Confidence
	}
	pct /= float64(len(impacts))
	conf /= float64(len(impacts))
	return models.PortfolioImpact{
		TotalImpactUSD: value.Mul(decimal.NewFromFloat(pct / 100)),
		Severity:       models.SeverityHigh,
		Recommendation: models.RecommendationSell,
		TotalImpactPct: pct,
		Confidence:     conf,
		ImpactCount:    len(impacts),
	}
}

func (a *stubAssessor) AffectedHoldings(impacts []models.StockImpact, holdings []models.Holding) []models.AffectedHolding {
	if len(impacts) == 0 {
		return nil
	}
	out := make([]models.AffectedHolding, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, models.AffectedHolding{Ticker: h.Ticker})
	}
	return out
}

type stubWorkflowStore struct {
	mu              sync.Mutex
	cached          map[string]bool
	holdings        []models.Holding
	portfolioValue  decimal.Decimal
	classifications []models.Classification
	savedAlerts     []*models.Alert
	savedTrails     [][]models.ImpactStep
	agentLogs       []models.AgentLog
	saveAlertErr    error
	nextArticleID   int64
}

func (s *stubWorkflowStore) SaveArticles(_ context.Context, articles []models.Article) ([]models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if a.ID == 0 {
			s.nextArticleID++
			a.ID = s.nextArticleID
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *stubWorkflowStore) UpdateClassification(_ context.Context, c models.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifications = append(s.classifications, c)
	return nil
}

func (s *stubWorkflowStore) CachedTickers(_ context.Context, _ time.Duration) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.cached))
	for k, v := range s.cached {
		out[k] = v
	}
	return out, nil
}

func (s *stubWorkflowStore) Holdings(_ context.Context) ([]models.Holding, error) {
	return s.holdings, nil
}

func (s *stubWorkflowStore) PortfolioValue(_ context.Context) (decimal.Decimal, error) {
	return s.portfolioValue, nil
}

func (s *stubWorkflowStore) SaveAlert(_ context.Context, alert *models.Alert, trail []models.ImpactStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveAlertErr != nil {
		return s.saveAlertErr
	}
	s.savedAlerts = append(s.savedAlerts, alert)
	s.savedTrails = append(s.savedTrails, trail)
	return nil
}

func (s *stubWorkflowStore) SaveAgentLogs(_ context.Context, logs []models.AgentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentLogs = append(s.agentLogs, logs...)
	return nil
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []*models.Alert
	err  error
}

func (n *stubNotifier) SendAlert(_ context.Context, alert *models.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, alert)
	return nil
}

type workflowEnv struct {
	fetcher    *stubFetcher
	classifier *stubNodeClassifier
	discoverer *stubNodeDiscoverer
	assessor   *stubAssessor
	store      *stubWorkflowStore
	notifier   *stubNotifier
}

func newWorkflowEnv() *workflowEnv {
	return &workflowEnv{
		fetcher:    &stubFetcher{},
		classifier: &stubNodeClassifier{verdicts: map[int64]models.Classification{}},
		discoverer: &stubNodeDiscoverer{rels: map[string][]models.Relationship{}},
		assessor:   &stubAssessor{},
		store: &stubWorkflowStore{
			cached:         map[string]bool{},
			portfolioValue: decimal.NewFromInt(1000000),
		},
		notifier: &stubNotifier{},
	}
}

func (e *workflowEnv) nodes() *Nodes {
	return NewNodes(Deps{
		Fetcher:    e.fetcher,
		Classifier: e.classifier,
		Discoverer: e.discoverer,
		Assessor:   e.assessor,
		Store:      e.store,
		Notifier:   e.notifier,
		Validator:  NewValidator(0.70, 2),
		CacheTTL:   24 * time.Hour,
		FetchLimit: 20,
	})
}

func (e *workflowEnv) run(t *testing.T, initial State) (State, error) {
	t.Helper()
	engine := NewEngine(e.store, 2)
	if err := e.nodes().Register(engine); err != nil {
		t.Fatalf("Failed to compile workflow: %v", err)
	}
	return engine.Run(context.Background(), initial)
}

func newsArticle(id int64, title string, tickers ...string) models.Article {
	return models.Article{
		ID:          id,
		Title:       title,
		URL:         fmt.Sprintf("https://example.com/news/%d", id),
		Source:      "stub",
		PublishedAt: time.Now().Add(-time.Hour),
		Content:     "body",
		Tickers:     tickers,
	}
}

func verdict(factor string, score, conf float64) models.Classification {
	return models.Classification{
		FactorName:     factor,
		Sentiment:      "negative",
		Reasoning:      "stub verdict",
		SentimentScore: score,
		Confidence:     conf,
	}
}

func traceNodes(logs []models.AgentLog) []string {
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Node)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWorkflowDirectPathEmitsAlert(t *testing.T) {
	env := newWorkflowEnv()
	env.fetcher.batches = [][]models.Article{{
		newsArticle(1, "NVIDIA halts shipments", "NVDA"),
		newsArticle(2, "Chips rally on AI demand", "NVDA"),
		newsArticle(3, "Market jitters on chip talk", "NVDA"),
	}}
	env.classifier.verdicts = map[int64]models.Classification{
		1: verdict("Supply Chain Events", -0.8, 0.9),
		2: verdict("Industry-Specific Trends", 0.6, 0.85),
		3: verdict("Market Sentiment & Psychology", -0.55, 0.8),
	}
	env.assessor.impacts = []models.StockImpact{
		{Ticker: "NVDA", Level: 1, ImpactPct: -4.0, Confidence: 0.9},
		{Ticker: "NVDA", Level: 1, ImpactPct: -2.0, Confidence: 0.85},
	}
	env.assessor.trail = []models.ImpactStep{
		{Ticker: "NVDA", Level: 1, Description: "Direct Supply Chain Events impact detected.", ImpactPct: -4.0, Confidence: 0.9},
		{Ticker: "NVDA", Level: 1, Description: "Direct Industry-Specific Trends impact detected.", ImpactPct: -2.0, Confidence: 0.85},
	}
	env.store.holdings = []models.Holding{{Ticker: "NVDA", Quantity: decimal.NewFromInt(10)}}

	final, err := env.run(t, State{Portfolio: []string{"NVDA", "AAPL"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantTrace := []string{"monitor", "classify", "match_fast", "impact", "validate", "alert"}
	if got := traceNodes(env.store.agentLogs); !equalStrings(got, wantTrace) {
		t.Errorf("Expected trace %v, got %v", wantTrace, got)
	}
	if len(env.discoverer.calls) != 0 {
		t.Errorf("Expected discovery skipped on full cache hits, got %v", env.discoverer.calls)
	}
	if !equalStrings(final.CacheHits, []string{"NVDA"}) || len(final.CacheMisses) != 0 {
		t.Errorf("Expected NVDA as the only hit, got hits=%v misses=%v", final.CacheHits, final.CacheMisses)
	}
	if len(env.store.classifications) != 3 {
		t.Errorf("Expected 3 persisted classifications, got %d", len(env.store.classifications))
	}

	if final.AlertID == "" {
		t.Fatal("Expected an alert id in the final state")
	}
	if len(env.store.savedAlerts) != 1 {
		t.Fatalf("Expected 1 saved alert, got %d", len(env.store.savedAlerts))
	}
	alert := env.store.savedAlerts[0]
	if alert.ID != final.AlertID {
		t.Errorf("Expected alert id %q, got %q", final.AlertID, alert.ID)
	}
	if alert.Headline != "Portfolio Risk Alert: -3.00% change" {
		t.Errorf("Unexpected headline %q", alert.Headline)
	}
	if alert.EventSummary != "NVIDIA halts shipments" || alert.TriggerArticleID != 1 {
		t.Errorf("Expected trigger article 1, got %q / %d", alert.EventSummary, alert.TriggerArticleID)
	}
	if alert.FactorName != "Supply Chain Events" {
		t.Errorf("Expected factor from the trigger verdict, got %q", alert.FactorName)
	}
	if alert.Severity != models.SeverityHigh || alert.Recommendation != models.RecommendationSell {
		t.Errorf("Expected high/SELL, got %s/%s", alert.Severity, alert.Recommendation)
	}
	if math.Abs(alert.Confidence-0.86) > 1e-9 {
		t.Errorf("Expected alert confidence 0.86, got %v", alert.Confidence)
	}
	if len(alert.Sources) != 3 {
		t.Errorf("Expected 3 source urls, got %v", alert.Sources)
	}
	if !strings.Contains(alert.FullReasoning, "1. NVDA: Direct Supply Chain Events impact detected.") {
		t.Errorf("Unexpected reasoning block:\n%s", alert.FullReasoning)
	}
	if len(alert.Affected) != 1 || alert.Affected[0].Ticker != "NVDA" {
		t.Errorf("Expected NVDA holding attached, got %v", alert.Affected)
	}
	if len(env.store.savedTrails[0]) != 2 {
		t.Errorf("Expected 2 trail steps saved, got %d", len(env.store.savedTrails[0]))
	}
	if len(env.notifier.sent) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(env.notifier.sent))
	}
}

func TestWorkflowDiscoveryPathRunsForCacheMisses(t *testing.T) {
	env := newWorkflowEnv()
	env.fetcher.batches = [][]models.Article{{
		newsArticle(1, "TSMC fab halted by earthquake", "TSM"),
		newsArticle(2, "Apple earnings beat", "AAPL"),
		newsArticle(3, "Apple expands buybacks", "AAPL"),
	}}
	env.classifier.verdicts = map[int64]models.Classification{
		1: verdict("Supply Chain Events", -0.9, 0.9),
		2: verdict("Company Earnings & Performance", 0.6, 0.9),
		3: verdict("Company Earnings & Performance", 0.55, 0.9),
	}
	env.discoverer.rels = map[string][]models.Relationship{
		"TSM": {{
			SourceTicker:   "TSM",
			RelatedCompany: "Apple Inc.",
			Type:           models.RelationSupplier,
			Criticality:    models.CriticalityCritical,
			Confidence:     0.92,
		}},
	}
	env.assessor.impacts = []models.StockImpact{
		{Ticker: "AAPL", Level: 2, Via: "TSM", ImpactPct: -2.0, Confidence: 0.95},
	}
	env.assessor.trail = []models.ImpactStep{
		{Ticker: "AAPL", Level: 2, Description: "Tier 2 supplier propagation via TSM.", ImpactPct: -2.0, Confidence: 0.95},
	}

	final, err := env.run(t, State{Portfolio: []string{"AAPL"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantTrace := []string{"monitor", "classify", "match_fast", "discover", "impact", "validate", "alert"}
	if got := traceNodes(env.store.agentLogs); !equalStrings(got, wantTrace) {
		t.Errorf("Expected trace %v, got %v", wantTrace, got)
	}
	if len(env.discoverer.calls) != 1 || !equalStrings(env.discoverer.calls[0], []string{"TSM"}) {
		t.Errorf("Expected one discovery call for TSM, got %v", env.discoverer.calls)
	}
	if !equalStrings(final.CacheMisses, []string{"TSM"}) || !equalStrings(final.CacheHits, []string{"AAPL"}) {
		t.Errorf("Expected TSM miss and AAPL hit, got misses=%v hits=%v", final.CacheMisses, final.CacheHits)
	}
	if len(final.Discovered) != 1 || final.Discovered[0].RelatedCompany != "Apple Inc." {
		t.Errorf("Expected the discovered edge in state, got %v", final.Discovered)
	}
	if len(env.store.savedAlerts) != 1 {
		t.Fatalf("Expected 1 saved alert, got %d", len(env.store.savedAlerts))
	}
	if final.Validation != DecisionAccept {
		t.Errorf("Expected ACCEPT, got %s", final.Validation)
	}
}

func TestWorkflowLoopsUntilBoundThenBestEffortAlert(t *testing.T) {
	env := newWorkflowEnv()
	env.fetcher.batches = [][]models.Article{{
		newsArticle(1, "Minor market chatter", "NVDA"),
	}}
	env.classifier.verdicts = map[int64]models.Classification{
		1: verdict("Market Sentiment & Psychology", 0.2, 0.3),
	}

	final, err := env.run(t, State{Portfolio: []string{"NVDA"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(env.fetcher.calls) != 3 {
		t.Fatalf("Expected 3 fetch passes, got %d", len(env.fetcher.calls))
	}
	if !equalStrings(env.fetcher.calls[0], []string{"NVDA"}) {
		t.Errorf("Expected the first fetch on portfolio only, got %v", env.fetcher.calls[0])
	}
	wantRefined := []string{
		"NVDA",
		"NVDA supply chain disruption latest news",
		fmt.Sprintf("NVDA major suppliers customers %d", time.Now().Year()),
	}
	if !equalStrings(env.fetcher.calls[1], wantRefined) {
		t.Errorf("Expected refined queries %v, got %v", wantRefined, env.fetcher.calls[1])
	}

	if final.LoopCount != 2 {
		t.Errorf("Expected loop count 2, got %d", final.LoopCount)
	}
	if final.Validation != DecisionAccept {
		t.Errorf("Expected forced ACCEPT at the loop bound, got %s", final.Validation)
	}
	if math.Abs(final.ConfidenceScore-0.3) > 1e-9 {
		t.Errorf("Expected final confidence 0.3, got %v", final.ConfidenceScore)
	}
	if len(final.Gaps) != 0 {
		t.Errorf("Expected gaps cleared on the final pass, got %v", final.Gaps)
	}

	// 3 passes of 5 nodes each, then the alert.
	if len(env.store.agentLogs) != 16 {
		t.Errorf("Expected 16 trace entries, got %d", len(env.store.agentLogs))
	}

	if len(env.store.savedAlerts) != 1 {
		t.Fatalf("Expected a best-effort alert at loop exhaustion, got %d", len(env.store.savedAlerts))
	}
	alert := env.store.savedAlerts[0]
	if alert.Headline != "Portfolio Risk Alert: 0.00% change" {
		t.Errorf("Unexpected headline %q", alert.Headline)
	}
	if alert.FullReasoning != "No portfolio impacts were identified in this pass." {
		t.Errorf("Unexpected reasoning %q", alert.FullReasoning)
	}
	if alert.FactorName != "Market Sentiment & Psychology" {
		t.Errorf("Expected the factor of the only verdict, got %q", alert.FactorName)
	}
	if len(env.store.savedTrails[0]) != 0 {
		t.Errorf("Expected an empty trail, got %d steps", len(env.store.savedTrails[0]))
	}
}

func TestWorkflowQuietRunSkipsAlert(t *testing.T) {
	env := newWorkflowEnv()
	env.fetcher.batches = [][]models.Article{{
		newsArticle(1, "Routine filings roundup", "NVDA"),
		newsArticle(2, "Calm trading day", "NVDA"),
		newsArticle(3, "Analysts reiterate targets", "NVDA"),
	}}
	env.classifier.verdicts = map[int64]models.Classification{
		1: verdict("Market Sentiment & Psychology", 0.1, 0.9),
		2: verdict("Market Sentiment & Psychology", 0.1, 0.9),
		3: verdict("Market Sentiment & Psychology", 0.1, 0.9),
	}

	final, err := env.run(t, State{Portfolio: []string{"NVDA"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if final.Validation != DecisionAccept || final.LoopCount != 0 {
		t.Errorf("Expected first-pass ACCEPT, got %s at loop %d", final.Validation, final.LoopCount)
	}
	if final.AlertID != "" {
		t.Errorf("Expected no alert id, got %q", final.AlertID)
	}
	if len(env.store.savedAlerts) != 0 || len(env.notifier.sent) != 0 {
		t.Errorf("Expected no alert saved or sent, got %d / %d", len(env.store.savedAlerts), len(env.notifier.sent))
	}
	last := env.store.agentLogs[len(env.store.agentLogs)-1]
	if last.Node != "alert" || last.Detail != "skipped: no reasoning trail" {
		t.Errorf("Expected the skip recorded in the trace, got %+v", last)
	}
}

func TestWorkflowAbortsWhenPortfolioEmpty(t *testing.T) {
	env := newWorkflowEnv()

	_, err := env.run(t, State{})
	if err == nil || !strings.Contains(err.Error(), `node "monitor" failed`) {
		t.Fatalf("Expected monitor failure, got %v", err)
	}
	if len(env.store.agentLogs) != 1 || env.store.agentLogs[0].Status != "error" {
		t.Errorf("Expected a single error trace entry, got %+v", env.store.agentLogs)
	}
}

func TestWorkflowRecordsDegradedClassifications(t *testing.T) {
	env := newWorkflowEnv()
	env.fetcher.batches = [][]models.Article{{
		newsArticle(1, "Tariff shock", "NVDA"),
		newsArticle(2, "Export controls widen", "NVDA"),
	}}
	degradedVerdict := verdict("Government Policy & Regulation", -0.7, 0.9)
	degradedVerdict.Degraded = true
	env.classifier.verdicts = map[int64]models.Classification{
		1: degradedVerdict,
		2: degradedVerdict,
	}
	env.assessor.impacts = []models.StockImpact{
		{Ticker: "NVDA", Level: 1, ImpactPct: -3.0, Confidence: 0.95},
	}
	env.assessor.trail = []models.ImpactStep{
		{Ticker: "NVDA", Level: 1, Description: "Direct Government Policy & Regulation impact detected.", ImpactPct: -3.0, Confidence: 0.95},
	}

	final, err := env.run(t, State{Portfolio: []string{"NVDA"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(final.Errors) != 1 || final.Errors[0] != "classify: 2 of 2 verdicts from keyword heuristic" {
		t.Errorf("Expected the degradation recorded, got %v", final.Errors)
	}
	if len(env.store.savedAlerts) != 1 {
		t.Errorf("Expected the alert still emitted, got %d", len(env.store.savedAlerts))
	}
}

func TestWorkflowNotifierFailureDoesNotAbortRun(t *testing.T) {
	env := newWorkflowEnv()
	env.fetcher.batches = [][]models.Article{{
		newsArticle(1, "NVIDIA halts shipments", "NVDA"),
		newsArticle(2, "Chips rally on AI demand", "NVDA"),
		newsArticle(3, "Market jitters on chip talk", "NVDA"),
	}}
	env.classifier.verdicts = map[int64]models.Classification{
		1: verdict("Supply Chain Events", -0.8, 0.9),
		2: verdict("Industry-Specific Trends", 0.6, 0.85),
		3: verdict("Market Sentiment & Psychology", -0.55, 0.8),
	}
	env.assessor.impacts = []models.StockImpact{
		{Ticker: "NVDA", Level: 1, ImpactPct: -4.0, Confidence: 0.9},
	}
	env.assessor.trail = []models.ImpactStep{
		{Ticker: "NVDA", Level: 1, Description: "Direct Supply Chain Events impact detected.", ImpactPct: -4.0, Confidence: 0.9},
	}
	env.notifier.err = errors.New("telegram down")

	final, err := env.run(t, State{Portfolio: []string{"NVDA"}})
	if err != nil {
		t.Fatalf("Expected notifier failure swallowed, got %v", err)
	}

	if final.AlertID == "" || len(env.store.savedAlerts) != 1 {
		t.Fatalf("Expected the alert persisted, got id=%q saved=%d", final.AlertID, len(env.store.savedAlerts))
	}
	found := false
	for _, e := range final.Errors {
		if strings.Contains(e, "notification failed: telegram down") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected the notification failure recorded, got %v", final.Errors)
	}
}

func TestMatchFastDedupesRepeatSubjects(t *testing.T) {
	env := newWorkflowEnv()
	n := env.nodes()

	state := State{
		Portfolio: []string{"NVDA"},
		ClassifiedArticles: []models.ClassifiedArticle{
			{Article: newsArticle(1, "a", "TSM")},
			{Article: newsArticle(2, "b", "TSM")},
			{Article: newsArticle(3, "c", "NVDA")},
		},
	}

	patch, err := n.MatchFast(context.Background(), state)
	if err != nil {
		t.Fatalf("MatchFast failed: %v", err)
	}
	if !equalStrings(patch.CacheMisses, []string{"TSM"}) {
		t.Errorf("Expected a single TSM miss, got %v", patch.CacheMisses)
	}
	if !equalStrings(patch.CacheHits, []string{"NVDA"}) {
		t.Errorf("Expected a single NVDA hit, got %v", patch.CacheHits)
	}
}

func TestMatchFastHonorsFreshCache(t *testing.T) {
	env := newWorkflowEnv()
	env.store.cached["TSM"] = true
	n := env.nodes()

	state := State{
		Portfolio: []string{"NVDA"},
		ClassifiedArticles: []models.ClassifiedArticle{
			{Article: newsArticle(1, "a", "TSM")},
		},
	}

	patch, err := n.MatchFast(context.Background(), state)
	if err != nil {
		t.Fatalf("MatchFast failed: %v", err)
	}
	if !equalStrings(patch.CacheHits, []string{"TSM"}) || len(patch.CacheMisses) != 0 {
		t.Errorf("Expected a cache hit for the fresh ticker, got hits=%v misses=%v", patch.CacheHits, patch.CacheMisses)
	}
}

func TestMonitorKeepsTickerTags(t *testing.T) {
	env := newWorkflowEnv()
	untagged := newsArticle(0, "fresh wire story", "NVDA")
	env.fetcher.batches = [][]models.Article{{untagged}}
	n := env.nodes()

	patch, err := n.Monitor(context.Background(), State{Portfolio: []string{"NVDA"}})
	if err != nil {
		t.Fatalf("Monitor failed: %v", err)
	}
	if len(patch.NewsArticles) != 1 {
		t.Fatalf("Expected 1 article, got %d", len(patch.NewsArticles))
	}
	saved := patch.NewsArticles[0]
	if saved.ID == 0 {
		t.Error("Expected a persisted id")
	}
	if len(saved.Tickers) != 1 || saved.Tickers[0] != "NVDA" {
		t.Errorf("Expected ticker tags preserved through persistence, got %v", saved.Tickers)
	}
	if patch.LastFetchTime == nil {
		t.Error("Expected the fetch time recorded")
	}
}

func TestSourceURLsPreferHighPriority(t *testing.T) {
	a1 := newsArticle(1, "a", "NVDA")
	a2 := newsArticle(2, "b", "NVDA")
	dup := a1

	s := State{
		NewsArticles: []models.Article{a1, a2},
		HighPriorityArticles: []models.ClassifiedArticle{
			{Article: a1}, {Article: dup},
		},
	}
	urls := sourceURLs(s)
	if len(urls) != 1 || urls[0] != a1.URL {
		t.Errorf("Expected the deduped high-priority url, got %v", urls)
	}

	s.HighPriorityArticles = nil
	urls = sourceURLs(s)
	if len(urls) != 2 {
		t.Errorf("Expected fallback to the full batch, got %v", urls)
	}
}
