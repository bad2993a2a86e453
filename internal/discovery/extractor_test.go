package discovery

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vantage-intel/vantage/internal/adapters/llm"
	"github.com/vantage-intel/vantage/internal/catalog"
	"github.com/vantage-intel/vantage/pkg/models"
)

// stubGenerator answers by prompt marker so the filings and inductive
// probes can receive different responses in one test.
type stubGenerator struct {
	mu       sync.Mutex
	calls    []llm.Request
	byMarker map[string]llm.Result
	err      error
}

func (s *stubGenerator) Generate(_ context.Context, req llm.Request) (*llm.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	for marker, res := range s.byMarker {
		if strings.Contains(req.Prompt, marker) {
			out := res
			return &out, nil
		}
	}
	return &llm.Result{Text: "[]"}, nil
}

func (s *stubGenerator) promptsSeen(marker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.calls {
		if strings.Contains(req.Prompt, marker) {
			n++
		}
	}
	return n
}

type stubFilings struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (s *stubFilings) LatestAnnualReportText(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.text, s.err
}

func (s *stubFilings) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubStore struct {
	mu        sync.Mutex
	articles  []models.Article
	searchErr error
	upsertErr error
	upserts   [][]models.Relationship
	touched   []string
}

func (s *stubStore) SearchArticles(_ context.Context, _ string, _ int) ([]models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.articles, nil
}

func (s *stubStore) UpsertRelationships(_ context.Context, rels []models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, rels)
	return nil
}

func (s *stubStore) TouchRelationshipCache(_ context.Context, ticker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, ticker)
	return nil
}

func discoveryCatalog() *catalog.Catalog {
	return catalog.New([]models.Company{
		{Ticker: "AAPL", Name: "Apple Inc.", IsPortfolio: true},
		{Ticker: "NVDA", Name: "NVIDIA Corporation", IsPortfolio: true},
		{Ticker: "TSM", Name: "TSMC"},
	})
}

func testExtractor(gen llm.Generator, filings FilingsSource, st Store) *Extractor {
	return New(gen, filings, st, discoveryCatalog(), 2*time.Second, 2)
}

func TestDiscoverFusesProbes(t *testing.T) {
	gen := &stubGenerator{byMarker: map[string]llm.Result{
		"annual report": {Text: `[{"related_company": "Apple", "type": "supplier", "criticality": "critical", "evidence": "Our largest customer accounts for a quarter of revenue"}]`},
		"most important": {Text: `[{"related_company": "Apple", "type": "supplier", "criticality": "medium", "evidence": "Fabricates Apple silicon"}]`},
	}}
	filings := &stubFilings{text: "Item 1. Business. We manufacture semiconductors."}
	st := &stubStore{}
	articles := []models.Article{{
		Title:   "TSMC warns of slower quarter",
		Content: "TSMC guidance cited softer orders from Apple for the coming year.",
		URL:     "https://example.com/guidance",
		Tickers: []string{"TSM", "AAPL"},
	}}

	rels, err := testExtractor(gen, filings, st).Discover(context.Background(), "TSM", articles)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("Expected 1 fused edge, got %d: %+v", len(rels), rels)
	}

	got := rels[0]
	if got.SourceTicker != "TSM" {
		t.Errorf("Expected source ticker TSM, got %s", got.SourceTicker)
	}
	if got.RelatedCompany != "Apple Inc." {
		t.Errorf("Expected canonical name Apple Inc., got %q", got.RelatedCompany)
	}
	if got.Type != models.RelationSupplier {
		t.Errorf("Expected supplier, got %s", got.Type)
	}
	if got.Criticality != models.CriticalityCritical {
		t.Errorf("Expected critical, got %s", got.Criticality)
	}
	// Three sightings: base 0.92 plus two corroboration boosts, capped.
	if math.Abs(got.Confidence-0.99) > 1e-9 {
		t.Errorf("Expected confidence 0.99, got %v", got.Confidence)
	}
	if len(got.Sources) != 3 {
		t.Errorf("Expected 3 sources, got %v", got.Sources)
	}

	if filings.callCount() != 1 {
		t.Errorf("Expected 1 filings fetch, got %d", filings.callCount())
	}
	if len(st.upserts) != 1 || len(st.upserts[0]) != 1 {
		t.Errorf("Expected fused edges persisted once, got %+v", st.upserts)
	}
	if len(st.touched) != 1 || st.touched[0] != "TSM" {
		t.Errorf("Expected cache touched for TSM, got %v", st.touched)
	}
}

func TestDiscoverSkipsFilingsForUnlistedNames(t *testing.T) {
	gen := &stubGenerator{}
	filings := &stubFilings{text: "should never be fetched"}
	st := &stubStore{}

	_, err := testExtractor(gen, filings, st).Discover(context.Background(), "globex intl", nil)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if filings.callCount() != 0 {
		t.Errorf("Expected filings skipped for unlisted name, got %d fetches", filings.callCount())
	}
	if n := gen.promptsSeen("annual report"); n != 0 {
		t.Errorf("Expected no filings extraction calls, got %d", n)
	}
	if n := gen.promptsSeen("most important"); n != 1 {
		t.Errorf("Expected 1 inductive call, got %d", n)
	}
}

func TestDiscoverDiscardsDegradedFilingsExtraction(t *testing.T) {
	degraded := llm.Result{
		Text:     `{"relationships": [{"related_company": "Apple", "type": "supplier", "criticality": "critical", "evidence": "Fabricates Apple silicon"}]}`,
		Provider: "heuristic",
		Degraded: true,
	}
	gen := &stubGenerator{byMarker: map[string]llm.Result{
		"annual report":  degraded,
		"most important": degraded,
	}}
	filings := &stubFilings{text: "Item 1. Business."}
	st := &stubStore{}

	rels, err := testExtractor(gen, filings, st).Discover(context.Background(), "TSM", nil)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("Expected only the inductive probe's edge, got %d: %+v", len(rels), rels)
	}
	// Single sighting at the inductive base confidence: the filings probe
	// must not relabel heuristic output as filing-derived.
	if math.Abs(rels[0].Confidence-0.45) > 1e-9 {
		t.Errorf("Expected confidence 0.45, got %v", rels[0].Confidence)
	}
	if len(rels[0].Sources) != 1 || rels[0].Sources[0] != models.SourceLLMInference {
		t.Errorf("Expected llm_inference source only, got %v", rels[0].Sources)
	}
}

func TestDiscoverToleratesProbeFailures(t *testing.T) {
	gen := &stubGenerator{err: errors.New("model offline")}
	filings := &stubFilings{err: errors.New("edgar unreachable")}
	st := &stubStore{searchErr: errors.New("db offline")}

	rels, err := testExtractor(gen, filings, st).Discover(context.Background(), "TSM", nil)
	if err != nil {
		t.Fatalf("Expected probe failures contained, got %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("Expected no edges, got %+v", rels)
	}
	if len(st.touched) != 1 {
		t.Errorf("Expected cache still touched after a clean empty pass, got %v", st.touched)
	}
}

func TestDiscoverReturnsEdgesWhenPersistFails(t *testing.T) {
	gen := &stubGenerator{byMarker: map[string]llm.Result{
		"most important": {Text: `[{"related_company": "Apple", "type": "supplier", "criticality": "high", "evidence": "x"}]`},
	}}
	st := &stubStore{upsertErr: errors.New("db offline")}

	rels, err := testExtractor(gen, &stubFilings{err: errors.New("no filing")}, st).Discover(context.Background(), "TSM", nil)
	if err == nil {
		t.Fatal("Expected persistence error")
	}
	if len(rels) != 1 {
		t.Errorf("Expected in-memory edges returned despite persist failure, got %+v", rels)
	}
}

func TestNewsProbeEmitsOneSightingPerArticle(t *testing.T) {
	// One stored article duplicates a pool URL; the other is untagged and
	// must be re-tagged from its text.
	st := &stubStore{articles: []models.Article{
		{
			Title:   "Duplicate of pool article",
			Content: "irrelevant",
			URL:     "https://example.com/rally",
		},
		{
			Title:   "Chipmakers rally",
			Content: "Shares of TSMC and Apple rose together on strong semiconductor demand across the sector.",
			URL:     "https://example.com/sector",
		},
	}}
	e := testExtractor(&stubGenerator{}, &stubFilings{}, st)

	pool := []models.Article{
		{
			Title:   "TSMC halts production",
			Content: "TSMC halted several fabs, disrupting Apple and Nvidia supply.",
			URL:     "https://example.com/halt",
			Tickers: []string{"TSM", "AAPL", "NVDA"},
		},
		{
			Title:   "TSMC and Apple extend packaging deal",
			Content: "irrelevant",
			URL:     "https://example.com/rally",
			Tickers: []string{"TSM", "AAPL"},
		},
	}

	rels := e.newsProbe(context.Background(), "TSM", pool)
	if len(rels) != 4 {
		t.Fatalf("Expected 4 sightings (2 + 1 from pool, 1 from store, dup skipped), got %d: %+v", len(rels), rels)
	}
	for _, r := range rels {
		if r.Type != models.RelationSupplier || r.Criticality != models.CriticalityMedium {
			t.Errorf("Expected supplier/medium sighting, got %s/%s", r.Type, r.Criticality)
		}
		if math.Abs(r.Confidence-0.70) > 1e-9 {
			t.Errorf("Expected news base confidence 0.70, got %v", r.Confidence)
		}
		if len(r.Evidence) != 1 || !strings.HasPrefix(r.Evidence[0], "Co-mentioned in news: ") {
			t.Errorf("Expected co-mention evidence, got %v", r.Evidence)
		}
	}
	// The stored article has no tags persisted, so the probe re-tags it.
	last := rels[len(rels)-1]
	if last.RelatedCompany != "Apple Inc." {
		t.Errorf("Expected re-tagged stored article to yield Apple Inc., got %q", last.RelatedCompany)
	}
}

func TestStampSkipsSelfReferences(t *testing.T) {
	e := testExtractor(&stubGenerator{}, &stubFilings{}, &stubStore{})
	edges := []llmEdge{
		{RelatedCompany: "TSMC", Type: "partner", Criticality: "high"},
		{RelatedCompany: "Globex Corporation", Type: "supplier", Criticality: "low", Evidence: "z"},
	}

	rels := e.stamp("TSM", edges, models.SourceLLMInference, "llm_inference", 0)
	if len(rels) != 1 {
		t.Fatalf("Expected self edge dropped, got %d: %+v", len(rels), rels)
	}
	if rels[0].RelatedCompany != "Globex Corporation" {
		t.Errorf("Expected unknown name passed through, got %q", rels[0].RelatedCompany)
	}
	if rels[0].DiscoveredVia != "llm_inference" {
		t.Errorf("Expected discovered_via stamped, got %q", rels[0].DiscoveredVia)
	}
}

func TestDiscoverAllCoversEveryTicker(t *testing.T) {
	gen := &stubGenerator{byMarker: map[string]llm.Result{
		"most important": {Text: `[{"related_company": "Apple", "type": "supplier", "criticality": "high", "evidence": "x"}]`},
	}}
	st := &stubStore{}
	e := testExtractor(gen, &stubFilings{err: errors.New("no filing")}, st)

	got := e.DiscoverAll(context.Background(), []string{"TSM", "NVDA", "GLOBEX1"}, nil)
	if len(got) != 3 {
		t.Fatalf("Expected results for 3 tickers, got %d", len(got))
	}
	if len(got["TSM"]) != 1 {
		t.Errorf("Expected 1 edge for TSM, got %+v", got["TSM"])
	}
	for _, r := range got["NVDA"] {
		if r.SourceTicker != "NVDA" {
			t.Errorf("Expected NVDA edges only, got %+v", r)
		}
	}

	if len(e.DiscoverAll(context.Background(), nil, nil)) != 0 {
		t.Error("Expected empty result for empty ticker list")
	}
}
