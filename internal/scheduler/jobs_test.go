package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vantage-intel/vantage/internal/workflow"
	"github.com/vantage-intel/vantage/pkg/models"
)

type stubPortfolio struct {
	companies []models.Company
	err       error
}

func (s *stubPortfolio) PortfolioCompanies(_ context.Context) ([]models.Company, error) {
	return s.companies, s.err
}

type stubRunner struct {
	mu     sync.Mutex
	inputs []workflow.State
	final  workflow.State
	err    error
}

func (r *stubRunner) Run(_ context.Context, initial workflow.State) (workflow.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, initial)
	return r.final, r.err
}

type stubRefresher struct {
	mu    sync.Mutex
	calls [][]string
	rels  map[string][]models.Relationship
}

func (d *stubRefresher) DiscoverAll(_ context.Context, tickers []string, _ []models.Article) map[string][]models.Relationship {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, append([]string{}, tickers...))
	return d.rels
}

type stubCache struct {
	fresh map[string]bool
	err   error
}

func (c *stubCache) CachedTickers(_ context.Context, _ time.Duration) (map[string]bool, error) {
	return c.fresh, c.err
}

func TestWorkflowJobRunsPersistedPortfolio(t *testing.T) {
	runner := &stubRunner{}
	job := NewWorkflowJob(runner, &stubPortfolio{companies: []models.Company{
		{Ticker: "aapl", Name: "Apple Inc."},
		{Ticker: "NVDA", Name: "NVIDIA Corporation"},
	}})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(runner.inputs) != 1 {
		t.Fatalf("Expected 1 workflow run, got %d", len(runner.inputs))
	}
	got := runner.inputs[0].Portfolio
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "NVDA" {
		t.Errorf("Expected uppercased portfolio [AAPL NVDA], got %v", got)
	}
}

func TestWorkflowJobSkipsEmptyPortfolio(t *testing.T) {
	runner := &stubRunner{}
	job := NewWorkflowJob(runner, &stubPortfolio{})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Expected empty portfolio to be a no-op, got %v", err)
	}
	if len(runner.inputs) != 0 {
		t.Errorf("Expected no workflow run, got %d", len(runner.inputs))
	}
}

func TestWorkflowJobPropagatesErrors(t *testing.T) {
	job := NewWorkflowJob(&stubRunner{}, &stubPortfolio{err: errors.New("db down")})
	if err := job.Run(context.Background()); err == nil {
		t.Error("Expected a portfolio load error")
	}

	runner := &stubRunner{err: errors.New("run failed")}
	job = NewWorkflowJob(runner, &stubPortfolio{companies: []models.Company{{Ticker: "NVDA"}}})
	if err := job.Run(context.Background()); err == nil {
		t.Error("Expected the run error surfaced")
	}
}

func TestRefreshJobRefreshesOnlyStaleTickers(t *testing.T) {
	refresher := &stubRefresher{rels: map[string][]models.Relationship{
		"NVDA": {{SourceTicker: "NVDA", RelatedCompany: "TSMC", Type: models.RelationSupplier}},
	}}
	job := NewRefreshJob(
		refresher,
		&stubPortfolio{companies: []models.Company{
			{Ticker: "AAPL"}, {Ticker: "nvda"}, {Ticker: "MSFT"},
		}},
		&stubCache{fresh: map[string]bool{"AAPL": true}},
		24*time.Hour,
	)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(refresher.calls) != 1 {
		t.Fatalf("Expected 1 refresh call, got %d", len(refresher.calls))
	}
	got := refresher.calls[0]
	if len(got) != 2 || got[0] != "NVDA" || got[1] != "MSFT" {
		t.Errorf("Expected stale tickers [NVDA MSFT], got %v", got)
	}
}

func TestRefreshJobSkipsWhenAllFresh(t *testing.T) {
	refresher := &stubRefresher{}
	job := NewRefreshJob(
		refresher,
		&stubPortfolio{companies: []models.Company{{Ticker: "AAPL"}}},
		&stubCache{fresh: map[string]bool{"AAPL": true}},
		24*time.Hour,
	)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(refresher.calls) != 0 {
		t.Errorf("Expected no refresh calls, got %v", refresher.calls)
	}
}

func TestRefreshJobPropagatesCacheErrors(t *testing.T) {
	job := NewRefreshJob(
		&stubRefresher{},
		&stubPortfolio{companies: []models.Company{{Ticker: "AAPL"}}},
		&stubCache{err: errors.New("cache query failed")},
		24*time.Hour,
	)
	if err := job.Run(context.Background()); err == nil {
		t.Error("Expected the cache error surfaced")
	}
}
