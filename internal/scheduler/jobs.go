package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/internal/workflow"
	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

// PortfolioSource lists the companies the jobs operate on.
type PortfolioSource interface {
	PortfolioCompanies(ctx context.Context) ([]models.Company, error)
}

// WorkflowRunner executes one full analysis run.
type WorkflowRunner interface {
	Run(ctx context.Context, initial workflow.State) (workflow.State, error)
}

// WorkflowJob drives the main analysis workflow over the persisted
// portfolio.
type WorkflowJob struct {
	runner WorkflowRunner
	store  PortfolioSource
	log    *zap.Logger
}

func NewWorkflowJob(runner WorkflowRunner, store PortfolioSource) *WorkflowJob {
	return &WorkflowJob{
		runner: runner,
		store:  store,
		log:    logger.Named("scheduler"),
	}
}

func (j *WorkflowJob) Name() string { return "workflow_run" }

func (j *WorkflowJob) Run(ctx context.Context) error {
	companies, err := j.store.PortfolioCompanies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}
	tickers := make([]string, 0, len(companies))
	for _, c := range companies {
		tickers = append(tickers, strings.ToUpper(c.Ticker))
	}
	if len(tickers) == 0 {
		j.log.Warn("portfolio is empty, skipping analysis run")
		return nil
	}

	final, err := j.runner.Run(ctx, workflow.State{Portfolio: tickers})
	if err != nil {
		return err
	}
	if len(final.Errors) > 0 {
		j.log.Warn("analysis run finished with degradations",
			zap.String("run_id", final.RunID),
			zap.Strings("degradations", final.Errors),
		)
	}
	return nil
}

// RelationshipRefresher re-maps supply chain edges for a ticker set.
type RelationshipRefresher interface {
	DiscoverAll(ctx context.Context, tickers []string, articles []models.Article) map[string][]models.Relationship
}

// CacheReader reports which tickers hold a fresh discovery pass.
type CacheReader interface {
	CachedTickers(ctx context.Context, maxAge time.Duration) (map[string]bool, error)
}

// RefreshJob re-discovers relationships for portfolio tickers whose cache
// entry went stale, keeping the fast path warm between analysis runs.
type RefreshJob struct {
	refresher RelationshipRefresher
	portfolio PortfolioSource
	cache     CacheReader
	ttl       time.Duration
	log       *zap.Logger
}

func NewRefreshJob(refresher RelationshipRefresher, portfolio PortfolioSource, cache CacheReader, ttl time.Duration) *RefreshJob {
	return &RefreshJob{
		refresher: refresher,
		portfolio: portfolio,
		cache:     cache,
		ttl:       ttl,
		log:       logger.Named("scheduler"),
	}
}

func (j *RefreshJob) Name() string { return "relationship_refresh" }

func (j *RefreshJob) Run(ctx context.Context) error {
	companies, err := j.portfolio.PortfolioCompanies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}
	fresh, err := j.cache.CachedTickers(ctx, j.ttl)
	if err != nil {
		return fmt.Errorf("failed to load relationship cache: %w", err)
	}

	var stale []string
	for _, c := range companies {
		ticker := strings.ToUpper(c.Ticker)
		if !fresh[ticker] {
			stale = append(stale, ticker)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	j.log.Info("refreshing stale relationship maps", zap.Strings("tickers", stale))
	results := j.refresher.DiscoverAll(ctx, stale, nil)

	edges := 0
	for _, rels := range results {
		edges += len(rels)
	}
	j.log.Info("relationship refresh complete",
		zap.Int("tickers", len(stale)),
		zap.Int("edges", edges),
	)
	return nil
}
