package workflow

import (
	"time"

	"github.com/vantage-intel/vantage/pkg/models"
)

// Decision is the validator's verdict on a completed analysis pass.
type Decision string

const (
	DecisionAccept   Decision = "ACCEPT"
	DecisionMoreData Decision = "REQUEST_MORE_DATA"
)

// State is the full record a single workflow run threads through its nodes.
// Nodes never mutate the state they receive; each returns a Patch and the
// engine folds it in before routing.
type State struct {
	RunID     string
	Portfolio []string
	StartedAt time.Time

	LoopCount     int
	LastFetchTime time.Time

	NewsArticles         []models.Article
	ClassifiedArticles   []models.ClassifiedArticle
	HighPriorityArticles []models.ClassifiedArticle

	CacheHits   []string
	CacheMisses []string
	Discovered  []models.Relationship

	StockImpacts    []models.StockImpact
	ReasoningTrail  []models.ImpactStep
	PortfolioImpact models.PortfolioImpact

	ConfidenceScore float64
	Validation      Decision
	Gaps            []string
	RefinedQueries  []string

	AlertID string
	Errors  []string
}

// Patch is the set of changes one node produces. Nil fields leave the state
// untouched; a non-nil slice replaces the previous value wholesale, except
// Errors, which always appends. Detail is a one-line summary for the run
// trace and is never merged into the state.
type Patch struct {
	Detail string

	LoopCount       *int
	LastFetchTime   *time.Time
	ConfidenceScore *float64
	Validation      *Decision
	AlertID         *string
	PortfolioImpact *models.PortfolioImpact

	NewsArticles         []models.Article
	ClassifiedArticles   []models.ClassifiedArticle
	HighPriorityArticles []models.ClassifiedArticle
	CacheHits            []string
	CacheMisses          []string
	Discovered           []models.Relationship
	StockImpacts         []models.StockImpact
	ReasoningTrail       []models.ImpactStep
	Gaps                 []string
	RefinedQueries       []string
	Errors               []string
}

// Apply folds a patch into a copy of the state and returns the result.
func (s State) Apply(p Patch) State {
	if p.LoopCount != nil {
		s.LoopCount = *p.LoopCount
	}
	if p.LastFetchTime != nil {
		s.LastFetchTime = *p.LastFetchTime
	}
	if p.ConfidenceScore != nil {
		s.ConfidenceScore = *p.ConfidenceScore
	}
	if p.Validation != nil {
		s.Validation = *p.Validation
	}
	if p.AlertID != nil {
		s.AlertID = *p.AlertID
	}
	if p.PortfolioImpact != nil {
		s.PortfolioImpact = *p.PortfolioImpact
	}
	if p.NewsArticles != nil {
		s.NewsArticles = p.NewsArticles
	}
	if p.ClassifiedArticles != nil {
		s.ClassifiedArticles = p.ClassifiedArticles
	}
	if p.HighPriorityArticles != nil {
		s.HighPriorityArticles = p.HighPriorityArticles
	}
	if p.CacheHits != nil {
		s.CacheHits = p.CacheHits
	}
	if p.CacheMisses != nil {
		s.CacheMisses = p.CacheMisses
	}
	if p.Discovered != nil {
		s.Discovered = p.Discovered
	}
	if p.StockImpacts != nil {
		s.StockImpacts = p.StockImpacts
	}
	if p.ReasoningTrail != nil {
		s.ReasoningTrail = p.ReasoningTrail
	}
	if p.Gaps != nil {
		s.Gaps = p.Gaps
	}
	if p.RefinedQueries != nil {
		s.RefinedQueries = p.RefinedQueries
	}
	if len(p.Errors) > 0 {
		merged := make([]string, 0, len(s.Errors)+len(p.Errors))
		merged = append(merged, s.Errors...)
		merged = append(merged, p.Errors...)
		s.Errors = merged
	}
	return s
}
