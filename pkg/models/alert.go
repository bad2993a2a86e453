package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity buckets portfolio impact magnitude
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Recommendation is the suggested portfolio action on an alert
type Recommendation string

const (
	RecommendationSell    Recommendation = "SELL"
	RecommendationMonitor Recommendation = "MONITOR"
	RecommendationHold    Recommendation = "HOLD"
	RecommendationBuy     Recommendation = "BUY"
)

// AffectedHolding quantifies alert impact on a single position
type AffectedHolding struct {
	Ticker       string          `json:"ticker"`
	Company      string          `json:"company"`
	Quantity     decimal.Decimal `json:"quantity"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	ImpactUSD    decimal.Decimal `json:"impact_dollar"`
	ImpactPct    float64         `json:"impact_percent"`
}

// Alert is a persisted portfolio-impact notification
type Alert struct {
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	ID               string            `json:"id" db:"id"`
	Headline         string            `json:"headline" db:"headline"`
	EventSummary     string            `json:"event_summary" db:"event_summary"`
	FactorName       string            `json:"factor_name" db:"factor_name"`
	Severity         Severity          `json:"severity" db:"severity"`
	Recommendation   Recommendation    `json:"recommendation" db:"recommendation"`
	FullReasoning    string            `json:"full_reasoning" db:"full_reasoning"`
	TotalImpactUSD   decimal.Decimal   `json:"total_impact_usd" db:"total_impact_usd"`
	Affected         []AffectedHolding `json:"affected" db:"-"`
	Sources          StringList        `json:"sources" db:"sources"`
	TriggerArticleID int64             `json:"trigger_article_id" db:"trigger_article_id"`
	TotalImpactPct   float64           `json:"total_impact_pct" db:"total_impact_pct"`
	Confidence       float64           `json:"confidence" db:"confidence"`
}

// ImpactStep is one level of the reasoning trail behind an alert.
// Level 1 is the directly affected company; level 2+ are propagated effects.
type ImpactStep struct {
	AlertID     string  `json:"alert_id" db:"alert_id"`
	Ticker      string  `json:"ticker" db:"ticker"`
	Description string  `json:"description" db:"description"`
	ID          int64   `json:"id" db:"id"`
	Level       int     `json:"level" db:"level"`
	StepOrder   int     `json:"step_order" db:"step_order"`
	ImpactPct   float64 `json:"impact_pct" db:"impact_pct"`
	Confidence  float64 `json:"confidence" db:"confidence"`
}

// StockImpact is a computed per-ticker shock before it becomes an alert step
type StockImpact struct {
	Ticker       string       `json:"ticker"`
	Via          string       `json:"via,omitempty"`
	RelationType RelationType `json:"relation_type,omitempty"`
	Description  string       `json:"description"`
	Level        int          `json:"level"`
	Impact       float64      `json:"impact"`
	ImpactPct    float64      `json:"impact_pct"`
	Confidence   float64      `json:"confidence"`
}

// PortfolioImpact aggregates stock impacts into one portfolio-level figure
type PortfolioImpact struct {
	TotalImpactUSD decimal.Decimal `json:"total_impact_usd"`
	Severity       Severity        `json:"severity"`
	Recommendation Recommendation  `json:"recommendation"`
	TotalImpactPct float64         `json:"total_impact_pct"`
	Confidence     float64         `json:"confidence"`
	ImpactCount    int             `json:"impact_count"`
}
