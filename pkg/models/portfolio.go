package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company represents a tracked company, portfolio member or supply chain node
type Company struct {
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
	Ticker      string    `json:"ticker" db:"ticker"`
	Name        string    `json:"name" db:"name"`
	Sector      string    `json:"sector" db:"sector"`
	IsPortfolio bool      `json:"is_portfolio" db:"is_portfolio"`
}

// Holding represents one portfolio position
type Holding struct {
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
	Ticker       string          `json:"ticker" db:"ticker"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	AvgPrice     decimal.Decimal `json:"avg_price" db:"avg_price"`
	CurrentPrice decimal.Decimal `json:"current_price" db:"current_price"`
	ID           int64           `json:"id" db:"id"`
}

// CurrentValue returns quantity × current price.
func (h *Holding) CurrentValue() decimal.Decimal {
	return h.Quantity.Mul(h.CurrentPrice)
}

// CostBasis returns quantity × average purchase price.
func (h *Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AvgPrice)
}

// GainLoss returns unrealized profit and loss.
func (h *Holding) GainLoss() decimal.Decimal {
	return h.CurrentValue().Sub(h.CostBasis())
}

// GainLossPercent returns unrealized P&L relative to cost basis.
func (h *Holding) GainLossPercent() float64 {
	basis := h.CostBasis()
	if basis.IsZero() {
		return 0
	}
	pct, _ := h.GainLoss().Div(basis).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// HoldingValuation is a holding with derived money figures
type HoldingValuation struct {
	Holding         Holding         `json:"holding"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	CostBasis       decimal.Decimal `json:"cost_basis"`
	GainLoss        decimal.Decimal `json:"gain_loss"`
	GainLossPercent float64         `json:"gain_loss_percent"`
}

// PortfolioValuation aggregates holding valuations
type PortfolioValuation struct {
	Holdings        []HoldingValuation `json:"holdings"`
	TotalValue      decimal.Decimal    `json:"total_value"`
	TotalCost       decimal.Decimal    `json:"total_cost"`
	TotalGainLoss   decimal.Decimal    `json:"total_gain_loss"`
	GainLossPercent float64            `json:"gain_loss_percent"`
}

// ValuePortfolio computes per-holding and total valuations.
func ValuePortfolio(holdings []Holding) PortfolioValuation {
	out := PortfolioValuation{
		TotalValue:    decimal.Zero,
		TotalCost:     decimal.Zero,
		TotalGainLoss: decimal.Zero,
	}
	for _, h := range holdings {
		hv := HoldingValuation{
			Holding:         h,
			CurrentValue:    h.CurrentValue(),
			CostBasis:       h.CostBasis(),
			GainLoss:        h.GainLoss(),
			GainLossPercent: h.GainLossPercent(),
		}
		out.Holdings = append(out.Holdings, hv)
		out.TotalValue = out.TotalValue.Add(hv.CurrentValue)
		out.TotalCost = out.TotalCost.Add(hv.CostBasis)
		out.TotalGainLoss = out.TotalGainLoss.Add(hv.GainLoss)
	}
	if !out.TotalCost.IsZero() {
		out.GainLossPercent, _ = out.TotalGainLoss.Div(out.TotalCost).Mul(decimal.NewFromInt(100)).Float64()
	}
	return out
}

// HistoricalPrecedent is a past market event used to scale impact estimates
type HistoricalPrecedent struct {
	DateOccurred    time.Time `json:"date_occurred" db:"date_occurred"`
	EventType       string    `json:"event_type" db:"event_type"`
	EventName       string    `json:"event_name" db:"event_name"`
	Description     string    `json:"description" db:"description"`
	ID              int64     `json:"id" db:"id"`
	ImpactMagnitude float64   `json:"impact_magnitude" db:"impact_magnitude"`
}

// AgentLog records one workflow node execution for the audit trail
type AgentLog struct {
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	RunID      string    `json:"run_id" db:"run_id"`
	Node       string    `json:"node" db:"node"`
	Status     string    `json:"status" db:"status"`
	Detail     string    `json:"detail" db:"detail"`
	ID         int64     `json:"id" db:"id"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
}
