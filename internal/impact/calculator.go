package impact

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/vantage-intel/vantage/internal/adapters/config"
	"github.com/vantage-intel/vantage/internal/catalog"
	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

// Relationship tier multipliers. Types outside the table (partner and
// unrecognized) propagate at full strength.
const (
	tierDirect   = 1.00
	tierSupplier = 0.65
	tierCustomer = 0.45
	tierDefault  = 1.00
)

// Recommendation cutoffs on total portfolio impact percent.
const (
	sellBelowPct    = -3.0
	monitorBelowPct = -1.0
	buyAbovePct     = 3.0
)

// Store is the slice of persistence the calculator reads.
type Store interface {
	RelationshipsFor(ctx context.Context, ticker string) ([]models.Relationship, error)
	PrecedentsMatching(ctx context.Context, factorName string) ([]models.HistoricalPrecedent, error)
}

// Calculator converts classified articles into per-ticker impact records
// and portfolio-level aggregates.
type Calculator struct {
	store   Store
	catalog *catalog.Catalog
	cfg     config.ImpactConfig
	log     *zap.Logger
}

// New creates a calculator over the store and company catalog.
func New(st Store, cat *catalog.Catalog, cfg config.ImpactConfig) *Calculator {
	return &Calculator{
		store:   st,
		catalog: cat,
		cfg:     cfg,
		log:     logger.Named("impact"),
	}
}

// Assess computes impact records for a batch of classified articles.
// Level 1 records cover portfolio tickers the article mentions directly;
// level 2 records propagate the subject's shock along cached
// relationships into the portfolio. The second return value is the
// matching reasoning trail, one step per record.
func (c *Calculator) Assess(ctx context.Context, articles []models.ClassifiedArticle, portfolio []string) ([]models.StockImpact, []models.ImpactStep, error) {
	inPortfolio := make(map[string]bool, len(portfolio))
	for _, t := range portfolio {
		inPortfolio[strings.ToUpper(t)] = true
	}

	var impacts []models.StockImpact
	var trail []models.ImpactStep
	precedents := map[string]float64{}

	for _, ca := range articles {
		factor := ca.Classification.FactorName
		p, ok := precedents[factor]
		if !ok {
			var err error
			p, err = c.precedent(ctx, factor)
			if err != nil {
				return nil, nil, err
			}
			precedents[factor] = p
		}

		s := ca.Classification.SentimentScore
		subject := ca.Article.PrimaryTicker()

		for _, ticker := range ca.Article.Tickers {
			if !inPortfolio[ticker] {
				continue
			}
			value := s * tierDirect * critMultiplier(models.CriticalityHigh) * p
			impacts = append(impacts, models.StockImpact{
				Ticker:       ticker,
				RelationType: models.RelationDirect,
				Description:  fmt.Sprintf("Direct impact from %s", factor),
				Level:        1,
				Impact:       value,
				ImpactPct:    value * 10,
				Confidence:   ca.Classification.Confidence,
			})
			trail = append(trail, models.ImpactStep{
				Ticker:      ticker,
				Level:       1,
				StepOrder:   len(trail),
				Description: fmt.Sprintf("Direct %s impact detected. %s", factor, ca.Classification.Reasoning),
				ImpactPct:   value * 10,
				Confidence:  ca.Classification.Confidence,
			})
		}

		if subject == "" {
			continue
		}
		rels, err := c.store.RelationshipsFor(ctx, subject)
		if err != nil {
			return nil, nil, fmt.Errorf("impact propagation for %s: %w", subject, err)
		}
		for _, rel := range rels {
			ticker, ok := c.catalog.Resolve(rel.RelatedCompany)
			if !ok || !inPortfolio[ticker] || ticker == subject {
				continue
			}
			value := s * tierMultiplier(rel.Type) * critMultiplier(rel.Criticality) * p
			impacts = append(impacts, models.StockImpact{
				Ticker:       ticker,
				Via:          subject,
				RelationType: rel.Type,
				Description:  fmt.Sprintf("Indirect %s impact via %s", rel.Type, subject),
				Level:        2,
				Impact:       value,
				ImpactPct:    value * 10,
				Confidence:   rel.Confidence,
			})
			trail = append(trail, models.ImpactStep{
				Ticker:      ticker,
				Level:       2,
				StepOrder:   len(trail),
				Description: fmt.Sprintf("Tier 2 %s propagation via %s. Adjusted by historical precedent.", rel.Type, subject),
				ImpactPct:   value * 10,
				Confidence:  rel.Confidence,
			})
		}
	}

	c.log.Debug("impact assessment complete",
		zap.Int("articles", len(articles)),
		zap.Int("impacts", len(impacts)),
	)
	return impacts, trail, nil
}

// Aggregate folds impact records into the portfolio-level figure.
// portfolioValue of zero falls back to the configured default.
func (c *Calculator) Aggregate(impacts []models.StockImpact, portfolioValue decimal.Decimal) models.PortfolioImpact {
	if len(impacts) == 0 {
		return models.PortfolioImpact{
			TotalImpactUSD: decimal.Zero,
			Severity:       models.SeverityLow,
			Recommendation: models.RecommendationHold,
		}
	}

	if portfolioValue.IsZero() {
		portfolioValue = decimal.NewFromFloat(c.cfg.DefaultPortfolioValue)
	}

	pcts := make([]float64, len(impacts))
	confs := make([]float64, len(impacts))
	for i, im := range impacts {
		pcts[i] = im.ImpactPct
		confs[i] = im.Confidence
	}

	totalPct := round2(stat.Mean(pcts, nil))
	totalUSD := portfolioValue.Mul(decimal.NewFromFloat(totalPct / 100)).Round(2)

	return models.PortfolioImpact{
		TotalImpactUSD: totalUSD,
		Severity:       c.severity(totalPct),
		Recommendation: recommendation(totalPct),
		TotalImpactPct: totalPct,
		Confidence:     stat.Mean(confs, nil),
		ImpactCount:    len(impacts),
	}
}

// AffectedHoldings breaks the impact down per portfolio position. Each
// holding takes the mean percent of the records naming its ticker.
func (c *Calculator) AffectedHoldings(impacts []models.StockImpact, holdings []models.Holding) []models.AffectedHolding {
	byTicker := map[string][]float64{}
	for _, im := range impacts {
		byTicker[im.Ticker] = append(byTicker[im.Ticker], im.ImpactPct)
	}

	var out []models.AffectedHolding
	for _, h := range holdings {
		pcts, ok := byTicker[strings.ToUpper(h.Ticker)]
		if !ok {
			continue
		}
		pct := round2(stat.Mean(pcts, nil))
		value := h.CurrentValue()
		out = append(out, models.AffectedHolding{
			Ticker:       strings.ToUpper(h.Ticker),
			Company:      c.displayName(h.Ticker),
			Quantity:     h.Quantity,
			CurrentPrice: h.CurrentPrice,
			ImpactUSD:    value.Mul(decimal.NewFromFloat(pct / 100)).Round(2),
			ImpactPct:    pct,
		})
	}
	return out
}

// precedent scales impacts by historical events matching the factor:
// mean magnitude divided by 2, or 1.0 when history is silent.
func (c *Calculator) precedent(ctx context.Context, factorName string) (float64, error) {
	events, err := c.store.PrecedentsMatching(ctx, factorName)
	if err != nil {
		return 0, fmt.Errorf("precedent lookup for %q: %w", factorName, err)
	}
	if len(events) == 0 {
		return 1.0, nil
	}
	sum := 0.0
	for _, e := range events {
		sum += e.ImpactMagnitude
	}
	return sum / float64(len(events)) / 2.0, nil
}

func (c *Calculator) severity(totalPct float64) models.Severity {
	switch abs := math.Abs(totalPct); {
	case abs >= c.cfg.HighSeverityPct:
		return models.SeverityHigh
	case abs >= c.cfg.MediumSeverityPct:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func recommendation(totalPct float64) models.Recommendation {
	switch {
	case totalPct < sellBelowPct:
		return models.RecommendationSell
	case totalPct < monitorBelowPct:
		return models.RecommendationMonitor
	case totalPct > buyAbovePct:
		return models.RecommendationBuy
	default:
		return models.RecommendationHold
	}
}

func tierMultiplier(t models.RelationType) float64 {
	switch t {
	case models.RelationDirect:
		return tierDirect
	case models.RelationSupplier:
		return tierSupplier
	case models.RelationCustomer:
		return tierCustomer
	default:
		return tierDefault
	}
}

func critMultiplier(cr models.Criticality) float64 {
	switch cr {
	case models.CriticalityCritical:
		return 1.20
	case models.CriticalityHigh:
		return 1.00
	case models.CriticalityMedium:
		return 0.80
	case models.CriticalityLow:
		return 0.50
	default:
		return 0.80
	}
}

func (c *Calculator) displayName(ticker string) string {
	if co, ok := c.catalog.Get(ticker); ok {
		return co.Name
	}
	return strings.ToUpper(ticker)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
