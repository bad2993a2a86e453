package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

// Seed loads the starter universe: tracked companies, known supply chain
// edges, demo holdings, and historical precedents. Safe to run repeatedly.
func (s *Store) Seed(ctx context.Context) error {
	for _, c := range seedCompanies {
		if err := s.UpsertCompany(ctx, c); err != nil {
			return fmt.Errorf("seed companies: %w", err)
		}
	}

	if err := s.UpsertRelationships(ctx, seedRelationships()); err != nil {
		return fmt.Errorf("seed relationships: %w", err)
	}

	for _, h := range seedHoldings {
		if err := s.UpsertHolding(ctx, h); err != nil {
			return fmt.Errorf("seed holdings: %w", err)
		}
	}

	if err := s.reseedPrecedents(ctx); err != nil {
		return fmt.Errorf("seed precedents: %w", err)
	}

	logger.Info("✅ Database seeded",
		zap.Int("companies", len(seedCompanies)),
		zap.Int("relationships", len(seedRelationshipRows)),
		zap.Int("holdings", len(seedHoldings)),
		zap.Int("precedents", len(seedPrecedents)))
	return nil
}

// reseedPrecedents replaces the precedent catalog wholesale so repeated
// seeding never duplicates rows.
func (s *Store) reseedPrecedents(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin precedent seed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM historical_precedents`); err != nil {
		return fmt.Errorf("failed to clear precedents: %w", err)
	}
	for _, p := range seedPrecedents {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO historical_precedents
				(event_type, event_name, impact_magnitude, date_occurred, description)
			VALUES ($1, $2, $3, $4, $5)
		`, p.EventType, p.EventName, p.ImpactMagnitude, p.DateOccurred, p.Description)
		if err != nil {
			return fmt.Errorf("failed to seed precedent %s: %w", p.EventName, err)
		}
	}
	return tx.Commit()
}

var seedCompanies = []models.Company{
	{Ticker: "AAPL", Name: "Apple Inc.", Sector: "Technology", IsPortfolio: true},
	{Ticker: "NVDA", Name: "NVIDIA Corporation", Sector: "Semiconductors", IsPortfolio: true},
	{Ticker: "AMD", Name: "Advanced Micro Devices", Sector: "Semiconductors", IsPortfolio: true},
	{Ticker: "INTC", Name: "Intel Corporation", Sector: "Semiconductors", IsPortfolio: true},
	{Ticker: "AVGO", Name: "Broadcom Inc.", Sector: "Semiconductors", IsPortfolio: true},
	{Ticker: "TSM", Name: "TSMC", Sector: "Semiconductors"},
	{Ticker: "ASML", Name: "ASML Holding", Sector: "Semiconductors"},
	{Ticker: "AMAT", Name: "Applied Materials", Sector: "Semiconductors"},
	{Ticker: "LRCX", Name: "Lam Research", Sector: "Semiconductors"},
	{Ticker: "KLAC", Name: "KLA Corporation", Sector: "Semiconductors"},
	{Ticker: "MSFT", Name: "Microsoft", Sector: "Technology"},
	{Ticker: "GOOGL", Name: "Alphabet", Sector: "Technology"},
	{Ticker: "AMZN", Name: "Amazon", Sector: "Consumer Discretionary"},
	{Ticker: "TSLA", Name: "Tesla", Sector: "Automotive"},
	{Ticker: "MU", Name: "Micron Technology", Sector: "Semiconductors"},
	{Ticker: "ARM", Name: "ARM Holdings", Sector: "Semiconductors"},
	{Ticker: "TXN", Name: "Texas Instruments", Sector: "Semiconductors"},
	{Ticker: "QCOM", Name: "Qualcomm", Sector: "Semiconductors"},
	{Ticker: "ADI", Name: "Analog Devices", Sector: "Semiconductors"},
	{Ticker: "NXPI", Name: "NXP Semiconductors", Sector: "Semiconductors"},
	{Ticker: "ON", Name: "ON Semiconductor", Sector: "Semiconductors"},
	{Ticker: "MCHP", Name: "Microchip Technology", Sector: "Semiconductors"},
	{Ticker: "STM", Name: "STMicroelectronics", Sector: "Semiconductors"},
	{Ticker: "INFY", Name: "Infosys", Sector: "Technology"},
	{Ticker: "WIT", Name: "Wipro", Sector: "Technology"},
	{Ticker: "HMC", Name: "Honda Motor", Sector: "Automotive"},
	{Ticker: "TM", Name: "Toyota Motor", Sector: "Automotive"},
	{Ticker: "F", Name: "Ford Motor", Sector: "Automotive"},
	{Ticker: "GM", Name: "General Motors", Sector: "Automotive"},
	{Ticker: "STLA", Name: "Stellantis", Sector: "Automotive"},
}

var seedRelationshipRows = []struct {
	source, target string
	relType        models.RelationType
	criticality    models.Criticality
}{
	{"TSM", "AAPL", models.RelationSupplier, models.CriticalityCritical},
	{"TSM", "NVDA", models.RelationSupplier, models.CriticalityCritical},
	{"TSM", "AMD", models.RelationSupplier, models.CriticalityCritical},
	{"TSM", "INTC", models.RelationSupplier, models.CriticalityMedium},
	{"ASML", "TSM", models.RelationSupplier, models.CriticalityCritical},
	{"ARM", "AAPL", models.RelationPartner, models.CriticalityCritical},
	{"ARM", "NVDA", models.RelationPartner, models.CriticalityHigh},
	{"AMAT", "TSM", models.RelationSupplier, models.CriticalityHigh},
	{"LRCX", "TSM", models.RelationSupplier, models.CriticalityHigh},
	{"NVDA", "MSFT", models.RelationSupplier, models.CriticalityCritical},
	{"NVDA", "GOOGL", models.RelationSupplier, models.CriticalityCritical},
	{"AVGO", "AAPL", models.RelationSupplier, models.CriticalityHigh},
	{"QCOM", "AAPL", models.RelationSupplier, models.CriticalityHigh},
	{"MU", "NVDA", models.RelationSupplier, models.CriticalityMedium},
	{"ASML", "INTC", models.RelationSupplier, models.CriticalityCritical},
	{"ASML", "SSNLF", models.RelationSupplier, models.CriticalityHigh},
}

func seedRelationships() []models.Relationship {
	out := make([]models.Relationship, 0, len(seedRelationshipRows))
	for _, r := range seedRelationshipRows {
		out = append(out, models.Relationship{
			SourceTicker:   r.source,
			RelatedCompany: r.target,
			Type:           r.relType,
			Criticality:    r.criticality,
			Confidence:     0.95,
			DiscoveredVia:  models.SourceManual,
			Sources:        models.StringList{models.SourceManual},
			LastVerified:   time.Now(),
		})
	}
	return out
}

var seedHoldings = []models.Holding{
	{Ticker: "AAPL", Quantity: decimal.NewFromInt(150), AvgPrice: decimal.NewFromFloat(145.50), CurrentPrice: decimal.NewFromFloat(185.20)},
	{Ticker: "NVDA", Quantity: decimal.NewFromInt(80), AvgPrice: decimal.NewFromFloat(420.00), CurrentPrice: decimal.NewFromFloat(480.50)},
	{Ticker: "AMD", Quantity: decimal.NewFromInt(120), AvgPrice: decimal.NewFromFloat(95.00), CurrentPrice: decimal.NewFromFloat(112.30)},
	{Ticker: "INTC", Quantity: decimal.NewFromInt(200), AvgPrice: decimal.NewFromFloat(42.50), CurrentPrice: decimal.NewFromFloat(38.40)},
	{Ticker: "AVGO", Quantity: decimal.NewFromInt(60), AvgPrice: decimal.NewFromFloat(540.00), CurrentPrice: decimal.NewFromFloat(890.10)},
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Event types carry the factor display names so the calculator's
// precedent lookup (event_type contains factor name) finds each pool.
var seedPrecedents = []models.HistoricalPrecedent{
	{EventType: "Supply Chain Events", EventName: "Taiwan Earthquake 2024", DateOccurred: day(2024, 4, 3), ImpactMagnitude: 1.8, Description: "Major disruption to TSMC facilities, causing global chip supply concerns. AAPL -8.2%, NVDA -6.7%"},
	{EventType: "Supply Chain Events", EventName: "Suez Canal Blockage (Ever Given)", DateOccurred: day(2021, 3, 23), ImpactMagnitude: 1.5, Description: "Significant global trade bottleneck impacting electronics and energy components."},
	{EventType: "Supply Chain Events", EventName: "TSMC Fab 18 Equipment Malfunction", DateOccurred: day(2021, 4, 15), ImpactMagnitude: 1.6, Description: "2-week production halt at TSMC caused Apple iPhone delays and NVIDIA GPU shortages."},
	{EventType: "Supply Chain Events", EventName: "Samsung COVID Lockdown China", DateOccurred: day(2022, 4, 1), ImpactMagnitude: 1.4, Description: "45-day production disruption at Samsung facilities due to COVID lockdowns in China."},
	{EventType: "Supply Chain Events", EventName: "Rivian Battery Supplier Delays", DateOccurred: day(2022, 9, 15), ImpactMagnitude: 2.3, Description: "Panasonic delays battery shipments to Rivian. RIVN -22.5%, production cuts announced."},
	{EventType: "Supply Chain Events", EventName: "Japan Earthquake Chip Shortage", DateOccurred: day(2024, 1, 1), ImpactMagnitude: 1.7, Description: "Renesas and Toshiba fabs affected, automotive chip supply disrupted."},
	{EventType: "Supply Chain Events", EventName: "Samsung Labor Strike 2024", DateOccurred: day(2024, 7, 8), ImpactMagnitude: 1.4, Description: "First major strike at Samsung, impacting memory chip yield forecasts."},

	{EventType: "Company Earnings & Performance", EventName: "NVIDIA Q2 2023 Earnings", DateOccurred: day(2023, 8, 23), ImpactMagnitude: 2.2, Description: "Massive AI demand surge led to record guidance and stock breakout. NVDA +24.4%"},
	{EventType: "Company Earnings & Performance", EventName: "Apple Record Q4 2023", DateOccurred: day(2023, 11, 2), ImpactMagnitude: 1.5, Description: "Apple reports record Q4 earnings, beats by 15%. AAPL +8.2%"},
	{EventType: "Company Earnings & Performance", EventName: "Tesla Production Ramp 2023", DateOccurred: day(2023, 1, 12), ImpactMagnitude: 1.6, Description: "Tesla announces 50% production increase. TSLA +11.3%"},
	{EventType: "Company Earnings & Performance", EventName: "Meta Earnings Miss Q1 2022", DateOccurred: day(2022, 2, 3), ImpactMagnitude: 1.9, Description: "Meta misses on earnings, guides lower due to Apple privacy changes. META -26%"},
	{EventType: "Company Earnings & Performance", EventName: "Amazon AWS Growth Slowdown", DateOccurred: day(2023, 4, 27), ImpactMagnitude: 1.3, Description: "AWS growth decelerates to 16% vs 20% expected. AMZN -4.2%"},
	{EventType: "Company Earnings & Performance", EventName: "Amazon Warehouse Unionization", DateOccurred: day(2022, 4, 1), ImpactMagnitude: 1.0, Description: "First successful Amazon union vote. Labor cost concerns. AMZN -3.2%"},

	{EventType: "Interest Rates & Central Bank Policy", EventName: "Fed Rate Hike March 2022", DateOccurred: day(2022, 3, 16), ImpactMagnitude: 1.2, Description: "Start of tightening cycle impacting tech valuations and growth stocks. Tech sector -3.8%"},
	{EventType: "Interest Rates & Central Bank Policy", EventName: "Fed Emergency Rate Cut COVID", DateOccurred: day(2020, 3, 3), ImpactMagnitude: 1.4, Description: "Fed cuts rates by 0.5% in emergency move. Initial rally +4.2%, then COVID crash."},
	{EventType: "Interest Rates & Central Bank Policy", EventName: "Fed Largest Hike Since 1994", DateOccurred: day(2022, 6, 15), ImpactMagnitude: 1.5, Description: "Fed raises rates by 0.75% - largest hike since 1994. NVDA -8%, AAPL -5%"},
	{EventType: "Macroeconomic Indicators", EventName: "Inflation Reaches 40-Year High", DateOccurred: day(2022, 6, 10), ImpactMagnitude: 1.7, Description: "CPI hits 9.1%, highest since 1981. Broad tech selloff -5.2%"},

	{EventType: "Geopolitical Events", EventName: "Russia-Ukraine War Start", DateOccurred: day(2022, 2, 24), ImpactMagnitude: 2.5, Description: "Extreme volatility in energy and neon gas (semiconductor input) sectors. Market -12.9%"},
	{EventType: "Geopolitical Events", EventName: "US Bans AI Chip Exports to China", DateOccurred: day(2023, 10, 17), ImpactMagnitude: 1.8, Description: "US restricts NVIDIA/AMD advanced AI chip sales to China. NVDA -6.8%, lost 20-30% China revenue"},
	{EventType: "Geopolitical Events", EventName: "Taiwan Strait Tensions 2024", DateOccurred: day(2024, 5, 20), ImpactMagnitude: 1.4, Description: "Cross-strait military exercises raise semiconductor supply concerns."},
	{EventType: "Geopolitical Events", EventName: "China Tech Crackdown 2021", DateOccurred: day(2021, 7, 24), ImpactMagnitude: 2.1, Description: "China announces sweeping tech regulations. BABA -28%, tech sector contagion."},

	{EventType: "Market Sentiment & Psychology", EventName: "SVB Collapse", DateOccurred: day(2023, 3, 10), ImpactMagnitude: 1.9, Description: "Banking contagion fears briefly impacted overall market liquidity and tech lending. Banking -25%"},
	{EventType: "Market Sentiment & Psychology", EventName: "Flash Crash 2010", DateOccurred: day(2010, 5, 6), ImpactMagnitude: 1.6, Description: "Algorithmic trading caused 1000-point Dow drop in minutes. Recovered same day."},
	{EventType: "Market Sentiment & Psychology", EventName: "Crypto Winter Impact on Tech", DateOccurred: day(2022, 5, 9), ImpactMagnitude: 1.3, Description: "Bitcoin crashes from $69K to $20K. Tech stocks correlated selloff."},
	{EventType: "Black Swan Events", EventName: "COVID-19 Market Crash", DateOccurred: day(2020, 3, 16), ImpactMagnitude: 3.0, Description: "Fastest bear market in history. S&P -12.9% in single day. Recovery took 6 months with Fed support."},

	{EventType: "Government Policy & Regulation", EventName: "EU DMA Implementation", DateOccurred: day(2024, 3, 7), ImpactMagnitude: 1.1, Description: "Forced Apple and Google to open ecosystems, impacting long-term service revenue models."},
	{EventType: "Government Policy & Regulation", EventName: "Apple iOS Privacy Changes", DateOccurred: day(2021, 6, 7), ImpactMagnitude: 1.8, Description: "App Tracking Transparency hurts Meta ad revenue. META -18.2% over 90 days"},
	{EventType: "Government Policy & Regulation", EventName: "FTC Blocks Microsoft-Activision", DateOccurred: day(2023, 6, 12), ImpactMagnitude: 1.2, Description: "Initial FTC block (later overturned). MSFT -1.2%, regulatory uncertainty."},

	{EventType: "Industry-Specific Trends", EventName: "ChatGPT Launch", DateOccurred: day(2022, 11, 30), ImpactMagnitude: 2.0, Description: "Triggered absolute AI transformation and capex surge across datacenter suppliers."},
	{EventType: "Industry-Specific Trends", EventName: "Apple Vision Pro Announcement", DateOccurred: day(2023, 6, 5), ImpactMagnitude: 1.3, Description: "Mixed reality headset announced. AAPL +2%, spatial computing era begins."},
	{EventType: "Industry-Specific Trends", EventName: "AMD Zen Architecture Launch", DateOccurred: day(2019, 7, 7), ImpactMagnitude: 1.7, Description: "AMD gains massive server market share from Intel. INTC -16.8% over 6 months"},
	{EventType: "Industry-Specific Trends", EventName: "Broadcom-VMware Close", DateOccurred: day(2023, 11, 22), ImpactMagnitude: 1.3, Description: "Consolidation of enterprise software and cloud infrastructure segments."},
	{EventType: "Industry-Specific Trends", EventName: "Microsoft Activision $69B", DateOccurred: day(2022, 1, 18), ImpactMagnitude: 1.1, Description: "MSFT announces Activision acquisition. MSFT +2.4%, regulatory approval takes 18 months."},
}
