package factors

import "strings"

// Factor identifies one of the ten market factors. IDs are wire-stable:
// they appear in persisted rows and alert payloads, so the numbering
// never changes even if the catalog gains entries.
type Factor int

const (
	Macroeconomic Factor = iota + 1
	InterestRates
	SupplyChain
	CompanyEarnings
	GovernmentPolicy
	Geopolitical
	Currency
	MarketSentiment
	IndustryTrends
	BlackSwan
)

// Default is assigned when no factor can be determined.
const Default = MarketSentiment

// Metadata describes a factor for prompts and heuristic matching
type Metadata struct {
	Name        string
	Description string
	Keywords    []string
}

var catalog = map[Factor]Metadata{
	Macroeconomic: {
		Name:        "Macroeconomic Indicators",
		Description: "Overall economic health indicators.",
		Keywords:    []string{"GDP", "inflation", "CPI", "unemployment", "jobs report", "payroll", "PMI", "recession"},
	},
	InterestRates: {
		Name:        "Interest Rates & Central Bank Policy",
		Description: "Monetary policy and interest rate decisions.",
		Keywords:    []string{"Federal Reserve", "Fed", "interest rate", "rate hike", "quantitative easing", "Powell", "FOMC", "yield"},
	},
	SupplyChain: {
		Name:        "Supply Chain Events",
		Description: "Events affecting production and distribution.",
		Keywords:    []string{"supply chain", "shortage", "disruption", "factory shutdown", "production halt", "logistics", "shipping delay"},
	},
	CompanyEarnings: {
		Name:        "Company Earnings & Performance",
		Description: "Individual company financial results.",
		Keywords:    []string{"earnings", "revenue", "profit", "EPS", "guidance", "quarterly results", "beat", "miss"},
	},
	GovernmentPolicy: {
		Name:        "Government Policy & Regulation",
		Description: "Laws and government actions affecting markets.",
		Keywords:    []string{"regulation", "antitrust", "tax policy", "subsidy", "compliance", "legislation", "FDA"},
	},
	Geopolitical: {
		Name:        "Geopolitical Events",
		Description: "International relations and political events.",
		Keywords:    []string{"trade war", "tariff", "sanction", "geopolitical", "conflict", "election", "diplomacy"},
	},
	Currency: {
		Name:        "Currency Fluctuations",
		Description: "Changes in currency values.",
		Keywords:    []string{"exchange rate", "forex", "dollar strength", "appreciation", "depreciation", "currency"},
	},
	MarketSentiment: {
		Name:        "Market Sentiment & Psychology",
		Description: "Investor mood and market psychology.",
		Keywords:    []string{"VIX", "volatility", "bullish", "bearish", "sell-off", "rally", "fear index"},
	},
	IndustryTrends: {
		Name:        "Industry-Specific Trends",
		Description: "Trends specific to certain industries.",
		Keywords:    []string{"breakthrough", "innovation", "adoption", "market share", "disruption", "consolidation"},
	},
	BlackSwan: {
		Name:        "Black Swan Events",
		Description: "Rare, high-impact, unpredictable events.",
		Keywords:    []string{"unprecedented", "catastrophe", "pandemic", "natural disaster", "unexpected", "rare event"},
	},
}

// All returns every factor in id order.
func All() []Factor {
	out := make([]Factor, 0, len(catalog))
	for f := Macroeconomic; f <= BlackSwan; f++ {
		out = append(out, f)
	}
	return out
}

// Valid reports whether f is a known factor id.
func (f Factor) Valid() bool {
	_, ok := catalog[f]
	return ok
}

// Name returns the display name, empty for unknown factors.
func (f Factor) Name() string {
	return catalog[f].Name
}

// Description returns the catalog description.
func (f Factor) Description() string {
	return catalog[f].Description
}

// Keywords returns the heuristic keyword list.
func (f Factor) Keywords() []string {
	return catalog[f].Keywords
}

// ByName resolves a display name to its factor, case-insensitively.
func ByName(name string) (Factor, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return 0, false
	}
	for _, f := range All() {
		if strings.ToLower(catalog[f].Name) == needle {
			return f, true
		}
	}
	return 0, false
}

// Match scans text for factor keywords and returns the first factor
// (in id order) with a hit. Matching is case-insensitive substring.
func Match(text string) (Factor, bool) {
	haystack := strings.ToLower(text)
	if haystack == "" {
		return 0, false
	}
	for _, f := range All() {
		for _, kw := range catalog[f].Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				return f, true
			}
		}
	}
	return 0, false
}
