package telegram

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vantage-intel/vantage/pkg/models"
)

func TestRenderAlertFullMessage(t *testing.T) {
	reasoning := "1. NVDA: Direct Supply Chain Events impact detected. (impact -4.00%, confidence 0.90)\n" +
		"2. AAPL: Supplier disruption propagated from NVDA. (impact -2.00%, confidence 0.80)"

	alert := &models.Alert{
		ID:             "a1",
		Headline:       "Portfolio Risk Alert: -3.00% change",
		EventSummary:   "TSMC halts US_fab expansion",
		FactorName:     "Supply Chain Events",
		Severity:       models.SeverityHigh,
		Recommendation: models.RecommendationSell,
		TotalImpactUSD: decimal.NewFromInt(-30000),
		TotalImpactPct: -3.0,
		Confidence:     0.86,
		FullReasoning:  reasoning,
		Sources:        models.StringList{"https://example.com/a", "https://example.com/b"},
		Affected: []models.AffectedHolding{
			{Ticker: "NVDA", ImpactPct: -4.0, ImpactUSD: decimal.NewFromInt(-12000)},
			{Ticker: "AAPL", ImpactPct: -2.0, ImpactUSD: decimal.NewFromInt(-6000)},
		},
	}

	got, err := renderAlert(alert)
	if err != nil {
		t.Fatalf("renderAlert failed: %v", err)
	}

	want := `🚨 *Portfolio Risk Alert: -3.00% change*

*Severity:* HIGH
*Recommendation:* SELL
*Portfolio impact:* -3.00% (-$30000.00)
*Confidence:* 86%
*Factor:* Supply Chain Events

TSMC halts US\_fab expansion

*Affected holdings:*
• NVDA: -4.00% (-$12000.00)
• AAPL: -2.00% (-$6000.00)

*Reasoning:*
1. NVDA: Direct Supply Chain Events impact detected. (impact -4.00%, confidence 0.90)
2. AAPL: Supplier disruption propagated from NVDA. (impact -2.00%, confidence 0.80)

_2 source articles_`

	if got != want {
		t.Errorf("Expected message:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestRenderAlertOmitsEmptySections(t *testing.T) {
	alert := &models.Alert{
		Headline:       "Portfolio Risk Alert: 0.00% change",
		Severity:       models.SeverityLow,
		Recommendation: models.RecommendationHold,
		TotalImpactUSD: decimal.Zero,
		Confidence:     0.30,
		FullReasoning:  "No portfolio impacts were identified in this pass.",
	}

	got, err := renderAlert(alert)
	if err != nil {
		t.Fatalf("renderAlert failed: %v", err)
	}

	want := `📊 *Portfolio Risk Alert: 0.00% change*

*Severity:* LOW
*Recommendation:* HOLD
*Portfolio impact:* 0.00% ($0.00)
*Confidence:* 30%

*Reasoning:*
No portfolio impacts were identified in this pass.`

	if got != want {
		t.Errorf("Expected message:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestRenderAlertSingularSourceLabel(t *testing.T) {
	alert := &models.Alert{
		Headline:       "Portfolio Risk Alert: -1.00% change",
		Severity:       models.SeverityMedium,
		Recommendation: models.RecommendationMonitor,
		TotalImpactUSD: decimal.NewFromInt(-100),
		TotalImpactPct: -1.0,
		FullReasoning:  "1. AAPL: Direct impact.",
		Sources:        models.StringList{"https://example.com/a"},
	}

	got, err := renderAlert(alert)
	if err != nil {
		t.Fatalf("renderAlert failed: %v", err)
	}

	if !strings.Contains(got, "_1 source article_") {
		t.Errorf("Expected singular source label, got:\n%s", got)
	}
	if !strings.Contains(got, "⚠️") {
		t.Errorf("Expected medium severity emoji, got:\n%s", got)
	}
}

func TestEscapeMarkdownNeutralizesParseChars(t *testing.T) {
	got := escapeMarkdown("RISK_ON *breaking* [update] `code`")
	want := "RISK\\_ON \\*breaking\\* \\[update\\] \\`code\\`"

	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestTrimReasoningKeepsWholeLines(t *testing.T) {
	s := "1. first step\n2. second step\n3. third step"

	got := trimReasoning(s, 20)
	want := "1. first step\n…"

	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestTrimReasoningPassthroughWhenShort(t *testing.T) {
	s := "1. only step"

	if got := trimReasoning(s, 100); got != s {
		t.Errorf("Expected %q, got %q", s, got)
	}
}

func TestTrimReasoningCutsUnbrokenLine(t *testing.T) {
	got := trimReasoning(strings.Repeat("x", 50), 10)
	want := strings.Repeat("x", 10) + "\n…"

	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestFormatUSDSignPlacement(t *testing.T) {
	cases := []struct {
		in   decimal.Decimal
		want string
	}{
		{decimal.NewFromFloat(-1234.5), "-$1234.50"},
		{decimal.NewFromFloat(980.25), "$980.25"},
		{decimal.Zero, "$0.00"},
	}

	for _, tc := range cases {
		if got := formatUSD(tc.in); got != tc.want {
			t.Errorf("Expected %s, got %s", tc.want, got)
		}
	}
}

func TestFormatPctAddsPlusForGains(t *testing.T) {
	if got := formatPct(2.5); got != "+2.50%" {
		t.Errorf("Expected +2.50%%, got %s", got)
	}
	if got := formatPct(-1.25); got != "-1.25%" {
		t.Errorf("Expected -1.25%%, got %s", got)
	}
	if got := formatPct(0); got != "0.00%" {
		t.Errorf("Expected 0.00%%, got %s", got)
	}
}
