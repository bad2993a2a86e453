package catalog

import (
	"strings"

	"github.com/vantage-intel/vantage/pkg/models"
)

// corporateSuffixes are stripped from company names when building short
// mention aliases ("Apple Inc." also matches plain "Apple").
var corporateSuffixes = []string{
	"inc.", "inc", "corp.", "corp", "corporation",
	"holding", "holdings", "ltd.", "ltd", "plc", "n.v.", "s.a.",
}

// extraAliases covers common press names that neither the registered name
// nor the ticker would catch.
var extraAliases = map[string][]string{
	"TSM":   {"taiwan semiconductor"},
	"GOOGL": {"google"},
}

// minAliasLen guards against stripped aliases that collide with everyday
// words ("ARM Holdings" must not tag every mention of "arm").
const minAliasLen = 4

// minSymbolLen is the shortest ticker matched as an uppercase token;
// one- and two-letter symbols ("F", "GM") are too noisy.
const minSymbolLen = 3

type entry struct {
	company  models.Company
	mentions []string
	symbol   string
}

// Catalog resolves company mentions in free text to tracked tickers.
// Entries keep portfolio companies first so the first tag of an untagged
// article lands on a holding when one is mentioned.
type Catalog struct {
	entries  []entry
	byTicker map[string]models.Company
}

// New builds a catalog from the tracked-company set.
func New(companies []models.Company) *Catalog {
	c := &Catalog{byTicker: make(map[string]models.Company, len(companies))}

	ordered := make([]models.Company, 0, len(companies))
	for _, co := range companies {
		if co.IsPortfolio {
			ordered = append(ordered, co)
		}
	}
	for _, co := range companies {
		if !co.IsPortfolio {
			ordered = append(ordered, co)
		}
	}

	for _, co := range ordered {
		ticker := strings.ToUpper(co.Ticker)
		co.Ticker = ticker
		c.byTicker[ticker] = co

		e := entry{company: co}
		name := strings.ToLower(strings.TrimSpace(co.Name))
		if name != "" {
			e.mentions = append(e.mentions, name)
		}
		if short := stripSuffix(name); short != name && len(short) >= minAliasLen {
			e.mentions = append(e.mentions, short)
		}
		e.mentions = append(e.mentions, extraAliases[ticker]...)
		if len(ticker) >= minSymbolLen {
			e.symbol = ticker
		}
		c.entries = append(c.entries, e)
	}

	return c
}

// Tag returns the tickers of every tracked company mentioned in text,
// in catalog order. Names match case-insensitively on word boundaries;
// ticker symbols match as exact uppercase tokens.
func (c *Catalog) Tag(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var tags []string
	for _, e := range c.entries {
		if e.matches(text, lower) {
			tags = append(tags, e.company.Ticker)
		}
	}
	return tags
}

// Resolve maps a single mention (a name or a ticker, as source probes
// report them) to a catalog ticker.
func (c *Catalog) Resolve(mention string) (string, bool) {
	m := strings.TrimSpace(mention)
	if m == "" {
		return "", false
	}

	upper := strings.ToUpper(m)
	if _, ok := c.byTicker[upper]; ok {
		return upper, true
	}

	lower := strings.ToLower(m)
	short := stripSuffix(lower)
	for _, e := range c.entries {
		for _, alias := range e.mentions {
			if lower == alias || short == alias {
				return e.company.Ticker, true
			}
		}
	}
	return "", false
}

// Get returns the catalog company for ticker.
func (c *Catalog) Get(ticker string) (models.Company, bool) {
	co, ok := c.byTicker[strings.ToUpper(ticker)]
	return co, ok
}

// IsPortfolio reports whether ticker is a portfolio holding.
func (c *Catalog) IsPortfolio(ticker string) bool {
	co, ok := c.byTicker[strings.ToUpper(ticker)]
	return ok && co.IsPortfolio
}

// PortfolioTickers returns the portfolio tickers in catalog order.
func (c *Catalog) PortfolioTickers() []string {
	var out []string
	for _, e := range c.entries {
		if e.company.IsPortfolio {
			out = append(out, e.company.Ticker)
		}
	}
	return out
}

// Len returns the number of tracked companies.
func (c *Catalog) Len() int {
	return len(c.entries)
}

func (e *entry) matches(text, lower string) bool {
	for _, m := range e.mentions {
		if containsPhrase(lower, m) {
			return true
		}
	}
	return e.symbol != "" && containsPhrase(text, e.symbol)
}

func stripSuffix(name string) string {
	for _, suffix := range corporateSuffixes {
		if strings.HasSuffix(name, " "+suffix) {
			return strings.TrimSpace(strings.TrimSuffix(name, " "+suffix))
		}
	}
	return name
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(phrase)
		if (start == 0 || !isWordChar(text[start-1])) &&
			(end == len(text) || !isWordChar(text[end])) {
			return true
		}
		from = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
