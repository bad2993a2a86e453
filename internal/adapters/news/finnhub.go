package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

const finnhubAPIURL = "https://finnhub.io/api/v1/company-news"

// Per-call ceilings keep a fetch inside Finnhub's free-tier rate limits.
const (
	maxFinnhubSymbols   = 5
	maxFinnhubPerSymbol = 5
	finnhubLookbackDays = 7
)

// FinnhubProvider fetches company news from Finnhub.
type FinnhubProvider struct {
	token   string
	enabled bool
	client  *http.Client
	now     func() time.Time
}

// NewFinnhubProvider creates new Finnhub provider
func NewFinnhubProvider(token string, enabled bool) *FinnhubProvider {
	return &FinnhubProvider{
		token:   token,
		enabled: enabled && token != "",
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

func (f *FinnhubProvider) GetName() string {
	return "finnhub"
}

func (f *FinnhubProvider) IsEnabled() bool {
	return f.enabled
}

// FetchLatestNews pulls recent company news for every query entry that
// looks like a ticker symbol. The queried symbol is always tagged first.
func (f *FinnhubProvider) FetchLatestNews(ctx context.Context, queries []string, limit int) ([]models.Article, error) {
	if !f.enabled {
		return nil, nil
	}

	symbols := symbolsFrom(queries, maxFinnhubSymbols)
	if len(symbols) == 0 {
		return nil, nil
	}

	articles := make([]models.Article, 0, len(symbols)*maxFinnhubPerSymbol)
	for _, symbol := range symbols {
		items, err := f.fetchSymbol(ctx, symbol)
		if err != nil {
			logger.Warn("failed to fetch finnhub news",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			continue
		}
		articles = append(articles, items...)
		if limit > 0 && len(articles) >= limit {
			articles = articles[:limit]
			break
		}
	}

	logger.Debug("fetched Finnhub news",
		zap.Int("count", len(articles)),
		zap.Strings("symbols", symbols),
	)

	return articles, nil
}

func (f *FinnhubProvider) fetchSymbol(ctx context.Context, symbol string) ([]models.Article, error) {
	now := f.now()

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("from", now.AddDate(0, 0, -finnhubLookbackDays).Format("2006-01-02"))
	params.Set("to", now.Format("2006-01-02"))
	params.Set("token", f.token)

	req, err := http.NewRequestWithContext(ctx, "GET", finnhubAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	var items []struct {
		Datetime int64  `json:"datetime"`
		Headline string `json:"headline"`
		Source   string `json:"source"`
		Summary  string `json:"summary"`
		URL      string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	articles := make([]models.Article, 0, maxFinnhubPerSymbol)
	for _, item := range items {
		if len(articles) >= maxFinnhubPerSymbol {
			break
		}
		if item.Headline == "" || item.URL == "" || len(item.Summary) < minContentLen {
			continue
		}

		source := item.Source
		if source == "" {
			source = "Finnhub"
		}
		publishedAt := now
		if item.Datetime > 0 {
			publishedAt = time.Unix(item.Datetime, 0).UTC()
		}

		articles = append(articles, models.Article{
			Title:       item.Headline,
			Content:     item.Summary,
			URL:         item.URL,
			Source:      source,
			PublishedAt: publishedAt,
			Tickers:     []string{symbol},
		})
	}

	return articles, nil
}

// symbolsFrom keeps the query entries that look like ticker symbols:
// short, spaceless, all caps once upper-cased.
func symbolsFrom(queries []string, max int) []string {
	var symbols []string
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" || len(q) > 5 || strings.ContainsAny(q, " \t") {
			continue
		}
		upper := strings.ToUpper(q)
		if !isAlpha(upper) {
			continue
		}
		symbols = append(symbols, upper)
		if len(symbols) >= max {
			break
		}
	}
	return symbols
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return len(s) > 0
}
