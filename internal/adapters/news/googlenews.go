package news

import (
	"context"
	"encoding/xml"
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

const googleNewsRSSURL = "https://news.google.com/rss/search"

const maxGoogleNewsItems = 20

// GoogleNewsProvider fetches headlines from the Google News RSS search
// feed. Keyless, so it stays available when every paid source is down.
type GoogleNewsProvider struct {
	enabled      bool
	defaultTerms []string
	client       *http.Client
}

// NewGoogleNewsProvider creates new Google News provider. defaultTerms
// seed the search when the caller passes no queries.
func NewGoogleNewsProvider(enabled bool, defaultTerms []string) *GoogleNewsProvider {
	return &GoogleNewsProvider{
		enabled:      enabled,
		defaultTerms: defaultTerms,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoogleNewsProvider) GetName() string {
	return "google_news"
}

func (g *GoogleNewsProvider) IsEnabled() bool {
	return g.enabled
}

func (g *GoogleNewsProvider) FetchLatestNews(ctx context.Context, queries []string, limit int) ([]models.Article, error) {
	if !g.enabled {
		return nil, nil
	}

	terms := queries
	if len(terms) == 0 {
		terms = g.defaultTerms
	}
	if len(terms) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", strings.Join(terms, " OR "))
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	req, err := http.NewRequestWithContext(ctx, "GET", googleNewsRSSURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	if limit <= 0 || limit > maxGoogleNewsItems {
		limit = maxGoogleNewsItems
	}

	articles, err := parseGoogleNewsFeed(resp.Body, limit)
	if err != nil {
		return nil, err
	}

	logger.Debug("fetched Google News RSS",
		zap.Int("count", len(articles)),
		zap.Int("terms", len(terms)),
	)

	return articles, nil
}

// parseGoogleNewsFeed decodes an RSS search feed into articles, using
// the item summary as body text.
func parseGoogleNewsFeed(r io.Reader, limit int) ([]models.Article, error) {
	var feed struct {
		Channel struct {
			Items []struct {
				Title       string `xml:"title"`
				Link        string `xml:"link"`
				PubDate     string `xml:"pubDate"`
				Description string `xml:"description"`
				Source      string `xml:"source"`
			} `xml:"item"`
		} `xml:"channel"`
	}

	if err := xml.NewDecoder(r).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	articles := make([]models.Article, 0, limit)
	for _, item := range feed.Channel.Items {
		if len(articles) >= limit {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}

		source := strings.TrimSpace(item.Source)
		if source == "" {
			source = "Google News"
		}

		articles = append(articles, models.Article{
			Title:       strings.TrimSpace(item.Title),
			Content:     stripHTMLTags(item.Description),
			URL:         item.Link,
			Source:      source,
			PublishedAt: parseRSSDate(item.PubDate),
		})
	}

	return articles, nil
}

func parseRSSDate(s string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// stripHTMLTags drops markup from RSS descriptions, which arrive as
// small HTML fragments.
func stripHTMLTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inTag := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '<':
			inTag = true
		case s[i] == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteByte(s[i])
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
