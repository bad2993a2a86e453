package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

const newsAPIURL = "https://newsapi.org/v2/everything"

const (
	maxNewsAPIPageSize = 20
	maxNewsAPITerms    = 5
)

// NewsAPIProvider fetches articles from NewsAPI's everything endpoint.
type NewsAPIProvider struct {
	apiKey  string
	enabled bool
	client  *http.Client
}

// NewNewsAPIProvider creates new NewsAPI provider
func NewNewsAPIProvider(apiKey string, enabled bool) *NewsAPIProvider {
	return &NewsAPIProvider{
		apiKey:  apiKey,
		enabled: enabled && apiKey != "",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *NewsAPIProvider) GetName() string {
	return "newsapi"
}

func (n *NewsAPIProvider) IsEnabled() bool {
	return n.enabled
}

func (n *NewsAPIProvider) FetchLatestNews(ctx context.Context, queries []string, limit int) ([]models.Article, error) {
	if !n.enabled {
		return nil, nil
	}

	terms := queries
	if len(terms) > maxNewsAPITerms {
		terms = terms[:maxNewsAPITerms]
	}
	if len(terms) == 0 {
		return nil, nil
	}

	pageSize := limit
	if pageSize <= 0 || pageSize > maxNewsAPIPageSize {
		pageSize = maxNewsAPIPageSize
	}

	params := url.Values{}
	params.Set("q", strings.Join(terms, " OR "))
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, "GET", newsAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Status   string `json:"status"`
		Articles []struct {
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
			Title       string    `json:"title"`
			Description string    `json:"description"`
			URL         string    `json:"url"`
			PublishedAt time.Time `json:"publishedAt"`
			Content     string    `json:"content"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	articles := make([]models.Article, 0, len(result.Articles))
	for _, item := range result.Articles {
		if item.Title == "" || item.URL == "" {
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		source := item.Source.Name
		if source == "" {
			source = "NewsAPI"
		}

		articles = append(articles, models.Article{
			Title:       item.Title,
			Content:     content,
			URL:         item.URL,
			Source:      source,
			PublishedAt: item.PublishedAt.UTC(),
		})
	}

	logger.Debug("fetched NewsAPI articles",
		zap.Int("count", len(articles)),
	)

	return articles, nil
}
