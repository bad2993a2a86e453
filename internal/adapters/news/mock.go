package news

import (
	"context"
	"time"

	"github.com/vantage-intel/vantage/pkg/models"
)

// MockProvider serves a fixed supply-chain disruption scenario. Wired as
// the aggregator fallback so keyless deployments still drive the full
// pipeline end to end.
type MockProvider struct {
	enabled bool
	now     func() time.Time
}

// NewMockProvider creates new mock provider
func NewMockProvider(enabled bool) *MockProvider {
	return &MockProvider{
		enabled: enabled,
		now:     time.Now,
	}
}

func (m *MockProvider) GetName() string {
	return "mock"
}

func (m *MockProvider) IsEnabled() bool {
	return m.enabled
}

func (m *MockProvider) FetchLatestNews(ctx context.Context, queries []string, limit int) ([]models.Article, error) {
	if !m.enabled {
		return nil, nil
	}

	return []models.Article{
		{
			Title:       "TSMC Semiconductor Production Halt in Taiwan Due to Earthquake",
			Content:     "TSMC has halted production at several of its advanced chip-making facilities in Taiwan following a major earthquake. This is expected to disrupt the global supply chain for Apple, Nvidia, and other tech giants.",
			URL:         "https://example.com/tsmc-halt",
			Source:      "Reuters",
			PublishedAt: m.now().UTC(),
			Tickers:     []string{"TSM", "AAPL", "NVDA"},
		},
	}, nil
}
