package models

import "time"

// Article represents a fetched news article
type Article struct {
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	FetchedAt   time.Time `json:"fetched_at" db:"fetched_at"`
	Title       string    `json:"title" db:"title"`
	Content     string    `json:"content" db:"content"`
	URL         string    `json:"url" db:"url"`
	Source      string    `json:"source" db:"source"`
	Tickers     []string  `json:"tickers,omitempty" db:"-"`
	ID          int64     `json:"id" db:"id"`
	Processed   bool      `json:"processed" db:"processed"`
}

// Stale reports whether the article is older than the given horizon.
func (a *Article) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(a.PublishedAt) > maxAge
}

// Mentions reports whether the article text references the ticker tag.
func (a *Article) Mentions(ticker string) bool {
	for _, t := range a.Tickers {
		if t == ticker {
			return true
		}
	}
	return false
}

// PrimaryTicker returns the first tagged ticker, the article's subject.
func (a *Article) PrimaryTicker() string {
	if len(a.Tickers) == 0 {
		return ""
	}
	return a.Tickers[0]
}

// Classification captures the single-factor LLM verdict on an article
type Classification struct {
	FactorName      string   `json:"factor_name" db:"factor_name"`
	Sentiment       string   `json:"sentiment" db:"sentiment"`
	Reasoning       string   `json:"reasoning" db:"reasoning"`
	AffectedSectors []string `json:"affected_sectors,omitempty" db:"-"`
	ArticleID       int64    `json:"article_id" db:"article_id"`
	FactorID        int      `json:"factor_id" db:"factor_id"`
	SentimentScore  float64  `json:"sentiment_score" db:"sentiment_score"`
	Confidence      float64  `json:"confidence" db:"confidence"`
	Degraded        bool     `json:"degraded" db:"-"`
}

// HighPriority reports whether the verdict warrants impact analysis.
func (c *Classification) HighPriority() bool {
	score := c.SentimentScore
	if score < 0 {
		score = -score
	}
	return score >= 0.5 && c.Confidence >= 0.6
}

// ClassifiedArticle pairs an article with its factor verdict
type ClassifiedArticle struct {
	Article        Article        `json:"article"`
	Classification Classification `json:"classification"`
}
