package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/internal/adapters/llm"
	"github.com/vantage-intel/vantage/internal/factors"
	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

const maxContentChars = 1500

// Classifier assigns each article one of the ten market factors plus a
// sentiment verdict. Model failures degrade to keyword heuristics, never
// to a missing verdict.
type Classifier struct {
	llm llm.Generator
	log *zap.Logger
}

// New creates a classifier on top of the generative client.
func New(gen llm.Generator) *Classifier {
	return &Classifier{
		llm: gen,
		log: logger.Named("classify"),
	}
}

type verdict struct {
	FactorName      string   `json:"factor_name"`
	Sentiment       string   `json:"sentiment"`
	Reasoning       string   `json:"reasoning"`
	AffectedSectors []string `json:"affected_sectors"`
	SentimentScore  float64  `json:"sentiment_score"`
	Confidence      float64  `json:"confidence"`
}

// Classify produces a factor verdict for one article. The only error it
// returns is context cancellation.
func (c *Classifier) Classify(ctx context.Context, article models.Article) (models.Classification, error) {
	res, err := c.llm.Generate(ctx, llm.Request{
		Kind:      llm.KindClassification,
		Prompt:    buildPrompt(article),
		MaxTokens: 600,
	})
	if err != nil {
		return models.Classification{}, fmt.Errorf("classification call failed: %w", err)
	}
	if res.Degraded {
		return c.heuristic(article), nil
	}

	var v verdict
	if err := json.Unmarshal([]byte(llm.ExtractJSON(res.Text)), &v); err != nil {
		c.log.Warn("unparseable classification response, using heuristic",
			zap.Int64("article_id", article.ID),
			zap.Error(err),
		)
		return c.heuristic(article), nil
	}

	factor, ok := factors.ByName(v.FactorName)
	if !ok {
		factor = factors.Default
	}

	score := clamp(v.SentimentScore, -1, 1)
	sentiment := v.Sentiment
	switch sentiment {
	case "positive", "negative", "neutral":
	default:
		sentiment = sentimentFromScore(score)
	}

	reasoning := v.Reasoning
	if reasoning == "" {
		reasoning = "Model classification complete"
	}

	out := models.Classification{
		ArticleID:       article.ID,
		FactorID:        int(factor),
		FactorName:      factor.Name(),
		Sentiment:       sentiment,
		SentimentScore:  score,
		Reasoning:       reasoning,
		Confidence:      clamp(v.Confidence, 0, 1),
		AffectedSectors: v.AffectedSectors,
	}

	c.log.Debug("article classified",
		zap.Int64("article_id", article.ID),
		zap.String("factor", out.FactorName),
		zap.String("sentiment", out.Sentiment),
		zap.Float64("score", out.SentimentScore),
		zap.Float64("confidence", out.Confidence),
	)
	return out, nil
}

// heuristic is the degraded path: first factor with a keyword hit and a
// small polarity lexicon, at fixed 0.5 confidence.
func (c *Classifier) heuristic(article models.Article) models.Classification {
	text := strings.ToLower(article.Title + " " + article.Content)

	factor, ok := factors.Match(text)
	if !ok {
		factor = factors.Default
	}

	sentiment, score := "neutral", 0.0
	switch {
	case containsAny(text, "halt", "shutdown", "shortage", "crash"):
		sentiment, score = "negative", -0.7
	case strings.Contains(text, "growth"):
		sentiment, score = "positive", 0.5
	}

	return models.Classification{
		ArticleID:      article.ID,
		FactorID:       int(factor),
		FactorName:     factor.Name(),
		Sentiment:      sentiment,
		SentimentScore: score,
		Reasoning:      "Heuristic classification: " + factor.Name(),
		Confidence:     0.5,
		Degraded:       true,
	}
}

func buildPrompt(article models.Article) string {
	var b strings.Builder
	b.WriteString("Analyze the following news article and classify it into EXACTLY ONE of these 10 market factors.\n")
	b.WriteString("Provide a sentiment score from -1.0 (extremely negative/disruptive) to +1.0 (extremely positive/growth).\n\n")
	b.WriteString("Factors:\n")
	for _, f := range factors.All() {
		fmt.Fprintf(&b, "%d. %s - %s\n", int(f), f.Name(), f.Description())
	}

	content := article.Content
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}
	fmt.Fprintf(&b, "\nArticle Title: %s\nArticle Content Summary: %s\n\n", article.Title, content)

	b.WriteString(`RETURN ONLY A VALID JSON OBJECT:
{
  "factor_name": "Exact Factor Name",
  "sentiment": "positive|negative|neutral",
  "sentiment_score": float,
  "reasoning": "Detailed 1-2 sentence explanation of the impact and factor choice",
  "confidence": 0.0-1.0,
  "affected_sectors": ["sector1", "sector2"]
}`)
	return b.String()
}

func sentimentFromScore(score float64) string {
	switch {
	case score > 0.1:
		return "positive"
	case score < -0.1:
		return "negative"
	default:
		return "neutral"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
