package llm

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

// Gemini Flash pricing per 1K characters.
const (
	inputCostPerThousandChars  = 0.000075
	outputCostPerThousandChars = 0.0003
	usageKeyPrefix             = "llm_usage:"
)

// MetaStore persists usage buckets between runs.
type MetaStore interface {
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

// UsageMirror receives one row per successful generative call. The
// telemetry warehouse implements it; nil means no mirroring.
type UsageMirror interface {
	AddLLMUsage(u models.LLMUsage)
}

// EstimateCost prices one call at the per-character rates above.
func EstimateCost(inputChars, outputChars int) float64 {
	return float64(inputChars)/1000*inputCostPerThousandChars +
		float64(outputChars)/1000*outputCostPerThousandChars
}

// DayUsage aggregates one day of generative calls.
type DayUsage struct {
	Day         string  `json:"day"`
	Count       int     `json:"count"`
	InputChars  int64   `json:"input_chars"`
	OutputChars int64   `json:"output_chars"`
	CostUSD     float64 `json:"estimated_cost"`
}

// UsageTracker accounts every successful generative call into per-day
// buckets and keeps them durable in the metadata table.
type UsageTracker struct {
	mu     sync.Mutex
	days   map[string]*DayUsage
	meta   MetaStore
	budget float64
	now    func() time.Time
}

// NewUsageTracker creates a tracker. meta may be nil in tests.
func NewUsageTracker(meta MetaStore, budgetUSD float64) *UsageTracker {
	return &UsageTracker{
		days:   make(map[string]*DayUsage),
		meta:   meta,
		budget: budgetUSD,
		now:    time.Now,
	}
}

// Load restores today's bucket so restarts don't reset the budget math.
func (t *UsageTracker) Load(ctx context.Context) {
	if t.meta == nil {
		return
	}
	day := t.now().Format("2006-01-02")
	raw, err := t.meta.GetMeta(ctx, usageKeyPrefix+day)
	if err != nil {
		return
	}
	var u DayUsage
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		logger.Warn("failed to decode usage bucket", zap.Error(err))
		return
	}
	t.mu.Lock()
	t.days[day] = &u
	t.mu.Unlock()
}

// Record accounts one successful call and persists the updated bucket.
func (t *UsageTracker) Record(ctx context.Context, inputChars, outputChars int) {
	t.mu.Lock()
	day := t.now().Format("2006-01-02")
	u := t.days[day]
	if u == nil {
		u = &DayUsage{Day: day}
		t.days[day] = u
	}
	u.Count++
	u.InputChars += int64(inputChars)
	u.OutputChars += int64(outputChars)
	u.CostUSD += EstimateCost(inputChars, outputChars)

	snapshot := *u
	var total float64
	for _, d := range t.days {
		total += d.CostUSD
	}
	t.mu.Unlock()

	logger.Info("📊 LLM usage",
		zap.Int("requests_today", snapshot.Count),
		zap.Float64("cost_today_usd", snapshot.CostUSD),
		zap.Float64("credits_remaining_usd", t.budget-total),
	)

	if t.meta != nil {
		b, err := json.Marshal(snapshot)
		if err == nil {
			if err := t.meta.SetMeta(ctx, usageKeyPrefix+day, string(b)); err != nil {
				logger.Warn("failed to persist usage bucket", zap.Error(err))
			}
		}
	}
}

// Today returns today's usage snapshot.
func (t *UsageTracker) Today() DayUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	day := t.now().Format("2006-01-02")
	if u := t.days[day]; u != nil {
		return *u
	}
	return DayUsage{Day: day}
}
