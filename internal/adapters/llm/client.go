package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/internal/adapters/config"
	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

type apiError struct {
	provider string
	body     string
	status   int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.provider, e.status, e.body)
}

func (e *apiError) rateLimited() bool {
	return e.status == http.StatusTooManyRequests
}

func isRetryable(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.rateLimited() || apiErr.status >= 500
	}
	// Transport-level failures are worth another try
	return true
}

func isRateLimited(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.rateLimited()
}

// Client routes every generative call through rate limiting, retry with
// backoff, and key/model rotation across providers, falling back to a
// deterministic heuristic when every endpoint fails.
type Client struct {
	cfg       *config.LLMConfig
	providers []Provider
	limiter   *RateLimiter
	usage     *UsageTracker
	mirror    UsageMirror

	mu       sync.Mutex
	keyIdx   map[string]int
	modelIdx map[string]int

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient wires the configured providers in priority order: Gemini
// first, OpenRouter as fallback.
func NewClient(cfg *config.LLMConfig, usage *UsageTracker) *Client {
	providers := make([]Provider, 0, 2)
	if cfg.HasGemini() {
		providers = append(providers, NewGeminiProvider(cfg))
	}
	if cfg.HasOpenRouter() {
		providers = append(providers, NewOpenRouterProvider(cfg))
	}
	if len(providers) == 0 {
		logger.Warn("⚠️ no LLM providers configured, running on heuristic fallback only")
	}

	return &Client{
		cfg:       cfg,
		providers: providers,
		limiter:   NewRateLimiter(cfg.RateLimitPerMinute, time.Minute),
		usage:     usage,
		keyIdx:    make(map[string]int),
		modelIdx:  make(map[string]int),
		sleep:     sleepCtx,
	}
}

// Limiter exposes the rate limiter for health reporting.
func (c *Client) Limiter() *RateLimiter {
	return c.limiter
}

// SetUsageMirror routes per-call usage rows to the telemetry warehouse.
func (c *Client) SetUsageMirror(m UsageMirror) {
	c.mirror = m
}

// Generate runs one generative call. It never returns an API error to
// the caller: once every endpoint is exhausted it degrades to the
// heuristic result. Only context cancellation surfaces as an error.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Temperature == 0 {
		req.Temperature = c.cfg.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 1024
	}

	for _, p := range c.providers {
		text, model, err := c.tryProvider(ctx, p, req)
		if err == nil {
			if c.usage != nil {
				c.usage.Record(ctx, len(req.Prompt), len(text))
			}
			if c.mirror != nil {
				c.mirror.AddLLMUsage(models.LLMUsage{
					CreatedAt:   time.Now().UTC(),
					Provider:    p.Name(),
					Model:       model,
					Kind:        string(req.Kind),
					InputChars:  len(req.Prompt),
					OutputChars: len(text),
					CostUSD:     EstimateCost(len(req.Prompt), len(text)),
				})
			}
			return &Result{Text: text, Provider: p.Name(), Model: model}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("LLM provider exhausted",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
	}

	logger.Warn("⚠️ all LLM endpoints failed, using heuristic fallback",
		zap.String("kind", string(req.Kind)),
	)
	return fallbackResult(req), nil
}

// tryProvider walks the provider's (key, model) pairs starting at the
// rotation cursors. A failed pair advances the model pointer; repeated
// rate limiting advances the key pointer. Cursors persist across calls.
func (c *Client) tryProvider(ctx context.Context, p Provider, req Request) (string, string, error) {
	keys, models := p.Keys(), p.Models()
	if len(keys) == 0 || len(models) == 0 {
		return "", "", fmt.Errorf("provider %s has no endpoints", p.Name())
	}

	var lastErr error
	maxPairs := len(keys) * len(models)
	for i := 0; i < maxPairs; i++ {
		key, model := c.currentPair(p.Name(), keys, models)

		text, err := c.callWithRetry(ctx, p, key, model, req)
		if err == nil {
			return text, model, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", "", err
		}
		c.rotate(p.Name(), len(keys), len(models), isRateLimited(err))
	}
	return "", "", lastErr
}

func (c *Client) currentPair(name string, keys, models []string) (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return keys[c.keyIdx[name]%len(keys)], models[c.modelIdx[name]%len(models)]
}

func (c *Client) rotate(name string, numKeys, numModels int, limited bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limited {
		c.keyIdx[name] = (c.keyIdx[name] + 1) % numKeys
	} else {
		c.modelIdx[name] = (c.modelIdx[name] + 1) % numModels
	}
}

// callWithRetry runs the backoff ladder for one (key, model) pair.
// Delay before retry i is base · multiplier^i.
func (c *Client) callWithRetry(ctx context.Context, p Provider, key, model string, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			delay := time.Duration(c.cfg.RetryBaseSeconds *
				math.Pow(c.cfg.RetryMultiplier, float64(attempt-1)) *
				float64(time.Second))
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return "", err
		}

		start := time.Now()
		text, err := p.Call(ctx, key, model, req)
		if err == nil {
			logger.Debug("LLM call complete",
				zap.String("provider", p.Name()),
				zap.String("model", model),
				zap.Duration("latency", time.Since(start)),
			)
			return text, nil
		}

		lastErr = err
		logger.Debug("LLM call failed",
			zap.String("provider", p.Name()),
			zap.String("model", model),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if !isRetryable(err) {
			return "", err
		}
	}
	return "", lastErr
}
