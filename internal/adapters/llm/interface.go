package llm

import (
	"context"
	"strings"
)

// Kind tells the client what the caller will parse out of the response,
// which also selects the heuristic used when every endpoint is down.
type Kind string

const (
	KindClassification Kind = "classification"
	KindRelationships  Kind = "relationships"
	KindExplanation    Kind = "explanation"
)

// Request is one generative call.
type Request struct {
	Kind        Kind
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Result carries the model output. Degraded marks heuristic fallback
// output; callers lower their confidence accordingly.
type Result struct {
	Text     string
	Provider string
	Model    string
	Degraded bool
}

// Generator is the single funnel for all generative calls. Components
// never talk to model APIs directly; tests substitute a stub.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Provider is one model API backend with its own keys and model list.
type Provider interface {
	Name() string
	Keys() []string
	Models() []string
	Call(ctx context.Context, key, model string, req Request) (string, error)
}

// ExtractJSON strips markdown code fences around a JSON payload. Models
// routinely wrap JSON in ```json blocks despite instructions not to.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}

	// Last resort: carve the outermost object or array
	if start := strings.IndexAny(text, "{["); start > 0 {
		if end := strings.LastIndexAny(text, "}]"); end > start {
			return strings.TrimSpace(text[start : end+1])
		}
	}
	return text
}
