package discovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vantage-intel/vantage/internal/adapters/llm"
)

const (
	maxFilingPromptChars = 8000
	maxInductiveEdges    = 5
)

// llmEdge is the JSON shape both extraction prompts request. The
// degraded heuristic wraps the same shape in a "relationships" object.
type llmEdge struct {
	RelatedCompany string `json:"related_company"`
	Type           string `json:"type"`
	Criticality    string `json:"criticality"`
	Evidence       string `json:"evidence"`
}

// filingsPrompt asks the model to extract disclosed relationships from
// an annual report excerpt. Relationship type is always the role the
// subject company plays for the related company.
func filingsPrompt(name, ticker, text string) string {
	if len(text) > maxFilingPromptChars {
		text = text[:maxFilingPromptChars]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are reading an excerpt from the latest annual report (Form 10-K) of %s (%s).\n", name, ticker)
	b.WriteString("Extract the supply chain relationships the filing discloses: suppliers, customers and strategic partners.\n\n")
	fmt.Fprintf(&b, "Type each relationship as the role %s plays for the related company:\n", ticker)
	fmt.Fprintf(&b, "- \"supplier\" when %s supplies goods or services to the related company\n", ticker)
	fmt.Fprintf(&b, "- \"customer\" when %s buys from the related company\n", ticker)
	b.WriteString("- \"partner\" for alliances, licensing deals and joint development\n\n")
	fmt.Fprintf(&b, "Filing excerpt:\n%s\n\n", text)
	b.WriteString(relationshipSchema)
	return b.String()
}

// inductivePrompt asks the model for the best-known relationships of a
// company from general knowledge, used when no filing is available and
// as an independent corroborating source.
func inductivePrompt(name, ticker string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "List the %d most important supply chain relationships of %s (%s): its key suppliers, customers and partners.\n\n", maxInductiveEdges, name, ticker)
	fmt.Fprintf(&b, "Type each relationship as the role %s plays for the related company:\n", ticker)
	fmt.Fprintf(&b, "- \"supplier\" when %s supplies goods or services to the related company\n", ticker)
	fmt.Fprintf(&b, "- \"customer\" when %s buys from the related company\n", ticker)
	b.WriteString("- \"partner\" for alliances, licensing deals and joint development\n\n")
	b.WriteString(relationshipSchema)
	return b.String()
}

const relationshipSchema = `RETURN ONLY A VALID JSON ARRAY:
[
  {
    "related_company": "Company Name",
    "type": "supplier|customer|partner",
    "criticality": "critical|high|medium|low",
    "evidence": "One sentence supporting this relationship"
  }
]`

// parseRelationshipList decodes a model response into edges. It accepts
// both a bare array and an object with a "relationships" field, trims
// entries without a company name and normalizes enums.
func parseRelationshipList(text string) []llmEdge {
	payload := []byte(llm.ExtractJSON(text))

	var edges []llmEdge
	var wrapper struct {
		Relationships []llmEdge `json:"relationships"`
	}
	if err := json.Unmarshal(payload, &wrapper); err == nil && wrapper.Relationships != nil {
		edges = wrapper.Relationships
	} else if err := json.Unmarshal(payload, &edges); err != nil {
		return nil
	}

	out := make([]llmEdge, 0, len(edges))
	for _, e := range edges {
		e.RelatedCompany = strings.TrimSpace(e.RelatedCompany)
		if e.RelatedCompany == "" {
			continue
		}
		e.Type = normalizeType(e.Type)
		e.Criticality = normalizeCriticality(e.Criticality)
		if e.Evidence != "" {
			e.Evidence = strings.TrimSpace(e.Evidence)
		}
		out = append(out, e)
	}
	return out
}

// normalizeType folds free-form model output onto the known relation
// types; anything unrecognized becomes partner.
func normalizeType(s string) string {
	switch t := strings.ToLower(strings.TrimSpace(s)); t {
	case "supplier", "customer", "partner", "direct":
		return t
	default:
		return "partner"
	}
}

// normalizeCriticality folds onto the known grades; unrecognized input
// becomes medium.
func normalizeCriticality(s string) string {
	switch c := strings.ToLower(strings.TrimSpace(s)); c {
	case "critical", "high", "medium", "low":
		return c
	default:
		return "medium"
	}
}
