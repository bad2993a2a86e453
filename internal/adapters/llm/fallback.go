package llm

import (
	"encoding/json"
	"strings"
)

// fallbackResult produces a deterministic heuristic answer when no model
// endpoint is reachable. Relationship requests get edges from the curated
// semiconductor graph; other kinds return empty text and let the caller
// apply its own degraded path.
func fallbackResult(req Request) *Result {
	res := &Result{Provider: "heuristic", Degraded: true}
	if req.Kind == KindRelationships {
		res.Text = curatedRelationshipsJSON(req.Prompt)
	}
	return res
}

type curatedEdge struct {
	RelatedCompany string `json:"related_company"`
	Type           string `json:"type"`
	Criticality    string `json:"criticality"`
	Evidence       string `json:"evidence"`
}

type curatedCompany struct {
	name    string
	aliases []string
	edges   []curatedEdge
}

// curatedGraph is a minimal supply chain map of the core semiconductor
// ecosystem. Edge type is the listed company's role relative to the
// related company. Match order is fixed so output stays deterministic.
var curatedGraph = []curatedCompany{
	{
		name:    "TSMC",
		aliases: []string{"tsmc", "tsm", "taiwan semiconductor"},
		edges: []curatedEdge{
			{"Apple", "supplier", "critical", "TSMC fabricates Apple A-series and M-series chips"},
			{"NVIDIA", "supplier", "critical", "TSMC fabricates NVIDIA data center GPUs"},
			{"AMD", "supplier", "critical", "TSMC fabricates AMD CPUs and GPUs"},
			{"ASML", "customer", "critical", "TSMC buys EUV lithography systems from ASML"},
		},
	},
	{
		name:    "Apple",
		aliases: []string{"apple", "aapl"},
		edges: []curatedEdge{
			{"TSMC", "customer", "critical", "Apple sources its custom silicon from TSMC"},
			{"ARM", "partner", "critical", "Apple silicon implements the ARM architecture"},
			{"Samsung", "customer", "high", "Apple sources OLED display panels from Samsung"},
		},
	},
	{
		name:    "NVIDIA",
		aliases: []string{"nvidia", "nvda"},
		edges: []curatedEdge{
			{"TSMC", "customer", "critical", "NVIDIA fabricates its GPUs at TSMC"},
			{"ARM", "partner", "high", "NVIDIA Grace CPUs build on ARM cores"},
		},
	},
	{
		name:    "ASML",
		aliases: []string{"asml"},
		edges: []curatedEdge{
			{"TSMC", "supplier", "critical", "ASML supplies EUV lithography to TSMC"},
			{"Intel", "supplier", "critical", "ASML supplies EUV lithography to Intel"},
			{"Samsung", "supplier", "high", "ASML supplies lithography systems to Samsung"},
		},
	},
	{
		name:    "Samsung",
		aliases: []string{"samsung", "ssnlf"},
		edges: []curatedEdge{
			{"Apple", "supplier", "high", "Samsung supplies OLED panels and memory to Apple"},
			{"ASML", "customer", "high", "Samsung foundry depends on ASML lithography"},
		},
	},
	{
		name:    "AMD",
		aliases: []string{"amd", "advanced micro devices"},
		edges: []curatedEdge{
			{"TSMC", "customer", "critical", "AMD fabricates its chips at TSMC"},
		},
	},
	{
		name:    "Intel",
		aliases: []string{"intel", "intc"},
		edges: []curatedEdge{
			{"ASML", "customer", "critical", "Intel buys EUV systems from ASML"},
			{"TSMC", "customer", "medium", "Intel outsources some compute tiles to TSMC"},
		},
	},
	{
		name:    "ARM",
		aliases: []string{"arm holdings", "arm"},
		edges: []curatedEdge{
			{"Apple", "supplier", "critical", "ARM licenses its architecture to Apple"},
			{"NVIDIA", "supplier", "high", "ARM licenses cores used in NVIDIA CPUs"},
		},
	},
}

// curatedRelationshipsJSON emits edges for the first curated company the
// prompt mentions.
func curatedRelationshipsJSON(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, co := range curatedGraph {
		for _, alias := range co.aliases {
			if mentionsAlias(lower, alias) {
				payload := map[string]interface{}{"relationships": co.edges}
				b, _ := json.Marshal(payload)
				return string(b)
			}
		}
	}
	return `{"relationships": []}`
}

// mentionsAlias reports whether text contains alias on word boundaries,
// so "arm" never matches inside "pharma".
func mentionsAlias(text, alias string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], alias)
		if i < 0 {
			return false
		}
		i += start
		beforeOK := i == 0 || !isWordChar(text[i-1])
		afterOK := i+len(alias) >= len(text) || !isWordChar(text[i+len(alias)])
		if beforeOK && afterOK {
			return true
		}
		start = i + len(alias)
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
