package workflow

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Verdict is the outcome of the confidence gate. Gaps and Queries are only
// populated when the decision is DecisionMoreData.
type Verdict struct {
	Score    float64
	Decision Decision
	Gaps     []string
	Queries  []string
}

// Validator scores a completed analysis pass and decides whether the run has
// gathered enough evidence to alert on.
type Validator struct {
	threshold float64
	maxLoops  int
}

func NewValidator(threshold float64, maxLoops int) *Validator {
	return &Validator{threshold: threshold, maxLoops: maxLoops}
}

// Validate pools every confidence the pass produced and compares the mean
// against the acceptance threshold. A run below threshold is sent back for
// more data at most maxLoops times; once the loop budget is spent the verdict
// is ACCEPT regardless of score, so the run always reaches the alert stage.
func (v *Validator) Validate(s State) Verdict {
	var pool []float64
	for _, im := range s.StockImpacts {
		pool = append(pool, im.Confidence)
	}
	for _, ca := range s.ClassifiedArticles {
		pool = append(pool, ca.Classification.Confidence)
	}
	for _, rel := range s.Discovered {
		pool = append(pool, rel.Confidence)
	}

	// An empty pool means nothing was analyzed at all; score it as a coin
	// flip rather than a confident zero.
	score := 0.5
	if len(pool) > 0 {
		score = stat.Mean(pool, nil)
	}

	if score >= v.threshold || s.LoopCount >= v.maxLoops {
		return Verdict{Score: score, Decision: DecisionAccept}
	}

	verdict := Verdict{Score: score, Decision: DecisionMoreData}
	if score < 0.50 {
		verdict.Gaps = append(verdict.Gaps, "very low confidence")
	}
	if len(s.Discovered) == 0 {
		verdict.Gaps = append(verdict.Gaps, "no supply chain relationships discovered")
	}
	if len(s.ClassifiedArticles) < 3 {
		verdict.Gaps = append(verdict.Gaps, "insufficient news coverage")
	}
	if len(s.StockImpacts) == 0 {
		verdict.Gaps = append(verdict.Gaps, "no portfolio impacts calculated")
	}
	verdict.Queries = refinedQueries(s.Portfolio)
	return verdict
}

// refinedQueries builds targeted search queries for the re-fetch pass,
// focused on the first two portfolio tickers.
func refinedQueries(portfolio []string) []string {
	year := time.Now().Year()
	var queries []string
	for i, ticker := range portfolio {
		if i >= 2 {
			break
		}
		queries = append(queries,
			fmt.Sprintf("%s supply chain disruption latest news", ticker),
			fmt.Sprintf("%s major suppliers customers %d", ticker, year),
		)
	}
	return queries
}
