package discovery

import (
	"strings"

	"github.com/vantage-intel/vantage/pkg/models"
)

const (
	corroborationBoost = 0.15
	confidenceCeiling  = 0.99
)

// fusedEdge accumulates duplicate sightings of one edge. The base
// confidence is the maximum across sightings and the boost is a function
// of the final count, so merge order never changes the result.
type fusedEdge struct {
	rel   models.Relationship
	base  float64
	count int
}

// Fuse merges edges that describe the same company and relation type.
// Confidence is the highest base plus 0.15 per extra sighting, capped at
// 0.99. Criticality keeps the highest rank; sources and evidence
// accumulate without duplicates. Output preserves first-sighting order.
func Fuse(rels []models.Relationship) []models.Relationship {
	if len(rels) == 0 {
		return nil
	}

	order := make([]string, 0, len(rels))
	byKey := make(map[string]*fusedEdge, len(rels))

	for _, r := range rels {
		if strings.TrimSpace(r.RelatedCompany) == "" {
			continue
		}
		key := r.Key()
		cur, ok := byKey[key]
		if !ok {
			e := &fusedEdge{rel: r, base: r.Confidence, count: 1}
			e.rel.Sources = appendUnique(nil, r.Sources...)
			e.rel.Evidence = appendUnique(nil, r.Evidence...)
			byKey[key] = e
			order = append(order, key)
			continue
		}

		cur.count++
		if r.Confidence > cur.base {
			cur.base = r.Confidence
		}
		if r.Criticality.Rank() > cur.rel.Criticality.Rank() {
			cur.rel.Criticality = r.Criticality
		}
		cur.rel.Sources = appendUnique(cur.rel.Sources, r.Sources...)
		cur.rel.Evidence = appendUnique(cur.rel.Evidence, r.Evidence...)
		if r.LastVerified.After(cur.rel.LastVerified) {
			cur.rel.LastVerified = r.LastVerified
		}
	}

	out := make([]models.Relationship, 0, len(order))
	for _, key := range order {
		e := byKey[key]
		conf := e.base + corroborationBoost*float64(e.count-1)
		if conf > confidenceCeiling {
			conf = confidenceCeiling
		}
		e.rel.Confidence = conf
		out = append(out, e.rel)
	}
	return out
}

// appendUnique appends items not already present, keeping order and
// dropping empties.
func appendUnique(list models.StringList, items ...string) models.StringList {
	for _, item := range items {
		if item == "" {
			continue
		}
		seen := false
		for _, have := range list {
			if have == item {
				seen = true
				break
			}
		}
		if !seen {
			list = append(list, item)
		}
	}
	return list
}
