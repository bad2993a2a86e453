package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RelationType describes how a related company connects to a portfolio ticker
type RelationType string

const (
	RelationDirect   RelationType = "direct"
	RelationSupplier RelationType = "supplier"
	RelationCustomer RelationType = "customer"
	RelationPartner  RelationType = "partner"
)

// Criticality grades how essential a relationship is
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityHigh     Criticality = "high"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
)

// Rank orders criticalities for merge upgrades; unknown ranks below low.
func (c Criticality) Rank() int {
	switch Criticality(strings.ToLower(string(c))) {
	case CriticalityCritical:
		return 4
	case CriticalityHigh:
		return 3
	case CriticalityMedium:
		return 2
	case CriticalityLow:
		return 1
	default:
		return 0
	}
}

// Relationship source labels, ordered by trust.
const (
	SourceSECEdgar       = "sec_edgar"
	SourceNewsReport     = "news_report"
	SourceCompanyWebsite = "company_website"
	SourceLLMInference   = "llm_inference"
	SourceManual         = "manual"
)

// SourceConfidence returns the base confidence assigned to a discovery source.
func SourceConfidence(source string) float64 {
	switch source {
	case SourceSECEdgar:
		return 0.92
	case SourceNewsReport:
		return 0.70
	case SourceCompanyWebsite:
		return 0.65
	case SourceLLMInference:
		return 0.45
	case SourceManual:
		return 0.95
	default:
		return 0.50
	}
}

// StringList stores a JSON string array in a single column
type StringList []string

// Value implements driver.Valuer for JSONB columns.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB columns.
func (s *StringList) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported scan type %T for StringList", src)
	}
	return json.Unmarshal(raw, s)
}

// Relationship represents one edge of the supply chain graph
type Relationship struct {
	LastVerified   time.Time    `json:"last_verified" db:"last_verified"`
	SourceTicker   string       `json:"source_ticker" db:"source_ticker"`
	RelatedCompany string       `json:"related_company" db:"related_company"`
	Type           RelationType `json:"relationship_type" db:"relationship_type"`
	Criticality    Criticality  `json:"criticality" db:"criticality"`
	DiscoveredVia  string       `json:"discovered_via" db:"discovered_via"`
	Sources        StringList   `json:"sources" db:"sources"`
	Evidence       StringList   `json:"evidence" db:"evidence"`
	ID             int64        `json:"id" db:"id"`
	Confidence     float64      `json:"confidence" db:"confidence"`
}

// Key identifies a relationship for merging: company (case-folded) plus type.
func (r *Relationship) Key() string {
	return strings.ToUpper(strings.TrimSpace(r.RelatedCompany)) + ":" + strings.ToLower(string(r.Type))
}
