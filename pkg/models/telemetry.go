package models

import "time"

// LLMUsage is one successful generative call, mirrored to the telemetry
// warehouse for cost analytics.
type LLMUsage struct {
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Provider    string    `json:"provider" db:"provider"`
	Model       string    `json:"model" db:"model"`
	Kind        string    `json:"kind" db:"kind"`
	InputChars  int       `json:"input_chars" db:"input_chars"`
	OutputChars int       `json:"output_chars" db:"output_chars"`
	CostUSD     float64   `json:"cost_usd" db:"cost_usd"`
}
