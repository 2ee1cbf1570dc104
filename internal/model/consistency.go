package model

import "time"

// ConsistencyProfile pins a model+prompt configuration for drift tracking
type ConsistencyProfile struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	ModelID      string            `json:"model_id"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Config       map[string]string `json:"config,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Executions   []ExecutionRecord `json:"executions,omitempty"`
}

// ExecutionRecord is one recorded run against a profile, never mutated
type ExecutionRecord struct {
	Input      string            `json:"input"`
	Output     string            `json:"output"`
	Duration   time.Duration     `json:"duration"`
	TokenUsage TokenUsage        `json:"token_usage"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// TokenUsage tracks token consumption for one execution
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// ConsistencyCheck reports whether a new output matches the profile baseline
type ConsistencyCheck struct {
	ProfileID    string         `json:"profile_id"`
	IsConsistent bool           `json:"is_consistent"`
	Drift        *DriftAnalysis `json:"drift,omitempty"`
	BaselineSize int            `json:"baseline_size"` // Historical records compared against
	CheckedAt    time.Time      `json:"checked_at"`
}

// DriftAnalysis quantifies divergence from the historical baseline
type DriftAnalysis struct {
	Score            float64 `json:"score"` // 0 = identical, 1 = fully diverged
	OutputSimilarity float64 `json:"output_similarity"`
	LengthRatio      float64 `json:"length_ratio"`
	Threshold        float64 `json:"threshold"`
	Recommendation   string  `json:"recommendation,omitempty"`
}
