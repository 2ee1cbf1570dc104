package model

import "time"

// ReliableRequest describes one call into the reliability engine
type ReliableRequest struct {
	ID        string `json:"id"`                   // Unique request id
	SessionID string `json:"session_id"`           // Owning session (required)
	Input     string `json:"input,omitempty"`      // Input text handed to the work
	Operation string `json:"operation"`            // Free-form label, keys the circuit breaker
	ProfileID string `json:"profile_id,omitempty"` // Optional consistency profile

	Sources    []Source `json:"sources,omitempty"`     // Caller-supplied source descriptors
	KnownFacts []string `json:"known_facts,omitempty"` // Facts to check claims against
	Domain     string   `json:"domain,omitempty"`      // Subject domain hint

	RequireFactCheck   bool `json:"require_fact_check"`
	RequireConsistency bool `json:"require_consistency"`
	Checkpoint         bool `json:"checkpoint"` // Snapshot session state after success

	Timeout time.Duration `json:"timeout,omitempty"` // Deadline for the protected work
}

// Source describes one evidence source supplied with a request
type Source struct {
	URL      string `json:"url,omitempty"`
	Type     string `json:"type,omitempty"`   // e.g. "academic", "news", "blog"
	Domain   string `json:"domain,omitempty"` // Host name
	Quality  int    `json:"quality"`          // 0-100 quality ranking
	Verified bool   `json:"verified"`         // Whether the source was validated
}

// ExecutionResult captures the outcome of the timeout-protected work
type ExecutionResult struct {
	Success      bool          `json:"success"`
	Output       string        `json:"output,omitempty"`
	Error        string        `json:"error,omitempty"`
	TimedOut     bool          `json:"timed_out"`
	Attempts     int           `json:"attempts"`
	FallbackUsed bool          `json:"fallback_used"`
	FallbackName string        `json:"fallback_name,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

// ReliableResponse is the structured outcome of a ReliableRequest
type ReliableResponse struct {
	RequestID string    `json:"request_id"`
	SessionID string    `json:"session_id"`
	Success   bool      `json:"success"`
	Output    string    `json:"output,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Confidence  *ConfidenceScore  `json:"confidence,omitempty"`
	FactCheck   *FactCheckReport  `json:"fact_check,omitempty"`
	Consistency *ConsistencyCheck `json:"consistency,omitempty"`
	Execution   ExecutionResult   `json:"execution"`
	Checkpoint  *Checkpoint       `json:"checkpoint,omitempty"`

	Warnings    []string `json:"warnings,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ReliabilityReport aggregates a session's stored responses
type ReliabilityReport struct {
	SessionID          string        `json:"session_id"`
	TotalRequests      int           `json:"total_requests"`
	SuccessRate        float64       `json:"success_rate"`
	AverageConfidence  float64       `json:"average_confidence"`
	AverageLatency     time.Duration `json:"average_latency"`
	TimeoutRate        float64       `json:"timeout_rate"`
	ConsistencyRate    float64       `json:"consistency_rate"`
	FactCheckPassRate  float64       `json:"fact_check_pass_rate"`
	CheckpointsCreated int           `json:"checkpoints_created"`
	FallbacksUsed      int           `json:"fallbacks_used"`
	Warnings           []string      `json:"warnings,omitempty"`
	GeneratedAt        time.Time     `json:"generated_at"`
}
