package model

import "time"

// Config is the full engine configuration
type Config struct {
	Timeout     TimeoutConfig     `yaml:"timeout" json:"timeout"`
	Confidence  ConfidenceConfig  `yaml:"confidence" json:"confidence"`
	FactCheck   FactCheckConfig   `yaml:"factcheck" json:"factcheck"`
	Consistency ConsistencyConfig `yaml:"consistency" json:"consistency"`
	Checkpoint  CheckpointConfig  `yaml:"checkpoint" json:"checkpoint"`
	Engine      EngineConfig      `yaml:"engine" json:"engine"`
	Verify      VerifyConfig      `yaml:"verify" json:"verify"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	LLM         LLMConfig         `yaml:"llm" json:"llm"`
}

// TimeoutConfig controls the timeout protector and its circuit breakers
type TimeoutConfig struct {
	DefaultTimeout   time.Duration `yaml:"default_timeout" json:"default_timeout"`
	DefaultRetries   int           `yaml:"default_retries" json:"default_retries"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"` // Failures before the breaker opens
	Cooldown         time.Duration `yaml:"cooldown" json:"cooldown"`                   // Open -> half-open window
	WarningFraction  float64       `yaml:"warning_fraction" json:"warning_fraction"`   // Emit a warning past this share of the budget
}

// ConfidenceConfig controls scoring thresholds
type ConfidenceConfig struct {
	LowConfidenceFloor int `yaml:"low_confidence_floor" json:"low_confidence_floor"`
}

// FactCheckConfig controls claim extraction and verification
type FactCheckConfig struct {
	MinSupportingSources int           `yaml:"min_supporting_sources" json:"min_supporting_sources"` // Quality >= 70 sources needed for "verified"
	MinSourceQuality     int           `yaml:"min_source_quality" json:"min_source_quality"`         // Sources below this floor are skipped
	BlockedSources       []string      `yaml:"blocked_sources" json:"blocked_sources"`
	CacheTTL             time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	Workers              int           `yaml:"workers" json:"workers"` // Concurrent claim verifications
}

// ConsistencyConfig controls drift detection
type ConsistencyConfig struct {
	DriftThreshold       float64 `yaml:"drift_threshold" json:"drift_threshold"`
	InputSimilarityFloor float64 `yaml:"input_similarity_floor" json:"input_similarity_floor"` // Baseline selection cutoff
	MaxHistory           int     `yaml:"max_history" json:"max_history"`                       // Execution records kept per profile (0 = unbounded)
}

// CheckpointConfig controls session snapshots
type CheckpointConfig struct {
	Dir              string        `yaml:"dir" json:"dir"` // File store directory ("" = in-memory)
	AutoSaveInterval time.Duration `yaml:"auto_save_interval" json:"auto_save_interval"`
	MaxPerSession    int           `yaml:"max_per_session" json:"max_per_session"`
}

// EngineConfig controls the façade
type EngineConfig struct {
	StrictMode             bool `yaml:"strict_mode" json:"strict_mode"`
	MinConfidenceThreshold int  `yaml:"min_confidence_threshold" json:"min_confidence_threshold"`
	HistoryLimit           int  `yaml:"history_limit" json:"history_limit"` // Responses kept per session
}

// VerifyConfig controls live source validation
type VerifyConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	Workers           int           `yaml:"workers" json:"workers"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"` // Per-domain rate limit
	Burst             int           `yaml:"burst" json:"burst"`
	RespectRobots     bool          `yaml:"respect_robots" json:"respect_robots"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" json:"http_proxy,omitempty"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" json:"https_proxy,omitempty"`
}

// CacheConfig controls the layered verification cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Dir       string        `yaml:"dir" json:"dir"` // Disk layer directory ("" = memory only)
	MemoryTTL time.Duration `yaml:"memory_ttl" json:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" json:"disk_ttl"`
}

// LLMConfig configures the model provider used by the CLI to build work
type LLMConfig struct {
	Provider  string `yaml:"provider" json:"provider"` // openai, ollama, ""
	Model     string `yaml:"model" json:"model"`
	APIKey    string `yaml:"api_key,omitempty" json:"-"`
	BaseURL   string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Timeout   int    `yaml:"timeout" json:"timeout"` // Seconds
	MaxTokens int    `yaml:"max_tokens" json:"max_tokens"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Timeout: TimeoutConfig{
			DefaultTimeout:   60 * time.Second,
			DefaultRetries:   2,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			WarningFraction:  0.8,
		},
		Confidence: ConfidenceConfig{
			LowConfidenceFloor: 40,
		},
		FactCheck: FactCheckConfig{
			MinSupportingSources: 2,
			MinSourceQuality:     20,
			CacheTTL:             15 * time.Minute,
			Workers:              8,
		},
		Consistency: ConsistencyConfig{
			DriftThreshold:       0.35,
			InputSimilarityFloor: 0.6,
			MaxHistory:           200,
		},
		Checkpoint: CheckpointConfig{
			AutoSaveInterval: 5 * time.Minute,
			MaxPerSession:    50,
		},
		Engine: EngineConfig{
			StrictMode:             false,
			MinConfidenceThreshold: 40,
			HistoryLimit:           100,
		},
		Verify: VerifyConfig{
			Timeout:           10 * time.Second,
			UserAgent:         "Keel/0.1 (+https://github.com/arbelos/keel)",
			MaxBodyBytes:      2_000_000,
			Workers:           20,
			RequestsPerSecond: 2,
			Burst:             5,
			RespectRobots:     true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider:  "",
			Timeout:   30,
			MaxTokens: 1000,
		},
	}
}
