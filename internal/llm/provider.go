package llm

import (
	"context"

	"github.com/arbelos/keel/internal/model"
)

// Provider defines the interface for LLM backends. The engine treats a
// provider call as an unreliable operation and wraps it with timeout
// protection, so implementations should honor context cancellation and
// return errors rather than blocking indefinitely.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete generates a completion for the given request
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and reachable
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest contains the input for a completion call
type CompletionRequest struct {
	// Prompt is the user-facing input text
	Prompt string

	// System is an optional system instruction
	System string

	// Model overrides the configured model for this request
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// CompletionResponse contains the provider's output
type CompletionResponse struct {
	// Text is the generated completion
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g. Ollama, API-compatible gateways)
	BaseURL string

	// Timeout for API requests, in seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings for providers that dial out directly
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults. The provider is disabled until
// configured explicitly.
func DefaultConfig() Config {
	return Config{
		Provider:  "",
		Model:     "",
		Timeout:   30,
		MaxTokens: 1000,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:  mc.Provider,
		Model:     mc.Model,
		APIKey:    mc.APIKey,
		BaseURL:   mc.BaseURL,
		Timeout:   mc.Timeout,
		MaxTokens: mc.MaxTokens,
	}
}
