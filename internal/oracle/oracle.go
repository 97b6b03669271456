// Package oracle wraps the external inference service used for intent
// classification and text generation behind a single interface.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/apperr"
)

// Supported providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Request is a single generation call.
type Request struct {
	System string
	Prompt string
	// Parts are attachment fragments appended after Prompt.
	Parts []agent.Fragment
	// JSON asks the provider for a JSON-only response where supported.
	JSON      bool
	MaxTokens int
}

// Response is the text produced by the oracle and its token cost.
type Response struct {
	Text       string
	TokensUsed int
}

// Oracle generates text. Implementations must honour ctx cancellation.
type Oracle interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, req Request) (*Response, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (*Response, error) { return f(ctx, req) }

// Config selects and configures a provider.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Default models per provider.
var defaultModels = map[string]string{
	ProviderGemini:    "gemini-2.5-flash",
	ProviderAnthropic: "claude-haiku-4-5",
	ProviderOpenAI:    "gpt-4o-mini",
}

// Open builds the configured provider client wrapped in Bounded.
func Open(ctx context.Context, cfg Config) (*Bounded, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: oracle: api key is required", apperr.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}
	var (
		o   Oracle
		err error
	)
	switch cfg.Provider {
	case ProviderGemini, "":
		o, err = NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens)
	case ProviderAnthropic:
		o = NewAnthropic(cfg.APIKey, cfg.Model, cfg.MaxTokens)
	case ProviderOpenAI:
		o = NewOpenAI(cfg.APIKey, cfg.Model, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("oracle: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewBounded(o, cfg.Timeout), nil
}
