// LLM Provider Factory - Ergonomic builder-first API for creating LLM providers.
//
// Quick Start:
//
//	// OAuth-backed Code Assist, no API key needed
//	ca, err := llm.ProviderCodeAssist.FromEnv()  // Uses gemini-2.5-pro
//
//	// API-key providers read their key from the environment
//	gemini, err := llm.ProviderGemini.FromEnv()
//	copilot, err := llm.ProviderCopilot.Model(llm.ModelCopilotGPT4o).FromEnv()
//
//	// Full configuration
//	custom, err := llm.ProviderIFlow.
//	    Model(llm.ModelIFlowQwen3Coder).
//	    MaxTokens(8192).
//	    Temperature(0.3).
//	    FromEnv()
//
//	// With explicit API key
//	provider, err := llm.ProviderAnthropic.Model(llm.ModelAnthropicClaudeSonnet4).APIKey("sk-...")

package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/richinex/theseus/auth"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderCodeAssist is the OAuth-authenticated Code Assist provider.
	ProviderCodeAssist ProviderType = iota
	// ProviderGemini is the Google Gemini provider (API key or Vertex).
	ProviderGemini
	// ProviderCopilot is the GitHub Copilot provider.
	ProviderCopilot
	// ProviderIFlow is the iFlow provider.
	ProviderIFlow
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderCodeAssist:
		return "codeassist"
	case ProviderGemini:
		return "gemini"
	case ProviderCopilot:
		return "copilot"
	case ProviderIFlow:
		return "iflow"
	case ProviderAnthropic:
		return "anthropic"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this provider's
// credential. Code Assist returns "" since it authenticates via OAuth.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderCodeAssist:
		return ""
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderCopilot:
		return "GITHUB_COPILOT_TOKEN"
	case ProviderIFlow:
		return "IFLOW_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the default model for this provider.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderCodeAssist:
		return ModelGemini25Pro
	case ProviderGemini:
		return ModelGemini25Flash
	case ProviderCopilot:
		return ModelCopilotGPT4o
	case ProviderIFlow:
		return ModelIFlowQwen3Coder
	case ProviderAnthropic:
		return ModelAnthropicClaudeSonnet4
	default:
		return ""
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "codeassist", "code-assist", "gemini-cli":
		return ProviderCodeAssist, nil
	case "gemini", "google":
		return ProviderGemini, nil
	case "copilot", "github-copilot":
		return ProviderCopilot, nil
	case "iflow":
		return ProviderIFlow, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// FromEnv creates a provider with defaults, reading credentials from environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts configuring this provider with a specific model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey creates a provider with an explicit API key (uses defaults for everything else).
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder is a builder for configuring LLM providers.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	maxTokens    uint32
	temperature  *float32
	tokens       auth.TokenSource
}

// NewProviderBuilder creates a new builder for the given provider.
func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{
		providerType: providerType,
	}
}

// Model sets the model to use.
func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.model = model
	return b
}

// MaxTokens sets maximum tokens for responses.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets temperature (0.0 = deterministic, 1.0 = creative).
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// TokenSource sets the OAuth token source for the Code Assist provider.
// Defaults to the device-flow authorizer.
func (b *ProviderBuilder) TokenSource(ts auth.TokenSource) *ProviderBuilder {
	b.tokens = ts
	return b
}

// FromEnv builds the provider, reading credentials from the environment.
// Code Assist needs no API key; Gemini falls back to a Vertex backend when
// GEMINI_API_KEY is absent but Vertex configuration is present.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	envVar := b.providerType.EnvVar()
	if envVar == "" {
		return b.build("")
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		if b.providerType == ProviderGemini && auth.ValidateAuthType(auth.AuthVertexAI) == nil {
			return b.build("")
		}
		return nil, fmt.Errorf("%s: %s environment variable not set", b.providerType, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	model := b.model
	if model == "" {
		model = b.providerType.DefaultModel()
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	temperature := float32(0.7) // default
	if b.temperature != nil {
		temperature = *b.temperature
	}

	switch b.providerType {
	case ProviderCodeAssist:
		tokens := b.tokens
		if tokens == nil {
			tokens = auth.NewDeviceAuthorizer()
		}
		return NewCodeAssistProvider(tokens, model, maxTokens, temperature), nil
	case ProviderGemini:
		if apiKey == "" {
			return NewGeminiVertexProvider(
				os.Getenv("GOOGLE_CLOUD_PROJECT"),
				os.Getenv("GOOGLE_CLOUD_LOCATION"),
				model, maxTokens, temperature,
			), nil
		}
		return NewGeminiProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderCopilot:
		return NewCopilotProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderIFlow:
		return NewIFlowProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}
}

// Model identifier constants for all supported providers.

// Gemini model identifiers (served both by the Gemini API and Code Assist)
const (
	// ModelGemini25Pro is Gemini 2.5 Pro: strongest reasoning.
	ModelGemini25Pro = "gemini-2.5-pro"
	// ModelGemini25Flash is Gemini 2.5 Flash: speed optimized.
	ModelGemini25Flash = "gemini-2.5-flash"
	// ModelGemini20Flash is Gemini 2.0 Flash: legacy model.
	ModelGemini20Flash = "gemini-2.0-flash"
	// ModelGemini15Pro is Gemini 1.5 Pro: legacy model.
	ModelGemini15Pro = "gemini-1.5-pro"
)

// GitHub Copilot model identifiers
const (
	// ModelCopilotGPT4o is GPT-4o via Copilot.
	ModelCopilotGPT4o = "gpt-4o"
	// ModelCopilotGPT4oMini is GPT-4o-mini via Copilot.
	ModelCopilotGPT4oMini = "gpt-4o-mini"
	// ModelCopilotClaudeSonnet4 is Claude Sonnet 4 via Copilot.
	ModelCopilotClaudeSonnet4 = "claude-sonnet-4"
)

// iFlow model identifiers
const (
	// ModelIFlowQwen3Coder is Qwen3-Coder: coding-tuned model.
	ModelIFlowQwen3Coder = "Qwen3-Coder"
)

// Anthropic model identifiers
const (
	// ModelAnthropicClaudeSonnet4 is Claude Sonnet 4: balanced performance.
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	// ModelAnthropicClaudeHaiku4 is Claude Haiku 4: fast and efficient.
	ModelAnthropicClaudeHaiku4 = "claude-haiku-4-20250514"
)
