// Security tests for LLM providers to ensure error messages don't leak API keys.
package llm

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestCopilotErrorNoAPIKeyLeak verifies Copilot errors don't contain API keys
func TestCopilotErrorNoAPIKeyLeak(t *testing.T) {
	// Use intentionally invalid token
	testKey := "ghu-test-invalid-token-12345xyz"
	provider := NewCopilotProvider(testKey, "gpt-4o", 100, 0.7)

	// Force error with invalid token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{
		{Role: "user", Content: "test"},
	})

	// Should return an error
	if err == nil {
		t.Skip("Expected error with invalid token, but got success - skipping leak test")
	}

	// Verify error doesn't contain the token
	errStr := err.Error()
	if strings.Contains(errStr, testKey) {
		t.Errorf("Copilot error message leaked token: %v", errStr)
	}

	// Should not contain common auth header patterns
	if strings.Contains(errStr, "Authorization:") {
		t.Errorf("Copilot error exposed Authorization header: %v", errStr)
	}
}

// TestIFlowErrorNoAPIKeyLeak verifies iFlow errors don't contain API keys
func TestIFlowErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "if-test-invalid-key-12345xyz"
	provider := NewIFlowProvider(testKey, "Qwen3-Coder", 100, 0.7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{
		{Role: "user", Content: "test"},
	})

	if err == nil {
		t.Skip("Expected error with invalid API key, but got success - skipping leak test")
	}

	errStr := err.Error()
	if strings.Contains(errStr, testKey) {
		t.Errorf("iFlow error message leaked API key: %v", errStr)
	}
}

// TestAnthropicErrorNoAPIKeyLeak verifies Anthropic errors don't contain API keys
func TestAnthropicErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-ant-REDACTED"
	provider := NewAnthropicProvider(testKey, "claude-sonnet-4-20250514", 100, 0.7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{
		{Role: "user", Content: "test"},
	})

	if err == nil {
		t.Skip("Expected error with invalid API key, but got success - skipping leak test")
	}

	errStr := err.Error()
	if strings.Contains(errStr, testKey) {
		t.Errorf("Anthropic error message leaked API key: %v", errStr)
	}
}

func TestParseProviderType(t *testing.T) {
	tests := []struct {
		input string
		want  ProviderType
	}{
		{"codeassist", ProviderCodeAssist},
		{"code-assist", ProviderCodeAssist},
		{"gemini-cli", ProviderCodeAssist},
		{"gemini", ProviderGemini},
		{"google", ProviderGemini},
		{"copilot", ProviderCopilot},
		{"iflow", ProviderIFlow},
		{"anthropic", ProviderAnthropic},
		{"claude", ProviderAnthropic},
		{"CodeAssist", ProviderCodeAssist},
	}

	for _, tt := range tests {
		got, err := ParseProviderType(tt.input)
		if err != nil {
			t.Errorf("ParseProviderType(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProviderType(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := ParseProviderType("bogus"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestProviderTypeDefaults(t *testing.T) {
	for _, p := range []ProviderType{ProviderCodeAssist, ProviderGemini, ProviderCopilot, ProviderIFlow, ProviderAnthropic} {
		if p.String() == "unknown" {
			t.Errorf("provider %d has no string form", p)
		}
		if p.DefaultModel() == "" {
			t.Errorf("provider %s has no default model", p)
		}
	}
	if ProviderCodeAssist.EnvVar() != "" {
		t.Error("codeassist should not require an API key env var")
	}
}

func TestFromEnvMissingKey(t *testing.T) {
	t.Setenv("IFLOW_API_KEY", "")
	if _, err := ProviderIFlow.FromEnv(); err == nil {
		t.Error("expected error when IFLOW_API_KEY is unset")
	}

	t.Setenv("IFLOW_API_KEY", "key")
	provider, err := ProviderIFlow.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if provider.Name() != "iflow" {
		t.Errorf("expected iflow provider, got %s", provider.Name())
	}
}

func TestModelPrefixStripping(t *testing.T) {
	copilot := NewCopilotProvider("tok", "github_copilot/gpt-4o", 100, 0.7)
	if copilot.Model() != "gpt-4o" {
		t.Errorf("expected prefix stripped, got %q", copilot.Model())
	}

	iflow := NewIFlowProvider("key", "iflow/Qwen3-Coder", 100, 0.7)
	if iflow.Model() != "Qwen3-Coder" {
		t.Errorf("expected prefix stripped, got %q", iflow.Model())
	}
}
