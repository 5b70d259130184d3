package auth

import "testing"

func clearAuthEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GOOGLE_CLOUD_SHELL", "GEMINI_API_KEY", "GOOGLE_CLOUD_PROJECT",
		"GOOGLE_CLOUD_LOCATION", "GOOGLE_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestParseAuthType(t *testing.T) {
	for _, s := range []string{"oauth-personal", "gemini-api-key", "vertex-ai", "cloud-shell"} {
		if _, err := ParseAuthType(s); err != nil {
			t.Errorf("ParseAuthType(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseAuthType("bogus"); err == nil {
		t.Error("expected error for unknown auth type")
	}
}

func TestValidateAuthTypeOAuthAlwaysValid(t *testing.T) {
	clearAuthEnv(t)
	if err := ValidateAuthType(AuthOAuthPersonal); err != nil {
		t.Errorf("oauth-personal should not need env vars: %v", err)
	}
	if err := ValidateAuthType(AuthCloudShell); err != nil {
		t.Errorf("cloud-shell should not need env vars: %v", err)
	}
}

func TestValidateAuthTypeGeminiAPIKey(t *testing.T) {
	clearAuthEnv(t)
	if err := ValidateAuthType(AuthGeminiAPIKey); err == nil {
		t.Error("expected error without GEMINI_API_KEY")
	}
	t.Setenv("GEMINI_API_KEY", "key")
	if err := ValidateAuthType(AuthGeminiAPIKey); err != nil {
		t.Errorf("unexpected error with GEMINI_API_KEY set: %v", err)
	}
}

func TestValidateAuthTypeVertex(t *testing.T) {
	clearAuthEnv(t)
	if err := ValidateAuthType(AuthVertexAI); err == nil {
		t.Error("expected error without vertex configuration")
	}

	t.Setenv("GOOGLE_CLOUD_PROJECT", "proj")
	if err := ValidateAuthType(AuthVertexAI); err == nil {
		t.Error("project without location should not validate")
	}

	t.Setenv("GOOGLE_CLOUD_LOCATION", "us-central1")
	if err := ValidateAuthType(AuthVertexAI); err != nil {
		t.Errorf("unexpected error with project+location: %v", err)
	}

	clearAuthEnv(t)
	t.Setenv("GOOGLE_API_KEY", "key")
	if err := ValidateAuthType(AuthVertexAI); err != nil {
		t.Errorf("unexpected error with GOOGLE_API_KEY: %v", err)
	}
}

func TestDefaultAuthTypeDetectionOrder(t *testing.T) {
	clearAuthEnv(t)
	if got := DefaultAuthType(); got != AuthOAuthPersonal {
		t.Errorf("expected oauth-personal fallback, got %s", got)
	}

	t.Setenv("GOOGLE_API_KEY", "key")
	if got := DefaultAuthType(); got != AuthVertexAI {
		t.Errorf("expected vertex-ai for GOOGLE_API_KEY, got %s", got)
	}

	t.Setenv("GOOGLE_CLOUD_PROJECT", "proj")
	t.Setenv("GOOGLE_CLOUD_LOCATION", "us-central1")
	if got := DefaultAuthType(); got != AuthVertexAI {
		t.Errorf("expected vertex-ai for project config, got %s", got)
	}

	t.Setenv("GEMINI_API_KEY", "key")
	if got := DefaultAuthType(); got != AuthGeminiAPIKey {
		t.Errorf("expected gemini-api-key to win over vertex, got %s", got)
	}

	t.Setenv("GOOGLE_CLOUD_SHELL", "true")
	if got := DefaultAuthType(); got != AuthCloudShell {
		t.Errorf("expected cloud-shell to win over everything, got %s", got)
	}
}
