package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setCredsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(credsDirEnv, dir)
	return dir
}

func TestSaveAndLoadCredentials(t *testing.T) {
	setCredsDir(t)

	expiry := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	creds := &Credentials{
		AccessToken:  "ya29.test",
		RefreshToken: "1//refresh",
		TokenType:    "Bearer",
		Scopes:       []string{"scope-a", "scope-b"},
		Expiry:       expiry,
	}

	if err := SaveCredentials(creds); err != nil {
		t.Fatalf("SaveCredentials failed: %v", err)
	}

	loaded, err := LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected credentials, got nil")
	}
	if loaded.AccessToken != "ya29.test" {
		t.Errorf("expected access token 'ya29.test', got %q", loaded.AccessToken)
	}
	if loaded.RefreshToken != "1//refresh" {
		t.Errorf("expected refresh token '1//refresh', got %q", loaded.RefreshToken)
	}
	if len(loaded.Scopes) != 2 || loaded.Scopes[0] != "scope-a" {
		t.Errorf("unexpected scopes: %v", loaded.Scopes)
	}
	if !loaded.Expiry.Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, loaded.Expiry)
	}
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	setCredsDir(t)

	creds, err := LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds != nil {
		t.Errorf("expected nil credentials for missing cache, got %+v", creds)
	}
}

func TestSaveCredentialsPreservesUnknownKeys(t *testing.T) {
	dir := setCredsDir(t)

	existing := map[string]interface{}{
		"access_token": "old",
		"custom_field": "keep-me",
	}
	data, _ := json.Marshal(existing)
	if err := os.WriteFile(filepath.Join(dir, credsFileName), data, 0o600); err != nil {
		t.Fatalf("failed to seed cache: %v", err)
	}

	if err := SaveCredentials(&Credentials{AccessToken: "new"}); err != nil {
		t.Fatalf("SaveCredentials failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, credsFileName))
	if err != nil {
		t.Fatalf("failed to read cache: %v", err)
	}
	var merged map[string]interface{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		t.Fatalf("cache is not valid JSON: %v", err)
	}
	if merged["access_token"] != "new" {
		t.Errorf("expected access_token 'new', got %v", merged["access_token"])
	}
	if merged["custom_field"] != "keep-me" {
		t.Errorf("expected custom_field to survive the write, got %v", merged["custom_field"])
	}
}

func TestSaveCredentialsFileMode(t *testing.T) {
	dir := setCredsDir(t)

	if err := SaveCredentials(&Credentials{AccessToken: "tok"}); err != nil {
		t.Fatalf("SaveCredentials failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, credsFileName))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestLoadCredentialsLegacyFile(t *testing.T) {
	dir := setCredsDir(t)

	legacy := map[string]interface{}{
		"access_token":  "legacy-token",
		"refresh_token": "legacy-refresh",
		"scope":         "scope-a scope-b",
		"expiry_date":   time.Now().Add(time.Hour).UnixMilli(),
	}
	data, _ := json.Marshal(legacy)
	if err := os.WriteFile(filepath.Join(dir, legacyFileName), data, 0o600); err != nil {
		t.Fatalf("failed to seed legacy cache: %v", err)
	}

	creds, err := LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds == nil {
		t.Fatal("expected credentials from legacy file")
	}
	if creds.AccessToken != "legacy-token" {
		t.Errorf("expected 'legacy-token', got %q", creds.AccessToken)
	}
	if len(creds.Scopes) != 2 {
		t.Errorf("expected 2 scopes from space-separated string, got %v", creds.Scopes)
	}
	if !creds.Valid() {
		t.Error("expected legacy credentials to be valid")
	}
}

func TestCredentialsValid(t *testing.T) {
	tests := []struct {
		name  string
		creds *Credentials
		want  bool
	}{
		{"nil", nil, false},
		{"no token", &Credentials{}, false},
		{"no expiry", &Credentials{AccessToken: "tok"}, true},
		{"future expiry", &Credentials{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}, true},
		{"past expiry", &Credentials{AccessToken: "tok", Expiry: time.Now().Add(-time.Hour)}, false},
		{"within skew", &Credentials{AccessToken: "tok", Expiry: time.Now().Add(10 * time.Second)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClearCredentials(t *testing.T) {
	dir := setCredsDir(t)

	if err := SaveCredentials(&Credentials{AccessToken: "tok"}); err != nil {
		t.Fatalf("SaveCredentials failed: %v", err)
	}
	if err := ClearCredentials(); err != nil {
		t.Fatalf("ClearCredentials failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, credsFileName)); !os.IsNotExist(err) {
		t.Error("expected cache file to be removed")
	}

	// Clearing again is not an error.
	if err := ClearCredentials(); err != nil {
		t.Errorf("ClearCredentials on empty dir failed: %v", err)
	}
}
