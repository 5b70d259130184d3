// OAuth Credential Cache.
//
// Information Hiding:
// - On-disk JSON layout hidden behind Credentials
// - Cache path resolution and legacy fallback hidden
// - Merge-on-write semantics hidden

package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	credsFileName  = "oauth_creds.json"
	legacyFileName = "oauth.json"
	credsDirName   = ".gemini"

	// credsDirEnv overrides the cache directory, mainly for tests.
	credsDirEnv = "GEMINI_OAUTH_CREDS_DIR"
)

// expirySkew is subtracted from the stored expiry when checking validity
// so a token about to lapse is refreshed before use.
const expirySkew = 30 * time.Second

// Credentials holds an OAuth token set for the Code Assist API.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	IDToken      string
	Scopes       []string
	Expiry       time.Time // zero when unknown
}

// Valid reports whether the access token is present and not expired.
func (c *Credentials) Valid() bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return true
	}
	return time.Now().Before(c.Expiry.Add(-expirySkew))
}

// CredsDir returns the directory holding the credential cache.
func CredsDir() (string, error) {
	if dir := os.Getenv(credsDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, credsDirName), nil
}

// credsPath returns the file to use for the cache. The preferred name is
// oauth_creds.json; if only the legacy oauth.json exists it is used instead
// so installs that predate the rename keep working.
func credsPath() (string, error) {
	dir, err := CredsDir()
	if err != nil {
		return "", err
	}
	preferred := filepath.Join(dir, credsFileName)
	legacy := filepath.Join(dir, legacyFileName)

	if _, err := os.Stat(preferred); err == nil {
		return preferred, nil
	}
	if _, err := os.Stat(legacy); err == nil {
		return legacy, nil
	}
	return preferred, nil
}

// LoadCredentials reads the cached credentials from disk.
// Returns (nil, nil) when no cache file exists.
func LoadCredentials() (*Credentials, error) {
	path, err := credsPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential cache: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid credential cache %s: %w", path, err)
	}

	creds := &Credentials{}
	creds.AccessToken = rawString(raw, "access_token")
	creds.RefreshToken = rawString(raw, "refresh_token")
	creds.TokenType = rawString(raw, "token_type")
	creds.IDToken = rawString(raw, "id_token")

	// Scope is stored as a single space-separated string. A "scopes" list is
	// accepted too since other tools have written that shape.
	if scope := rawString(raw, "scope"); scope != "" {
		creds.Scopes = strings.Fields(scope)
	} else if list, ok := raw["scopes"]; ok {
		var scopes []string
		if err := json.Unmarshal(list, &scopes); err == nil {
			creds.Scopes = scopes
		}
	}

	// expiry_date is epoch milliseconds.
	if v, ok := raw["expiry_date"]; ok {
		var ms int64
		if err := json.Unmarshal(v, &ms); err == nil && ms > 0 {
			creds.Expiry = time.UnixMilli(ms)
		}
	}

	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, nil
	}
	return creds, nil
}

// SaveCredentials writes the credentials to the cache file, merging over any
// existing JSON so keys written by other tools survive. The file is written
// with 0600 permissions.
func SaveCredentials(creds *Credentials) error {
	path, err := credsPath()
	if err != nil {
		return err
	}

	merged := map[string]interface{}{}
	if data, err := os.ReadFile(path); err == nil {
		// Best effort: an unreadable or corrupt file is overwritten.
		_ = json.Unmarshal(data, &merged)
	}

	merged["access_token"] = creds.AccessToken
	if creds.RefreshToken != "" {
		merged["refresh_token"] = creds.RefreshToken
	}
	tokenType := creds.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	merged["token_type"] = tokenType
	if creds.IDToken != "" {
		merged["id_token"] = creds.IDToken
	}
	if len(creds.Scopes) > 0 {
		merged["scope"] = strings.Join(creds.Scopes, " ")
	}
	if !creds.Expiry.IsZero() {
		merged["expiry_date"] = creds.Expiry.UnixMilli()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential cache: %w", err)
	}
	return nil
}

// ClearCredentials deletes the cache file. Missing files are not an error.
func ClearCredentials() error {
	dir, err := CredsDir()
	if err != nil {
		return err
	}
	for _, name := range []string{credsFileName, legacyFileName} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credential cache: %w", err)
		}
	}
	return nil
}

func rawString(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}
