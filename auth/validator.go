// Auth Method Selection and Validation.
//
// Information Hiding:
// - Environment variable requirements per auth method hidden
// - Default auth method detection order hidden

package auth

import (
	"fmt"
	"os"
)

// AuthType identifies how Gemini access is authenticated.
type AuthType string

const (
	// AuthOAuthPersonal uses the OAuth device flow (personal Google account).
	AuthOAuthPersonal AuthType = "oauth-personal"
	// AuthGeminiAPIKey uses a GEMINI_API_KEY against the Gemini API.
	AuthGeminiAPIKey AuthType = "gemini-api-key"
	// AuthVertexAI uses Vertex AI with project/location or an API key.
	AuthVertexAI AuthType = "vertex-ai"
	// AuthCloudShell uses ambient Cloud Shell credentials.
	AuthCloudShell AuthType = "cloud-shell"
)

// ParseAuthType parses an auth type string.
func ParseAuthType(s string) (AuthType, error) {
	switch AuthType(s) {
	case AuthOAuthPersonal, AuthGeminiAPIKey, AuthVertexAI, AuthCloudShell:
		return AuthType(s), nil
	default:
		return "", fmt.Errorf("unknown auth type: %s", s)
	}
}

// ValidateAuthType checks that the environment carries what the given auth
// method needs. OAuth and Cloud Shell need nothing up front.
func ValidateAuthType(t AuthType) error {
	switch t {
	case AuthOAuthPersonal, AuthCloudShell:
		return nil
	case AuthGeminiAPIKey:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable not found, add it to your environment or .env file")
		}
		return nil
	case AuthVertexAI:
		hasProject := os.Getenv("GOOGLE_CLOUD_PROJECT") != "" && os.Getenv("GOOGLE_CLOUD_LOCATION") != ""
		hasKey := os.Getenv("GOOGLE_API_KEY") != ""
		if !hasProject && !hasKey {
			return fmt.Errorf("Vertex AI requires GOOGLE_CLOUD_PROJECT and GOOGLE_CLOUD_LOCATION, or GOOGLE_API_KEY")
		}
		return nil
	default:
		return fmt.Errorf("unknown auth type: %s", t)
	}
}

// DefaultAuthType picks an auth method from the environment.
// Detection order: Cloud Shell, Gemini API key, Vertex project config,
// Google API key, then the OAuth device flow as the fallback.
func DefaultAuthType() AuthType {
	if os.Getenv("GOOGLE_CLOUD_SHELL") == "true" {
		return AuthCloudShell
	}
	if os.Getenv("GEMINI_API_KEY") != "" {
		return AuthGeminiAPIKey
	}
	if os.Getenv("GOOGLE_CLOUD_PROJECT") != "" && os.Getenv("GOOGLE_CLOUD_LOCATION") != "" {
		return AuthVertexAI
	}
	if os.Getenv("GOOGLE_API_KEY") != "" {
		return AuthVertexAI
	}
	return AuthOAuthPersonal
}
