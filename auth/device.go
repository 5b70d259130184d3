// OAuth2 Device-Code Authenticator.
//
// Information Hiding:
// - Device authorization grant wire format hidden
// - Poll interval and slow_down backoff handling hidden
// - Credential refresh and caching hidden behind Token

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	deviceCodeURL = "https://oauth2.googleapis.com/device/code"
	tokenURL      = "https://oauth2.googleapis.com/token"

	deviceGrantType  = "urn:ietf:params:oauth:grant-type:device_code"
	refreshGrantType = "refresh_token"

	// slowDownStep is added to the poll interval on each slow_down response.
	slowDownStep = 5 * time.Second
)

// Default installed-app client for the Gemini CLI OAuth flow. These are
// public identifiers for a native app, not secrets in the confidential
// sense. Both can be overridden via environment variables.
const (
	defaultClientID     = "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com"
	defaultClientSecret = "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"

	clientIDEnv     = "GEMINI_CLI_CLIENT_ID"
	clientSecretEnv = "GEMINI_CLI_CLIENT_SECRET"
)

// DefaultScopes cover Code Assist plus basic identity.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// Sentinel errors for terminal device-flow outcomes.
var (
	ErrAccessDenied = errors.New("authorization was denied by the user")
	ErrCodeExpired  = errors.New("device code expired before authorization")
	ErrNoRefresh    = errors.New("no refresh token available")
)

// TokenSource supplies bearer tokens for authenticated API calls.
type TokenSource interface {
	// Token returns a valid access token, refreshing or re-authenticating
	// as needed.
	Token(ctx context.Context) (string, error)
}

// DeviceCode is the server's response to a device authorization request.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// DeviceAuthorizer runs the OAuth2 device authorization grant and manages
// the on-disk credential cache.
type DeviceAuthorizer struct {
	clientID     string
	clientSecret string
	scopes       []string
	deviceURL    string
	tokenURL     string
	httpClient   *http.Client
	prompt       io.Writer
}

// NewDeviceAuthorizer creates an authorizer with the default client,
// scopes, and endpoints. Client ID and secret honor the
// GEMINI_CLI_CLIENT_ID / GEMINI_CLI_CLIENT_SECRET overrides.
func NewDeviceAuthorizer() *DeviceAuthorizer {
	clientID := os.Getenv(clientIDEnv)
	if clientID == "" {
		clientID = defaultClientID
	}
	clientSecret := os.Getenv(clientSecretEnv)
	if clientSecret == "" {
		clientSecret = defaultClientSecret
	}
	return &DeviceAuthorizer{
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       DefaultScopes,
		deviceURL:    deviceCodeURL,
		tokenURL:     tokenURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		prompt:       os.Stderr,
	}
}

// WithScopes overrides the requested scopes.
func (a *DeviceAuthorizer) WithScopes(scopes []string) *DeviceAuthorizer {
	a.scopes = scopes
	return a
}

// WithEndpoints overrides the device-code and token endpoints.
func (a *DeviceAuthorizer) WithEndpoints(deviceURL, tokenURL string) *DeviceAuthorizer {
	a.deviceURL = deviceURL
	a.tokenURL = tokenURL
	return a
}

// WithHTTPClient overrides the HTTP client.
func (a *DeviceAuthorizer) WithHTTPClient(client *http.Client) *DeviceAuthorizer {
	a.httpClient = client
	return a
}

// WithPrompt sets where the verification URL and user code are printed.
func (a *DeviceAuthorizer) WithPrompt(w io.Writer) *DeviceAuthorizer {
	a.prompt = w
	return a
}

// tokenResponse is the token endpoint's response for both the device grant
// and the refresh grant. Error fields are set on non-2xx responses.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RequestDeviceCode asks the authorization server for a device and user code.
func (a *DeviceAuthorizer) RequestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	form := url.Values{
		"client_id": {a.clientID},
		"scope":     {strings.Join(a.scopes, " ")},
	}

	var dc DeviceCode
	if err := a.postForm(ctx, a.deviceURL, form, &dc); err != nil {
		return nil, fmt.Errorf("device code request failed: %w", err)
	}
	if dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, fmt.Errorf("device code response missing required fields")
	}
	if dc.Interval <= 0 {
		dc.Interval = 5
	}
	return &dc, nil
}

// PollForToken polls the token endpoint until the user authorizes the device
// code, the code expires, or access is denied. authorization_pending keeps
// the current interval; slow_down adds 5 seconds to it.
func (a *DeviceAuthorizer) PollForToken(ctx context.Context, dc *DeviceCode) (*Credentials, error) {
	interval := time.Duration(dc.Interval) * time.Second

	deadline := time.Time{}
	if dc.ExpiresIn > 0 {
		deadline = time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)
	}

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, ErrCodeExpired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		form := url.Values{
			"client_id":     {a.clientID},
			"client_secret": {a.clientSecret},
			"device_code":   {dc.DeviceCode},
			"grant_type":    {deviceGrantType},
		}

		var tr tokenResponse
		if err := a.postForm(ctx, a.tokenURL, form, &tr); err != nil {
			return nil, fmt.Errorf("token poll failed: %w", err)
		}

		switch tr.Error {
		case "":
			if tr.AccessToken == "" {
				return nil, fmt.Errorf("token endpoint returned no access token")
			}
			return credentialsFromToken(&tr), nil
		case "authorization_pending":
			continue
		case "slow_down":
			interval += slowDownStep
		case "access_denied":
			return nil, ErrAccessDenied
		case "expired_token":
			return nil, ErrCodeExpired
		default:
			return nil, fmt.Errorf("token endpoint error %q: %s", tr.Error, tr.ErrorDescription)
		}
	}
}

// Login runs the full device flow: request a code, prompt the user, poll
// for the token, and persist the result to the credential cache.
func (a *DeviceAuthorizer) Login(ctx context.Context) (*Credentials, error) {
	dc, err := a.RequestDeviceCode(ctx)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.prompt, "To sign in, open %s and enter code: %s\n", dc.VerificationURL, dc.UserCode)

	creds, err := a.PollForToken(ctx, dc)
	if err != nil {
		return nil, err
	}
	if err := SaveCredentials(creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// Refresh exchanges the refresh token for a new access token and rewrites
// the credential cache.
func (a *DeviceAuthorizer) Refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	if creds == nil || creds.RefreshToken == "" {
		return nil, ErrNoRefresh
	}

	form := url.Values{
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
		"refresh_token": {creds.RefreshToken},
		"grant_type":    {refreshGrantType},
	}

	var tr tokenResponse
	if err := a.postForm(ctx, a.tokenURL, form, &tr); err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if tr.Error != "" {
		return nil, fmt.Errorf("token refresh rejected %q: %s", tr.Error, tr.ErrorDescription)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token refresh returned no access token")
	}

	updated := credentialsFromToken(&tr)
	// Refresh responses usually omit the refresh token; keep the old one.
	if updated.RefreshToken == "" {
		updated.RefreshToken = creds.RefreshToken
	}
	if len(updated.Scopes) == 0 {
		updated.Scopes = creds.Scopes
	}
	if err := SaveCredentials(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Token returns a valid access token: cached if still valid, refreshed when
// a refresh token is available, otherwise via an interactive login.
func (a *DeviceAuthorizer) Token(ctx context.Context) (string, error) {
	creds, err := LoadCredentials()
	if err != nil {
		return "", err
	}
	if creds.Valid() {
		return creds.AccessToken, nil
	}
	if creds != nil && creds.RefreshToken != "" {
		refreshed, err := a.Refresh(ctx, creds)
		if err == nil {
			return refreshed.AccessToken, nil
		}
		fmt.Fprintf(a.prompt, "Token refresh failed (%v), starting sign-in\n", err)
	}
	creds, err = a.Login(ctx)
	if err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

// Invalidate forces the next Token call to refresh or re-authenticate.
func (a *DeviceAuthorizer) Invalidate() error {
	creds, err := LoadCredentials()
	if err != nil || creds == nil {
		return err
	}
	creds.AccessToken = ""
	creds.Expiry = time.Unix(0, 0)
	return SaveCredentials(creds)
}

func (a *DeviceAuthorizer) postForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// OAuth error payloads come back with 4xx status but still parse as
	// JSON; the caller inspects the error field. Server errors carry no
	// usable payload and must not reach the grant handling.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error (status %s): %s", resp.Status, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unexpected response (status %s): %s", resp.Status, truncate(string(body), 200))
	}
	return nil
}

func credentialsFromToken(tr *tokenResponse) *Credentials {
	creds := &Credentials{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IDToken,
		TokenType:    tr.TokenType,
		Scopes:       strings.Fields(tr.Scope),
	}
	if tr.ExpiresIn > 0 {
		creds.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return creds
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Verify DeviceAuthorizer implements TokenSource
var _ TokenSource = (*DeviceAuthorizer)(nil)
