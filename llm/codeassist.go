// Code Assist Provider - OAuth-authenticated access to the Code Assist API.
//
// Information Hiding:
// - Code Assist wire format (request envelope, SSE framing) hidden
// - Project discovery and onboarding LRO hidden
// - Token refresh on 401 hidden

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/richinex/theseus/auth"
)

const (
	codeAssistEndpoint    = "https://cloudcode-pa.googleapis.com"
	codeAssistVersion     = "v1internal"
	codeAssistEndpointEnv = "CODE_ASSIST_ENDPOINT"

	freeTierID = "free-tier"

	// Onboarding long-running operation polling.
	lroPollInterval = 5 * time.Second
	lroPollTimeout  = 120 * time.Second

	codeAssistUserAgent = "Theseus-CodeAssist/0.1"
)

// ErrOnboardTimeout is returned when project onboarding does not complete
// within the polling budget.
var ErrOnboardTimeout = errors.New("project onboarding did not complete in time")

// tokenInvalidator is implemented by token sources that can drop a cached
// access token, forcing the next Token call to refresh.
type tokenInvalidator interface {
	Invalidate() error
}

// CodeAssistProvider implements the Provider interface against the Code
// Assist API using OAuth bearer tokens instead of API keys.
type CodeAssistProvider struct {
	tokens      auth.TokenSource
	httpClient  *http.Client
	endpoint    string
	model       string
	maxTokens   int32
	temperature float32

	mu      sync.Mutex
	project string // resolved lazily via loadCodeAssist/onboardUser
	loaded  bool
}

// NewCodeAssistProvider creates a Code Assist provider. The endpoint honors
// the CODE_ASSIST_ENDPOINT environment variable.
func NewCodeAssistProvider(tokens auth.TokenSource, model string, maxTokens uint32, temperature float32) *CodeAssistProvider {
	endpoint := os.Getenv(codeAssistEndpointEnv)
	if endpoint == "" {
		endpoint = codeAssistEndpoint
	}
	model = strings.TrimPrefix(model, "gemini_cli/")
	return &CodeAssistProvider{
		tokens:      tokens,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		endpoint:    endpoint,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
	}
}

// WithHTTPClient overrides the HTTP client.
func (p *CodeAssistProvider) WithHTTPClient(client *http.Client) *CodeAssistProvider {
	p.httpClient = client
	return p
}

// WithProject pins the cloud project, skipping auto-discovery.
func (p *CodeAssistProvider) WithProject(project string) *CodeAssistProvider {
	p.project = project
	p.loaded = true
	return p
}

// Name returns the provider name.
func (p *CodeAssistProvider) Name() string {
	return "codeassist"
}

// Model returns the current model.
func (p *CodeAssistProvider) Model() string {
	return p.model
}

// Wire types. The request envelope wraps a Vertex-style generate request
// under "request" alongside the model and project.

type caPart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *caFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *caFunctionResponse `json:"functionResponse,omitempty"`
}

type caFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

type caFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type caContent struct {
	Role  string   `json:"role,omitempty"`
	Parts []caPart `json:"parts"`
}

type caGenerationConfig struct {
	Temperature      *float32        `json:"temperature,omitempty"`
	TopP             *float32        `json:"topP,omitempty"`
	TopK             *int32          `json:"topK,omitempty"`
	CandidateCount   int32           `json:"candidateCount,omitempty"`
	MaxOutputTokens  int32           `json:"maxOutputTokens,omitempty"`
	StopSequences    []string        `json:"stopSequences,omitempty"`
	Seed             *int32          `json:"seed,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type caFunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type caTool struct {
	FunctionDeclarations []caFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type caGenerateRequest struct {
	Contents          []caContent        `json:"contents"`
	SystemInstruction *caContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  caGenerationConfig `json:"generationConfig"`
	Tools             []caTool           `json:"tools,omitempty"`
}

type caPayload struct {
	Model   string            `json:"model"`
	Project string            `json:"project,omitempty"`
	Request caGenerateRequest `json:"request"`
}

type caCandidate struct {
	Content caContent `json:"content"`
}

type caUsageMetadata struct {
	PromptTokenCount     int32 `json:"promptTokenCount"`
	CandidatesTokenCount int32 `json:"candidatesTokenCount"`
	TotalTokenCount      int32 `json:"totalTokenCount"`
}

type caGenerateResponse struct {
	Candidates    []caCandidate    `json:"candidates"`
	UsageMetadata *caUsageMetadata `json:"usageMetadata"`
}

// caResponseWrapper is the Code Assist envelope around a generate response.
type caResponseWrapper struct {
	Response caGenerateResponse `json:"response"`
}

// Chat sends a chat completion request.
func (p *CodeAssistProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.generate(ctx, messages, nil, nil)
}

// ChatWithFormat sends a chat completion request with optional response format.
func (p *CodeAssistProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	return p.generate(ctx, messages, format, nil)
}

// ChatWithTools sends a chat completion request with tool definitions.
func (p *CodeAssistProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (LLMResponse, error) {
	return p.generate(ctx, messages, nil, tools)
}

func (p *CodeAssistProvider) generate(ctx context.Context, messages []ChatMessage, format *ResponseFormat, tools []ToolDefinition) (LLMResponse, error) {
	payload, err := p.buildPayload(ctx, messages, format, tools)
	if err != nil {
		return LLMResponse{}, err
	}

	resp, err := p.post(ctx, p.methodURL("generateContent"), payload)
	if err != nil {
		return LLMResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return LLMResponse{}, fmt.Errorf("code assist request failed: %s: %s", resp.Status, truncateBody(body))
	}

	var wrapper caResponseWrapper
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return LLMResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return responseFromCandidates(&wrapper.Response), nil
}

// StreamChat streams a chat completion over SSE. Text deltas are sent to the
// chunk channel as they arrive; the returned usage comes from the last chunk
// carrying usageMetadata.
func (p *CodeAssistProvider) StreamChat(ctx context.Context, messages []ChatMessage, chunks chan<- string) (*TokenUsage, error) {
	payload, err := p.buildPayload(ctx, messages, nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, p.methodURL("streamGenerateContent")+"?alt=sse", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("code assist stream failed: %s: %s", resp.Status, truncateBody(body))
	}

	var usage *TokenUsage
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var wrapper caResponseWrapper
		if err := json.Unmarshal([]byte(data), &wrapper); err != nil {
			// Skip malformed chunks rather than killing the stream.
			continue
		}

		if wrapper.Response.UsageMetadata != nil {
			usage = usageFromMetadata(wrapper.Response.UsageMetadata)
		}

		for _, candidate := range wrapper.Response.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case chunks <- part.Text:
				case <-ctx.Done():
					return usage, ctx.Err()
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return usage, fmt.Errorf("stream read failed: %w", err)
	}

	return usage, nil
}

// buildPayload translates provider-neutral messages into the Code Assist
// request envelope, resolving the cloud project first.
func (p *CodeAssistProvider) buildPayload(ctx context.Context, messages []ChatMessage, format *ResponseFormat, tools []ToolDefinition) (*caPayload, error) {
	project, err := p.ensureProject(ctx)
	if err != nil {
		return nil, err
	}

	contents, system := convertToCodeAssistContents(messages)

	genConfig := caGenerationConfig{
		Temperature:     &p.temperature,
		MaxOutputTokens: p.maxTokens,
	}
	if format != nil {
		switch format.Type {
		case ResponseFormatJSONObject:
			genConfig.ResponseMimeType = "application/json"
		case ResponseFormatJSONSchema:
			genConfig.ResponseMimeType = "application/json"
			if format.JSONSchema != nil {
				genConfig.ResponseSchema = format.JSONSchema.Schema
			}
		}
	}

	payload := &caPayload{
		Model:   p.model,
		Project: project,
		Request: caGenerateRequest{
			Contents:         contents,
			GenerationConfig: genConfig,
		},
	}
	if system != "" {
		payload.Request.SystemInstruction = &caContent{
			Parts: []caPart{{Text: system}},
		}
	}
	if len(tools) > 0 {
		declarations := make([]caFunctionDeclaration, len(tools))
		for i, t := range tools {
			declarations[i] = caFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			}
		}
		payload.Request.Tools = []caTool{{FunctionDeclarations: declarations}}
	}
	return payload, nil
}

// ensureProject resolves the cloud project once: GOOGLE_CLOUD_PROJECT wins,
// otherwise loadCodeAssist/onboardUser discovery. Only a completed discovery
// is cached; a transport failure sends this request without a project and
// leaves discovery to be retried on the next call.
func (p *CodeAssistProvider) ensureProject(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return p.project, nil
	}
	if env := os.Getenv("GOOGLE_CLOUD_PROJECT"); env != "" {
		p.project = env
		p.loaded = true
		return p.project, nil
	}

	project, err := p.discoverProject(ctx)
	if err != nil {
		if errors.Is(err, ctx.Err()) || errors.Is(err, ErrOnboardTimeout) {
			return "", err
		}
		// Best effort: requests may still succeed without a project.
		return "", nil
	}
	p.project = project
	p.loaded = true
	return p.project, nil
}

// caLoadResponse is the loadCodeAssist response subset we need.
type caLoadResponse struct {
	CloudAICompanionProject string   `json:"cloudaicompanionProject"`
	CurrentTier             *caTier  `json:"currentTier"`
	AllowedTiers            []caTier `json:"allowedTiers"`
}

type caTier struct {
	ID        string `json:"id"`
	IsDefault bool   `json:"isDefault"`
}

// caOperation is the onboardUser long-running operation envelope.
type caOperation struct {
	Done     bool `json:"done"`
	Response struct {
		CloudAICompanionProject struct {
			ID string `json:"id"`
		} `json:"cloudaicompanionProject"`
	} `json:"response"`
}

func (p *CodeAssistProvider) discoverProject(ctx context.Context) (string, error) {
	metadata := map[string]interface{}{
		"ideType":    "IDE_UNSPECIFIED",
		"platform":   "PLATFORM_UNSPECIFIED",
		"pluginType": "GEMINI",
	}

	loadPayload := map[string]interface{}{
		"cloudaicompanionProject": nil,
		"metadata":                metadata,
	}

	var load caLoadResponse
	if err := p.postJSON(ctx, p.methodURL("loadCodeAssist"), loadPayload, &load); err != nil {
		return "", fmt.Errorf("loadCodeAssist failed: %w", err)
	}

	if load.CurrentTier != nil {
		// Already onboarded; the project may legitimately be empty for the
		// free tier.
		return load.CloudAICompanionProject, nil
	}

	tierID := freeTierID
	for _, tier := range load.AllowedTiers {
		if tier.IsDefault {
			tierID = tier.ID
			break
		}
	}

	onboardPayload := map[string]interface{}{
		"tierId":                  tierID,
		"cloudaicompanionProject": nil,
		"metadata":                metadata,
	}
	if tierID != freeTierID {
		onboardPayload["cloudaicompanionProject"] = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}

	var op caOperation
	if err := p.postJSON(ctx, p.methodURL("onboardUser"), onboardPayload, &op); err != nil {
		return "", fmt.Errorf("onboardUser failed: %w", err)
	}

	deadline := time.Now().Add(lroPollTimeout)
	for !op.Done {
		if time.Now().After(deadline) {
			return "", ErrOnboardTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lroPollInterval):
		}
		op = caOperation{}
		if err := p.postJSON(ctx, p.methodURL("onboardUser"), onboardPayload, &op); err != nil {
			return "", fmt.Errorf("onboardUser poll failed: %w", err)
		}
	}

	return op.Response.CloudAICompanionProject.ID, nil
}

func (p *CodeAssistProvider) methodURL(method string) string {
	return fmt.Sprintf("%s/%s:%s", p.endpoint, codeAssistVersion, method)
}

// post issues an authenticated POST, refreshing the token and retrying once
// on 401.
func (p *CodeAssistProvider) post(ctx context.Context, url string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := p.doPost(ctx, url, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if inv, ok := p.tokens.(tokenInvalidator); ok {
		if err := inv.Invalidate(); err != nil {
			return nil, fmt.Errorf("failed to invalidate token: %w", err)
		}
	}
	return p.doPost(ctx, url, body)
}

func (p *CodeAssistProvider) doPost(ctx context.Context, url string, body []byte) (*http.Response, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", codeAssistUserAgent)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (p *CodeAssistProvider) postJSON(ctx context.Context, url string, payload interface{}, out interface{}) error {
	resp, err := p.post(ctx, url, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, truncateBody(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// convertToCodeAssistContents converts provider-neutral messages to the
// Vertex-style content list. The system message is returned separately.
func convertToCodeAssistContents(messages []ChatMessage) ([]caContent, string) {
	var contents []caContent
	var system string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = msg.Content
		case "user":
			contents = append(contents, caContent{
				Role:  "user",
				Parts: []caPart{{Text: msg.Content}},
			})
		case "assistant":
			content := caContent{Role: "model"}
			if msg.Content != "" {
				content.Parts = append(content.Parts, caPart{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]interface{}
				_ = json.Unmarshal(tc.Arguments, &args)
				content.Parts = append(content.Parts, caPart{
					FunctionCall: &caFunctionCall{Name: tc.Name, Args: args},
				})
			}
			contents = append(contents, content)
		case "tool":
			var result map[string]interface{}
			_ = json.Unmarshal([]byte(msg.Content), &result)
			if result == nil {
				result = map[string]interface{}{"result": msg.Content}
			}
			contents = append(contents, caContent{
				Role: "user",
				Parts: []caPart{{
					FunctionResponse: &caFunctionResponse{
						Name:     msg.ToolCallID,
						Response: result,
					},
				}},
			})
		}
	}

	return contents, system
}

// responseFromCandidates flattens candidate parts into the provider-neutral
// response shape.
func responseFromCandidates(resp *caGenerateResponse) LLMResponse {
	var content strings.Builder
	var toolCalls []ToolCall

	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				content.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				toolCalls = append(toolCalls, ToolCall{
					ID:        part.FunctionCall.Name,
					Name:      part.FunctionCall.Name,
					Arguments: args,
				})
			}
		}
	}

	return LLMResponse{
		Content:   content.String(),
		ToolCalls: toolCalls,
		Usage:     usageFromMetadata(resp.UsageMetadata),
	}
}

func usageFromMetadata(m *caUsageMetadata) *TokenUsage {
	if m == nil {
		return nil
	}
	return &TokenUsage{
		PromptTokens:     uint32(m.PromptTokenCount),
		CompletionTokens: uint32(m.CandidatesTokenCount),
		TotalTokens:      uint32(m.TotalTokenCount),
	}
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// Verify CodeAssistProvider implements Provider
var _ Provider = (*CodeAssistProvider)(nil)
