// GitHub Copilot Provider implementation using go-openai library.
//
// Information Hiding:
// - Copilot's OpenAI-compatible endpoint and required editor headers hidden
// - github_copilot/ model prefix normalization hidden
// - Streaming via go-openai library

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	copilotBaseURL     = "https://api.githubcopilot.com"
	copilotModelPrefix = "github_copilot/"

	// Copilot rejects requests without editor identification headers.
	copilotEditorVersion = "vscode/1.85.0"
	copilotIntegrationID = "vscode-chat"
)

// copilotHeaderTransport injects the editor headers on every request.
type copilotHeaderTransport struct {
	base http.RoundTripper
}

func (t *copilotHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Editor-Version", copilotEditorVersion)
	req.Header.Set("Copilot-Integration-Id", copilotIntegrationID)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// CopilotProvider implements the Provider interface for GitHub Copilot's
// OpenAI-compatible chat API.
type CopilotProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewCopilotProvider creates a new Copilot provider. The github_copilot/
// model prefix is accepted and stripped before requests go out.
func NewCopilotProvider(token, model string, maxTokens uint32, temperature float32) *CopilotProvider {
	config := openai.DefaultConfig(token)
	config.BaseURL = copilotBaseURL
	config.HTTPClient = &http.Client{
		Transport: &copilotHeaderTransport{},
	}

	return &CopilotProvider{
		client:      openai.NewClientWithConfig(config),
		model:       strings.TrimPrefix(model, copilotModelPrefix),
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *CopilotProvider) Name() string {
	return "copilot"
}

// Model returns the current model.
func (p *CopilotProvider) Model() string {
	return p.model
}

// Chat sends a chat completion request.
func (p *CopilotProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

// ChatWithFormat sends a chat completion request with optional response format.
func (p *CopilotProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            convertToOpenAIMessages(messages),
		MaxCompletionTokens: p.maxTokens,
		Temperature:         p.temperature,
	}
	if format != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatType(format.Type),
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}
	return responseFromOpenAI(&resp), nil
}

// ChatWithTools sends a chat completion request with tool definitions.
func (p *CopilotProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (LLMResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            convertToOpenAIMessages(messages),
		MaxCompletionTokens: p.maxTokens,
		Temperature:         p.temperature,
		Tools:               convertToOpenAITools(tools),
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}
	return responseFromOpenAI(&resp), nil
}

// StreamChat streams a chat completion.
func (p *CopilotProvider) StreamChat(ctx context.Context, messages []ChatMessage, chunks chan<- string) (*TokenUsage, error) {
	return streamOpenAIChat(ctx, p.client, openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            convertToOpenAIMessages(messages),
		MaxCompletionTokens: p.maxTokens,
		Temperature:         p.temperature,
	}, chunks)
}

// Shared go-openai conversion helpers, used by the Copilot and iFlow
// providers.

func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		if msg.ToolCallID != "" {
			oaiMsg.ToolCallID = msg.ToolCallID
		}
		result[i] = oaiMsg
	}
	return result
}

func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

func responseFromOpenAI(resp *openai.ChatCompletionResponse) LLMResponse {
	content := ""
	var toolCalls []ToolCall
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		for _, tc := range resp.Choices[0].Message.ToolCalls {
			toolCalls = append(toolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			})
		}
	}

	usage := &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}
	return LLMResponse{Content: content, ToolCalls: toolCalls, Usage: usage}
}

func streamOpenAIChat(ctx context.Context, client *openai.Client, req openai.ChatCompletionRequest, chunks chan<- string) (*TokenUsage, error) {
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("stream creation failed: %w", err)
	}
	defer stream.Close()

	var usage *TokenUsage
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return usage, nil
		}
		if err != nil {
			return usage, fmt.Errorf("stream recv failed: %w", err)
		}

		if response.Usage != nil {
			usage = &TokenUsage{
				PromptTokens:     uint32(response.Usage.PromptTokens),
				CompletionTokens: uint32(response.Usage.CompletionTokens),
				TotalTokens:      uint32(response.Usage.TotalTokens),
			}
		}

		if len(response.Choices) > 0 {
			content := response.Choices[0].Delta.Content
			if content != "" {
				select {
				case chunks <- content:
				case <-ctx.Done():
					return usage, ctx.Err()
				}
			}
		}
	}
}

// Verify CopilotProvider implements Provider
var _ Provider = (*CopilotProvider)(nil)
