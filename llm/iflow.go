// iFlow Provider implementation using go-openai library.
//
// Information Hiding:
// - iFlow's OpenAI-compatible endpoint hidden
// - iflow/ model prefix normalization hidden

package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	iflowBaseURL     = "https://apis.iflow.cn/v1"
	iflowModelPrefix = "iflow/"
)

// IFlowProvider implements the Provider interface for the iFlow chat API.
type IFlowProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewIFlowProvider creates a new iFlow provider. The iflow/ model prefix is
// accepted and stripped before requests go out.
func NewIFlowProvider(apiKey, model string, maxTokens uint32, temperature float32) *IFlowProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = iflowBaseURL

	return &IFlowProvider{
		client:      openai.NewClientWithConfig(config),
		model:       strings.TrimPrefix(model, iflowModelPrefix),
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *IFlowProvider) Name() string {
	return "iflow"
}

// Model returns the current model.
func (p *IFlowProvider) Model() string {
	return p.model
}

// Chat sends a chat completion request.
func (p *IFlowProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

// ChatWithFormat sends a chat completion request with optional response format.
func (p *IFlowProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
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
func (p *IFlowProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (LLMResponse, error) {
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
func (p *IFlowProvider) StreamChat(ctx context.Context, messages []ChatMessage, chunks chan<- string) (*TokenUsage, error) {
	return streamOpenAIChat(ctx, p.client, openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            convertToOpenAIMessages(messages),
		MaxCompletionTokens: p.maxTokens,
		Temperature:         p.temperature,
	}, chunks)
}

// Verify IFlowProvider implements Provider
var _ Provider = (*IFlowProvider)(nil)
