package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/helmsman/internal/config"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// Agent steps can run long-lived completions; the transport timeout is
// deliberately generous and callers bound individual requests via ctx.
const requestTimeout = 3600 * time.Second

// OpenAIClient talks to an OpenAI-compatible chat-completions API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: requestTimeout}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *OpenAIClient) Ask(ctx context.Context, req *Request) (*models.ChatMessage, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: c.temperature,
	}
	if c.maxTokens > 0 {
		chatReq.MaxTokens = c.maxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.Tools)
		// One tool call per step keeps event ordering deterministic.
		chatReq.ParallelToolCalls = false
	}
	if req.ToolChoice != "" {
		chatReq.ToolChoice = req.ToolChoice
	}
	if req.ResponseFormat == "json_object" {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &models.ChatMessage{Role: models.RoleAssistant}, nil
	}
	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

func toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
		if m.Role == models.RoleTool {
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.FunctionName
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		}
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) *models.ChatMessage {
	out := &models.ChatMessage{
		Role:             models.RoleAssistant,
		Content:          m.Content,
		ReasoningContent: m.ReasoningContent,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: models.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}
