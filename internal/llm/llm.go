// Package llm abstracts the chat-completion endpoint the agents run
// against. The runtime targets any OpenAI-compatible API; the base URL
// and model come from configuration.
package llm

import (
	"context"

	"github.com/haasonsaas/helmsman/pkg/models"
)

// Tool is a function definition offered to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single completion turn.
type Request struct {
	Messages []models.ChatMessage
	Tools    []Tool

	// ToolChoice is "none" to suppress tool calls, "auto" or empty for
	// model discretion.
	ToolChoice string

	// ResponseFormat is "json_object" to force a JSON response body.
	ResponseFormat string
}

// LLM is a synchronous chat-completion client. Ask returns the assistant
// message in full; the runtime never streams model output, it streams its
// own events instead.
type LLM interface {
	Ask(ctx context.Context, req *Request) (*models.ChatMessage, error)
}
