package tools

import (
	"context"

	"github.com/haasonsaas/helmsman/pkg/models"
)

// AskUserTool is the function name the execution layer intercepts to
// pause the run and wait for user input.
const AskUserTool = "message_ask_user"

// NotifyUserTool is the non-blocking counterpart of AskUserTool.
const NotifyUserTool = "message_notify_user"

// MessageToolbox carries the user messaging functions. Both are no-ops
// at this level; the agent layer turns them into conversation events
// and, for message_ask_user, suspends execution.
type MessageToolbox struct{}

func NewMessageToolbox() *MessageToolbox {
	return &MessageToolbox{}
}

func (t *MessageToolbox) Name() string { return "message" }

func (t *MessageToolbox) Schemas() []Schema {
	return []Schema{
		{
			Name:        NotifyUserTool,
			Description: "Send a message to the user without requiring a response. Use for progress updates and delivering results.",
			Params: map[string]Param{
				"text": {"type": "string", "description": "Message text to display to the user"},
				"attachments": {
					"type":        "array",
					"description": "(Optional) List of file paths or URLs to attach to the message",
					"items":       map[string]any{"type": "string"},
				},
			},
			Required: []string{"text"},
		},
		{
			Name:        AskUserTool,
			Description: "Ask the user a question and wait for a response. Use when clarification or a decision from the user is required.",
			Params: map[string]Param{
				"text": {"type": "string", "description": "Question text to present to the user"},
				"attachments": {
					"type":        "array",
					"description": "(Optional) List of file paths or URLs relevant to the question",
					"items":       map[string]any{"type": "string"},
				},
				"suggest_user_takeover": {
					"type":        "string",
					"description": "(Optional) Suggested operation for the user to take over",
					"enum":        []string{"none", "browser"},
				},
			},
			Required: []string{"text"},
		},
	}
}

func (t *MessageToolbox) Invoke(ctx context.Context, function string, args map[string]any) *models.ToolResult {
	switch function {
	case NotifyUserTool, AskUserTool:
		return models.OkMessage(argString(args, "text"))
	}
	return models.Fail("unknown message function " + function)
}
