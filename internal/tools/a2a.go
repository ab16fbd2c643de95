package tools

import (
	"context"

	"github.com/haasonsaas/helmsman/internal/a2a"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// A2AToolbox lets the model discover and call remote agents.
type A2AToolbox struct {
	client *a2a.Client
}

func NewA2AToolbox(client *a2a.Client) *A2AToolbox {
	return &A2AToolbox{client: client}
}

func (t *A2AToolbox) Name() string { return "a2a" }

func (t *A2AToolbox) Schemas() []Schema {
	return []Schema{
		{
			Name:        "get_remote_agent_cards",
			Description: "List the discovered remote agents with their capability cards. Use before delegating work to a remote agent.",
			Params:      map[string]Param{},
		},
		{
			Name:        "call_remote_agent",
			Description: "Send a task to a remote agent and return its response. Use for delegating work the remote agent is better suited for.",
			Params: map[string]Param{
				"agent_id": {"type": "string", "description": "Identifier of the remote agent, as listed by get_remote_agent_cards"},
				"query":    {"type": "string", "description": "Task or question to send to the remote agent"},
			},
			Required: []string{"agent_id", "query"},
		},
	}
}

func (t *A2AToolbox) Invoke(ctx context.Context, function string, args map[string]any) *models.ToolResult {
	switch function {
	case "get_remote_agent_cards":
		return models.Ok(t.client.Cards())

	case "call_remote_agent":
		result, err := t.client.SendMessage(ctx, argString(args, "agent_id"), argString(args, "query"))
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)
	}
	return models.Fail("unknown a2a function " + function)
}
