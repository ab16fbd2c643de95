// Package agent implements the planner and executor agents: an LLM
// conversation loop that calls tools, plus the plan lifecycle built on
// top of it. Agents produce event streams consumed by the flow layer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/helmsman/internal/config"
	"github.com/haasonsaas/helmsman/internal/jsonx"
	"github.com/haasonsaas/helmsman/internal/llm"
	"github.com/haasonsaas/helmsman/internal/tools"
	"github.com/haasonsaas/helmsman/pkg/models"
)

const retryInterval = time.Second

// Agent is the shared conversation loop. Planner and Executor embed it
// with their own system prompt, response format, and tool choice.
type Agent struct {
	name         string
	llm          llm.LLM
	registry     *tools.Registry
	memory       *models.Memory
	systemPrompt string
	format       string
	toolChoice   string

	maxIterations int
	maxRetries    int
	logger        *slog.Logger
}

func newAgent(name string, cfg config.AgentConfig, client llm.LLM, registry *tools.Registry, memory *models.Memory, systemPrompt, format, toolChoice string, logger *slog.Logger) *Agent {
	return &Agent{
		name:          name,
		llm:           client,
		registry:      registry,
		memory:        memory,
		systemPrompt:  systemPrompt,
		format:        format,
		toolChoice:    toolChoice,
		maxIterations: cfg.MaxIterations,
		maxRetries:    cfg.MaxRetries,
		logger:        logger.With("agent", name),
	}
}

// Memory exposes the agent's conversation buffer for persistence.
func (a *Agent) Memory() *models.Memory { return a.memory }

// CompactMemory drops bulky stale tool output from the buffer.
func (a *Agent) CompactMemory() { a.memory.Compact() }

// RollBackForMessage repairs the memory before a new user message is
// processed. A pending message_ask_user call is answered with the user's
// message as its tool result; any other dangling tool call is dropped so
// the buffer stays a valid conversation.
func (a *Agent) RollBackForMessage(message *models.Message) {
	last := a.memory.Last()
	if last == nil || len(last.ToolCalls) == 0 {
		return
	}
	call := last.ToolCalls[0]
	if call.Function.Name == tools.AskUserTool {
		content, _ := json.Marshal(message)
		a.memory.Add(models.ChatMessage{
			Role:         models.RoleTool,
			ToolCallID:   call.ID,
			FunctionName: call.Function.Name,
			Content:      string(content),
		})
		return
	}
	a.memory.RollBack()
}

// invoke runs the conversation loop for one query: call the model,
// execute the single tool call it requested, feed the result back, and
// repeat until the model answers with plain content. The returned
// sequence yields tool events as they happen and ends with either a
// message event or an error event.
func (a *Agent) invoke(ctx context.Context, query string) iter.Seq[*models.Event] {
	return func(yield func(*models.Event) bool) {
		message, err := a.askLLM(ctx, []models.ChatMessage{{Role: models.RoleUser, Content: query}})
		if err != nil {
			yield(models.NewErrorEvent(err.Error()))
			return
		}

		for i := 0; i < a.maxIterations; i++ {
			if len(message.ToolCalls) == 0 {
				yield(models.NewMessageEvent(models.RoleAssistant, message.Content))
				return
			}

			var toolMessages []models.ChatMessage
			for _, call := range message.ToolCalls {
				if call.Function.Name == "" {
					continue
				}
				callID := call.ID
				if callID == "" {
					callID = uuid.NewString()
				}

				args, err := jsonx.DecodeArgs(call.Function.Arguments)
				if err != nil {
					a.logger.Warn("unparseable tool arguments", "function", call.Function.Name, "error", err)
					args = map[string]any{}
				}

				toolName := ""
				if tb, ok := a.registry.Resolve(call.Function.Name); ok {
					toolName = tb.Name()
				}

				payload := &models.ToolPayload{
					ToolCallID:   callID,
					ToolName:     toolName,
					FunctionName: call.Function.Name,
					FunctionArgs: args,
					Status:       models.ToolCalling,
				}
				if !yield(models.NewToolEvent(payload)) {
					return
				}

				result := a.invokeTool(ctx, call.Function.Name, args)

				called := *payload
				called.FunctionResult = result
				called.Status = models.ToolCalled
				if !yield(models.NewToolEvent(&called)) {
					return
				}

				content, _ := json.Marshal(result)
				toolMessages = append(toolMessages, models.ChatMessage{
					Role:         models.RoleTool,
					ToolCallID:   callID,
					FunctionName: call.Function.Name,
					Content:      string(content),
				})
			}

			message, err = a.askLLM(ctx, toolMessages)
			if err != nil {
				yield(models.NewErrorEvent(err.Error()))
				return
			}
		}

		yield(models.NewErrorEvent(fmt.Sprintf("iteration limit of %d reached before the task finished", a.maxIterations)))
	}
}

// askLLM appends inbound messages to memory and calls the model,
// retrying transient failures and empty responses. The accepted
// assistant message is trimmed to a single tool call, appended to
// memory, and returned.
func (a *Agent) askLLM(ctx context.Context, inbound []models.ChatMessage) (*models.ChatMessage, error) {
	a.addToMemory(inbound...)

	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryInterval):
			}
		}

		request := &llm.Request{
			Messages:       a.memory.Messages,
			Tools:          a.registry.LLMTools(),
			ToolChoice:     a.toolChoice,
			ResponseFormat: a.format,
		}
		message, err := a.llm.Ask(ctx, request)
		if err != nil {
			lastErr = err
			a.logger.Error("llm call failed", "attempt", attempt+1, "error", err)
			continue
		}

		if message.Content == "" && len(message.ToolCalls) == 0 {
			a.logger.Warn("llm returned an empty response, retrying")
			a.addToMemory(
				models.ChatMessage{Role: models.RoleAssistant, Content: ""},
				models.ChatMessage{Role: models.RoleUser, Content: "No response received. Please continue."},
			)
			lastErr = fmt.Errorf("llm returned an empty response")
			continue
		}

		accepted := models.ChatMessage{
			Role:             models.RoleAssistant,
			Content:          message.Content,
			ReasoningContent: message.ReasoningContent,
		}
		if len(message.ToolCalls) > 0 {
			// One tool call per turn keeps execution and events ordered.
			accepted.ToolCalls = message.ToolCalls[:1]
		}
		a.addToMemory(accepted)
		return &accepted, nil
	}
	return nil, fmt.Errorf("llm call failed after %d attempts: %w", a.maxRetries, lastErr)
}

// invokeTool dispatches one tool call. Failures surface as failed tool
// results so the model can react to them; they are never loop errors.
func (a *Agent) invokeTool(ctx context.Context, function string, args map[string]any) *models.ToolResult {
	result, err := a.registry.Invoke(ctx, function, args)
	if err != nil {
		a.logger.Error("tool invocation failed", "function", function, "error", err)
		return models.Fail(err.Error())
	}
	return result
}

// addToMemory appends messages, seeding the system prompt on first use.
func (a *Agent) addToMemory(messages ...models.ChatMessage) {
	if a.memory.Empty() {
		a.memory.Add(models.ChatMessage{Role: models.RoleSystem, Content: a.systemPrompt})
	}
	a.memory.Add(messages...)
}
