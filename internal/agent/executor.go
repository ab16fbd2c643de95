package agent

import (
	"context"
	"iter"
	"log/slog"

	"github.com/haasonsaas/helmsman/internal/config"
	"github.com/haasonsaas/helmsman/internal/jsonx"
	"github.com/haasonsaas/helmsman/internal/llm"
	"github.com/haasonsaas/helmsman/internal/tools"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// Executor carries out plan steps with the full toolset and produces
// the final task summary.
type Executor struct {
	*Agent
}

func NewExecutor(cfg config.AgentConfig, client llm.LLM, registry *tools.Registry, memory *models.Memory, logger *slog.Logger) *Executor {
	return &Executor{
		Agent: newAgent("executor", cfg, client, registry, memory,
			systemPrompt+executorSystemPrompt, "json_object", "", logger),
	}
}

// ExecuteStep runs one plan step to completion. A message_ask_user call
// surfaces as an assistant message followed by a wait event, suspending
// the step mid-run; the step stays running and resumes with the user's
// reply. Otherwise the model's closing JSON is merged into the step and
// a completed or failed step event is emitted.
func (e *Executor) ExecuteStep(ctx context.Context, plan *models.Plan, step *models.Step, message *models.Message) iter.Seq[*models.Event] {
	return func(yield func(*models.Event) bool) {
		step.Status = models.ExecutionRunning
		if !yield(models.NewStepEvent(step, models.StepStarted)) {
			return
		}

		query := executionPrompt(message, plan.Language, step.Description)
		for event := range e.invoke(ctx, query) {
			switch event.Type {
			case models.EventTypeTool:
				if event.Tool.FunctionName == tools.AskUserTool {
					switch event.Tool.Status {
					case models.ToolCalling:
						text, _ := event.Tool.FunctionArgs["text"].(string)
						if !yield(models.NewMessageEvent(models.RoleAssistant, text)) {
							return
						}
					case models.ToolCalled:
						yield(models.NewWaitEvent())
						return
					}
					continue
				}

			case models.EventTypeMessage:
				step.Status = models.ExecutionCompleted
				var outcome models.Step
				if err := jsonx.Decode(event.Message.Message, &outcome); err != nil {
					e.logger.Warn("unparseable step outcome, keeping raw text", "error", err)
					step.Success = true
					step.Result = event.Message.Message
				} else {
					step.Success = outcome.Success
					step.Result = outcome.Result
					step.Attachments = outcome.Attachments
				}

				if !yield(models.NewStepEvent(step, models.StepCompleted)) {
					return
				}
				if step.Result != "" {
					if !yield(models.NewMessageEvent(models.RoleAssistant, step.Result)) {
						return
					}
				}
				continue

			case models.EventTypeError:
				step.Status = models.ExecutionFailed
				step.Error = event.Error.Error
				if !yield(models.NewStepEvent(step, models.StepFailed)) {
					return
				}
			}

			if !yield(event) {
				return
			}
		}
	}
}

// Summarize produces the closing summary once every step is done.
func (e *Executor) Summarize(ctx context.Context) iter.Seq[*models.Event] {
	return func(yield func(*models.Event) bool) {
		for event := range e.invoke(ctx, summarizeTemplate) {
			if event.Type != models.EventTypeMessage {
				if !yield(event) {
					return
				}
				continue
			}

			var summary models.Message
			if err := jsonx.Decode(event.Message.Message, &summary); err != nil {
				e.logger.Warn("unparseable summary, keeping raw text", "error", err)
				summary = models.Message{Message: event.Message.Message}
			}

			attachments := make([]*models.File, 0, len(summary.Attachments))
			for _, filepath := range summary.Attachments {
				file := models.NewFile()
				file.Filepath = filepath
				attachments = append(attachments, file)
			}
			if !yield(models.NewMessageEvent(models.RoleAssistant, summary.Message, attachments...)) {
				return
			}
		}
	}
}
