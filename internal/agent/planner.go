package agent

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"

	"github.com/haasonsaas/helmsman/internal/config"
	"github.com/haasonsaas/helmsman/internal/jsonx"
	"github.com/haasonsaas/helmsman/internal/llm"
	"github.com/haasonsaas/helmsman/internal/tools"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// Planner turns the user's request into a step plan and revises it as
// steps finish. It never calls tools itself.
type Planner struct {
	*Agent
}

func NewPlanner(cfg config.AgentConfig, client llm.LLM, registry *tools.Registry, memory *models.Memory, logger *slog.Logger) *Planner {
	return &Planner{
		Agent: newAgent("planner", cfg, client, registry, memory,
			systemPrompt+plannerSystemPrompt, "json_object", "none", logger),
	}
}

// CreatePlan asks the model for a plan. The yielded sequence ends with a
// plan created event on success or an error event when the model's
// output cannot be parsed.
func (p *Planner) CreatePlan(ctx context.Context, message *models.Message) iter.Seq[*models.Event] {
	return func(yield func(*models.Event) bool) {
		for event := range p.invoke(ctx, createPlanPrompt(message)) {
			if event.Type != models.EventTypeMessage {
				if !yield(event) {
					return
				}
				continue
			}

			plan := models.NewPlan()
			if err := jsonx.Decode(event.Message.Message, plan); err != nil {
				p.logger.Error("unparseable plan", "error", err, "output", event.Message.Message)
				yield(models.NewErrorEvent("the planner produced an unreadable plan: " + err.Error()))
				return
			}
			plan.Normalize()
			p.logger.Info("plan created", "plan_id", plan.ID, "steps", len(plan.Steps))
			if !yield(models.NewPlanEvent(plan, models.PlanCreated)) {
				return
			}
		}
	}
}

// UpdatePlan feeds the finished step back to the model and replaces the
// plan's unfinished suffix with the revised steps.
func (p *Planner) UpdatePlan(ctx context.Context, plan *models.Plan, step *models.Step) iter.Seq[*models.Event] {
	return func(yield func(*models.Event) bool) {
		stepJSON, _ := json.Marshal(step)
		planJSON, _ := json.Marshal(plan)

		for event := range p.invoke(ctx, updatePlanPrompt(string(stepJSON), string(planJSON))) {
			if event.Type != models.EventTypeMessage {
				if !yield(event) {
					return
				}
				continue
			}

			var update struct {
				Steps []*models.Step `json:"steps"`
			}
			if err := jsonx.Decode(event.Message.Message, &update); err != nil {
				p.logger.Error("unparseable plan update", "error", err, "output", event.Message.Message)
				yield(models.NewErrorEvent("the planner produced an unreadable plan update: " + err.Error()))
				return
			}

			revised := &models.Plan{Steps: update.Steps}
			revised.Normalize()
			plan.ReplaceSuffix(revised.Steps)

			p.logger.Info("plan updated", "plan_id", plan.ID, "steps", len(plan.Steps))
			if !yield(models.NewPlanEvent(plan, models.PlanUpdated)) {
				return
			}
		}
	}
}
