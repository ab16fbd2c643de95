package flow

import (
	"context"
	"log/slog"
	"testing"

	"github.com/haasonsaas/helmsman/internal/agent"
	"github.com/haasonsaas/helmsman/internal/config"
	"github.com/haasonsaas/helmsman/internal/llm"
	"github.com/haasonsaas/helmsman/internal/session"
	"github.com/haasonsaas/helmsman/internal/tools"
	"github.com/haasonsaas/helmsman/pkg/models"
)

type scriptedLLM struct {
	responses []*models.ChatMessage
}

func (s *scriptedLLM) Ask(_ context.Context, _ *llm.Request) (*models.ChatMessage, error) {
	if len(s.responses) == 0 {
		return &models.ChatMessage{Role: models.RoleAssistant, Content: "out of script"}, nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

func text(content string) *models.ChatMessage {
	return &models.ChatMessage{Role: models.RoleAssistant, Content: content}
}

func askUser(question string) *models.ChatMessage {
	return &models.ChatMessage{
		Role: models.RoleAssistant,
		ToolCalls: []models.ToolCall{{
			ID:       "ask-1",
			Type:     "function",
			Function: models.FunctionCall{Name: tools.AskUserTool, Arguments: `{"text": "` + question + `"}`},
		}},
	}
}

func newTestFlow(t *testing.T, repo session.Repository, sessionID string, script *scriptedLLM) *Flow {
	t.Helper()
	cfg := config.AgentConfig{MaxIterations: 10, MaxRetries: 2}
	registry := tools.NewRegistry(tools.NewMessageToolbox())
	logger := slog.New(slog.DiscardHandler)
	planner := agent.NewPlanner(cfg, script, registry, &models.Memory{}, logger)
	executor := agent.NewExecutor(cfg, script, registry, &models.Memory{}, logger)
	return New(sessionID, repo, planner, executor, logger)
}

func eventTypes(events []*models.Event) []models.EventType {
	out := make([]models.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestFlow_FullRun(t *testing.T) {
	ctx := context.Background()
	repo := session.NewMemoryRepository()
	sess := models.NewSession("")
	repo.Save(ctx, sess)

	script := &scriptedLLM{responses: []*models.ChatMessage{
		text(`{"title": "Greeting", "goal": "greet", "language": "en",
			"message": "I will greet.", "steps": [{"description": "say hello"}]}`),
		text(`{"success": true, "result": "hello said", "attachments": []}`),
		text(`{"steps": []}`),
		text(`{"message": "Greeted successfully.", "attachments": []}`),
	}}
	f := newTestFlow(t, repo, sess.ID, script)

	var events []*models.Event
	for event := range f.Invoke(ctx, &models.Message{Message: "say hello"}) {
		events = append(events, event)
	}

	want := []models.EventType{
		models.EventTypeTitle,
		models.EventTypeMessage, // plan message
		models.EventTypePlan,    // created
		models.EventTypeStep,    // started
		models.EventTypeStep,    // completed
		models.EventTypeMessage, // step result
		models.EventTypePlan,    // updated
		models.EventTypeMessage, // summary
		models.EventTypePlan,    // completed
		models.EventTypeDone,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}

	if events[0].Title.Title != "Greeting" {
		t.Errorf("title = %q", events[0].Title.Title)
	}
	if events[7].Message.Message != "Greeted successfully." {
		t.Errorf("summary = %q", events[7].Message.Message)
	}
	last := events[8].Plan
	if last.Status != models.PlanCompleted || last.Plan.Status != models.ExecutionCompleted {
		t.Errorf("final plan event = %+v", last)
	}
	if !f.Done() {
		t.Errorf("flow status = %v after run", f.Status())
	}

	// The flow marked the session running; the runner owns the final
	// transition back to completed.
	stored, _ := repo.GetByID(ctx, sess.ID)
	if stored.Status != models.SessionRunning {
		t.Errorf("session status = %v", stored.Status)
	}
}

func TestFlow_EmptyPlanCompletesImmediately(t *testing.T) {
	ctx := context.Background()
	repo := session.NewMemoryRepository()
	sess := models.NewSession("")
	repo.Save(ctx, sess)

	script := &scriptedLLM{responses: []*models.ChatMessage{
		text(`{"title": "Nothing", "goal": "", "language": "en", "message": "Nothing to do.", "steps": []}`),
	}}
	f := newTestFlow(t, repo, sess.ID, script)

	var events []*models.Event
	for event := range f.Invoke(ctx, &models.Message{Message: "noop"}) {
		events = append(events, event)
	}

	last := events[len(events)-1]
	if last.Type != models.EventTypeDone {
		t.Fatalf("last event = %v", last.Type)
	}
	// No step or summary events in between.
	for _, e := range events {
		if e.Type == models.EventTypeStep {
			t.Errorf("unexpected step event for empty plan")
		}
	}
}

func TestFlow_WaitSuspendsAndResumes(t *testing.T) {
	ctx := context.Background()
	repo := session.NewMemoryRepository()
	sess := models.NewSession("")
	repo.Save(ctx, sess)

	script := &scriptedLLM{responses: []*models.ChatMessage{
		text(`{"title": "Report", "goal": "report", "language": "en",
			"message": "I will ask first.", "steps": [{"description": "write the report"}]}`),
		askUser("Which format?"),
	}}
	f := newTestFlow(t, repo, sess.ID, script)

	var events []*models.Event
	for event := range f.Invoke(ctx, &models.Message{Message: "make a report"}) {
		events = append(events, event)
		if event.Type == models.EventTypeWait {
			break
		}
	}
	if events[len(events)-1].Type != models.EventTypeWait {
		t.Fatalf("events = %v, want trailing wait", eventTypes(events))
	}

	// The runner would persist these on suspension.
	plan := events[2].Plan.Plan
	repo.SavePlan(ctx, sess.ID, plan)
	repo.UpdateStatus(ctx, sess.ID, models.SessionWaiting)

	// Resume with the user's answer: the executor finishes the step,
	// the planner stops revising, and the summary closes the run.
	script.responses = []*models.ChatMessage{
		text(`{"success": true, "result": "report written as CSV", "attachments": []}`),
		text(`{"steps": []}`),
		text(`{"message": "Report delivered.", "attachments": []}`),
	}
	events = events[:0]
	for event := range f.Invoke(ctx, &models.Message{Message: "CSV please"}) {
		events = append(events, event)
	}

	got := eventTypes(events)
	if got[len(got)-1] != models.EventTypeDone {
		t.Fatalf("resume events = %v, want trailing done", got)
	}
	// Resume must not replan: no title or plan-created events.
	for _, e := range events {
		if e.Type == models.EventTypeTitle {
			t.Error("resume replanned instead of continuing")
		}
	}
	if plan.Steps[0].Status != models.ExecutionCompleted {
		t.Errorf("step = %+v", plan.Steps[0])
	}
}
