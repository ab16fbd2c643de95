package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/haasonsaas/helmsman/internal/config"
	"github.com/haasonsaas/helmsman/internal/llm"
	"github.com/haasonsaas/helmsman/internal/tools"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// scriptedLLM returns canned responses in order and records requests.
type scriptedLLM struct {
	responses []*models.ChatMessage
	requests  []*llm.Request
}

func (s *scriptedLLM) Ask(_ context.Context, req *llm.Request) (*models.ChatMessage, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return &models.ChatMessage{Role: models.RoleAssistant, Content: "out of script"}, nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

type echoToolbox struct {
	calls []string
}

func (e *echoToolbox) Name() string { return "echo" }
func (e *echoToolbox) Schemas() []tools.Schema {
	return []tools.Schema{{
		Name:   "echo_text",
		Params: map[string]tools.Param{"text": {"type": "string"}},
	}}
}
func (e *echoToolbox) Invoke(_ context.Context, _ string, args map[string]any) *models.ToolResult {
	text, _ := args["text"].(string)
	e.calls = append(e.calls, text)
	return models.OkMessage("echo: " + text)
}

func testConfig() config.AgentConfig {
	return config.AgentConfig{MaxIterations: 5, MaxRetries: 2}
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func assistantText(content string) *models.ChatMessage {
	return &models.ChatMessage{Role: models.RoleAssistant, Content: content}
}

func assistantToolCall(function, arguments string) *models.ChatMessage {
	return &models.ChatMessage{
		Role: models.RoleAssistant,
		ToolCalls: []models.ToolCall{{
			ID:       "call-1",
			Type:     "function",
			Function: models.FunctionCall{Name: function, Arguments: arguments},
		}},
	}
}

func collect(seq func(func(*models.Event) bool)) []*models.Event {
	var out []*models.Event
	for event := range seq {
		out = append(out, event)
	}
	return out
}

func eventTypes(events []*models.Event) []models.EventType {
	out := make([]models.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestExecutor_ExecuteStep(t *testing.T) {
	echo := &echoToolbox{}
	registry := tools.NewRegistry(echo, tools.NewMessageToolbox())
	script := &scriptedLLM{responses: []*models.ChatMessage{
		assistantToolCall("echo_text", `{"text": "hello"}`),
		assistantText(`{"success": true, "result": "step done", "attachments": ["/home/ubuntu/out.txt"]}`),
	}}
	executor := NewExecutor(testConfig(), script, registry, &models.Memory{}, discard())

	plan := &models.Plan{Language: "en", Steps: []*models.Step{{ID: "1", Description: "echo hello", Status: models.ExecutionPending}}}
	step := plan.Steps[0]
	events := collect(executor.ExecuteStep(context.Background(), plan, step, &models.Message{Message: "say hello"}))

	want := []models.EventType{
		models.EventTypeStep,
		models.EventTypeTool,
		models.EventTypeTool,
		models.EventTypeStep,
		models.EventTypeMessage,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	if events[0].Step.Status != models.StepStarted {
		t.Errorf("first event status = %v", events[0].Step.Status)
	}
	if events[1].Tool.Status != models.ToolCalling || events[2].Tool.Status != models.ToolCalled {
		t.Error("tool event statuses wrong")
	}
	if events[2].Tool.FunctionResult == nil || !events[2].Tool.FunctionResult.Success {
		t.Errorf("tool result = %+v", events[2].Tool.FunctionResult)
	}
	if len(echo.calls) != 1 || echo.calls[0] != "hello" {
		t.Errorf("tool calls = %v", echo.calls)
	}

	if step.Status != models.ExecutionCompleted || !step.Success {
		t.Errorf("step = %+v", step)
	}
	if step.Result != "step done" || len(step.Attachments) != 1 {
		t.Errorf("step outcome = %+v", step)
	}
	if events[4].Message.Message != "step done" {
		t.Errorf("final message = %q", events[4].Message.Message)
	}
}

func TestExecutor_AskUserPausesStep(t *testing.T) {
	registry := tools.NewRegistry(tools.NewMessageToolbox())
	script := &scriptedLLM{responses: []*models.ChatMessage{
		assistantToolCall(tools.AskUserTool, `{"text": "which format do you want?"}`),
	}}
	executor := NewExecutor(testConfig(), script, registry, &models.Memory{}, discard())

	plan := &models.Plan{Steps: []*models.Step{{ID: "1", Description: "produce report"}}}
	step := plan.Steps[0]
	events := collect(executor.ExecuteStep(context.Background(), plan, step, &models.Message{Message: "make a report"}))

	want := []models.EventType{models.EventTypeStep, models.EventTypeMessage, models.EventTypeWait}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if events[1].Message.Message != "which format do you want?" {
		t.Errorf("question = %q", events[1].Message.Message)
	}
	if step.Status != models.ExecutionRunning {
		t.Errorf("step status = %v, want still running", step.Status)
	}
}

func TestExecutor_ErrorEventFailsStep(t *testing.T) {
	registry := tools.NewRegistry(tools.NewMessageToolbox())
	// Iteration budget of 1 with a model that always wants a tool.
	cfg := config.AgentConfig{MaxIterations: 1, MaxRetries: 2}
	script := &scriptedLLM{responses: []*models.ChatMessage{
		assistantToolCall("message_notify_user", `{"text": "working"}`),
		assistantToolCall("message_notify_user", `{"text": "still working"}`),
	}}
	executor := NewExecutor(cfg, script, registry, &models.Memory{}, discard())

	plan := &models.Plan{Steps: []*models.Step{{ID: "1", Description: "loop"}}}
	step := plan.Steps[0]
	events := collect(executor.ExecuteStep(context.Background(), plan, step, &models.Message{Message: "go"}))

	if step.Status != models.ExecutionFailed || step.Error == "" {
		t.Errorf("step = %+v", step)
	}
	last := events[len(events)-1]
	if last.Type != models.EventTypeError {
		t.Errorf("last event = %v", last.Type)
	}
}

func TestAgent_EmptyResponseRetries(t *testing.T) {
	registry := tools.NewRegistry(tools.NewMessageToolbox())
	script := &scriptedLLM{responses: []*models.ChatMessage{
		{Role: models.RoleAssistant},
		assistantText("recovered"),
	}}
	memory := &models.Memory{}
	a := newAgent("test", testConfig(), script, registry, memory, "sys", "", "", discard())

	events := collect(a.invoke(context.Background(), "hello"))
	if len(events) != 1 || events[0].Type != models.EventTypeMessage {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if events[0].Message.Message != "recovered" {
		t.Errorf("message = %q", events[0].Message.Message)
	}

	// The nudge pair must be recorded between the two attempts.
	var nudged bool
	for i, msg := range memory.Messages {
		if msg.Role == models.RoleAssistant && msg.Content == "" && i+1 < len(memory.Messages) &&
			memory.Messages[i+1].Role == models.RoleUser {
			nudged = true
		}
	}
	if !nudged {
		t.Errorf("memory missing empty-response nudge: %+v", memory.Messages)
	}
	if memory.Messages[0].Role != models.RoleSystem || memory.Messages[0].Content != "sys" {
		t.Errorf("system prompt not seeded: %+v", memory.Messages[0])
	}
}

func TestAgent_KeepsOnlyFirstToolCall(t *testing.T) {
	echo := &echoToolbox{}
	registry := tools.NewRegistry(echo)
	multi := &models.ChatMessage{
		Role: models.RoleAssistant,
		ToolCalls: []models.ToolCall{
			{ID: "a", Type: "function", Function: models.FunctionCall{Name: "echo_text", Arguments: `{"text":"one"}`}},
			{ID: "b", Type: "function", Function: models.FunctionCall{Name: "echo_text", Arguments: `{"text":"two"}`}},
		},
	}
	script := &scriptedLLM{responses: []*models.ChatMessage{multi, assistantText("done")}}
	a := newAgent("test", testConfig(), script, registry, &models.Memory{}, "sys", "", "", discard())

	collect(a.invoke(context.Background(), "go"))
	if len(echo.calls) != 1 || echo.calls[0] != "one" {
		t.Errorf("calls = %v, want only the first tool call executed", echo.calls)
	}
}

func TestAgent_RollBackForMessage(t *testing.T) {
	registry := tools.NewRegistry(tools.NewMessageToolbox())
	a := newAgent("test", testConfig(), &scriptedLLM{}, registry, &models.Memory{}, "sys", "", "", discard())

	// Pending ask_user gets the user's reply as its tool result.
	a.memory.Add(models.ChatMessage{
		Role: models.RoleAssistant,
		ToolCalls: []models.ToolCall{{
			ID:       "ask-1",
			Function: models.FunctionCall{Name: tools.AskUserTool, Arguments: `{"text":"?"}`},
		}},
	})
	a.RollBackForMessage(&models.Message{Message: "use CSV"})
	last := a.memory.Last()
	if last.Role != models.RoleTool || last.ToolCallID != "ask-1" {
		t.Fatalf("last = %+v", last)
	}
	var reply models.Message
	if err := json.Unmarshal([]byte(last.Content), &reply); err != nil || reply.Message != "use CSV" {
		t.Errorf("tool reply = %q", last.Content)
	}

	// Any other dangling tool call is dropped.
	b := newAgent("test", testConfig(), &scriptedLLM{}, registry, &models.Memory{}, "sys", "", "", discard())
	b.memory.Add(models.ChatMessage{
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{{ID: "x", Function: models.FunctionCall{Name: "shell_exec"}}},
	})
	b.RollBackForMessage(&models.Message{Message: "stop"})
	if !b.memory.Empty() {
		t.Errorf("memory = %+v, want dangling call dropped", b.memory.Messages)
	}
}

func TestPlanner_CreatePlan(t *testing.T) {
	registry := tools.NewRegistry(tools.NewMessageToolbox())
	script := &scriptedLLM{responses: []*models.ChatMessage{
		assistantText(`{
			"title": "Weather report",
			"goal": "Summarize tomorrow's weather",
			"language": "en",
			"message": "I will look up the forecast and summarize it.",
			"steps": [{"description": "search the forecast"}, {"description": "write the summary"}]
		}`),
	}}
	planner := NewPlanner(testConfig(), script, registry, &models.Memory{}, discard())

	events := collect(planner.CreatePlan(context.Background(), &models.Message{Message: "weather tomorrow?"}))
	if len(events) != 1 || events[0].Type != models.EventTypePlan {
		t.Fatalf("events = %v", eventTypes(events))
	}
	payload := events[0].Plan
	if payload.Status != models.PlanCreated {
		t.Errorf("status = %v", payload.Status)
	}
	plan := payload.Plan
	if plan.Title != "Weather report" || len(plan.Steps) != 2 {
		t.Fatalf("plan = %+v", plan)
	}
	for _, step := range plan.Steps {
		if step.ID == "" || step.Status != models.ExecutionPending {
			t.Errorf("step not normalized: %+v", step)
		}
	}

	// The planner must request JSON output and forbid tool use.
	req := script.requests[0]
	if req.ResponseFormat != "json_object" || req.ToolChoice != "none" {
		t.Errorf("request = format %q, tool_choice %q", req.ResponseFormat, req.ToolChoice)
	}
}

func TestPlanner_UpdatePlanReplacesSuffix(t *testing.T) {
	registry := tools.NewRegistry(tools.NewMessageToolbox())
	script := &scriptedLLM{responses: []*models.ChatMessage{
		assistantText(`{"steps": [{"description": "revised second step"}]}`),
	}}
	planner := NewPlanner(testConfig(), script, registry, &models.Memory{}, discard())

	done := &models.Step{ID: "1", Description: "first", Status: models.ExecutionCompleted, Success: true}
	plan := &models.Plan{
		ID:    "p1",
		Steps: []*models.Step{done, {ID: "2", Description: "second", Status: models.ExecutionPending}},
	}

	events := collect(planner.UpdatePlan(context.Background(), plan, done))
	if len(events) != 1 || events[0].Type != models.EventTypePlan || events[0].Plan.Status != models.PlanUpdated {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("steps = %+v", plan.Steps)
	}
	if plan.Steps[0] != done {
		t.Error("completed prefix was not preserved")
	}
	if plan.Steps[1].Description != "revised second step" || plan.Steps[1].ID == "" {
		t.Errorf("revised step = %+v", plan.Steps[1])
	}
}

func TestExecutor_Summarize(t *testing.T) {
	registry := tools.NewRegistry(tools.NewMessageToolbox())
	script := &scriptedLLM{responses: []*models.ChatMessage{
		assistantText(`{"message": "All done.", "attachments": ["/home/ubuntu/report.md"]}`),
	}}
	executor := NewExecutor(testConfig(), script, registry, &models.Memory{}, discard())

	events := collect(executor.Summarize(context.Background()))
	if len(events) != 1 || events[0].Type != models.EventTypeMessage {
		t.Fatalf("events = %v", eventTypes(events))
	}
	msg := events[0].Message
	if msg.Message != "All done." || len(msg.Attachments) != 1 {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Attachments[0].Filepath != "/home/ubuntu/report.md" || msg.Attachments[0].ID == "" {
		t.Errorf("attachment = %+v", msg.Attachments[0])
	}
}
