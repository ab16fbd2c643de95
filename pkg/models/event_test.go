package models

import (
	"encoding/json"
	"testing"
)

func TestEvent_RoundTrip(t *testing.T) {
	plan := NewPlan()
	plan.Title = "research task"
	plan.Steps = []*Step{{ID: "s1", Description: "search", Status: ExecutionPending}}

	tests := []struct {
		name  string
		event *Event
		typ   EventType
	}{
		{"plan", NewPlanEvent(plan, PlanCreated), EventTypePlan},
		{"message", NewMessageEvent(RoleAssistant, "hello"), EventTypeMessage},
		{"tool", NewToolEvent(&ToolPayload{ToolCallID: "c1", ToolName: "shell", FunctionName: "shell_exec", Status: ToolCalling}), EventTypeTool},
		{"wait", NewWaitEvent(), EventTypeWait},
		{"done", NewDoneEvent(), EventTypeDone},
		{"error", NewErrorEvent("boom"), EventTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var got Event
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != tt.typ {
				t.Errorf("type = %q, want %q", got.Type, tt.typ)
			}
		})
	}
}

func TestEvent_Terminal(t *testing.T) {
	if !NewDoneEvent().Terminal() || !NewErrorEvent("x").Terminal() || !NewWaitEvent().Terminal() {
		t.Error("done/error/wait must be terminal")
	}
	if NewMessageEvent(RoleUser, "hi").Terminal() {
		t.Error("message must not be terminal")
	}
}
