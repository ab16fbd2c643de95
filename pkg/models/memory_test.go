package models

import "testing"

func TestMemory_Compact(t *testing.T) {
	m := &Memory{Messages: []ChatMessage{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleTool, FunctionName: "browser_view", Content: "huge page dump"},
		{Role: RoleTool, FunctionName: "browser_navigate", Content: "another dump"},
		{Role: RoleTool, FunctionName: "shell_exec", Content: "ls output"},
		{Role: RoleAssistant, Content: "answer", ReasoningContent: "chain of thought"},
	}}

	m.Compact()

	if m.Messages[1].Content != "(removed)" {
		t.Errorf("browser_view content = %q, want (removed)", m.Messages[1].Content)
	}
	if m.Messages[2].Content != "(removed)" {
		t.Errorf("browser_navigate content = %q, want (removed)", m.Messages[2].Content)
	}
	if m.Messages[3].Content != "ls output" {
		t.Errorf("shell_exec content = %q, want untouched", m.Messages[3].Content)
	}
	for i, msg := range m.Messages {
		if msg.ReasoningContent != "" {
			t.Errorf("message %d still carries reasoning content", i)
		}
	}
}

func TestMemory_RollBack(t *testing.T) {
	m := &Memory{}
	m.RollBack() // no-op on empty

	m.Add(ChatMessage{Role: RoleUser, Content: "hi"}, ChatMessage{Role: RoleAssistant, Content: "hello"})
	m.RollBack()

	if len(m.Messages) != 1 {
		t.Fatalf("len = %d, want 1", len(m.Messages))
	}
	if last := m.Last(); last == nil || last.Content != "hi" {
		t.Errorf("Last() = %v, want the user message", last)
	}
}
