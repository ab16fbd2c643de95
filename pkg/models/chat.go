package models

// ChatMessage is a single entry in an agent's conversation memory, in the
// chat-completions wire shape. FunctionName is recorded on tool-role
// messages so memory compaction can target specific tools.
type ChatMessage struct {
	Role             string     `json:"role"`
	Content          string     `json:"content"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID       string     `json:"tool_call_id,omitempty"`
	FunctionName     string     `json:"function_name,omitempty"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its raw JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a user-facing chat message: free text plus attachment paths
// (sandbox filepaths). It is what flows between the chat endpoint and the
// agents, and what bridges a message_ask_user pause.
type Message struct {
	Message     string   `json:"message"`
	Attachments []string `json:"attachments,omitempty"`
}
