// Package models provides domain types for the Helmsman agent runtime.
package models

// ToolResult is the return envelope for every tool dispatch. A failed call
// is carried back to the LLM as data, not surfaced as a Go error.
type ToolResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Ok returns a successful result carrying data.
func Ok(data any) *ToolResult {
	return &ToolResult{Success: true, Data: data}
}

// OkMessage returns a successful result with a human-readable message.
func OkMessage(msg string) *ToolResult {
	return &ToolResult{Success: true, Message: msg}
}

// Fail returns a failed result with an error message.
func Fail(msg string) *ToolResult {
	return &ToolResult{Success: false, Message: msg}
}
