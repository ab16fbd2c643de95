package models

// compactedContent replaces bulky browser tool output during compaction.
const compactedContent = "(removed)"

// compactFunctions lists tool functions whose results are dropped from
// memory once a step finishes; page snapshots dominate token usage and are
// stale after the step anyway.
var compactFunctions = map[string]bool{
	"browser_view":     true,
	"browser_navigate": true,
}

// Memory is an agent-scoped conversation buffer used as LLM context. Each
// agent instance owns its Memory; there is no cross-agent mutation.
type Memory struct {
	Messages []ChatMessage `json:"messages"`
}

// Empty reports whether the memory holds no messages.
func (m *Memory) Empty() bool {
	return len(m.Messages) == 0
}

// Add appends messages to the buffer.
func (m *Memory) Add(messages ...ChatMessage) {
	m.Messages = append(m.Messages, messages...)
}

// Last returns the most recent message, or nil when empty.
func (m *Memory) Last() *ChatMessage {
	if len(m.Messages) == 0 {
		return nil
	}
	return &m.Messages[len(m.Messages)-1]
}

// RollBack drops the last message.
func (m *Memory) RollBack() {
	if len(m.Messages) > 0 {
		m.Messages = m.Messages[:len(m.Messages)-1]
	}
}

// Compact blanks the content of browser view/navigate tool results and
// strips vendor reasoning fields from every message.
func (m *Memory) Compact() {
	for i := range m.Messages {
		msg := &m.Messages[i]
		if msg.Role == RoleTool && compactFunctions[msg.FunctionName] {
			msg.Content = compactedContent
		}
		msg.ReasoningContent = ""
	}
}
