package models

import "time"

// EventType identifies the kind of session event.
type EventType string

const (
	EventTypePlan    EventType = "plan"
	EventTypeTitle   EventType = "title"
	EventTypeStep    EventType = "step"
	EventTypeMessage EventType = "message"
	EventTypeTool    EventType = "tool"
	EventTypeWait    EventType = "wait"
	EventTypeError   EventType = "error"
	EventTypeDone    EventType = "done"
)

// PlanEventStatus marks where in its lifecycle a plan event was emitted.
type PlanEventStatus string

const (
	PlanCreated   PlanEventStatus = "created"
	PlanUpdated   PlanEventStatus = "updated"
	PlanCompleted PlanEventStatus = "completed"
)

// StepEventStatus marks step lifecycle transitions.
type StepEventStatus string

const (
	StepStarted   StepEventStatus = "started"
	StepCompleted StepEventStatus = "completed"
	StepFailed    StepEventStatus = "failed"
)

// ToolEventStatus distinguishes the event before and after a tool runs.
type ToolEventStatus string

const (
	ToolCalling ToolEventStatus = "calling"
	ToolCalled  ToolEventStatus = "called"
)

// Event is the unified event model for the session stream. It is a tagged
// union: Type selects which payload pointer is set. ID is assigned when the
// event is written to the output stream; events decoded from history carry
// the id they were stored under.
//
// Wait and done events have no payload.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Type      EventType `json:"type"`
	CreatedAt time.Time `json:"created_at"`

	Plan    *PlanPayload    `json:"plan,omitempty"`
	Title   *TitlePayload   `json:"title,omitempty"`
	Step    *StepPayload    `json:"step,omitempty"`
	Message *MessagePayload `json:"message,omitempty"`
	Tool    *ToolPayload    `json:"tool,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// PlanPayload carries the full plan snapshot at created/updated/completed.
type PlanPayload struct {
	Plan   *Plan           `json:"plan"`
	Status PlanEventStatus `json:"status"`
}

// TitlePayload carries the session title derived from the plan.
type TitlePayload struct {
	Title string `json:"title"`
}

// StepPayload carries a step snapshot at started/completed/failed.
type StepPayload struct {
	Step   *Step           `json:"step"`
	Status StepEventStatus `json:"status"`
}

// MessagePayload is a user or assistant chat message with attachments.
type MessagePayload struct {
	Role        string  `json:"role"`
	Message     string  `json:"message"`
	Attachments []*File `json:"attachments,omitempty"`
}

// ToolPayload describes one tool invocation. FunctionResult is set on the
// called event; ToolContent is filled in by the task runner with
// tool-specific display data (screenshot, console, search results).
type ToolPayload struct {
	ToolCallID     string          `json:"tool_call_id"`
	ToolName       string          `json:"tool_name"`
	FunctionName   string          `json:"function_name"`
	FunctionArgs   map[string]any  `json:"function_args,omitempty"`
	FunctionResult *ToolResult     `json:"function_result,omitempty"`
	ToolContent    *ToolContent    `json:"tool_content,omitempty"`
	Status         ToolEventStatus `json:"status"`
}

// ToolContent is type-tagged display data attached to called tool events.
type ToolContent struct {
	Type       string `json:"type"`
	Screenshot string `json:"screenshot,omitempty"`
	Results    any    `json:"results,omitempty"`
	Console    any    `json:"console,omitempty"`
	Content    string `json:"content,omitempty"`
	Result     any    `json:"result,omitempty"`
}

// ErrorPayload is a terminal error marker.
type ErrorPayload struct {
	Error string `json:"error"`
}

func newEvent(t EventType) *Event {
	return &Event{Type: t, CreatedAt: time.Now()}
}

// NewPlanEvent returns a plan event for the given lifecycle status.
func NewPlanEvent(plan *Plan, status PlanEventStatus) *Event {
	e := newEvent(EventTypePlan)
	e.Plan = &PlanPayload{Plan: plan, Status: status}
	return e
}

// NewTitleEvent returns a title event.
func NewTitleEvent(title string) *Event {
	e := newEvent(EventTypeTitle)
	e.Title = &TitlePayload{Title: title}
	return e
}

// NewStepEvent returns a step event for the given lifecycle status.
func NewStepEvent(step *Step, status StepEventStatus) *Event {
	e := newEvent(EventTypeStep)
	e.Step = &StepPayload{Step: step, Status: status}
	return e
}

// NewMessageEvent returns an assistant or user message event.
func NewMessageEvent(role, message string, attachments ...*File) *Event {
	e := newEvent(EventTypeMessage)
	e.Message = &MessagePayload{Role: role, Message: message, Attachments: attachments}
	return e
}

// NewToolEvent returns a tool event.
func NewToolEvent(p *ToolPayload) *Event {
	e := newEvent(EventTypeTool)
	e.Tool = p
	return e
}

// NewWaitEvent signals that the agent is awaiting user input.
func NewWaitEvent() *Event { return newEvent(EventTypeWait) }

// NewDoneEvent is the terminal success marker of a run.
func NewDoneEvent() *Event { return newEvent(EventTypeDone) }

// NewErrorEvent is the terminal failure marker of a run.
func NewErrorEvent(msg string) *Event {
	e := newEvent(EventTypeError)
	e.Error = &ErrorPayload{Error: msg}
	return e
}

// Terminal reports whether the event ends a chat read loop: done and error
// end the run, wait suspends it until the next user message.
func (e *Event) Terminal() bool {
	switch e.Type {
	case EventTypeDone, EventTypeError, EventTypeWait:
		return true
	}
	return false
}
