package models

import "github.com/google/uuid"

// ExecutionStatus tracks a plan or step through its lifecycle.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Step is a single unit of work within a plan.
type Step struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Status      ExecutionStatus `json:"status"`
	Result      string          `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Success     bool            `json:"success"`
	Attachments []string        `json:"attachments,omitempty"`
}

// Done reports whether the step reached a terminal status.
func (s *Step) Done() bool {
	return s.Status == ExecutionCompleted || s.Status == ExecutionFailed
}

// Plan is the ordered, mutable step list produced by the planner. At most
// one step is running at a time; steps after the first pending one may be
// rewritten wholesale by plan updates.
type Plan struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Goal     string          `json:"goal"`
	Language string          `json:"language"`
	Message  string          `json:"message"`
	Status   ExecutionStatus `json:"status"`
	Error    string          `json:"error,omitempty"`
	Steps    []*Step         `json:"steps"`
}

// NewPlan returns an empty pending plan with a fresh id.
func NewPlan() *Plan {
	return &Plan{ID: uuid.NewString(), Status: ExecutionPending}
}

// Done reports whether the plan reached a terminal status.
func (p *Plan) Done() bool {
	return p.Status == ExecutionCompleted || p.Status == ExecutionFailed
}

// NextStep returns the first step that has not reached a terminal status,
// or nil when every step is done.
func (p *Plan) NextStep() *Step {
	for _, step := range p.Steps {
		if !step.Done() {
			return step
		}
	}
	return nil
}

// Normalize fills in missing ids and statuses on a plan decoded from LLM
// output, which routinely omits defaulted fields.
func (p *Plan) Normalize() {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = ExecutionPending
	}
	for _, step := range p.Steps {
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		if step.Status == "" {
			step.Status = ExecutionPending
		}
	}
}

// ReplaceSuffix applies a plan update: the completed prefix is preserved
// exactly and everything from the first pending step onward is replaced by
// steps. A fully completed plan appends the new steps.
func (p *Plan) ReplaceSuffix(steps []*Step) {
	firstPending := -1
	for i, step := range p.Steps {
		if !step.Done() {
			firstPending = i
			break
		}
	}
	if firstPending < 0 {
		p.Steps = append(p.Steps, steps...)
		return
	}
	p.Steps = append(p.Steps[:firstPending:firstPending], steps...)
}
