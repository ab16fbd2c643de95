package models

import "testing"

func step(desc string, status ExecutionStatus) *Step {
	return &Step{ID: desc, Description: desc, Status: status}
}

func TestPlan_NextStep(t *testing.T) {
	tests := []struct {
		name  string
		steps []*Step
		want  string
	}{
		{"empty plan", nil, ""},
		{"all pending", []*Step{step("a", ExecutionPending), step("b", ExecutionPending)}, "a"},
		{"skips completed", []*Step{step("a", ExecutionCompleted), step("b", ExecutionPending)}, "b"},
		{"failed is terminal", []*Step{step("a", ExecutionFailed), step("b", ExecutionPending)}, "b"},
		{"running is not terminal", []*Step{step("a", ExecutionRunning), step("b", ExecutionPending)}, "a"},
		{"all done", []*Step{step("a", ExecutionCompleted), step("b", ExecutionFailed)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Plan{Steps: tt.steps}
			next := p.NextStep()
			if tt.want == "" {
				if next != nil {
					t.Fatalf("NextStep() = %q, want nil", next.ID)
				}
				return
			}
			if next == nil || next.ID != tt.want {
				t.Fatalf("NextStep() = %v, want %q", next, tt.want)
			}
		})
	}
}

func TestPlan_ReplaceSuffix(t *testing.T) {
	p := &Plan{Steps: []*Step{
		step("done-1", ExecutionCompleted),
		step("done-2", ExecutionCompleted),
		step("pending-1", ExecutionPending),
		step("pending-2", ExecutionPending),
	}}

	p.ReplaceSuffix([]*Step{step("new-1", ExecutionPending), step("new-2", ExecutionPending), step("new-3", ExecutionPending)})

	got := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		got = append(got, s.ID)
	}
	want := []string{"done-1", "done-2", "new-1", "new-2", "new-3"}
	if len(got) != len(want) {
		t.Fatalf("steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("steps[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPlan_ReplaceSuffix_AllDone(t *testing.T) {
	p := &Plan{Steps: []*Step{step("done-1", ExecutionCompleted)}}
	p.ReplaceSuffix([]*Step{step("new-1", ExecutionPending)})
	if len(p.Steps) != 2 || p.Steps[1].ID != "new-1" {
		t.Fatalf("expected appended step, got %d steps", len(p.Steps))
	}
}

func TestPlan_Normalize(t *testing.T) {
	p := &Plan{Steps: []*Step{{Description: "search"}}}
	p.Normalize()
	if p.ID == "" {
		t.Error("plan id not assigned")
	}
	if p.Status != ExecutionPending {
		t.Errorf("plan status = %q, want pending", p.Status)
	}
	if p.Steps[0].ID == "" {
		t.Error("step id not assigned")
	}
	if p.Steps[0].Status != ExecutionPending {
		t.Errorf("step status = %q, want pending", p.Steps[0].Status)
	}
}
