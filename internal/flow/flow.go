// Package flow orchestrates the planner and executor agents over one
// session: create a plan, execute its steps one at a time, revise the
// plan after each step, and summarize when nothing is left.
package flow

import (
	"context"
	"iter"
	"log/slog"

	"github.com/haasonsaas/helmsman/internal/agent"
	"github.com/haasonsaas/helmsman/internal/session"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// Status is the flow state machine.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusPlanning    Status = "planning"
	StatusExecuting   Status = "executing"
	StatusUpdating    Status = "updating"
	StatusSummarizing Status = "summarizing"
	StatusCompleted   Status = "completed"
)

// Flow drives one session's plan-execute-summarize cycle. It is not
// safe for concurrent Invoke calls; the task runner serializes them.
type Flow struct {
	sessionID string
	repo      session.Repository
	planner   *agent.Planner
	executor  *agent.Executor
	logger    *slog.Logger

	status Status
	plan   *models.Plan
}

func New(sessionID string, repo session.Repository, planner *agent.Planner, executor *agent.Executor, logger *slog.Logger) *Flow {
	return &Flow{
		sessionID: sessionID,
		repo:      repo,
		planner:   planner,
		executor:  executor,
		logger:    logger.With("component", "flow", "session_id", sessionID),
		status:    StatusIdle,
	}
}

// Status returns the current state.
func (f *Flow) Status() Status { return f.status }

// Done reports whether the flow is between runs.
func (f *Flow) Done() bool { return f.status == StatusIdle }

// Invoke processes one user message and yields the resulting event
// stream, ending with a done event. Failures surface as error events.
// Abandoning the sequence early (on a wait event or a stop) suspends
// the flow; the next Invoke resumes from the session's persisted state.
func (f *Flow) Invoke(ctx context.Context, message *models.Message) iter.Seq[*models.Event] {
	return func(yield func(*models.Event) bool) {
		sess, err := f.repo.GetByID(ctx, f.sessionID)
		if err != nil {
			yield(models.NewErrorEvent(err.Error()))
			return
		}

		// A session that already ran holds conversation state; repair
		// the agent memories so the new message continues it cleanly.
		if sess.Status != models.SessionPending {
			f.planner.RollBackForMessage(message)
			f.executor.RollBackForMessage(message)
		}
		switch sess.Status {
		case models.SessionRunning:
			// A message during execution triggers a replan.
			f.status = StatusPlanning
		case models.SessionWaiting:
			f.status = StatusExecuting
		}

		if err := f.repo.UpdateStatus(ctx, f.sessionID, models.SessionRunning); err != nil {
			yield(models.NewErrorEvent(err.Error()))
			return
		}
		f.plan = sess.LatestPlan()
		if f.plan == nil && f.status == StatusExecuting {
			f.status = StatusPlanning
		}

		var step *models.Step
		for {
			switch f.status {
			case StatusIdle:
				f.status = StatusPlanning

			case StatusPlanning:
				for event := range f.planner.CreatePlan(ctx, message) {
					if event.Type == models.EventTypePlan && event.Plan.Status == models.PlanCreated {
						f.plan = event.Plan.Plan
						if !yield(models.NewTitleEvent(f.plan.Title)) {
							return
						}
						if !yield(models.NewMessageEvent(models.RoleAssistant, f.plan.Message)) {
							return
						}
					}
					if !yield(event) {
						return
					}
				}
				f.status = StatusExecuting
				if f.plan == nil || len(f.plan.Steps) == 0 {
					f.status = StatusCompleted
				}

			case StatusExecuting:
				f.plan.Status = models.ExecutionRunning
				step = f.plan.NextStep()
				if step == nil {
					f.status = StatusSummarizing
					continue
				}
				f.logger.Info("executing step", "step_id", step.ID, "description", step.Description)
				for event := range f.executor.ExecuteStep(ctx, f.plan, step, message) {
					if !yield(event) {
						return
					}
				}
				// Page snapshots from the finished step are stale now.
				f.executor.CompactMemory()
				f.status = StatusUpdating

			case StatusUpdating:
				for event := range f.planner.UpdatePlan(ctx, f.plan, step) {
					if !yield(event) {
						return
					}
				}
				f.status = StatusExecuting

			case StatusSummarizing:
				for event := range f.executor.Summarize(ctx) {
					if !yield(event) {
						return
					}
				}
				f.status = StatusCompleted

			case StatusCompleted:
				f.status = StatusIdle
				if f.plan != nil {
					f.plan.Status = models.ExecutionCompleted
					if !yield(models.NewPlanEvent(f.plan, models.PlanCompleted)) {
						return
					}
				}
				yield(models.NewDoneEvent())
				return
			}
		}
	}
}
