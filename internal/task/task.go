// Package task runs agent work in the background. A Task pairs a runner
// with durable input and output queues; the Manager tracks live tasks
// so chat handlers can attach to them.
package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/helmsman/internal/stream"
)

// Runner executes one task's work loop.
type Runner interface {
	// Run drains the task's input queue and writes events to its
	// output queue. It returns when the input is exhausted, the task
	// pauses for user input, or ctx is cancelled.
	Run(ctx context.Context, t *Task) error
	// Destroy releases the runner's resources (sandbox, MCP, A2A).
	Destroy(ctx context.Context)
}

// Task is one background agent run bound to a session.
type Task struct {
	id     string
	runner Runner
	input  stream.Queue
	output stream.Queue

	manager *Manager
	cancel  context.CancelFunc

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// ID returns the task id.
func (t *Task) ID() string { return t.id }

// Input is the queue of inbound user messages.
func (t *Task) Input() stream.Queue { return t.input }

// Output is the queue of session events produced by the run.
func (t *Task) Output() stream.Queue { return t.output }

// Start launches the runner in the background. Repeated calls while the
// run is live are no-ops.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started && !t.doneLocked() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.started = true
	t.done = make(chan struct{})

	go func() {
		defer close(t.done)
		defer cancel()
		if err := t.runner.Run(ctx, t); err != nil && ctx.Err() == nil {
			t.manager.logger.Error("task run failed", "task_id", t.id, "error", err)
		}
	}()
}

// Cancel aborts a live run. It reports whether anything was cancelled.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.doneLocked() {
		return false
	}
	t.cancel()
	return true
}

// Done reports whether the task has no live run.
func (t *Task) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneLocked()
}

func (t *Task) doneLocked() bool {
	if !t.started {
		return true
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Manager creates tasks and tracks the live ones by id.
type Manager struct {
	factory stream.Factory
	logger  *slog.Logger

	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewManager(factory stream.Factory, logger *slog.Logger) *Manager {
	return &Manager{
		factory: factory,
		logger:  logger.With("component", "task"),
		tasks:   make(map[string]*Task),
	}
}

// Create registers a new task with fresh input and output queues.
func (m *Manager) Create(runner Runner) *Task {
	id := uuid.NewString()
	t := &Task{
		id:      id,
		runner:  runner,
		input:   m.factory.Queue("task:input:" + id),
		output:  m.factory.Queue("task:output:" + id),
		manager: m,
	}
	m.mu.Lock()
	m.tasks[id] = t
	m.mu.Unlock()
	m.logger.Info("task created", "task_id", id)
	return t
}

// Get returns a tracked task.
func (m *Manager) Get(id string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Remove drops a task from tracking.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.tasks, id)
	m.mu.Unlock()
}

// DestroyAll cancels every live task and releases its runner.
func (m *Manager) DestroyAll(ctx context.Context) {
	m.mu.Lock()
	tasks := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.tasks = make(map[string]*Task)
	m.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
		t.runner.Destroy(ctx)
	}
}
