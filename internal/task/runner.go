package task

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/haasonsaas/helmsman/internal/a2a"
	"github.com/haasonsaas/helmsman/internal/agent"
	"github.com/haasonsaas/helmsman/internal/config"
	"github.com/haasonsaas/helmsman/internal/flow"
	"github.com/haasonsaas/helmsman/internal/llm"
	"github.com/haasonsaas/helmsman/internal/sandbox"
	"github.com/haasonsaas/helmsman/internal/search"
	"github.com/haasonsaas/helmsman/internal/session"
	"github.com/haasonsaas/helmsman/internal/storage"
	"github.com/haasonsaas/helmsman/internal/tools"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// AgentRunner executes a session's agent flow: it drains user messages
// from the task input queue, runs the planner/executor flow, enriches
// and persists every event, and mirrors files between storage and the
// sandbox.
type AgentRunner struct {
	sessionID string
	repo      session.Repository
	files     storage.FileStorage
	sb        *sandbox.Session
	engine    search.Engine
	llmClient llm.LLM
	cfg       config.AgentConfig
	mcpConfig config.MCPConfig
	a2aConfig config.A2AConfig
	logger    *slog.Logger

	mcp       *tools.MCPToolbox
	a2aClient *a2a.Client

	plannerMemory  *models.Memory
	executorMemory *models.Memory
}

// AgentRunnerParams wires an AgentRunner.
type AgentRunnerParams struct {
	SessionID string
	Repo      session.Repository
	Files     storage.FileStorage
	Sandbox   *sandbox.Session
	Engine    search.Engine
	LLM       llm.LLM
	Agent     config.AgentConfig
	MCP       config.MCPConfig
	A2A       config.A2AConfig
	Logger    *slog.Logger
}

func NewAgentRunner(p AgentRunnerParams) *AgentRunner {
	logger := p.Logger.With("component", "runner", "session_id", p.SessionID)
	return &AgentRunner{
		sessionID: p.SessionID,
		repo:      p.Repo,
		files:     p.Files,
		sb:        p.Sandbox,
		engine:    p.Engine,
		llmClient: p.LLM,
		cfg:       p.Agent,
		mcpConfig: p.MCP,
		a2aConfig: p.A2A,
		logger:    logger,
		mcp:       tools.NewMCPToolbox(logger),
		a2aClient: a2a.NewClient(logger),
	}
}

// Run processes every queued user message through the flow. It returns
// when the input queue is drained, the flow paused for user input, or
// ctx was cancelled.
func (r *AgentRunner) Run(ctx context.Context, t *Task) error {
	r.logger.Info("task starting", "task_id", t.ID())

	if err := r.sb.EnsureReady(ctx); err != nil {
		r.finish(t, models.NewErrorEvent("sandbox unavailable: "+err.Error()))
		return err
	}
	if err := r.mcp.Initialize(ctx, r.mcpConfig); err != nil {
		r.logger.Warn("mcp initialization failed", "error", err)
	}
	if err := r.a2aClient.Initialize(ctx, r.a2aConfig.Servers); err != nil {
		r.logger.Warn("a2a initialization failed", "error", err)
	}

	f, err := r.buildFlow(ctx)
	if err != nil {
		r.finish(t, models.NewErrorEvent(err.Error()))
		return err
	}

	for {
		if size, err := t.Input().Size(ctx); err != nil || size == 0 {
			break
		}
		inbound, err := r.popMessage(ctx, t)
		if err != nil {
			r.finish(t, models.NewErrorEvent(err.Error()))
			return err
		}
		if inbound == nil {
			continue
		}

		suspended, err := r.runFlow(ctx, t, f, inbound)
		r.saveMemories()
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-run: close the stream cleanly.
				r.finish(t, models.NewDoneEvent())
				return nil
			}
			r.finish(t, models.NewErrorEvent(err.Error()))
			return err
		}
		if suspended {
			return nil
		}
	}

	detachedCtx := context.WithoutCancel(ctx)
	if err := r.repo.UpdateStatus(detachedCtx, r.sessionID, models.SessionCompleted); err != nil {
		r.logger.Error("status update failed", "error", err)
	}
	r.logger.Info("task finished", "task_id", t.ID())
	return nil
}

// Destroy releases the sandbox and remote tool connections.
func (r *AgentRunner) Destroy(ctx context.Context) {
	if err := r.sb.Destroy(ctx); err != nil {
		r.logger.Warn("sandbox destroy failed", "error", err)
	}
	r.mcp.Cleanup()
	r.a2aClient.Cleanup()
}

// buildFlow assembles the toolset and agents with the session's
// persisted memories.
func (r *AgentRunner) buildFlow(ctx context.Context) (*flow.Flow, error) {
	plannerMemory, err := r.repo.GetMemory(ctx, r.sessionID, "planner")
	if err != nil {
		return nil, err
	}
	executorMemory, err := r.repo.GetMemory(ctx, r.sessionID, "executor")
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry(
		tools.NewShellToolbox(r.sb),
		tools.NewFileToolbox(r.sb),
		tools.NewBrowserToolbox(r.sb),
		tools.NewSearchToolbox(r.engine),
		tools.NewMessageToolbox(),
		r.mcp,
		tools.NewA2AToolbox(r.a2aClient),
	)

	r.plannerMemory = plannerMemory
	r.executorMemory = executorMemory
	planner := agent.NewPlanner(r.cfg, r.llmClient, registry, plannerMemory, r.logger)
	executor := agent.NewExecutor(r.cfg, r.llmClient, registry, executorMemory, r.logger)
	return flow.New(r.sessionID, r.repo, planner, executor, r.logger), nil
}

// popMessage takes the next inbound message event off the input queue
// and syncs its attachments into the sandbox.
func (r *AgentRunner) popMessage(ctx context.Context, t *Task) (*models.Message, error) {
	_, payload, err := t.Input().Pop(ctx)
	if err != nil {
		return nil, err
	}
	if payload == "" {
		return nil, nil
	}

	var event models.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		r.logger.Warn("undecodable input event", "error", err)
		return nil, nil
	}
	if event.Type != models.EventTypeMessage || event.Message == nil {
		r.logger.Warn("unexpected input event", "type", event.Type)
		return nil, nil
	}

	inbound := &models.Message{Message: event.Message.Message}
	for _, attachment := range event.Message.Attachments {
		file, err := r.syncFileToSandbox(ctx, attachment)
		if err != nil {
			r.logger.Error("attachment sync failed", "file_id", attachment.ID, "error", err)
			continue
		}
		inbound.Attachments = append(inbound.Attachments, file.Filepath)
	}
	return inbound, nil
}

// runFlow feeds one message through the flow, persisting and enriching
// every event. It reports whether the run suspended on a wait event.
func (r *AgentRunner) runFlow(ctx context.Context, t *Task, f *flow.Flow, inbound *models.Message) (bool, error) {
	if inbound.Message == "" {
		r.putEvent(ctx, t, models.NewErrorEvent("empty message"))
		return false, nil
	}

	for event := range f.Invoke(ctx, inbound) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		switch event.Type {
		case models.EventTypeTool:
			r.enrichToolEvent(ctx, event)
		case models.EventTypeMessage:
			r.syncMessageAttachmentsToStorage(ctx, event)
		case models.EventTypePlan:
			if err := r.repo.SavePlan(ctx, r.sessionID, event.Plan.Plan); err != nil {
				r.logger.Error("plan save failed", "error", err)
			}
		}

		r.putEvent(ctx, t, event)

		switch event.Type {
		case models.EventTypeTitle:
			if err := r.repo.UpdateTitle(ctx, r.sessionID, event.Title.Title); err != nil {
				r.logger.Error("title update failed", "error", err)
			}
		case models.EventTypeMessage:
			if event.Message.Role == models.RoleAssistant {
				if err := r.repo.UpdateLatestMessage(ctx, r.sessionID, event.Message.Message, event.CreatedAt); err != nil {
					r.logger.Error("latest message update failed", "error", err)
				}
				if err := r.repo.IncrementUnread(ctx, r.sessionID); err != nil {
					r.logger.Error("unread increment failed", "error", err)
				}
			}
		case models.EventTypeWait:
			if err := r.repo.UpdateStatus(ctx, r.sessionID, models.SessionWaiting); err != nil {
				r.logger.Error("status update failed", "error", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// putEvent appends the event to the output queue and the session's
// history under the queue-assigned id.
func (r *AgentRunner) putEvent(ctx context.Context, t *Task, event *models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("event marshal failed", "error", err)
		return
	}
	id, err := t.Output().Put(ctx, string(payload))
	if err != nil {
		r.logger.Error("event publish failed", "error", err)
		return
	}
	event.ID = id
	if err := r.repo.AddEvent(ctx, r.sessionID, event); err != nil {
		r.logger.Error("event persist failed", "error", err)
	}
}

// finish publishes a terminal event and marks the session completed,
// even when the surrounding context is already cancelled.
func (r *AgentRunner) finish(t *Task, event *models.Event) {
	ctx := context.Background()
	r.putEvent(ctx, t, event)
	if err := r.repo.UpdateStatus(ctx, r.sessionID, models.SessionCompleted); err != nil {
		r.logger.Error("status update failed", "error", err)
	}
}

func (r *AgentRunner) saveMemories() {
	ctx := context.Background()
	if err := r.repo.SaveMemory(ctx, r.sessionID, "planner", r.plannerMemory); err != nil {
		r.logger.Error("planner memory save failed", "error", err)
	}
	if err := r.repo.SaveMemory(ctx, r.sessionID, "executor", r.executorMemory); err != nil {
		r.logger.Error("executor memory save failed", "error", err)
	}
}

// syncFileToSandbox copies a stored upload into the sandbox upload
// directory and records it on the session.
func (r *AgentRunner) syncFileToSandbox(ctx context.Context, file *models.File) (*models.File, error) {
	content, meta, err := r.files.Get(ctx, file.Key)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	name := file.FileName
	if name == "" {
		name = meta.FileName
	}
	filepath := path.Join(sandbox.DefaultUploadDir, name)
	if err := r.sb.UploadFile(ctx, content, filepath, name); err != nil {
		return nil, err
	}

	file.Filepath = filepath
	if err := r.repo.AddFile(ctx, r.sessionID, file); err != nil {
		return nil, err
	}
	return file, nil
}

// syncFileToStorage copies a sandbox file into storage so it survives
// the sandbox and records it on the session, replacing any previous
// version of the same path.
func (r *AgentRunner) syncFileToStorage(ctx context.Context, filepath string) (*models.File, error) {
	content, err := r.sb.DownloadFile(ctx, filepath)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	if previous, err := r.repo.GetFileByPath(ctx, r.sessionID, filepath); err == nil {
		if err := r.repo.RemoveFile(ctx, r.sessionID, previous.ID); err != nil {
			r.logger.Warn("stale file removal failed", "filepath", filepath, "error", err)
		}
	}

	name := path.Base(filepath)
	meta, err := r.files.Put(ctx, name, content)
	if err != nil {
		return nil, err
	}

	file := models.NewFile()
	file.FileName = name
	file.Filepath = filepath
	file.Key = meta.Key
	file.Size = meta.Size
	file.Extension = path.Ext(name)
	if err := r.repo.AddFile(ctx, r.sessionID, file); err != nil {
		return nil, err
	}
	return file, nil
}

func (r *AgentRunner) syncMessageAttachmentsToStorage(ctx context.Context, event *models.Event) {
	if event.Message == nil || len(event.Message.Attachments) == 0 {
		return
	}
	synced := make([]*models.File, 0, len(event.Message.Attachments))
	for _, attachment := range event.Message.Attachments {
		file, err := r.syncFileToStorage(ctx, attachment.Filepath)
		if err != nil {
			r.logger.Error("attachment storage sync failed", "filepath", attachment.Filepath, "error", err)
			continue
		}
		synced = append(synced, file)
	}
	event.Message.Attachments = synced
}

// enrichToolEvent attaches display content to called tool events: a
// screenshot for browser tools, console history for shell tools, file
// content for file tools, and raw results for search, MCP, and A2A.
func (r *AgentRunner) enrichToolEvent(ctx context.Context, event *models.Event) {
	tool := event.Tool
	if tool == nil || tool.Status != models.ToolCalled {
		return
	}

	switch tool.ToolName {
	case "browser":
		key, err := r.browserScreenshot(ctx)
		if err != nil {
			r.logger.Warn("screenshot failed", "error", err)
			return
		}
		tool.ToolContent = &models.ToolContent{Type: "browser", Screenshot: key}

	case "search":
		if tool.FunctionResult == nil {
			return
		}
		if results, ok := tool.FunctionResult.Data.(*search.Results); ok {
			tool.ToolContent = &models.ToolContent{Type: "search", Results: results.Results}
		}

	case "shell":
		shellID, _ := tool.FunctionArgs["id"].(string)
		if shellID == "" {
			tool.ToolContent = &models.ToolContent{Type: "shell", Console: "(no console)"}
			return
		}
		view, err := r.sb.ReadShellOutput(ctx, shellID, true)
		if err != nil {
			r.logger.Warn("console read failed", "shell_id", shellID, "error", err)
			return
		}
		tool.ToolContent = &models.ToolContent{Type: "shell", Console: view.ConsoleRecords}

	case "file":
		filepath, _ := tool.FunctionArgs["file"].(string)
		if filepath == "" {
			tool.ToolContent = &models.ToolContent{Type: "file", Content: "(no content)"}
			return
		}
		read, err := r.sb.ReadFile(ctx, filepath, nil, nil, false, 0)
		if err != nil {
			r.logger.Warn("file read failed", "filepath", filepath, "error", err)
			return
		}
		tool.ToolContent = &models.ToolContent{Type: "file", Content: read.Content}
		if _, err := r.syncFileToStorage(ctx, filepath); err != nil {
			r.logger.Warn("file storage sync failed", "filepath", filepath, "error", err)
		}

	case "mcp", "a2a":
		if tool.FunctionResult == nil {
			tool.ToolContent = &models.ToolContent{Type: tool.ToolName, Result: "(no result)"}
			return
		}
		result := tool.FunctionResult.Data
		if result == nil {
			result = tool.FunctionResult.Message
		}
		tool.ToolContent = &models.ToolContent{Type: tool.ToolName, Result: result}
	}
}

// browserScreenshot captures the current page and stores it, returning
// the storage key.
func (r *AgentRunner) browserScreenshot(ctx context.Context) (string, error) {
	browser, err := r.sb.Browser(ctx)
	if err != nil {
		return "", err
	}
	shot, err := browser.Screenshot(ctx, false)
	if err != nil {
		return "", err
	}
	meta, err := r.files.Put(ctx, uuid.NewString()+".png", bytes.NewReader(shot))
	if err != nil {
		return "", err
	}
	return meta.Key, nil
}
