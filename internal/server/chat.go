package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/haasonsaas/helmsman/internal/apperr"
	"github.com/haasonsaas/helmsman/internal/sandbox"
	"github.com/haasonsaas/helmsman/internal/task"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// chatPollInterval bounds one Tail call on the task output stream.
const chatPollInterval = time.Second

// chatRequest is the chat endpoint body. Attachments are file ids from
// the upload endpoint. EventID resumes the stream after the given event;
// empty replays the task output from the beginning.
type chatRequest struct {
	Message     string   `json:"message"`
	Attachments []string `json:"attachments"`
	EventID     string   `json:"event_id"`
	Timestamp   int64    `json:"timestamp"`
}

// handleChat accepts a user message, ensures a task is running for the
// session, and streams the resulting events back over SSE. With an empty
// message it reattaches to the live task's stream instead.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	ctx := r.Context()
	sess, err := s.repo.GetByID(ctx, r.PathValue("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		s.writeError(w, err)
		return
	}

	t, _ := s.tasks.Get(sess.TaskID)
	if req.Message != "" {
		if t, err = s.ensureTask(ctx, sess, t); err != nil {
			s.failChat(ctx, sse, sess.ID, err)
			return
		}
		if err := s.enqueueMessage(ctx, sess.ID, t, &req); err != nil {
			s.failChat(ctx, sse, sess.ID, err)
			return
		}
		t.Start()
	}
	if t == nil {
		s.failChat(ctx, sse, sess.ID, apperr.NotFound("session %s has no active task", sess.ID))
		return
	}

	s.streamTask(ctx, sse, sess.ID, t, req.EventID)
}

// ensureTask returns a task ready to process messages, creating one with
// a fresh runner when the session has none live. The session's sandbox is
// reused across tasks.
func (s *Server) ensureTask(ctx context.Context, sess *models.Session, current *task.Task) (*task.Task, error) {
	if sess.Status == models.SessionRunning && current != nil && !current.Done() {
		return current, nil
	}

	sb, err := s.sessionSandboxOrCreate(ctx, sess)
	if err != nil {
		return nil, err
	}
	runner := task.NewAgentRunner(task.AgentRunnerParams{
		SessionID: sess.ID,
		Repo:      s.repo,
		Files:     s.files,
		Sandbox:   sb,
		Engine:    s.engine,
		LLM:       s.llmClient,
		Agent:     s.agentCfg,
		MCP:       s.mcpCfg,
		A2A:       s.a2aCfg,
		Logger:    s.logger,
	})
	t := s.tasks.Create(runner)

	sess.TaskID = t.ID()
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Server) sessionSandboxOrCreate(ctx context.Context, sess *models.Session) (*sandbox.Session, error) {
	if sess.SandboxID != "" {
		if sb, err := s.sandboxes.Get(ctx, sess.SandboxID); err == nil {
			return sb, nil
		}
		s.logger.Warn("sandbox lost, provisioning a new one", "session_id", sess.ID, "sandbox_id", sess.SandboxID)
	}
	sb, err := s.sandboxes.Create(ctx)
	if err != nil {
		return nil, err
	}
	sess.SandboxID = sb.ID()
	return sb, nil
}

// enqueueMessage records the user message on the session and pushes it
// onto the task input queue.
func (s *Server) enqueueMessage(ctx context.Context, sessionID string, t *task.Task, req *chatRequest) error {
	at := time.Now()
	if req.Timestamp > 0 {
		at = time.Unix(req.Timestamp, 0)
	}
	if err := s.repo.UpdateLatestMessage(ctx, sessionID, req.Message, at); err != nil {
		return err
	}

	attachments := make([]*models.File, 0, len(req.Attachments))
	for _, id := range req.Attachments {
		attachments = append(attachments, &models.File{ID: id, Key: id})
	}
	event := models.NewMessageEvent(models.RoleUser, req.Message, attachments...)

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	id, err := t.Input().Put(ctx, string(payload))
	if err != nil {
		return err
	}
	event.ID = id
	return s.repo.AddEvent(ctx, sessionID, event)
}

// streamTask relays task output events to the client, starting after
// afterID, until a terminal event or the task ends.
func (s *Server) streamTask(ctx context.Context, sse *sseWriter, sessionID string, t *task.Task, afterID string) {
	// Everything produced while the client was attached counts as read,
	// including events the runner persisted after the last delivery.
	// Detached from the request context so a disconnect cannot abort it.
	defer func() {
		if err := s.repo.ClearUnread(context.WithoutCancel(ctx), sessionID); err != nil {
			s.logger.Warn("unread clear failed", "session_id", sessionID, "error", err)
		}
	}()

	latest := afterID
	for ctx.Err() == nil {
		id, payload, err := t.Output().Tail(ctx, latest, chatPollInterval)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("output tail failed", "session_id", sessionID, "error", err)
			}
			return
		}
		if payload == "" {
			if t.Done() {
				return
			}
			continue
		}
		latest = id

		var event models.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			s.logger.Warn("undecodable output event", "session_id", sessionID, "error", err)
			continue
		}
		event.ID = id

		// The client is watching, so nothing is unread. Detached from
		// the request context to survive stream cancellation.
		if err := s.repo.ClearUnread(context.WithoutCancel(ctx), sessionID); err != nil {
			s.logger.Warn("unread clear failed", "session_id", sessionID, "error", err)
		}

		if err := sse.writeEvent(&event); err != nil {
			return
		}
		if event.Terminal() {
			return
		}
	}
}

// failChat reports a chat setup failure through the stream and persists
// it on the session.
func (s *Server) failChat(ctx context.Context, sse *sseWriter, sessionID string, err error) {
	s.logger.Error("chat failed", "session_id", sessionID, "error", err)
	event := models.NewErrorEvent(err.Error())
	if err := s.repo.AddEvent(context.WithoutCancel(ctx), sessionID, event); err != nil {
		s.logger.Error("event persist failed", "session_id", sessionID, "error", err)
	}
	if err := sse.writeEvent(event); err != nil {
		s.logger.Warn("error event write failed", "session_id", sessionID, "error", err)
	}
}
