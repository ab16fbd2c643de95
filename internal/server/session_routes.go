package server

import (
	"context"
	"net/http"
	"time"

	"github.com/haasonsaas/helmsman/internal/apperr"
	"github.com/haasonsaas/helmsman/internal/sandbox"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// sessionStreamInterval is how often the session list stream refreshes.
const sessionStreamInterval = 5 * time.Second

// sessionSummary is the list-view shape of a session.
type sessionSummary struct {
	SessionID          string               `json:"session_id"`
	Title              string               `json:"title"`
	LatestMessage      string               `json:"latest_message"`
	LatestMessageAt    int64                `json:"latest_message_at"`
	Status             models.SessionStatus `json:"status"`
	UnreadMessageCount int                  `json:"unread_message_count"`
}

func toSessionSummary(s *models.Session) sessionSummary {
	var at int64
	if !s.LatestMessageAt.IsZero() {
		at = s.LatestMessageAt.Unix()
	}
	return sessionSummary{
		SessionID:          s.ID,
		Title:              s.Title,
		LatestMessage:      s.LatestMessage,
		LatestMessageAt:    at,
		Status:             s.Status,
		UnreadMessageCount: s.UnreadMessageCount,
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := models.NewSession("")
	if err := s.repo.Save(r.Context(), sess); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("session created", "session_id", sess.ID)
	s.writeJSON(w, http.StatusOK, map[string]string{"session_id": sess.ID})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.sessionSummaries(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

// handleSessionStream pushes the session list as an SSE stream so the
// client can render unread counts and status changes without polling.
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	sse, err := newSSEWriter(w)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(sessionStreamInterval)
	defer ticker.Stop()
	for {
		summaries, err := s.sessionSummaries(ctx)
		if err != nil {
			s.logger.Error("session list failed", "error", err)
			return
		}
		if err := sse.Write("sessions", map[string]any{"sessions": summaries}); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) sessionSummaries(ctx context.Context) ([]sessionSummary, error) {
	sessions, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, toSessionSummary(sess))
	}
	return summaries, nil
}

// handleGetSession returns a session with its full event history in the
// same shape the chat stream uses.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.repo.GetByID(r.Context(), r.PathValue("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	events := make([]*sseEvent, 0, len(sess.Events))
	for _, event := range sess.Events {
		mapped, err := toSSEEvent(event)
		if err != nil {
			s.logger.Warn("event mapping failed", "event_id", event.ID, "error", err)
			continue
		}
		events = append(events, mapped)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"title":      sess.Title,
		"status":     sess.Status,
		"events":     events,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sess, err := s.repo.GetByID(r.Context(), r.PathValue("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if t, ok := s.tasks.Get(sess.TaskID); ok {
		if t.Cancel() {
			s.logger.Info("session stopped", "session_id", sess.ID, "task_id", t.ID())
		} else {
			s.logger.Debug("stop with no live run", "session_id", sess.ID, "task_id", t.ID())
		}
	} else {
		s.logger.Debug("stop with no task", "session_id", sess.ID, "task_id", sess.TaskID)
	}
	// A stop ends the session even when the run already returned, e.g.
	// one suspended on a wait event.
	if err := s.repo.UpdateStatus(r.Context(), sess.ID, models.SessionCompleted); err != nil {
		s.logger.Error("status update failed", "session_id", sess.ID, "error", err)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleClearUnread(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.ClearUnread(r.Context(), r.PathValue("session_id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.repo.GetByID(ctx, r.PathValue("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if t, ok := s.tasks.Get(sess.TaskID); ok {
		t.Cancel()
		s.tasks.Remove(t.ID())
	}
	if sess.SandboxID != "" {
		if sb, err := s.sandboxes.Get(ctx, sess.SandboxID); err == nil {
			if err := sb.Destroy(ctx); err != nil {
				s.logger.Warn("sandbox destroy failed", "sandbox_id", sess.SandboxID, "error", err)
			}
		}
	}
	if err := s.repo.Delete(ctx, sess.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("session deleted", "session_id", sess.ID)
	s.writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleSessionFiles(w http.ResponseWriter, r *http.Request) {
	sess, err := s.repo.GetByID(r.Context(), r.PathValue("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	files := sess.Files
	if files == nil {
		files = []*models.File{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// handleFileRead returns the content of a file inside the session's
// sandbox.
func (s *Server) handleFileRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		File string `json:"file"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.File == "" {
		s.writeError(w, apperr.Validation("file is required"))
		return
	}

	ctx := r.Context()
	sb, err := s.sessionSandbox(ctx, r.PathValue("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	read, err := sb.ReadFile(ctx, req.File, nil, nil, false, 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, read)
}

// handleShellView returns the console history of one sandbox shell.
func (s *Server) handleShellView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShellID string `json:"shell_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ShellID == "" {
		s.writeError(w, apperr.Validation("shell_id is required"))
		return
	}

	ctx := r.Context()
	sb, err := s.sessionSandbox(ctx, r.PathValue("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	view, err := sb.ReadShellOutput(ctx, req.ShellID, true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// sessionSandbox resolves the sandbox a session is bound to.
func (s *Server) sessionSandbox(ctx context.Context, sessionID string) (*sandbox.Session, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.SandboxID == "" {
		return nil, apperr.NotFound("session %s has no sandbox", sessionID)
	}
	return s.sandboxes.Get(ctx, sess.SandboxID)
}
