// Package server exposes the HTTP API: session lifecycle, the chat SSE
// stream, file upload/download, the sandbox shell view, and the VNC
// websocket proxy.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/haasonsaas/helmsman/internal/apperr"
	"github.com/haasonsaas/helmsman/internal/config"
	"github.com/haasonsaas/helmsman/internal/llm"
	"github.com/haasonsaas/helmsman/internal/sandbox"
	"github.com/haasonsaas/helmsman/internal/search"
	"github.com/haasonsaas/helmsman/internal/session"
	"github.com/haasonsaas/helmsman/internal/storage"
	"github.com/haasonsaas/helmsman/internal/task"
)

// Server holds the wired dependencies behind the HTTP handlers.
type Server struct {
	repo      session.Repository
	files     storage.FileStorage
	sandboxes *sandbox.Manager
	tasks     *task.Manager
	llmClient llm.LLM
	engine    search.Engine
	agentCfg  config.AgentConfig
	mcpCfg    config.MCPConfig
	a2aCfg    config.A2AConfig
	logger    *slog.Logger
}

// Params wires a Server.
type Params struct {
	Repo      session.Repository
	Files     storage.FileStorage
	Sandboxes *sandbox.Manager
	Tasks     *task.Manager
	LLM       llm.LLM
	Engine    search.Engine
	Agent     config.AgentConfig
	MCP       config.MCPConfig
	A2A       config.A2AConfig
	Logger    *slog.Logger
}

func New(p Params) *Server {
	return &Server{
		repo:      p.Repo,
		files:     p.Files,
		sandboxes: p.Sandboxes,
		tasks:     p.Tasks,
		llmClient: p.LLM,
		engine:    p.Engine,
		agentCfg:  p.Agent,
		mcpCfg:    p.MCP,
		a2aCfg:    p.A2A,
		logger:    p.Logger.With("component", "server"),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("POST /sessions/stream", s.handleSessionStream)
	mux.HandleFunc("GET /sessions/{session_id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{session_id}/chat", s.handleChat)
	mux.HandleFunc("POST /sessions/{session_id}/stop", s.handleStop)
	mux.HandleFunc("POST /sessions/{session_id}/clear-unread-message-count", s.handleClearUnread)
	mux.HandleFunc("POST /sessions/{session_id}/delete", s.handleDeleteSession)
	mux.HandleFunc("GET /sessions/{session_id}/files", s.handleSessionFiles)
	mux.HandleFunc("POST /sessions/{session_id}/file", s.handleFileRead)
	mux.HandleFunc("POST /sessions/{session_id}/shell", s.handleShellView)
	mux.HandleFunc("GET /sessions/{session_id}/vnc", s.handleVNC)

	mux.HandleFunc("POST /files", s.handleUploadFile)
	mux.HandleFunc("GET /files/{file_id}", s.handleFileInfo)
	mux.HandleFunc("GET /files/{file_id}/download", s.handleFileDownload)

	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.BadRequest("decode request body: %v", err)
	}
	return nil
}
