package a2a

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/helmsman/internal/config"
)

func newAgentServer(t *testing.T, name string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var selfURL string
	mux.HandleFunc("/.well-known/agent-card.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"name":        name,
			"description": "test agent",
			"url":         selfURL + "/rpc",
			"version":     "1.0",
		})
	})
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JSONRPC string `json:"jsonrpc"`
			ID      string `json:"id"`
			Method  string `json:"method"`
			Params  struct {
				Message struct {
					MessageID string `json:"messageId"`
					Role      string `json:"role"`
					Parts     []struct {
						Kind string `json:"kind"`
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"message"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc: %v", err)
			return
		}
		if req.Method != "message/send" || req.JSONRPC != "2.0" {
			t.Errorf("unexpected rpc envelope: %+v", req)
		}
		if req.Params.Message.Role != "user" || len(req.Params.Message.Parts) != 1 {
			t.Errorf("unexpected message: %+v", req.Params.Message)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"echo": req.Params.Message.Parts[0].Text},
		})
	})
	srv := httptest.NewServer(mux)
	selfURL = srv.URL
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_InitializeAndSend(t *testing.T) {
	srv := newAgentServer(t, "researcher")
	client := NewClient(slog.New(slog.DiscardHandler))

	err := client.Initialize(context.Background(), []config.A2AServerConfig{
		{ID: "researcher", BaseURL: srv.URL},
		{ID: "broken", BaseURL: "http://127.0.0.1:1"},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	cards := client.Cards()
	if len(cards) != 1 {
		t.Fatalf("cards = %v, want only the reachable agent", cards)
	}
	if cards["researcher"].Name != "researcher" {
		t.Errorf("card = %+v", cards["researcher"])
	}

	result, err := client.SendMessage(context.Background(), "researcher", "summarize the report")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	var parsed map[string]string
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if parsed["echo"] != "summarize the report" {
		t.Errorf("result = %v", parsed)
	}
}

func TestClient_SendToUnknownAgent(t *testing.T) {
	client := NewClient(slog.New(slog.DiscardHandler))
	if _, err := client.SendMessage(context.Background(), "nope", "hi"); err == nil {
		t.Error("SendMessage to unknown agent = nil error")
	}
}

func TestClient_CleanupIdempotent(t *testing.T) {
	srv := newAgentServer(t, "a")
	client := NewClient(slog.New(slog.DiscardHandler))
	client.Initialize(context.Background(), []config.A2AServerConfig{{ID: "a", BaseURL: srv.URL}})

	client.Cleanup()
	client.Cleanup()
	if len(client.Cards()) != 0 {
		t.Error("cards not cleared")
	}
}
