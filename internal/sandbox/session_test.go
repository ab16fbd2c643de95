package sandbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestSession(t *testing.T, mux *http.ServeMux) *Session {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	s := newSession("test-sandbox", "127.0.0.1", slog.New(slog.DiscardHandler))
	s.baseURL = srv.URL
	return s
}

func respond(w http.ResponseWriter, code int, msg string, data any) {
	json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg, "data": data})
}

func TestSession_ExecCommand(t *testing.T) {
	mux := http.NewServeMux()
	var gotBody execCommandRequest
	mux.HandleFunc("/shell/exec-command", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		respond(w, 0, "success", ShellExecResult{
			SessionID: gotBody.SessionID,
			Command:   gotBody.Command,
			Status:    "running",
		})
	})

	s := newTestSession(t, mux)
	result, err := s.ExecCommand(context.Background(), "sess-1", "/home/ubuntu", "ls -la")
	if err != nil {
		t.Fatalf("ExecCommand: %v", err)
	}
	if gotBody.ExecDir != "/home/ubuntu" || gotBody.Command != "ls -la" {
		t.Errorf("request body = %+v", gotBody)
	}
	if result.Status != "running" || result.SessionID != "sess-1" {
		t.Errorf("result = %+v", result)
	}
}

func TestSession_EnvelopeError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/file/read-file", func(w http.ResponseWriter, r *http.Request) {
		respond(w, 1, "file does not exist", nil)
	})

	s := newTestSession(t, mux)
	if _, err := s.ReadFile(context.Background(), "/tmp/missing", nil, nil, false, 10000); err == nil {
		t.Error("ReadFile on error envelope = nil error")
	}
}

func TestSession_ReadFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/file/read-file", func(w http.ResponseWriter, r *http.Request) {
		var req fileReadRequest
		json.NewDecoder(r.Body).Decode(&req)
		respond(w, 0, "ok", FileReadResult{Filepath: req.Filepath, Content: "hello\nworld"})
	})

	s := newTestSession(t, mux)
	result, err := s.ReadFile(context.Background(), "/home/ubuntu/out.txt", nil, nil, false, 10000)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if result.Content != "hello\nworld" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestSession_EnsureReady(t *testing.T) {
	oldInterval := readyInterval
	readyInterval = time.Millisecond
	t.Cleanup(func() { readyInterval = oldInterval })

	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/supervisor/status", func(w http.ResponseWriter, r *http.Request) {
		calls++
		state := "STARTING"
		if calls >= 2 {
			state = "RUNNING"
		}
		respond(w, 0, "ok", []ProcessInfo{
			{Name: "chrome", State: "RUNNING"},
			{Name: "api", State: state},
		})
	})

	s := newTestSession(t, mux)
	if err := s.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if calls < 2 {
		t.Errorf("expected at least 2 polls, got %d", calls)
	}
}

func TestSession_UploadFile(t *testing.T) {
	mux := http.NewServeMux()
	var gotFilename, gotFilepath, gotContent string
	mux.HandleFunc("/file/upload-file", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotFilepath = r.FormValue("filepath")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			respond(w, 1, "bad upload", nil)
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		data, _ := io.ReadAll(file)
		gotContent = string(data)
		respond(w, 0, "ok", nil)
	})

	s := newTestSession(t, mux)
	err := s.UploadFile(context.Background(), strings.NewReader("file body"), "/home/ubuntu/upload/data.csv", "data.csv")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if gotFilename != "data.csv" || gotFilepath != "/home/ubuntu/upload/data.csv" {
		t.Errorf("filename = %q, filepath = %q", gotFilename, gotFilepath)
	}
	if gotContent != "file body" {
		t.Errorf("content = %q", gotContent)
	}
}

