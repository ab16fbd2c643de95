// Package sandbox manages the per-conversation isolated environment:
// container provisioning, the shell/file HTTP surface exposed inside the
// container, and the headless browser reached over CDP.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/haasonsaas/helmsman/internal/apperr"
)

// Service ports inside the sandbox container.
const (
	apiPort = 8081
	vncPort = 5901
	cdpPort = 9222
)

// Shell and upload defaults inside the container.
const (
	DefaultWorkDir   = "/home/ubuntu"
	DefaultUploadDir = "/home/ubuntu/upload"
)

// Readiness polling schedule against /supervisor/status. Vars so tests
// can shorten the schedule.
var (
	readyAttempts = 30
	readyInterval = 2 * time.Second
)

// Session is a handle to one sandbox environment. All methods proxy to
// the HTTP API inside the container; the browser is connected lazily and
// reused.
type Session struct {
	id      string
	baseURL string
	cdpURL  string
	vncURL  string

	client *http.Client
	logger *slog.Logger

	// set when this process provisioned the container and owns teardown
	containerID string
	manager     *Manager

	browserMu sync.Mutex
	browser   *Browser
}

func newSession(id, ip string, logger *slog.Logger) *Session {
	return &Session{
		id:      id,
		baseURL: fmt.Sprintf("http://%s:%d", ip, apiPort),
		cdpURL:  fmt.Sprintf("http://%s:%d", ip, cdpPort),
		vncURL:  fmt.Sprintf("ws://%s:%d", ip, vncPort),
		// Long-running shell waits ride on this client.
		client: &http.Client{Timeout: 600 * time.Second},
		logger: logger,
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) CDPURL() string { return s.cdpURL }
func (s *Session) VNCURL() string { return s.vncURL }

// EnsureReady polls the supervisor until every service reports RUNNING.
func (s *Session) EnsureReady(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < readyAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readyInterval):
			}
		}

		processes, err := postJSON[[]ProcessInfo](ctx, s, http.MethodGet, "/supervisor/status", nil)
		if err != nil {
			lastErr = err
			continue
		}
		if allRunning(processes) {
			return nil
		}
		lastErr = fmt.Errorf("services not all running")
	}
	return apperr.Server("sandbox %s not ready: %v", s.id, lastErr)
}

func allRunning(processes []ProcessInfo) bool {
	if len(processes) == 0 {
		return false
	}
	for _, p := range processes {
		if p.State != "RUNNING" {
			return false
		}
	}
	return true
}

// Browser returns the shared browser for this sandbox, connecting on
// first use.
func (s *Session) Browser(ctx context.Context) (*Browser, error) {
	s.browserMu.Lock()
	defer s.browserMu.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}
	b := NewBrowser(s.cdpURL, s.logger)
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}
	s.browser = b
	return b, nil
}

// Destroy releases the browser and, when this process provisioned the
// container, removes it. Idempotent.
func (s *Session) Destroy(ctx context.Context) error {
	s.browserMu.Lock()
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	s.browserMu.Unlock()

	if s.manager != nil && s.containerID != "" {
		if err := s.manager.removeContainer(ctx, s.containerID); err != nil {
			return err
		}
		s.containerID = ""
	}
	return nil
}

// Shell operations.

func (s *Session) ExecCommand(ctx context.Context, sessionID, execDir, command string) (*ShellExecResult, error) {
	return postJSONPtr[ShellExecResult](ctx, s, "/shell/exec-command", execCommandRequest{
		SessionID: sessionID,
		ExecDir:   execDir,
		Command:   command,
	})
}

func (s *Session) ReadShellOutput(ctx context.Context, sessionID string, console bool) (*ShellViewResult, error) {
	return postJSONPtr[ShellViewResult](ctx, s, "/shell/view-shell", viewShellRequest{
		SessionID: sessionID,
		Console:   console,
	})
}

func (s *Session) WaitProcess(ctx context.Context, sessionID string, seconds *int) (*ShellWaitResult, error) {
	return postJSONPtr[ShellWaitResult](ctx, s, "/shell/wait-for-process", waitForProcessRequest{
		SessionID: sessionID,
		Seconds:   seconds,
	})
}

func (s *Session) WriteShellInput(ctx context.Context, sessionID, text string, pressEnter bool) (*ShellWriteResult, error) {
	return postJSONPtr[ShellWriteResult](ctx, s, "/shell/write-to-process", writeToProcessRequest{
		SessionID:  sessionID,
		InputText:  text,
		PressEnter: pressEnter,
	})
}

func (s *Session) KillProcess(ctx context.Context, sessionID string) (*ShellKillResult, error) {
	return postJSONPtr[ShellKillResult](ctx, s, "/shell/kill-process", killProcessRequest{SessionID: sessionID})
}

// File operations.

func (s *Session) ReadFile(ctx context.Context, filepath string, startLine, endLine *int, sudo bool, maxLength int) (*FileReadResult, error) {
	return postJSONPtr[FileReadResult](ctx, s, "/file/read-file", fileReadRequest{
		Filepath:  filepath,
		StartLine: startLine,
		EndLine:   endLine,
		Sudo:      sudo,
		MaxLength: maxLength,
	})
}

func (s *Session) WriteFile(ctx context.Context, filepath, content string, appendMode, leadingNewline, trailingNewline, sudo bool) (*FileWriteResult, error) {
	return postJSONPtr[FileWriteResult](ctx, s, "/file/write-file", fileWriteRequest{
		Filepath:        filepath,
		Content:         content,
		Append:          appendMode,
		LeadingNewline:  leadingNewline,
		TrailingNewline: trailingNewline,
		Sudo:            sudo,
	})
}

func (s *Session) ReplaceInFile(ctx context.Context, filepath, oldText, newText string, sudo bool) (*FileReplaceResult, error) {
	return postJSONPtr[FileReplaceResult](ctx, s, "/file/replace-in-file", fileReplaceRequest{
		Filepath: filepath,
		OldText:  oldText,
		NewText:  newText,
		Sudo:     sudo,
	})
}

func (s *Session) SearchInFile(ctx context.Context, filepath, regex string, sudo bool) (*FileSearchResult, error) {
	return postJSONPtr[FileSearchResult](ctx, s, "/file/search-in-file", fileSearchRequest{
		Filepath: filepath,
		Regex:    regex,
		Sudo:     sudo,
	})
}

func (s *Session) FindFiles(ctx context.Context, dirPath, glob string) (*FileFindResult, error) {
	return postJSONPtr[FileFindResult](ctx, s, "/file/find-files", fileFindRequest{
		DirPath:     dirPath,
		GlobPattern: glob,
	})
}

func (s *Session) FileExists(ctx context.Context, filepath string) (*FileCheckResult, error) {
	return postJSONPtr[FileCheckResult](ctx, s, "/file/check-file-exists", filePathRequest{Filepath: filepath})
}

func (s *Session) DeleteFile(ctx context.Context, filepath string) (*FileDeleteResult, error) {
	return postJSONPtr[FileDeleteResult](ctx, s, "/file/delete-file", filePathRequest{Filepath: filepath})
}

// UploadFile streams data into filepath inside the sandbox.
func (s *Session) UploadFile(ctx context.Context, data io.Reader, filepath, filename string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, data); err != nil {
		return fmt.Errorf("copy upload body: %w", err)
	}
	if err := mw.WriteField("filepath", filepath); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/file/upload-file", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sandbox upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return apperr.Server("sandbox upload: status %d", resp.StatusCode)
	}
	var envelope apiResponse[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("sandbox upload: decode: %w", err)
	}
	if envelope.Code != 0 {
		return apperr.Server("sandbox upload: %s", envelope.Msg)
	}
	return nil
}

// DownloadFile streams filepath out of the sandbox. The caller closes
// the returned reader.
func (s *Session) DownloadFile(ctx context.Context, filepath string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/file/download-file?filepath="+url.QueryEscape(filepath), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox download: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, apperr.NotFound("file %s not found in sandbox", filepath)
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, apperr.Server("sandbox download: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// postJSONPtr is postJSON for endpoints whose data is a struct.
func postJSONPtr[T any](ctx context.Context, s *Session, path string, body any) (*T, error) {
	data, err := postJSON[T](ctx, s, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func postJSON[T any](ctx context.Context, s *Session, method, path string, body any) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return zero, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return zero, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("sandbox %s: %w", path, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return zero, fmt.Errorf("sandbox %s: decode: %w", path, err)
	}
	if resp.StatusCode/100 != 2 || envelope.Code != 0 {
		msg := envelope.Msg
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound || envelope.Code == http.StatusNotFound {
			return zero, apperr.NotFound("sandbox %s: %s", path, msg)
		}
		return zero, apperr.Server("sandbox %s: %s", path, msg)
	}
	return envelope.Data, nil
}
