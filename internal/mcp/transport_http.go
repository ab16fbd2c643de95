package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/helmsman/internal/config"
)

// HTTPTransport reaches an MCP server over HTTP. Each Call is one POST
// carrying a JSON-RPC request; this covers both the sse and
// streamable_http server configurations.
type HTTPTransport struct {
	name   string
	config config.MCPServerConfig
	logger *slog.Logger
	client *http.Client

	connected atomic.Bool
	closeOnce sync.Once
}

func NewHTTPTransport(name string, cfg config.MCPServerConfig) *HTTPTransport {
	return &HTTPTransport{
		name:   name,
		config: cfg,
		logger: slog.Default().With("mcp_server", name, "transport", string(cfg.Transport)),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTransport) Connect(ctx context.Context) error {
	if t.config.URL == "" {
		return fmt.Errorf("url is required for %s transport", t.config.Transport)
	}
	t.connected.Store(true)
	t.logger.Info("http transport ready", "url", t.config.URL)
	return nil
}

func (t *HTTPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.connected.Store(false)
		t.client.CloseIdleConnections()
	})
	return nil
}

func (t *HTTPTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}

	req := JSONRPCRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = encoded
	}

	resp, err := t.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("mcp error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func (t *HTTPTransport) Notify(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}
	notif := JSONRPCNotification{JSONRPC: "2.0", Method: method}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = encoded
	}
	resp, err := t.post(ctx, notif)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (t *HTTPTransport) Connected() bool {
	return t.connected.Load()
}

func (t *HTTPTransport) post(ctx context.Context, payload any) (*http.Response, error) {
	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	return resp, nil
}
