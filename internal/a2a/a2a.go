// Package a2a implements the Agent-to-Agent client: discovery of remote
// agent cards and message delivery over JSON-RPC.
package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/helmsman/internal/apperr"
	"github.com/haasonsaas/helmsman/internal/config"
)

const agentCardPath = "/.well-known/agent-card.json"

// AgentCard is the remote agent's published descriptor. Unrecognized
// fields are preserved in Raw for the model to inspect.
type AgentCard struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url"`
	Version     string          `json:"version,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// Client discovers and talks to configured A2A servers.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.RWMutex
	cards map[string]*AgentCard
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With("component", "a2a"),
		cards:      make(map[string]*AgentCard),
	}
}

// Initialize fetches each configured server's agent card. Servers that
// fail discovery are logged and skipped.
func (c *Client) Initialize(ctx context.Context, servers []config.A2AServerConfig) error {
	for _, server := range servers {
		card, err := c.fetchCard(ctx, server.BaseURL)
		if err != nil {
			c.logger.Warn("agent card fetch failed", "id", server.ID, "base_url", server.BaseURL, "error", err)
			continue
		}
		if card.URL == "" {
			card.URL = server.BaseURL
		}
		c.mu.Lock()
		c.cards[server.ID] = card
		c.mu.Unlock()
		c.logger.Info("discovered remote agent", "id", server.ID, "name", card.Name)
	}
	return nil
}

// Cards returns the discovered cards keyed by server id.
func (c *Client) Cards() map[string]*AgentCard {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*AgentCard, len(c.cards))
	for id, card := range c.cards {
		out[id] = card
	}
	return out
}

// SendMessage posts a message/send JSON-RPC call to the agent with the
// given id and returns the raw result.
func (c *Client) SendMessage(ctx context.Context, id, query string) (json.RawMessage, error) {
	c.mu.RLock()
	card, ok := c.cards[id]
	c.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("unknown remote agent %q", id)
	}

	request := map[string]any{
		"id":      uuid.NewString(),
		"jsonrpc": "2.0",
		"method":  "message/send",
		"params": map[string]any{
			"message": map[string]any{
				"messageId": strings.ReplaceAll(uuid.NewString(), "-", ""),
				"role":      "user",
				"parts": []map[string]any{
					{"kind": "text", "text": query},
				},
			},
		},
	}
	body, _ := json.Marshal(request)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, card.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send to %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperr.Server("agent %s: status %d: %s", id, resp.StatusCode, string(detail))
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", id, err)
	}
	if rpcResp.Error != nil {
		return nil, apperr.Server("agent %s: rpc error %d: %s", id, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

// Cleanup drops all discovered cards. Idempotent.
func (c *Client) Cleanup() {
	c.mu.Lock()
	c.cards = make(map[string]*AgentCard)
	c.mu.Unlock()
	c.httpClient.CloseIdleConnections()
}

func (c *Client) fetchCard(ctx context.Context, baseURL string) (*AgentCard, error) {
	url := strings.TrimSuffix(baseURL, "/") + agentCardPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var card AgentCard
	if err := json.Unmarshal(raw, &card); err != nil {
		return nil, fmt.Errorf("parse agent card: %w", err)
	}
	card.Raw = raw
	return &card, nil
}
