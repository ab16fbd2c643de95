package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haasonsaas/helmsman/internal/config"
)

const protocolVersion = "2024-11-05"

// Client talks to a single MCP server: initialize handshake, cached
// tool listing, and tool calls.
type Client struct {
	name      string
	transport Transport
	logger    *slog.Logger

	mu         sync.RWMutex
	tools      []*Tool
	serverInfo ServerInfo
}

func NewClient(name string, cfg config.MCPServerConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:      name,
		transport: NewTransport(name, cfg),
		logger:    logger.With("mcp_server", name),
	}
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.name }

// Connect establishes the transport and performs the initialize
// handshake.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("transport connect: %w", err)
	}

	result, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "helmsman",
			"version": "1.0.0",
		},
	})
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	var initResult initializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		c.transport.Close()
		return fmt.Errorf("parse initialize result: %w", err)
	}
	c.mu.Lock()
	c.serverInfo = initResult.ServerInfo
	c.mu.Unlock()

	c.logger.Info("connected to MCP server",
		"name", initResult.ServerInfo.Name,
		"version", initResult.ServerInfo.Version,
		"protocol", initResult.ProtocolVersion)

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("initialized notification failed", "error", err)
	}

	if err := c.refreshTools(ctx); err != nil {
		c.logger.Warn("tool listing failed", "error", err)
	}
	return nil
}

// Close shuts down the transport. Idempotent.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Connected reports whether the transport is usable.
func (c *Client) Connected() bool {
	return c.transport.Connected()
}

// ServerInfo returns the identity reported during initialize.
func (c *Client) ServerInfo() ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

func (c *Client) refreshTools(ctx context.Context) error {
	result, err := c.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		return err
	}
	var resp listToolsResult
	if err := json.Unmarshal(result, &resp); err != nil {
		return fmt.Errorf("parse tools/list result: %w", err)
	}
	c.mu.Lock()
	c.tools = resp.Tools
	c.mu.Unlock()
	c.logger.Debug("listed tools", "count", len(resp.Tools))
	return nil
}

// Tools returns the cached tool list from connect time.
func (c *Client) Tools() []*Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// CallTool invokes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error) {
	params := callToolParams{Name: name}
	if arguments != nil {
		encoded, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}
		params.Arguments = encoded
	}

	result, err := c.transport.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}
	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("parse tools/call result: %w", err)
	}
	return &callResult, nil
}
