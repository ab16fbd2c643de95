package mcp

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/helmsman/internal/config"
)

// Transport carries JSON-RPC messages to one MCP server.
type Transport interface {
	// Connect establishes the transport connection.
	Connect(ctx context.Context) error

	// Close closes the transport connection. Idempotent.
	Close() error

	// Call sends a request and waits for the response.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Notify sends a notification (no response expected).
	Notify(ctx context.Context, method string, params any) error

	// Connected reports whether the transport is usable.
	Connected() bool
}

// NewTransport selects the transport for a server configuration.
func NewTransport(name string, cfg config.MCPServerConfig) Transport {
	switch cfg.Transport {
	case config.MCPTransportSSE, config.MCPTransportStreamableHTTP:
		return NewHTTPTransport(name, cfg)
	default:
		return NewStdioTransport(name, cfg)
	}
}
