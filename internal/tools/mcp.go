package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/haasonsaas/helmsman/internal/config"
	"github.com/haasonsaas/helmsman/internal/mcp"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// MCPToolbox exposes tools from configured MCP servers. Remote tool
// names are prefixed with mcp_<server>_ so collisions between servers
// cannot occur.
type MCPToolbox struct {
	logger  *slog.Logger
	clients map[string]*mcp.Client
	// routes maps the advertised function name back to its server and
	// original tool name.
	routes map[string]mcpRoute
}

type mcpRoute struct {
	server string
	tool   string
}

func NewMCPToolbox(logger *slog.Logger) *MCPToolbox {
	return &MCPToolbox{
		logger:  logger.With("component", "mcp_tools"),
		clients: make(map[string]*mcp.Client),
		routes:  make(map[string]mcpRoute),
	}
}

// Initialize connects to every enabled server and indexes its tools.
// Servers that fail to connect are logged and skipped.
func (t *MCPToolbox) Initialize(ctx context.Context, cfg config.MCPConfig) error {
	for name, server := range cfg.Servers {
		if !server.Enabled {
			continue
		}
		client := mcp.NewClient(name, server, t.logger)
		if err := client.Connect(ctx); err != nil {
			t.logger.Warn("mcp server connect failed", "server", name, "error", err)
			continue
		}
		t.clients[name] = client
		for _, tool := range client.Tools() {
			t.routes[mcpToolName(name, tool.Name)] = mcpRoute{server: name, tool: tool.Name}
		}
	}
	return nil
}

// Cleanup closes every connected server. Idempotent.
func (t *MCPToolbox) Cleanup() {
	for name, client := range t.clients {
		if err := client.Close(); err != nil {
			t.logger.Warn("mcp server close failed", "server", name, "error", err)
		}
	}
	t.clients = make(map[string]*mcp.Client)
	t.routes = make(map[string]mcpRoute)
}

func (t *MCPToolbox) Name() string { return "mcp" }

func (t *MCPToolbox) Schemas() []Schema {
	var out []Schema
	for name, client := range t.clients {
		for _, tool := range client.Tools() {
			schema := Schema{
				Name:        mcpToolName(name, tool.Name),
				Description: tool.Description,
			}
			schema.Params, schema.Required = paramsFromJSONSchema(tool.InputSchema)
			out = append(out, schema)
		}
	}
	return out
}

func (t *MCPToolbox) Invoke(ctx context.Context, function string, args map[string]any) *models.ToolResult {
	route, ok := t.routes[function]
	if !ok {
		return models.Fail("unknown mcp tool " + function)
	}
	client, ok := t.clients[route.server]
	if !ok {
		return models.Fail("mcp server " + route.server + " is not connected")
	}
	result, err := client.CallTool(ctx, route.tool, args)
	if err != nil {
		return models.Fail(err.Error())
	}
	if result.IsError {
		return models.Fail(result.Text())
	}
	return models.OkMessage(result.Text())
}

// mcpToolName builds the advertised function name. Tools that already
// carry the mcp_ prefix keep it as-is.
func mcpToolName(server, tool string) string {
	if strings.HasPrefix(tool, "mcp_") {
		return tool
	}
	return "mcp_" + server + "_" + tool
}

// paramsFromJSONSchema flattens an MCP input schema into the registry's
// parameter map. Unparseable schemas degrade to no declared parameters.
func paramsFromJSONSchema(raw json.RawMessage) (map[string]Param, []string) {
	if len(raw) == 0 {
		return nil, nil
	}
	var schema struct {
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, nil
	}
	if len(schema.Properties) == 0 {
		return nil, schema.Required
	}
	params := make(map[string]Param, len(schema.Properties))
	for name, prop := range schema.Properties {
		params[name] = Param(prop)
	}
	return params, schema.Required
}
