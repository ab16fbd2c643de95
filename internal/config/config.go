// Package config loads runtime configuration from a YAML file with
// environment variable expansion and HELMSMAN_* overrides.
package config

import (
	"fmt"

	"github.com/haasonsaas/helmsman/internal/observability"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig             `yaml:"server"`
	Log      observability.LogConfig  `yaml:"log"`
	LLM      LLMConfig                `yaml:"llm"`
	Agent    AgentConfig              `yaml:"agent"`
	Search   SearchConfig             `yaml:"search"`
	Sandbox  SandboxConfig            `yaml:"sandbox"`
	Redis    RedisConfig              `yaml:"redis"`
	Postgres PostgresConfig           `yaml:"postgres"`
	Storage  StorageConfig            `yaml:"storage"`
	MCP      MCPConfig                `yaml:"mcp"`
	A2A      A2AConfig                `yaml:"a2a"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LLMConfig configures the chat-completion endpoint.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	ModelName   string  `yaml:"model_name"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AgentConfig bounds the agent loop.
type AgentConfig struct {
	MaxIterations    int `yaml:"max_iterations"`
	MaxRetries       int `yaml:"max_retries"`
	MaxSearchResults int `yaml:"max_search_results"`
}

// SearchConfig configures the web search engine.
type SearchConfig struct {
	// Engine selects the backend; only "bing" is built in.
	Engine string `yaml:"engine"`
}

// SandboxConfig configures per-session sandbox provisioning. When Address
// is set the runtime attaches to a shared sandbox instead of provisioning
// Docker containers.
type SandboxConfig struct {
	Address    string `yaml:"address"`
	Image      string `yaml:"image"`
	NamePrefix string `yaml:"name_prefix"`
	Network    string `yaml:"network"`
	TTLMinutes int    `yaml:"ttl_minutes"`
	ChromeArgs string `yaml:"chrome_args"`
	HTTPSProxy string `yaml:"https_proxy"`
	HTTPProxy  string `yaml:"http_proxy"`
	NoProxy    string `yaml:"no_proxy"`
}

// RedisConfig configures the stream-backed message queue. Empty Addr
// selects the in-process queue.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig configures session persistence. Empty DSN selects the
// in-memory repository.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// StorageConfig configures local file storage.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// MCPTransport selects how an MCP server is reached.
type MCPTransport string

const (
	MCPTransportStdio          MCPTransport = "stdio"
	MCPTransportSSE            MCPTransport = "sse"
	MCPTransportStreamableHTTP MCPTransport = "streamable_http"
)

// MCPServerConfig configures one MCP server.
type MCPServerConfig struct {
	Transport MCPTransport      `yaml:"transport"`
	Enabled   bool              `yaml:"enabled"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	URL       string            `yaml:"url"`
}

// MCPConfig is the set of configured MCP servers, keyed by server name.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `yaml:"servers"`
}

// A2AServerConfig configures one remote A2A agent endpoint.
type A2AServerConfig struct {
	ID      string `yaml:"id"`
	BaseURL string `yaml:"base_url"`
}

// A2AConfig is the list of configured A2A servers.
type A2AConfig struct {
	Servers []A2AServerConfig `yaml:"servers"`
}

// Default returns the configuration used when fields are unset.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8000"},
		Log:    observability.LogConfig{Level: "info", Format: "text"},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			ModelName:   "gpt-4o",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Agent: AgentConfig{
			MaxIterations:    30,
			MaxRetries:       3,
			MaxSearchResults: 10,
		},
		Search: SearchConfig{Engine: "bing"},
		Sandbox: SandboxConfig{
			Image:      "helmsman-sandbox:latest",
			NamePrefix: "helmsman-sandbox",
			TTLMinutes: 60,
		},
		Storage: StorageConfig{Dir: "/var/lib/helmsman/files"},
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations < 1 || c.Agent.MaxIterations > 999 {
		return fmt.Errorf("agent.max_iterations %d out of range [1,999]", c.Agent.MaxIterations)
	}
	if c.Agent.MaxRetries < 2 || c.Agent.MaxRetries > 9 {
		return fmt.Errorf("agent.max_retries %d out of range [2,9]", c.Agent.MaxRetries)
	}
	if c.Agent.MaxSearchResults < 2 || c.Agent.MaxSearchResults > 29 {
		return fmt.Errorf("agent.max_search_results %d out of range [2,29]", c.Agent.MaxSearchResults)
	}
	if c.LLM.ModelName == "" {
		return fmt.Errorf("llm.model_name is required")
	}
	for name, server := range c.MCP.Servers {
		switch server.Transport {
		case MCPTransportStdio:
			if server.Command == "" {
				return fmt.Errorf("mcp server %q: command is required for stdio transport", name)
			}
		case MCPTransportSSE, MCPTransportStreamableHTTP:
			if server.URL == "" {
				return fmt.Errorf("mcp server %q: url is required for %s transport", name, server.Transport)
			}
		default:
			return fmt.Errorf("mcp server %q: unsupported transport %q", name, server.Transport)
		}
	}
	return nil
}
