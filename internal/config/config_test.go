package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Agent.MaxIterations != 30 {
		t.Errorf("max_iterations = %d", cfg.Agent.MaxIterations)
	}
}

func TestLoad_FileAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "sk-test")
	path := writeConfig(t, `
llm:
  base_url: https://llm.internal/v1
  api_key: ${TEST_LLM_KEY}
  model_name: test-model
agent:
  max_iterations: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api_key = %q, want expanded env value", cfg.LLM.APIKey)
	}
	if cfg.LLM.ModelName != "test-model" {
		t.Errorf("model_name = %q", cfg.LLM.ModelName)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("max_iterations = %d", cfg.Agent.MaxIterations)
	}
	// Unset fields keep defaults.
	if cfg.Agent.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want default 3", cfg.Agent.MaxRetries)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HELMSMAN_LLM_MODEL", "override-model")
	t.Setenv("HELMSMAN_AGENT_MAX_ITERATIONS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.ModelName != "override-model" {
		t.Errorf("model_name = %q", cfg.LLM.ModelName)
	}
	if cfg.Agent.MaxIterations != 7 {
		t.Errorf("max_iterations = %d", cfg.Agent.MaxIterations)
	}
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"iterations too low", func(c *Config) { c.Agent.MaxIterations = 0 }},
		{"iterations too high", func(c *Config) { c.Agent.MaxIterations = 1000 }},
		{"retries too low", func(c *Config) { c.Agent.MaxRetries = 1 }},
		{"retries too high", func(c *Config) { c.Agent.MaxRetries = 10 }},
		{"search results too low", func(c *Config) { c.Agent.MaxSearchResults = 1 }},
		{"missing model", func(c *Config) { c.LLM.ModelName = "" }},
		{"stdio without command", func(c *Config) {
			c.MCP.Servers = map[string]MCPServerConfig{"s": {Transport: MCPTransportStdio, Enabled: true}}
		}},
		{"sse without url", func(c *Config) {
			c.MCP.Servers = map[string]MCPServerConfig{"s": {Transport: MCPTransportSSE, Enabled: true}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
