package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path into the defaults, expands ${VAR}
// references against the environment, applies HELMSMAN_* overrides, and
// validates the result. An empty path loads defaults plus overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies the environment variables that commonly differ
// between deployments without editing the config file.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("HELMSMAN_ADDR", &cfg.Server.Addr)
	setString("HELMSMAN_LOG_LEVEL", &cfg.Log.Level)
	setString("HELMSMAN_LOG_FORMAT", &cfg.Log.Format)
	setString("HELMSMAN_LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("HELMSMAN_LLM_API_KEY", &cfg.LLM.APIKey)
	setString("HELMSMAN_LLM_MODEL", &cfg.LLM.ModelName)
	setInt("HELMSMAN_AGENT_MAX_ITERATIONS", &cfg.Agent.MaxIterations)
	setInt("HELMSMAN_AGENT_MAX_RETRIES", &cfg.Agent.MaxRetries)
	setString("HELMSMAN_SANDBOX_ADDRESS", &cfg.Sandbox.Address)
	setString("HELMSMAN_SANDBOX_IMAGE", &cfg.Sandbox.Image)
	setString("HELMSMAN_SANDBOX_NETWORK", &cfg.Sandbox.Network)
	setString("HELMSMAN_REDIS_ADDR", &cfg.Redis.Addr)
	setString("HELMSMAN_POSTGRES_DSN", &cfg.Postgres.DSN)
	setString("HELMSMAN_STORAGE_DIR", &cfg.Storage.Dir)
}
