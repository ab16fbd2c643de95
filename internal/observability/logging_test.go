package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	logger.Info("sandbox ready", "sandbox_id", "sb-1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "sandbox ready" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["sandbox_id"] != "sb-1" {
		t.Errorf("sandbox_id = %v", record["sandbox_id"])
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info output not filtered: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn output missing: %q", out)
	}
}

func TestRedactAttr(t *testing.T) {
	a := redactAttr(nil, slog.String("detail", "request failed: api_key=sk-12345 rejected"))
	if strings.Contains(a.Value.String(), "sk-12345") {
		t.Errorf("secret not redacted: %q", a.Value.String())
	}
}
