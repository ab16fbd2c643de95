package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/helmsman/pkg/models"
)

type fakeToolbox struct {
	name    string
	schemas []Schema
	calls   []map[string]any
}

func (f *fakeToolbox) Name() string      { return f.name }
func (f *fakeToolbox) Schemas() []Schema { return f.schemas }
func (f *fakeToolbox) Invoke(_ context.Context, function string, args map[string]any) *models.ToolResult {
	f.calls = append(f.calls, args)
	return models.OkMessage(f.name + ":" + function)
}

func TestRegistry_Dispatch(t *testing.T) {
	first := &fakeToolbox{name: "first", schemas: []Schema{{Name: "do_one"}}}
	second := &fakeToolbox{name: "second", schemas: []Schema{{Name: "do_two"}}}
	r := NewRegistry(first, second)

	result, err := r.Invoke(context.Background(), "do_two", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !result.Success || result.Message != "second:do_two" {
		t.Errorf("result = %+v", result)
	}
	if len(second.calls) != 1 || len(first.calls) != 0 {
		t.Errorf("dispatch went to the wrong toolbox")
	}

	if _, err := r.Invoke(context.Background(), "missing", nil); err == nil {
		t.Error("Invoke(missing) = nil error")
	}
}

func TestRegistry_FiltersUndeclaredArgs(t *testing.T) {
	tb := &fakeToolbox{name: "file", schemas: []Schema{{
		Name: "file_read",
		Params: map[string]Param{
			"file": {"type": "string"},
			"sudo": {"type": "boolean"},
		},
		Required: []string{"file"},
	}}}
	r := NewRegistry(tb)

	_, err := r.Invoke(context.Background(), "file_read", map[string]any{
		"file":         "/tmp/a.txt",
		"sudo":         true,
		"hallucinated": "ignore me",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	got := tb.calls[0]
	if _, ok := got["hallucinated"]; ok {
		t.Error("undeclared argument passed through")
	}
	if got["file"] != "/tmp/a.txt" || got["sudo"] != true {
		t.Errorf("declared arguments lost: %v", got)
	}
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	a := &fakeToolbox{name: "a", schemas: []Schema{{Name: "shared"}}}
	b := &fakeToolbox{name: "b", schemas: []Schema{{Name: "shared"}}}
	r := NewRegistry(a, b)

	result, err := r.Invoke(context.Background(), "shared", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Message != "b:shared" {
		t.Errorf("message = %q, want dispatch to last registered", result.Message)
	}
}

func TestSchema_Parameters(t *testing.T) {
	s := Schema{
		Name: "x",
		Params: map[string]Param{
			"q": {"type": "string", "description": "query"},
		},
	}
	params := s.Parameters()
	if params["type"] != "object" {
		t.Errorf("type = %v", params["type"])
	}
	required, ok := params["required"].([]string)
	if !ok || required == nil {
		t.Errorf("required must be a non-nil slice, got %v", params["required"])
	}
	// The rendered block must survive JSON encoding for the LLM API.
	if _, err := json.Marshal(params); err != nil {
		t.Fatalf("marshal parameters: %v", err)
	}
}

func TestRegistry_LLMTools(t *testing.T) {
	tb := &fakeToolbox{name: "search", schemas: []Schema{{
		Name:        "search_web",
		Description: "search",
		Params:      map[string]Param{"query": {"type": "string"}},
		Required:    []string{"query"},
	}}}
	r := NewRegistry(tb)

	llmTools := r.LLMTools()
	if len(llmTools) != 1 {
		t.Fatalf("len = %d", len(llmTools))
	}
	if llmTools[0].Name != "search_web" || llmTools[0].Description != "search" {
		t.Errorf("tool = %+v", llmTools[0])
	}
}

func TestMCPToolName(t *testing.T) {
	tests := []struct {
		server, tool, want string
	}{
		{"github", "create_issue", "mcp_github_create_issue"},
		{"github", "mcp_already_prefixed", "mcp_already_prefixed"},
	}
	for _, tt := range tests {
		if got := mcpToolName(tt.server, tt.tool); got != tt.want {
			t.Errorf("mcpToolName(%q, %q) = %q, want %q", tt.server, tt.tool, got, tt.want)
		}
	}
}

func TestParamsFromJSONSchema(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "file path"},
			"depth": {"type": "integer"}
		},
		"required": ["path"]
	}`)
	params, required := paramsFromJSONSchema(raw)
	if len(params) != 2 {
		t.Fatalf("params = %v", params)
	}
	if params["path"]["type"] != "string" {
		t.Errorf("path param = %v", params["path"])
	}
	if len(required) != 1 || required[0] != "path" {
		t.Errorf("required = %v", required)
	}

	if p, _ := paramsFromJSONSchema(json.RawMessage(`not json`)); p != nil {
		t.Errorf("invalid schema should yield nil params, got %v", p)
	}
	if p, _ := paramsFromJSONSchema(nil); p != nil {
		t.Errorf("empty schema should yield nil params, got %v", p)
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"s":      "hello",
		"b":      true,
		"bs":     "true",
		"f":      float64(42),
		"i":      7,
		"coords": 3.5,
	}
	if argString(args, "s") != "hello" || argString(args, "missing") != "" {
		t.Error("argString")
	}
	if !argBool(args, "b") || !argBool(args, "bs") || argBool(args, "missing") {
		t.Error("argBool")
	}
	if v, ok := argInt(args, "f"); !ok || v != 42 {
		t.Errorf("argInt(f) = %d, %v", v, ok)
	}
	if v, ok := argInt(args, "i"); !ok || v != 7 {
		t.Errorf("argInt(i) = %d, %v", v, ok)
	}
	if _, ok := argInt(args, "s"); ok {
		t.Error("argInt on string should fail")
	}
	if v, ok := argFloat(args, "coords"); !ok || v != 3.5 {
		t.Errorf("argFloat = %v, %v", v, ok)
	}
}
