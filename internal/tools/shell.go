package tools

import (
	"context"

	"github.com/haasonsaas/helmsman/internal/sandbox"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// ShellToolbox exposes the sandbox shell sessions.
type ShellToolbox struct {
	sb *sandbox.Session
}

func NewShellToolbox(sb *sandbox.Session) *ShellToolbox {
	return &ShellToolbox{sb: sb}
}

func (t *ShellToolbox) Name() string { return "shell" }

func (t *ShellToolbox) Schemas() []Schema {
	return []Schema{
		{
			Name:        "shell_exec",
			Description: "Execute a command in a named shell session. Use for running code, installing packages, or managing files.",
			Params: map[string]Param{
				"id":       {"type": "string", "description": "Unique identifier of the target shell session"},
				"exec_dir": {"type": "string", "description": "Working directory for command execution (absolute path)"},
				"command":  {"type": "string", "description": "Shell command to execute"},
			},
			Required: []string{"id", "exec_dir", "command"},
		},
		{
			Name:        "shell_view",
			Description: "View the latest output of a shell session. Use to check command results or monitor long-running processes.",
			Params: map[string]Param{
				"id": {"type": "string", "description": "Unique identifier of the target shell session"},
			},
			Required: []string{"id"},
		},
		{
			Name:        "shell_wait",
			Description: "Wait for the running process in a shell session to return. Use after starting commands that take a while.",
			Params: map[string]Param{
				"id":      {"type": "string", "description": "Unique identifier of the target shell session"},
				"seconds": {"type": "integer", "description": "Wait duration in seconds"},
			},
			Required: []string{"id"},
		},
		{
			Name:        "shell_write_to_process",
			Description: "Write input to the running process in a shell session. Use to respond to interactive prompts.",
			Params: map[string]Param{
				"id":          {"type": "string", "description": "Unique identifier of the target shell session"},
				"input":       {"type": "string", "description": "Input content to write to the process"},
				"press_enter": {"type": "boolean", "description": "Whether to press Enter after writing"},
			},
			Required: []string{"id", "input", "press_enter"},
		},
		{
			Name:        "shell_kill_process",
			Description: "Terminate the running process in a shell session. Use to stop long-running or hung processes.",
			Params: map[string]Param{
				"id": {"type": "string", "description": "Unique identifier of the target shell session"},
			},
			Required: []string{"id"},
		},
	}
}

func (t *ShellToolbox) Invoke(ctx context.Context, function string, args map[string]any) *models.ToolResult {
	sessionID := argString(args, "id")

	switch function {
	case "shell_exec":
		execDir := argString(args, "exec_dir")
		if execDir == "" {
			execDir = sandbox.DefaultWorkDir
		}
		result, err := t.sb.ExecCommand(ctx, sessionID, execDir, argString(args, "command"))
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)

	case "shell_view":
		result, err := t.sb.ReadShellOutput(ctx, sessionID, false)
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)

	case "shell_wait":
		var seconds *int
		if v, ok := argInt(args, "seconds"); ok {
			seconds = &v
		}
		result, err := t.sb.WaitProcess(ctx, sessionID, seconds)
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)

	case "shell_write_to_process":
		result, err := t.sb.WriteShellInput(ctx, sessionID, argString(args, "input"), argBool(args, "press_enter"))
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)

	case "shell_kill_process":
		result, err := t.sb.KillProcess(ctx, sessionID)
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)
	}
	return models.Fail("unknown shell function " + function)
}
