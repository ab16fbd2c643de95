package tools

import (
	"context"

	"github.com/haasonsaas/helmsman/internal/sandbox"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// FileToolbox exposes the sandbox filesystem.
type FileToolbox struct {
	sb *sandbox.Session
}

func NewFileToolbox(sb *sandbox.Session) *FileToolbox {
	return &FileToolbox{sb: sb}
}

func (t *FileToolbox) Name() string { return "file" }

func (t *FileToolbox) Schemas() []Schema {
	return []Schema{
		{
			Name:        "file_read",
			Description: "Read file content in the sandbox. Use for checking file contents, analyzing logs, or reading configuration files.",
			Params: map[string]Param{
				"file":       {"type": "string", "description": "Absolute path of the file to read"},
				"start_line": {"type": "integer", "description": "(Optional) Starting line to read from, 0-based"},
				"end_line":   {"type": "integer", "description": "(Optional) Ending line number (exclusive)"},
				"sudo":       {"type": "boolean", "description": "(Optional) Whether to use sudo privileges"},
			},
			Required: []string{"file"},
		},
		{
			Name:        "file_write",
			Description: "Overwrite or append content to a file in the sandbox. Use for creating new files, appending content, or modifying existing files.",
			Params: map[string]Param{
				"file":             {"type": "string", "description": "Absolute path of the file to write to"},
				"content":          {"type": "string", "description": "Text content to write"},
				"append":           {"type": "boolean", "description": "(Optional) Whether to use append mode"},
				"leading_newline":  {"type": "boolean", "description": "(Optional) Whether to add a leading newline"},
				"trailing_newline": {"type": "boolean", "description": "(Optional) Whether to add a trailing newline"},
				"sudo":             {"type": "boolean", "description": "(Optional) Whether to use sudo privileges"},
			},
			Required: []string{"file", "content"},
		},
		{
			Name:        "file_str_replace",
			Description: "Replace a specified string in a file. Use for updating specific content or fixing errors in code.",
			Params: map[string]Param{
				"file":    {"type": "string", "description": "Absolute path of the file to perform replacement on"},
				"old_str": {"type": "string", "description": "Original string to be replaced"},
				"new_str": {"type": "string", "description": "New string to replace with"},
				"sudo":    {"type": "boolean", "description": "(Optional) Whether to use sudo privileges"},
			},
			Required: []string{"file", "old_str", "new_str"},
		},
		{
			Name:        "file_find_in_content",
			Description: "Search for matching text within file content. Use for finding specific content or patterns in files.",
			Params: map[string]Param{
				"file":  {"type": "string", "description": "Absolute path of the file to search within"},
				"regex": {"type": "string", "description": "Regular expression pattern to match"},
				"sudo":  {"type": "boolean", "description": "(Optional) Whether to use sudo privileges"},
			},
			Required: []string{"file", "regex"},
		},
		{
			Name:        "file_find_by_name",
			Description: "Find files by name pattern in a directory. Use for locating files with specific naming patterns.",
			Params: map[string]Param{
				"path": {"type": "string", "description": "Absolute path of the directory to search"},
				"glob": {"type": "string", "description": "Filename pattern using glob syntax wildcards"},
			},
			Required: []string{"path", "glob"},
		},
	}
}

func (t *FileToolbox) Invoke(ctx context.Context, function string, args map[string]any) *models.ToolResult {
	switch function {
	case "file_read":
		var start, end *int
		if v, ok := argInt(args, "start_line"); ok {
			start = &v
		}
		if v, ok := argInt(args, "end_line"); ok {
			end = &v
		}
		result, err := t.sb.ReadFile(ctx, argString(args, "file"), start, end, argBool(args, "sudo"), 10000)
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)

	case "file_write":
		result, err := t.sb.WriteFile(ctx,
			argString(args, "file"),
			argString(args, "content"),
			argBool(args, "append"),
			argBool(args, "leading_newline"),
			argBool(args, "trailing_newline"),
			argBool(args, "sudo"),
		)
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)

	case "file_str_replace":
		result, err := t.sb.ReplaceInFile(ctx,
			argString(args, "file"),
			argString(args, "old_str"),
			argString(args, "new_str"),
			argBool(args, "sudo"),
		)
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)

	case "file_find_in_content":
		result, err := t.sb.SearchInFile(ctx, argString(args, "file"), argString(args, "regex"), argBool(args, "sudo"))
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)

	case "file_find_by_name":
		result, err := t.sb.FindFiles(ctx, argString(args, "path"), argString(args, "glob"))
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(result)
	}
	return models.Fail("unknown file function " + function)
}
