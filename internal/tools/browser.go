package tools

import (
	"context"

	"github.com/haasonsaas/helmsman/internal/sandbox"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// BrowserToolbox drives the sandbox browser over CDP. The connection is
// established lazily on first use.
type BrowserToolbox struct {
	sb *sandbox.Session
}

func NewBrowserToolbox(sb *sandbox.Session) *BrowserToolbox {
	return &BrowserToolbox{sb: sb}
}

func (t *BrowserToolbox) Name() string { return "browser" }

func (t *BrowserToolbox) Schemas() []Schema {
	indexParam := Param{"type": "integer", "description": "(Optional) Index of the element to operate on"}
	coordXParam := Param{"type": "number", "description": "(Optional) Horizontal coordinate, mutually exclusive with index"}
	coordYParam := Param{"type": "number", "description": "(Optional) Vertical coordinate, mutually exclusive with index"}

	return []Schema{
		{
			Name:        "browser_view",
			Description: "View the content of the current browser page. Use for checking the latest state of a previously opened page.",
			Params:      map[string]Param{},
		},
		{
			Name:        "browser_navigate",
			Description: "Navigate the browser to a URL. Use when visiting a new page is needed.",
			Params: map[string]Param{
				"url": {"type": "string", "description": "Complete URL to visit, must include the protocol prefix"},
			},
			Required: []string{"url"},
		},
		{
			Name:        "browser_restart",
			Description: "Restart the browser and navigate to a URL. Use when the browser state needs to be reset.",
			Params: map[string]Param{
				"url": {"type": "string", "description": "Complete URL to visit after restart"},
			},
			Required: []string{"url"},
		},
		{
			Name:        "browser_click",
			Description: "Click on an element in the current page. Provide the element index, or coordinates when the element is not indexed.",
			Params: map[string]Param{
				"index":        indexParam,
				"coordinate_x": coordXParam,
				"coordinate_y": coordYParam,
			},
		},
		{
			Name:        "browser_input",
			Description: "Overwrite text in an editable element on the current page. Use for filling input fields.",
			Params: map[string]Param{
				"index":        indexParam,
				"coordinate_x": coordXParam,
				"coordinate_y": coordYParam,
				"text":         {"type": "string", "description": "Complete text content to input"},
				"press_enter":  {"type": "boolean", "description": "Whether to press Enter after input"},
			},
			Required: []string{"text", "press_enter"},
		},
		{
			Name:        "browser_move_mouse",
			Description: "Move the cursor to a position on the current page. Use for hover effects.",
			Params: map[string]Param{
				"coordinate_x": {"type": "number", "description": "Horizontal coordinate of the target position"},
				"coordinate_y": {"type": "number", "description": "Vertical coordinate of the target position"},
			},
			Required: []string{"coordinate_x", "coordinate_y"},
		},
		{
			Name:        "browser_press_key",
			Description: "Simulate a key press in the current page. Supports key combinations such as Control+Enter.",
			Params: map[string]Param{
				"key": {"type": "string", "description": "Key name to simulate, for example Enter, Tab, ArrowUp"},
			},
			Required: []string{"key"},
		},
		{
			Name:        "browser_select_option",
			Description: "Select an option from a dropdown list element by its index.",
			Params: map[string]Param{
				"index":  {"type": "integer", "description": "Index of the dropdown list element"},
				"option": {"type": "integer", "description": "Option index to select, starting from 0"},
			},
			Required: []string{"index", "option"},
		},
		{
			Name:        "browser_scroll_up",
			Description: "Scroll up the current page. Use to_top to jump to the page top.",
			Params: map[string]Param{
				"to_top": {"type": "boolean", "description": "(Optional) Whether to scroll directly to the page top"},
			},
		},
		{
			Name:        "browser_scroll_down",
			Description: "Scroll down the current page. Use to_bottom to jump to the page bottom.",
			Params: map[string]Param{
				"to_bottom": {"type": "boolean", "description": "(Optional) Whether to scroll directly to the page bottom"},
			},
		},
		{
			Name:        "browser_console_exec",
			Description: "Execute JavaScript in the browser console. Use for custom scripts or page inspection.",
			Params: map[string]Param{
				"javascript": {"type": "string", "description": "JavaScript code to execute"},
			},
			Required: []string{"javascript"},
		},
		{
			Name:        "browser_console_view",
			Description: "View the browser console output. Use for checking JavaScript logs and errors.",
			Params: map[string]Param{
				"max_lines": {"type": "integer", "description": "(Optional) Maximum number of log lines to return"},
			},
		},
	}
}

func (t *BrowserToolbox) Invoke(ctx context.Context, function string, args map[string]any) *models.ToolResult {
	browser, err := t.sb.Browser(ctx)
	if err != nil {
		return models.Fail(err.Error())
	}

	var index *int
	if v, ok := argInt(args, "index"); ok {
		index = &v
	}
	var x, y *float64
	if v, ok := argFloat(args, "coordinate_x"); ok {
		x = &v
	}
	if v, ok := argFloat(args, "coordinate_y"); ok {
		y = &v
	}

	switch function {
	case "browser_view":
		state, err := browser.ViewPage(ctx)
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(state)

	case "browser_navigate":
		state, err := browser.Navigate(ctx, argString(args, "url"))
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(state)

	case "browser_restart":
		state, err := browser.Restart(ctx, argString(args, "url"))
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(state)

	case "browser_click":
		if err := browser.Click(ctx, index, x, y); err != nil {
			return models.Fail(err.Error())
		}
		return models.OkMessage("clicked")

	case "browser_input":
		if err := browser.Input(ctx, argString(args, "text"), argBool(args, "press_enter"), index, x, y); err != nil {
			return models.Fail(err.Error())
		}
		return models.OkMessage("input done")

	case "browser_move_mouse":
		mx, _ := argFloat(args, "coordinate_x")
		my, _ := argFloat(args, "coordinate_y")
		if err := browser.MoveMouse(ctx, mx, my); err != nil {
			return models.Fail(err.Error())
		}
		return models.OkMessage("mouse moved")

	case "browser_press_key":
		if err := browser.PressKey(ctx, argString(args, "key")); err != nil {
			return models.Fail(err.Error())
		}
		return models.OkMessage("key pressed")

	case "browser_select_option":
		idx, _ := argInt(args, "index")
		option, _ := argInt(args, "option")
		if err := browser.SelectOption(ctx, idx, option); err != nil {
			return models.Fail(err.Error())
		}
		return models.OkMessage("option selected")

	case "browser_scroll_up":
		if err := browser.ScrollUp(ctx, argBool(args, "to_top")); err != nil {
			return models.Fail(err.Error())
		}
		return models.OkMessage("scrolled up")

	case "browser_scroll_down":
		if err := browser.ScrollDown(ctx, argBool(args, "to_bottom")); err != nil {
			return models.Fail(err.Error())
		}
		return models.OkMessage("scrolled down")

	case "browser_console_exec":
		out, err := browser.ConsoleExec(ctx, argString(args, "javascript"))
		if err != nil {
			return models.Fail(err.Error())
		}
		return models.Ok(map[string]any{"result": out})

	case "browser_console_view":
		maxLines := 100
		if v, ok := argInt(args, "max_lines"); ok {
			maxLines = v
		}
		return models.Ok(map[string]any{"logs": browser.ConsoleView(maxLines)})
	}
	return models.Fail("unknown browser function " + function)
}
