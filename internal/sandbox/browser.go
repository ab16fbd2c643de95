package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/haasonsaas/helmsman/internal/apperr"
)

const (
	connectAttempts   = 5
	connectBackoffCap = 10 * time.Second
	maxConsoleLines   = 1000
)

// InteractiveElement is one clickable/editable element tagged with a
// page-local index by the last snapshot.
type InteractiveElement struct {
	Index int    `json:"index"`
	Tag   string `json:"tag"`
	Text  string `json:"text"`
}

// PageState is what browser_view and browser_navigate report back.
type PageState struct {
	URL      string               `json:"url"`
	Title    string               `json:"title"`
	Content  string               `json:"content"`
	Elements []InteractiveElement `json:"interactive_elements"`
}

// Browser drives the headless Chrome inside a sandbox over CDP. One
// instance per sandbox; a single tab is reused for all operations.
type Browser struct {
	cdpURL string
	logger *slog.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context

	consoleMu sync.Mutex
	console   []string
}

func NewBrowser(cdpURL string, logger *slog.Logger) *Browser {
	return &Browser{cdpURL: cdpURL, logger: logger.With("component", "browser")}
}

// Connect attaches to the remote Chrome, retrying with exponential
// backoff capped at 10 s.
func (b *Browser) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tab != nil {
		return nil
	}

	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt < connectAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, connectBackoffCap)
		}

		if err := b.connectOnce(); err != nil {
			lastErr = err
			b.logger.Warn("browser connect failed", "attempt", attempt+1, "error", err)
			continue
		}
		return nil
	}
	return apperr.Server("connect browser at %s: %v", b.cdpURL, lastErr)
}

func (b *Browser) connectOnce() error {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), b.cdpURL)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	chromedp.ListenTarget(tab, func(ev any) {
		if e, ok := ev.(*runtime.EventConsoleAPICalled); ok {
			b.recordConsole(e)
		}
	})

	// Establishes the CDP connection and allocates the tab.
	if err := chromedp.Run(tab); err != nil {
		tabCancel()
		allocCancel()
		return err
	}

	b.allocCancel = allocCancel
	b.tabCancel = tabCancel
	b.tab = tab
	return nil
}

// Close drops the CDP connection. The remote Chrome keeps running.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tabCancel != nil {
		b.tabCancel()
		b.tabCancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
	b.tab = nil
}

func (b *Browser) tabCtx(ctx context.Context) (context.Context, error) {
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tab, nil
}

func (b *Browser) recordConsole(e *runtime.EventConsoleAPICalled) {
	var parts []string
	for _, arg := range e.Args {
		switch {
		case arg.Value != nil:
			parts = append(parts, strings.Trim(string(arg.Value), `"`))
		case arg.Description != "":
			parts = append(parts, arg.Description)
		}
	}
	line := fmt.Sprintf("[%s] %s", e.Type, strings.Join(parts, " "))

	b.consoleMu.Lock()
	b.console = append(b.console, line)
	if len(b.console) > maxConsoleLines {
		b.console = b.console[len(b.console)-maxConsoleLines:]
	}
	b.consoleMu.Unlock()
}

// ViewPage snapshots the current page: extracted text plus the indexed
// interactive elements used by click/input-by-index.
func (b *Browser) ViewPage(ctx context.Context) (*PageState, error) {
	tab, err := b.tabCtx(ctx)
	if err != nil {
		return nil, err
	}

	state := &PageState{}
	err = chromedp.Run(tab,
		chromedp.Location(&state.URL),
		chromedp.Title(&state.Title),
		chromedp.Evaluate(pageContentJS, &state.Content),
		chromedp.Evaluate(interactiveElementsJS, &state.Elements),
	)
	if err != nil {
		return nil, fmt.Errorf("view page: %w", err)
	}
	return state, nil
}

// Navigate loads url in the shared tab and returns the new page state.
func (b *Browser) Navigate(ctx context.Context, url string) (*PageState, error) {
	tab, err := b.tabCtx(ctx)
	if err != nil {
		return nil, err
	}
	if err := chromedp.Run(tab, chromedp.Navigate(url)); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	b.waitForLoad(tab, 15*time.Second)
	return b.ViewPage(ctx)
}

// Restart drops the connection, reconnects, and navigates to url.
func (b *Browser) Restart(ctx context.Context, url string) (*PageState, error) {
	b.Close()
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}
	return b.Navigate(ctx, url)
}

// waitForLoad polls document.readyState until complete or the timeout
// elapses. Slow pages fall through; the caller still gets a snapshot.
func (b *Browser) waitForLoad(tab context.Context, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var complete bool
		if err := chromedp.Run(tab,
			chromedp.Evaluate(`document.readyState === 'complete'`, &complete),
		); err != nil || complete {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// Click clicks the element with the given snapshot index, or the given
// viewport coordinates when index is nil.
func (b *Browser) Click(ctx context.Context, index *int, x, y *float64) error {
	tab, err := b.tabCtx(ctx)
	if err != nil {
		return err
	}
	switch {
	case index != nil:
		sel := indexSelector(*index)
		if err := chromedp.Run(tab, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
			return apperr.BadRequest("click element %d: %v", *index, err)
		}
	case x != nil && y != nil:
		if err := chromedp.Run(tab, chromedp.MouseClickXY(*x, *y)); err != nil {
			return fmt.Errorf("click at (%v, %v): %w", *x, *y, err)
		}
	default:
		return apperr.BadRequest("click requires an element index or coordinates")
	}
	return nil
}

// Input overwrites the value of an editable element, addressed by index
// or coordinates, and optionally presses Enter.
func (b *Browser) Input(ctx context.Context, text string, pressEnter bool, index *int, x, y *float64) error {
	tab, err := b.tabCtx(ctx)
	if err != nil {
		return err
	}

	switch {
	case index != nil:
		sel := indexSelector(*index)
		err = chromedp.Run(tab,
			chromedp.Focus(sel, chromedp.ByQuery),
			chromedp.SetValue(sel, "", chromedp.ByQuery),
			chromedp.SendKeys(sel, text, chromedp.ByQuery),
		)
		if err != nil {
			return apperr.BadRequest("input into element %d: %v", *index, err)
		}
	case x != nil && y != nil:
		err = chromedp.Run(tab,
			chromedp.MouseClickXY(*x, *y),
			chromedp.Evaluate(`(() => {
				const el = document.activeElement;
				if (el && ('value' in el)) el.value = '';
			})()`, nil),
			chromedp.ActionFunc(func(ctx context.Context) error {
				return input.InsertText(text).Do(ctx)
			}),
		)
		if err != nil {
			return fmt.Errorf("input at (%v, %v): %w", *x, *y, err)
		}
	default:
		return apperr.BadRequest("input requires an element index or coordinates")
	}

	if pressEnter {
		if err := chromedp.Run(tab, chromedp.KeyEvent(kb.Enter)); err != nil {
			return fmt.Errorf("press enter: %w", err)
		}
	}
	return nil
}

func (b *Browser) MoveMouse(ctx context.Context, x, y float64) error {
	tab, err := b.tabCtx(ctx)
	if err != nil {
		return err
	}
	err = chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("move mouse: %w", err)
	}
	return nil
}

// PressKey sends a key chord such as "Enter", "Tab" or "Control+Enter".
func (b *Browser) PressKey(ctx context.Context, key string) error {
	tab, err := b.tabCtx(ctx)
	if err != nil {
		return err
	}

	keys, modifiers := parseKeyChord(key)
	var opts []chromedp.KeyOption
	if modifiers != 0 {
		opts = append(opts, chromedp.KeyModifiers(modifiers))
	}
	if err := chromedp.Run(tab, chromedp.KeyEvent(keys, opts...)); err != nil {
		return fmt.Errorf("press key %q: %w", key, err)
	}
	return nil
}

var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
}

func parseKeyChord(chord string) (string, input.Modifier) {
	var modifiers input.Modifier
	parts := strings.Split(chord, "+")
	key := parts[len(parts)-1]
	for _, part := range parts[:len(parts)-1] {
		switch strings.ToLower(part) {
		case "control", "ctrl":
			modifiers |= input.ModifierCtrl
		case "shift":
			modifiers |= input.ModifierShift
		case "alt":
			modifiers |= input.ModifierAlt
		case "meta", "command", "cmd":
			modifiers |= input.ModifierCommand
		}
	}
	if named, ok := namedKeys[strings.ToLower(key)]; ok {
		return named, modifiers
	}
	return key, modifiers
}

// SelectOption picks the option-th entry of the select element with the
// given snapshot index.
func (b *Browser) SelectOption(ctx context.Context, index, option int) error {
	tab, err := b.tabCtx(ctx)
	if err != nil {
		return err
	}
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el || el.tagName.toLowerCase() !== 'select') return false;
		if (%d < 0 || %d >= el.options.length) return false;
		el.selectedIndex = %d;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, indexSelector(index), option, option, option)

	var ok bool
	if err := chromedp.Run(tab, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("select option: %w", err)
	}
	if !ok {
		return apperr.BadRequest("element %d is not a select with option %d", index, option)
	}
	return nil
}

// ScrollUp scrolls one viewport up, or to the top when toTop is set.
func (b *Browser) ScrollUp(ctx context.Context, toTop bool) error {
	js := `window.scrollBy(0, -window.innerHeight)`
	if toTop {
		js = `window.scrollTo(0, 0)`
	}
	return b.eval(ctx, js)
}

// ScrollDown scrolls one viewport down, or to the bottom when toBottom
// is set.
func (b *Browser) ScrollDown(ctx context.Context, toBottom bool) error {
	js := `window.scrollBy(0, window.innerHeight)`
	if toBottom {
		js = `window.scrollTo(0, document.body.scrollHeight)`
	}
	return b.eval(ctx, js)
}

func (b *Browser) eval(ctx context.Context, js string) error {
	tab, err := b.tabCtx(ctx)
	if err != nil {
		return err
	}
	if err := chromedp.Run(tab, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Screenshot captures the viewport, or the full page when fullPage is
// set. Returns PNG bytes.
func (b *Browser) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	tab, err := b.tabCtx(ctx)
	if err != nil {
		return nil, err
	}
	var data []byte
	var action chromedp.Action
	if fullPage {
		action = chromedp.FullScreenshot(&data, 90)
	} else {
		action = chromedp.CaptureScreenshot(&data)
	}
	if err := chromedp.Run(tab, action); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

// ConsoleExec evaluates javascript in the page and returns the result
// serialized as JSON.
func (b *Browser) ConsoleExec(ctx context.Context, javascript string) (string, error) {
	tab, err := b.tabCtx(ctx)
	if err != nil {
		return "", err
	}
	var result json.RawMessage
	if err := chromedp.Run(tab, chromedp.Evaluate(javascript, &result)); err != nil {
		return "", apperr.BadRequest("execute javascript: %v", err)
	}
	return string(result), nil
}

// ConsoleView returns the most recent console output, up to maxLines.
func (b *Browser) ConsoleView(maxLines int) []string {
	b.consoleMu.Lock()
	defer b.consoleMu.Unlock()
	lines := b.console
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}
