// Package jsonx decodes JSON produced by language models, which routinely
// arrives wrapped in markdown fences, prefixed with prose, or written with
// relaxed syntax (trailing commas, single quotes, unquoted keys).
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Decode parses text into v, tolerating common LLM output quirks: strict
// JSON is tried first, then json5 on the extracted JSON-looking region.
func Decode(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("empty input")
	}

	trimmed = stripFences(trimmed)

	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}
	if err := json5.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	extracted := extractJSON(trimmed)
	if extracted == "" {
		return fmt.Errorf("no JSON value found in input")
	}
	if err := json.Unmarshal([]byte(extracted), v); err == nil {
		return nil
	}
	if err := json5.Unmarshal([]byte(extracted), v); err != nil {
		return fmt.Errorf("parse relaxed JSON: %w", err)
	}
	return nil
}

// DecodeArgs parses tool-call arguments into a map. Empty or blank
// arguments decode to an empty map, matching what schemaless tools expect.
func DecodeArgs(arguments string) (map[string]any, error) {
	if strings.TrimSpace(arguments) == "" {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := Decode(arguments, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line ("json", "json5", ...).
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSON returns the outermost {...} or [...] region of s, scanning
// past any leading prose.
func extractJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// Unterminated: return from start so json5 can report the real error.
	return s[start:]
}
