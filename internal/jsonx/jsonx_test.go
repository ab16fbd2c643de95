package jsonx

import "testing"

type planDoc struct {
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		title string
	}{
		{"strict json", `{"title":"t","steps":["a"]}`, "t"},
		{"fenced", "```json\n{\"title\":\"fenced\",\"steps\":[]}\n```", "fenced"},
		{"fence without tag", "```\n{\"title\":\"plain\",\"steps\":[]}\n```", "plain"},
		{"leading prose", "Here is the plan:\n{\"title\":\"prose\",\"steps\":[]}", "prose"},
		{"trailing comma", `{"title":"relaxed","steps":["a",],}`, "relaxed"},
		{"trailing prose", `{"title":"tail","steps":[]} hope this helps!`, "tail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc planDoc
			if err := Decode(tt.input, &doc); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if doc.Title != tt.title {
				t.Errorf("title = %q, want %q", doc.Title, tt.title)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	var v any
	if err := Decode("", &v); err == nil {
		t.Error("empty input should error")
	}
	if err := Decode("no json here at all", &v); err == nil {
		t.Error("prose-only input should error")
	}
}

func TestDecodeArgs(t *testing.T) {
	args, err := DecodeArgs(`{"url": "https://example.com", "press_enter": true}`)
	if err != nil {
		t.Fatalf("DecodeArgs: %v", err)
	}
	if args["url"] != "https://example.com" {
		t.Errorf("url = %v", args["url"])
	}
	if args["press_enter"] != true {
		t.Errorf("press_enter = %v", args["press_enter"])
	}

	empty, err := DecodeArgs("  ")
	if err != nil {
		t.Fatalf("DecodeArgs blank: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("blank args = %v, want empty map", empty)
	}
}
