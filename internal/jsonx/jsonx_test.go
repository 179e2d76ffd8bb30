package jsonx

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractObject_Direct(t *testing.T) {
	raw, err := ExtractObject(`{"a": 1, "b": "two"}`)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	if out["b"] != "two" {
		t.Errorf("expected b=two, got %v", out["b"])
	}
}

func TestExtractObject_MarkdownFence(t *testing.T) {
	text := "Here is the plan:\n```json\n{\"steps\": [{\"id\": 1}]}\n```\nLet me know."
	raw, err := ExtractObject(text)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}

	var out struct {
		Steps []map[string]int `json:"steps"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	if len(out.Steps) != 1 {
		t.Errorf("expected 1 step, got %d", len(out.Steps))
	}
}

func TestExtractObject_ProseWrapped(t *testing.T) {
	text := `Sure! {"answer": 42} Hope that helps.`
	raw, err := ExtractObject(text)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if string(raw) != `{"answer": 42}` {
		t.Errorf("unexpected extraction: %s", raw)
	}
}

func TestExtractObject_FirstParseableBlock(t *testing.T) {
	// The first-to-last-brace span is invalid here, so the scanner must
	// fall through to individual blocks and pick the first valid one.
	text := `{broken {"x": 1} and then {"y": 2}`
	raw, err := ExtractObject(text)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}

	var out map[string]int
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	if _, ok := out["x"]; !ok {
		t.Errorf("expected first parseable block containing x, got %s", raw)
	}
}

func TestExtractObject_UnclosedOuterBrace(t *testing.T) {
	// The outer brace never closes, so only the nested span is balanced;
	// it must still be found and recovered.
	text := `{oops, I meant to say {"task": "done"}`
	raw, err := ExtractObject(text)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}

	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	if out["task"] != "done" {
		t.Errorf("expected the nested block, got %s", raw)
	}
}

func TestExtractObject_Nested(t *testing.T) {
	text := `prefix {"outer": {"inner": [1, 2]}} suffix`
	raw, err := ExtractObject(text)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}

	var out struct {
		Outer struct {
			Inner []int `json:"inner"`
		} `json:"outer"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	if len(out.Outer.Inner) != 2 {
		t.Errorf("nested object mangled: %s", raw)
	}
}

func TestExtractObject_NoObject(t *testing.T) {
	for _, text := range []string{"", "no json here", "[1, 2, 3]", "{unclosed"} {
		if _, err := ExtractObject(text); !errors.Is(err, ErrNoObject) {
			t.Errorf("ExtractObject(%q): expected ErrNoObject, got %v", text, err)
		}
	}
}
