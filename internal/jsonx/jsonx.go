// Package jsonx recovers JSON objects from model output that wraps them
// in prose, markdown fences, or trailing commentary.
package jsonx

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// ErrNoObject is returned when no parseable JSON object can be recovered.
var ErrNoObject = errors.New("no JSON object found in text")

// ExtractObject returns the first JSON object recoverable from text.
// It tries, in order:
//  1. the whole text as a JSON object,
//  2. the span from the first '{' to the last '}',
//  3. each balanced brace block in order of appearance.
func ExtractObject(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrNoObject
	}

	if raw, ok := tryObject(trimmed); ok {
		return raw, nil
	}

	first := strings.IndexByte(trimmed, '{')
	last := strings.LastIndexByte(trimmed, '}')
	if first >= 0 && last > first {
		if raw, ok := tryObject(trimmed[first : last+1]); ok {
			return raw, nil
		}
	}

	for _, block := range balancedBlocks(trimmed) {
		if raw, ok := tryObject(block); ok {
			return raw, nil
		}
	}

	return nil, ErrNoObject
}

// tryObject reports whether s parses as a JSON object.
func tryObject(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}

// balancedBlocks scans text and returns every brace-balanced {...}
// span, ordered by where the span opens. Tracking a stack of open
// positions means spans nested under an unmatched outer brace are still
// emitted. Braces inside string literals are not special-cased; a span
// that closes early simply fails to parse and the next candidate is
// tried.
func balancedBlocks(text string) []string {
	type span struct{ start, end int }
	var spans []span
	var open []int
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			open = append(open, i)
		case '}':
			if len(open) == 0 {
				continue
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]
			spans = append(spans, span{start, i + 1})
		}
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })

	blocks := make([]string, 0, len(spans))
	for _, s := range spans {
		blocks = append(blocks, text[s.start:s.end])
	}
	return blocks
}
