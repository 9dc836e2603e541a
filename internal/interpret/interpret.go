// Package interpret turns a model's raw text output into a structured
// intent. Language models are unreliable about strict JSON-only output,
// so the parser is deliberately permissive: it hunts for the first
// balanced JSON object inside prose, repairs malformed JSON, and when
// nothing usable is found treats the whole text as a conversational
// reply. It never surfaces a decode error to the caller.
package interpret

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"donna/internal/model"
)

// Interpret parses raw model output into exactly one ParsedIntent variant.
func Interpret(raw string) model.ParsedIntent {
	if strings.TrimSpace(raw) == "" {
		return model.UnparseableIntent(raw)
	}

	obj, ok := decodeFirstObject(raw)
	if !ok {
		return model.ReplyIntent(raw)
	}

	if list, ok := obj["actions"].([]any); ok {
		if actions := collectActions(list); len(actions) > 0 {
			return model.ActionSetIntent(actions)
		}
	}

	if name, ok := obj["action"].(string); ok && name != "" {
		return model.ActionSetIntent([]model.Action{newAction(name, paramsOf(obj))})
	}

	if reply, ok := obj["response"].(string); ok {
		return model.ReplyIntent(reply)
	}

	// JSON object with none of the recognized keys: the model's prose is
	// the final answer.
	return model.ReplyIntent(raw)
}

// collectActions validates each entry to have a "type" string and an
// optional "params" map. Malformed entries are skipped, not fatal.
func collectActions(list []any) []model.Action {
	var actions []model.Action
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, ok := entry["type"].(string)
		if !ok || name == "" {
			continue
		}
		actions = append(actions, newAction(name, paramsOf(entry)))
	}
	return actions
}

func newAction(name string, params map[string]any) model.Action {
	kind, _ := model.ParseActionKind(name)
	return model.Action{Kind: kind, RawType: name, Params: params}
}

func paramsOf(obj map[string]any) map[string]any {
	if p, ok := obj["params"].(map[string]any); ok {
		return p
	}
	return nil
}

// decodeFirstObject finds the first balanced brace-delimited substring
// that decodes, falling back to jsonrepair for almost-JSON. A stray
// unmatched '{' in prose must not hide a later balanced object, so on
// failure the scan advances to the next '{' and retries.
func decodeFirstObject(raw string) (map[string]any, bool) {
	for start := strings.IndexByte(raw, '{'); start >= 0; {
		if candidate, ok := balancedObjectAt(raw, start); ok {
			if obj, ok := decodeObject(candidate); ok {
				return obj, true
			}
		}

		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			return nil, false
		}
		start += 1 + next
	}
	return nil, false
}

func decodeObject(candidate string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
		return obj, true
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// balancedObjectAt returns the substring from the '{' at start up to
// its matching '}', ignoring braces inside string literals.
func balancedObjectAt(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
