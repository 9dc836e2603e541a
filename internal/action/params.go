package action

import (
	"fmt"
	"strings"
	"time"
)

// Param extraction for the untyped map the interpreter hands over.
// Models are loose about key names, so every accessor takes a synonym
// list, most canonical first.

func stringParam(params map[string]any, keys ...string) string {
	if params == nil {
		return ""
	}
	lowered := make(map[string]any, len(params))
	for k, v := range params {
		lowered[strings.ToLower(k)] = v
	}
	for _, k := range keys {
		v, ok := lowered[k]
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		case float64:
			return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", s), "0"), ".")
		}
	}
	return ""
}

func stringListParam(params map[string]any, keys ...string) []string {
	if params == nil {
		return nil
	}
	lowered := make(map[string]any, len(params))
	for k, v := range params {
		lowered[strings.ToLower(k)] = v
	}
	for _, k := range keys {
		v, ok := lowered[k]
		if !ok {
			continue
		}
		switch list := v.(type) {
		case []any:
			var out []string
			for _, item := range list {
				if s, ok := item.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			return out
		case string:
			if list == "" {
				return nil
			}
			parts := strings.Split(list, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTimeParam(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}
