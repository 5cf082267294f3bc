package usecase

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ExtractJSONObject recovers a JSON object from free model text. The whole text is tried first,
// then the span from the first '{' to the last '}'.
func ExtractJSONObject(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}
	if obj, ok := decodeObject(trimmed); ok {
		return obj, true
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return decodeObject(trimmed[start : end+1])
}

func decodeObject(raw string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// SuggestionIDs reads the "suggestions" array. Anything else yields an empty list.
func SuggestionIDs(obj map[string]any) []string {
	items, ok := obj["suggestions"].([]any)
	if !ok {
		return []string{}
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if id := strings.TrimSpace(v); id != "" {
				ids = append(ids, id)
			}
		case float64:
			// numeric ids come back unquoted from some models
			ids = append(ids, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return ids
}
