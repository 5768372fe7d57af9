package resolve

import (
	"encoding/json"
	"fmt"

	"github.com/dipeoflow/engine/pkg/diagram"
)

// ApplyTransform applies an edge's resolved TransformRule to an extracted
// value, in a fixed order: extract_variable, then format, then
// extract_tool_results. content_type is informational for downstream
// handlers (e.g. person_job's conversation_state merge) rather than
// something this stage rewrites the value for. Unrecognized keys in
// t.Extra are preserved on the rule but never applied here, matching
// spec.md §3's "unknown rules are preserved but not applied."
func ApplyTransform(t diagram.TransformRule, value any) any {
	if t.IsEmpty() {
		return value
	}

	if t.ExtractVariable != "" {
		value = extractVariable(value, t.ExtractVariable)
	}

	if t.Format != "" {
		value = applyFormat(value, t.Format)
	}

	if t.ExtractToolResults {
		value = extractToolResults(value)
	}

	return value
}

// extractVariable reads a single key out of a map-shaped value, returning
// nil if the value isn't a map or the key isn't present.
func extractVariable(value any, key string) any {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

// applyFormat coerces value into the requested wire representation.
func applyFormat(value any, format string) any {
	switch format {
	case "json":
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(b)
	case "string":
		return fmt.Sprintf("%v", value)
	default:
		return value
	}
}

// extractToolResults pulls a "tool_results" key out of a map-shaped value;
// any other value (including person_job's plain-string completion text) is
// returned unchanged.
func extractToolResults(value any) any {
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}
	if tr, ok := m["tool_results"]; ok {
		return tr
	}
	return value
}
