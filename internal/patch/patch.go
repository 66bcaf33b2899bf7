// Package patch instantiates a generic node-graph template with per-task
// concrete values. Apply is pure: the reusable template is never mutated, so
// many tasks can share one template concurrently without interference.
package patch

import (
	"strings"

	"github.com/shotforge/shotforge/internal/template"
)

// The fixed placeholder tokens a template may carry. Each occurrence inside
// any string field (however deeply nested) is replaced textually.
const (
	TokenKeyframeImage  = "__KEYFRAME_IMAGE__"
	TokenScenePrefix    = "__SCENE_PREFIX__"
	TokenScenePrompt    = "__SCENE_PROMPT__"
	TokenNegativePrompt = "__NEGATIVE_PROMPT__"
)

// Values maps placeholder tokens to their concrete replacements. A token
// absent from the map is left untouched in the output.
type Values map[string]string

// Apply returns a new graph with every recognized placeholder token replaced
// by its value. The input graph is deep-copied structurally during the walk;
// the original is never touched. Absence of an optional node or field is a
// no-op, not an error.
func Apply(g template.Graph, values Values) template.Graph {
	out := make(template.Graph, len(g))
	for nodeID, record := range g {
		out[nodeID] = applyMap(record, values)
	}
	return out
}

func applyMap(m map[string]any, values Values) map[string]any {
	out := make(map[string]any, len(m))
	for key, v := range m {
		out[key] = applyValue(v, values)
	}
	return out
}

// applyValue rewrites one structured value. Maps and slices are copied,
// strings are substituted, and everything else (numbers, bools, nil) passes
// through unchanged.
func applyValue(v any, values Values) any {
	switch val := v.(type) {
	case string:
		return substitute(val, values)
	case map[string]any:
		return applyMap(val, values)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = applyValue(item, values)
		}
		return out
	default:
		return v
	}
}

func substitute(s string, values Values) string {
	for token, value := range values {
		s = strings.ReplaceAll(s, token, value)
	}
	return s
}
