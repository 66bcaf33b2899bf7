package template

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// ParseGraph decodes a serialized node graph (the ComfyUI API/prompt format:
// a JSON object keyed by node id).
func ParseGraph(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse node graph: %w", err)
	}
	return g, nil
}

// LoadGraphFile reads and decodes a node graph from a JSON file on disk.
func LoadGraphFile(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read node graph file: %w", err)
	}
	g, err := ParseGraph(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
