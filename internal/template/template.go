// Package template defines the generation template model: a reusable
// ComfyUI-style node graph plus a mapping from node fields to the semantic
// capabilities the rest of the system relies on.
package template

import (
	"fmt"
	"strings"
)

// Capability is a named semantic role a template must expose before it can
// be used for a given job kind.
type Capability string

const (
	CapabilityTextPrompt     Capability = "TEXT_PROMPT"
	CapabilityNegativePrompt Capability = "NEGATIVE_PROMPT"
	CapabilityKeyframeImage  Capability = "KEYFRAME_IMAGE"
	CapabilityScenePrefix    Capability = "SCENE_PREFIX"
	CapabilityFullTimeline   Capability = "FULL_TIMELINE"
)

// ParseCapability converts a capability name from configuration into a
// Capability, rejecting unknown names.
func ParseCapability(name string) (Capability, error) {
	switch c := Capability(name); c {
	case CapabilityTextPrompt, CapabilityNegativePrompt, CapabilityKeyframeImage,
		CapabilityScenePrefix, CapabilityFullTimeline:
		return c, nil
	}
	return "", fmt.Errorf("unknown capability %q", name)
}

// Graph is a serialized node graph: node id to an opaque structured record.
// Records are kept generic (field name to structured value) so new template
// shapes require no code changes here.
type Graph map[string]map[string]any

// Template is a reusable node-graph definition. It is immutable once loaded;
// job instantiation always works on a copy (see the patch package).
type Template struct {
	ID      string
	Label   string
	Graph   Graph
	Mapping map[string]Capability // "<nodeId>:<field>" -> Capability
}

// NodesOfClass returns the ids of all nodes whose "class_type" field equals
// the given class name.
func (g Graph) NodesOfClass(class string) []string {
	var ids []string
	for id, record := range g {
		if ct, ok := record["class_type"].(string); ok && ct == class {
			ids = append(ids, id)
		}
	}
	return ids
}

// SplitMappingKey splits a "<nodeId>:<field>" mapping key into its parts.
func SplitMappingKey(key string) (nodeID, field string, err error) {
	nodeID, field, ok := strings.Cut(key, ":")
	if !ok || nodeID == "" || field == "" {
		return "", "", fmt.Errorf("malformed mapping key %q, want \"<nodeId>:<field>\"", key)
	}
	return nodeID, field, nil
}

// Resolves reports whether any mapping entry for the given capability points
// at a node that actually exists in the template's graph.
func (t *Template) Resolves(c Capability) bool {
	for key, mapped := range t.Mapping {
		if mapped != c {
			continue
		}
		nodeID, _, err := SplitMappingKey(key)
		if err != nil {
			continue
		}
		if _, ok := t.Graph[nodeID]; ok {
			return true
		}
	}
	return false
}
