// Package mapping validates that a set of generation templates exposes the
// semantic capabilities a job needs before anything is dispatched. The check
// performs no I/O side effects; callers decide pass/fail thresholds and exit
// codes from the returned report.
package mapping

import (
	"fmt"
	"sort"

	"github.com/shotforge/shotforge/internal/template"
)

// Node classes the validator recognizes in ComfyUI-style graphs.
const (
	classLoadImage  = "LoadImage"
	classTextEncode = "CLIPTextEncode"
)

// Fixed warning strings. Downstream tooling pattern-matches on the exact
// wording, so these are literals, never formatted.
const (
	WarnNoImageLoadNode    = "no image-load node found in workflow"
	WarnNoKeyframeMapping  = "no mapping for keyframe image to a load-image input"
	WarnNoTextEncodeNode   = "no text-encode node found in workflow"
	WarnNoPromptMapping    = "no mapping for scene prompt to a text-encode input"
	WarnNoNegativeMapping  = "no mapping for negative prompt to a text-encode input"
	WarnNoPrefixMapping    = "no mapping for scene prefix to an output node"
	WarnNoTimelineMapping  = "no mapping for full timeline to a video input"
)

// ExitCodeMissingCapability is the process exit code when a required
// capability is missing from every checked template.
const ExitCodeMissingCapability = 3

// DefaultRequired is the capability set a keyframe+video export needs.
var DefaultRequired = []template.Capability{
	template.CapabilityTextPrompt,
	template.CapabilityNegativePrompt,
	template.CapabilityKeyframeImage,
}

// Set groups the templates checked together, by role. Either entry may be
// nil when the project supplies only one kind of template.
type Set struct {
	Image *template.Template
	Video *template.Template
}

func (s Set) templates() []*template.Template {
	var out []*template.Template
	if s.Image != nil {
		out = append(out, s.Image)
	}
	if s.Video != nil {
		out = append(out, s.Video)
	}
	return out
}

// Checks are the per-template booleans of the preflight report.
type Checks struct {
	HasLoadImageNode   bool `json:"hasLoadImageNode"`
	HasTextEncodeNode  bool `json:"hasTextEncodeNode"`
	MapsTextPrompt     bool `json:"mapsTextPrompt"`
	MapsNegativePrompt bool `json:"mapsNegativePrompt"`
	MapsKeyframeImage  bool `json:"mapsKeyframeImage"`
	MapsScenePrefix    bool `json:"mapsScenePrefix"`
}

// Workflows records which template roles were present in the checked set.
type Workflows struct {
	HasImageTemplate bool `json:"hasImageTemplate"`
	HasVideoTemplate bool `json:"hasVideoTemplate"`
}

// Report is the structured result of a mapping preflight check.
type Report struct {
	Helper              string            `json:"helper"`
	Workflows           Workflows         `json:"workflows"`
	Mappings            map[string]Checks `json:"mappings"`
	MissingRequirements []string          `json:"missingRequirements"`
	Warnings            []string          `json:"warnings"`
}

// Passed reports whether every required capability resolved across the set.
func (r Report) Passed() bool {
	return len(r.MissingRequirements) == 0
}

// Check validates a template set against the required capabilities. A
// capability counts as satisfied when it resolves in any checked template: a
// keyframe-producing template and a keyframe-consuming template jointly
// satisfy the requirement even if neither alone does.
func Check(set Set, required []template.Capability) Report {
	report := Report{
		Helper: "MappingPreflight",
		Workflows: Workflows{
			HasImageTemplate: set.Image != nil,
			HasVideoTemplate: set.Video != nil,
		},
		Mappings: make(map[string]Checks),
	}

	templates := set.templates()
	for _, tpl := range templates {
		report.Mappings[tpl.ID] = Checks{
			HasLoadImageNode:   len(tpl.Graph.NodesOfClass(classLoadImage)) > 0,
			HasTextEncodeNode:  len(tpl.Graph.NodesOfClass(classTextEncode)) > 0,
			MapsTextPrompt:     tpl.Resolves(template.CapabilityTextPrompt),
			MapsNegativePrompt: tpl.Resolves(template.CapabilityNegativePrompt),
			MapsKeyframeImage:  tpl.Resolves(template.CapabilityKeyframeImage),
			MapsScenePrefix:    tpl.Resolves(template.CapabilityScenePrefix),
		}
	}

	anyNode := func(class string) bool {
		for _, tpl := range templates {
			if len(tpl.Graph.NodesOfClass(class)) > 0 {
				return true
			}
		}
		return false
	}
	anyResolves := func(c template.Capability) bool {
		for _, tpl := range templates {
			if tpl.Resolves(c) {
				return true
			}
		}
		return false
	}

	for _, c := range required {
		missing := false
		switch c {
		case template.CapabilityKeyframeImage:
			if !anyNode(classLoadImage) {
				report.Warnings = append(report.Warnings, WarnNoImageLoadNode)
				missing = true
			}
			if !anyResolves(c) {
				report.Warnings = append(report.Warnings, WarnNoKeyframeMapping)
				missing = true
			}
		case template.CapabilityTextPrompt:
			if !anyNode(classTextEncode) {
				report.Warnings = append(report.Warnings, WarnNoTextEncodeNode)
				missing = true
			}
			if !anyResolves(c) {
				report.Warnings = append(report.Warnings, WarnNoPromptMapping)
				missing = true
			}
		case template.CapabilityNegativePrompt:
			if !anyResolves(c) {
				report.Warnings = append(report.Warnings, WarnNoNegativeMapping)
				missing = true
			}
		case template.CapabilityScenePrefix:
			if !anyResolves(c) {
				report.Warnings = append(report.Warnings, WarnNoPrefixMapping)
				missing = true
			}
		case template.CapabilityFullTimeline:
			if !anyResolves(c) {
				report.Warnings = append(report.Warnings, WarnNoTimelineMapping)
				missing = true
			}
		}
		if missing {
			report.MissingRequirements = append(report.MissingRequirements, string(c))
		}
	}

	for _, tpl := range templates {
		report.Warnings = append(report.Warnings, danglingInputs(tpl)...)
	}

	return report
}

// danglingInputs flags node inputs of the form [nodeId, slot] that reference
// a node missing from the same graph.
func danglingInputs(tpl *template.Template) []string {
	var warnings []string
	for nodeID, record := range tpl.Graph {
		inputs, ok := record["inputs"].(map[string]any)
		if !ok {
			continue
		}
		for _, v := range inputs {
			ref, ok := v.([]any)
			if !ok || len(ref) != 2 {
				continue
			}
			refID := fmt.Sprintf("%v", ref[0])
			if _, exists := tpl.Graph[refID]; !exists {
				warnings = append(warnings,
					fmt.Sprintf("template %s: node %s references non-existent node %s", tpl.ID, nodeID, refID))
			}
		}
	}
	sort.Strings(warnings)
	return warnings
}
