// Package project loads a narrative project manifest: scenes composed of
// shots, generation settings, and the generation templates they reference.
package project

import (
	"github.com/shotforge/shotforge/internal/settings"
	"github.com/shotforge/shotforge/internal/template"
)

// Project is the fully loaded manifest with template graphs resolved.
type Project struct {
	Name      string
	OutputDir string
	Settings  settings.Settings
	Templates map[string]*template.Template
	Scenes    []Scene
}

// Scene groups shots that share a prompt context and template choice.
type Scene struct {
	ID              string
	Prompt          string
	NegativePrompt  string
	ImageTemplateID string
	VideoTemplateID string
	Shots           []Shot
}

// Shot is one camera take inside a scene. KeyframeRef names an existing
// keyframe image for pipelines that skip keyframe generation.
type Shot struct {
	ID          string
	Prompt      string
	KeyframeRef string
}

// ImageTemplate returns the template id a scene uses for keyframe
// generation, falling back to the project-wide default.
func (sc Scene) ImageTemplate(defaultID string) string {
	if sc.ImageTemplateID != "" {
		return sc.ImageTemplateID
	}
	return defaultID
}

// VideoTemplate mirrors ImageTemplate for video generation.
func (sc Scene) VideoTemplate(defaultID string) string {
	if sc.VideoTemplateID != "" {
		return sc.VideoTemplateID
	}
	return defaultID
}
