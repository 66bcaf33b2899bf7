// Package compiler turns scene/shot input into a task dependency graph. It
// is deterministic and side-effect-free: no capability validation, no backend
// traffic, just graph construction.
package compiler

import (
	"fmt"

	"github.com/shotforge/shotforge/internal/pipeline"
	"github.com/shotforge/shotforge/internal/project"
	"github.com/shotforge/shotforge/internal/settings"
)

// Options tune one compilation. The zero value is usable.
type Options struct {
	// Name overrides the derived pipeline name.
	Name string
}

// Compile emits, for every shot in every scene, a keyframe task and/or a
// video task according to the settings flags. A video task depends on the
// keyframe task for the same shot only when that keyframe task was created in
// this same compilation; when keyframe generation is skipped, the caller is
// assumed to already possess a keyframe and the video task has no dependency.
func Compile(p *project.Project, s settings.Settings, opts Options) (string, *pipeline.Graph, error) {
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("%s-export", p.Name)
	}

	graph := pipeline.NewGraph()
	for _, scene := range p.Scenes {
		for _, shot := range scene.Shots {
			if err := compileShot(graph, p, s, name, scene, shot); err != nil {
				return "", nil, err
			}
		}
	}

	if err := graph.Validate(); err != nil {
		return "", nil, fmt.Errorf("compiled graph is invalid: %w", err)
	}
	return name, graph, nil
}

func compileShot(graph *pipeline.Graph, p *project.Project, s settings.Settings, pipelineName string, scene project.Scene, shot project.Shot) error {
	base := pipeline.Payload{
		Prompt:         shotPrompt(scene, shot),
		NegativePrompt: negativePrompt(scene, s),
		ScenePrefix:    fmt.Sprintf("%s_%s", pipelineName, scene.ID),
		SceneID:        scene.ID,
		ShotID:         shot.ID,
	}

	keyframeID := ""
	if s.GenerateKeyframes {
		templateID := scene.ImageTemplate(s.ImageTemplateID)
		if _, ok := p.Templates[templateID]; !ok {
			return fmt.Errorf("scene %q has no image template for keyframe generation", scene.ID)
		}
		payload := base
		payload.TemplateID = templateID
		keyframeID = pipeline.TaskID(pipeline.KindKeyframe, scene.ID, shot.ID)
		if err := graph.Add(&pipeline.Task{
			ID:      keyframeID,
			Kind:    pipeline.KindKeyframe,
			Payload: payload,
		}); err != nil {
			return err
		}
	}

	if s.GenerateVideos {
		templateID := scene.VideoTemplate(s.VideoTemplateID)
		if _, ok := p.Templates[templateID]; !ok {
			return fmt.Errorf("scene %q has no video template", scene.ID)
		}
		payload := base
		payload.TemplateID = templateID
		task := &pipeline.Task{
			ID:      pipeline.TaskID(pipeline.KindVideo, scene.ID, shot.ID),
			Kind:    pipeline.KindVideo,
			Payload: payload,
		}
		if keyframeID != "" {
			task.Dependencies = []string{keyframeID}
		} else {
			// No keyframe task in this compilation: condition the video on
			// whatever keyframe the shot already carries.
			task.Payload.KeyframeRef = shot.KeyframeRef
		}
		if err := graph.Add(task); err != nil {
			return err
		}
	}

	return nil
}

// shotPrompt folds the shot detail into the scene prompt.
func shotPrompt(scene project.Scene, shot project.Shot) string {
	if shot.Prompt == "" {
		return scene.Prompt
	}
	return scene.Prompt + ", " + shot.Prompt
}

func negativePrompt(scene project.Scene, s settings.Settings) string {
	if scene.NegativePrompt != "" {
		return scene.NegativePrompt
	}
	return s.NegativePrompt
}
