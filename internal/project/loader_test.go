package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotforge/shotforge/internal/template"
)

const sampleGraphJSON = `{
  "2": {"class_type": "LoadImage", "inputs": {"image": "__KEYFRAME_IMAGE__"}},
  "6": {"class_type": "CLIPTextEncode", "inputs": {"text": "__SCENE_PROMPT__"}}
}`

func writeManifest(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "workflows"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflows", "wan.json"), []byte(sampleGraphJSON), 0644))
	path := filepath.Join(dir, "project.hcl")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))
	return path
}

const validManifest = `
project "demo" {
  output_dir = "out"
}

settings {
  stability_profile = "cinematic"
  estimated_vram_mb = 16000
  generate_videos   = false
  image_template    = "wan-t2i"
  video_template    = "wan-i2v"
}

template "wan-t2i" {
  label      = "Wan text to image"
  graph_file = "workflows/wan.json"
  mapping = {
    "6:text"  = "TEXT_PROMPT"
    "2:image" = "KEYFRAME_IMAGE"
  }
}

template "wan-i2v" {
  graph_file = "workflows/wan.json"
}

scene "scene1" {
  prompt = "a castle at dawn"

  shot "shot1" {
    prompt = "wide establishing shot"
  }

  shot "shot2" {
    keyframe = "existing_kf.png"
  }
}
`

func TestLoadValidManifest(t *testing.T) {
	p, err := Load(context.Background(), writeManifest(t, validManifest))
	require.NoError(t, err)

	assert.Equal(t, "demo", p.Name)
	assert.Equal(t, "out", p.OutputDir)

	assert.Equal(t, "cinematic", p.Settings.StabilityProfile)
	assert.Equal(t, 16000, p.Settings.EstimatedVRAMMB)
	assert.True(t, p.Settings.GenerateKeyframes, "unset bool defaults to true")
	assert.False(t, p.Settings.GenerateVideos, "explicit false must survive defaulting")
	assert.Equal(t, 3, p.Settings.MaxAttempts, "default merged in")
	assert.Equal(t, "blurry, low quality, watermark", p.Settings.NegativePrompt)

	require.Contains(t, p.Templates, "wan-t2i")
	tpl := p.Templates["wan-t2i"]
	assert.Equal(t, "Wan text to image", tpl.Label)
	assert.Equal(t, template.CapabilityTextPrompt, tpl.Mapping["6:text"])
	assert.Equal(t, template.CapabilityKeyframeImage, tpl.Mapping["2:image"])
	assert.Contains(t, tpl.Graph, "6")
	assert.Equal(t, "wan-i2v", p.Templates["wan-i2v"].Label, "label falls back to id")

	require.Len(t, p.Scenes, 1)
	scene := p.Scenes[0]
	require.Len(t, scene.Shots, 2)
	assert.Equal(t, "wide establishing shot", scene.Shots[0].Prompt)
	assert.Equal(t, "existing_kf.png", scene.Shots[1].KeyframeRef)

	assert.Equal(t, "wan-t2i", scene.ImageTemplate(p.Settings.ImageTemplateID))
	assert.Equal(t, "wan-i2v", scene.VideoTemplate(p.Settings.VideoTemplateID))
}

func TestLoadInterpolatesProjectScope(t *testing.T) {
	manifest := `
project "demo" {}

scene "s" {
  prompt = "${project.name} opening shot"
  shot "x" {}
}
`
	p, err := Load(context.Background(), writeManifest(t, manifest))
	require.NoError(t, err)
	assert.Equal(t, "demo opening shot", p.Scenes[0].Prompt)
}

func TestLoadRejectsUnknownProfile(t *testing.T) {
	manifest := `
project "demo" {}
settings { stability_profile = "ludicrous" }
scene "s" {
  prompt = "p"
  shot "x" {}
}
`
	_, err := Load(context.Background(), writeManifest(t, manifest))
	assert.ErrorContains(t, err, "unknown stability profile")
}

func TestLoadRejectsUnknownTemplateRef(t *testing.T) {
	manifest := `
project "demo" {}
scene "s" {
  prompt         = "p"
  image_template = "ghost"
  shot "x" {}
}
`
	_, err := Load(context.Background(), writeManifest(t, manifest))
	assert.ErrorContains(t, err, `unknown template "ghost"`)
}

func TestLoadRejectsBadMapping(t *testing.T) {
	manifest := `
project "demo" {}
template "t" {
  graph_file = "workflows/wan.json"
  mapping    = { "6:text" = "NOT_A_CAPABILITY" }
}
scene "s" {
  prompt = "p"
  shot "x" {}
}
`
	_, err := Load(context.Background(), writeManifest(t, manifest))
	assert.ErrorContains(t, err, "unknown capability")
}

func TestLoadRejectsEmptyScenes(t *testing.T) {
	manifest := `project "demo" {}`
	_, err := Load(context.Background(), writeManifest(t, manifest))
	assert.ErrorContains(t, err, "defines no scenes")
}

func TestLoadRejectsSceneWithoutShots(t *testing.T) {
	manifest := `
project "demo" {}
scene "s" { prompt = "p" }
`
	_, err := Load(context.Background(), writeManifest(t, manifest))
	assert.ErrorContains(t, err, "has no shots")
}
