package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotforge/shotforge/internal/pipeline"
	"github.com/shotforge/shotforge/internal/project"
	"github.com/shotforge/shotforge/internal/settings"
	"github.com/shotforge/shotforge/internal/template"
)

func twoSceneProject() *project.Project {
	return &project.Project{
		Name: "demo",
		Settings: settings.Settings{
			ImageTemplateID: "T2I",
			VideoTemplateID: "I2V",
			NegativePrompt:  "blurry",
		},
		Templates: map[string]*template.Template{
			"T2I": {ID: "T2I", Graph: template.Graph{"6": {"class_type": "CLIPTextEncode"}}},
			"I2V": {ID: "I2V", Graph: template.Graph{"2": {"class_type": "LoadImage"}}},
		},
		Scenes: []project.Scene{
			{ID: "scene1", Prompt: "a castle", Shots: []project.Shot{{ID: "shot1", Prompt: "wide shot"}}},
			{ID: "scene2", Prompt: "a forest", Shots: []project.Shot{{ID: "shot1", KeyframeRef: "old_kf.png"}}},
		},
	}
}

func bothEnabled() settings.Settings {
	return settings.Settings{
		GenerateKeyframes: true,
		GenerateVideos:    true,
		ImageTemplateID:   "T2I",
		VideoTemplateID:   "I2V",
		NegativePrompt:    "blurry",
	}
}

func TestCompileBothKindsEnabled(t *testing.T) {
	// Two scenes with one shot each, both flags on: four tasks, each video
	// depending on the keyframe for the same shot.
	p := twoSceneProject()
	name, graph, err := Compile(p, bothEnabled(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "demo-export", name)
	require.Equal(t, 4, graph.Len())

	for _, sceneID := range []string{"scene1", "scene2"} {
		kfID := pipeline.TaskID(pipeline.KindKeyframe, sceneID, "shot1")
		vidID := pipeline.TaskID(pipeline.KindVideo, sceneID, "shot1")

		kf, ok := graph.Task(kfID)
		require.True(t, ok, kfID)
		assert.Empty(t, kf.Dependencies)
		assert.Equal(t, "T2I", kf.Payload.TemplateID)

		vid, ok := graph.Task(vidID)
		require.True(t, ok, vidID)
		assert.Equal(t, []string{kfID}, vid.Dependencies)
		assert.Equal(t, "I2V", vid.Payload.TemplateID)
		assert.Empty(t, vid.Payload.KeyframeRef, "keyframe ref is resolved at dispatch when a keyframe task exists")
	}
}

func TestCompileKeyframesDisabled(t *testing.T) {
	// Same scenes with keyframe generation disabled: exactly two video
	// tasks, each with an empty dependency set.
	s := bothEnabled()
	s.GenerateKeyframes = false

	_, graph, err := Compile(twoSceneProject(), s, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, graph.Len())

	for _, task := range graph.Tasks() {
		assert.Equal(t, pipeline.KindVideo, task.Kind)
		assert.Empty(t, task.Dependencies)
	}

	vid, ok := graph.Task(pipeline.TaskID(pipeline.KindVideo, "scene2", "shot1"))
	require.True(t, ok)
	assert.Equal(t, "old_kf.png", vid.Payload.KeyframeRef, "caller-supplied keyframe carried into payload")
}

func TestCompileVideosDisabled(t *testing.T) {
	s := bothEnabled()
	s.GenerateVideos = false

	_, graph, err := Compile(twoSceneProject(), s, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, graph.Len())
	for _, task := range graph.Tasks() {
		assert.Equal(t, pipeline.KindKeyframe, task.Kind)
	}
}

func TestCompileTaskCountFormula(t *testing.T) {
	p := twoSceneProject()
	p.Scenes[0].Shots = append(p.Scenes[0].Shots, project.Shot{ID: "shot2"}, project.Shot{ID: "shot3"}, project.Shot{ID: "shot4"})
	// 5 shots total.

	cases := []struct {
		keyframes, videos bool
		want              int
	}{
		{true, true, 10},
		{true, false, 5},
		{false, true, 5},
		{false, false, 0},
	}
	for _, tc := range cases {
		s := bothEnabled()
		s.GenerateKeyframes = tc.keyframes
		s.GenerateVideos = tc.videos
		_, graph, err := Compile(p, s, Options{})
		require.NoError(t, err)
		assert.Equal(t, tc.want, graph.Len(), "keyframes=%v videos=%v", tc.keyframes, tc.videos)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	p := twoSceneProject()
	s := bothEnabled()

	name1, g1, err := Compile(p, s, Options{})
	require.NoError(t, err)
	name2, g2, err := Compile(p, s, Options{})
	require.NoError(t, err)

	assert.Equal(t, name1, name2)
	require.Equal(t, g1.Len(), g2.Len())
	t1, t2 := g1.Tasks(), g2.Tasks()
	for i := range t1 {
		assert.Equal(t, t1[i].ID, t2[i].ID)
		assert.Equal(t, t1[i].Payload, t2[i].Payload)
		assert.Equal(t, t1[i].Dependencies, t2[i].Dependencies)
	}
}

func TestCompilePromptDerivation(t *testing.T) {
	p := twoSceneProject()
	p.Scenes[0].NegativePrompt = "washed out"

	_, graph, err := Compile(p, bothEnabled(), Options{})
	require.NoError(t, err)

	kf1, _ := graph.Task(pipeline.TaskID(pipeline.KindKeyframe, "scene1", "shot1"))
	assert.Equal(t, "a castle, wide shot", kf1.Payload.Prompt)
	assert.Equal(t, "washed out", kf1.Payload.NegativePrompt, "scene negative prompt wins")
	assert.Equal(t, "demo-export_scene1", kf1.Payload.ScenePrefix)

	kf2, _ := graph.Task(pipeline.TaskID(pipeline.KindKeyframe, "scene2", "shot1"))
	assert.Equal(t, "a forest", kf2.Payload.Prompt, "shot without prompt uses scene prompt")
	assert.Equal(t, "blurry", kf2.Payload.NegativePrompt, "settings negative prompt is the fallback")
}

func TestCompileNameOverride(t *testing.T) {
	name, _, err := Compile(twoSceneProject(), bothEnabled(), Options{Name: "nightly"})
	require.NoError(t, err)
	assert.Equal(t, "nightly", name)
}

func TestCompileMissingTemplate(t *testing.T) {
	p := twoSceneProject()
	p.Settings.ImageTemplateID = ""
	s := bothEnabled()
	s.ImageTemplateID = ""

	_, _, err := Compile(p, s, Options{})
	assert.ErrorContains(t, err, "no image template")
}
