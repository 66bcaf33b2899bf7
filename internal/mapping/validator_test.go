package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotforge/shotforge/internal/template"
)

func imageTemplate() *template.Template {
	return &template.Template{
		ID: "wan-t2i",
		Graph: template.Graph{
			"6": {"class_type": "CLIPTextEncode", "inputs": map[string]any{"text": "__SCENE_PROMPT__"}},
			"7": {"class_type": "CLIPTextEncode", "inputs": map[string]any{"text": "__NEGATIVE_PROMPT__"}},
		},
		Mapping: map[string]template.Capability{
			"6:text": template.CapabilityTextPrompt,
			"7:text": template.CapabilityNegativePrompt,
		},
	}
}

func videoTemplate() *template.Template {
	return &template.Template{
		ID: "wan-i2v",
		Graph: template.Graph{
			"2": {"class_type": "LoadImage", "inputs": map[string]any{"image": "__KEYFRAME_IMAGE__"}},
			"6": {"class_type": "CLIPTextEncode", "inputs": map[string]any{"text": "__SCENE_PROMPT__"}},
		},
		Mapping: map[string]template.Capability{
			"2:image": template.CapabilityKeyframeImage,
			"6:text":  template.CapabilityTextPrompt,
		},
	}
}

func TestCombinedSetSatisfiesRequirements(t *testing.T) {
	// The image template alone cannot satisfy KEYFRAME_IMAGE; the video
	// template alone cannot satisfy NEGATIVE_PROMPT. Jointly they pass.
	report := Check(Set{Image: imageTemplate(), Video: videoTemplate()}, DefaultRequired)

	assert.True(t, report.Passed())
	assert.Empty(t, report.MissingRequirements)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, "MappingPreflight", report.Helper)
	assert.True(t, report.Workflows.HasImageTemplate)
	assert.True(t, report.Workflows.HasVideoTemplate)

	require.Contains(t, report.Mappings, "wan-t2i")
	require.Contains(t, report.Mappings, "wan-i2v")
	assert.False(t, report.Mappings["wan-t2i"].MapsKeyframeImage)
	assert.True(t, report.Mappings["wan-i2v"].MapsKeyframeImage)
	assert.True(t, report.Mappings["wan-i2v"].HasLoadImageNode)
}

func TestMissingKeyframeCapabilityEmitsBothFixedWarnings(t *testing.T) {
	// Only a text-encode mapping exists anywhere; no image-load node and no
	// keyframe mapping in any template.
	report := Check(Set{Image: imageTemplate()}, DefaultRequired)

	assert.False(t, report.Passed())
	assert.Contains(t, report.MissingRequirements, "KEYFRAME_IMAGE")
	assert.Contains(t, report.Warnings, WarnNoImageLoadNode)
	assert.Contains(t, report.Warnings, WarnNoKeyframeMapping)
	assert.False(t, report.Workflows.HasVideoTemplate)
}

func TestMappingToMissingNodeDoesNotResolve(t *testing.T) {
	tpl := videoTemplate()
	delete(tpl.Graph, "2") // mapping "2:image" now dangles

	report := Check(Set{Video: tpl}, []template.Capability{template.CapabilityKeyframeImage})
	assert.False(t, report.Passed())
	assert.Contains(t, report.Warnings, WarnNoImageLoadNode)
	assert.Contains(t, report.Warnings, WarnNoKeyframeMapping)
}

func TestMissingPromptWarnings(t *testing.T) {
	bare := &template.Template{ID: "bare", Graph: template.Graph{"1": {"class_type": "KSampler"}}}

	report := Check(Set{Image: bare}, []template.Capability{
		template.CapabilityTextPrompt,
		template.CapabilityNegativePrompt,
		template.CapabilityScenePrefix,
		template.CapabilityFullTimeline,
	})

	assert.ElementsMatch(t, report.MissingRequirements, []string{
		"TEXT_PROMPT", "NEGATIVE_PROMPT", "SCENE_PREFIX", "FULL_TIMELINE",
	})
	assert.Contains(t, report.Warnings, WarnNoTextEncodeNode)
	assert.Contains(t, report.Warnings, WarnNoPromptMapping)
	assert.Contains(t, report.Warnings, WarnNoNegativeMapping)
	assert.Contains(t, report.Warnings, WarnNoPrefixMapping)
	assert.Contains(t, report.Warnings, WarnNoTimelineMapping)
}

func TestDanglingInputWarnings(t *testing.T) {
	tpl := videoTemplate()
	tpl.Graph["8"] = map[string]any{
		"class_type": "KSampler",
		"inputs":     map[string]any{"model": []any{"99", float64(0)}},
	}

	report := Check(Set{Video: tpl}, nil)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "node 8 references non-existent node 99")
}

func TestCheckIsDeterministic(t *testing.T) {
	set := Set{Image: imageTemplate()}
	first := Check(set, DefaultRequired)
	second := Check(set, DefaultRequired)
	assert.Equal(t, first, second)
}

func TestWriteReportWritesSummaryAndUnitDuplicate(t *testing.T) {
	dir := t.TempDir()
	report := Check(Set{Image: imageTemplate()}, DefaultRequired)

	require.NoError(t, WriteReport(dir, report))

	for _, path := range []string{
		filepath.Join(dir, ReportFileName),
		filepath.Join(dir, "unit", ReportFileName),
	} {
		data, err := os.ReadFile(path)
		require.NoError(t, err, path)

		var decoded Report
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "MappingPreflight", decoded.Helper)
		assert.Equal(t, report.MissingRequirements, decoded.MissingRequirements)
		assert.Equal(t, report.Warnings, decoded.Warnings)
	}
}
