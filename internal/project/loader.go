package project

import (
	"context"
	"fmt"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/shotforge/shotforge/internal/ctxlog"
	"github.com/shotforge/shotforge/internal/settings"
	"github.com/shotforge/shotforge/internal/template"
	"github.com/shotforge/shotforge/internal/vram"
)

// HCL decode targets. Kept separate from the public model so manifest syntax
// can evolve without leaking hcl tags into the rest of the system.
type rootHCL struct {
	Project   *projectHCL   `hcl:"project,block"`
	Settings  *settingsHCL  `hcl:"settings,block"`
	Templates []templateHCL `hcl:"template,block"`
	Scenes    []sceneHCL    `hcl:"scene,block"`
}

type projectHCL struct {
	Name      string `hcl:"name,label"`
	OutputDir string `hcl:"output_dir,optional"`
}

type settingsHCL struct {
	GenerateKeyframes *bool  `hcl:"generate_keyframes,optional"`
	GenerateVideos    *bool  `hcl:"generate_videos,optional"`
	StabilityProfile  string `hcl:"stability_profile,optional"`
	EstimatedVRAMMB   int    `hcl:"estimated_vram_mb,optional"`
	MaxAttempts       int    `hcl:"max_attempts,optional"`
	NegativePrompt    string `hcl:"negative_prompt,optional"`
	ImageTemplate     string `hcl:"image_template,optional"`
	VideoTemplate     string `hcl:"video_template,optional"`
}

type templateHCL struct {
	ID        string            `hcl:"id,label"`
	Label     string            `hcl:"label,optional"`
	GraphFile string            `hcl:"graph_file"`
	Mapping   map[string]string `hcl:"mapping,optional"`
}

type sceneHCL struct {
	ID             string    `hcl:"id,label"`
	Prompt         string    `hcl:"prompt"`
	NegativePrompt string    `hcl:"negative_prompt,optional"`
	ImageTemplate  string    `hcl:"image_template,optional"`
	VideoTemplate  string    `hcl:"video_template,optional"`
	Shots          []shotHCL `hcl:"shot,block"`
}

type shotHCL struct {
	ID          string `hcl:"id,label"`
	Prompt      string `hcl:"prompt,optional"`
	KeyframeRef string `hcl:"keyframe,optional"`
}

// defaultSettings are merged into whatever the manifest leaves unset.
var defaultSettings = settings.Settings{
	StabilityProfile: "standard",
	MaxAttempts:      3,
	NegativePrompt:   "blurry, low quality, watermark",
}

// Load parses a project manifest and resolves every referenced template
// graph. Template graph files are resolved relative to the manifest. Scene
// and template attributes may interpolate the project scope, e.g.
// "${project.name}".
func Load(ctx context.Context, path string) (*Project, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse project manifest: %w", diags)
	}

	// The project block is decoded alone first so its name and directory can
	// be offered as variables to the rest of the manifest.
	var head struct {
		Project *projectHCL `hcl:"project,block"`
		Remain  hcl.Body    `hcl:",remain"`
	}
	if diags := gohcl.DecodeBody(file.Body, nil, &head); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode project manifest: %w", diags)
	}
	if head.Project == nil {
		return nil, fmt.Errorf("manifest %s has no project block", path)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"project": cty.ObjectVal(map[string]cty.Value{
				"name": cty.StringVal(head.Project.Name),
				"dir":  cty.StringVal(filepath.Dir(path)),
			}),
		},
	}

	var root rootHCL
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode project manifest: %w", diags)
	}

	s, err := resolveSettings(root.Settings)
	if err != nil {
		return nil, err
	}
	if _, ok := vram.Lookup(s.StabilityProfile); !ok {
		return nil, fmt.Errorf("unknown stability profile %q (known: %v)", s.StabilityProfile, vram.Profiles())
	}
	if vram.Overkill(s.EstimatedVRAMMB) {
		logger.Warn("Estimated VRAM requirement looks like an overkill configuration.",
			"estimated_mb", s.EstimatedVRAMMB, "max_sane_mb", vram.MaxSaneRequirementMB)
	}

	baseDir := filepath.Dir(path)
	templates := make(map[string]*template.Template, len(root.Templates))
	for _, tdef := range root.Templates {
		tpl, err := loadTemplate(baseDir, tdef)
		if err != nil {
			return nil, err
		}
		if _, dup := templates[tpl.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", tpl.ID)
		}
		templates[tpl.ID] = tpl
	}

	p := &Project{
		Name:      root.Project.Name,
		OutputDir: root.Project.OutputDir,
		Settings:  s,
		Templates: templates,
	}
	if p.OutputDir == "" {
		p.OutputDir = "artifacts"
	}

	for _, sc := range root.Scenes {
		scene := Scene{
			ID:              sc.ID,
			Prompt:          sc.Prompt,
			NegativePrompt:  sc.NegativePrompt,
			ImageTemplateID: sc.ImageTemplate,
			VideoTemplateID: sc.VideoTemplate,
		}
		for _, sh := range sc.Shots {
			scene.Shots = append(scene.Shots, Shot(sh))
		}
		if len(scene.Shots) == 0 {
			return nil, fmt.Errorf("scene %q has no shots", sc.ID)
		}
		p.Scenes = append(p.Scenes, scene)
	}
	if len(p.Scenes) == 0 {
		return nil, fmt.Errorf("manifest %s defines no scenes", path)
	}

	if err := checkTemplateRefs(p); err != nil {
		return nil, err
	}

	logger.Debug("Project manifest loaded.",
		"project", p.Name, "scenes", len(p.Scenes), "templates", len(p.Templates))
	return p, nil
}

// resolveSettings converts the decoded block into settings, merging defaults
// into unset fields.
func resolveSettings(decoded *settingsHCL) (settings.Settings, error) {
	s := settings.Settings{GenerateKeyframes: true, GenerateVideos: true}
	if decoded != nil {
		if decoded.GenerateKeyframes != nil {
			s.GenerateKeyframes = *decoded.GenerateKeyframes
		}
		if decoded.GenerateVideos != nil {
			s.GenerateVideos = *decoded.GenerateVideos
		}
		s.StabilityProfile = decoded.StabilityProfile
		s.EstimatedVRAMMB = decoded.EstimatedVRAMMB
		s.MaxAttempts = decoded.MaxAttempts
		s.NegativePrompt = decoded.NegativePrompt
		s.ImageTemplateID = decoded.ImageTemplate
		s.VideoTemplateID = decoded.VideoTemplate
	}
	if err := mergo.Merge(&s, defaultSettings); err != nil {
		return settings.Settings{}, fmt.Errorf("failed to merge default settings: %w", err)
	}
	return s, nil
}

func loadTemplate(baseDir string, tdef templateHCL) (*template.Template, error) {
	graphPath := tdef.GraphFile
	if !filepath.IsAbs(graphPath) {
		graphPath = filepath.Join(baseDir, graphPath)
	}
	graph, err := template.LoadGraphFile(graphPath)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", tdef.ID, err)
	}

	mapping := make(map[string]template.Capability, len(tdef.Mapping))
	for key, name := range tdef.Mapping {
		if _, _, err := template.SplitMappingKey(key); err != nil {
			return nil, fmt.Errorf("template %q: %w", tdef.ID, err)
		}
		capability, err := template.ParseCapability(name)
		if err != nil {
			return nil, fmt.Errorf("template %q, mapping %q: %w", tdef.ID, key, err)
		}
		mapping[key] = capability
	}

	label := tdef.Label
	if label == "" {
		label = tdef.ID
	}
	return &template.Template{ID: tdef.ID, Label: label, Graph: graph, Mapping: mapping}, nil
}

// checkTemplateRefs verifies that every template id a scene or the settings
// point at actually exists in the manifest.
func checkTemplateRefs(p *Project) error {
	check := func(owner, id string) error {
		if id == "" {
			return nil
		}
		if _, ok := p.Templates[id]; !ok {
			return fmt.Errorf("%s references unknown template %q", owner, id)
		}
		return nil
	}

	if err := check("settings.image_template", p.Settings.ImageTemplateID); err != nil {
		return err
	}
	if err := check("settings.video_template", p.Settings.VideoTemplateID); err != nil {
		return err
	}
	for _, sc := range p.Scenes {
		if err := check(fmt.Sprintf("scene %q image_template", sc.ID), sc.ImageTemplateID); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("scene %q video_template", sc.ID), sc.VideoTemplateID); err != nil {
			return err
		}
	}
	return nil
}
