package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/shotforge/shotforge/internal/compiler"
	"github.com/shotforge/shotforge/internal/ctxlog"
	"github.com/shotforge/shotforge/internal/mapping"
	"github.com/shotforge/shotforge/internal/pipeline"
	"github.com/shotforge/shotforge/internal/scheduler"
)

// PreflightError reports a failed mapping preflight. The caller maps it to
// the dedicated exit code.
type PreflightError struct {
	Missing []string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("mapping preflight failed: missing %s", strings.Join(e.Missing, ", "))
}

// Run executes the main application logic: either the mapping preflight or a
// full compile-and-generate pipeline, depending on configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.CheckMappings {
		return a.runPreflight(ctx)
	}
	return a.runPipeline(ctx)
}

// checkMappings runs the capability check against the project's default
// templates and logs every warning.
func (a *App) checkMappings() mapping.Report {
	current := a.settings.Current()
	set := mapping.Set{
		Image: a.project.Templates[current.ImageTemplateID],
		Video: a.project.Templates[current.VideoTemplateID],
	}

	report := mapping.Check(set, mapping.DefaultRequired)
	for _, warning := range report.Warnings {
		a.logger.Warn("Mapping preflight warning.", "warning", warning)
	}
	return report
}

// runPreflight validates the project's default templates and writes the
// machine-readable report next to the pipeline artifacts.
func (a *App) runPreflight(ctx context.Context) error {
	report := a.checkMappings()

	if err := mapping.WriteReport(a.outputDir(), report); err != nil {
		return fmt.Errorf("failed to write preflight report: %w", err)
	}
	a.logger.Info("Mapping preflight report written.", "dir", a.outputDir())

	if !report.Passed() {
		return &PreflightError{Missing: report.MissingRequirements}
	}
	a.logger.Info("✅ Mapping preflight passed.")
	return nil
}

func (a *App) runPipeline(ctx context.Context) error {
	// A template set that cannot express the required capabilities blocks
	// pipeline creation outright.
	if report := a.checkMappings(); !report.Passed() {
		return &pipeline.ValidationError{
			Missing:  report.MissingRequirements,
			Warnings: report.Warnings,
		}
	}

	snapshot := a.settings.Current()
	name, graph, err := compiler.Compile(a.project, snapshot, compiler.Options{Name: a.config.PipelineName})
	if err != nil {
		return fmt.Errorf("failed to compile pipeline: %w", err)
	}
	a.logger.Info("🚀 Starting generation pipeline.", "name", name, "tasks", graph.Len())

	sched, err := scheduler.New(scheduler.Config{
		Graph:     graph,
		Templates: a.project.Templates,
		Adapter:   a.adapter,
		Settings:  a.settings,
		Keyframes: a.keyframes,
	})
	if err != nil {
		return fmt.Errorf("failed to build scheduler: %w", err)
	}

	summary, err := sched.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline aborted: %w", err)
	}
	if !summary.AllSucceeded() {
		return fmt.Errorf("pipeline %q completed with failures: %d succeeded, %d failed, %d skipped",
			name, summary.Succeeded, summary.Failed, summary.Skipped)
	}

	a.logger.Info("All tasks succeeded.", "name", name, "tasks", summary.Succeeded)
	return nil
}

func (a *App) outputDir() string {
	if a.config.OutputDir != "" {
		return a.config.OutputDir
	}
	return a.project.OutputDir
}
