package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shotforge/shotforge/internal/backend"
	"github.com/shotforge/shotforge/internal/ctxlog"
	"github.com/shotforge/shotforge/internal/keyframes"
	"github.com/shotforge/shotforge/internal/project"
	"github.com/shotforge/shotforge/internal/settings"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	project   *project.Project
	settings  *settings.Store
	keyframes *keyframes.Store
	adapter   backend.Adapter
}

// NewApp is the constructor for the main application. It loads the project
// manifest and wires the stores the pipeline needs. A nil adapter connects to
// the configured backend URL; tests inject their own.
func NewApp(outW io.Writer, cfg *Config, adapter backend.Adapter) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	proj, err := project.Load(ctx, cfg.ProjectPath)
	if err != nil {
		// A failure to load the manifest is a fatal startup error.
		panic(fmt.Errorf("failed to load project: %w", err))
	}
	logger.Debug("Project manifest loaded.",
		"project", proj.Name, "scenes", len(proj.Scenes), "templates", len(proj.Templates))

	if adapter == nil {
		comfy, err := backend.NewComfyUI(cfg.BackendURL)
		if err != nil {
			panic(fmt.Errorf("failed to configure backend: %w", err))
		}
		adapter = comfy
	}

	return &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		project:   proj,
		settings:  settings.NewStore(proj.Settings),
		keyframes: keyframes.NewStore(),
		adapter:   adapter,
	}
}

// Close releases the backend adapter's resources.
func (a *App) Close() error {
	if closer, ok := a.adapter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Project returns the loaded project. This is primarily for testing.
func (a *App) Project() *project.Project {
	return a.project
}

// Settings returns the live settings store.
func (a *App) Settings() *settings.Store {
	return a.settings
}

// Keyframes returns the keyframe history store.
func (a *App) Keyframes() *keyframes.Store {
	return a.keyframes
}
