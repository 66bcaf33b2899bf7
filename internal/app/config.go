package app

import "errors"

// DefaultBackendURL is where a locally running ComfyUI server listens.
const DefaultBackendURL = "http://127.0.0.1:8188"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProjectPath string // hcl manifest
	BackendURL  string

	CheckMappings bool   // run the mapping preflight instead of the pipeline
	PipelineName  string // overrides the compiled pipeline name
	OutputDir     string // overrides the manifest's output directory

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectPath == "" {
		return nil, errors.New("ProjectPath is a required configuration field and cannot be empty")
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = DefaultBackendURL
	}
	return &cfg, nil
}
