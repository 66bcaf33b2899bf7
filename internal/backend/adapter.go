// Package backend defines the contract to the external rendering backend and
// the ComfyUI implementation of it. The scheduler only ever talks to the
// Adapter interface; error classification (transient vs permanent) is part of
// the contract and drives the retry policy.
package backend

import (
	"context"

	"github.com/shotforge/shotforge/internal/template"
)

// Completion is the terminal success signal for a submitted job.
type Completion struct {
	// ArtifactRef names the artifact the backend produced, e.g. the output
	// image or video filename.
	ArtifactRef string
}

// Adapter executes a patched node graph and reports completion or failure.
//
// Submit and Cancel return quickly; AwaitCompletion blocks until the backend
// reports a terminal state or the context is cancelled. Failures are
// classified via the pipeline error taxonomy: *pipeline.TransientBackendError
// for conditions worth retrying, *pipeline.PermanentBackendError for explicit
// rejections.
type Adapter interface {
	Submit(ctx context.Context, graph template.Graph) (jobID string, err error)
	AwaitCompletion(ctx context.Context, jobID string) (Completion, error)
	Cancel(ctx context.Context, jobID string) error
}
