// Package backendtest provides an in-memory Adapter for scheduler and app
// tests: submissions are recorded and completions are scripted.
package backendtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/shotforge/shotforge/internal/backend"
	"github.com/shotforge/shotforge/internal/template"
)

// Result scripts the outcome of one submitted job, in submit order.
type Result struct {
	Artifact  string
	Err       error // returned by AwaitCompletion
	SubmitErr error // returned by Submit instead of a job id
}

// Fake is a scripted backend.Adapter. The zero value succeeds every job with
// a generated artifact name.
type Fake struct {
	mu        sync.Mutex
	script    []Result
	byJob     map[string]Result
	nextJob   int
	Submitted []template.Graph
	Cancelled []string
}

// NewFake returns a fake whose first len(results) jobs follow the script;
// later jobs succeed with a generated artifact.
func NewFake(results ...Result) *Fake {
	return &Fake{script: results, byJob: make(map[string]Result)}
}

// Submit records the graph and assigns the next scripted result to the job.
func (f *Fake) Submit(_ context.Context, graph template.Graph) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result Result
	if len(f.script) > 0 {
		result, f.script = f.script[0], f.script[1:]
	}
	if result.SubmitErr != nil {
		return "", result.SubmitErr
	}

	f.nextJob++
	jobID := fmt.Sprintf("job-%d", f.nextJob)
	if result.Artifact == "" && result.Err == nil {
		result.Artifact = "artifact-" + jobID
	}
	f.byJob[jobID] = result
	f.Submitted = append(f.Submitted, graph)
	return jobID, nil
}

// AwaitCompletion returns the scripted outcome for the job.
func (f *Fake) AwaitCompletion(ctx context.Context, jobID string) (backend.Completion, error) {
	if err := ctx.Err(); err != nil {
		return backend.Completion{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.byJob[jobID]
	if !ok {
		return backend.Completion{}, fmt.Errorf("unknown job %q", jobID)
	}
	if result.Err != nil {
		return backend.Completion{}, result.Err
	}
	return backend.Completion{ArtifactRef: result.Artifact}, nil
}

// Cancel records the cancelled job id.
func (f *Fake) Cancel(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cancelled = append(f.Cancelled, jobID)
	return nil
}
