// Package scheduler owns the task lifecycle: it resolves readiness from the
// dependency graph, dispatches tasks to the rendering backend one at a time,
// and handles retries, skip propagation and cancellation.
//
// Dispatch is intentionally serialized to a single execution slot. The
// dependency graph may hold many simultaneously-ready tasks, but the backend
// wraps one shared, non-reentrant GPU; serializing is backpressure policy,
// not a graph limitation.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/shotforge/shotforge/internal/backend"
	"github.com/shotforge/shotforge/internal/ctxlog"
	"github.com/shotforge/shotforge/internal/keyframes"
	"github.com/shotforge/shotforge/internal/patch"
	"github.com/shotforge/shotforge/internal/pipeline"
	"github.com/shotforge/shotforge/internal/settings"
	"github.com/shotforge/shotforge/internal/template"
	"github.com/shotforge/shotforge/internal/vram"
)

// Config wires a Scheduler. Graph, Templates, Adapter, Settings and
// Keyframes are required; Clock and NewBackoff default to real time and
// exponential backoff.
type Config struct {
	Graph      *pipeline.Graph
	Templates  map[string]*template.Template
	Adapter    backend.Adapter
	Settings   *settings.Store
	Keyframes  *keyframes.Store
	Clock      Clock
	NewBackoff BackoffFactory
}

// Summary is the aggregate outcome of one pipeline run. Artifacts of
// succeeded tasks remain valid even when the pipeline as a whole failed.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled bool
}

// AllSucceeded reports whether every task in the graph succeeded.
func (s Summary) AllSucceeded() bool {
	return s.Failed == 0 && s.Skipped == 0 && !s.Cancelled
}

// Scheduler walks a task graph and drives it to completion. It is the
// graph's only mutator; external observers read immutable snapshots.
type Scheduler struct {
	cfg Config

	mu       sync.Mutex
	ready    []string // FIFO dispatch queue
	backoffs map[string]backoff.BackOff
	inflight string // backend job id currently holding the slot
}

// New validates the configuration and returns a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("scheduler requires a task graph")
	}
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("scheduler requires a backend adapter")
	}
	if cfg.Settings == nil {
		return nil, fmt.Errorf("scheduler requires a settings store")
	}
	if cfg.Keyframes == nil {
		cfg.Keyframes = keyframes.NewStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.NewBackoff == nil {
		cfg.NewBackoff = defaultBackoff
	}
	if err := cfg.Graph.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to schedule an invalid graph: %w", err)
	}
	return &Scheduler{cfg: cfg, backoffs: make(map[string]backoff.BackOff)}, nil
}

// Snapshot returns an immutable view of every task's current status.
func (s *Scheduler) Snapshot() map[string]pipeline.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Graph.StatusSnapshot()
}

// Run drives the graph until every task is terminal or the context is
// cancelled. Cancellation marks all non-terminal tasks skipped and issues a
// cancel call for whichever job holds the slot; already-succeeded tasks and
// their artifacts are not rolled back.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	logger := ctxlog.FromContext(ctx)
	s.initReady()

	for {
		if ctx.Err() != nil {
			s.cancelRemaining(ctx)
			summary := s.summarize(true)
			return summary, ctx.Err()
		}

		id, ok := s.popReady()
		if !ok {
			break
		}
		s.dispatch(ctx, id)
	}

	summary := s.summarize(false)
	logger.Info("🏁 Pipeline finished.",
		"succeeded", summary.Succeeded, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

// initReady marks dependency-free tasks ready. They all become ready at the
// same instant, so ties are broken by task id.
func (s *Scheduler) initReady() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, t := range s.cfg.Graph.Tasks() {
		if len(t.Dependencies) == 0 {
			ids = append(ids, t.ID)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		s.markReadyLocked(id)
	}
}

func (s *Scheduler) markReadyLocked(id string) {
	t, _ := s.cfg.Graph.Task(id)
	t.Status = pipeline.StatusReady
	s.ready = append(s.ready, id)
}

func (s *Scheduler) popReady() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return "", false
	}
	id := s.ready[0]
	s.ready = s.ready[1:]
	return id, true
}

// dispatch runs one task to a terminal state, retrying transient failures
// while attempts remain.
func (s *Scheduler) dispatch(ctx context.Context, id string) {
	logger := ctxlog.FromContext(ctx).With("task", id)
	task, ok := s.cfg.Graph.Task(id)
	if !ok {
		return
	}

	s.setStatus(task, pipeline.StatusRunning)
	logger.Info("▶️ Dispatching task.", "kind", task.Kind, "attempt", task.Attempts+1)

	err := s.attempt(ctx, task)
	task.Attempts++

	if err == nil {
		s.succeed(ctx, task)
		logger.Info("✅ Task succeeded.", "artifact", task.Result)
		return
	}
	if ctx.Err() != nil {
		// Cancellation surfaced through the attempt; Run's next loop
		// iteration skips the remainder.
		s.setStatus(task, pipeline.StatusSkipped)
		return
	}

	maxAttempts := s.maxAttempts()
	if pipeline.IsTransient(err) && task.Attempts < maxAttempts {
		wait := s.backoffFor(task.ID).NextBackOff()
		logger.Warn("Task failed with a transient error, will retry.",
			"error", err, "attempt", task.Attempts, "max_attempts", maxAttempts, "backoff", wait)
		s.setStatus(task, pipeline.StatusFailed)
		if sleepErr := s.cfg.Clock.Sleep(ctx, wait); sleepErr != nil {
			s.setStatus(task, pipeline.StatusSkipped)
			return
		}
		s.mu.Lock()
		s.markReadyLocked(task.ID)
		s.mu.Unlock()
		return
	}

	logger.Error("Task failed terminally.", "error", err, "attempts", task.Attempts)
	s.fail(ctx, task, err)
}

// attempt performs one dispatch cycle: patch the template with the task's
// payload, check the resource preflight table, submit, and await completion.
func (s *Scheduler) attempt(ctx context.Context, task *pipeline.Task) error {
	tpl, ok := s.cfg.Templates[task.Payload.TemplateID]
	if !ok {
		return fmt.Errorf("task references unknown template %q", task.Payload.TemplateID)
	}

	values, err := s.patchValues(task)
	if err != nil {
		return err
	}
	patched := patch.Apply(tpl.Graph, values)

	current := s.cfg.Settings.Current()
	if !vram.Fits(current.StabilityProfile, current.EstimatedVRAMMB) {
		req, _ := vram.Lookup(current.StabilityProfile)
		return &pipeline.ResourceError{
			Profile:     current.StabilityProfile,
			PredictedMB: current.EstimatedVRAMMB,
			MinimumMB:   req.MinimumMB,
		}
	}

	jobID, err := s.cfg.Adapter.Submit(ctx, patched)
	if err != nil {
		return err
	}
	s.setInflight(jobID)
	defer s.setInflight("")

	completion, err := s.cfg.Adapter.AwaitCompletion(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			// Pipeline cancellation: interrupt the job holding the slot.
			if cancelErr := s.cfg.Adapter.Cancel(context.WithoutCancel(ctx), jobID); cancelErr != nil {
				ctxlog.FromContext(ctx).Warn("Failed to cancel in-flight job.", "jobID", jobID, "error", cancelErr)
			}
		}
		return err
	}
	task.Result = completion.ArtifactRef
	return nil
}

// patchValues assembles the placeholder substitutions for one task. A video
// task that depends on a generated keyframe reads the currently selected
// version from the history store.
func (s *Scheduler) patchValues(task *pipeline.Task) (patch.Values, error) {
	values := patch.Values{
		patch.TokenScenePrompt:    task.Payload.Prompt,
		patch.TokenNegativePrompt: task.Payload.NegativePrompt,
		patch.TokenScenePrefix:    task.Payload.ScenePrefix,
	}

	if task.Kind == pipeline.KindVideo {
		ref := task.Payload.KeyframeRef
		if len(task.Dependencies) > 0 {
			shotKey := keyframes.ShotKey(task.Payload.SceneID, task.Payload.ShotID)
			selected, ok := s.cfg.Keyframes.Selected(shotKey)
			if !ok {
				return nil, fmt.Errorf("no keyframe version recorded for shot %s", shotKey)
			}
			ref = selected.ImageRef
		}
		if ref != "" {
			values[patch.TokenKeyframeImage] = ref
		}
	}
	return values, nil
}

func (s *Scheduler) succeed(ctx context.Context, task *pipeline.Task) {
	s.setStatus(task, pipeline.StatusSucceeded)

	if task.Kind == pipeline.KindKeyframe {
		shotKey := keyframes.ShotKey(task.Payload.SceneID, task.Payload.ShotID)
		s.cfg.Keyframes.Append(shotKey, keyframes.Version{
			Timestamp: s.cfg.Clock.Now(),
			ImageRef:  task.Result,
		})
	}

	s.resolveDependents(ctx, task)
}

func (s *Scheduler) fail(ctx context.Context, task *pipeline.Task, cause error) {
	task.Err = cause
	s.setStatus(task, pipeline.StatusFailed)
	s.resolveDependents(ctx, task)
}

// resolveDependents re-evaluates the direct dependents of a task that just
// reached a terminal state: a dependent becomes ready iff every dependency
// succeeded, and skipped as soon as any dependency terminally failed or was
// skipped. Skips propagate transitively.
func (s *Scheduler) resolveDependents(ctx context.Context, task *pipeline.Task) {
	logger := ctxlog.FromContext(ctx)

	for _, depID := range s.cfg.Graph.Dependents(task.ID) {
		dependent, ok := s.cfg.Graph.Task(depID)
		if !ok || dependent.Status != pipeline.StatusPending {
			continue
		}

		allSucceeded := true
		anyDead := false
		for _, reqID := range dependent.Dependencies {
			req, _ := s.cfg.Graph.Task(reqID)
			switch req.Status {
			case pipeline.StatusSucceeded:
			case pipeline.StatusFailed, pipeline.StatusSkipped:
				anyDead = true
				allSucceeded = false
			default:
				allSucceeded = false
			}
		}

		switch {
		case anyDead:
			logger.Warn("Skipping task due to upstream failure.", "task", depID, "upstream", task.ID)
			s.setStatus(dependent, pipeline.StatusSkipped)
			s.resolveDependents(ctx, dependent)
		case allSucceeded:
			s.mu.Lock()
			s.markReadyLocked(depID)
			s.mu.Unlock()
		}
	}
}

// cancelRemaining implements pipeline cancellation: every non-terminal task
// is marked skipped and the job holding the slot is interrupted.
func (s *Scheduler) cancelRemaining(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	if job := s.currentInflight(); job != "" {
		// The run context is already cancelled; the cancel call gets its own.
		if err := s.cfg.Adapter.Cancel(context.WithoutCancel(ctx), job); err != nil {
			logger.Warn("Failed to cancel in-flight job.", "jobID", job, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = nil
	for _, t := range s.cfg.Graph.Tasks() {
		if !t.Status.Terminal() {
			t.Status = pipeline.StatusSkipped
		}
	}
}

func (s *Scheduler) summarize(cancelled bool) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{Cancelled: cancelled}
	for _, t := range s.cfg.Graph.Tasks() {
		switch t.Status {
		case pipeline.StatusSucceeded:
			summary.Succeeded++
		case pipeline.StatusFailed:
			summary.Failed++
		case pipeline.StatusSkipped:
			summary.Skipped++
		}
	}
	return summary
}

func (s *Scheduler) maxAttempts() int {
	if max := s.cfg.Settings.Current().MaxAttempts; max > 0 {
		return max
	}
	return 3
}

func (s *Scheduler) backoffFor(id string) backoff.BackOff {
	s.mu.Lock()
	defer s.mu.Unlock()
	bo, ok := s.backoffs[id]
	if !ok {
		bo = s.cfg.NewBackoff()
		s.backoffs[id] = bo
	}
	return bo
}

func (s *Scheduler) setStatus(task *pipeline.Task, status pipeline.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.Status = status
}

func (s *Scheduler) setInflight(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = jobID
}

func (s *Scheduler) currentInflight() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}
