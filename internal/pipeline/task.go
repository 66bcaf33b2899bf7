// Package pipeline defines the task model shared by the compiler and the
// scheduler: one task per unit of generation work, collected into an acyclic
// dependency graph.
package pipeline

import "fmt"

// Kind distinguishes the two units of generation work.
type Kind string

const (
	KindKeyframe Kind = "keyframe"
	KindVideo    Kind = "video"
)

// Status is the lifecycle state of a task.
//
// pending -> ready -> running -> succeeded | failed
// failed re-enters ready while retry attempts remain; terminal failure marks
// all transitive dependents skipped.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether a status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// Payload carries the opaque generation parameters for one task. The
// orchestration core never interprets prompts or template contents beyond
// placeholder substitution.
type Payload struct {
	TemplateID     string
	Prompt         string
	NegativePrompt string
	KeyframeRef    string // optional; set when the caller already owns a keyframe
	ScenePrefix    string
	SceneID        string
	ShotID         string
}

// Task is one unit of generation work with declared dependencies.
type Task struct {
	ID           string
	Kind         Kind
	Payload      Payload
	Dependencies []string
	Status       Status
	Attempts     int
	Result       string // artifact ref once succeeded
	Err          error  // terminal failure cause
}

// TaskID derives the deterministic task identity for a kind/scene/shot
// triple. Recompiling the same narrative always yields the same ids.
func TaskID(kind Kind, sceneID, shotID string) string {
	return fmt.Sprintf("%s:%s:%s", kind, sceneID, shotID)
}
