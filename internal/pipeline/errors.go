package pipeline

import (
	"errors"
	"fmt"
)

// ValidationError blocks pipeline creation entirely: a required capability is
// absent from all checked templates. No partial graph is produced.
type ValidationError struct {
	Missing  []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("template validation failed, missing capabilities: %v", e.Missing)
}

// TransientBackendError marks a failure worth retrying (timeout, connection
// reset). The scheduler retries these up to a bounded attempt count.
type TransientBackendError struct {
	Reason string
	Err    error
}

func (e *TransientBackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient backend error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient backend error (%s)", e.Reason)
}

func (e *TransientBackendError) Unwrap() error { return e.Err }

// PermanentBackendError marks an explicit rejection by the backend. The task
// fails terminally with no retry.
type PermanentBackendError struct {
	Reason string
	Err    error
}

func (e *PermanentBackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent backend error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("permanent backend error (%s)", e.Reason)
}

func (e *PermanentBackendError) Unwrap() error { return e.Err }

// ResourceError means the predicted resource need exceeds the stability
// profile's minimum; the job is never submitted.
type ResourceError struct {
	Profile     string
	PredictedMB int
	MinimumMB   int
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("predicted VRAM need %d MB exceeds minimum %d MB for profile %q",
		e.PredictedMB, e.MinimumMB, e.Profile)
}

// IsTransient reports whether an error should be retried by the scheduler.
func IsTransient(err error) bool {
	var transient *TransientBackendError
	return errors.As(err, &transient)
}
