package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	transient := &TransientBackendError{Reason: "timeout"}
	assert.True(t, IsTransient(transient))
	assert.True(t, IsTransient(fmt.Errorf("dispatch failed: %w", transient)))

	assert.False(t, IsTransient(&PermanentBackendError{Reason: "rejected"}))
	assert.False(t, IsTransient(&ResourceError{Profile: "fast"}))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsTransient(nil))
}

func TestErrorMessages(t *testing.T) {
	assert.Contains(t, (&TransientBackendError{Reason: "connection reset"}).Error(), "connection reset")
	assert.Contains(t, (&PermanentBackendError{Reason: "validation", Err: errors.New("bad node")}).Error(), "bad node")

	resErr := &ResourceError{Profile: "standard", PredictedMB: 20000, MinimumMB: 12288}
	assert.Contains(t, resErr.Error(), "20000")
	assert.Contains(t, resErr.Error(), `"standard"`)

	valErr := &ValidationError{Missing: []string{"KEYFRAME_IMAGE"}}
	assert.Contains(t, valErr.Error(), "KEYFRAME_IMAGE")
}
