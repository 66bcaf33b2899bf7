// Package keyframes tracks the version history of generated keyframe images
// per shot. Histories are append-only: a regenerated keyframe adds a version,
// it never overwrites an earlier one.
package keyframes

import (
	"fmt"
	"sync"
	"time"
)

// Version is one generated keyframe image.
type Version struct {
	Timestamp time.Time
	ImageRef  string
	Score     *float64
}

// History is the ordered version sequence for one shot plus the currently
// selected version. Invariant: 0 <= SelectedVersionIndex < len(Versions).
type History struct {
	Versions             []Version
	SelectedVersionIndex int
}

// Selected returns the currently selected version.
func (h History) Selected() Version {
	return h.Versions[h.SelectedVersionIndex]
}

// Store holds keyframe histories keyed by shot. It is safe for concurrent
// readers; the scheduler is the only writer during a pipeline run.
type Store struct {
	mu        sync.RWMutex
	histories map[string]*History
	pinned    map[string]bool
}

// NewStore returns an empty keyframe store.
func NewStore() *Store {
	return &Store{
		histories: make(map[string]*History),
		pinned:    make(map[string]bool),
	}
}

// ShotKey builds the history key for a scene/shot pair.
func ShotKey(sceneID, shotID string) string {
	return sceneID + "/" + shotID
}

// Append records a newly generated keyframe for a shot. Selection advances to
// the new version unless the caller has pinned an earlier one.
func (s *Store) Append(shotKey string, v Version) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[shotKey]
	if !ok {
		h = &History{}
		s.histories[shotKey] = h
	}
	h.Versions = append(h.Versions, v)
	if !s.pinned[shotKey] {
		h.SelectedVersionIndex = len(h.Versions) - 1
	}
}

// Pin selects a specific version for a shot and holds the selection there
// across future appends.
func (s *Store) Pin(shotKey string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[shotKey]
	if !ok {
		return fmt.Errorf("no keyframe history for shot %q", shotKey)
	}
	if index < 0 || index >= len(h.Versions) {
		return fmt.Errorf("version index %d out of range for shot %q (have %d versions)", index, shotKey, len(h.Versions))
	}
	h.SelectedVersionIndex = index
	s.pinned[shotKey] = true
	return nil
}

// Unpin releases a pinned selection; the next append advances it again.
func (s *Store) Unpin(shotKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pinned, shotKey)
}

// Selected returns the selected keyframe version for a shot, if any exists.
func (s *Store) Selected(shotKey string) (Version, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.histories[shotKey]
	if !ok || len(h.Versions) == 0 {
		return Version{}, false
	}
	return h.Selected(), true
}

// History returns a copy of the full history for a shot.
func (s *Store) History(shotKey string) (History, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.histories[shotKey]
	if !ok {
		return History{}, false
	}
	out := History{
		Versions:             make([]Version, len(h.Versions)),
		SelectedVersionIndex: h.SelectedVersionIndex,
	}
	copy(out.Versions, h.Versions)
	return out, true
}
