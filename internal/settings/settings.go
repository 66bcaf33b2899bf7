// Package settings holds the generation settings shared by the compiler and
// the scheduler. Instead of an implicit global, settings live in an explicit
// Store constructed once and injected by reference; interested components
// subscribe to changes.
package settings

import "sync"

// Settings are the user-facing generation knobs for one project.
type Settings struct {
	GenerateKeyframes bool
	GenerateVideos    bool
	StabilityProfile  string
	EstimatedVRAMMB   int
	MaxAttempts       int
	NegativePrompt    string
	ImageTemplateID   string
	VideoTemplateID   string
}

// Store is the single source of truth for Settings. Reads return value
// copies, so observers never see partial updates.
type Store struct {
	mu      sync.RWMutex
	current Settings
	subs    map[int]func(Settings)
	nextSub int
}

// NewStore returns a Store initialized with the given settings.
func NewStore(initial Settings) *Store {
	return &Store{
		current: initial,
		subs:    make(map[int]func(Settings)),
	}
}

// Current returns a copy of the current settings.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies a mutation to the settings and notifies subscribers with
// the resulting value. Notifications run outside the lock.
func (s *Store) Update(mutate func(*Settings)) {
	s.mu.Lock()
	mutate(&s.current)
	updated := s.current
	subs := make([]func(Settings), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(updated)
	}
}

// Subscribe registers a callback invoked after every update. The returned
// function cancels the subscription.
func (s *Store) Subscribe(fn func(Settings)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
