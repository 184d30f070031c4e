// internal/store/memory.go
//
// Session persistence.
// Responsibilities:
//   - Define the Store interface used by the HTTP layer.
//   - Provide an in-memory implementation for development and tests.
//
// Characteristics of the memory store:
//   - Snapshots keyed by session id; saves overwrite (no history).
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robalobadob/meeting-bingo/internal/game"
)

// ErrNotFound is returned by Get for unknown session ids.
var ErrNotFound = errors.New("store: session not found")

// Store persists the latest snapshot of each session.
// Implementations may be backed by memory (this file) or SQLite (sqlite.go).
type Store interface {
	// Save persists or replaces the session's current state.
	Save(ctx context.Context, s *game.Session) error

	// Get returns the latest snapshot, or ErrNotFound.
	Get(ctx context.Context, id string) (game.Snapshot, error)

	// Delete forgets a session. Unknown ids are not an error.
	Delete(ctx context.Context, id string) error

	// Prune deletes sessions last saved before cutoff and reports how many.
	Prune(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

type entry struct {
	snap    game.Snapshot
	savedAt time.Time
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex
	sessions map[string]entry
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]entry), now: time.Now}
}

// Save stores a copy of the session's snapshot.
func (m *memory) Save(ctx context.Context, s *game.Session) error {
	snap := s.Snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[snap.ID] = entry{snap: snap, savedAt: m.now()}
	return nil
}

// Get returns a copy of the stored snapshot.
func (m *memory) Get(ctx context.Context, id string) (game.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return game.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copySnapshot(e.snap), nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memory) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if e.savedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memory) Close() error { return nil }

// copySnapshot deep-copies the slices and pointers of a snapshot.
func copySnapshot(s game.Snapshot) game.Snapshot {
	out := s
	out.Card = s.Card.Clone()
	out.DetectedWords = append([]string{}, s.DetectedWords...)
	if s.WinningLine != nil {
		wl := *s.WinningLine
		wl.Squares = append([]string(nil), wl.Squares...)
		out.WinningLine = &wl
	}
	if s.Closest != nil {
		c := *s.Closest
		out.Closest = &c
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
