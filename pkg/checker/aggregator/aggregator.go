// Package aggregator collects violations from concurrent scans of one build.
package aggregator

import (
	"errors"
	"sync"

	"github.com/CompassSecurity/codechecker/pkg/checker/types"
)

// ErrStoreUnavailable is returned when the store can no longer be read,
// which means the checker itself is broken rather than the build output.
var ErrStoreUnavailable = errors.New("violation store unavailable")

// Store is an append-only, order preserving log of violations guarded by a mutex.
type Store struct {
	mu         sync.Mutex
	violations []types.Violation
	closed     bool
}

func NewStore() *Store {
	return &Store{violations: []types.Violation{}}
}

// Append adds violations in the given order. Appending to a closed store drops them.
func (s *Store) Append(violations ...types.Violation) {
	if len(violations) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.violations = append(s.violations, violations...)
}

// Snapshot returns a copy of every violation appended so far.
func (s *Store) Snapshot() ([]types.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreUnavailable
	}
	return append([]types.Violation(nil), s.violations...), nil
}

// Since returns a copy of the violations appended after the first offset ones.
func (s *Store) Since(offset int) ([]types.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreUnavailable
	}
	offset = min(max(offset, 0), len(s.violations))
	return append([]types.Violation(nil), s.violations[offset:]...), nil
}

// Len returns the number of stored violations, zero once closed.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.violations)
}

// Close releases the stored violations. Later appends are dropped and reads fail.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.violations = nil
}
