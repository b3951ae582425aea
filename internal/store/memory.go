package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemoryTrialStore implements TrialStore for testing and development.
type InMemoryTrialStore struct {
	mu       sync.RWMutex
	nextID   int64
	trials   []TrialRecord
	sessions map[string]Session
}

// NewInMemoryTrialStore creates a new in-memory store.
func NewInMemoryTrialStore() *InMemoryTrialStore {
	return &InMemoryTrialStore{
		nextID:   1,
		trials:   make([]TrialRecord, 0),
		sessions: make(map[string]Session),
	}
}

// AddTrial adds a trial and assigns it the next id.
func (s *InMemoryTrialStore) AddTrial(ctx context.Context, trial TrialRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addLocked(trial)
}

func (s *InMemoryTrialStore) addLocked(trial TrialRecord) (int64, error) {
	if trial.UserID == "" {
		return 0, fmt.Errorf("userId is required")
	}
	trial = normalize(trial)
	trial.ID = s.nextID
	s.nextID++
	s.trials = append(s.trials, trial)
	return trial.ID, nil
}

// AddTrials adds trials atomically.
func (s *InMemoryTrialStore) AddTrials(ctx context.Context, trials []TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range trials {
		if t.UserID == "" {
			return fmt.Errorf("trial %d: userId is required", i)
		}
	}
	for _, t := range trials {
		if _, err := s.addLocked(t); err != nil {
			return err
		}
	}
	return nil
}

// GetTrial retrieves a trial by id.
func (s *InMemoryTrialStore) GetTrial(ctx context.Context, id int64) (*TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.trials {
		if t.ID == id {
			out := t
			return &out, nil
		}
	}
	return nil, fmt.Errorf("trial %d: %w", id, ErrNotFound)
}

// ListTrials returns matching trials ordered by id.
func (s *InMemoryTrialStore) ListTrials(ctx context.Context, filter Filter) ([]TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TrialRecord, 0)
	for _, t := range s.trials {
		if !filter.Match(t) {
			continue
		}
		out = append(out, t)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// CountTrials returns the number of matching trials.
func (s *InMemoryTrialStore) CountTrials(ctx context.Context, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.trials {
		if filter.Match(t) {
			n++
		}
	}
	return n, nil
}

// DeleteTrials removes matching trials.
func (s *InMemoryTrialStore) DeleteTrials(ctx context.Context, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.trials[:0]
	deleted := 0
	for _, t := range s.trials {
		if filter.Match(t) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	s.trials = kept
	return deleted, nil
}

// CreateSession records a session.
func (s *InMemoryTrialStore) CreateSession(ctx context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}

// GetSession retrieves a session by id.
func (s *InMemoryTrialStore) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return &sess, nil
}

// ListSessions returns all sessions, oldest first.
func (s *InMemoryTrialStore) ListSessions(ctx context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryTrialStore) Close() error {
	return nil
}
