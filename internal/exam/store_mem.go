package exam

import (
	"context"
	"sort"
	"sync"

	"github.com/innovorex/learnify-engine/internal/backend"
)

// memoryStore keeps attempts in memory; used in tests and as a fallback
// when the gateway runs without a database.
type memoryStore struct {
	mu       sync.RWMutex
	attempts map[string]Attempt
	reviews  map[string][]backend.ReviewItem
}

// NewInMemoryStore returns an AttemptStore backed by process memory.
func NewInMemoryStore() AttemptStore {
	return &memoryStore{
		attempts: map[string]Attempt{},
		reviews:  map[string][]backend.ReviewItem{},
	}
}

func (m *memoryStore) SaveAttempt(_ context.Context, a Attempt, review []backend.ReviewItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.attempts[a.ID]; exists {
		return nil
	}
	m.attempts[a.ID] = a
	m.reviews[a.ID] = review
	return nil
}

func (m *memoryStore) GetAttemptReview(_ context.Context, attemptID string) (Attempt, []backend.ReviewItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, nil, ErrSessionNotFound
	}
	return a, m.reviews[attemptID], nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.TargetID != "" && a.TargetID != opts.TargetID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
