package progression

import (
	"context"
	"sync"

	"github.com/innovorex/learnify-engine/internal/backend"
)

// memStore is the in-memory Store used in tests and database-less runs.
type memStore struct {
	mu          sync.RWMutex
	courses     map[string]CourseDef
	enrollments map[string]Enrollment
	states      map[string]map[string]ModuleState // enrollmentID -> moduleID
	certs       map[string]backend.Certificate
}

// NewInMemoryStore returns a Store backed by process memory.
func NewInMemoryStore() Store {
	return &memStore{
		courses:     map[string]CourseDef{},
		enrollments: map[string]Enrollment{},
		states:      map[string]map[string]ModuleState{},
		certs:       map[string]backend.Certificate{},
	}
}

func (m *memStore) PutCourse(_ context.Context, c CourseDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = c
	return nil
}

func (m *memStore) GetCourse(_ context.Context, courseID string) (CourseDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[courseID]
	if !ok {
		return CourseDef{}, ErrNotFound
	}
	return c, nil
}

func (m *memStore) CreateEnrollment(_ context.Context, e Enrollment, initial []ModuleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[e.ID] = e
	states := make(map[string]ModuleState, len(initial))
	for _, st := range initial {
		states[st.ModuleID] = cloneState(st)
	}
	m.states[e.ID] = states
	return nil
}

func (m *memStore) GetEnrollment(_ context.Context, enrollmentID string) (Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return Enrollment{}, ErrNotFound
	}
	return e, nil
}

func (m *memStore) FindEnrollment(_ context.Context, userID, courseID string) (Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return e, nil
		}
	}
	return Enrollment{}, ErrNotFound
}

func (m *memStore) SetEnrollmentCompleted(_ context.Context, enrollmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return ErrNotFound
	}
	e.Completed = true
	m.enrollments[enrollmentID] = e
	return nil
}

func (m *memStore) GetModuleStates(_ context.Context, enrollmentID string) ([]ModuleState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states, ok := m.states[enrollmentID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]ModuleState, 0, len(states))
	for _, st := range states {
		out = append(out, cloneState(st))
	}
	return out, nil
}

func (m *memStore) SaveModuleState(_ context.Context, enrollmentID string, st ModuleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	states, ok := m.states[enrollmentID]
	if !ok {
		return ErrNotFound
	}
	states[st.ModuleID] = cloneState(st)
	return nil
}

func (m *memStore) GetCertificate(_ context.Context, enrollmentID string) (backend.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.certs[enrollmentID]
	if !ok {
		return backend.Certificate{}, ErrNotFound
	}
	return c, nil
}

func (m *memStore) SaveCertificate(_ context.Context, enrollmentID string, cert backend.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.certs[enrollmentID] = cert
	return nil
}

func cloneState(st ModuleState) ModuleState {
	topics := make(map[string]bool, len(st.CompletedTopics))
	for k, v := range st.CompletedTopics {
		topics[k] = v
	}
	st.CompletedTopics = topics
	return st
}
