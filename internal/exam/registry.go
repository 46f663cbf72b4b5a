package exam

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/innovorex/learnify-engine/internal/backend"
	"github.com/innovorex/learnify-engine/internal/clock"
	"github.com/innovorex/learnify-engine/internal/events"
)

// AttemptStore persists scored attempts for later listing and review.
type AttemptStore interface {
	SaveAttempt(ctx context.Context, a Attempt, review []backend.ReviewItem) error
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	GetAttemptReview(ctx context.Context, attemptID string) (Attempt, []backend.ReviewItem, error)
}

// AttemptListOpts filters attempt listings.
type AttemptListOpts struct {
	UserID   string
	TargetID string
	Limit    int
	Offset   int
}

// ModuleResultSink receives module-exam scores so course progression can
// advance. Wired in main to the progression service; kept as a function
// type to avoid a package cycle.
type ModuleResultSink func(ctx context.Context, enrollmentID, moduleID string, res backend.ScoreResult)

// Registry owns the live exam sessions. It enforces the one-active-
// attempt-per-(user, target) invariant, fails closed when questions
// cannot be fetched, and persists attempts as sessions reach the scored
// state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	active   map[string]string // userID|targetID -> sessionID

	svc          backend.QuestionService
	attempts     AttemptStore
	onModule     ModuleResultSink
	recorder     events.Recorder
	now          clock.Now
	tickInterval time.Duration
	submitWindow time.Duration // scoring-call deadline for forced submits
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClockNow injects the time source (tests).
func WithClockNow(now clock.Now) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithTickInterval overrides the 1s session-clock tick (tests).
func WithTickInterval(d time.Duration) RegistryOption {
	return func(r *Registry) { r.tickInterval = d }
}

// WithModuleResultSink wires module-exam scores into progression.
func WithModuleResultSink(sink ModuleResultSink) RegistryOption {
	return func(r *Registry) { r.onModule = sink }
}

// WithEvents wires a domain-event recorder.
func WithEvents(rec events.Recorder) RegistryOption {
	return func(r *Registry) { r.recorder = rec }
}

// NewRegistry builds a session registry backed by the given question
// service and attempt store.
func NewRegistry(svc backend.QuestionService, attempts AttemptStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:     map[string]*Session{},
		active:       map[string]string{},
		svc:          svc,
		attempts:     attempts,
		now:          time.Now,
		tickInterval: time.Second,
		submitWindow: 30 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// StartOptions shape the attempt's time window. Exactly one of Duration
// or EndTime should be set; EndTime supports rejoining a session whose
// deadline is fixed server-side (and may already be past, in which case
// the session auto-submits immediately).
type StartOptions struct {
	Duration time.Duration
	EndTime  time.Time
}

// StartAssessment begins a standalone timed attempt. On fetch failure no
// session is created and ErrFetchFailed is returned.
func (r *Registry) StartAssessment(ctx context.Context, userID, assessmentID string, opts StartOptions) (*Session, error) {
	questions, err := r.svc.FetchQuestions(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return r.launch(userID, assessmentID, "", KindAssessment, questions, opts)
}

// StartModuleExam begins a module exam attempt for an enrollment. Entry
// guarding (lock state, topic completeness) is the progression service's
// responsibility and must happen before this call.
func (r *Registry) StartModuleExam(ctx context.Context, userID, enrollmentID, moduleID string, opts StartOptions) (*Session, error) {
	questions, err := r.svc.ModuleExamQuestions(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return r.launch(userID, enrollmentID, moduleID, KindModuleExam, questions, opts)
}

func (r *Registry) launch(userID, targetOwner, moduleID string, kind Kind, questions []backend.Question, opts StartOptions) (*Session, error) {
	targetID := targetOwner
	enrollmentID := ""
	if kind == KindModuleExam {
		targetID = moduleID
		enrollmentID = targetOwner
	}

	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		TargetID:     targetID,
		Kind:         kind,
		EnrollmentID: enrollmentID,
		state:        StateReady,
		questions:    questions,
		ledger:       NewLedger(ids),
		svc:          r.svc,
		now:          r.now,
		startedAt:    r.now(),
	}
	s.onScored = r.scored

	deadline := opts.EndTime
	if deadline.IsZero() {
		deadline = r.now().Add(opts.Duration)
	}
	s.timer = clock.New(deadline, func() { r.expire(s) },
		clock.WithNow(r.now), clock.WithInterval(r.tickInterval))

	r.mu.Lock()
	key := userID + "|" + targetID
	if _, busy := r.active[key]; busy {
		r.mu.Unlock()
		return nil, ErrActiveAttempt
	}
	r.active[key] = s.ID
	r.sessions[s.ID] = s
	r.mu.Unlock()

	// May fire expiry synchronously when the deadline is already past
	// (stale-session rejoin), so the session must be registered first.
	s.timer.Start()
	return s, nil
}

func (r *Registry) expire(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), r.submitWindow)
	defer cancel()
	if err := s.Submit(ctx, TriggerExpiry, true); err != nil {
		log.Printf("forced submit failed session=%s: %v", s.ID, err)
	}
}

// scored runs once per session on entry to the scored state: frees the
// active-attempt slot, persists the attempt, and forwards module-exam
// results to progression.
func (r *Registry) scored(s *Session, res backend.ScoreResult) {
	r.mu.Lock()
	delete(r.active, s.UserID+"|"+s.TargetID)
	r.mu.Unlock()

	if r.attempts != nil {
		a := Attempt{
			ID:           s.ID,
			UserID:       s.UserID,
			TargetID:     s.TargetID,
			Kind:         s.Kind,
			Status:       s.attemptStatus(),
			ScorePercent: res.Percentage,
			Correct:      res.Correct,
			Total:        res.Total,
			StartedAt:    s.startedAt,
			SubmittedAt:  s.scoredAt,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.attempts.SaveAttempt(ctx, a, res.Review); err != nil {
			log.Printf("save attempt %s: %v", s.ID, err)
		}
		if r.recorder != nil {
			r.recorder.Record(ctx, events.TypeAttemptScored, s.ID, a)
		}
	}

	if s.Kind == KindModuleExam && r.onModule != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		r.onModule(ctx, s.EnrollmentID, s.TargetID, res)
	}
}

// Get looks up a live session.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove tears a session down: the clock is canceled with no further
// signals and the session is dropped from the registry. An unsubmitted
// attempt is abandoned, freeing the active slot.
func (r *Registry) Remove(sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, sessionID)
	if r.active[s.UserID+"|"+s.TargetID] == s.ID {
		delete(r.active, s.UserID+"|"+s.TargetID)
	}
	r.mu.Unlock()
	s.teardown()
	return nil
}
