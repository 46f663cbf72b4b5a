package exam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/innovorex/learnify-engine/internal/backend"
	"github.com/innovorex/learnify-engine/internal/clock"
)

// Session is one timed attempt at an assessment or module exam. It owns
// its Ledger and Timer for the attempt's lifetime; both are discarded on
// teardown. All mutation goes through guarded state transitions so races
// between user actions and timer expiry cannot double-submit or let a
// late answer leak into a submitted payload.
type Session struct {
	ID           string
	UserID       string
	TargetID     string
	Kind         Kind
	EnrollmentID string // module exams only

	mu        sync.Mutex
	state     State
	questions []backend.Question
	ledger    *Ledger
	timer     *clock.Timer
	payload   []backend.Answer // frozen at the submission barrier
	result    *backend.ScoreResult
	forced    bool
	startedAt time.Time
	scoredAt  time.Time

	svc      backend.QuestionService
	now      clock.Now
	onScored func(s *Session, res backend.ScoreResult)
}

// View is a read-only snapshot for progress/state queries.
type View struct {
	ID               string               `json:"id"`
	Kind             Kind                 `json:"kind"`
	TargetID         string               `json:"target_id"`
	State            State                `json:"state"`
	RemainingSeconds int                  `json:"remaining_seconds"`
	Answered         int                  `json:"answered"`
	Total            int                  `json:"total"`
	Questions        []backend.Question   `json:"questions,omitempty"`
	Result           *backend.ScoreResult `json:"result,omitempty"`
}

// Answer records a choice. Permitted only while the session is in
// progress; once a submit has been accepted the ledger is frozen and late
// answer events are rejected.
func (s *Session) Answer(questionID, choice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return ErrNotInProgress
	}
	return s.ledger.Select(questionID, choice)
}

// Progress reports answered/total counts.
func (s *Session) Progress() (answered, total int) {
	return s.ledger.Progress()
}

// Remaining reports seconds left on the clock, zero once stopped.
func (s *Session) Remaining() time.Duration {
	if s.timer == nil {
		return 0
	}
	return s.timer.Remaining()
}

// Submit drives the session through scoring. Manual submits with
// unanswered questions require confirmPartial; timer-expiry submits
// proceed unconditionally. The first accepted submit establishes the
// barrier: the timer is canceled, the payload is frozen (unanswered
// questions filled with DefaultChoice), and no further answers apply. A
// failed scoring call leaves the session in StateSubmissionFailed with
// the frozen payload intact, so a retry resubmits identical answers.
func (s *Session) Submit(ctx context.Context, trigger Trigger, confirmPartial bool) error {
	s.mu.Lock()
	switch s.state {
	case StateReady, StateSubmissionFailed:
		// proceed
	case StateScoring:
		s.mu.Unlock()
		if trigger == TriggerExpiry {
			// Timer fired while a submission is already in flight; the
			// pending one wins.
			return nil
		}
		return ErrSubmissionInFlight
	default: // StateScored
		s.mu.Unlock()
		if trigger == TriggerExpiry {
			return nil
		}
		return ErrNotInProgress
	}

	if trigger == TriggerManual && s.state == StateReady {
		if answered, total := s.ledger.Progress(); answered < total && !confirmPartial {
			s.mu.Unlock()
			return ErrConfirmRequired
		}
	}

	s.state = StateScoring
	if trigger == TriggerExpiry {
		s.forced = true
	}
	if s.timer != nil {
		s.timer.Cancel()
	}
	if s.payload == nil {
		s.payload = s.ledger.Export(DefaultChoice)
	}
	payload := s.payload
	s.mu.Unlock()

	res, err := s.svc.Score(ctx, s.TargetID, payload)

	s.mu.Lock()
	if err != nil {
		s.state = StateSubmissionFailed
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	s.state = StateScored
	s.result = &res
	s.scoredAt = s.now()
	hook := s.onScored
	s.mu.Unlock()

	if hook != nil {
		hook(s, res)
	}
	return nil
}

// Review returns the per-question correctness breakdown. Only valid in
// the scored state; the payload is retained so no second scoring
// round-trip is needed.
func (s *Session) Review() ([]backend.ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateScored || s.result == nil {
		return nil, ErrNotScored
	}
	return s.result.Review, nil
}

// Snapshot returns the session view, including questions while in
// progress and the score result once scored.
func (s *Session) Snapshot() View {
	answered, total := s.ledger.Progress()
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:               s.ID,
		Kind:             s.Kind,
		TargetID:         s.TargetID,
		State:            s.state,
		Answered:         answered,
		Total:            total,
		RemainingSeconds: int(s.remainingLocked().Seconds()),
	}
	switch s.state {
	case StateScored:
		v.Result = s.result
	default:
		v.Questions = s.questions
	}
	return v
}

func (s *Session) remainingLocked() time.Duration {
	if s.timer == nil || s.state != StateReady {
		return 0
	}
	return s.timer.Remaining()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Forced reports whether the submission was timer-triggered.
func (s *Session) Forced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced
}

func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Cancel()
	}
}

func (s *Session) attemptStatus() string {
	if s.Forced() {
		return StatusAutoExpired
	}
	return StatusSubmitted
}
