package exam

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/innovorex/learnify-engine/internal/backend"
)

// fakeService scores against its own question set and records every
// payload it receives, so retry tests can compare submissions. A
// non-zero scoreDelay holds each scoring call open to widen race
// windows.
type fakeService struct {
	mu         sync.Mutex
	questions  []backend.Question
	fetchErr   error
	scoreErr   error
	scoreDelay time.Duration
	scoreCalls [][]backend.Answer
}

func (f *fakeService) Info(_ context.Context, targetID string) (backend.AssessmentInfo, error) {
	return backend.AssessmentInfo{ID: targetID, TimeLimitSec: 60}, nil
}

func (f *fakeService) FetchQuestions(_ context.Context, _ string) ([]backend.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]backend.Question(nil), f.questions...), nil
}

func (f *fakeService) ModuleExamQuestions(ctx context.Context, moduleID string) ([]backend.Question, error) {
	return f.FetchQuestions(ctx, moduleID)
}

func (f *fakeService) Score(_ context.Context, _ string, answers []backend.Answer) (backend.ScoreResult, error) {
	f.mu.Lock()
	f.scoreCalls = append(f.scoreCalls, append([]backend.Answer(nil), answers...))
	delay := f.scoreDelay
	scoreErr := f.scoreErr
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if scoreErr != nil {
		return backend.ScoreResult{}, scoreErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	byID := map[string]string{}
	for _, q := range f.questions {
		byID[q.ID] = q.CorrectAnswer
	}
	res := backend.ScoreResult{Total: len(f.questions)}
	for _, a := range answers {
		ok := byID[a.QuestionID] == a.SelectedAnswer
		if ok {
			res.Correct++
		}
		res.Review = append(res.Review, backend.ReviewItem{
			QuestionID: a.QuestionID, UserAnswer: a.SelectedAnswer,
			CorrectAnswer: byID[a.QuestionID], IsCorrect: ok,
		})
	}
	if res.Total > 0 {
		res.Percentage = float64(res.Correct) / float64(res.Total) * 100
	}
	return res, nil
}

func (f *fakeService) setScoreErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreErr = err
}

func (f *fakeService) calls() [][]backend.Answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]backend.Answer(nil), f.scoreCalls...)
}

func threeQuestions() []backend.Question {
	return []backend.Question{
		{ID: "q1", Text: "one", Options: []string{"a", "b", "c"}, CorrectAnswer: "A"},
		{ID: "q2", Text: "two", Options: []string{"a", "b", "c"}, CorrectAnswer: "B"},
		{ID: "q3", Text: "three", Options: []string{"a", "b", "c"}, CorrectAnswer: "C"},
	}
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("session never reached %s, stuck at %s", want, s.State())
}

func waitAttempts(t *testing.T, store AttemptStore, n int) []Attempt {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.ListAttempts(context.Background(), AttemptListOpts{})
		if err != nil {
			t.Fatalf("list attempts: %v", err)
		}
		if len(got) >= n {
			return got
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("never saw %d attempts", n)
	return nil
}

func TestFetchFailureCreatesNoSession(t *testing.T) {
	svc := &fakeService{questions: threeQuestions(), fetchErr: errors.New("upstream down")}
	reg := NewRegistry(svc, NewInMemoryStore())

	_, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: time.Minute})
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v, want ErrFetchFailed", err)
	}

	// The failed start must not occupy the active-attempt slot.
	svc.mu.Lock()
	svc.fetchErr = nil
	svc.mu.Unlock()
	if _, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: time.Minute}); err != nil {
		t.Fatalf("start after fetch recovery: %v", err)
	}
}

func TestConcurrentAttemptRejected(t *testing.T) {
	svc := &fakeService{questions: threeQuestions()}
	reg := NewRegistry(svc, NewInMemoryStore())

	if _, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: time.Minute}); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: time.Minute}); !errors.Is(err, ErrActiveAttempt) {
		t.Fatalf("second start err = %v, want ErrActiveAttempt", err)
	}
	// A different target and a different user are both fine.
	if _, err := reg.StartAssessment(context.Background(), "u1", "exam-2", StartOptions{Duration: time.Minute}); err != nil {
		t.Fatalf("other target: %v", err)
	}
	if _, err := reg.StartAssessment(context.Background(), "u2", "exam-1", StartOptions{Duration: time.Minute}); err != nil {
		t.Fatalf("other user: %v", err)
	}
}

func TestManualPartialSubmitNeedsConfirmation(t *testing.T) {
	svc := &fakeService{questions: threeQuestions()}
	reg := NewRegistry(svc, NewInMemoryStore())

	s, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: time.Minute})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Answer("q2", "B"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if err := s.Submit(context.Background(), TriggerManual, false); !errors.Is(err, ErrConfirmRequired) {
		t.Fatalf("unconfirmed partial submit err = %v, want ErrConfirmRequired", err)
	}
	if got := s.State(); got != StateReady {
		t.Fatalf("state after rejected submit = %s, want %s", got, StateReady)
	}

	if err := s.Submit(context.Background(), TriggerManual, true); err != nil {
		t.Fatalf("confirmed submit: %v", err)
	}
	if got := s.State(); got != StateScored {
		t.Fatalf("state = %s, want %s", got, StateScored)
	}

	// Unanswered q1 and q3 were filled with the default choice.
	calls := svc.calls()
	if len(calls) != 1 {
		t.Fatalf("score calls = %d, want 1", len(calls))
	}
	want := []backend.Answer{
		{QuestionID: "q1", SelectedAnswer: DefaultChoice},
		{QuestionID: "q2", SelectedAnswer: "B"},
		{QuestionID: "q3", SelectedAnswer: DefaultChoice},
	}
	if !reflect.DeepEqual(calls[0], want) {
		t.Fatalf("payload = %+v, want %+v", calls[0], want)
	}
}

func TestScoredAttemptFreesActiveSlot(t *testing.T) {
	svc := &fakeService{questions: threeQuestions()}
	store := NewInMemoryStore()
	reg := NewRegistry(svc, store)

	s, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: time.Minute})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Submit(context.Background(), TriggerManual, true); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got := waitAttempts(t, store, 1)
	if got[0].Status != StatusSubmitted {
		t.Fatalf("attempt status = %q, want %q", got[0].Status, StatusSubmitted)
	}
	if _, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: time.Minute}); err != nil {
		t.Fatalf("retake after scoring: %v", err)
	}
}

func TestFailedSubmissionRetriesIdenticalPayload(t *testing.T) {
	svc := &fakeService{questions: threeQuestions()}
	reg := NewRegistry(svc, NewInMemoryStore())

	s, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: time.Minute})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Answer("q1", "C"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	svc.setScoreErr(errors.New("network flake"))
	if err := s.Submit(context.Background(), TriggerManual, true); !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("err = %v, want ErrSubmissionFailed", err)
	}
	if got := s.State(); got != StateSubmissionFailed {
		t.Fatalf("state = %s, want %s", got, StateSubmissionFailed)
	}

	// The barrier is down: late answers must not reach the frozen payload.
	if err := s.Answer("q2", "B"); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("late answer err = %v, want ErrNotInProgress", err)
	}

	svc.setScoreErr(nil)
	if err := s.Submit(context.Background(), TriggerManual, true); err != nil {
		t.Fatalf("retry: %v", err)
	}
	calls := svc.calls()
	if len(calls) != 2 {
		t.Fatalf("score calls = %d, want 2", len(calls))
	}
	if !reflect.DeepEqual(calls[0], calls[1]) {
		t.Fatalf("retry payload diverged:\nfirst  %+v\nsecond %+v", calls[0], calls[1])
	}
}

func TestTimerExpiryForcesSubmissionOnce(t *testing.T) {
	svc := &fakeService{questions: threeQuestions()}
	store := NewInMemoryStore()
	reg := NewRegistry(svc, store, WithTickInterval(5*time.Millisecond))

	s, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: 25 * time.Millisecond})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Answer("q1", "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	waitState(t, s, StateScored)
	if !s.Forced() {
		t.Fatal("expiry submission not marked forced")
	}

	got := waitAttempts(t, store, 1)
	if got[0].Status != StatusAutoExpired {
		t.Fatalf("attempt status = %q, want %q", got[0].Status, StatusAutoExpired)
	}
	if len(got) != 1 {
		t.Fatalf("attempts = %d, want exactly 1", len(got))
	}

	// Post-expiry actions are rejected; a second expiry can't re-submit.
	if err := s.Answer("q2", "B"); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("answer after expiry err = %v, want ErrNotInProgress", err)
	}
	if err := s.Submit(context.Background(), TriggerManual, true); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("manual submit after expiry err = %v, want ErrNotInProgress", err)
	}
}

func TestExpiryDuringInFlightSubmissionSuppressed(t *testing.T) {
	svc := &fakeService{questions: threeQuestions(), scoreDelay: 60 * time.Millisecond}
	reg := NewRegistry(svc, NewInMemoryStore(), WithTickInterval(5*time.Millisecond))

	// The deadline passes while the manual submission is still being
	// scored, so the timer's forced submit races the pending one.
	s, err := reg.StartAssessment(context.Background(), "u1", "exam-1",
		StartOptions{Duration: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Answer("q1", "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	manual := make(chan error, 1)
	go func() { manual <- s.Submit(context.Background(), TriggerManual, true) }()
	waitState(t, s, StateScoring)

	// The pending submission wins: a forced submit is a silent no-op and
	// a re-entrant manual submit is rejected.
	if err := s.Submit(context.Background(), TriggerExpiry, true); err != nil {
		t.Fatalf("expiry submit during in-flight scoring: %v", err)
	}
	if err := s.Submit(context.Background(), TriggerManual, true); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("re-entrant manual submit err = %v, want ErrSubmissionInFlight", err)
	}

	if err := <-manual; err != nil {
		t.Fatalf("manual submit: %v", err)
	}
	waitState(t, s, StateScored)
	// Let the timer's own expiry land before counting scoring calls.
	time.Sleep(30 * time.Millisecond)
	if calls := svc.calls(); len(calls) != 1 {
		t.Fatalf("score calls = %d, want exactly 1", len(calls))
	}
}

func TestStaleDeadlineAutoSubmitsImmediately(t *testing.T) {
	svc := &fakeService{questions: threeQuestions()}
	store := NewInMemoryStore()
	reg := NewRegistry(svc, store)

	s, err := reg.StartAssessment(context.Background(), "u1", "exam-1",
		StartOptions{EndTime: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Expiry fires synchronously during start for a past deadline.
	if got := s.State(); got != StateScored {
		t.Fatalf("state = %s, want %s", got, StateScored)
	}
	calls := svc.calls()
	if len(calls) != 1 {
		t.Fatalf("score calls = %d, want 1", len(calls))
	}
	for _, a := range calls[0] {
		if a.SelectedAnswer != DefaultChoice {
			t.Fatalf("question %s submitted %q, want default %q", a.QuestionID, a.SelectedAnswer, DefaultChoice)
		}
	}
	got := waitAttempts(t, store, 1)
	if got[0].Status != StatusAutoExpired {
		t.Fatalf("attempt status = %q, want %q", got[0].Status, StatusAutoExpired)
	}
}

func TestModuleResultForwardedToSink(t *testing.T) {
	svc := &fakeService{questions: threeQuestions()}

	type forwarded struct {
		enrollmentID, moduleID string
		res                    backend.ScoreResult
	}
	var (
		mu  sync.Mutex
		got []forwarded
	)
	reg := NewRegistry(svc, NewInMemoryStore(), WithModuleResultSink(
		func(_ context.Context, enrollmentID, moduleID string, res backend.ScoreResult) {
			mu.Lock()
			got = append(got, forwarded{enrollmentID, moduleID, res})
			mu.Unlock()
		}))

	s, err := reg.StartModuleExam(context.Background(), "u1", "enr-1", "mod-1", StartOptions{Duration: time.Minute})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, q := range threeQuestions() {
		if err := s.Answer(q.ID, q.CorrectAnswer); err != nil {
			t.Fatalf("answer %s: %v", q.ID, err)
		}
	}
	if err := s.Submit(context.Background(), TriggerManual, false); err != nil {
		t.Fatalf("submit: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("forwarded results = %d, want 1", len(got))
	}
	if got[0].enrollmentID != "enr-1" || got[0].moduleID != "mod-1" {
		t.Fatalf("forwarded to %s/%s, want enr-1/mod-1", got[0].enrollmentID, got[0].moduleID)
	}
	if got[0].res.Percentage != 100 {
		t.Fatalf("percentage = %v, want 100", got[0].res.Percentage)
	}
}

func TestRemoveAbandonsAttempt(t *testing.T) {
	svc := &fakeService{questions: threeQuestions()}
	reg := NewRegistry(svc, NewInMemoryStore())

	s, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: time.Minute})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := reg.Remove(s.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := reg.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("get removed err = %v, want ErrSessionNotFound", err)
	}
	// Abandoning frees the slot for a fresh attempt.
	if _, err := reg.StartAssessment(context.Background(), "u1", "exam-1", StartOptions{Duration: time.Minute}); err != nil {
		t.Fatalf("restart after remove: %v", err)
	}
}
