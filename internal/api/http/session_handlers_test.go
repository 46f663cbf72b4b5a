package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/innovorex/learnify-engine/internal/auth/middleware"
	"github.com/innovorex/learnify-engine/internal/backend"
	"github.com/innovorex/learnify-engine/internal/exam"
	"github.com/innovorex/learnify-engine/internal/rbac"
)

type stubService struct {
	mu        sync.Mutex
	questions []backend.Question
	scoreErr  error
}

func (s *stubService) Info(_ context.Context, targetID string) (backend.AssessmentInfo, error) {
	return backend.AssessmentInfo{ID: targetID, TimeLimitSec: 300}, nil
}

func (s *stubService) FetchQuestions(_ context.Context, _ string) ([]backend.Question, error) {
	return append([]backend.Question(nil), s.questions...), nil
}

func (s *stubService) ModuleExamQuestions(ctx context.Context, moduleID string) ([]backend.Question, error) {
	return s.FetchQuestions(ctx, moduleID)
}

func (s *stubService) Score(_ context.Context, _ string, answers []backend.Answer) (backend.ScoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scoreErr != nil {
		return backend.ScoreResult{}, s.scoreErr
	}
	correct := 0
	keys := map[string]string{}
	for _, q := range s.questions {
		keys[q.ID] = q.CorrectAnswer
	}
	for _, a := range answers {
		if keys[a.QuestionID] == a.SelectedAnswer {
			correct++
		}
	}
	return backend.ScoreResult{
		Total:      len(s.questions),
		Correct:    correct,
		Percentage: float64(correct) / float64(len(s.questions)) * 100,
	}, nil
}

// testRouter mounts the session routes behind a middleware that reads the
// acting user from the X-Test-User header, standing in for the JWT layer.
func testRouter(reg *exam.Registry, svc backend.QuestionService) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
			user := rq.Header.Get("X-Test-User")
			if user == "" {
				user = "u1"
			}
			ctx := auth.WithSubject(rq.Context(), user)
			ctx = rbac.WithRole(ctx, "student")
			next.ServeHTTP(w, rq.WithContext(ctx))
		})
	})
	r.Post("/assessments/{assessmentID}/sessions", StartAssessmentHandler(reg, svc, time.Minute))
	r.Get("/sessions/{sessionID}", GetSessionHandler(reg))
	r.Put("/sessions/{sessionID}/answers/{questionID}", AnswerHandler(reg))
	r.Post("/sessions/{sessionID}/submit", SubmitHandler(reg))
	r.Get("/sessions/{sessionID}/review", ReviewHandler(reg))
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	svc := &stubService{questions: []backend.Question{
		{ID: "q1", Text: "one", Options: []string{"x", "y"}, CorrectAnswer: "A"},
		{ID: "q2", Text: "two", Options: []string{"x", "y"}, CorrectAnswer: "B"},
	}}
	reg := exam.NewRegistry(svc, exam.NewInMemoryStore())
	h := testRouter(reg, svc)

	w := doJSON(t, h, "POST", "/assessments/exam-1/sessions", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view exam.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, exam.StateReady, view.State)
	assert.Equal(t, 2, view.Total)
	assert.Len(t, view.Questions, 2)
	assert.Greater(t, view.RemainingSeconds, 0)

	w = doJSON(t, h, "PUT", "/sessions/"+view.ID+"/answers/q1", map[string]string{"choice": "A"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Partial submit without confirmation is refused with a typed conflict.
	w = doJSON(t, h, "POST", "/sessions/"+view.ID+"/submit", nil, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	var eb struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eb))
	assert.Equal(t, "confirm_required", eb.Code)

	w = doJSON(t, h, "POST", "/sessions/"+view.ID+"/submit", map[string]bool{"confirm_partial": true}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var scored exam.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scored))
	assert.Equal(t, exam.StateScored, scored.State)
	require.NotNil(t, scored.Result)
	// q1 answered correctly; q2 defaulted to "A" against key "B".
	assert.Equal(t, 1, scored.Result.Correct)
	assert.Empty(t, scored.Questions, "scored view must not re-serve questions")

	w = doJSON(t, h, "GET", "/sessions/"+view.ID+"/review", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSubmitFailureIsRetryableBadGateway(t *testing.T) {
	svc := &stubService{questions: []backend.Question{
		{ID: "q1", Text: "one", Options: []string{"x", "y"}, CorrectAnswer: "A"},
	}}
	reg := exam.NewRegistry(svc, exam.NewInMemoryStore())
	h := testRouter(reg, svc)

	w := doJSON(t, h, "POST", "/assessments/exam-1/sessions", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var view exam.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))

	svc.mu.Lock()
	svc.scoreErr = errors.New("upstream timeout")
	svc.mu.Unlock()

	w = doJSON(t, h, "POST", "/sessions/"+view.ID+"/submit", map[string]bool{"confirm_partial": true}, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	var eb struct {
		Code  string `json:"code"`
		Retry bool   `json:"retryable"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eb))
	assert.Equal(t, "submission_failed", eb.Code)
	assert.True(t, eb.Retry)

	// Retry succeeds once the collaborator recovers.
	svc.mu.Lock()
	svc.scoreErr = nil
	svc.mu.Unlock()
	w = doJSON(t, h, "POST", "/sessions/"+view.ID+"/submit", map[string]bool{"confirm_partial": true}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSessionHiddenFromOtherUsers(t *testing.T) {
	svc := &stubService{questions: []backend.Question{
		{ID: "q1", Text: "one", Options: []string{"x", "y"}, CorrectAnswer: "A"},
	}}
	reg := exam.NewRegistry(svc, exam.NewInMemoryStore())
	h := testRouter(reg, svc)

	w := doJSON(t, h, "POST", "/assessments/exam-1/sessions", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var view exam.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))

	w = doJSON(t, h, "GET", "/sessions/"+view.ID, nil, map[string]string{"X-Test-User": "intruder"})
	assert.Equal(t, http.StatusNotFound, w.Code, "foreign sessions must be indistinguishable from missing ones")
}
