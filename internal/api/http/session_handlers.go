package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	auth "github.com/innovorex/learnify-engine/internal/auth/middleware"
	"github.com/innovorex/learnify-engine/internal/backend"
	"github.com/innovorex/learnify-engine/internal/exam"
	"github.com/innovorex/learnify-engine/internal/progression"
)

// StartAssessmentHandler begins a standalone timed attempt. The time
// window comes from the assessment's metadata: a fixed end_time wins
// over a duration, and a stale end_time still creates the session, which
// then auto-submits immediately.
func StartAssessmentHandler(reg *exam.Registry, svc backend.QuestionService, defaultDuration time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assessmentID := chi.URLParam(r, "assessmentID")
		userID := auth.SubjectFromContext(r.Context())

		info, err := svc.Info(r.Context(), assessmentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		s, err := reg.StartAssessment(r.Context(), userID, assessmentID, startOptions(info, defaultDuration))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.Snapshot())
	}
}

// StartModuleExamHandler begins a module exam attempt behind the
// progression entry guard.
func StartModuleExamHandler(reg *exam.Registry, svc backend.QuestionService, prog *progression.Service, defaultDuration time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enrollmentID := chi.URLParam(r, "enrollmentID")
		moduleID := chi.URLParam(r, "moduleID")
		userID := auth.SubjectFromContext(r.Context())

		e, err := prog.Enrollment(r.Context(), enrollmentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if e.UserID != userID {
			forbidden(w)
			return
		}
		if err := prog.ExamEntryGuard(r.Context(), enrollmentID, moduleID); err != nil {
			writeErr(w, err)
			return
		}
		info, err := svc.Info(r.Context(), moduleID)
		if err != nil {
			writeErr(w, err)
			return
		}
		s, err := reg.StartModuleExam(r.Context(), userID, enrollmentID, moduleID, startOptions(info, defaultDuration))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.Snapshot())
	}
}

func startOptions(info backend.AssessmentInfo, defaultDuration time.Duration) exam.StartOptions {
	if info.EndTime != nil {
		return exam.StartOptions{EndTime: *info.EndTime}
	}
	d := time.Duration(info.TimeLimitSec) * time.Second
	if d <= 0 {
		d = defaultDuration
	}
	return exam.StartOptions{Duration: d}
}

// GetSessionHandler returns the live session view.
func GetSessionHandler(reg *exam.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ownedSession(reg, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

type answerRequest struct {
	Choice string `json:"choice"`
}

// AnswerHandler records one choice for one question.
func AnswerHandler(reg *exam.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ownedSession(reg, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req answerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Choice == "" {
			writeJSON(w, http.StatusBadRequest, errBody{Error: "choice required"})
			return
		}
		if err := s.Answer(chi.URLParam(r, "questionID"), req.Choice); err != nil {
			writeErr(w, err)
			return
		}
		answered, total := s.Progress()
		writeJSON(w, http.StatusOK, map[string]int{"answered": answered, "total": total})
	}
}

type submitRequest struct {
	ConfirmPartial bool `json:"confirm_partial"`
}

// SubmitHandler drives a manual submission. Unanswered questions require
// confirm_partial; the response carries the score on success.
func SubmitHandler(reg *exam.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ownedSession(reg, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req submitRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, errBody{Error: "bad json"})
				return
			}
		}
		if err := s.Submit(r.Context(), exam.TriggerManual, req.ConfirmPartial); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

// ReviewHandler returns the retained per-question review once scored.
func ReviewHandler(reg *exam.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ownedSession(reg, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		review, err := s.Review()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"review": review})
	}
}

// TeardownHandler cancels the session's clock and discards it.
func TeardownHandler(reg *exam.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ownedSession(reg, r)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := reg.Remove(s.ID); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ownedSession(reg *exam.Registry, r *http.Request) (*exam.Session, error) {
	s, err := reg.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		return nil, err
	}
	if s.UserID != auth.SubjectFromContext(r.Context()) {
		return nil, exam.ErrSessionNotFound
	}
	return s, nil
}
