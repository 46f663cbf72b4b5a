package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/innovorex/learnify-engine/internal/auth/middleware"
	"github.com/innovorex/learnify-engine/internal/progression"
)

// EnrollHandler enrolls the caller into a course, unlocking module 1.
func EnrollHandler(prog *progression.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		userID := auth.SubjectFromContext(r.Context())
		e, err := prog.Enroll(r.Context(), userID, courseID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// ProgressHandler returns the aggregate course view: per-module
// lock/completion state, percentages, and scores.
func ProgressHandler(prog *progression.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enrollmentID := chi.URLParam(r, "enrollmentID")
		cp, err := ownedProgress(prog, r, enrollmentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cp)
	}
}

// CompleteTopicHandler marks a topic complete. Re-completion is
// surfaced as an informational notice with current progress, not an
// error.
func CompleteTopicHandler(prog *progression.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enrollmentID := chi.URLParam(r, "enrollmentID")
		topicID := chi.URLParam(r, "topicID")
		if _, err := ownedEnrollment(prog, r, enrollmentID); err != nil {
			writeErr(w, err)
			return
		}
		tp, err := prog.CompleteTopic(r.Context(), enrollmentID, topicID)
		if errors.Is(err, progression.ErrAlreadyCompleted) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"notice":   "topic already completed",
				"progress": tp,
			})
			return
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"progress": tp})
	}
}

// ModuleContentHandler returns a module's topic list and live state for
// content viewing. Locked modules are rejected before any content is
// exposed; topics within an unlocked module may be taken in any order.
func ModuleContentHandler(prog *progression.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enrollmentID := chi.URLParam(r, "enrollmentID")
		moduleID := chi.URLParam(r, "moduleID")
		if _, err := ownedEnrollment(prog, r, enrollmentID); err != nil {
			writeErr(w, err)
			return
		}
		if err := prog.ContentEntryGuard(r.Context(), enrollmentID, moduleID); err != nil {
			writeErr(w, err)
			return
		}
		cp, err := prog.Progress(r.Context(), enrollmentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		for i, m := range cp.Course.Modules {
			if m.ID == moduleID {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"module": m,
					"state":  cp.Modules[i],
				})
				return
			}
		}
		writeErr(w, progression.ErrNotFound)
	}
}

// CertificateHandler returns the enrollment's certificate, 404 until
// issued.
func CertificateHandler(prog *progression.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enrollmentID := chi.URLParam(r, "enrollmentID")
		if _, err := ownedEnrollment(prog, r, enrollmentID); err != nil {
			writeErr(w, err)
			return
		}
		cert, err := prog.Certificate(r.Context(), enrollmentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cert)
	}
}

func ownedEnrollment(prog *progression.Service, r *http.Request, enrollmentID string) (progression.Enrollment, error) {
	e, err := prog.Enrollment(r.Context(), enrollmentID)
	if err != nil {
		return progression.Enrollment{}, err
	}
	if e.UserID != auth.SubjectFromContext(r.Context()) {
		return progression.Enrollment{}, progression.ErrNotFound
	}
	return e, nil
}

func ownedProgress(prog *progression.Service, r *http.Request, enrollmentID string) (progression.CourseProgress, error) {
	if _, err := ownedEnrollment(prog, r, enrollmentID); err != nil {
		return progression.CourseProgress{}, err
	}
	return prog.Progress(r.Context(), enrollmentID)
}
