package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/innovorex/learnify-engine/internal/backend"
	"github.com/innovorex/learnify-engine/internal/exam"
	"github.com/innovorex/learnify-engine/internal/progression"
)

type errBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Retry bool   `json:"retryable,omitempty"`
}

// writeErr maps engine sentinels onto HTTP statuses. Submission failures
// are flagged retryable so clients can offer a retry action without
// losing the attempt.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exam.ErrSessionNotFound),
		errors.Is(err, progression.ErrNotFound),
		errors.Is(err, backend.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, progression.ErrLocked):
		writeJSON(w, http.StatusLocked, errBody{Error: err.Error(), Code: "locked"})
	case errors.Is(err, progression.ErrTopicsIncomplete):
		writeJSON(w, http.StatusConflict, errBody{Error: err.Error(), Code: "topics_incomplete"})
	case errors.Is(err, progression.ErrAttemptsExhausted):
		writeJSON(w, http.StatusConflict, errBody{Error: err.Error(), Code: "attempts_exhausted"})
	case errors.Is(err, progression.ErrAlreadyEnrolled):
		writeJSON(w, http.StatusConflict, errBody{Error: err.Error(), Code: "already_enrolled"})
	case errors.Is(err, exam.ErrConfirmRequired):
		writeJSON(w, http.StatusConflict, errBody{Error: err.Error(), Code: "confirm_required"})
	case errors.Is(err, exam.ErrActiveAttempt),
		errors.Is(err, exam.ErrSubmissionInFlight),
		errors.Is(err, exam.ErrNotInProgress),
		errors.Is(err, exam.ErrNotScored):
		writeJSON(w, http.StatusConflict, errBody{Error: err.Error(), Code: "conflict"})
	case errors.Is(err, exam.ErrUnknownQuestion):
		writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error(), Code: "unknown_question"})
	case errors.Is(err, exam.ErrFetchFailed):
		writeJSON(w, http.StatusBadGateway, errBody{Error: err.Error(), Code: "fetch_failed"})
	case errors.Is(err, exam.ErrSubmissionFailed):
		writeJSON(w, http.StatusBadGateway, errBody{Error: err.Error(), Code: "submission_failed", Retry: true})
	default:
		writeJSON(w, http.StatusInternalServerError, errBody{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func forbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, errBody{Error: "forbidden", Code: "forbidden"})
}
