package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	auth "github.com/innovorex/learnify-engine/internal/auth/middleware"
	"github.com/innovorex/learnify-engine/internal/exam"
	"github.com/innovorex/learnify-engine/internal/rbac"
)

// ListAttemptsHandler lists scored attempts. Callers without
// attempt:view-all are pinned to their own attempts regardless of the
// user_id filter they pass.
func ListAttemptsHandler(store exam.AttemptStore) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := exam.AttemptListOpts{
			UserID:   q.Get("user_id"),
			TargetID: q.Get("target_id"),
		}
		if v, err := strconv.Atoi(q.Get("limit")); err == nil {
			opts.Limit = v
		}
		if v, err := strconv.Atoi(q.Get("offset")); err == nil {
			opts.Offset = v
		}

		role := rbac.RoleFromContext(r.Context())
		if !checker.Has(role, "attempt:view-all") {
			opts.UserID = auth.SubjectFromContext(r.Context())
		}

		attempts, err := store.ListAttempts(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		if attempts == nil {
			attempts = []exam.Attempt{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
	}
}

// AttemptReviewHandler returns the retained review of a finished attempt,
// long after the live session is gone. Foreign attempts read as missing
// for callers without attempt:view-all.
func AttemptReviewHandler(store exam.AttemptStore) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		a, review, err := store.GetAttemptReview(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if a.UserID != auth.SubjectFromContext(r.Context()) && !checker.Has(role, "attempt:view-all") {
			writeErr(w, exam.ErrSessionNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"attempt": a, "review": review})
	}
}
