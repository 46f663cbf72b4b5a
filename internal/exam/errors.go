package exam

import "errors"

var (
	// ErrFetchFailed wraps a question-fetch failure; no session is created.
	ErrFetchFailed = errors.New("exam: question fetch failed")
	// ErrSessionNotFound is returned for unknown or torn-down sessions.
	ErrSessionNotFound = errors.New("exam: session not found")
	// ErrActiveAttempt rejects a second concurrent attempt on the same
	// (user, assessment) pair.
	ErrActiveAttempt = errors.New("exam: an attempt is already in progress")
	// ErrNotInProgress rejects answers or submits once the session has
	// passed the submission barrier or reached a terminal state.
	ErrNotInProgress = errors.New("exam: session is not accepting this action")
	// ErrUnknownQuestion rejects answers for questions outside the session's
	// question set.
	ErrUnknownQuestion = errors.New("exam: unknown question")
	// ErrConfirmRequired signals that a manual submit with unanswered
	// questions needs an explicit confirmation to proceed.
	ErrConfirmRequired = errors.New("exam: unanswered questions remain, confirmation required")
	// ErrSubmissionInFlight rejects re-entrant submits while one is pending.
	ErrSubmissionInFlight = errors.New("exam: submission already in progress")
	// ErrSubmissionFailed wraps a scoring-call failure; the session stays
	// retryable with its answer set intact.
	ErrSubmissionFailed = errors.New("exam: submission failed")
	// ErrNotScored rejects review requests before scoring completed.
	ErrNotScored = errors.New("exam: attempt not scored yet")
)
