package progression

import "errors"

var (
	// ErrNotFound is returned for unknown courses, enrollments, modules,
	// or topics.
	ErrNotFound = errors.New("progression: not found")
	// ErrLocked rejects entry into a module whose predecessor has not been
	// passed.
	ErrLocked = errors.New("progression: module is locked")
	// ErrTopicsIncomplete rejects exam start while topics remain.
	ErrTopicsIncomplete = errors.New("progression: complete all topics before the exam")
	// ErrAlreadyCompleted marks the idempotent re-completion of a topic;
	// informational, no state changes.
	ErrAlreadyCompleted = errors.New("progression: topic already completed")
	// ErrAttemptsExhausted rejects exam start once the configured retake
	// cap is reached (only when a cap is configured).
	ErrAttemptsExhausted = errors.New("progression: exam attempt limit reached")
	// ErrNotEligible rejects certificate issuance before course completion.
	ErrNotEligible = errors.New("progression: course not completed")
	// ErrAlreadyEnrolled rejects a duplicate enrollment in the same course.
	ErrAlreadyEnrolled = errors.New("progression: already enrolled")
)
