package exam

import "time"

// Kind distinguishes standalone assessments from course-module exams.
type Kind string

const (
	KindAssessment Kind = "assessment"
	KindModuleExam Kind = "module_exam"
)

// State is the session lifecycle: ready -> scoring -> scored, with
// submission_failed as the retryable off-ramp.
type State string

const (
	StateReady            State = "in_progress"
	StateScoring          State = "scoring"
	StateScored           State = "scored"
	StateSubmissionFailed State = "submission_failed"
)

// Trigger identifies what initiated a submission.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerExpiry Trigger = "timer_expiry"
)

// DefaultChoice is the label substituted for unanswered questions on
// forced or confirmed-partial submission, matching collaborator scoring
// semantics. See DESIGN.md for the policy decision.
const DefaultChoice = "A"

// Attempt is the persisted record of a finished (scored) session.
type Attempt struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	TargetID     string    `json:"target_id"` // assessment or module ID
	Kind         Kind      `json:"kind"`
	Status       string    `json:"status"` // submitted | expired_auto_submitted
	ScorePercent float64   `json:"score_percent"`
	Correct      int       `json:"correct"`
	Total        int       `json:"total"`
	StartedAt    time.Time `json:"started_at"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Attempt statuses.
const (
	StatusSubmitted   = "submitted"
	StatusAutoExpired = "expired_auto_submitted"
)
