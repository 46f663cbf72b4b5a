// Package backend defines the collaborator boundary the engine talks to
// for exam content, scoring, and certificate issuance. Two implementations
// exist: a remote JSON/HTTP client (online mode) and a local store-backed
// service (offline mode).
package backend

import (
	"context"
	"errors"
	"time"
)

// Question is an exam question as served to a session. CorrectAnswer is
// withheld until scoring.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
}

// Answer pairs a question with the selected choice label ("A", "B", ...).
type Answer struct {
	QuestionID     string `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
}

// ReviewItem is the per-question correctness breakdown returned with a
// score, retained so a review view needs no second round-trip.
type ReviewItem struct {
	QuestionID    string   `json:"question_id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	UserAnswer    string   `json:"user_answer"`
	CorrectAnswer string   `json:"correct_answer"`
	IsCorrect     bool     `json:"is_correct"`
}

// ScoreResult is the outcome of scoring one submitted answer set.
type ScoreResult struct {
	Total      int          `json:"total"`
	Correct    int          `json:"correct"`
	Percentage float64      `json:"percentage"`
	Review     []ReviewItem `json:"review"`
}

// Certificate carries the opaque identifiers issued for a completed
// enrollment.
type Certificate struct {
	CertificateNumber string `json:"certificate_number"`
	VerificationCode  string `json:"verification_code"`
}

// AssessmentInfo is the timing metadata for an assessment or module
// exam. A fixed EndTime (K-12 exams) takes precedence over
// TimeLimitSec; with neither set the caller applies its default window.
type AssessmentInfo struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	TimeLimitSec int        `json:"time_limit_sec"`
	EndTime      *time.Time `json:"end_time,omitempty"`
}

// ErrNotFound is returned when the collaborator has no record for the
// requested assessment, module, or certificate.
var ErrNotFound = errors.New("backend: not found")

// QuestionService supplies question sets and scores submitted answers.
type QuestionService interface {
	// Info returns timing metadata for an assessment or module exam.
	Info(ctx context.Context, targetID string) (AssessmentInfo, error)
	// FetchQuestions returns the ordered question set for a standalone
	// assessment, answer keys stripped.
	FetchQuestions(ctx context.Context, assessmentID string) ([]Question, error)
	// ModuleExamQuestions returns the ordered question set for a course
	// module's exam, answer keys stripped.
	ModuleExamQuestions(ctx context.Context, moduleID string) ([]Question, error)
	// Score grades an ordered answer set against the assessment or module
	// identified by targetID.
	Score(ctx context.Context, targetID string, answers []Answer) (ScoreResult, error)
}

// CertificateIssuer requests certificate issuance for an enrollment.
type CertificateIssuer interface {
	IssueCertificate(ctx context.Context, enrollmentID string) (Certificate, error)
}
