package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalService serves question banks and scoring from the local database
// in offline mode. It satisfies both QuestionService and
// CertificateIssuer.
type LocalService struct {
	db    *sql.DB
	now   func() time.Time
	score func(questions []Question, answers []Answer) ScoreResult
}

// NewLocalService builds the offline collaborator. score is the grading
// function (internal/scoring.Score); it is injected to keep this package
// free of a dependency on the scorer.
func NewLocalService(db *sql.DB, score func([]Question, []Answer) ScoreResult) *LocalService {
	return &LocalService{db: db, now: time.Now, score: score}
}

func (s *LocalService) Info(ctx context.Context, targetID string) (AssessmentInfo, error) {
	var info AssessmentInfo
	var endTime sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id,title,time_limit_sec,end_time FROM assessments WHERE id=$1`,
		targetID).Scan(&info.ID, &info.Title, &info.TimeLimitSec, &endTime)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.QueryRowContext(ctx,
			`SELECT id,title,time_limit_sec FROM modules WHERE id=$1`,
			targetID).Scan(&info.ID, &info.Title, &info.TimeLimitSec)
		if errors.Is(err, sql.ErrNoRows) {
			return AssessmentInfo{}, ErrNotFound
		}
	}
	if err != nil {
		return AssessmentInfo{}, err
	}
	if endTime.Valid && endTime.Int64 > 0 {
		t := time.Unix(endTime.Int64, 0)
		info.EndTime = &t
	}
	return info, nil
}

func (s *LocalService) FetchQuestions(ctx context.Context, assessmentID string) ([]Question, error) {
	qs, err := s.questionBank(ctx, `SELECT questions_json FROM assessments WHERE id=$1`, assessmentID)
	if err != nil {
		return nil, err
	}
	return stripKeys(qs), nil
}

func (s *LocalService) ModuleExamQuestions(ctx context.Context, moduleID string) ([]Question, error) {
	qs, err := s.questionBank(ctx, `SELECT questions_json FROM modules WHERE id=$1`, moduleID)
	if err != nil {
		return nil, err
	}
	return stripKeys(qs), nil
}

func (s *LocalService) Score(ctx context.Context, targetID string, answers []Answer) (ScoreResult, error) {
	qs, err := s.questionBank(ctx, `SELECT questions_json FROM assessments WHERE id=$1`, targetID)
	if errors.Is(err, ErrNotFound) {
		qs, err = s.questionBank(ctx, `SELECT questions_json FROM modules WHERE id=$1`, targetID)
	}
	if err != nil {
		return ScoreResult{}, err
	}
	return s.score(qs, answers), nil
}

// IssueCertificate mints a certificate locally. Numbers are
// year-scoped and verification codes are opaque UUIDs.
func (s *LocalService) IssueCertificate(_ context.Context, enrollmentID string) (Certificate, error) {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return Certificate{
		CertificateNumber: fmt.Sprintf("CERT-%d-%s", s.now().Year(), suffix),
		VerificationCode:  uuid.NewString(),
	}, nil
}

func (s *LocalService) questionBank(ctx context.Context, query, id string) ([]Question, error) {
	var qj string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&qj)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var qs []Question
	if err := json.Unmarshal([]byte(qj), &qs); err != nil {
		return nil, fmt.Errorf("question bank %s: %w", id, err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("question bank %s is empty", id)
	}
	return qs, nil
}

func stripKeys(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)
	for i := range out {
		out[i].CorrectAnswer = ""
	}
	return out
}
