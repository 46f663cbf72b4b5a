package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/innovorex/learnify-engine/internal/backend"
)

// SQLStore persists scored attempts in the attempts table. Works with
// both the sqlite and postgres drivers opened by internal/db.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) SaveAttempt(ctx context.Context, a Attempt, review []backend.ReviewItem) error {
	rj, err := json.Marshal(review)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id,user_id,target_id,kind,status,score_percent,correct,total,review_json,started_at,submitted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.UserID, a.TargetID, string(a.Kind), a.Status,
		a.ScorePercent, a.Correct, a.Total, string(rj),
		a.StartedAt.Unix(), a.SubmittedAt.Unix())
	return err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT id,user_id,target_id,kind,status,score_percent,correct,total,started_at,submitted_at
	      FROM attempts WHERE 1=1`
	args := []interface{}{}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		q += ` AND user_id=` + placeholder(len(args))
	}
	if opts.TargetID != "" {
		args = append(args, opts.TargetID)
		q += ` AND target_id=` + placeholder(len(args))
	}
	q += ` ORDER BY submitted_at DESC`
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	q += ` LIMIT ` + placeholder(len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += ` OFFSET ` + placeholder(len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var kind string
		var started, submitted int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.TargetID, &kind, &a.Status,
			&a.ScorePercent, &a.Correct, &a.Total, &started, &submitted); err != nil {
			return nil, err
		}
		a.Kind = Kind(kind)
		a.StartedAt = unixTime(started)
		a.SubmittedAt = unixTime(submitted)
		out = append(out, a)
	}
	return out, rows.Err()
}

func placeholder(n int) string { return "$" + strconv.Itoa(n) }

func unixTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}

// GetAttemptReview loads a finished attempt with its retained
// per-question review.
func (s *SQLStore) GetAttemptReview(ctx context.Context, attemptID string) (Attempt, []backend.ReviewItem, error) {
	var a Attempt
	var kind, rj string
	var started, submitted int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id,user_id,target_id,kind,status,score_percent,correct,total,review_json,started_at,submitted_at
		 FROM attempts WHERE id=$1`, attemptID).
		Scan(&a.ID, &a.UserID, &a.TargetID, &kind, &a.Status,
			&a.ScorePercent, &a.Correct, &a.Total, &rj, &started, &submitted)
	if err == sql.ErrNoRows {
		return Attempt{}, nil, ErrSessionNotFound
	}
	if err != nil {
		return Attempt{}, nil, err
	}
	a.Kind = Kind(kind)
	a.StartedAt = unixTime(started)
	a.SubmittedAt = unixTime(submitted)
	var review []backend.ReviewItem
	if err := json.Unmarshal([]byte(rj), &review); err != nil {
		return Attempt{}, nil, err
	}
	return a, review, nil
}
