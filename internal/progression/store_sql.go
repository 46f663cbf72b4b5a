package progression

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/innovorex/learnify-engine/internal/backend"
)

// SQLStore persists progression state across the courses, modules,
// enrollments, module_state, and certificates tables. Module and topic
// definitions are stored as JSON blobs on their rows, matching how the
// question banks are stored.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutCourse(ctx context.Context, c CourseDef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO courses (id,title,created_at) VALUES ($1,$2,$3)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title`,
		c.ID, c.Title, time.Now().Unix())
	if err != nil {
		return err
	}
	for _, m := range c.Modules {
		tj, err := json.Marshal(m.Topics)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO modules (id,course_id,module_number,title,pass_percent,topics_json)
			 VALUES ($1,$2,$3,$4,$5,$6)
			 ON CONFLICT (id) DO UPDATE SET module_number=EXCLUDED.module_number,
			   title=EXCLUDED.title, pass_percent=EXCLUDED.pass_percent, topics_json=EXCLUDED.topics_json`,
			m.ID, c.ID, m.Number, m.Title, m.PassPercent, string(tj))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetCourse(ctx context.Context, courseID string) (CourseDef, error) {
	var c CourseDef
	err := s.db.QueryRowContext(ctx,
		`SELECT id,title FROM courses WHERE id=$1`, courseID).Scan(&c.ID, &c.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return CourseDef{}, ErrNotFound
	}
	if err != nil {
		return CourseDef{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id,module_number,title,pass_percent,topics_json
		 FROM modules WHERE course_id=$1 ORDER BY module_number`, courseID)
	if err != nil {
		return CourseDef{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var m ModuleDef
		var tj string
		if err := rows.Scan(&m.ID, &m.Number, &m.Title, &m.PassPercent, &tj); err != nil {
			return CourseDef{}, err
		}
		if err := json.Unmarshal([]byte(tj), &m.Topics); err != nil {
			return CourseDef{}, err
		}
		c.Modules = append(c.Modules, m)
	}
	return c, rows.Err()
}

func (s *SQLStore) CreateEnrollment(ctx context.Context, e Enrollment, initial []ModuleState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO enrollments (id,user_id,course_id,completed,created_at)
		 VALUES ($1,$2,$3,0,$4)`,
		e.ID, e.UserID, e.CourseID, e.CreatedAt.Unix())
	if err != nil {
		return err
	}
	for _, st := range initial {
		if err := upsertState(ctx, tx, e.ID, st); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetEnrollment(ctx context.Context, enrollmentID string) (Enrollment, error) {
	var e Enrollment
	var completed int
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id,user_id,course_id,completed,created_at FROM enrollments WHERE id=$1`,
		enrollmentID).Scan(&e.ID, &e.UserID, &e.CourseID, &completed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, ErrNotFound
	}
	if err != nil {
		return Enrollment{}, err
	}
	e.Completed = completed != 0
	e.CreatedAt = time.Unix(created, 0)
	return e, nil
}

func (s *SQLStore) FindEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM enrollments WHERE user_id=$1 AND course_id=$2`,
		userID, courseID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, ErrNotFound
	}
	if err != nil {
		return Enrollment{}, err
	}
	return s.GetEnrollment(ctx, id)
}

func (s *SQLStore) SetEnrollmentCompleted(ctx context.Context, enrollmentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET completed=1 WHERE id=$1`, enrollmentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) GetModuleStates(ctx context.Context, enrollmentID string) ([]ModuleState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT module_id,status,percent,topics_json,best_score,latest_score,attempts,passed
		 FROM module_state WHERE enrollment_id=$1`, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModuleState
	for rows.Next() {
		var st ModuleState
		var status, tj string
		var passed int
		if err := rows.Scan(&st.ModuleID, &status, &st.Percent, &tj,
			&st.BestScore, &st.LatestScore, &st.Attempts, &passed); err != nil {
			return nil, err
		}
		st.Status = ModuleStatus(status)
		st.Passed = passed != 0
		if err := json.Unmarshal([]byte(tj), &st.CompletedTopics); err != nil {
			st.CompletedTopics = map[string]bool{}
		}
		out = append(out, st)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveModuleState(ctx context.Context, enrollmentID string, st ModuleState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := upsertState(ctx, tx, enrollmentID, st); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertState(ctx context.Context, tx *sql.Tx, enrollmentID string, st ModuleState) error {
	tj, err := json.Marshal(st.CompletedTopics)
	if err != nil {
		return err
	}
	passed := 0
	if st.Passed {
		passed = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO module_state (enrollment_id,module_id,status,percent,topics_json,best_score,latest_score,attempts,passed)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (enrollment_id,module_id) DO UPDATE SET
		   status=EXCLUDED.status, percent=EXCLUDED.percent, topics_json=EXCLUDED.topics_json,
		   best_score=EXCLUDED.best_score, latest_score=EXCLUDED.latest_score,
		   attempts=EXCLUDED.attempts, passed=EXCLUDED.passed`,
		enrollmentID, st.ModuleID, string(st.Status), st.Percent, string(tj),
		st.BestScore, st.LatestScore, st.Attempts, passed)
	return err
}

func (s *SQLStore) GetCertificate(ctx context.Context, enrollmentID string) (backend.Certificate, error) {
	var c backend.Certificate
	err := s.db.QueryRowContext(ctx,
		`SELECT certificate_number,verification_code FROM certificates WHERE enrollment_id=$1`,
		enrollmentID).Scan(&c.CertificateNumber, &c.VerificationCode)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.Certificate{}, ErrNotFound
	}
	if err != nil {
		return backend.Certificate{}, err
	}
	return c, nil
}

func (s *SQLStore) SaveCertificate(ctx context.Context, enrollmentID string, cert backend.Certificate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO certificates (enrollment_id,certificate_number,verification_code,issued_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (enrollment_id) DO NOTHING`,
		enrollmentID, cert.CertificateNumber, cert.VerificationCode, time.Now().Unix())
	return err
}
