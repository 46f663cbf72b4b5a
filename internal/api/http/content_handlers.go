package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/innovorex/learnify-engine/internal/backend"
	"github.com/innovorex/learnify-engine/internal/progression"
)

// Offline-mode authoring: teachers load question banks and course
// definitions into the local database.

var validate = validator.New()

type questionInput struct {
	ID            string   `json:"id"`
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
}

type createAssessmentRequest struct {
	ID           string          `json:"id"`
	Title        string          `json:"title" validate:"required"`
	TimeLimitSec int             `json:"time_limit_sec" validate:"gte=0"`
	EndTime      *int64          `json:"end_time,omitempty"` // unix seconds, K-12 fixed deadline
	Questions    []questionInput `json:"questions" validate:"required,min=1,dive"`
}

// CreateAssessmentHandler stores a standalone assessment's question bank.
func CreateAssessmentHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAssessmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errBody{Error: "bad json"})
			return
		}
		if err := validate.Struct(req); err != nil {
			writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error()})
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		if req.TimeLimitSec == 0 {
			req.TimeLimitSec = 1800
		}
		qj, err := json.Marshal(toQuestions(req.Questions))
		if err != nil {
			writeErr(w, err)
			return
		}
		var endTime interface{}
		if req.EndTime != nil {
			endTime = *req.EndTime
		}
		_, err = db.ExecContext(r.Context(),
			`INSERT INTO assessments (id,title,time_limit_sec,end_time,questions_json,created_at)
			 VALUES ($1,$2,$3,$4,$5,$6)
			 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title,
			   time_limit_sec=EXCLUDED.time_limit_sec, end_time=EXCLUDED.end_time,
			   questions_json=EXCLUDED.questions_json`,
			req.ID, req.Title, req.TimeLimitSec, endTime, string(qj), time.Now().Unix())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
	}
}

type topicInput struct {
	ID     string `json:"id"`
	Number int    `json:"number" validate:"gte=1"`
	Title  string `json:"title" validate:"required"`
}

type moduleInput struct {
	ID           string          `json:"id"`
	Number       int             `json:"number" validate:"gte=1"`
	Title        string          `json:"title" validate:"required"`
	PassPercent  float64         `json:"pass_percent" validate:"gte=0,lte=100"`
	TimeLimitSec int             `json:"time_limit_sec" validate:"gte=0"`
	Topics       []topicInput    `json:"topics" validate:"required,min=1,dive"`
	Questions    []questionInput `json:"questions" validate:"required,min=1,dive"`
}

type createCourseRequest struct {
	ID      string        `json:"id"`
	Title   string        `json:"title" validate:"required"`
	Modules []moduleInput `json:"modules" validate:"required,min=1,dive"`
}

// CreateCourseHandler stores a course definition: ordered modules, their
// topics, and their exam question banks.
func CreateCourseHandler(db *sql.DB, store progression.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCourseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errBody{Error: "bad json"})
			return
		}
		if err := validate.Struct(req); err != nil {
			writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error()})
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		def := progression.CourseDef{ID: req.ID, Title: req.Title}
		for _, m := range req.Modules {
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			topics := make([]progression.Topic, 0, len(m.Topics))
			for _, t := range m.Topics {
				if t.ID == "" {
					t.ID = uuid.NewString()
				}
				topics = append(topics, progression.Topic{ID: t.ID, Number: t.Number, Title: t.Title})
			}
			def.Modules = append(def.Modules, progression.ModuleDef{
				ID:          m.ID,
				Number:      m.Number,
				Title:       m.Title,
				PassPercent: m.PassPercent,
				Topics:      topics,
			})
		}
		if err := store.PutCourse(r.Context(), def); err != nil {
			writeErr(w, err)
			return
		}

		// Module question banks and timing live on the module rows.
		for i, m := range req.Modules {
			qj, err := json.Marshal(toQuestions(m.Questions))
			if err != nil {
				writeErr(w, err)
				return
			}
			limit := m.TimeLimitSec
			if limit == 0 {
				limit = 1800
			}
			_, err = db.ExecContext(r.Context(),
				`UPDATE modules SET questions_json=$1, time_limit_sec=$2 WHERE id=$3`,
				string(qj), limit, def.Modules[i].ID)
			if err != nil {
				writeErr(w, err)
				return
			}
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
	}
}

func toQuestions(in []questionInput) []backend.Question {
	out := make([]backend.Question, 0, len(in))
	for _, q := range in {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		out = append(out, backend.Question{
			ID:            q.ID,
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	return out
}
