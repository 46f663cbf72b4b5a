// Package events appends domain events to the event_log table. The log
// is an audit trail; recording failures are logged, never propagated.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"
)

// Event types recorded by the engine.
const (
	TypeEnrolled          = "Enrolled"
	TypeTopicCompleted    = "TopicCompleted"
	TypeModuleCompleted   = "ModuleCompleted"
	TypeCourseCompleted   = "CourseCompleted"
	TypeCertificateIssued = "CertificateIssued"
	TypeCertificateError  = "CertificateError"
	TypeAttemptScored     = "AttemptScored"
)

// Recorder accepts domain events. data is marshaled to JSON; nil is
// recorded as an empty payload.
type Recorder interface {
	Record(ctx context.Context, typ, key string, data interface{})
}

// Log is the SQL-backed Recorder.
type Log struct {
	db     *sql.DB
	siteID string
}

// NewLog builds an event log writer. siteID distinguishes deployments
// when logs are merged; "local" is the single-site default.
func NewLog(db *sql.DB, siteID string) *Log {
	if siteID == "" {
		siteID = "local"
	}
	return &Log{db: db, siteID: siteID}
}

func (l *Log) Record(ctx context.Context, typ, key string, data interface{}) {
	payload := "{}"
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			log.Printf("event %s/%s: marshal payload: %v", typ, key, err)
		} else {
			payload = string(b)
		}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		l.siteID, typ, key, payload, time.Now().Unix())
	if err != nil {
		log.Printf("event %s/%s: append: %v", typ, key, err)
	}
}
