package progression

import (
	"context"

	"github.com/innovorex/learnify-engine/internal/backend"
)

// Store persists course definitions and per-enrollment progression state.
type Store interface {
	PutCourse(ctx context.Context, c CourseDef) error
	GetCourse(ctx context.Context, courseID string) (CourseDef, error)

	CreateEnrollment(ctx context.Context, e Enrollment, initial []ModuleState) error
	GetEnrollment(ctx context.Context, enrollmentID string) (Enrollment, error)
	FindEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error)
	SetEnrollmentCompleted(ctx context.Context, enrollmentID string) error

	GetModuleStates(ctx context.Context, enrollmentID string) ([]ModuleState, error)
	SaveModuleState(ctx context.Context, enrollmentID string, st ModuleState) error

	GetCertificate(ctx context.Context, enrollmentID string) (backend.Certificate, error)
	SaveCertificate(ctx context.Context, enrollmentID string, cert backend.Certificate) error
}
