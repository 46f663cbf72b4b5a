package progression

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/innovorex/learnify-engine/internal/backend"
	"github.com/innovorex/learnify-engine/internal/events"
)

// CertificateTrigger requests certificate issuance exactly once per
// qualifying enrollment. It is invoked from every module-completion event
// once the course completes, so idempotence is the whole contract: an
// already-issued enrollment returns the stored certificate unchanged, and
// concurrent callers are collapsed through singleflight.
type CertificateTrigger struct {
	store  Store
	issuer backend.CertificateIssuer
	events events.Recorder
	group  singleflight.Group
}

// NewCertificateTrigger builds the trigger over the progression store and
// the issuing collaborator.
func NewCertificateTrigger(store Store, issuer backend.CertificateIssuer, rec events.Recorder) *CertificateTrigger {
	return &CertificateTrigger{store: store, issuer: issuer, events: rec}
}

// IssueIfEligible returns the enrollment's certificate, issuing one if
// the course is completed and none exists yet. Calling it repeatedly
// never produces a duplicate issuance request.
func (t *CertificateTrigger) IssueIfEligible(ctx context.Context, enrollmentID string) (backend.Certificate, error) {
	if cert, err := t.store.GetCertificate(ctx, enrollmentID); err == nil {
		return cert, nil
	} else if !errors.Is(err, ErrNotFound) && !errors.Is(err, backend.ErrNotFound) {
		return backend.Certificate{}, err
	}

	v, err, _ := t.group.Do(enrollmentID, func() (interface{}, error) {
		// Re-check inside the flight: a concurrent caller may have issued
		// while we waited.
		if cert, err := t.store.GetCertificate(ctx, enrollmentID); err == nil {
			return cert, nil
		}
		e, err := t.store.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return nil, err
		}
		if !e.Completed {
			return nil, ErrNotEligible
		}
		cert, err := t.issuer.IssueCertificate(ctx, enrollmentID)
		if err != nil {
			return nil, fmt.Errorf("issue certificate: %w", err)
		}
		if err := t.store.SaveCertificate(ctx, enrollmentID, cert); err != nil {
			return nil, err
		}
		if t.events != nil {
			t.events.Record(ctx, events.TypeCertificateIssued, enrollmentID, cert)
		}
		return cert, nil
	})
	if err != nil {
		return backend.Certificate{}, err
	}
	return v.(backend.Certificate), nil
}
