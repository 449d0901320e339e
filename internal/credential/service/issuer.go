package service

import (
	"context"
	"errors"
	"time"

	"idwallet/internal/credential/models"
	"idwallet/internal/ledger"
	"idwallet/internal/platform/privacy"
	"idwallet/internal/platform/tracer"
	id "idwallet/pkg/domain"
	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/sentinel"
)

// Issue creates a fresh active credential valid for validity and revokes
// the subject's previous active credential, if any.
func (s *Service) Issue(ctx context.Context, subjectID id.SubjectID, validity time.Duration) (issued *models.Credential, err error) {
	ctx, span := s.tracer.Start(ctx, "credential.issue",
		tracer.String("validity", validity.String()),
	)
	defer func() { span.End(err) }()

	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	if validity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "validity must be positive")
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "issue cancelled")
	}
	start := time.Now()

	var revoked *models.Credential
	err = s.locks.WithLock(subjectID.String(), func() error {
		now := s.clock.Now()
		credentialID := id.NewCredentialID()
		next := &models.Credential{
			ID:              credentialID,
			SubjectID:       subjectID,
			IssuedAt:        now,
			ExpiresAt:       now.Add(validity),
			Status:          models.StatusActive,
			PayloadHash:     models.ComputePayloadHash(subjectID, now, credentialID),
			StatusChangedAt: now,
		}
		previous, err := s.store.Rotate(ctx, next, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
		}

		payload := ledger.Payload{
			ledger.KeyCredentialID: credentialID.String(),
			ledger.KeySubjectID:    subjectID.String(),
			ledger.KeyExpiresAt:    formatTime(next.ExpiresAt),
		}
		if previous != nil && previous.Status == models.StatusRevoked {
			payload[ledger.KeyRevokedCredentialID] = previous.ID.String()
		}
		// Ledger order per subject follows store order, hence inside the lock.
		if _, err := s.ledger.Append(context.WithoutCancel(ctx), ledger.EventCredentialIssued, payload); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record credential issuance")
		}
		issued = next
		if previous != nil && previous.Status == models.StatusRevoked {
			revoked = previous
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "credential issuance failed",
			"subject", privacy.MaskIdentifier(subjectID.String()),
			"error", err,
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementIssued()
		if revoked != nil {
			s.metrics.IncrementRevoked("reissued")
		}
		s.metrics.ObserveIssueLatency(time.Since(start).Seconds())
	}
	attrs := []any{
		"credential_id", issued.ID.String(),
		"subject", privacy.MaskIdentifier(subjectID.String()),
		"expires_at", issued.ExpiresAt,
	}
	if revoked != nil {
		attrs = append(attrs, "revoked_credential_id", revoked.ID.String())
	}
	s.logger.InfoContext(ctx, "credential issued", attrs...)
	span.SetAttributes(tracer.String("credential_id", issued.ID.String()))
	return issued, nil
}

// Revoke ends an active credential at the subject's request.
// Credentials that are no longer active return the matching terminal-state
// error (already_used, revoked or expired).
func (s *Service) Revoke(ctx context.Context, credentialID id.CredentialID) (revoked *models.Credential, err error) {
	ctx, span := s.tracer.Start(ctx, "credential.revoke",
		tracer.String("credential_id", credentialID.String()),
	)
	defer func() { span.End(err) }()

	if credentialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "revoke cancelled")
	}

	current, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}

	err = s.locks.WithLock(current.SubjectID.String(), func() error {
		now := s.clock.Now()
		if current.Status == models.StatusActive && current.IsExpiredAt(now) {
			if err := s.expire(ctx, current, now); err != nil {
				return err
			}
			return statusError(models.StatusExpired)
		}
		updated, err := s.store.Transition(ctx, credentialID, models.StatusActive, models.StatusRevoked, now)
		if errors.Is(err, sentinel.ErrInvalidState) {
			latest, findErr := s.store.FindByID(ctx, credentialID)
			if findErr != nil {
				return dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to reload credential")
			}
			return statusError(latest.Status)
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke credential")
		}
		if _, err := s.ledger.Append(context.WithoutCancel(ctx), ledger.EventCredentialRevoked, ledger.Payload{
			ledger.KeyCredentialID: credentialID.String(),
			ledger.KeySubjectID:    updated.SubjectID.String(),
			ledger.KeyReason:       "subject_request",
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record credential revocation")
		}
		revoked = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRevoked("subject_request")
	}
	s.logger.InfoContext(ctx, "credential revoked",
		"credential_id", credentialID.String(),
		"subject", privacy.MaskIdentifier(revoked.SubjectID.String()),
	)
	return revoked, nil
}

// Current returns the subject's active credential, applying lazy expiry.
// It returns not_found when the subject has no usable credential.
func (s *Service) Current(ctx context.Context, subjectID id.SubjectID) (*models.Credential, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	current, err := s.store.FindActiveBySubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active credential")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active credential")
	}
	now := s.clock.Now()
	if current.IsExpiredAt(now) {
		if err := s.expire(ctx, current, now); err != nil {
			return nil, err
		}
		return nil, dErrors.New(dErrors.CodeNotFound, "no active credential")
	}
	return current, nil
}

// History returns every credential issued to the subject, oldest first,
// with lazy expiry applied to the active one.
func (s *Service) History(ctx context.Context, subjectID id.SubjectID) ([]*models.Credential, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	records, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	now := s.clock.Now()
	for _, c := range records {
		if c.Status != models.StatusActive || !c.IsExpiredAt(now) {
			continue
		}
		if err := s.expire(ctx, c, now); err != nil {
			return nil, err
		}
		latest, err := s.store.FindByID(ctx, c.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload credential")
		}
		*c = *latest
	}
	return records, nil
}
