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

// Validate checks a presented credential and consumes it on success.
//
// Checks run in this order:
//  1. unknown id: not_found
//  2. active but past expiry: transitions to expired, expired
//  3. not active: already_used, revoked or expired
//  4. presented hash differs from the issued payload hash: hash_mismatch
//  5. compare-and-set active to used; losers observe the winner's result
//
// Every attempt appends credential_verified or credential_rejected.
// Rejections are returned as an Outcome; errors are reserved for invalid
// input and infrastructure faults.
func (s *Service) Validate(ctx context.Context, credentialID id.CredentialID, presentedHash string) (outcome models.Outcome, err error) {
	ctx, span := s.tracer.Start(ctx, "credential.validate",
		tracer.String("credential_id", credentialID.String()),
	)
	defer func() { span.End(err) }()

	if credentialID.IsNil() {
		return models.Outcome{}, dErrors.New(dErrors.CodeInvalidInput, "credential id is required")
	}
	if err := ctx.Err(); err != nil {
		return models.Outcome{}, dErrors.Wrap(err, dErrors.CodeTimeout, "validation cancelled")
	}
	start := time.Now()

	outcome, err = s.evaluateAndRecord(ctx, credentialID, presentedHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "credential validation failed",
			"credential_id", credentialID.String(),
			"error", err,
		)
		return models.Outcome{}, err
	}

	if s.metrics != nil {
		if outcome.Accepted {
			s.metrics.IncrementAccepted()
		} else {
			s.metrics.IncrementRejected(string(outcome.Reason))
		}
		s.metrics.ObserveValidateLatency(time.Since(start).Seconds())
	}
	span.SetAttributes(
		tracer.Bool("accepted", outcome.Accepted),
		tracer.String("reason", string(outcome.Reason)),
	)
	return outcome, nil
}

// evaluateAndRecord decides the outcome and appends it to the ledger while
// holding the subject lock, so a subject's ledger entries follow the order
// of its store transitions.
func (s *Service) evaluateAndRecord(ctx context.Context, credentialID id.CredentialID, presentedHash string) (models.Outcome, error) {
	c, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return models.Outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
		}
		outcome := models.Rejected(credentialID, models.ReasonNotFound)
		return outcome, s.recordOutcome(ctx, outcome, "")
	}

	var outcome models.Outcome
	err = s.locks.WithLock(c.SubjectID.String(), func() error {
		var err error
		outcome, err = s.evaluate(ctx, c, presentedHash)
		if err != nil {
			return err
		}
		return s.recordOutcome(ctx, outcome, c.SubjectID)
	})
	if err != nil {
		return models.Outcome{}, err
	}
	return outcome, nil
}

// evaluate applies the validation rules to c. c may have been read before
// the lock was taken; every transition is a compare-and-set and the losing
// path re-reads, so a stale status cannot yield a second acceptance.
func (s *Service) evaluate(ctx context.Context, c *models.Credential, presentedHash string) (models.Outcome, error) {
	credentialID := c.ID
	now := s.clock.Now()
	if c.Status == models.StatusActive && c.IsExpiredAt(now) {
		if err := s.expire(ctx, c, now); err != nil {
			return models.Outcome{}, err
		}
		return rejectedFor(c, models.ReasonExpired), nil
	}
	if c.Status != models.StatusActive {
		return rejectedFor(c, models.ReasonForStatus(c.Status)), nil
	}
	if !c.MatchesHash(presentedHash) {
		if s.metrics != nil {
			s.metrics.IncrementTamperSuspected()
		}
		s.logger.WarnContext(ctx, "presented payload hash does not match issued credential; possible tampering",
			"credential_id", credentialID.String(),
			"subject", privacy.MaskIdentifier(c.SubjectID.String()),
		)
		return rejectedFor(c, models.ReasonHashMismatch), nil
	}

	if _, err := s.store.Transition(ctx, credentialID, models.StatusActive, models.StatusUsed, now); err != nil {
		if !errors.Is(err, sentinel.ErrInvalidState) {
			return models.Outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume credential")
		}
		// Another transition won; report what it left behind.
		latest, findErr := s.store.FindByID(ctx, credentialID)
		if findErr != nil {
			return models.Outcome{}, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to reload credential")
		}
		reason := models.ReasonForStatus(latest.Status)
		if reason == models.ReasonNone {
			return models.Outcome{}, dErrors.New(dErrors.CodeInvariantViolation, "credential active after losing consume race")
		}
		return rejectedFor(latest, reason), nil
	}
	return models.Accepted(c), nil
}

func rejectedFor(c *models.Credential, reason models.RejectReason) models.Outcome {
	out := models.Rejected(c.ID, reason)
	out.SubjectID = c.SubjectID
	return out
}

func (s *Service) recordOutcome(ctx context.Context, outcome models.Outcome, subjectID id.SubjectID) error {
	eventType := ledger.EventCredentialVerified
	payload := ledger.Payload{
		ledger.KeyCredentialID: outcome.CredentialID.String(),
	}
	if !subjectID.IsNil() {
		payload[ledger.KeySubjectID] = subjectID.String()
	}
	if !outcome.Accepted {
		eventType = ledger.EventCredentialRejected
		payload[ledger.KeyReason] = string(outcome.Reason)
	}
	if _, err := s.ledger.Append(context.WithoutCancel(ctx), eventType, payload); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record validation outcome")
	}

	if outcome.Accepted {
		s.logger.InfoContext(ctx, "credential verified",
			"credential_id", outcome.CredentialID.String(),
			"subject", privacy.MaskIdentifier(subjectID.String()),
		)
	} else if outcome.Reason != models.ReasonHashMismatch {
		s.logger.InfoContext(ctx, "credential rejected",
			"credential_id", outcome.CredentialID.String(),
			"reason", string(outcome.Reason),
		)
	}
	return nil
}
