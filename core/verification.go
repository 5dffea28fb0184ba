package core

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const verificationContentType = "text/plain"

// Verify answers one hub verification callback. A rejection is a normal
// result, not an error; errors are reserved for invalid requests and store
// or lock failures.
func (s *Service) Verify(ctx context.Context, req VerificationRequest) (result VerificationResult, err error) {
	startedAt := time.Now().UTC()
	req.Topic = strings.TrimSpace(req.Topic)
	fields := map[string]any{
		"topic":     req.Topic,
		"mode":      string(req.Mode),
		"challenge": req.Challenge,
	}
	if req.LeaseSeconds != nil {
		fields["lease_seconds"] = *req.LeaseSeconds
	}
	defer func() {
		if result.Outcome != "" {
			fields["outcome"] = string(result.Outcome)
		}
		s.observeOperation(ctx, startedAt, "verify", err, fields)
	}()
	if err := s.storeReady(); err != nil {
		return VerificationResult{}, err
	}
	if err := validateVerificationRequest(req); err != nil {
		return VerificationResult{}, s.mapError(err)
	}

	err = s.withTopicLock(ctx, req.Topic, func(ctx context.Context) error {
		var verifyErr error
		result, verifyErr = s.verifyLocked(ctx, req)
		return verifyErr
	})
	if err != nil {
		return VerificationResult{}, s.mapError(err)
	}
	if result.Subscription.ID != "" {
		fields["subscription_id"] = result.Subscription.ID
	}
	return result, nil
}

func (s *Service) verifyLocked(ctx context.Context, req VerificationRequest) (VerificationResult, error) {
	sub, found, err := s.subscriptionStore.FindByTopic(ctx, req.Topic)
	if err != nil {
		return VerificationResult{}, err
	}
	if !found || !sub.Accepts(req.Mode) {
		return rejectedVerification(), nil
	}

	switch req.Mode {
	case ModeSubscribe:
		outcome := VerificationConfirmed
		if sub.State() == SubscriptionStateConfirmed {
			outcome = VerificationRenewed
		}
		var expires time.Time
		if lease, ok := s.config.Verification.LeaseFor(req.LeaseSeconds); ok {
			expires = s.clock().Add(lease)
		}
		sub.Confirm(expires)
		if err := s.subscriptionStore.Update(ctx, &sub); err != nil {
			return VerificationResult{}, err
		}
		return acceptedVerification(req.Challenge, outcome, sub), nil
	case ModeUnsubscribe:
		if err := s.subscriptionStore.Delete(ctx, sub.ID); err != nil {
			return VerificationResult{}, err
		}
		return acceptedVerification(req.Challenge, VerificationRemoved, sub), nil
	default:
		return rejectedVerification(), nil
	}
}

func validateVerificationRequest(req VerificationRequest) error {
	if !req.Mode.Valid() {
		return BadInputError("core: hub.mode is invalid", map[string]any{"mode": string(req.Mode)})
	}
	if req.Topic == "" {
		return BadInputError("core: hub.topic is required", nil)
	}
	if req.Challenge == "" {
		return BadInputError("core: hub.challenge is required", nil)
	}
	if req.LeaseSeconds != nil && *req.LeaseSeconds < 0 {
		return BadInputError("core: hub.lease_seconds must not be negative", map[string]any{
			"lease_seconds": *req.LeaseSeconds,
		})
	}
	return nil
}

func acceptedVerification(challenge string, outcome VerificationOutcome, sub Subscription) VerificationResult {
	return VerificationResult{
		Accepted:     true,
		Outcome:      outcome,
		StatusCode:   http.StatusOK,
		ContentType:  verificationContentType,
		Body:         challenge,
		Subscription: sub,
	}
}

func rejectedVerification() VerificationResult {
	return VerificationResult{
		Outcome:    VerificationRejected,
		StatusCode: http.StatusNotFound,
	}
}
