package command

import (
	"strings"

	"github.com/goliatone/go-websub/core"
)

const (
	TypeVerifyCallback          = "websub.command.callback.verify"
	TypeSaveSubscription        = "websub.command.subscription.save"
	TypeDeleteSubscription      = "websub.command.subscription.delete"
	TypePruneLapsedSubscription = "websub.command.subscription.prune"
	TypeScheduleLeaseRenewals   = "websub.command.subscription.schedule_renewals"
)

type VerifyCallbackMessage struct {
	Request core.VerificationRequest
}

func (VerifyCallbackMessage) Type() string { return TypeVerifyCallback }

func (m VerifyCallbackMessage) Validate() error {
	if !m.Request.Mode.Valid() {
		return commandValidationError("mode", "mode must be subscribe or unsubscribe")
	}
	if strings.TrimSpace(m.Request.Topic) == "" {
		return commandValidationError("topic", "topic is required")
	}
	if m.Request.Challenge == "" {
		return commandValidationError("challenge", "challenge is required")
	}
	if m.Request.LeaseSeconds != nil && *m.Request.LeaseSeconds < 0 {
		return commandValidationError("lease_seconds", "lease_seconds must be >= 0")
	}
	return nil
}

type SaveSubscriptionMessage struct {
	Subscription core.Subscription
}

func (SaveSubscriptionMessage) Type() string { return TypeSaveSubscription }

func (m SaveSubscriptionMessage) Validate() error {
	return commandWrapValidation(m.Subscription.Validate(), "command: invalid subscription")
}

type DeleteSubscriptionMessage struct {
	SubscriptionID string
}

func (DeleteSubscriptionMessage) Type() string { return TypeDeleteSubscription }

func (m DeleteSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return commandValidationError("subscription_id", "subscription id is required")
	}
	return nil
}

type PruneLapsedSubscriptionsMessage struct{}

func (PruneLapsedSubscriptionsMessage) Type() string { return TypePruneLapsedSubscription }

func (PruneLapsedSubscriptionsMessage) Validate() error { return nil }

type ScheduleLeaseRenewalsMessage struct {
	// WithinSeconds falls back to leases.renew_within_seconds when zero.
	WithinSeconds int
}

func (ScheduleLeaseRenewalsMessage) Type() string { return TypeScheduleLeaseRenewals }

func (m ScheduleLeaseRenewalsMessage) Validate() error {
	if m.WithinSeconds < 0 {
		return commandValidationError("within_seconds", "within_seconds must be >= 0")
	}
	return nil
}
