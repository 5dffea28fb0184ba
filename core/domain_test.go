package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestNewSubscription_ValidatesSecretLength(t *testing.T) {
	if _, err := NewSubscription("topic1", secretTopic1, ModeSubscribe); err != nil {
		t.Fatalf("expected 32 byte secret to be accepted: %v", err)
	}
	if _, err := NewSubscription("topic1", "", ModeSubscribe); err != nil {
		t.Fatalf("expected empty secret to mean no secret: %v", err)
	}

	_, err := NewSubscription("topic1", "short-secret", ModeSubscribe)
	if !IsValidationError(err) {
		t.Fatalf("expected validation error for short secret, got %v", err)
	}
	if !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
	fieldErrors, ok := goerrors.GetValidationErrors(err)
	if !ok || len(fieldErrors) != 1 || fieldErrors[0].Field != "secret" {
		t.Fatalf("expected secret field error, got %#v", fieldErrors)
	}

	_, err = NewSubscription("topic1", strings.Repeat("x", MaxSecretLength+1), ModeSubscribe)
	if !errors.Is(err, ErrSecretTooLong) {
		t.Fatalf("expected ErrSecretTooLong, got %v", err)
	}
}

func TestNewSubscription_RequiresTopicAndMode(t *testing.T) {
	if _, err := NewSubscription("   ", secretTopic1, ModeSubscribe); !errors.Is(err, ErrTopicRequired) {
		t.Fatalf("expected topic required error, got %v", err)
	}
	if _, err := NewSubscription("topic1", secretTopic1, Mode("renew")); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected invalid mode error, got %v", err)
	}

	sub, err := NewSubscription("  topic1 ", secretTopic1, ModeUnsubscribe)
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}
	if sub.Topic != "topic1" {
		t.Fatalf("expected trimmed topic, got %q", sub.Topic)
	}
	if sub.Persisted() {
		t.Fatalf("expected new subscription to have no id")
	}
	if !sub.Unsubscribe || sub.Mode() != ModeUnsubscribe {
		t.Fatalf("expected unsubscribe intent")
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode(" Subscribe ")
	if err != nil || mode != ModeSubscribe {
		t.Fatalf("expected subscribe, got %q (%v)", mode, err)
	}
	if _, err := ParseMode("denied"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected invalid mode, got %v", err)
	}
}

func TestSubscriptionStateAndAccepts(t *testing.T) {
	pending := Subscription{Topic: "topic1"}
	if pending.State() != SubscriptionStatePendingSubscribe {
		t.Fatalf("expected pending_subscribe, got %q", pending.State())
	}
	if !pending.Accepts(ModeSubscribe) || pending.Accepts(ModeUnsubscribe) {
		t.Fatalf("pending subscribe must accept only subscribe")
	}

	confirmed := Subscription{Topic: "topic1", Confirmed: true}
	if confirmed.State() != SubscriptionStateConfirmed {
		t.Fatalf("expected confirmed, got %q", confirmed.State())
	}
	if !confirmed.Accepts(ModeSubscribe) || !confirmed.Accepts(ModeUnsubscribe) {
		t.Fatalf("confirmed must accept renewal and unsubscribe")
	}

	leaving := Subscription{Topic: "topic1", Confirmed: true, Unsubscribe: true}
	if leaving.State() != SubscriptionStatePendingUnsubscribe {
		t.Fatalf("expected pending_unsubscribe, got %q", leaving.State())
	}
	if leaving.Accepts(ModeSubscribe) || !leaving.Accepts(ModeUnsubscribe) {
		t.Fatalf("pending unsubscribe must accept only unsubscribe")
	}
}

func TestSubscriptionConfirmAndLapse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := Subscription{Topic: "topic1", Unsubscribe: true}
	sub.Confirm(now.Add(10 * time.Minute))
	if !sub.Confirmed || sub.Unsubscribe {
		t.Fatalf("expected confirmed subscribe intent, got %#v", sub)
	}
	if sub.IsLapsed(now) {
		t.Fatalf("expected active lease")
	}
	if !sub.IsLapsed(now.Add(11 * time.Minute)) {
		t.Fatalf("expected lapsed lease")
	}

	sub.Confirm(time.Time{})
	if sub.HasExpiry() || sub.IsLapsed(now.Add(time.Hour)) {
		t.Fatalf("expected zero expiry to never lapse")
	}
}

func TestSubscriptionSetSecret_KeepsPreviousOnFailure(t *testing.T) {
	sub := Subscription{Topic: "topic1", Secret: secretTopic1}
	if err := sub.SetSecret("nope"); !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if sub.Secret != secretTopic1 {
		t.Fatalf("expected secret to stay unchanged, got %q", sub.Secret)
	}
	if err := sub.SetSecret(secretTopic2); err != nil {
		t.Fatalf("set secret: %v", err)
	}
	if sub.Secret != secretTopic2 {
		t.Fatalf("expected new secret")
	}
}
