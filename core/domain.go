package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MinSecretLength is the smallest accepted hub secret, in bytes.
	MinSecretLength = 32
	// MaxSecretLength bounds hub.secret; hubs must reject secrets of 200 bytes or more.
	MaxSecretLength = 199
)

var (
	ErrInvalidMode            = errors.New("core: invalid verification mode")
	ErrTopicRequired          = errors.New("core: topic is required")
	ErrSecretTooShort         = errors.New("core: secret is shorter than the minimum length")
	ErrSecretTooLong          = errors.New("core: secret exceeds the maximum length")
	ErrSubscriptionNotFound   = errors.New("core: subscription not found")
	ErrTopicAlreadySubscribed = errors.New("core: topic already has a subscription")
	ErrPersistence            = errors.New("core: persistence failure")
	ErrTopicLocked            = errors.New("core: topic lock already held")
)

type Mode string

const (
	ModeSubscribe   Mode = "subscribe"
	ModeUnsubscribe Mode = "unsubscribe"
)

func ParseMode(value string) (Mode, error) {
	switch mode := Mode(strings.TrimSpace(strings.ToLower(value))); mode {
	case ModeSubscribe, ModeUnsubscribe:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, value)
	}
}

func (m Mode) Valid() bool {
	return m == ModeSubscribe || m == ModeUnsubscribe
}

type SubscriptionState string

const (
	SubscriptionStatePendingSubscribe   SubscriptionState = "pending_subscribe"
	SubscriptionStatePendingUnsubscribe SubscriptionState = "pending_unsubscribe"
	SubscriptionStateConfirmed          SubscriptionState = "confirmed"
	// SubscriptionStateRemoved is never stored; it describes a topic with no record.
	SubscriptionStateRemoved SubscriptionState = "removed"
)

// Subscription is the persisted subscriber-side record for one hub topic.
//
// Unsubscribe reports that the requested mode is unsubscribe; it does not mean
// the subscription has already been removed. Removal deletes the record.
type Subscription struct {
	ID          string
	Topic       string
	Secret      string
	Expires     time.Time
	Confirmed   bool
	Unsubscribe bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewSubscription builds a pending, not yet persisted subscription for topic.
func NewSubscription(topic string, secret string, mode Mode) (Subscription, error) {
	if !mode.Valid() {
		return Subscription{}, ValidationError(
			fmt.Sprintf("%s: %q", ErrInvalidMode.Error(), mode),
			ErrInvalidMode,
			FieldError{Field: "mode", Message: "must be subscribe or unsubscribe"},
		)
	}
	sub := Subscription{
		Topic:       strings.TrimSpace(topic),
		Secret:      secret,
		Unsubscribe: mode == ModeUnsubscribe,
	}
	if err := sub.Validate(); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.Topic) == "" {
		return ValidationError(ErrTopicRequired.Error(), ErrTopicRequired,
			FieldError{Field: "topic", Message: "is required"},
		)
	}
	if s.Secret == "" {
		return nil
	}
	if len(s.Secret) < MinSecretLength {
		return ValidationError(ErrSecretTooShort.Error(), ErrSecretTooShort,
			FieldError{Field: "secret", Message: fmt.Sprintf("must be at least %d bytes", MinSecretLength)},
		)
	}
	if len(s.Secret) > MaxSecretLength {
		return ValidationError(ErrSecretTooLong.Error(), ErrSecretTooLong,
			FieldError{Field: "secret", Message: fmt.Sprintf("must be at most %d bytes", MaxSecretLength)},
		)
	}
	return nil
}

func (s Subscription) Persisted() bool {
	return strings.TrimSpace(s.ID) != ""
}

func (s Subscription) Mode() Mode {
	if s.Unsubscribe {
		return ModeUnsubscribe
	}
	return ModeSubscribe
}

func (s Subscription) State() SubscriptionState {
	switch {
	case s.Unsubscribe:
		return SubscriptionStatePendingUnsubscribe
	case s.Confirmed:
		return SubscriptionStateConfirmed
	default:
		return SubscriptionStatePendingSubscribe
	}
}

func (s Subscription) HasExpiry() bool {
	return !s.Expires.IsZero()
}

// IsLapsed reports whether the lease ended before now.
func (s Subscription) IsLapsed(now time.Time) bool {
	return s.HasExpiry() && s.Expires.Before(now)
}

// Confirm marks a subscribe intent as verified until expires. A zero expires
// leaves the subscription without a lease end.
func (s *Subscription) Confirm(expires time.Time) {
	if s == nil {
		return
	}
	s.Confirmed = true
	s.Unsubscribe = false
	if expires.IsZero() {
		s.Expires = time.Time{}
		return
	}
	s.Expires = expires.UTC()
}

// RequestUnsubscribe records unsubscribe intent; the hub callback removes the record.
func (s *Subscription) RequestUnsubscribe() {
	if s == nil {
		return
	}
	s.Unsubscribe = true
}

func (s *Subscription) SetSecret(secret string) error {
	if s == nil {
		return nil
	}
	next := *s
	next.Secret = secret
	if err := next.Validate(); err != nil {
		return err
	}
	s.Secret = secret
	return nil
}

func (s *Subscription) ClearExpiry() {
	if s == nil {
		return
	}
	s.Expires = time.Time{}
}

// Accepts reports whether a verification in mode is a reachable transition
// from the subscription's current state.
func (s Subscription) Accepts(mode Mode) bool {
	switch s.State() {
	case SubscriptionStatePendingSubscribe:
		return mode == ModeSubscribe
	case SubscriptionStateConfirmed:
		return mode == ModeSubscribe || mode == ModeUnsubscribe
	case SubscriptionStatePendingUnsubscribe:
		return mode == ModeUnsubscribe
	default:
		return false
	}
}
