package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorTextValidation    = "WEBSUB_VALIDATION"
	ErrorTextBadInput      = "WEBSUB_BAD_INPUT"
	ErrorTextTopicConflict = "WEBSUB_TOPIC_CONFLICT"
	ErrorTextTopicLocked   = "WEBSUB_TOPIC_LOCKED"
	ErrorTextNotFound      = "WEBSUB_SUBSCRIPTION_NOT_FOUND"
	ErrorTextPersistence   = "WEBSUB_PERSISTENCE_FAILED"
	ErrorTextInternal      = "WEBSUB_INTERNAL_ERROR"
)

type FieldError = goerrors.FieldError

// ValidationError reports a subscription that cannot be persisted as given.
func ValidationError(message string, cause error, fields ...FieldError) error {
	if cause == nil {
		cause = errors.New(message)
	}
	err := goerrors.Wrap(cause, goerrors.CategoryValidation, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorTextValidation)
	if len(fields) > 0 {
		err.ValidationErrors = append(goerrors.ValidationErrors(nil), fields...)
	}
	return err
}

// BadInputError reports a malformed request reaching the service.
func BadInputError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorTextBadInput)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// UniquenessError reports a topic already held by another subscription.
func UniquenessError(topic string) error {
	return goerrors.Wrap(ErrTopicAlreadySubscribed, goerrors.CategoryConflict, "core: topic already has a subscription").
		WithCode(http.StatusConflict).
		WithTextCode(ErrorTextTopicConflict).
		WithMetadata(map[string]any{"topic": topic})
}

func NotFoundError(id string) error {
	return goerrors.Wrap(ErrSubscriptionNotFound, goerrors.CategoryNotFound, "core: subscription not found").
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorTextNotFound).
		WithMetadata(map[string]any{"subscription_id": id})
}

func TopicLockedError(topic string) error {
	return goerrors.Wrap(ErrTopicLocked, goerrors.CategoryConflict, "core: topic lock already held").
		WithCode(http.StatusConflict).
		WithTextCode(ErrorTextTopicLocked).
		WithMetadata(map[string]any{"topic": topic})
}

// PersistenceError wraps a backend failure for operation. Errors that already
// carry a category (validation, conflict, not found) pass through unchanged.
func PersistenceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}
	return goerrors.Wrap(joinPersistence(err), goerrors.CategoryInternal, "core: "+operation+" failed").
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorTextPersistence).
		WithMetadata(map[string]any{"operation": operation})
}

func joinPersistence(err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return errors.Join(ErrPersistence, err)
}

func IsValidationError(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryValidation)
}

func IsUniquenessError(err error) bool {
	return errors.Is(err, ErrTopicAlreadySubscribed)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSubscriptionNotFound)
}

func IsPersistenceError(err error) bool {
	return errors.Is(err, ErrPersistence)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrTopicAlreadySubscribed):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ErrorTextTopicConflict)
	case errors.Is(err, ErrTopicLocked):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ErrorTextTopicLocked)
	case errors.Is(err, ErrSubscriptionNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorTextNotFound)
	case errors.Is(err, ErrPersistence):
		return newServiceError(err.Error(), goerrors.CategoryInternal, ErrorTextPersistence)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorTextBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryValidation:
		return ErrorTextValidation
	case goerrors.CategoryBadInput:
		return ErrorTextBadInput
	case goerrors.CategoryNotFound:
		return ErrorTextNotFound
	case goerrors.CategoryConflict:
		return ErrorTextTopicConflict
	default:
		return ErrorTextInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
