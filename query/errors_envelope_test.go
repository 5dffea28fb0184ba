package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-websub/core"
)

func TestGetSubscriptionMessage_ValidateReturnsRichError(t *testing.T) {
	err := (GetSubscriptionMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorTextBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorTextBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
}

func TestListSubscriptionsQuery_NilReaderReturnsRichError(t *testing.T) {
	_, err := NewListSubscriptionsQuery(nil).Query(context.Background(), ListSubscriptionsMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.ErrorTextInternal {
		t.Fatalf("expected internal dependency error, got %q %q", rich.Category, rich.TextCode)
	}
}
