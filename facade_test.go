package websub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gocmd "github.com/goliatone/go-command"
	websubcommand "github.com/goliatone/go-websub/command"
	"github.com/goliatone/go-websub/core"
	websubquery "github.com/goliatone/go-websub/query"
)

const facadeSecret = "0123456789abcdef0123456789abcdef"

func newFacadeService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(DefaultConfig(), WithSubscriptionStore(core.NewMemorySubscriptionStore()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(newFacadeService(t))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	commands := facade.Commands()
	if commands.VerifyCallback == nil || commands.SaveSubscription == nil || commands.DeleteSubscription == nil ||
		commands.PruneLapsedSubscriptions == nil || commands.ScheduleLeaseRenewals == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetSubscription == nil || queries.GetSubscriptionByTopic == nil || queries.ListSubscriptions == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if facade.Service() == nil {
		t.Fatalf("expected service accessor")
	}
}

func TestFacade_SaveVerifyAndQuery(t *testing.T) {
	facade, err := NewFacade(newFacadeService(t))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	sub, err := NewSubscription("topic1", facadeSecret, ModeSubscribe)
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}
	saveResult := gocmd.NewResult[core.Subscription]()
	saveCtx := gocmd.ContextWithResult(context.Background(), saveResult)
	if err := facade.Commands().SaveSubscription.Execute(saveCtx, websubcommand.SaveSubscriptionMessage{Subscription: sub}); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, ok := saveResult.Load()
	if !ok || saved.ID == "" {
		t.Fatalf("expected saved subscription with id, got %#v", saved)
	}

	verifyResult := gocmd.NewResult[core.VerificationResult]()
	verifyCtx := gocmd.ContextWithResult(context.Background(), verifyResult)
	if err := facade.Commands().VerifyCallback.Execute(verifyCtx, websubcommand.VerifyCallbackMessage{
		Request: VerificationRequest{Mode: ModeSubscribe, Topic: "topic1", Challenge: "X"},
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	verified, ok := verifyResult.Load()
	if !ok || !verified.Accepted || verified.Body != "X" {
		t.Fatalf("expected accepted verification, got %#v", verified)
	}

	lookup, err := facade.Queries().GetSubscriptionByTopic.Query(context.Background(), websubquery.GetSubscriptionByTopicMessage{Topic: "topic1"})
	if err != nil {
		t.Fatalf("query by topic: %v", err)
	}
	if !lookup.Found || !lookup.Subscription.Confirmed || lookup.Subscription.ID != saved.ID {
		t.Fatalf("expected confirmed subscription, got %#v", lookup)
	}

	missing, err := facade.Queries().GetSubscription.Query(context.Background(), websubquery.GetSubscriptionMessage{SubscriptionID: "ghost"})
	if err != nil || missing.Found {
		t.Fatalf("expected explicit miss, got %#v err=%v", missing, err)
	}

	if err := facade.Commands().DeleteSubscription.Execute(context.Background(), websubcommand.DeleteSubscriptionMessage{SubscriptionID: saved.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err := facade.Queries().ListSubscriptions.Query(context.Background(), websubquery.ListSubscriptionsMessage{})
	if err != nil || len(all) != 0 {
		t.Fatalf("expected empty list, got %#v err=%v", all, err)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

func TestNewCallbackHandler_ServesVerification(t *testing.T) {
	svc := newFacadeService(t)
	sub, err := NewSubscription("topic1", "", ModeSubscribe)
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}
	if err := svc.SaveSubscription(context.Background(), &sub); err != nil {
		t.Fatalf("save: %v", err)
	}
	handler, err := NewCallbackHandler(svc)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	query := url.Values{}
	query.Set("hub.mode", "subscribe")
	query.Set("hub.topic", "topic1")
	query.Set("hub.challenge", "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+query.Encode(), nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "abc" {
		t.Fatalf("expected echo, got %d %q", rec.Code, rec.Body.String())
	}

	if _, err := NewCallbackHandler(nil); err == nil {
		t.Fatalf("expected nil service error")
	}
}
