package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-websub/core"
)

type MutatingService interface {
	Verify(ctx context.Context, req core.VerificationRequest) (core.VerificationResult, error)
	SaveSubscription(ctx context.Context, sub *core.Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
}

type LeaseMaintenanceService interface {
	Config() core.Config
	PruneLapsed(ctx context.Context) (int, error)
	ScheduleLeaseRenewals(ctx context.Context, within time.Duration) (int, error)
}

type VerifyCallbackCommand struct {
	service MutatingService
}

func NewVerifyCallbackCommand(service MutatingService) *VerifyCallbackCommand {
	return &VerifyCallbackCommand{service: service}
}

func (c *VerifyCallbackCommand) Execute(ctx context.Context, msg VerifyCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verification service is required")
	}
	out, err := c.service.Verify(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SaveSubscriptionCommand struct {
	service MutatingService
}

func NewSaveSubscriptionCommand(service MutatingService) *SaveSubscriptionCommand {
	return &SaveSubscriptionCommand{service: service}
}

// Execute stores the persisted subscription, with its assigned id, in the
// result collector.
func (c *SaveSubscriptionCommand) Execute(ctx context.Context, msg SaveSubscriptionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscription service is required")
	}
	sub := msg.Subscription
	if err := c.service.SaveSubscription(ctx, &sub); err != nil {
		return err
	}
	storeResult(ctx, sub)
	return nil
}

type DeleteSubscriptionCommand struct {
	service MutatingService
}

func NewDeleteSubscriptionCommand(service MutatingService) *DeleteSubscriptionCommand {
	return &DeleteSubscriptionCommand{service: service}
}

func (c *DeleteSubscriptionCommand) Execute(ctx context.Context, msg DeleteSubscriptionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscription service is required")
	}
	return c.service.DeleteSubscription(ctx, msg.SubscriptionID)
}

type PruneLapsedSubscriptionsCommand struct {
	service LeaseMaintenanceService
}

func NewPruneLapsedSubscriptionsCommand(service LeaseMaintenanceService) *PruneLapsedSubscriptionsCommand {
	return &PruneLapsedSubscriptionsCommand{service: service}
}

func (c *PruneLapsedSubscriptionsCommand) Execute(ctx context.Context, _ PruneLapsedSubscriptionsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lease maintenance service is required")
	}
	pruned, err := c.service.PruneLapsed(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, pruned)
	return nil
}

type ScheduleLeaseRenewalsCommand struct {
	service LeaseMaintenanceService
}

func NewScheduleLeaseRenewalsCommand(service LeaseMaintenanceService) *ScheduleLeaseRenewalsCommand {
	return &ScheduleLeaseRenewalsCommand{service: service}
}

func (c *ScheduleLeaseRenewalsCommand) Execute(ctx context.Context, msg ScheduleLeaseRenewalsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lease maintenance service is required")
	}
	within := time.Duration(msg.WithinSeconds) * time.Second
	if within == 0 {
		within = c.service.Config().Leases.RenewWithin()
	}
	scheduled, err := c.service.ScheduleLeaseRenewals(ctx, within)
	if err != nil {
		return err
	}
	storeResult(ctx, scheduled)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
