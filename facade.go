package websub

import (
	"fmt"

	websubcommand "github.com/goliatone/go-websub/command"
	websubquery "github.com/goliatone/go-websub/query"
)

type CommandQueryService interface {
	websubcommand.MutatingService
	websubcommand.LeaseMaintenanceService
	websubquery.SubscriptionReader
}

type Commands struct {
	VerifyCallback           *websubcommand.VerifyCallbackCommand
	SaveSubscription         *websubcommand.SaveSubscriptionCommand
	DeleteSubscription       *websubcommand.DeleteSubscriptionCommand
	PruneLapsedSubscriptions *websubcommand.PruneLapsedSubscriptionsCommand
	ScheduleLeaseRenewals    *websubcommand.ScheduleLeaseRenewalsCommand
}

type Queries struct {
	GetSubscription        *websubquery.GetSubscriptionQuery
	GetSubscriptionByTopic *websubquery.GetSubscriptionByTopicQuery
	ListSubscriptions      *websubquery.ListSubscriptionsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("websub: command/query service is required")
	}
	facade := &Facade{service: service}
	facade.commands = Commands{
		VerifyCallback:           websubcommand.NewVerifyCallbackCommand(service),
		SaveSubscription:         websubcommand.NewSaveSubscriptionCommand(service),
		DeleteSubscription:       websubcommand.NewDeleteSubscriptionCommand(service),
		PruneLapsedSubscriptions: websubcommand.NewPruneLapsedSubscriptionsCommand(service),
		ScheduleLeaseRenewals:    websubcommand.NewScheduleLeaseRenewalsCommand(service),
	}
	facade.queries = Queries{
		GetSubscription:        websubquery.NewGetSubscriptionQuery(service),
		GetSubscriptionByTopic: websubquery.NewGetSubscriptionByTopicQuery(service),
		ListSubscriptions:      websubquery.NewListSubscriptionsQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
