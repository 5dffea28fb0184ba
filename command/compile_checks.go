package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-websub/core"
)

var (
	_ gocmd.Commander[VerifyCallbackMessage]           = (*VerifyCallbackCommand)(nil)
	_ gocmd.Commander[SaveSubscriptionMessage]         = (*SaveSubscriptionCommand)(nil)
	_ gocmd.Commander[DeleteSubscriptionMessage]       = (*DeleteSubscriptionCommand)(nil)
	_ gocmd.Commander[PruneLapsedSubscriptionsMessage] = (*PruneLapsedSubscriptionsCommand)(nil)
	_ gocmd.Commander[ScheduleLeaseRenewalsMessage]    = (*ScheduleLeaseRenewalsCommand)(nil)

	_ MutatingService         = (*core.Service)(nil)
	_ LeaseMaintenanceService = (*core.Service)(nil)
)
