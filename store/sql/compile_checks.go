package sqlstore

import "github.com/goliatone/go-websub/core"

var (
	_ core.SubscriptionStore      = (*SubscriptionStore)(nil)
	_ core.SubscriptionStore      = (*CachedSubscriptionStore)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
