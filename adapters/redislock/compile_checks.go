package redislock

import "github.com/goliatone/go-websub/core"

var (
	_ core.TopicLocker = (*Locker)(nil)
	_ core.LockHandle  = (*handle)(nil)
)
