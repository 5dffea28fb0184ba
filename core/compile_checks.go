package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ SubscriptionStore = (*MemorySubscriptionStore)(nil)
	_ TopicLocker       = (*MemoryTopicLocker)(nil)
	_ LockHandle        = (*memoryLockHandle)(nil)
	_ Verifier          = (*Service)(nil)
	_ MetricsRecorder   = NopMetricsRecorder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
