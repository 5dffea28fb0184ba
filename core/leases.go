package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	JobIDLeaseExpiring = "websub.subscription.lease_expiring"
	JobIDPruneLapsed   = "websub.subscription.prune"

	jobDedupPolicyIgnore = "ignore"
)

// ListExpiring returns subscriptions whose lease ends within the given window,
// soonest first.
func (s *Service) ListExpiring(ctx context.Context, within time.Duration) ([]Subscription, error) {
	if err := s.storeReady(); err != nil {
		return nil, err
	}
	if within < 0 {
		within = 0
	}
	subs, err := s.subscriptionStore.ListExpiring(ctx, s.clock().Add(within), s.config.Leases.PruneBatchSize)
	if err != nil {
		return nil, s.mapError(err)
	}
	return subs, nil
}

// PruneLapsed deletes subscriptions whose lease already ended. Each candidate
// is re-read under its topic lock so a renewal that lands first is kept.
func (s *Service) PruneLapsed(ctx context.Context) (pruned int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["pruned"] = pruned
		s.observeOperation(ctx, startedAt, "prune_lapsed", err, fields)
	}()
	if err := s.storeReady(); err != nil {
		return 0, err
	}

	batchSize := s.config.Leases.PruneBatchSize
	for {
		now := s.clock()
		candidates, listErr := s.subscriptionStore.ListExpiring(ctx, now, batchSize)
		if listErr != nil {
			return pruned, s.mapError(listErr)
		}
		removed := 0
		for _, candidate := range candidates {
			deleted, pruneErr := s.pruneOne(ctx, candidate, now)
			if pruneErr != nil {
				return pruned, s.mapError(pruneErr)
			}
			if deleted {
				removed++
				pruned++
			}
		}
		if len(candidates) < batchSize || removed == 0 {
			return pruned, nil
		}
	}
}

func (s *Service) pruneOne(ctx context.Context, candidate Subscription, now time.Time) (deleted bool, err error) {
	err = s.withTopicLock(ctx, candidate.Topic, func(ctx context.Context) error {
		current, found, findErr := s.subscriptionStore.FindByTopic(ctx, candidate.Topic)
		if findErr != nil {
			return findErr
		}
		if !found || current.ID != candidate.ID || !current.IsLapsed(now) {
			return nil
		}
		if deleteErr := s.subscriptionStore.Delete(ctx, current.ID); deleteErr != nil {
			return deleteErr
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// ScheduleLeaseRenewals enqueues one lease_expiring job per subscription whose
// lease ends within the window. Re-running it for an unchanged lease produces
// the same idempotency key.
func (s *Service) ScheduleLeaseRenewals(ctx context.Context, within time.Duration) (scheduled int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"within_seconds": int(within / time.Second)}
	defer func() {
		fields["scheduled"] = scheduled
		s.observeOperation(ctx, startedAt, "schedule_lease_renewals", err, fields)
	}()
	if s == nil {
		return 0, fmt.Errorf("core: service is not configured")
	}
	if s.jobEnqueuer == nil {
		return 0, fmt.Errorf("core: job enqueuer is not configured")
	}

	subs, err := s.ListExpiring(ctx, within)
	if err != nil {
		return 0, err
	}
	for _, sub := range subs {
		if sub.State() != SubscriptionStateConfirmed {
			continue
		}
		if err := s.jobEnqueuer.Enqueue(ctx, LeaseExpiringJob(sub)); err != nil {
			return scheduled, s.mapError(err)
		}
		scheduled++
	}
	return scheduled, nil
}

func LeaseExpiringJob(sub Subscription) *JobExecutionMessage {
	expires := sub.Expires.UTC().Format(time.RFC3339)
	return &JobExecutionMessage{
		JobID:      JobIDLeaseExpiring,
		ScriptPath: JobIDLeaseExpiring,
		Parameters: map[string]any{
			"subscription_id": sub.ID,
			"topic":           sub.Topic,
			"expires":         expires,
		},
		IdempotencyKey: sub.Topic + "|" + expires,
		DedupPolicy:    jobDedupPolicyIgnore,
	}
}

func PruneLapsedJob() *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID:      JobIDPruneLapsed,
		ScriptPath: JobIDPruneLapsed,
	}
}

// HandleJob executes a lease maintenance job delivered by a worker.
func (s *Service) HandleJob(ctx context.Context, msg *JobExecutionMessage) error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if msg == nil {
		return BadInputError("core: job message is required", nil)
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDPruneLapsed:
		_, err := s.PruneLapsed(ctx)
		return err
	case JobIDLeaseExpiring:
		topic, _ := msg.Parameters["topic"].(string)
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return BadInputError("core: lease_expiring job requires a topic parameter", map[string]any{"job_id": msg.JobID})
		}
		sub, found, err := s.FindSubscriptionByTopic(ctx, topic)
		if err != nil {
			return err
		}
		fields := map[string]any{"topic": topic, "found": found}
		if found {
			fields["subscription_id"] = sub.ID
			fields["expires"] = sub.Expires
		}
		s.logInfo(ctx, "subscription lease expiring", fields)
		return nil
	default:
		return BadInputError("core: unsupported job id", map[string]any{"job_id": msg.JobID})
	}
}
