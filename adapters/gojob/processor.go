package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-websub/core"
)

// JobHandler executes lease maintenance jobs. *core.Service satisfies it.
type JobHandler interface {
	HandleJob(ctx context.Context, msg *core.JobExecutionMessage) error
}

// attemptNacker is implemented by deliveries that apply a RetryPolicy.
type attemptNacker interface {
	NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error
}

// Processor pulls one delivery at a time and runs it through a JobHandler.
// Successful jobs are acked. Failed jobs are nacked with RetryDelay until
// MaxAttempts is reached, then dead-lettered. MaxAttempts <= 0 retries
// forever.
type Processor struct {
	dequeuer    core.JobDequeuer
	handler     JobHandler
	hook        core.JobWorkerHook
	RetryDelay  time.Duration
	MaxAttempts int
	now         func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewProcessor(dequeuer core.JobDequeuer, handler JobHandler, hook core.JobWorkerHook) *Processor {
	return &Processor{
		dequeuer:   dequeuer,
		handler:    handler,
		hook:       hook,
		RetryDelay: time.Minute,
		now:        func() time.Time { return time.Now().UTC() },
		attempts:   map[string]int{},
	}
}

func (p *Processor) ProcessNext(ctx context.Context) error {
	if p == nil || p.dequeuer == nil || p.handler == nil {
		return fmt.Errorf("gojob: processor is not configured")
	}
	delivery, err := p.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	msg := delivery.Message()
	key := attemptKey(msg)
	event := core.JobWorkerEvent{Message: msg, Attempt: p.nextAttempt(key), StartedAt: p.now()}
	p.emit(ctx, event, core.JobWorkerHook.OnStart)

	handleErr := p.handler.HandleJob(ctx, msg)
	event.Duration = p.now().Sub(event.StartedAt)
	if handleErr == nil {
		p.forget(key)
		p.emit(ctx, event, core.JobWorkerHook.OnSuccess)
		return delivery.Ack(ctx)
	}

	event.Err = handleErr
	opts := core.JobNackOptions{Delay: p.RetryDelay, Requeue: true, Reason: handleErr.Error()}
	exhausted := p.MaxAttempts > 0 && event.Attempt >= p.MaxAttempts
	if exhausted {
		opts = core.JobNackOptions{DeadLetter: true, Reason: handleErr.Error()}
		p.forget(key)
	} else {
		event.Delay = p.RetryDelay
	}
	p.emit(ctx, event, core.JobWorkerHook.OnFailure)

	if nacker, ok := delivery.(attemptNacker); ok {
		err = nacker.NackForAttempt(ctx, opts, event.Attempt)
	} else {
		err = delivery.Nack(ctx, opts)
	}
	if err != nil {
		return err
	}
	if !exhausted {
		p.emit(ctx, event, core.JobWorkerHook.OnRetry)
	}
	return handleErr
}

// Attempts reports how many times the job behind msg has been tried without
// success.
func (p *Processor) Attempts(msg *core.JobExecutionMessage) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[attemptKey(msg)]
}

func (p *Processor) nextAttempt(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attempts == nil {
		p.attempts = map[string]int{}
	}
	p.attempts[key]++
	return p.attempts[key]
}

func (p *Processor) forget(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, key)
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

func (p *Processor) emit(
	ctx context.Context,
	event core.JobWorkerEvent,
	fn func(core.JobWorkerHook, context.Context, core.JobWorkerEvent),
) {
	if p.hook == nil {
		return
	}
	fn(p.hook, ctx, event)
}

// LoggingHook logs worker lifecycle events.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Debug("websub job started", eventArgs(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Info("websub job succeeded", eventArgs(event)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Error("websub job failed", eventArgs(event)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Warn("websub job scheduled for retry", eventArgs(event)...)
}

func eventArgs(event core.JobWorkerEvent) []any {
	args := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if event.Message != nil {
		args = append(args, "job_id", event.Message.JobID, "idempotency_key", event.Message.IdempotencyKey)
	}
	if event.Delay > 0 {
		args = append(args, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err)
	}
	return args
}

var (
	_ core.JobWorkerHook = (*LoggingHook)(nil)
	_ JobHandler         = (*core.Service)(nil)
	_ attemptNacker      = (*DeliveryAdapter)(nil)
)
