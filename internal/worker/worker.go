// Package worker answers assessment requests arriving on the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/SaiAnoop/aqua-harvestPro/internal/assessment"
	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
	"github.com/SaiAnoop/aqua-harvestPro/internal/validation"
)

// Worker runs assessments for bus requests and replies with the result.
type Worker struct {
	bus     domain.EventBus
	service *assessment.Service

	mu            sync.Mutex
	subscriptions []domain.Subscription
	stopped       bool
	sem           chan struct{}
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
}

// Config holds worker configuration.
type Config struct {
	// MaxConcurrent bounds in-flight assessments.
	MaxConcurrent int
}

// ErrorReply is sent back when a request cannot be assessed.
type ErrorReply struct {
	Errors validation.FieldErrors `json:"errors,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// NewWorker creates a new bus worker.
func NewWorker(bus domain.EventBus, service *assessment.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to assessment requests. A stopped worker cannot be
// restarted.
func (w *Worker) Start(cfg Config) error {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 16
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.sem = make(chan struct{}, cfg.MaxConcurrent)

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicAssessmentRequest, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicAssessmentRequest, err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("assessment worker started",
		"topic", domain.TopicAssessmentRequest,
		"max_concurrent", cfg.MaxConcurrent,
	)
	return nil
}

// handleMessage hands the request to its own goroutine so a slow
// assessment does not hold up the subscription. The goroutine runs under
// the worker's lifetime but keeps the caller's span context, so the
// assessment joins the requester's trace.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	select {
	case w.sem <- struct{}{}:
	case <-w.ctx.Done():
		return w.ctx.Err()
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.sem
		return nil
	}
	w.wg.Add(1)
	w.mu.Unlock()

	msgCtx := trace.ContextWithSpanContext(w.ctx, trace.SpanContextFromContext(ctx))

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.process(msgCtx, msg)
	}()
	return nil
}

func (w *Worker) process(ctx context.Context, msg *domain.Message) {
	start := time.Now()

	var input domain.WizardInput
	if err := json.Unmarshal(msg.Payload, &input); err != nil {
		w.rejected.Add(1)
		slog.Warn("failed to parse assessment request",
			"message_id", msg.ID,
			"error", err,
		)
		w.reply(ctx, msg, ErrorReply{Error: "invalid JSON payload"})
		return
	}

	a, err := w.service.Assess(ctx, input)

	var fieldErrs validation.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		w.rejected.Add(1)
		slog.Debug("assessment request rejected",
			"message_id", msg.ID,
			"fields", len(fieldErrs),
		)
		w.reply(ctx, msg, ErrorReply{Errors: fieldErrs})
		return

	case err != nil:
		w.failed.Add(1)
		slog.Error("assessment failed",
			"message_id", msg.ID,
			"error", err,
		)
		w.reply(ctx, msg, ErrorReply{Error: err.Error()})
		return
	}

	w.processed.Add(1)
	w.reply(ctx, msg, a)

	slog.Info("assessment processed",
		"message_id", msg.ID,
		"assessment_id", a.ID,
		"score", a.Result.Score,
		"grade", a.Result.Grade,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// reply answers requests. Plain publishes carry no reply address and get
// no answer.
func (w *Worker) reply(ctx context.Context, msg *domain.Message, v any) {
	if msg.ReplyTo == "" {
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode reply", "message_id", msg.ID, "error", err)
		return
	}
	if err := w.bus.Reply(ctx, msg, payload); err != nil {
		slog.Error("failed to send reply",
			"message_id", msg.ID,
			"reply_to", msg.ReplyTo,
			"error", err,
		)
	}
}

// Stop unsubscribes and waits for in-flight assessments.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
	w.mu.Unlock()

	w.wg.Wait()
	w.cancel()

	slog.Info("assessment worker stopped",
		"processed", w.processed.Load(),
		"rejected", w.rejected.Load(),
		"failed", w.failed.Load(),
	)
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Rejected          int64    `json:"rejected"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Rejected:          w.rejected.Load(),
		Failed:            w.failed.Load(),
	}
}
