package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/SaiAnoop/aqua-harvestPro/internal/assessment"
	"github.com/SaiAnoop/aqua-harvestPro/internal/bus"
	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
	"github.com/SaiAnoop/aqua-harvestPro/internal/feasibility"
	"github.com/SaiAnoop/aqua-harvestPro/internal/regions"
	"github.com/SaiAnoop/aqua-harvestPro/internal/subsidies"
	"github.com/SaiAnoop/aqua-harvestPro/internal/validation"
)

func newTestService(t *testing.T, eventBus domain.EventBus) *assessment.Service {
	t.Helper()

	engine, err := subsidies.NewEngine(2)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := engine.LoadSchemes(subsidies.BuiltinSchemes()); err != nil {
		t.Fatalf("failed to load schemes: %v", err)
	}

	return assessment.NewService(validation.New(), regions.NewService(nil, nil, nil, time.Minute), engine, eventBus)
}

func request(t *testing.T, eventBus domain.EventBus, payload []byte) []byte {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := eventBus.Request(ctx, domain.TopicAssessmentRequest, payload)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return reply
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, newTestService(t, eventBus))

		if err := w.Start(Config{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicAssessmentRequest {
			t.Errorf("expected topic %s, got %s", domain.TopicAssessmentRequest, stats.Topics[0])
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		if stats := w.GetStats(); stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("RepliesWithAssessment", func(t *testing.T) {
		w := NewWorker(eventBus, newTestService(t, eventBus))
		if err := w.Start(Config{MaxConcurrent: 2}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		payload, _ := json.Marshal(feasibility.DemoInput())
		reply := request(t, eventBus, payload)

		var a domain.Assessment
		if err := json.Unmarshal(reply, &a); err != nil {
			t.Fatalf("failed to parse reply: %v", err)
		}
		if a.Result.Score != 84 {
			t.Errorf("expected score 84, got %d", a.Result.Score)
		}
		if a.NetCost != 25000 {
			t.Errorf("expected net cost 25000, got %d", a.NetCost)
		}
		if w.GetStats().Processed != 1 {
			t.Errorf("expected 1 processed, got %d", w.GetStats().Processed)
		}
	})

	t.Run("RepliesWithFieldErrors", func(t *testing.T) {
		w := NewWorker(eventBus, newTestService(t, eventBus))
		if err := w.Start(Config{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		input := feasibility.DemoInput()
		input.Location.City = ""
		payload, _ := json.Marshal(input)

		var errReply ErrorReply
		if err := json.Unmarshal(request(t, eventBus, payload), &errReply); err != nil {
			t.Fatalf("failed to parse reply: %v", err)
		}
		if errReply.Errors["location.city"] != "City is required" {
			t.Errorf("expected city error, got %+v", errReply)
		}
		if w.GetStats().Rejected != 1 {
			t.Errorf("expected 1 rejected, got %d", w.GetStats().Rejected)
		}
	})

	t.Run("RepliesToMalformedPayload", func(t *testing.T) {
		w := NewWorker(eventBus, newTestService(t, eventBus))
		if err := w.Start(Config{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		var errReply ErrorReply
		if err := json.Unmarshal(request(t, eventBus, []byte("{not json")), &errReply); err != nil {
			t.Fatalf("failed to parse reply: %v", err)
		}
		if errReply.Error != "invalid JSON payload" {
			t.Errorf("unexpected reply: %+v", errReply)
		}
	})

	t.Run("PublishWithoutReply", func(t *testing.T) {
		completed := make(chan struct{}, 1)
		sub, _ := eventBus.Subscribe(context.Background(), domain.TopicAssessmentCompleted, func(ctx context.Context, msg *domain.Message) error {
			completed <- struct{}{}
			return nil
		})
		defer sub.Unsubscribe()

		w := NewWorker(eventBus, newTestService(t, eventBus))
		if err := w.Start(Config{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		payload, _ := json.Marshal(feasibility.DemoInput())
		if err := eventBus.Publish(context.Background(), domain.TopicAssessmentRequest, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		select {
		case <-completed:
		case <-time.After(2 * time.Second):
			t.Fatal("expected assessment.completed for a fire-and-forget request")
		}
	})
}

func TestWorkerConcurrentRequests(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := NewWorker(eventBus, newTestService(t, nil))
	if err := w.Start(Config{MaxConcurrent: 4}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	const n = 20
	errs := make(chan error, n)
	payload, _ := json.Marshal(feasibility.DemoInput())

	for i := 0; i < n; i++ {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := eventBus.Request(ctx, domain.TopicAssessmentRequest, payload)
			errs <- err
		}()
	}

	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}

	if got := w.GetStats().Processed; got != n {
		t.Errorf("expected %d processed, got %d", n, got)
	}
}

func TestWorkerKeepsCallerTrace(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	completed := make(chan domain.Assessment, 1)
	sub, err := eventBus.Subscribe(context.Background(), domain.TopicAssessmentCompleted, func(ctx context.Context, msg *domain.Message) error {
		var a domain.Assessment
		if err := json.Unmarshal(msg.Payload, &a); err != nil {
			return err
		}
		completed <- a
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	w := NewWorker(eventBus, newTestService(t, eventBus))
	if err := w.Start(Config{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)

	payload, _ := json.Marshal(feasibility.DemoInput())
	msg := &domain.Message{ID: "m1", Topic: domain.TopicAssessmentRequest, Payload: payload}
	if err := w.handleMessage(ctx, msg); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}

	select {
	case a := <-completed:
		if a.Metadata.TraceID != traceID.String() {
			t.Errorf("expected trace %s, got %q", traceID, a.Metadata.TraceID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected assessment.completed")
	}
}
