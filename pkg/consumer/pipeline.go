package consumer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/slackrelay/slackrelay/pkg/dedupe"
	"github.com/slackrelay/slackrelay/pkg/events"
	"github.com/slackrelay/slackrelay/pkg/logger"
	"github.com/slackrelay/slackrelay/pkg/providers"
	"github.com/slackrelay/slackrelay/pkg/queue"
)

// ThreadFetcher retrieves every message text in a thread, in delivery order.
type ThreadFetcher interface {
	FetchThread(ctx context.Context, channel, threadTS string) ([]string, error)
}

// Replier posts a reply into a thread.
type Replier interface {
	PostReply(ctx context.Context, channel, threadTS, text string) error
}

// Pipeline is the consumption stage: dedupe, reconstruct context, invoke the
// AI, reply. One call per queue delivery; errors are terminal for that
// delivery and never trigger pipeline-level retries.
type Pipeline struct {
	guard   *dedupe.Guard
	fetcher ThreadFetcher
	invoker providers.Invoker
	replier Replier
}

func NewPipeline(guard *dedupe.Guard, fetcher ThreadFetcher, invoker providers.Invoker, replier Replier) *Pipeline {
	return &Pipeline{
		guard:   guard,
		fetcher: fetcher,
		invoker: invoker,
		replier: replier,
	}
}

func (p *Pipeline) Handle(ctx context.Context, msg queue.Message) error {
	correlationID := uuid.NewString()

	result, err := p.guard.CheckAndMark(ctx, msg.DeliveryID)
	if err != nil {
		// Fail open: redelivery is already bounded by the queue, and
		// dropping on a store hiccup would lose the message outright.
		logger.WarnCF("consumer", "Idempotency store error, processing anyway", map[string]interface{}{
			"delivery_id":    msg.DeliveryID,
			"correlation_id": correlationID,
			"error":          err.Error(),
		})
	}
	if result == dedupe.Duplicate {
		logger.InfoCF("consumer", "Duplicate delivery suppressed", map[string]interface{}{
			"delivery_id":    msg.DeliveryID,
			"correlation_id": correlationID,
		})
		return nil
	}

	env, err := events.Parse(msg.Body)
	if err != nil {
		return fmt.Errorf("parse queued body: %w", err)
	}
	if env.Event == nil || !env.Event.HasText() {
		logger.DebugCF("consumer", "Queued body carries no text event, skipping", map[string]interface{}{
			"delivery_id": msg.DeliveryID,
		})
		return nil
	}

	ev := env.Event
	threadTS := ev.ThreadKey()

	texts, err := p.fetcher.FetchThread(ctx, ev.Channel, threadTS)
	if err != nil {
		return err
	}

	prompt := events.BuildPrompt(texts)

	completion, err := p.invoker.Complete(ctx, prompt)
	if err != nil {
		return err
	}

	logger.InfoCF("consumer", "AI completion ready", map[string]interface{}{
		"correlation_id": correlationID,
		"channel":        ev.Channel,
		"thread_ts":      threadTS,
		"user":           ev.User,
		"prompt_len":     len(prompt),
		"completion_len": len(completion),
	})

	reply := fmt.Sprintf("AI Response:\n%s\nAI Response end.", completion)
	if err := p.replier.PostReply(ctx, ev.Channel, threadTS, reply); err != nil {
		// Accepted loss: a successful AI call whose reply post fails is
		// never retried, and the idempotency mark stands.
		logger.ErrorCF("consumer", "Reply post failed", map[string]interface{}{
			"correlation_id": correlationID,
			"channel":        ev.Channel,
			"thread_ts":      threadTS,
			"error":          err.Error(),
		})
	}

	return nil
}
