package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the slice of go-redis the relay needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// Relay ships session events from the outbox table to a redis stream.
// Delivery is at-least-once; consumers dedup on the event id.
type Relay struct {
	outbox    *OutboxRepository
	redis     RedisClient
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func NewRelay(pool Pool, redisClient RedisClient, config RelayConfig) *Relay {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	return &Relay{
		outbox:    NewOutboxRepository(pool),
		redis:     redisClient,
		logger:    slog.Default().With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
	}
}

// Start polls until the context is canceled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.processEvents(ctx); err != nil {
		r.logger.Error("failed to process events on startup", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.processEvents(ctx); err != nil {
				r.logger.Error("failed to process events", "error", err)
			}
		}
	}
}

func (r *Relay) processEvents(ctx context.Context) error {
	events, err := r.outbox.GetPending(ctx, r.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		err := r.redis.XAdd(ctx, &redis.XAddArgs{
			Stream: event.TargetStream,
			Values: map[string]any{
				"event_id":       event.ID.String(),
				"event_type":     event.EventType,
				"aggregate_type": event.AggregateType,
				"aggregate_id":   event.AggregateID,
				"payload":        string(event.Payload),
			},
		}).Err()

		if err != nil {
			r.logger.Error("failed to deliver event", "event_id", event.ID, "error", err)
			if markErr := r.outbox.MarkFailed(ctx, event.ID); markErr != nil {
				r.logger.Error("failed to mark event failed", "event_id", event.ID, "error", markErr)
			}
			continue
		}

		if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
			r.logger.Error("failed to mark event processed", "event_id", event.ID, "error", err)
		}
	}

	return nil
}

// PendingCount reports undelivered events for health reporting.
func (r *Relay) PendingCount(ctx context.Context) (int, error) {
	return r.outbox.CountByStatus(ctx, "pending")
}

// DeadLetterCount reports permanently failed events.
func (r *Relay) DeadLetterCount(ctx context.Context) (int, error) {
	return r.outbox.CountByStatus(ctx, "dead_letter")
}
