package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxOutboxRetries is how many delivery failures move an event to the dead
// letter state.
const maxOutboxRetries = 5

// OutboxEvent is one pending notification row, written in the same
// transaction as the state change it describes.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
	TargetStream  string
	Status        string
	RetryCount    int
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

type OutboxRepository struct {
	pool Pool
}

func NewOutboxRepository(pool Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// InsertWithTx appends an event inside an open transaction so the event and
// the state change commit or roll back together.
func (r *OutboxRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	if event.AggregateType == "" || event.AggregateID == "" || event.EventType == "" {
		return fmt.Errorf("outbox event missing required fields")
	}
	if len(event.Payload) == 0 {
		return fmt.Errorf("outbox event missing payload")
	}
	if event.TargetStream == "" {
		return fmt.Errorf("outbox event missing target stream")
	}

	event.ID = uuid.New()
	err := tx.QueryRow(ctx,
		`INSERT INTO session_outbox (id, aggregate_type, aggregate_id, event_type, payload, target_stream)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING status, retry_count, created_at`,
		event.ID, event.AggregateType, event.AggregateID, event.EventType, event.Payload, event.TargetStream,
	).Scan(&event.Status, &event.RetryCount, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// GetPending returns undelivered events oldest first.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, aggregate_type, aggregate_id, event_type, payload, target_stream,
			status, retry_count, created_at, processed_at
		 FROM session_outbox
		 WHERE status = 'pending'
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload,
			&e.TargetStream, &e.Status, &e.RetryCount, &e.CreatedAt, &e.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkProcessed finalizes a delivered event.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE session_outbox SET status = 'processed', processed_at = CURRENT_TIMESTAMP WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// MarkFailed bumps the retry counter, dead-lettering the event after too
// many delivery failures.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE session_outbox SET
			retry_count = retry_count + 1,
			status = CASE WHEN retry_count + 1 >= $2 THEN 'dead_letter' ELSE 'pending' END
		 WHERE id = $1`,
		id, maxOutboxRetries,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}

// CountByStatus reports the queue depth for one status.
func (r *OutboxRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_outbox WHERE status = $1`, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox events: %w", err)
	}
	return count, nil
}
