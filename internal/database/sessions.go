package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ScrapeSession is one row per extraction attempt. Created before the
// attempt starts, closed exactly once, never mutated afterward.
type ScrapeSession struct {
	SessionID    uuid.UUID
	Source       string
	Category     string
	RecordsFound int
	Success      bool
	ErrorMessage *string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// SessionStore owns the sessions table and emits an outbox event whenever a
// session closes, in the same transaction as the close.
type SessionStore struct {
	pool   Pool
	outbox *OutboxRepository
	stream string
	logger *slog.Logger
}

func NewSessionStore(pool Pool, stream string) *SessionStore {
	return &SessionStore{
		pool:   pool,
		outbox: NewOutboxRepository(pool),
		stream: stream,
		logger: slog.Default().With("component", "session_store"),
	}
}

// OpenSession records the start of an extraction attempt and returns its id.
func (s *SessionStore) OpenSession(ctx context.Context, source, category string) (string, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (session_id, source, category, started_at)
		 VALUES ($1, $2, $3, CURRENT_TIMESTAMP)`,
		id, source, category,
	)
	if err != nil {
		return "", fmt.Errorf("failed to open session: %w", err)
	}
	return id.String(), nil
}

// CloseSession finalizes a session. Closing an already-closed session is a
// logged no-op so exception paths can close defensively.
func (s *SessionStore) CloseSession(ctx context.Context, sessionID string, success bool, recordsFound int, errorMessage string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("failed to parse session id: %w", err)
	}

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE sessions SET
				completed_at = CURRENT_TIMESTAMP,
				success = $2,
				records_found = $3,
				error_message = $4
			 WHERE session_id = $1 AND completed_at IS NULL`,
			id, success, recordsFound, nullStr(errorMessage),
		)
		if err != nil {
			return fmt.Errorf("failed to close session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			s.logger.Warn("session already closed", "session_id", sessionID)
			return nil
		}

		eventType := "SESSION_COMPLETED"
		if !success {
			eventType = "SESSION_FAILED"
		}
		payload, err := json.Marshal(map[string]any{
			"session_id":    sessionID,
			"success":       success,
			"records_found": recordsFound,
			"error":         errorMessage,
		})
		if err != nil {
			return fmt.Errorf("failed to encode session event: %w", err)
		}

		return s.outbox.InsertWithTx(ctx, tx, &OutboxEvent{
			AggregateType: "scrape_session",
			AggregateID:   sessionID,
			EventType:     eventType,
			Payload:       payload,
			TargetStream:  s.stream,
		})
	})
}
