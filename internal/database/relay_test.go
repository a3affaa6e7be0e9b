package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	added []*redis.XAddArgs
	err   error
}

func (f *fakeRedis) XAdd(_ context.Context, args *redis.XAddArgs) *redis.StringCmd {
	f.added = append(f.added, args)
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	return redis.NewStringResult("1-1", nil)
}

func pendingEventRows(id uuid.UUID) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "aggregate_type", "aggregate_id", "event_type", "payload",
		"target_stream", "status", "retry_count", "created_at", "processed_at",
	}).AddRow(id, "scrape_session", "s1", "SESSION_COMPLETED", json.RawMessage(`{"records_found":5}`),
		"stream:scrape_sessions", "pending", 0, time.Now(), nil)
}

func TestProcessEventsDeliversAndMarksProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM session_outbox").
		WithArgs(100).
		WillReturnRows(pendingEventRows(eventID))
	mock.ExpectExec("UPDATE session_outbox SET status").
		WithArgs(eventID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	redisClient := &fakeRedis{}
	relay := NewRelay(mock, redisClient, RelayConfig{})

	require.NoError(t, relay.processEvents(context.Background()))

	require.Len(t, redisClient.added, 1)
	assert.Equal(t, "stream:scrape_sessions", redisClient.added[0].Stream)
	assert.Equal(t, "SESSION_COMPLETED", redisClient.added[0].Values.(map[string]any)["event_type"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessEventsMarksFailedOnDeliveryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM session_outbox").
		WithArgs(100).
		WillReturnRows(pendingEventRows(eventID))
	mock.ExpectExec("UPDATE session_outbox").
		WithArgs(eventID, maxOutboxRetries).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	redisClient := &fakeRedis{err: errors.New("connection refused")}
	relay := NewRelay(mock, redisClient, RelayConfig{})

	require.NoError(t, relay.processEvents(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessEventsNothingPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM session_outbox").
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "aggregate_type", "aggregate_id", "event_type", "payload",
			"target_stream", "status", "retry_count", "created_at", "processed_at",
		}))

	redisClient := &fakeRedis{}
	relay := NewRelay(mock, redisClient, RelayConfig{})

	require.NoError(t, relay.processEvents(context.Background()))
	assert.Empty(t, redisClient.added)
	assert.NoError(t, mock.ExpectationsWereMet())
}
