package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionMock(t *testing.T) (pgxmock.PgxPoolIface, *SessionStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewSessionStore(mock, "stream:scrape_sessions")
}

func TestOpenSessionReturnsID(t *testing.T) {
	mock, store := newSessionMock(t)

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(pgxmock.AnyArg(), "web_catalog", "default").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sessionID, err := store.OpenSession(context.Background(), "web_catalog", "default")
	require.NoError(t, err)

	_, err = uuid.Parse(sessionID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSessionEmitsOutboxEvent(t *testing.T) {
	mock, store := newSessionMock(t)
	sessionID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sessions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO session_outbox").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"status", "retry_count", "created_at"}).
			AddRow("pending", 0, time.Now()))
	mock.ExpectCommit()

	err := store.CloseSession(context.Background(), sessionID, true, 12, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSessionAlreadyClosedIsNoOp(t *testing.T) {
	mock, store := newSessionMock(t)
	sessionID := uuid.New().String()

	// Zero rows updated: the session was closed earlier. No event is
	// written and the call still succeeds.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sessions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	err := store.CloseSession(context.Background(), sessionID, false, 0, "navigation timeout")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSessionRejectsMalformedID(t *testing.T) {
	mock, store := newSessionMock(t)

	err := store.CloseSession(context.Background(), "not-a-uuid", true, 0, "")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
