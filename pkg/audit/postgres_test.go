package audit

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frameio/frameio-gateway/pkg/observability"
)

func mockLogger(t *testing.T) (*PostgresLogger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pl := NewPostgresLoggerWithDB(db, observability.NewLogger(observability.ErrorLevel, io.Discard))
	return pl, mock
}

func TestLogInsertsEvent(t *testing.T) {
	pl, mock := mockLogger(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("auth.login", "operator:tsg_admin", "", "", "10.0.0.1", "req-1", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := pl.Log(context.Background(), Event{
		Type:        EventLogin,
		PrincipalID: "operator:tsg_admin",
		ClientIP:    "10.0.0.1",
		RequestID:   "req-1",
		At:          at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogDefaultsTimestamp(t *testing.T) {
	pl, mock := mockLogger(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pl.now = func() time.Time { return fixed }

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("authz.access_denied", "u1", "", "missing manage_billing", "", "", fixed).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := pl.Log(context.Background(), Event{
		Type:        EventAccessDenied,
		PrincipalID: "u1",
		Detail:      "missing manage_billing",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepRemovesExpiredRows(t *testing.T) {
	pl, mock := mockLogger(t)
	fixed := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	pl.now = func() time.Time { return fixed }

	retention := 90 * 24 * time.Hour
	mock.ExpectExec("DELETE FROM audit_events").
		WithArgs(fixed.Add(-retention)).
		WillReturnResult(sqlmock.NewResult(0, 42))

	removed, err := pl.Sweep(context.Background(), retention)
	require.NoError(t, err)
	assert.Equal(t, int64(42), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepReportsRowCountError(t *testing.T) {
	pl, mock := mockLogger(t)
	fixed := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	pl.now = func() time.Time { return fixed }

	retention := 90 * 24 * time.Hour
	mock.ExpectExec("DELETE FROM audit_events").
		WithArgs(fixed.Add(-retention)).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("driver does not report rows")))

	removed, err := pl.Sweep(context.Background(), retention)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count swept audit events")
	assert.Zero(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNopLogger(t *testing.T) {
	assert.NoError(t, NopLogger{}.Log(context.Background(), Event{Type: EventLogout}))
}
