package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/frameio/frameio-gateway/pkg/observability"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS audit_events (
	id BIGSERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	principal_id TEXT NOT NULL DEFAULT '',
	target_id TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	client_ip TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_occurred_at ON audit_events (occurred_at);
CREATE INDEX IF NOT EXISTS idx_audit_events_principal ON audit_events (principal_id, occurred_at);`

// PostgresLogger writes audit events to Postgres
type PostgresLogger struct {
	db     *sql.DB
	logger *observability.Logger
	now    func() time.Time
}

// NewPostgresLogger opens the database and ensures the audit schema exists
func NewPostgresLogger(postgresURL string, logger *observability.Logger) (*PostgresLogger, error) {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pl := &PostgresLogger{db: db, logger: logger, now: time.Now}
	if err := pl.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return pl, nil
}

// NewPostgresLoggerWithDB wraps an existing handle, used by tests
func NewPostgresLoggerWithDB(db *sql.DB, logger *observability.Logger) *PostgresLogger {
	return &PostgresLogger{db: db, logger: logger, now: time.Now}
}

func (pl *PostgresLogger) ensureSchema(ctx context.Context) error {
	if _, err := pl.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// Log persists one event. At defaults to now when unset.
func (pl *PostgresLogger) Log(ctx context.Context, event Event) error {
	at := event.At
	if at.IsZero() {
		at = pl.now()
	}
	_, err := pl.db.ExecContext(ctx,
		`INSERT INTO audit_events (event_type, principal_id, target_id, detail, client_ip, request_id, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(event.Type), event.PrincipalID, event.TargetID, event.Detail, event.ClientIP, event.RequestID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for health checks
func (pl *PostgresLogger) DB() *sql.DB {
	return pl.db
}

// Close releases the database handle
func (pl *PostgresLogger) Close() error {
	return pl.db.Close()
}

// Sweep deletes events older than the retention window and returns the
// number of rows removed.
func (pl *PostgresLogger) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := pl.now().Add(-retention)
	res, err := pl.db.ExecContext(ctx, `DELETE FROM audit_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep audit events: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept audit events: %w", err)
	}
	return removed, nil
}

// ScheduleRetention registers the retention sweep on the cron runner.
// schedule is a standard cron expression, e.g. "0 3 * * *".
func (pl *PostgresLogger) ScheduleRetention(runner *cron.Cron, schedule string, retentionDays int) error {
	retention := time.Duration(retentionDays) * 24 * time.Hour
	_, err := runner.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		removed, err := pl.Sweep(ctx, retention)
		if err != nil {
			pl.logger.WithError(err).Error("audit retention sweep failed")
			return
		}
		pl.logger.WithFields(map[string]interface{}{
			"removed":        removed,
			"retention_days": retentionDays,
		}).Info("audit retention sweep completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit retention: %w", err)
	}
	return nil
}
