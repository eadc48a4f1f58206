// Package postgres keeps the command log in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	ddd "github.com/terraskye/ddd"
	"github.com/terraskye/ddd/commandstore"
)

const schema = `CREATE TABLE IF NOT EXISTS command_log (
	id VARCHAR(36) PRIMARY KEY,
	tenant_id VARCHAR(255) NOT NULL,
	command_type VARCHAR(255) NOT NULL,
	correlation_id VARCHAR(36) NOT NULL,
	causation_id VARCHAR(36) NOT NULL,
	payload JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertCommand = `INSERT INTO command_log (id, tenant_id, command_type, correlation_id, causation_id, payload, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

var _ ddd.CommandStore = (*Store)(nil)

// Connect opens the database and pings it until it answers or b gives up.
// A nil b retries with an exponential backoff for up to a minute.
func Connect(ctx context.Context, databaseURL string, b backoff.BackOff, log *slog.Logger) (*sql.DB, error) {
	if b == nil {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = time.Minute
		b = eb
	}
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	notify := func(err error, wait time.Duration) {
		log.WarnContext(ctx, "database not reachable, retrying",
			slog.Any("error", err),
			slog.Duration("wait", wait),
		)
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.InfoContext(ctx, "connected to PostgreSQL")
	return db, nil
}

type Store struct {
	db       *sql.DB
	tenantID string
}

func New(db *sql.DB, tenantID string) *Store {
	return &Store{db: db, tenantID: tenantID}
}

// Migrate creates the command_log table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate command_log: %w", err)
	}
	return nil
}

// Append inserts cmd. Appending the same command twice keeps the first row.
func (s *Store) Append(ctx context.Context, cmd ddd.Command) error {
	w, err := commandstore.Encode(s.tenantID, cmd)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, insertCommand,
		w.ID,
		w.TenantID,
		w.Type,
		*w.CorrelationID,
		*w.CausationID,
		[]byte(w.Payload),
		w.RaisedAt,
	)
	if err != nil {
		return fmt.Errorf("insert command %s: %w", w.ID, err)
	}
	return nil
}
