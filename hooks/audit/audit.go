// Package audit persists a PostgreSQL audit row for every completed call.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnehpets/onerpc/rpc"
)

// DB is the database dependency of a Recorder. *pgxpool.Pool implements it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS rpc_calls (
	id           BIGSERIAL PRIMARY KEY,
	endpoint     TEXT NOT NULL,
	method       TEXT NOT NULL,
	origin       TEXT NOT NULL,
	code         INTEGER NOT NULL,
	notification BOOLEAN NOT NULL,
	duration_ms  DOUBLE PRECISION NOT NULL,
	called_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertCall = `
INSERT INTO rpc_calls (endpoint, method, origin, code, notification, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6)`

// Recorder writes one audit row per completed call: endpoint, method,
// origin, outcome code (0 for success), notification flag, and duration.
// An insert failure degrades to a warn log line; it never becomes the
// call's outcome.
type Recorder struct {
	db   DB
	pool *pgxpool.Pool

	starts sync.Map
}

// New connects to PostgreSQL, ensures the audit table exists, and returns
// a Recorder owning the connection pool.
func New(ctx context.Context, dsn string) (*Recorder, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing audit DSN: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating audit pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to audit database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating audit table: %w", err)
	}
	return &Recorder{db: pool, pool: pool}, nil
}

// NewWithDB wraps an existing connection. The caller keeps ownership and
// must have created the audit table.
func NewWithDB(db DB) *Recorder {
	return &Recorder{db: db}
}

// Hook returns the pipeline hook that drives the recorder. Register it
// with Dispatcher.AddHook.
func (r *Recorder) Hook() *rpc.Hook {
	return &rpc.Hook{
		BeforeDecode:   r.started,
		AfterSerialize: r.completed,
	}
}

// Close releases the connection pool when the Recorder owns one.
func (r *Recorder) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *Recorder) started(ctx context.Context, c *rpc.Call) error {
	r.starts.Store(c, time.Now())
	return nil
}

func (r *Recorder) completed(ctx context.Context, c *rpc.Call) error {
	var elapsed time.Duration
	if v, ok := r.starts.LoadAndDelete(c); ok {
		elapsed = time.Since(v.(time.Time))
	}

	var endpoint, method string
	if c.Endpoint != nil {
		endpoint = c.Endpoint.Path
	}
	if c.Envelope != nil {
		method = c.Envelope.MethodName
	}
	code := 0
	if c.Failed() {
		code = c.Outcome.Err.Code
	}

	_, err := r.db.Exec(ctx, insertCall,
		endpoint, method, c.RemoteOrigin, code, c.IsNotification,
		float64(elapsed)/float64(time.Millisecond))
	if err != nil {
		slog.Warn("audit insert failed",
			"endpoint", endpoint,
			"method", method,
			"error", err)
	}
	return nil
}
