package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/listening-monitor/internal/persistence"
	"github.com/example/listening-monitor/internal/persistence/sqlstore/migration"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// Storage implements persistence.Store over database/sql.
type Storage struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
	repositories
}

var _ persistence.Store = (*Storage)(nil)

// Option customises a Storage.
type Option func(*Storage)

// WithClock overrides the clock used to fill timestamps the caller left empty.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to the configured database. The schema is not touched; call
// Migrate or check MigrationStatus separately.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Storage, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(db, cfg.Dialect, opts...), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Storage {
	s := &Storage{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.repositories = repositories{q: db, dialect: dialect, now: s.now}
	return s
}

// DB returns the underlying connection pool.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Dialect reports the SQL engine in use.
func (s *Storage) Dialect() Dialect {
	return s.dialect
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the database answers.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrator returns a migration manager for the embedded schema of this dialect.
func (s *Storage) Migrator(logger *slog.Logger) migration.Manager {
	return migration.NewFSManager(
		migrationFiles,
		migration.NewExecutor(s.db, s.dialect.Rebind),
		migration.Config{Dir: "migrations/" + string(s.dialect), VerifyChecksum: true},
		logger,
	)
}

// Migrate applies every pending embedded migration.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	return s.Migrator(logger).RunMigrations(ctx)
}

// WithTx runs fn with repositories bound to a read-write transaction.
func (s *Storage) WithTx(ctx context.Context, fn func(persistence.Repositories) error) error {
	return s.withTx(ctx, nil, fn)
}

// WithReadTx runs fn with repositories bound to a read-only transaction.
// PostgreSQL reads use REPEATABLE READ so that every query sees one snapshot;
// SQLite transactions are snapshots already.
func (s *Storage) WithReadTx(ctx context.Context, fn func(persistence.Repositories) error) error {
	opts := &sql.TxOptions{ReadOnly: true}
	if s.dialect == DialectPostgres {
		opts.Isolation = sql.LevelRepeatableRead
	}
	return s.withTx(ctx, opts, fn)
}

func (s *Storage) withTx(ctx context.Context, opts *sql.TxOptions, fn func(persistence.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(repositories{q: tx, dialect: s.dialect, now: s.now}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// repositories binds every repository to one querier.
type repositories struct {
	q       querier
	dialect Dialect
	now     func() time.Time
}

func (r repositories) Users() persistence.UserRepository           { return &UserRepository{r} }
func (r repositories) Sessions() persistence.SessionRepository     { return &SessionRepository{r} }
func (r repositories) Recordings() persistence.RecordingRepository { return &RecordingRepository{r} }
func (r repositories) Logs() persistence.SystemLogRepository       { return &SystemLogRepository{r} }
func (r repositories) Stats() persistence.StatsRepository          { return &StatsRepository{r} }
func (r repositories) Retention() persistence.RetentionRepository  { return &RetentionRepository{r} }

func (r repositories) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := r.q.ExecContext(ctx, r.dialect.Rebind(query), args...)
	return res, mapError(err)
}

func (r repositories) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := r.q.QueryContext(ctx, r.dialect.Rebind(query), args...)
	return rows, mapError(err)
}

func (r repositories) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.dialect.Rebind(query), args...)
}

// timestamp returns t, or the store clock when t is zero.
func (r repositories) timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return r.now().UTC()
	}
	return t.UTC()
}

func (r repositories) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := r.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// requireAffected turns a zero-row write into persistence.ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
