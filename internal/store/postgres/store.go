// internal/store/postgres/store.go

// Package postgres is the PostgreSQL adapter of the marketplace store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carmarket/internal/store"
	"carmarket/internal/store/migrate"
	"carmarket/internal/store/postgres/migrations"
	"carmarket/internal/store/sqlstore"

	"github.com/lib/pq"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

var dialect = sqlstore.Dialect{
	Name:              "postgres",
	NumberedParams:    true,
	LockClause:        " FOR UPDATE",
	IsUniqueViolation: isUniqueViolation,
}

// Store runs every unit of work as a SERIALIZABLE transaction. Rows that a
// unit of work reads in order to modify are locked with FOR UPDATE, so
// racing bids and finalizations queue on the auction row; serialization
// failures and deadlocks that still occur are retried in a fresh transaction.
type Store struct {
	db    *sql.DB
	retry store.RetryPolicy
}

// Open connects to dsn, applies migrations and returns the store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migrate.Apply(ctx, db, migrate.Postgres, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return New(db), nil
}

// New wraps an already migrated database handle.
func New(db *sql.DB) *Store {
	return &Store{
		db:    db,
		retry: store.RetryPolicy{IsTransient: isTransient},
	}
}

// WithinTx runs fn inside one serializable transaction.
func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) error {
	return s.retry.Run(ctx, dialect.Name, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
			Isolation: sql.LevelSerializable,
		})
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(ctx, sqlstore.NewTx(tx, dialect)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

// DB exposes the underlying handle for read-only diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func isTransient(err error) bool {
	code := pqCode(err)
	return code == codeSerializationFailure || code == codeDeadlockDetected
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

var _ store.Store = (*Store)(nil)
