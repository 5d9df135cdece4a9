// Package sqlite is the persistent storage adapter. Balances and amounts are
// stored as scaled integers so relative balance updates are evaluated exactly
// by the storage engine, never recomputed in Go from a stale read.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/infra/resilience"
	"github.com/finbook/finbook/internal/port"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	_ "modernc.org/sqlite"
)

// unitScale is the number of fractional digits kept per monetary unit.
// One currency unit is 10^4 stored units.
const unitScale = 4

func toUnits(d decimal.Decimal) int64 {
	return d.Shift(unitScale).Round(0).IntPart()
}

func fromUnits(n int64) decimal.Decimal {
	return decimal.New(n, -unitScale)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// same scan and exec helpers serve reads inside and outside atomic units.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements port.Store on a single sqlite database. Commits go through
// a circuit breaker with retries so transient lock contention does not bubble
// up as user-facing failures.
type Store struct {
	db    *sql.DB
	cb    *gobreaker.CircuitBreaker
	bh    *resilience.Bulkhead
	retry resilience.Config
}

// Open opens (and if needed creates) the database at dbPath and brings the
// schema up to date.
func Open(dbPath string, retry resilience.Config) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer connection sidesteps SQLITE_BUSY between our own
	// transactions. Reads still run concurrently through WAL.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	maxConcurrency := retry.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}

	return &Store{
		db:    db,
		cb:    resilience.NewCircuitBreaker("sqlite"),
		bh:    resilience.NewBulkhead(maxConcurrency),
		retry: retry,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InTx runs fn inside one database transaction. Storage failures are retried
// through the circuit breaker; domain errors returned by fn come back as-is
// after a single rollback, they are outcomes, not faults.
func (s *Store) InTx(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	// The single writer connection serializes units anyway; the bulkhead
	// makes callers wait in a cancellable queue instead of piling up on
	// the driver.
	if err := s.bh.Acquire(ctx); err != nil {
		return &domain.ErrStorage{Op: "begin", Err: err}
	}
	defer s.bh.Release()

	var domainErr error
	err := resilience.Execute(ctx, s.cb, s.retry, func() error {
		err := s.runTx(ctx, fn)
		var storageErr *domain.ErrStorage
		if err != nil && !errors.As(err, &storageErr) {
			domainErr = err
			return nil
		}
		return err
	})
	if domainErr != nil {
		return domainErr
	}
	if err != nil {
		var storageErr *domain.ErrStorage
		if !errors.As(err, &storageErr) {
			return &domain.ErrStorage{Op: "tx", Err: err}
		}
		return err
	}
	return nil
}

func (s *Store) runTx(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.ErrStorage{Op: "begin", Err: err}
	}

	if err := fn(&ledgerTx{q: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return &domain.ErrStorage{Op: "commit", Err: err}
	}
	return nil
}

// scopeClause matches rows owned by the caller, either personally or through
// the organization. Empty scope fields never match empty owner columns.
const scopeClause = "((user_id != '' AND user_id = ?) OR (organization_id != '' AND organization_id = ?))"
