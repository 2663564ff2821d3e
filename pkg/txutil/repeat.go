// Package txutil provides the transaction-retry and post-commit cleanup
// glue shared by every job handler.
package txutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
)

const (
	mysqlErrDeadlock       = 1213
	mysqlErrLockWaitTimeout = 1205
)

// MaxAttempts bounds how many times Repeat retries a deadlocked transaction
// before surfacing the error as a permanent failure.
const MaxAttempts = 5

// Repeat runs fn inside a REPEATABLE READ transaction against db, retrying
// with exponential backoff when the MySQL driver reports a deadlock (1213)
// or lock wait timeout (1205). The level is requested through
// sql.TxOptions, which the MySQL driver applies before it starts the
// transaction.
func Repeat(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxAttempts-1)

	return backoff.Retry(func() error {
		tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
		if err != nil {
			return fmt.Errorf("txutil: begin: %w", err)
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if err := tx.Commit(); err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("txutil: commit: %w", err))
		}
		return nil
	}, policy)
}

func isRetryable(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
	}
	return false
}

// FileRemover is a post-commit cleanup guard: construct it with the path to
// remove, call Cancel if the surrounding work is abandoned, and always call
// Run from a defer placed after the transaction's own defer so it only
// fires once the commit/rollback outcome is known. Go has no RAII
// destructor, so this re-expresses the original's FileRemover guard as an
// explicit pair of methods instead.
type FileRemover struct {
	path      string
	cancelled bool
}

// NewFileRemover returns a guard that will remove path when Run is called,
// unless Cancel has been called first.
func NewFileRemover(path string) *FileRemover {
	return &FileRemover{path: path}
}

// Cancel disarms the guard; Run becomes a no-op.
func (f *FileRemover) Cancel() {
	f.cancelled = true
}

// Run removes the guarded path unless Cancel was called.
func (f *FileRemover) Run() error {
	if f.cancelled || f.path == "" {
		return nil
	}
	return removeTolerant(f.path)
}

func removeTolerant(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
