package jobs

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// Store is the MySQL-backed jobs table access layer. Its shape (a struct
// wrapping a pooled connection, one method per query) follows the teacher's
// compliance-storage outbox layer, re-expressed over database/sql instead
// of pgx.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection pool against dsn and verifies connectivity.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobs: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobs: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying pool for transaction glue (pkg/txutil) and for
// cmd/sim-job-server, whose workers all share this one pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// Insert inserts a new pending job inside tx (the caller's own producer
// transaction) and returns its assigned id.
func Insert(ctx context.Context, tx *sql.Tx, j Job) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (type, status, priority, creator, created_at, aux_id, aux_id_2, log, file_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int(j.Type), int(Pending), j.Priority, j.Creator, j.CreatedAt, j.AuxID, j.AuxID2, j.Log, j.FileID)
	if err != nil {
		return 0, fmt.Errorf("jobs: insert: %w", err)
	}
	return res.LastInsertId()
}

// FetchPendingBatch returns up to limit PENDING jobs ordered by
// (priority DESC, id ASC), mirroring the dispatcher's in-memory btree order.
func FetchPendingBatch(ctx context.Context, db *sql.DB, limit int) ([]Job, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, type, status, priority, creator, created_at, aux_id, aux_id_2, log, file_id
		FROM jobs
		WHERE status = ?
		ORDER BY priority DESC, id ASC
		LIMIT ?`, int(Pending), limit)
	if err != nil {
		return nil, fmt.Errorf("jobs: fetch pending: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	var out []Job
	for rows.Next() {
		var j Job
		var typ, status int
		if err := rows.Scan(&j.ID, &typ, &status, &j.Priority, &j.Creator, &j.CreatedAt, &j.AuxID, &j.AuxID2, &j.Log, &j.FileID); err != nil {
			return nil, fmt.Errorf("jobs: scan: %w", err)
		}
		j.Type, j.Status = JobType(typ), Status(status)
		out = append(out, j)
	}
	return out, rows.Err()
}

// ClaimInProgress marks job id IN_PROGRESS inside tx. The caller must already
// hold the conflict-filter guarantee that no conflicting job is running.
func ClaimInProgress(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ? AND status = ?`,
		int(InProgress), id, int(Pending))
	if err != nil {
		return fmt.Errorf("jobs: claim %d: %w", id, err)
	}
	return nil
}

// FinishWithLog transitions id to a terminal status and flushes log in the
// same transaction, per spec.md §4.E's "terminal transitions and final log
// write share the same transaction" rule.
func FinishWithLog(ctx context.Context, tx *sql.Tx, id int64, status Status, log string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("jobs: FinishWithLog: %s is not terminal", status)
	}
	_, err := tx.ExecContext(ctx, `UPDATE jobs SET status = ?, log = ? WHERE id = ?`, int(status), log, id)
	if err != nil {
		return fmt.Errorf("jobs: finish %d: %w", id, err)
	}
	return nil
}

// ResetCrashedJobs resets every IN_PROGRESS row to PENDING. Called once at
// dispatcher startup (spec.md §4.G crash recovery).
func ResetCrashedJobs(ctx context.Context, db *sql.DB) (int64, error) {
	res, err := db.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE status = ?`, int(Pending), int(InProgress))
	if err != nil {
		return 0, fmt.Errorf("jobs: reset crashed: %w", err)
	}
	return res.RowsAffected()
}

// Get fetches a single job by id.
func Get(ctx context.Context, db *sql.DB, id int64) (Job, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, type, status, priority, creator, created_at, aux_id, aux_id_2, log, file_id
		FROM jobs WHERE id = ?`, id)
	var j Job
	var typ, status int
	if err := row.Scan(&j.ID, &typ, &status, &j.Priority, &j.Creator, &j.CreatedAt, &j.AuxID, &j.AuxID2, &j.Log, &j.FileID); err != nil {
		return Job{}, fmt.Errorf("jobs: get %d: %w", id, err)
	}
	j.Type, j.Status = JobType(typ), Status(status)
	return j, nil
}

// Cancel marks id CANCELLED with reason appended to the log, inside tx.
func Cancel(ctx context.Context, tx *sql.Tx, id int64, reason string) error {
	return FinishWithLog(ctx, tx, id, Cancelled, reason+"\n")
}
