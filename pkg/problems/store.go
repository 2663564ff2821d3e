package problems

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Get fetches problem id within tx.
func Get(ctx context.Context, tx *sql.Tx, id int64) (Problem, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, file_id, simfile, name, label, visibility, owner_id, created_at, updated_at
		FROM problems WHERE id = ?`, id)
	var p Problem
	var simfileText string
	var visibility int
	if err := row.Scan(&p.ID, &p.FileID, &simfileText, &p.Name, &p.Label, &visibility, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Problem{}, fmt.Errorf("problems: get %d: %w", id, err)
	}
	p.Visibility = Visibility(visibility)
	sf, err := ParseSimfile(strings.NewReader(simfileText))
	if err != nil {
		return Problem{}, fmt.Errorf("problems: get %d: parse simfile: %w", id, err)
	}
	p.Simfile = sf
	return p, nil
}

// Exists reports whether id currently has a problems row.
func Exists(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var dummy int64
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM problems WHERE id = ?`, id).Scan(&dummy)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("problems: exists %d: %w", id, err)
	}
	return true, nil
}

// UpdateFileID repoints problem id's package to a new internal file (used
// by REUPLOAD_PROBLEM and CHANGE_PROBLEM_STATEMENT once the new package has
// been stored).
func UpdateFileID(ctx context.Context, tx *sql.Tx, id, newFileID int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE problems SET file_id = ? WHERE id = ?`, newFileID, id)
	if err != nil {
		return fmt.Errorf("problems: update file_id for %d: %w", id, err)
	}
	return nil
}

// Delete removes the problems row. Referential integrity (FK cascade)
// removes dependent submissions rows; the caller is
// responsible for scheduling DELETE_INTERNAL_FILE jobs for every file this
// problem transitively referenced before calling Delete.
func Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM problems WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("problems: delete %d: %w", id, err)
	}
	return nil
}

// RetargetSubmissions rewrites every submission's problem_id from donor to
// target and returns the number of rows changed, not their ids.
func RetargetSubmissions(ctx context.Context, tx *sql.Tx, donor, target int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE submissions SET problem_id = ? WHERE problem_id = ?`, target, donor)
	if err != nil {
		return 0, fmt.Errorf("problems: retarget submissions %d -> %d: %w", donor, target, err)
	}
	return res.RowsAffected()
}
