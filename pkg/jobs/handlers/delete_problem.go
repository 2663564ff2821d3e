package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/problems"
)

func init() {
	register(jobs.DeleteProblem, deleteProblem)
}

// deleteProblem schedules DELETE_INTERNAL_FILE for the problem's package and
// every submission's source before deleting the problems row; the FK cascade
// on submissions.problem_id removes the submissions rows themselves.
func deleteProblem(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing problem id", job.Type, job.ID)
	}
	problemID := *job.AuxID

	exists, err := problems.Exists(ctx, tx, problemID)
	if err != nil {
		return err
	}
	if !exists {
		return jobs.NewHandlerError(jobs.Participant, fmt.Errorf("problem %d does not exist", problemID))
	}

	problem, err := problems.Get(ctx, tx, problemID)
	if err != nil {
		return err
	}
	log.Logf("deleted problem %d Simfile:\n%s", problemID, problem.Simfile.Name)

	now := time.Now().UTC()
	fileIDs := []int64{problem.FileID}

	rows, err := tx.QueryContext(ctx, `SELECT source_file_id FROM submissions WHERE problem_id = ?`, problemID)
	if err != nil {
		return fmt.Errorf("list submission files for problem %d: %w", problemID, err)
	}
	for rows.Next() {
		var fid int64
		if err := rows.Scan(&fid); err != nil {
			rows.Close()
			return fmt.Errorf("scan submission file id: %w", err)
		}
		fileIDs = append(fileIDs, fid)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list submission files for problem %d: %w", problemID, err)
	}

	for _, fid := range fileIDs {
		fid := fid
		if _, err := jobs.Insert(ctx, tx, jobs.Job{
			Type:      jobs.DeleteInternalFile,
			CreatedAt: now,
			AuxID:     &fid,
		}); err != nil {
			return fmt.Errorf("schedule delete of internal file %d: %w", fid, err)
		}
	}

	if err := problems.Delete(ctx, tx, problemID); err != nil {
		return err
	}
	log.Logf("deleted problem %d, scheduled removal of %d internal file(s)", problemID, len(fileIDs))
	return nil
}
