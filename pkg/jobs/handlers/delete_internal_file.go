package handlers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sim-judge/sim/pkg/jobs"
)

func init() {
	register(jobs.DeleteInternalFile, deleteInternalFile)
}

// deleteInternalFile unlinks the blob then removes its row; both steps
// tolerate the file already being gone, so running this job twice for the
// same id (e.g. after a crash-recovery requeue) is harmless.
func deleteInternalFile(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing internal file id", job.Type, job.ID)
	}
	fileID := *job.AuxID

	log.Logf("internal file id: %d", fileID)
	if err := env.InternalFiles.Delete(fileID); err != nil {
		return fmt.Errorf("unlink internal file %d: %w", fileID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM internal_files WHERE id = ?`, fileID); err != nil {
		return fmt.Errorf("delete internal_files row %d: %w", fileID, err)
	}
	return nil
}
