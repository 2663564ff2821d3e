package handlers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sim-judge/sim/pkg/jobs"
)

func init() {
	register(jobs.DeleteUser, deleteUser)
	register(jobs.MergeUsers, mergeUsers)
}

// deleteUser orphans the user's submissions (user_id set to NULL) rather
// than deleting them: users themselves live outside this schema, and a
// submission's judge report is worth keeping even once its author is gone.
func deleteUser(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing user id", job.Type, job.ID)
	}
	res, err := tx.ExecContext(ctx, `UPDATE submissions SET user_id = NULL WHERE user_id = ?`, *job.AuxID)
	if err != nil {
		return fmt.Errorf("orphan submissions for user %d: %w", *job.AuxID, err)
	}
	n, _ := res.RowsAffected()
	log.Logf("orphaned %d submission(s) belonging to deleted user %d", n, *job.AuxID)
	return nil
}

// mergeUsers retargets every submission's user_id from donor to target.
// Unlike MERGE_PROBLEMS, the donor side has no row of its own in this
// schema to delete afterward (users are owned by an external service).
func mergeUsers(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil || job.AuxID2 == nil {
		return fmt.Errorf("%s job %d: missing donor/target user id", job.Type, job.ID)
	}
	donorID, targetID := *job.AuxID, *job.AuxID2
	res, err := tx.ExecContext(ctx, `UPDATE submissions SET user_id = ? WHERE user_id = ?`, targetID, donorID)
	if err != nil {
		return fmt.Errorf("retarget submissions %d -> %d: %w", donorID, targetID, err)
	}
	n, _ := res.RowsAffected()
	log.Logf("retargeted %d submission(s) from user %d to user %d", n, donorID, targetID)
	return nil
}
