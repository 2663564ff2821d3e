package handlers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sim-judge/sim/pkg/jobs"
)

func init() {
	register(jobs.DeleteContest, deleteContest)
	register(jobs.DeleteContestRound, deleteContestRound)
	register(jobs.DeleteContestProblem, deleteContestProblem)
}

// Contests, rounds, and their problem attachments live in an external
// service this repository's reduced schema (jobs/problems/submissions
// only, per spec §1's non-goals) does not model. These three handlers'
// scope is therefore limited to the trace a contest leaves on the
// submissions rows this schema does own: clearing the matching
// contest_id/contest_round_id/contest_problem_id column so a deleted
// contest's submissions stop being attributed to it. The contest's own
// rows are deleted by the external service before this job is even
// scheduled.
func deleteContest(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing contest id", job.Type, job.ID)
	}
	res, err := tx.ExecContext(ctx, `UPDATE submissions SET contest_id = NULL, contest_round_id = NULL, contest_problem_id = NULL WHERE contest_id = ?`, *job.AuxID)
	if err != nil {
		return fmt.Errorf("clear submissions for contest %d: %w", *job.AuxID, err)
	}
	n, _ := res.RowsAffected()
	log.Logf("detached %d submission(s) from deleted contest %d", n, *job.AuxID)
	return nil
}

func deleteContestRound(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing contest round id", job.Type, job.ID)
	}
	res, err := tx.ExecContext(ctx, `UPDATE submissions SET contest_round_id = NULL, contest_problem_id = NULL WHERE contest_round_id = ?`, *job.AuxID)
	if err != nil {
		return fmt.Errorf("clear submissions for contest round %d: %w", *job.AuxID, err)
	}
	n, _ := res.RowsAffected()
	log.Logf("detached %d submission(s) from deleted contest round %d", n, *job.AuxID)
	return nil
}

func deleteContestProblem(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing contest problem id", job.Type, job.ID)
	}
	res, err := tx.ExecContext(ctx, `UPDATE submissions SET contest_problem_id = NULL WHERE contest_problem_id = ?`, *job.AuxID)
	if err != nil {
		return fmt.Errorf("clear submissions for contest problem %d: %w", *job.AuxID, err)
	}
	n, _ := res.RowsAffected()
	log.Logf("detached %d submission(s) from deleted contest problem %d", n, *job.AuxID)
	return nil
}
