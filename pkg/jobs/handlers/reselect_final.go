package handlers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sim-judge/sim/pkg/jobs"
)

func init() {
	register(jobs.ReselectFinal, reselectFinal)
}

// reselectFinal recomputes contest_problem_final for every submission under
// one contest problem: each user's most recent submission becomes final,
// every earlier one is cleared. Needed after an operator action (e.g. a
// disqualified submission being excluded) invalidates the usual
// newest-wins rule JUDGE_SUBMISSION/REJUDGE_SUBMISSION apply incrementally.
func reselectFinal(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing contest problem id", job.Type, job.ID)
	}
	contestProblemID := *job.AuxID

	if _, err := tx.ExecContext(ctx, `UPDATE submissions SET contest_problem_final = FALSE WHERE contest_problem_id = ?`, contestProblemID); err != nil {
		return fmt.Errorf("clear contest_problem_final for contest problem %d: %w", contestProblemID, err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE submissions s
		JOIN (
			SELECT user_id, MAX(id) AS max_id
			FROM submissions
			WHERE contest_problem_id = ?
			GROUP BY user_id
		) latest ON s.id = latest.max_id
		SET s.contest_problem_final = TRUE`, contestProblemID)
	if err != nil {
		return fmt.Errorf("set contest_problem_final for contest problem %d: %w", contestProblemID, err)
	}
	n, _ := res.RowsAffected()
	log.Logf("reselected %d final submission(s) for contest problem %d", n, contestProblemID)
	return nil
}
