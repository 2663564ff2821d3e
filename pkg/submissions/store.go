package submissions

import (
	"context"
	"database/sql"
	"fmt"
)

// Get fetches submission id within tx.
func Get(ctx context.Context, tx *sql.Tx, id int64) (Submission, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, problem_id, user_id, contest_problem_id, contest_round_id, contest_id,
		       source_file_id, language, initial_status, full_status, score,
		       problem_final, contest_problem_final, contest_problem_initial_final,
		       initial_report, final_report, created_at, last_judgment_began_at
		FROM submissions WHERE id = ?`, id)
	var s Submission
	var lang, initStatus, fullStatus int
	if err := row.Scan(&s.ID, &s.ProblemID, &s.UserID, &s.ContestProblemID, &s.ContestRoundID, &s.ContestID,
		&s.SourceFileID, &lang, &initStatus, &fullStatus, &s.Score,
		&s.ProblemFinal, &s.ContestProblemFinal, &s.ContestProblemInitialFinal,
		&s.InitialReportHTML, &s.FinalReportHTML, &s.CreatedAt, &s.LastJudgmentBeganAt); err != nil {
		return Submission{}, fmt.Errorf("submissions: get %d: %w", id, err)
	}
	s.Language, s.InitialStatus, s.FullStatus = Language(lang), Status(initStatus), Status(fullStatus)
	return s, nil
}

// BeginJudgment stamps last_judgment_began_at with now, the timestamp a
// JUDGE_SUBMISSION/REJUDGE_SUBMISSION handler compares its own job's
// created_at against to detect supersession.
func BeginJudgment(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE submissions SET last_judgment_began_at = NOW(6) WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("submissions: begin judgment %d: %w", id, err)
	}
	return nil
}

// UpdateReport writes a judge run's outcome back onto the submission. final
// selects whether full_status/final_report (true) or initial_status/
// initial_report (false) is updated.
func UpdateReport(ctx context.Context, tx *sql.Tx, id int64, final bool, status Status, score *int, reportHTML string) error {
	var query string
	if final {
		query = `UPDATE submissions SET full_status = ?, score = ?, final_report = ? WHERE id = ?`
	} else {
		query = `UPDATE submissions SET initial_status = ?, initial_report = ? WHERE id = ?`
		_, err := tx.ExecContext(ctx, query, int(status), reportHTML, id)
		if err != nil {
			return fmt.Errorf("submissions: update initial report %d: %w", id, err)
		}
		return nil
	}
	_, err := tx.ExecContext(ctx, query, int(status), score, reportHTML, id)
	if err != nil {
		return fmt.Errorf("submissions: update final report %d: %w", id, err)
	}
	return nil
}

// UpdateFinal re-selects which submission is the user's final one for its
// problem and, if applicable, its contest problem: the newly judged
// submission becomes final unless a later submission already holds that
// slot. This mirrors the original's update_final helper.
func UpdateFinal(ctx context.Context, tx *sql.Tx, s Submission) error {
	problemFinal, err := isLatestForProblem(ctx, tx, s)
	if err != nil {
		return err
	}
	contestFinal := false
	if s.ContestProblemID != nil {
		contestFinal, err = isLatestForContestProblem(ctx, tx, s)
		if err != nil {
			return err
		}
	}

	if problemFinal {
		if _, err := tx.ExecContext(ctx, `UPDATE submissions SET problem_final = FALSE WHERE problem_id = ? AND user_id = ?`, s.ProblemID, s.UserID); err != nil {
			return fmt.Errorf("submissions: clear problem_final: %w", err)
		}
	}
	if contestFinal {
		if _, err := tx.ExecContext(ctx, `UPDATE submissions SET contest_problem_final = FALSE WHERE contest_problem_id = ? AND user_id = ?`, s.ContestProblemID, s.UserID); err != nil {
			return fmt.Errorf("submissions: clear contest_problem_final: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE submissions SET problem_final = ?, contest_problem_final = ? WHERE id = ?`,
		problemFinal, contestFinal, s.ID)
	if err != nil {
		return fmt.Errorf("submissions: set final flags %d: %w", s.ID, err)
	}
	return nil
}

func isLatestForProblem(ctx context.Context, tx *sql.Tx, s Submission) (bool, error) {
	var maxID int64
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM submissions WHERE problem_id = ? AND user_id = ?`, s.ProblemID, s.UserID).Scan(&maxID)
	if err != nil {
		return false, fmt.Errorf("submissions: isLatestForProblem: %w", err)
	}
	return maxID == s.ID, nil
}

func isLatestForContestProblem(ctx context.Context, tx *sql.Tx, s Submission) (bool, error) {
	var maxID int64
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM submissions WHERE contest_problem_id = ? AND user_id = ?`, s.ContestProblemID, s.UserID).Scan(&maxID)
	if err != nil {
		return false, fmt.Errorf("submissions: isLatestForContestProblem: %w", err)
	}
	return maxID == s.ID, nil
}

// RetargetProblem rewrites problem_id for every submission matching from to
// to, used by MERGE_PROBLEMS, returning the affected submission ids so the
// caller can schedule rejudge jobs for them.
func RetargetProblem(ctx context.Context, tx *sql.Tx, from, to int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM submissions WHERE problem_id = ?`, from)
	if err != nil {
		return nil, fmt.Errorf("submissions: retarget select: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("submissions: retarget scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `UPDATE submissions SET problem_id = ? WHERE problem_id = ?`, to, from); err != nil {
		return nil, fmt.Errorf("submissions: retarget update: %w", err)
	}
	return ids, nil
}
