package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/judge"
	"github.com/sim-judge/sim/pkg/problems"
)

// MinTimeLimit is the floor every reset time limit is clamped to, so a
// near-instant model solution doesn't leave a test with an unreasonably
// tight limit.
const MinTimeLimit = 300 * time.Millisecond

// SolutionRuntimeCoefficient scales the model solution's measured runtime
// up to the new per-test time limit, giving contestant solutions headroom
// over the reference implementation.
const SolutionRuntimeCoefficient = 3.0

func init() {
	register(jobs.ResetProblemTimeLimits, resetProblemTimeLimits)
}

// resetProblemTimeLimits re-derives every test's time_limit from the model
// solution's measured runtime, rewrites the problem's stored Simfile text,
// and schedules deletion of nothing (the package file itself is untouched:
// only the DB-side Simfile text changes, since rewriting the archive entry
// is external per spec §1).
func resetProblemTimeLimits(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing problem id", job.Type, job.ID)
	}
	problemID := *job.AuxID

	problem, err := problems.Get(ctx, tx, problemID)
	if err != nil {
		return jobs.NewHandlerError(jobs.Participant, fmt.Errorf("problem %d does not exist: %w", problemID, err))
	}

	scratchDir, err := os.MkdirTemp(env.Config.ProotPath, fmt.Sprintf("job-%d-", job.ID))
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	pkgRoot := filepath.Join(scratchDir, "package")
	pkgFile, err := env.InternalFiles.Open(problem.FileID)
	if err != nil {
		return fmt.Errorf("open problem package %d: %w", problem.FileID, err)
	}
	defer pkgFile.Close()
	info, err := pkgFile.Stat()
	if err != nil {
		return fmt.Errorf("stat problem package %d: %w", problem.FileID, err)
	}
	if err := problems.ExtractPackage(pkgFile, info.Size(), pkgRoot); err != nil {
		return fmt.Errorf("extract problem package: %w", err)
	}

	modelSolutionPath := filepath.Join(pkgRoot, problem.Simfile.ModelSolution())
	lang, err := languageFromFilename(problem.Simfile.ModelSolution())
	if err != nil {
		return jobs.NewHandlerError(jobs.Participant, err)
	}
	worker := &judge.Worker{
		Package: judge.PackageDir{
			Root:         pkgRoot,
			TestsDir:     filepath.Join(pkgRoot, "tests"),
			SolutionPath: modelSolutionPath,
			CheckerPath:  filepath.Join(pkgRoot, problem.Simfile.Checker),
		},
		ScratchDir: scratchDir,
		Language:   lang,
	}

	log.Logf("judging model solution %s to re-derive time limits", problem.Simfile.ModelSolution())
	report, err := worker.Judge(ctx, problem.Simfile, true, env.Logger.WithJob(job.ID), nil)
	if err != nil {
		return fmt.Errorf("judge model solution: %w", err)
	}

	runtimes := map[string]time.Duration{}
	for _, g := range report.Groups {
		for _, t := range g.Tests {
			runtimes[t.Name] = t.Runtime
		}
	}

	sf := problem.Simfile
	for gi := range sf.Groups {
		for ti := range sf.Groups[gi].Tests {
			name := sf.Groups[gi].Tests[ti].Name
			runtime, ok := runtimes[name]
			if !ok {
				return jobs.NewHandlerError(jobs.JobFault, fmt.Errorf("no judge report for test %q", name))
			}
			sf.Groups[gi].Tests[ti].TimeLimit = scaledTimeLimit(runtime)
		}
	}

	now := time.Now().UTC()
	newSimfileText := problems.Dump(sf)
	if _, err := tx.ExecContext(ctx, `UPDATE problems SET simfile = ?, updated_at = ? WHERE id = ?`,
		newSimfileText, now, problemID); err != nil {
		return fmt.Errorf("update problem %d simfile: %w", problemID, err)
	}

	log.Logf("reset time limits for problem %d across %d test(s)", problemID, len(runtimes))
	return nil
}

// scaledTimeLimit derives a test's new time limit from the model solution's
// measured runtime on it, clamped to MinTimeLimit so a near-instant run
// doesn't leave contestants an unreasonably tight window.
func scaledTimeLimit(modelRuntime time.Duration) time.Duration {
	limit := time.Duration(float64(modelRuntime) * SolutionRuntimeCoefficient)
	if limit < MinTimeLimit {
		return MinTimeLimit
	}
	return limit
}
