package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/judge"
	"github.com/sim-judge/sim/pkg/problems"
	"github.com/sim-judge/sim/pkg/submissions"
)

func init() {
	register(jobs.JudgeSubmission, judgeOrRejudge)
	register(jobs.RejudgeSubmission, judgeOrRejudge)
}

// judgeOrRejudge is the shared core of JUDGE_SUBMISSION and
// REJUDGE_SUBMISSION, grounded on the original's
// judge_or_rejudge_submission.cc: if the submission has been judged more
// recently than this job was created, the job is superseded; otherwise the
// package is loaded, the Judge Worker runs, and the submission's
// status/score/reports/final flags are updated.
func judgeOrRejudge(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing submission id", job.Type, job.ID)
	}
	submissionID := *job.AuxID

	sub, err := submissions.Get(ctx, tx, submissionID)
	if err != nil {
		return fmt.Errorf("load submission %d: %w", submissionID, err)
	}
	if sub.LastJudgmentBeganAt != nil && sub.LastJudgmentBeganAt.After(job.CreatedAt) {
		return jobs.SupersededErrorf("skipping: submission %d already judged more recently than this job was created", submissionID)
	}
	if err := submissions.BeginJudgment(ctx, tx, submissionID); err != nil {
		return err
	}

	problem, err := problems.Get(ctx, tx, sub.ProblemID)
	if err != nil {
		return fmt.Errorf("load problem %d: %w", sub.ProblemID, err)
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

	sourcePath := filepath.Join(scratchDir, "submission"+sourceExt(sub.Language))
	if err := copySourceFile(env, sub.SourceFileID, sourcePath); err != nil {
		return err
	}

	worker := &judge.Worker{
		Package: judge.PackageDir{
			Root:         pkgRoot,
			TestsDir:     filepath.Join(pkgRoot, "tests"),
			SolutionPath: sourcePath,
			CheckerPath:  filepath.Join(pkgRoot, problem.Simfile.Checker),
		},
		ScratchDir: scratchDir,
		Language:   sub.Language,
	}

	var lastPartial judge.Report
	report, err := worker.Judge(ctx, problem.Simfile, true, env.Logger.WithJob(job.ID), func(r judge.Report) {
		lastPartial = r
		log.Logf("partial: %s", summarizeReport(r))
	})
	if err != nil {
		return fmt.Errorf("judge: %w", err)
	}
	_ = lastPartial

	fullStatus := mapReportStatus(report.WorstStatus())
	initialStatus := mapReportStatus(initialWorstStatus(report))
	score := report.TotalScore()

	if err := submissions.UpdateReport(ctx, tx, submissionID, false, initialStatus, nil, summarizeReport(initialOnly(report))); err != nil {
		return err
	}
	if err := submissions.UpdateReport(ctx, tx, submissionID, true, fullStatus, &score, summarizeReport(report)); err != nil {
		return err
	}

	sub.FullStatus, sub.Score = fullStatus, &score
	if err := submissions.UpdateFinal(ctx, tx, sub); err != nil {
		return err
	}

	log.Logf("judged submission %d: status=%s score=%d", submissionID, fullStatus, score)
	return nil
}

func sourceExt(lang submissions.Language) string {
	switch lang {
	case submissions.CPP:
		return ".cpp"
	case submissions.Pascal:
		return ".pas"
	case submissions.Python:
		return ".py"
	case submissions.Rust:
		return ".rs"
	default:
		return ""
	}
}

func copySourceFile(env *Env, fileID int64, dest string) error {
	src, err := env.InternalFiles.Open(fileID)
	if err != nil {
		return fmt.Errorf("open source file %d: %w", fileID, err)
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create scratch source: %w", err)
	}
	defer out.Close()
	if _, err := out.ReadFrom(src); err != nil {
		return fmt.Errorf("copy source file %d: %w", fileID, err)
	}
	return nil
}

// initialWorstStatus computes the worst status across only the sample
// (MaxScore == 0) groups, the subset a non-final judge run would have
// produced.
func initialWorstStatus(r judge.Report) judge.TestStatus {
	return initialOnly(r).WorstStatus()
}

func initialOnly(r judge.Report) judge.Report {
	var out judge.Report
	for _, g := range r.Groups {
		if g.MaxScore == 0 {
			out.Groups = append(out.Groups, g)
		}
	}
	return out
}

func mapReportStatus(s judge.TestStatus) submissions.Status {
	switch s {
	case judge.OK:
		return submissions.OK
	case judge.WA:
		return submissions.WA
	case judge.TLE:
		return submissions.TLE
	case judge.MLE:
		return submissions.MLE
	case judge.OLE:
		return submissions.OLE
	case judge.RTE:
		return submissions.RTE
	case judge.CompilationError:
		return submissions.CompilationError
	case judge.CheckerCompilationError:
		return submissions.CheckerCompilationError
	case judge.CheckerError:
		return submissions.JudgeError
	default:
		return submissions.JudgeError
	}
}

// summarizeReport renders a plain-text summary of a report. Rendering an
// actual statement/report page is an explicit non-goal (no markup
// rendering); this text blob is what an external frontend would format.
func summarizeReport(r judge.Report) string {
	var b strings.Builder
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "[%s] %d/%d\n", g.Name, g.Score, g.MaxScore)
		for _, t := range g.Tests {
			fmt.Fprintf(&b, "  %s: %s (%v)\n", t.Name, t.Status, t.Runtime)
		}
	}
	return b.String()
}
