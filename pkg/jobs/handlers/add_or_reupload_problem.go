package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/problems"
	"github.com/sim-judge/sim/pkg/submissions"
)

const (
	maxProblemNameLen  = 255
	maxProblemLabelLen = 64
)

func init() {
	register(jobs.AddProblem, addProblem)
	register(jobs.ReuploadProblem, reuploadProblem)
}

func addProblem(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	return runAddOrReupload(ctx, env, tx, job, log, true)
}

func reuploadProblem(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	return runAddOrReupload(ctx, env, tx, job, log, false)
}

// runAddOrReupload is the shared core of ADD_PROBLEM and REUPLOAD_PROBLEM:
// extract the uploaded package named by job.FileID, parse its Simfile,
// upsert the problems row, and submit+schedule judging for every declared
// solution. The uploaded package's bytes are kept as the stored package
// file verbatim rather than rewritten with a normalized Simfile: package
// archive I/O is an external collaborator, so this handler only reads the
// extracted tree and never rewrites the archive.
func runAddOrReupload(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer, isNew bool) error {
	if !isNew && job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing target problem id", job.Type, job.ID)
	}
	if job.FileID == nil {
		return fmt.Errorf("%s job %d: missing uploaded package file id", job.Type, job.ID)
	}

	scratchDir, err := os.MkdirTemp(env.Config.ProotPath, fmt.Sprintf("job-%d-", job.ID))
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	pkgFile, err := env.InternalFiles.Open(*job.FileID)
	if err != nil {
		return fmt.Errorf("open uploaded package %d: %w", *job.FileID, err)
	}
	defer pkgFile.Close()
	info, err := pkgFile.Stat()
	if err != nil {
		return fmt.Errorf("stat uploaded package %d: %w", *job.FileID, err)
	}

	log.Logf("extracting uploaded package %d", *job.FileID)
	if err := problems.ExtractPackage(pkgFile, info.Size(), scratchDir); err != nil {
		return fmt.Errorf("extract package: %w", err)
	}

	simfileText, err := os.ReadFile(filepath.Join(scratchDir, "Simfile"))
	if err != nil {
		return fmt.Errorf("read Simfile: %w", err)
	}
	sf, err := problems.ParseSimfile(strings.NewReader(string(simfileText)))
	if err != nil {
		return jobs.NewHandlerError(jobs.Participant, fmt.Errorf("parse Simfile: %w", err))
	}
	if len(sf.Name) > maxProblemNameLen {
		return jobs.NewHandlerError(jobs.Participant, fmt.Errorf("problem name too long (max %d)", maxProblemNameLen))
	}
	if len(sf.Label) > maxProblemLabelLen {
		return jobs.NewHandlerError(jobs.Participant, fmt.Errorf("problem label too long (max %d)", maxProblemLabelLen))
	}

	now := time.Now().UTC()
	var problemID int64
	if isNew {
		log.Logf("creating problem %q", sf.Name)
		res, err := tx.ExecContext(ctx, `
			INSERT INTO problems (file_id, simfile, name, label, visibility, owner_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			*job.FileID, string(simfileText), sf.Name, sf.Label, int(problems.Private), job.Creator, now, now)
		if err != nil {
			return fmt.Errorf("insert problem: %w", err)
		}
		problemID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert problem: last insert id: %w", err)
		}
	} else {
		problemID = *job.AuxID
		log.Logf("reuploading problem %d", problemID)
		existing, err := problems.Get(ctx, tx, problemID)
		if err != nil {
			return fmt.Errorf("load existing problem %d: %w", problemID, err)
		}
		if err := problems.UpdateFileID(ctx, tx, problemID, *job.FileID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE problems SET simfile = ?, name = ?, label = ?, updated_at = ? WHERE id = ?`,
			string(simfileText), sf.Name, sf.Label, now, problemID); err != nil {
			return fmt.Errorf("update problem %d: %w", problemID, err)
		}
		if existing.FileID != *job.FileID {
			if _, err := jobs.Insert(ctx, tx, jobs.Job{
				Type:      jobs.DeleteInternalFile,
				Priority:  0,
				CreatedAt: now,
				AuxID:     &existing.FileID,
			}); err != nil {
				return fmt.Errorf("schedule delete of superseded package file %d: %w", existing.FileID, err)
			}
		}
	}

	for _, solutionName := range sf.Solutions {
		if err := submitSolution(ctx, env, tx, job, log, scratchDir, problemID, solutionName, now); err != nil {
			return fmt.Errorf("submit solution %s: %w", solutionName, err)
		}
	}

	log.Logf("problem %d ready, %d solution(s) scheduled for judging", problemID, len(sf.Solutions))
	return nil
}

func submitSolution(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer, scratchDir string, problemID int64, solutionName string, now time.Time) error {
	lang, err := languageFromFilename(solutionName)
	if err != nil {
		return jobs.NewHandlerError(jobs.Participant, err)
	}

	src, err := os.Open(filepath.Join(scratchDir, solutionName))
	if err != nil {
		return fmt.Errorf("open solution source %s: %w", solutionName, err)
	}
	defer src.Close()

	fileID, err := nextInternalFileID(ctx, tx)
	if err != nil {
		return err
	}
	if err := env.InternalFiles.Write(fileID, src); err != nil {
		return fmt.Errorf("write solution source: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO submissions (problem_id, user_id, contest_problem_id, contest_round_id, contest_id,
		                         source_file_id, language, initial_status, full_status, score,
		                         problem_final, contest_problem_final, contest_problem_initial_final,
		                         initial_report, final_report, created_at)
		VALUES (?, NULL, NULL, NULL, NULL, ?, ?, ?, ?, NULL, FALSE, FALSE, FALSE, '', '', ?)`,
		problemID, fileID, int(lang), int(submissions.Pending), int(submissions.Pending), now)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	submissionID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert submission: last insert id: %w", err)
	}

	log.Logf("submitting %s as submission %d", solutionName, submissionID)
	if _, err := jobs.Insert(ctx, tx, jobs.Job{
		Type:      jobs.JudgeSubmission,
		Priority:  job.Priority + 1,
		CreatedAt: now,
		AuxID:     &submissionID,
	}); err != nil {
		return fmt.Errorf("schedule judge of submission %d: %w", submissionID, err)
	}
	return nil
}

// nextInternalFileID allocates a fresh internal_files row id inside tx, the
// blob store equivalent of the original's new_internal_file_id.
func nextInternalFileID(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO internal_files (created_at) VALUES (NOW(6))`)
	if err != nil {
		return 0, fmt.Errorf("allocate internal file id: %w", err)
	}
	return res.LastInsertId()
}

func languageFromFilename(name string) (submissions.Language, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".cpp", ".cc", ".cxx":
		return submissions.CPP, nil
	case ".pas":
		return submissions.Pascal, nil
	case ".py":
		return submissions.Python, nil
	case ".rs":
		return submissions.Rust, nil
	default:
		return 0, fmt.Errorf("unrecognized solution extension: %s", name)
	}
}
