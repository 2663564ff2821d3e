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
)

func init() {
	register(jobs.ChangeProblemStatement, changeProblemStatement)
}

// changeProblemStatement replaces a problem's package wholesale with an
// already-rebuilt package (job.FileID) that differs from the old one only
// in its statement entry — the rebuild itself happens upstream of the job
// server, since archive I/O is an external collaborator (spec §1). This
// handler's job is to validate the new package's Simfile, swap the
// problem's file_id/simfile over to it, and schedule removal of the old
// package file. No solutions are resubmitted: only the statement changed.
func changeProblemStatement(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil {
		return fmt.Errorf("%s job %d: missing problem id", job.Type, job.ID)
	}
	if job.FileID == nil {
		return fmt.Errorf("%s job %d: missing rebuilt package file id", job.Type, job.ID)
	}
	problemID := *job.AuxID

	exists, err := problems.Exists(ctx, tx, problemID)
	if err != nil {
		return err
	}
	if !exists {
		return jobs.SupersededErrorf("problem %d no longer exists", problemID)
	}
	existing, err := problems.Get(ctx, tx, problemID)
	if err != nil {
		return err
	}

	scratchDir, err := os.MkdirTemp(env.Config.ProotPath, fmt.Sprintf("job-%d-", job.ID))
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	pkgFile, err := env.InternalFiles.Open(*job.FileID)
	if err != nil {
		return fmt.Errorf("open rebuilt package %d: %w", *job.FileID, err)
	}
	defer pkgFile.Close()
	info, err := pkgFile.Stat()
	if err != nil {
		return fmt.Errorf("stat rebuilt package %d: %w", *job.FileID, err)
	}
	if err := problems.ExtractPackage(pkgFile, info.Size(), scratchDir); err != nil {
		return fmt.Errorf("extract rebuilt package: %w", err)
	}

	simfileText, err := os.ReadFile(filepath.Join(scratchDir, "Simfile"))
	if err != nil {
		return fmt.Errorf("read Simfile: %w", err)
	}
	sf, err := problems.ParseSimfile(strings.NewReader(string(simfileText)))
	if err != nil {
		return jobs.NewHandlerError(jobs.Participant, fmt.Errorf("parse Simfile: %w", err))
	}
	now := time.Now().UTC()
	if err := problems.UpdateFileID(ctx, tx, problemID, *job.FileID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE problems SET simfile = ?, updated_at = ? WHERE id = ?`,
		string(simfileText), now, problemID); err != nil {
		return fmt.Errorf("update problem %d: %w", problemID, err)
	}

	if _, err := jobs.Insert(ctx, tx, jobs.Job{
		Type:      jobs.DeleteInternalFile,
		CreatedAt: now,
		AuxID:     &existing.FileID,
	}); err != nil {
		return fmt.Errorf("schedule delete of old package file %d: %w", existing.FileID, err)
	}

	log.Logf("changed problem %d statement to %q", problemID, sf.Statement)
	return nil
}
