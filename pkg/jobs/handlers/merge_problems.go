package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/problems"
	"github.com/sim-judge/sim/pkg/submissions"
)

func init() {
	register(jobs.MergeProblems, mergeProblems)
}

// mergeProblems retargets every submission on the donor problem to the
// target problem, schedules a rejudge for each (there is no separate
// rejudge_transferred flag in this schema, unlike the original's
// merge_problems_jobs side table — rejudging transferred submissions is
// always the safe default, since a submission judged against the donor's
// Simfile may score differently against the target's), deletes the donor's
// package internal file, and finally deletes the (now submission-less)
// donor row.
func mergeProblems(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error {
	if job.AuxID == nil || job.AuxID2 == nil {
		return fmt.Errorf("%s job %d: missing donor/target problem id", job.Type, job.ID)
	}
	donorID, targetID := *job.AuxID, *job.AuxID2

	if exists, err := problems.Exists(ctx, tx, donorID); err != nil {
		return err
	} else if !exists {
		return jobs.NewHandlerError(jobs.Participant, fmt.Errorf("problem to merge (donor) %d does not exist", donorID))
	}
	if exists, err := problems.Exists(ctx, tx, targetID); err != nil {
		return err
	} else if !exists {
		return jobs.NewHandlerError(jobs.Participant, fmt.Errorf("target problem %d does not exist", targetID))
	}
	donor, err := problems.Get(ctx, tx, donorID)
	if err != nil {
		return err
	}
	log.Logf("merged problem (donor) %d Simfile:\n%s", donorID, donor.Simfile.Name)

	transferredIDs, err := submissions.RetargetProblem(ctx, tx, donorID, targetID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, submissionID := range transferredIDs {
		submissionID := submissionID
		if _, err := jobs.Insert(ctx, tx, jobs.Job{
			Type:      jobs.RejudgeSubmission,
			CreatedAt: now,
			AuxID:     &submissionID,
		}); err != nil {
			return fmt.Errorf("schedule rejudge of transferred submission %d: %w", submissionID, err)
		}
	}

	if _, err := jobs.Insert(ctx, tx, jobs.Job{
		Type:      jobs.DeleteInternalFile,
		CreatedAt: now,
		AuxID:     &donor.FileID,
	}); err != nil {
		return fmt.Errorf("schedule delete of donor package file %d: %w", donor.FileID, err)
	}

	if err := problems.Delete(ctx, tx, donorID); err != nil {
		return err
	}

	log.Logf("merged problem %d into %d, rejudging %d transferred submission(s)", donorID, targetID, len(transferredIDs))
	return nil
}
