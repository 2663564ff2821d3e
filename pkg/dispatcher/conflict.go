package dispatcher

import (
	"sync"

	"github.com/sim-judge/sim/pkg/jobs"
)

// entry is the slice of a Job the conflict filter needs once the job is
// IN_PROGRESS: its type and the aux ids conflict rules key off.
type entry struct {
	jobType jobs.JobType
	auxID   *int64
	auxID2  *int64
}

func entryOf(job jobs.Job) entry {
	return entry{jobType: job.Type, auxID: job.AuxID, auxID2: job.AuxID2}
}

// ConflictFilter is the mutex-guarded set of in-progress jobs' conflict
// predicates, matching spec.md §4.G's exhaustive conflict table: one entry
// per currently running job, consulted whenever the dispatcher considers
// starting a pending one.
type ConflictFilter struct {
	mu         sync.Mutex
	inProgress map[int64]entry
}

// NewConflictFilter returns an empty filter.
func NewConflictFilter() *ConflictFilter {
	return &ConflictFilter{inProgress: make(map[int64]entry)}
}

// Add records job as in-progress, so Blocks excludes anything it conflicts with.
func (f *ConflictFilter) Add(job jobs.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inProgress[job.ID] = entryOf(job)
}

// Remove drops job's conflict predicate once it reaches a terminal status.
func (f *ConflictFilter) Remove(jobID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inProgress, jobID)
}

// Blocks reports whether candidate must not start yet because some
// currently in-progress job's conflict predicate excludes it.
func (f *ConflictFilter) Blocks(candidate jobs.Job) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ip := range f.inProgress {
		if conflicts(ip, candidate) {
			return true
		}
	}
	return false
}

// Len reports how many jobs are currently tracked as in-progress. Exposed
// for tests and for the dispatcher's shutdown drain check.
func (f *ConflictFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inProgress)
}

func judgeType(t jobs.JobType) bool {
	return t == jobs.JudgeSubmission || t == jobs.RejudgeSubmission
}

func problemMutating(t jobs.JobType) bool {
	switch t {
	case jobs.ReuploadProblem, jobs.ChangeProblemStatement, jobs.ResetProblemTimeLimits, jobs.DeleteProblem:
		return true
	default:
		return false
	}
}

func auxEqual(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}

func anyOverlap(as, bs []*int64) bool {
	for _, a := range as {
		for _, b := range bs {
			if auxEqual(a, b) {
				return true
			}
		}
	}
	return false
}

// conflicts implements spec.md §4.G's table: does a candidate pending job
// conflict with an already in-progress one?
func conflicts(ip entry, cand jobs.Job) bool {
	switch ip.jobType {
	case jobs.JudgeSubmission, jobs.RejudgeSubmission:
		return judgeType(cand.Type) && auxEqual(ip.auxID, cand.AuxID)

	case jobs.AddProblem:
		return false

	case jobs.ReuploadProblem, jobs.ChangeProblemStatement, jobs.ResetProblemTimeLimits, jobs.DeleteProblem:
		if problemMutating(cand.Type) && auxEqual(ip.auxID, cand.AuxID) {
			return true
		}
		if cand.Type == jobs.MergeProblems {
			return auxEqual(ip.auxID, cand.AuxID) || auxEqual(ip.auxID, cand.AuxID2)
		}
		return false

	case jobs.MergeProblems:
		ipIDs := []*int64{ip.auxID, ip.auxID2}
		switch cand.Type {
		case jobs.ReuploadProblem, jobs.ChangeProblemStatement, jobs.ResetProblemTimeLimits, jobs.DeleteProblem:
			return anyOverlap(ipIDs, []*int64{cand.AuxID})
		case jobs.MergeProblems:
			return anyOverlap(ipIDs, []*int64{cand.AuxID, cand.AuxID2})
		default:
			return false
		}

	case jobs.ReselectFinal, jobs.DeleteContestProblem:
		if cand.Type != jobs.ReselectFinal && cand.Type != jobs.DeleteContestProblem {
			return false
		}
		return auxEqual(ip.auxID, cand.AuxID)

	case jobs.DeleteUser:
		switch cand.Type {
		case jobs.DeleteUser:
			return auxEqual(ip.auxID, cand.AuxID)
		case jobs.MergeUsers:
			return auxEqual(ip.auxID, cand.AuxID) || auxEqual(ip.auxID, cand.AuxID2)
		default:
			return false
		}

	case jobs.MergeUsers:
		ipIDs := []*int64{ip.auxID, ip.auxID2}
		switch cand.Type {
		case jobs.DeleteUser:
			return anyOverlap(ipIDs, []*int64{cand.AuxID})
		case jobs.MergeUsers:
			return anyOverlap(ipIDs, []*int64{cand.AuxID, cand.AuxID2})
		default:
			return false
		}

	case jobs.DeleteContest, jobs.DeleteContestRound, jobs.DeleteInternalFile:
		return cand.Type == ip.jobType && auxEqual(ip.auxID, cand.AuxID)

	default:
		return false
	}
}
