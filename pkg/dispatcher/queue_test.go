package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sim-judge/sim/pkg/jobs"
)

func TestPendingQueue_PopOrdersByPriorityThenID(t *testing.T) {
	q := NewPendingQueue()
	q.Upsert(jobs.Job{ID: 3, Priority: 1})
	q.Upsert(jobs.Job{ID: 1, Priority: 5})
	q.Upsert(jobs.Job{ID: 2, Priority: 5})
	q.Upsert(jobs.Job{ID: 4, Priority: 1})

	filter := NewConflictFilter()

	got := []int64{}
	for {
		job, ok := q.PopEligible(filter)
		if !ok {
			break
		}
		got = append(got, job.ID)
	}

	assert.Equal(t, []int64{1, 2, 3, 4}, got)
}

func TestPendingQueue_SkipsBlockedJobsWithoutRemovingThem(t *testing.T) {
	q := NewPendingQueue()
	q.Upsert(jobs.Job{ID: 1, Priority: 10, Type: jobs.JudgeSubmission, AuxID: ptr(1)})
	q.Upsert(jobs.Job{ID: 2, Priority: 5, Type: jobs.JudgeSubmission, AuxID: ptr(2)})

	filter := NewConflictFilter()
	filter.Add(jobs.Job{ID: 99, Type: jobs.JudgeSubmission, AuxID: ptr(1)})

	job, ok := q.PopEligible(filter)
	require.True(t, ok)
	assert.Equal(t, int64(2), job.ID)
	assert.Equal(t, 1, q.Len(), "the blocked job must remain queued for a later attempt")

	filter.Remove(99)
	job, ok = q.PopEligible(filter)
	require.True(t, ok)
	assert.Equal(t, int64(1), job.ID)
	assert.Equal(t, 0, q.Len())
}

func TestPendingQueue_PopEligibleOnEmptyQueueReturnsFalse(t *testing.T) {
	q := NewPendingQueue()
	_, ok := q.PopEligible(NewConflictFilter())
	assert.False(t, ok)
}

func TestPendingQueue_AllBlockedLeavesQueueIntact(t *testing.T) {
	q := NewPendingQueue()
	q.Upsert(jobs.Job{ID: 1, Type: jobs.DeleteContest, AuxID: ptr(1)})

	filter := NewConflictFilter()
	filter.Add(jobs.Job{ID: 2, Type: jobs.DeleteContest, AuxID: ptr(1)})

	_, ok := q.PopEligible(filter)
	assert.False(t, ok)
	assert.Equal(t, 1, q.Len())
}
