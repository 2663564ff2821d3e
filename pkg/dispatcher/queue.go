package dispatcher

import (
	"sync"

	"github.com/google/btree"

	"github.com/sim-judge/sim/pkg/jobs"
)

// pendingItem orders jobs (priority DESC, id ASC), the same order
// FetchPendingBatch's SQL query uses, so the in-memory tree's pop order is
// indistinguishable from re-querying MySQL on every decision.
type pendingItem struct {
	job jobs.Job
}

func (a pendingItem) Less(than btree.Item) bool {
	b := than.(pendingItem)
	if a.job.Priority != b.job.Priority {
		return a.job.Priority > b.job.Priority
	}
	return a.job.ID < b.job.ID
}

// PendingQueue mirrors the PENDING rows of the jobs table in memory as a
// btree ordered by (priority DESC, id ASC), the optimization spec.md §4.G
// allows over issuing one conflict-filtered SQL query per dispatch decision.
type PendingQueue struct {
	mu   sync.Mutex
	tree *btree.BTree
}

// NewPendingQueue returns an empty queue. 32 is the btree's branching
// degree, not a capacity limit.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{tree: btree.New(32)}
}

// Upsert adds job to the queue, or replaces its entry if job.ID is already
// present (a no-op in practice since a job's priority never changes after
// insertion).
func (q *PendingQueue) Upsert(job jobs.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tree.ReplaceOrInsert(pendingItem{job})
}

// Len reports how many jobs are currently queued.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tree.Len()
}

// PopEligible removes and returns the highest-priority, lowest-id job that
// filter does not currently block, leaving every blocked job in the tree
// for the next pop attempt (made after the conflicting job completes).
func (q *PendingQueue) PopEligible(filter *ConflictFilter) (jobs.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var found *pendingItem
	q.tree.Ascend(func(i btree.Item) bool {
		item := i.(pendingItem)
		if !filter.Blocks(item.job) {
			found = &item
			return false
		}
		return true
	})
	if found == nil {
		return jobs.Job{}, false
	}
	q.tree.Delete(*found)
	return found.job, true
}
