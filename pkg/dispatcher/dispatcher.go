// Package dispatcher runs the single dispatch loop that claims PENDING jobs
// and hands them to a fixed worker pool, enforcing spec.md §4.G's conflict
// table so no two conflicting jobs ever run IN_PROGRESS at once. Grounded on
// the teacher's pkg/common/workers/pool.go worker-pool shape, adapted from a
// shared task queue to a per-worker idle slot so the dispatcher always knows
// exactly which job a worker is running (needed to remove its conflict
// predicate the instant it finishes).
package dispatcher

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sim-judge/sim/pkg/config"
	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/jobs/handlers"
	"github.com/sim-judge/sim/pkg/notify"
	"github.com/sim-judge/sim/pkg/simlog"
	"github.com/sim-judge/sim/pkg/txutil"
)

type worker struct {
	id    int
	tasks chan jobs.Job
}

// Dispatcher owns the single dispatch goroutine's state: the in-memory
// pending queue, the conflict filter, and the fixed worker pool.
type Dispatcher struct {
	db     *sql.DB
	env    *handlers.Env
	cfg    config.RuntimeConfig
	logger *simlog.Logger

	queue  *PendingQueue
	filter *ConflictFilter

	idle    chan *worker
	workers []*worker
	wake    chan struct{}
	wg      sync.WaitGroup
}

// New builds a Dispatcher with cfg.JobServerWorkers idle workers, none yet
// running (Run starts them).
func New(db *sql.DB, env *handlers.Env, cfg config.RuntimeConfig, logger *simlog.Logger) *Dispatcher {
	d := &Dispatcher{
		db:     db,
		env:    env,
		cfg:    cfg,
		logger: logger,
		queue:  NewPendingQueue(),
		filter: NewConflictFilter(),
		idle:   make(chan *worker, cfg.JobServerWorkers),
		wake:   make(chan struct{}, 1),
	}
	for i := 0; i < cfg.JobServerWorkers; i++ {
		w := &worker{id: i, tasks: make(chan jobs.Job)}
		d.workers = append(d.workers, w)
		d.idle <- w
	}
	return d
}

// Wake nudges the dispatch loop to rescan, coalescing with any already
// pending wakeup (the channel is single-slot).
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run resets crashed jobs, starts the worker pool, and blocks dispatching
// until ctx is cancelled or a SIGINT/SIGTERM arrives, at which point it
// stops claiming new jobs and waits for in-flight ones to finish before
// returning.
func (d *Dispatcher) Run(ctx context.Context, watcher *notify.Watcher) error {
	n, err := jobs.ResetCrashedJobs(ctx, d.db)
	if err != nil {
		return fmt.Errorf("dispatcher: reset crashed jobs: %w", err)
	}
	if n > 0 {
		d.logger.WithField("count", n).Infof("reset crashed in-progress jobs to pending")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.startWorkers(runCtx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	d.refill(runCtx)
	d.dispatchPending(runCtx)

	for {
		select {
		case <-runCtx.Done():
			d.wg.Wait()
			return nil
		case sig := <-sigCh:
			d.logger.WithField("signal", sig.String()).Infof("shutting down")
			cancel()
		case <-watcher.Signals():
			d.refill(runCtx)
			d.dispatchPending(runCtx)
		case <-d.wake:
			d.refill(runCtx)
			d.dispatchPending(runCtx)
		}
	}
}

// startWorkers spawns one long-lived goroutine per worker slot; each blocks
// on its own task channel, runs the handler for whatever job arrives, then
// frees its conflict predicate and returns itself to the idle queue.
func (d *Dispatcher) startWorkers(ctx context.Context) {
	for _, w := range d.workers {
		d.wg.Add(1)
		go func(w *worker) {
			defer d.wg.Done()
			for {
				select {
				case job := <-w.tasks:
					status, err := handlers.Dispatch(context.WithoutCancel(ctx), d.db, d.env, job)
					if err != nil {
						d.logger.WithField("job_id", job.ID).Errorf("dispatch failed: %v", err)
					} else {
						d.logger.WithField("job_id", job.ID).Infof("finished as %s", status)
					}
					d.filter.Remove(job.ID)
					d.idle <- w
					d.Wake()
				case <-ctx.Done():
					return
				}
			}
		}(w)
	}
}

// refill tops up the in-memory queue with the highest-priority PENDING rows
// from MySQL. Jobs already queued are upserted again by id, so re-fetching
// them is harmless; claimed jobs are IN_PROGRESS and are not fetched.
func (d *Dispatcher) refill(ctx context.Context) {
	batch, err := jobs.FetchPendingBatch(ctx, d.db, d.cfg.DispatchBatchSize)
	if err != nil {
		d.logger.Errorf("fetch pending batch: %v", err)
		return
	}
	for _, j := range batch {
		d.queue.Upsert(j)
	}
}

// dispatchPending hands every eligible pending job to an idle worker until
// either no worker is free or no queued job is currently unblocked.
func (d *Dispatcher) dispatchPending(ctx context.Context) {
	for {
		var w *worker
		select {
		case w = <-d.idle:
		default:
			return
		}

		job, ok := d.queue.PopEligible(d.filter)
		if !ok {
			d.idle <- w
			return
		}

		if err := d.claim(ctx, job); err != nil {
			d.logger.WithField("job_id", job.ID).Errorf("claim failed, leaving pending: %v", err)
			d.idle <- w
			continue
		}

		d.filter.Add(job)
		w.tasks <- job
	}
}

func (d *Dispatcher) claim(ctx context.Context, job jobs.Job) error {
	return txutil.Repeat(ctx, d.db, func(tx *sql.Tx) error {
		return jobs.ClaimInProgress(ctx, tx, job.ID)
	})
}
