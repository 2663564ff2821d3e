// Package handlers implements one function per jobs.JobType, registered in
// a plain map (REDESIGN FLAGS: table dispatch replaces the original's
// virtual-dispatch run()). Every handler runs inside a single REPEATABLE
// READ transaction; Dispatch's outer wrapper commits the terminal status
// and flushed log in that same transaction, and recovers a handler panic
// into a FAILED status committed in a fresh transaction.
package handlers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sim-judge/sim/pkg/config"
	"github.com/sim-judge/sim/pkg/internalfiles"
	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/simlog"
	"github.com/sim-judge/sim/pkg/txutil"
)

// Env bundles everything a handler needs besides the job row and its
// transaction: configuration, the blob store, and a logger.
type Env struct {
	Config        config.RuntimeConfig
	InternalFiles *internalfiles.Store
	Logger        *simlog.Logger
}

// Handler performs one job's work inside tx, appending human-readable
// progress to log, and returns an error that decides the terminal status:
// nil ends the job DONE. Returning a *jobs.HandlerError of kind Superseded ends the job CANCELLED;
// any other error ends it FAILED after retries (for Infrastructure errors)
// are exhausted.
type Handler func(ctx context.Context, env *Env, tx *sql.Tx, job jobs.Job, log *jobs.LogBuffer) error

// Registry maps every known job type to its handler. Populated by init() in
// each handler's own file so the table's construction is visible next to
// each entry rather than centralized in one large literal.
var Registry = map[jobs.JobType]Handler{}

func register(t jobs.JobType, h Handler) {
	Registry[t] = h
}

// Dispatch runs job's handler inside a retrying REPEATABLE READ transaction
// and commits the resulting terminal status and log together. A handler
// panic is recovered and turned into a FAILED status committed in its own
// fresh transaction, since the panicking transaction may be in an
// unreconstructable state.
func Dispatch(ctx context.Context, db *sql.DB, env *Env, job jobs.Job) (finalStatus jobs.Status, err error) {
	h, ok := Registry[job.Type]
	if !ok {
		return jobs.Failed, fmt.Errorf("handlers: no handler registered for %s", job.Type)
	}

	var log jobs.LogBuffer
	status, runErr := runRecovered(ctx, db, env, h, job, &log)
	if runErr != nil {
		log.Logf("job failed: %v", runErr)
		if commitErr := txutil.Repeat(ctx, db, func(tx *sql.Tx) error {
			return jobs.FinishWithLog(ctx, tx, job.ID, jobs.Failed, log.String())
		}); commitErr != nil {
			return jobs.Failed, fmt.Errorf("handlers: commit failure status for job %d: %w", job.ID, commitErr)
		}
		return jobs.Failed, runErr
	}
	return status, nil
}

func runRecovered(ctx context.Context, db *sql.DB, env *Env, h Handler, job jobs.Job, log *jobs.LogBuffer) (status jobs.Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	var resultStatus jobs.Status
	txErr := txutil.Repeat(ctx, db, func(tx *sql.Tx) error {
		resultStatus = jobs.Done
		handlerErr := h(ctx, env, tx, job, log)
		if handlerErr != nil {
			if he, ok := asHandlerError(handlerErr); ok && he.Kind == jobs.Superseded {
				resultStatus = jobs.Cancelled
				log.Logf("%v", he.Err)
			} else {
				return handlerErr
			}
		}
		return jobs.FinishWithLog(ctx, tx, job.ID, resultStatus, log.String())
	})
	if txErr != nil {
		return jobs.Failed, txErr
	}
	return resultStatus, nil
}

func asHandlerError(err error) (*jobs.HandlerError, bool) {
	he, ok := err.(*jobs.HandlerError)
	return he, ok
}
