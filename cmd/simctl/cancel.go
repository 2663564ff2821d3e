package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"

	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/txutil"
)

type cancelCmd struct {
	reason string
}

func (*cancelCmd) Name() string     { return "cancel" }
func (*cancelCmd) Synopsis() string { return "cancel a pending job" }
func (*cancelCmd) Usage() string    { return "cancel [-reason TEXT] <job id>\n" }

func (c *cancelCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.reason, "reason", "cancelled via simctl", "reason recorded in the job's log")
}

func (c *cancelCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil {
		fmt.Println(err)
		return subcommands.ExitUsageError
	}

	store, err := openStore(ctx)
	if err != nil {
		fmt.Println(err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	err = txutil.Repeat(ctx, store.DB(), func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ? FOR UPDATE`, id)
		var status int
		if err := row.Scan(&status); err != nil {
			return fmt.Errorf("job %d: %w", id, err)
		}
		if jobs.Status(status) != jobs.Pending {
			return fmt.Errorf("job %d is %s, only PENDING jobs can be cancelled", id, jobs.Status(status))
		}
		return jobs.Cancel(ctx, tx, id, c.reason)
	})
	if err != nil {
		fmt.Println(err)
		return subcommands.ExitFailure
	}

	fmt.Printf("cancelled job %d\n", id)
	return subcommands.ExitSuccess
}
