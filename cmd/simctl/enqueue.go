package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/txutil"
)

type enqueueCmd struct {
	jobType    string
	priority   int
	creator    int64
	hasCreator bool
	auxID      int64
	hasAuxID   bool
	auxID2     int64
	hasAuxID2  bool
	fileID     int64
	hasFileID  bool
}

func (*enqueueCmd) Name() string     { return "enqueue" }
func (*enqueueCmd) Synopsis() string { return "insert a new pending job" }
func (*enqueueCmd) Usage() string {
	return "enqueue -type TYPE [-priority N] [-creator ID] [-aux-id ID] [-aux-id-2 ID] [-file-id ID]\n"
}

func (c *enqueueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.jobType, "type", "", "job type, e.g. JUDGE_SUBMISSION")
	f.IntVar(&c.priority, "priority", 0, "higher runs first")
	f.Int64Var(&c.creator, "creator", 0, "creating user id")
	f.BoolVar(&c.hasCreator, "has-creator", false, "set if -creator should be stored (else NULL)")
	f.Int64Var(&c.auxID, "aux-id", 0, "primary auxiliary id (meaning depends on -type)")
	f.BoolVar(&c.hasAuxID, "has-aux-id", false, "set if -aux-id should be stored (else NULL)")
	f.Int64Var(&c.auxID2, "aux-id-2", 0, "secondary auxiliary id (meaning depends on -type)")
	f.BoolVar(&c.hasAuxID2, "has-aux-id-2", false, "set if -aux-id-2 should be stored (else NULL)")
	f.Int64Var(&c.fileID, "file-id", 0, "uploaded internal file id")
	f.BoolVar(&c.hasFileID, "has-file-id", false, "set if -file-id should be stored (else NULL)")
}

func (c *enqueueCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	typ, err := parseJobType(c.jobType)
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

	j := jobs.Job{
		Type:      typ,
		Priority:  int32(c.priority),
		Creator:   nullableInt64(c.creator, c.hasCreator),
		CreatedAt: time.Now(),
		AuxID:     nullableInt64(c.auxID, c.hasAuxID),
		AuxID2:    nullableInt64(c.auxID2, c.hasAuxID2),
		FileID:    nullableInt64(c.fileID, c.hasFileID),
	}

	var id int64
	err = txutil.Repeat(ctx, store.DB(), func(tx *sql.Tx) error {
		var insErr error
		id, insErr = jobs.Insert(ctx, tx, j)
		return insErr
	})
	if err != nil {
		fmt.Println(err)
		return subcommands.ExitFailure
	}

	fmt.Printf("enqueued job %d\n", id)
	return subcommands.ExitSuccess
}
