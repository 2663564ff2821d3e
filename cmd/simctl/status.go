package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"

	"github.com/sim-judge/sim/pkg/jobs"
)

type statusCmd struct{}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "print a job's current state and log" }
func (*statusCmd) Usage() string    { return "status <job id>\n" }
func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (c *statusCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
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

	j, err := jobs.Get(ctx, store.DB(), id)
	if err != nil {
		fmt.Println(err)
		return subcommands.ExitFailure
	}

	fmt.Printf("id:        %d\n", j.ID)
	fmt.Printf("type:      %s\n", j.Type)
	fmt.Printf("status:    %s\n", j.Status)
	fmt.Printf("priority:  %d\n", j.Priority)
	fmt.Printf("created:   %s\n", j.CreatedAt)
	if j.AuxID != nil {
		fmt.Printf("aux_id:    %d\n", *j.AuxID)
	}
	if j.AuxID2 != nil {
		fmt.Printf("aux_id_2:  %d\n", *j.AuxID2)
	}
	if j.Log != "" {
		fmt.Printf("log:\n%s\n", j.Log)
	}
	return subcommands.ExitSuccess
}
