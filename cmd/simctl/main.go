// Command simctl is the operator CLI for inspecting and driving the jobs
// queue by hand: enqueueing a job, checking one's status, or cancelling a
// pending one. Grounded on the subcommands.Command style used throughout
// runsc/cmd in the example pack.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/sim-judge/sim/pkg/config"
	"github.com/sim-judge/sim/pkg/jobs"
)

var dbConfPath string

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&enqueueCmd{}, "")
	subcommands.Register(&statusCmd{}, "")
	subcommands.Register(&cancelCmd{}, "")

	flag.StringVar(&dbConfPath, "db-conf", ".db.config", "path to the database config file")
	flag.Parse()

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

func openStore(ctx context.Context) (*jobs.Store, error) {
	dbCfg, err := config.LoadDBConfig(dbConfPath)
	if err != nil {
		return nil, fmt.Errorf("load db config: %w", err)
	}
	return jobs.NewStore(ctx, dbCfg.DSN())
}

func parseJobType(s string) (jobs.JobType, error) {
	for t := jobs.AddProblem; t <= jobs.ReselectFinal; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown job type %q", s)
}

func nullableInt64(v int64, set bool) *int64 {
	if !set {
		return nil
	}
	return &v
}
