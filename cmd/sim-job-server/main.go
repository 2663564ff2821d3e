// Command sim-job-server is the long-running process that dispatches jobs
// queued by the web frontend: it claims PENDING rows from MySQL, enforces
// the conflict table so no two jobs touching the same data race, and runs
// each through its handler in pkg/jobs/handlers (judge jobs go through the
// compile/judge/checker pipeline in pkg/judge).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sim-judge/sim/pkg/config"
	"github.com/sim-judge/sim/pkg/dispatcher"
	"github.com/sim-judge/sim/pkg/internalfiles"
	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/jobs/handlers"
	"github.com/sim-judge/sim/pkg/notify"
	"github.com/sim-judge/sim/pkg/simlog"
)

func main() {
	confPath := flag.String("conf", "sim.conf", "path to the runtime config file")
	dbConfPath := flag.String("db-conf", ".db.config", "path to the database config file")
	migrationsDir := flag.String("migrations", "migrations", "path to the migrations directory")
	flag.Parse()

	if err := run(*confPath, *dbConfPath, *migrationsDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(confPath, dbConfPath, migrationsDir string) error {
	logCfg := simlog.DefaultConfig()
	logCfg.Component = "sim-job-server"
	logger := simlog.New(logCfg)

	cfg, err := config.LoadRuntimeConfig(confPath)
	if err != nil {
		return fmt.Errorf("load runtime config: %w", err)
	}
	dbCfg, err := config.LoadDBConfig(dbConfPath)
	if err != nil {
		return fmt.Errorf("load db config: %w", err)
	}

	if err := os.MkdirAll(cfg.VarDir, 0o755); err != nil {
		return fmt.Errorf("create var dir: %w", err)
	}

	lock, err := dispatcher.AcquireSingleInstanceLock(cfg.VarDir)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ctx := context.Background()

	store, err := jobs.NewStore(ctx, dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	if err := jobs.MigrateToLatest(store.DB(), migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	internalFiles, err := internalfiles.New(cfg.InternalFilesDir)
	if err != nil {
		return fmt.Errorf("open internal file store: %w", err)
	}

	env := &handlers.Env{
		Config:        cfg,
		InternalFiles: internalFiles,
		Logger:        logger.WithComponent("handler"),
	}

	watcher, err := notify.NewWatcher(
		filepath.Join(cfg.VarDir, "job_server.notify"),
		time.Duration(cfg.NotifyDebounceMillis)*time.Millisecond,
	)
	if err != nil {
		return fmt.Errorf("start notify watcher: %w", err)
	}
	defer watcher.Close()

	d := dispatcher.New(store.DB(), env, cfg, logger.WithComponent("dispatcher"))
	logger.Infof("sim-job-server starting with %d workers", cfg.JobServerWorkers)
	return d.Run(ctx, watcher)
}
