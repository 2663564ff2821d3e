// Package config loads the runtime configuration that replaces every
// global mutable static of the original implementation (tmp_dir,
// PROOT_PATH, memory limits, worker counts). Every long-lived component is
// constructed with an explicit *RuntimeConfig rather than reaching for a
// package-level global.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// RuntimeConfig holds every tunable a running job server needs.
type RuntimeConfig struct {
	// JobServerWorkers is the fixed worker pool size.
	JobServerWorkers int `toml:"job_server_workers"`
	// ProotPath is the scratch root compilation and judging run under.
	ProotPath string `toml:"proot_path"`
	// VarDir holds the notify file and the single-instance lock file.
	VarDir string `toml:"var_dir"`
	// InternalFilesDir is the root of the content-addressed blob store.
	InternalFilesDir string `toml:"internal_files_dir"`
	// DispatchBatchSize is how many pending jobs the dispatcher pulls per refill.
	DispatchBatchSize int `toml:"dispatch_batch_size"`
	// NotifyDebounceMillis, in milliseconds, collapses a burst of producer commits.
	NotifyDebounceMillis int `toml:"notify_debounce_millis"`
}

// DBConfig holds MySQL connection pieces, loaded from a separate, more
// sensitive file than sim.conf so the two can carry different filesystem
// permissions.
type DBConfig struct {
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
}

// DSN renders the MySQL data source name go-sql-driver/mysql expects.
func (c DBConfig) DSN() string {
	port := c.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.User, c.Password, c.Host, port, c.Database)
}

// Default returns the configuration a fresh install runs with before an
// operator edits sim.conf.
func Default() RuntimeConfig {
	return RuntimeConfig{
		JobServerWorkers:     4,
		ProotPath:            "/tmp/sim-proot",
		VarDir:               "var",
		InternalFilesDir:     "internal_files",
		DispatchBatchSize:    64,
		NotifyDebounceMillis: 50,
	}
}

// LoadRuntimeConfig reads sim.conf (TOML: `job_server_workers = 4`, etc),
// filling in any field the file omits from Default().
func LoadRuntimeConfig(path string) (RuntimeConfig, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDBConfig reads .db.config. Its fields mirror the original
// implementation's plain-text USER/PASSWORD/DATABASE/HOST file,
// re-expressed as TOML key = value pairs; user, database and host are
// required, password and port are optional.
func LoadDBConfig(path string) (DBConfig, error) {
	var cfg DBConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return DBConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.User == "" || cfg.Database == "" || cfg.Host == "" {
		return DBConfig{}, fmt.Errorf("config: %s: missing required field(s)", path)
	}
	return cfg, nil
}
