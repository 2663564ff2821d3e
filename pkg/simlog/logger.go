// Package simlog provides the structured, component-scoped logger shared by
// every other package in this module. It wraps logrus instead of hand-rolling
// level filtering and field formatting.
package simlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a component-scoped view of a shared logrus.Logger. Every
// long-lived object (dispatcher, worker, handler) is constructed with one of
// these instead of reaching for a package-level global.
type Logger struct {
	entry *logrus.Entry
}

// Config mirrors the construction knobs of the example pack's hand-rolled
// logger (level, format, output, component) but is applied to a logrus.Logger.
type Config struct {
	Level     logrus.Level
	JSON      bool
	Output    io.Writer
	Component string
}

// DefaultConfig returns an info-level, text-formatted logger writing to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  logrus.InfoLevel,
		Output: os.Stderr,
	}
}

// New builds a root Logger from cfg.
func New(cfg Config) *Logger {
	base := logrus.New()
	base.SetLevel(cfg.Level)
	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	}
	if cfg.JSON {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	entry := logrus.NewEntry(base)
	if cfg.Component != "" {
		entry = entry.WithField("component", cfg.Component)
	}
	return &Logger{entry: entry}
}

// WithComponent returns a derived Logger tagging every line with component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{entry: l.entry.WithField("component", component)}
}

// WithField returns a derived Logger carrying an additional structured field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithJob tags log lines with the job they belong to; every handler derives
// its logger this way so the job's append-only log buffer and the process
// log correlate by id.
func (l *Logger) WithJob(jobID int64) *Logger {
	return l.WithField("job_id", jobID)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
