package jobs

import (
	"fmt"
	"strings"
	"sync"
)

// LogBuffer is the in-memory growing buffer a handler writes through. It is
// flushed into the job's log column once, at the terminal status transition,
// in the same transaction as the status write; nothing is written to the
// column at partial-report checkpoints.
type LogBuffer struct {
	mu   sync.Mutex
	b    strings.Builder
}

// Logf appends a formatted, newline-terminated line.
func (l *LogBuffer) Logf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf(format, args...)
	l.b.WriteString(line)
	if !strings.HasSuffix(line, "\n") {
		l.b.WriteByte('\n')
	}
}

// String returns everything logged so far.
func (l *LogBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}
