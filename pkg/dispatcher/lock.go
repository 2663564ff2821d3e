package dispatcher

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// AcquireSingleInstanceLock takes an exclusive, non-blocking lock on
// <varDir>/job_server.lock so a second dispatcher process started by
// accident (or a stuck init script) fails fast instead of racing the first
// one's conflict filter, which exists only in that process's memory.
//
// The returned *flock.Flock must be kept alive (and eventually Unlock'd) for
// as long as the lock should be held; letting it fall out of scope without
// unlocking releases it anyway when the process exits.
func AcquireSingleInstanceLock(varDir string) (*flock.Flock, error) {
	path := filepath.Join(varDir, "job_server.lock")
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("dispatcher: lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("dispatcher: %s is already held by another job server process", path)
	}
	return fl, nil
}
