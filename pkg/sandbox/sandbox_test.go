package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

// exitedStatus builds a WaitStatus representing a clean exit with code, using
// the same low-level encoding the kernel reports (low 7 bits zero, exit code
// in bits 8-15), since unix.WaitStatus exposes no public constructor.
func exitedStatus(code int) unix.WaitStatus {
	return unix.WaitStatus(code << 8)
}

func signaledStatus(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(uint32(sig))
}

func TestClassify_CleanExitIsOK(t *testing.T) {
	opts := Options{TimeLimit: time.Second, MemoryLimit: 1 << 20, OutputLimit: 1 << 10}
	stat := classify(exitedStatus(0), 100*time.Millisecond, 50*time.Millisecond, 1<<10, 10, opts, false, "")
	assert.Equal(t, OK, stat.Status)
}

func TestClassify_NonzeroExitIsRTE(t *testing.T) {
	opts := Options{TimeLimit: time.Second, MemoryLimit: 1 << 20}
	stat := classify(exitedStatus(1), 100*time.Millisecond, 50*time.Millisecond, 1<<10, 10, opts, false, "")
	assert.Equal(t, RTE, stat.Status)
}

func TestClassify_KilledAtTimeLimitIsTLE(t *testing.T) {
	opts := Options{TimeLimit: time.Second, MemoryLimit: 1 << 20}
	stat := classify(signaledStatus(unix.SIGKILL), time.Second, time.Second, 1<<10, 10, opts, true, "")
	assert.Equal(t, TLE, stat.Status)
}

func TestClassify_MemoryLimitTakesPriorityOverRTE(t *testing.T) {
	opts := Options{TimeLimit: time.Second, MemoryLimit: 100}
	stat := classify(exitedStatus(1), 100*time.Millisecond, 50*time.Millisecond, 200, 10, opts, false, "")
	assert.Equal(t, MLE, stat.Status)
}

func TestClassify_OutputLimitExceeded(t *testing.T) {
	opts := Options{TimeLimit: time.Second, MemoryLimit: 1 << 20, OutputLimit: 100}
	stat := classify(exitedStatus(0), 100*time.Millisecond, 50*time.Millisecond, 10, 101, opts, false, "")
	assert.Equal(t, OLE, stat.Status)
}

func TestClassify_ForbiddenSyscallIsRTE(t *testing.T) {
	opts := Options{TimeLimit: time.Second, MemoryLimit: 1 << 20}
	stat := classify(signaledStatus(unix.SIGKILL), 10*time.Millisecond, 5*time.Millisecond, 10, 1, opts, false, "forbidden syscall: 101")
	assert.Equal(t, RTE, stat.Status)
	assert.Contains(t, stat.Message, "forbidden syscall")
}
