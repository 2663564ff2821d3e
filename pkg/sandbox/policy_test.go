package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestDefaultPolicy_AllowsRead(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, Allow, p.Decide(unix.SYS_READ))
}

func TestDefaultPolicy_ForbidsUnknownSyscall(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, Forbid, p.Decide(unix.SYS_PTRACE))
}

func TestDefaultPolicy_LimitedOpenExhausts(t *testing.T) {
	p := DefaultPolicy()
	allowedCount := 0
	for i := 0; i < 100; i++ {
		if p.Decide(unix.SYS_OPENAT) == Allow {
			allowedCount++
		}
	}
	assert.Equal(t, 8, allowedCount)
}

func TestCheckerCallbackPolicy_RestrictsToAllowedPaths(t *testing.T) {
	p := CheckerCallbackPolicy([]string{"/tmp/in", "/tmp/out"})
	assert.Equal(t, Allow, p.DecidePath(unix.SYS_OPENAT, "/tmp/in"))
	assert.Equal(t, Forbid, p.DecidePath(unix.SYS_OPENAT, "/etc/passwd"))
}
