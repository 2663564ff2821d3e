//go:build integration

package sandbox

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRun_DoesNotDuplicateArgv0 exercises a real traced /bin/cat. If Run
// ever re-prepends ExecPath ahead of an Argv that already starts with it,
// cat receives a spurious second argument equal to its own binary path and
// reads that file instead of stdin, so this would fail under that bug.
func TestRun_DoesNotDuplicateArgv0(t *testing.T) {
	ctx := context.Background()

	in, err := os.CreateTemp("", "sandbox-in-*")
	require.NoError(t, err)
	defer os.Remove(in.Name())
	defer in.Close()
	_, err = in.WriteString("hello sandbox\n")
	require.NoError(t, err)
	_, err = in.Seek(0, 0)
	require.NoError(t, err)

	out, err := os.CreateTemp("", "sandbox-out-*")
	require.NoError(t, err)
	defer os.Remove(out.Name())
	defer out.Close()

	stat, err := Run(ctx, Options{
		TimeLimit:    2 * time.Second,
		CPUTimeLimit: time.Second,
		MemoryLimit:  64 << 20,
		ExecPath:     "/bin/cat",
		Argv:         []string{"/bin/cat"},
		Stdin:        in,
		Stdout:       out,
	}, DefaultPolicy())
	require.NoError(t, err)
	require.Equal(t, OK, stat.Status, stat.Message)

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, "hello sandbox\n", string(got),
		"cat must read from stdin, not a duplicated argv entry naming its own binary path")
}

// TestRun_CheckerCallbackPolicyBlocksDisallowedPaths exercises DecidePath
// against a real openat() on a path outside the policy's allow-list.
func TestRun_CheckerCallbackPolicyBlocksDisallowedPaths(t *testing.T) {
	ctx := context.Background()

	out, err := os.CreateTemp("", "sandbox-checker-out-*")
	require.NoError(t, err)
	defer os.Remove(out.Name())
	defer out.Close()

	policy := CheckerCallbackPolicy([]string{"/tmp/sim-sandbox-allowed-path"})

	stat, err := Run(ctx, Options{
		TimeLimit:    2 * time.Second,
		CPUTimeLimit: time.Second,
		MemoryLimit:  64 << 20,
		ExecPath:     "/bin/sh",
		Argv:         []string{"/bin/sh", "-c", "exec cat /etc/hostname"},
		Stdout:       out,
	}, policy)
	require.NoError(t, err)
	assert.Equal(t, RTE, stat.Status)
	assert.Contains(t, stat.Message, "forbidden syscall")
}

// TestRun_CheckerCallbackPolicyAllowsListedPath is the positive
// counterpart: a path present in the allow-list must still succeed.
func TestRun_CheckerCallbackPolicyAllowsListedPath(t *testing.T) {
	ctx := context.Background()

	allowed, err := os.CreateTemp("", "sim-sandbox-allowed-*")
	require.NoError(t, err)
	defer os.Remove(allowed.Name())
	_, err = allowed.WriteString("ok\n")
	require.NoError(t, err)
	require.NoError(t, allowed.Close())

	out, err := os.CreateTemp("", "sandbox-checker-out-*")
	require.NoError(t, err)
	defer os.Remove(out.Name())
	defer out.Close()

	policy := CheckerCallbackPolicy([]string{allowed.Name()})

	stat, err := Run(ctx, Options{
		TimeLimit:    2 * time.Second,
		CPUTimeLimit: time.Second,
		MemoryLimit:  64 << 20,
		ExecPath:     "/bin/sh",
		Argv:         []string{"/bin/sh", "-c", "exec cat " + allowed.Name()},
		Stdout:       out,
	}, policy)
	require.NoError(t, err)
	require.Equal(t, OK, stat.Status, stat.Message)

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(got))
}
