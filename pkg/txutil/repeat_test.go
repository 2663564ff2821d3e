package txutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable_Deadlock(t *testing.T) {
	assert.True(t, isRetryable(&mysql.MySQLError{Number: mysqlErrDeadlock}))
	assert.True(t, isRetryable(&mysql.MySQLError{Number: mysqlErrLockWaitTimeout}))
	assert.False(t, isRetryable(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isRetryable(os.ErrNotExist))
}

func TestFileRemover_RunRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratch")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	fr := NewFileRemover(path)
	require.NoError(t, fr.Run())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileRemover_CancelSkipsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratch")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	fr := NewFileRemover(path)
	fr.Cancel()
	require.NoError(t, fr.Run())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileRemover_RunIsIdempotent(t *testing.T) {
	fr := NewFileRemover(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, fr.Run())
	require.NoError(t, fr.Run())
}
