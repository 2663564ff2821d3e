package internalfiles

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteOpenRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(42, bytes.NewReader([]byte("hello world"))))
	assert.True(t, s.Has(42))

	f, err := s.Open(42)
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(7, bytes.NewReader([]byte("x"))))
	require.NoError(t, s.Delete(7))
	assert.False(t, s.Has(7))
	// second delete of an already-gone blob must not error.
	require.NoError(t, s.Delete(7))
}

func TestStore_HasFalseForUnknownID(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	assert.False(t, s.Has(999))
}

func TestStore_WriteOverwritesExisting(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(1, bytes.NewReader([]byte("first"))))
	require.NoError(t, s.Write(1, bytes.NewReader([]byte("second"))))

	f, err := s.Open(1)
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}
