package checker

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRatio_DefaultsWhenAbsent(t *testing.T) {
	assert.Equal(t, 1.0, parseRatio("", 1))
}

func TestParseRatio_ParsesFirstToken(t *testing.T) {
	assert.Equal(t, 0.5, parseRatio("0.5 close enough", 1))
}

func TestParseRatio_ClampsToUnitInterval(t *testing.T) {
	assert.Equal(t, 1.0, parseRatio("3.2", 1))
	assert.Equal(t, 0.0, parseRatio("-1", 1))
}

func TestCaptureComment_TruncatesLongOutput(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdout")
	require.NoError(t, err)
	defer f.Close()

	long := make([]byte, stdoutCaptureLimit+50)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.Write(long)
	require.NoError(t, err)

	comment := captureComment(f)
	assert.True(t, len(comment) <= stdoutCaptureLimit+len("…"))
	assert.Contains(t, comment, "…")
}
