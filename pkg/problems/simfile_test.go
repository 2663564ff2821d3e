package problems

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSimfile = `
name = A+B Problem
label = abp
statement = statement.pdf
checker = chk.cpp
solutions = model.cpp, brute.cpp
memory_limit = 256

test 0a time_limit=1.00 points=0
test 1a time_limit=1.00 points=40
test 1b time_limit=1.00
test 2a time_limit=2.00 points=60
test 2b time_limit=2.00
`

func TestParseSimfile_Happy(t *testing.T) {
	sf, err := ParseSimfile(strings.NewReader(sampleSimfile))
	require.NoError(t, err)

	assert.Equal(t, "A+B Problem", sf.Name)
	assert.Equal(t, "abp", sf.Label)
	assert.Equal(t, []string{"model.cpp", "brute.cpp"}, sf.Solutions)
	assert.Equal(t, "model.cpp", sf.ModelSolution())
	assert.EqualValues(t, 256*(1<<20), sf.MemoryLimit)

	require.Len(t, sf.Groups, 3)
	assert.Equal(t, "0", sf.Groups[0].Tag)
	assert.Equal(t, 0, sf.Groups[0].MaxScore)
	assert.Equal(t, "1", sf.Groups[1].Tag)
	assert.Equal(t, 40, sf.Groups[1].MaxScore)
	assert.Len(t, sf.Groups[1].Tests, 2)
	assert.Equal(t, "2", sf.Groups[2].Tag)
	assert.Equal(t, 60, sf.Groups[2].MaxScore)
	assert.Equal(t, time.Second, sf.Groups[1].Tests[0].TimeLimit)
}

func TestParseSimfile_OcenGroupIsAlwaysZero(t *testing.T) {
	text := `
name = X
label = x
statement = s.pdf
checker = c.cpp
solutions = m.cpp
memory_limit = 64

test 7ocen time_limit=0.5 points=100
`
	sf, err := ParseSimfile(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, sf.Groups, 1)
	assert.Equal(t, 0, sf.Groups[0].MaxScore)
}

func TestParseSimfile_MissingRequiredFields(t *testing.T) {
	_, err := ParseSimfile(strings.NewReader("name = X\n"))
	assert.Error(t, err)
}

func TestParseSimfile_NoGroups(t *testing.T) {
	text := `
name = X
label = x
statement = s.pdf
checker = c.cpp
solutions = m.cpp
memory_limit = 64
`
	_, err := ParseSimfile(strings.NewReader(text))
	assert.Error(t, err)
}

func TestParseSimfile_RejectsUnknownKey(t *testing.T) {
	_, err := ParseSimfile(strings.NewReader("bogus = 1\n"))
	assert.Error(t, err)
}
