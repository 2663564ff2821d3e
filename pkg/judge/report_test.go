package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport_WorstStatusPrecedence(t *testing.T) {
	r := Report{Groups: []Group{
		{Tests: []Test{{Status: OK}, {Status: WA}}},
		{Tests: []Test{{Status: TLE}}},
	}}
	assert.Equal(t, TLE, r.WorstStatus())
}

func TestReport_WorstStatusCheckerErrorWins(t *testing.T) {
	r := Report{Groups: []Group{
		{Tests: []Test{{Status: MLE}, {Status: CheckerError}}},
	}}
	assert.Equal(t, CheckerError, r.WorstStatus())
}

func TestReport_WorstStatusEmptyReportIsSkipped(t *testing.T) {
	assert.Equal(t, Skipped, Report{}.WorstStatus())
}

func TestReport_TotalScore(t *testing.T) {
	r := Report{Groups: []Group{{Score: 40}, {Score: 60}}}
	assert.Equal(t, 100, r.TotalScore())
}

func TestWorse_Ordering(t *testing.T) {
	assert.True(t, Worse(MLE, RTE))
	assert.True(t, Worse(RTE, TLE))
	assert.True(t, Worse(TLE, WA))
	assert.True(t, Worse(WA, OK))
	assert.True(t, Worse(OK, Skipped))
	assert.False(t, Worse(OK, WA))
}
