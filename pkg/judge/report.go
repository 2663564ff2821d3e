// Package judge orchestrates compiling a submission and its problem's
// checker, running every declared test under the sandbox, scoring each
// group, and aggregating a full Report - emitting partial snapshots as it
// goes so a caller can show progress before the run finishes.
package judge

import "time"

// TestStatus is a single test's outcome, a superset of sandbox.Status that
// additionally covers checker-level and scheduling outcomes.
type TestStatus int

const (
	OK TestStatus = iota
	WA
	TLE
	MLE
	OLE
	RTE
	CheckerError
	CompilationError
	CheckerCompilationError
	Skipped
)

func (s TestStatus) String() string {
	switch s {
	case OK:
		return "OK"
	case WA:
		return "WA"
	case TLE:
		return "TLE"
	case MLE:
		return "MLE"
	case OLE:
		return "OLE"
	case RTE:
		return "RTE"
	case CheckerError:
		return "CHECKER_ERROR"
	case CompilationError:
		return "COMPILATION_ERROR"
	case CheckerCompilationError:
		return "CHECKER_COMPILATION_ERROR"
	case Skipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// statusRank orders statuses worst-to-best for aggregation, per spec.md
// §4.D: CHECKER_ERROR > MLE > OLE > RTE > TLE > WA > OK > SKIPPED.
var statusRank = map[TestStatus]int{
	CheckerCompilationError: 9,
	CompilationError:        8,
	CheckerError:            7,
	MLE:                     6,
	OLE:                     5,
	RTE:                     4,
	TLE:                     3,
	WA:                      2,
	OK:                      1,
	Skipped:                 0,
}

// Worse reports whether a is a worse outcome than b under the aggregation
// precedence.
func Worse(a, b TestStatus) bool {
	return statusRank[a] > statusRank[b]
}

// Test is one executed test within a Group.
type Test struct {
	Name           string
	Status         TestStatus
	Runtime        time.Duration
	TimeLimit      time.Duration
	MemoryConsumed int64
	MemoryLimit    int64
	Comment        string
}

// Group is an ordered collection of Tests sharing a Simfile group tag.
type Group struct {
	Name     string
	MaxScore int
	Score    int
	Tests    []Test
}

// Report is the full result of judging a submission.
type Report struct {
	Groups []Group
}

// WorstStatus folds every test's status across every group using the
// aggregation precedence, the value a submission's status field is set to.
func (r Report) WorstStatus() TestStatus {
	worst := OK
	seenAny := false
	for _, g := range r.Groups {
		for _, t := range g.Tests {
			if !seenAny || Worse(t.Status, worst) {
				worst = t.Status
				seenAny = true
			}
		}
	}
	if !seenAny {
		return Skipped
	}
	return worst
}

// TotalScore sums every group's score.
func (r Report) TotalScore() int {
	total := 0
	for _, g := range r.Groups {
		total += g.Score
	}
	return total
}
