// Package submissions holds the Submission entity and its status enum.
package submissions

import "time"

// Status is the worst-case outcome across a judge run, aggregated per
// spec.md §4.D precedence: CHECKER_ERROR > MLE > OLE > RTE > TLE > WA > OK > SKIPPED.
type Status int

const (
	Pending Status = iota
	OK
	WA
	TLE
	MLE
	OLE
	RTE
	CompilationError
	CheckerCompilationError
	JudgeError
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
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
	case CompilationError:
		return "COMPILATION_ERROR"
	case CheckerCompilationError:
		return "CHECKER_COMPILATION_ERROR"
	case JudgeError:
		return "JUDGE_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Language identifies the submitted source's programming language.
type Language int

const (
	CPP Language = iota
	Pascal
	Python
	Rust
)

// Submission is one attempt at solving a Problem.
type Submission struct {
	ID                         int64
	ProblemID                  int64
	UserID                     *int64
	ContestProblemID           *int64
	ContestRoundID             *int64
	ContestID                  *int64
	SourceFileID               int64
	Language                   Language
	InitialStatus              Status
	FullStatus                 Status
	Score                      *int
	ProblemFinal               bool
	ContestProblemFinal        bool
	ContestProblemInitialFinal bool
	InitialReportHTML          string
	FinalReportHTML            string
	CreatedAt                  time.Time
	LastJudgmentBeganAt        *time.Time
}

// AggregateStatus folds the worst test status observed across a report into
// a submission Status, following the precedence order of spec.md §4.D.
func AggregateStatus(hasCheckerError, hasMLE, hasOLE, hasRTE, hasTLE, hasWA bool) Status {
	switch {
	case hasCheckerError:
		return JudgeError
	case hasMLE:
		return MLE
	case hasOLE:
		return OLE
	case hasRTE:
		return RTE
	case hasTLE:
		return TLE
	case hasWA:
		return WA
	default:
		return OK
	}
}
