package judge

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"

	"github.com/sim-judge/sim/pkg/checker"
	"github.com/sim-judge/sim/pkg/compiler"
	"github.com/sim-judge/sim/pkg/problems"
	"github.com/sim-judge/sim/pkg/sandbox"
	"github.com/sim-judge/sim/pkg/simlog"
	"github.com/sim-judge/sim/pkg/submissions"
)

// ScoreCutLambda is the runtime-to-ratio curve's decay coefficient. The
// Simfile format has no per-problem override for it (spec.md §9 Open
// Questions), so it stays a compile-time constant.
const ScoreCutLambda = 2.0

// PackageDir describes where a problem's unpacked package lives on disk:
// the solution source, the checker source, and every test's input/answer
// files, laid out the way Conver extracts a package.
type PackageDir struct {
	Root          string // unpacked package root
	TestsDir      string // Root/tests, containing <name>.in / <name>.out
	SolutionPath  string
	CheckerPath   string
}

func (p PackageDir) inputPath(test string) string  { return filepath.Join(p.TestsDir, test+".in") }
func (p PackageDir) answerPath(test string) string { return filepath.Join(p.TestsDir, test+".out") }

// Worker judges one submission against one compiled problem package.
type Worker struct {
	Package   PackageDir
	ScratchDir string
	Language  submissions.Language
}

// Judge runs the full judging pipeline for simfile, following spec.md
// §4.D's seven steps. When final is false, only groups with MaxScore == 0
// (the "initial"/sample groups) are run.
func (w *Worker) Judge(ctx context.Context, sf problems.Simfile, final bool, logger *simlog.Logger, onPartial func(Report)) (Report, error) {
	solutionBin := filepath.Join(w.ScratchDir, "solution")
	if _, err := compiler.Compile(ctx, w.Language, w.Package.SolutionPath, solutionBin, compiler.DefaultLimits()); err != nil {
		logger.Infof("solution compilation failed: %v", err)
		return compilationErrorReport(), nil
	}

	checkerBin := filepath.Join(w.ScratchDir, "checker")
	if _, err := compiler.Compile(ctx, submissions.CPP, w.Package.CheckerPath, checkerBin, compiler.DefaultLimits()); err != nil {
		logger.Infof("checker compilation failed: %v", err)
		return checkerCompilationErrorReport(), nil
	}

	report := Report{}
	for _, sfGroup := range sf.Groups {
		if !final && sfGroup.MaxScore != 0 {
			continue
		}
		group := Group{Name: sfGroup.Tag, MaxScore: sfGroup.MaxScore}
		ratio := 1.0
		for _, sfTest := range sfGroup.Tests {
			test, testRatio, err := w.runOneTest(ctx, solutionBin, checkerBin, sfTest)
			if err != nil {
				return Report{}, fmt.Errorf("judge: test %s: %w", sfTest.Name, err)
			}
			group.Tests = append(group.Tests, test)
			if testRatio < ratio {
				ratio = testRatio
			}
			report.Groups = assignGroup(report.Groups, group)
			if onPartial != nil {
				onPartial(deepcopy.Copy(report).(Report))
			}
		}
		group.Score = int(math.Round(float64(group.MaxScore) * ratio))
		report.Groups = assignGroup(report.Groups, group)
		if onPartial != nil {
			onPartial(deepcopy.Copy(report).(Report))
		}
	}

	return report, nil
}

// assignGroup upserts group by Name into groups, preserving declaration
// order, so repeated calls during a single group's test loop update the
// same slot instead of appending duplicates.
func assignGroup(groups []Group, group Group) []Group {
	for i := range groups {
		if groups[i].Name == group.Name {
			groups[i] = group
			return groups
		}
	}
	return append(groups, group)
}

func (w *Worker) runOneTest(ctx context.Context, solutionBin, checkerBin string, sfTest problems.SimfileTest) (Test, float64, error) {
	scratchName := uuid.NewString()
	outPath := filepath.Join(w.ScratchDir, "out-"+scratchName)
	outFile, err := os.Create(outPath)
	if err != nil {
		return Test{}, 0, fmt.Errorf("create scratch output: %w", err)
	}
	defer os.Remove(outPath)
	defer outFile.Close()

	inFile, err := os.Open(w.Package.inputPath(sfTest.Name))
	if err != nil {
		return Test{}, 0, fmt.Errorf("open input: %w", err)
	}
	defer inFile.Close()

	stat, err := sandbox.Run(ctx, sandbox.Options{
		TimeLimit:   sfTest.TimeLimit,
		MemoryLimit: 256 << 20,
		ExecPath:    solutionBin,
		Argv:        []string{solutionBin},
		Stdin:       inFile,
		Stdout:      outFile,
	}, sandbox.DefaultPolicy())
	if err != nil {
		return Test{}, 0, fmt.Errorf("sandbox run: %w", err)
	}

	test := Test{
		Name:           sfTest.Name,
		Status:         mapSandboxStatus(stat.Status),
		Runtime:        stat.CPUTime,
		TimeLimit:      sfTest.TimeLimit,
		MemoryConsumed: stat.MemoryPeak,
		MemoryLimit:    256 << 20,
		Comment:        stat.Message,
	}

	if stat.Status != sandbox.OK {
		return test, 0, nil
	}

	verdict, err := checker.Run(ctx, checkerBin, w.Package.inputPath(sfTest.Name), w.Package.answerPath(sfTest.Name), outPath)
	if err != nil {
		return Test{}, 0, fmt.Errorf("checker: %w", err)
	}
	switch {
	case verdict.Error:
		test.Status = CheckerError
		test.Comment = verdict.Comment
		return test, 0, nil
	case verdict.WA:
		test.Status = WA
		test.Comment = verdict.Comment
		return test, 0, nil
	}

	ratio := perTestRatio(stat.CPUTime, sfTest.TimeLimit)
	return test, ratio, nil
}

// perTestRatio implements spec.md §4.D's scoring curve:
// clamp01(1 + λ·(1 − 2·runtime/time_limit)).
func perTestRatio(runtime, timeLimit time.Duration) float64 {
	if timeLimit <= 0 {
		return 0
	}
	frac := float64(runtime) / float64(timeLimit)
	ratio := 1 + ScoreCutLambda*(1-2*frac)
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

func mapSandboxStatus(s sandbox.Status) TestStatus {
	switch s {
	case sandbox.OK:
		return OK
	case sandbox.TLE:
		return TLE
	case sandbox.MLE:
		return MLE
	case sandbox.OLE:
		return OLE
	case sandbox.RTE:
		return RTE
	default:
		return RTE
	}
}

func compilationErrorReport() Report {
	return Report{Groups: []Group{{
		Name:  "compile",
		Tests: []Test{{Name: "compile", Status: CompilationError}},
	}}}
}

func checkerCompilationErrorReport() Report {
	return Report{Groups: []Group{{
		Name:  "compile",
		Tests: []Test{{Name: "checker", Status: CheckerCompilationError}},
	}}}
}
