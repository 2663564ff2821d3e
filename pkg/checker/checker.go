// Package checker runs a problem's output-checker program against a test's
// input, the correct output, and the submitter's output, confined to those
// three paths by a sandbox policy.
package checker

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sim-judge/sim/pkg/sandbox"
)

const (
	// TimeLimit and MemoryLimit bound every checker invocation regardless of
	// the problem's own test limits; a checker is trusted code but still runs
	// sandboxed defensively.
	TimeLimit   = 10 * time.Second
	MemoryLimit = 256 << 20

	stdoutCaptureLimit = 200
)

// Verdict is the checker's judgment of one test.
type Verdict struct {
	WA      bool
	Error   bool
	Ratio   float64 // 1 for full credit when !WA && !Error
	Comment string
}

// Run invokes checkerPath with the conventional sim checker argv:
// `checker input correct_output submitter_output`.
func Run(ctx context.Context, checkerPath, inputPath, correctOutputPath, submitterOutputPath string) (Verdict, error) {
	stdoutFile, err := os.CreateTemp("", "sim-checker-stdout-*")
	if err != nil {
		return Verdict{}, fmt.Errorf("checker: scratch stdout: %w", err)
	}
	defer os.Remove(stdoutFile.Name())
	defer stdoutFile.Close()

	policy := sandbox.CheckerCallbackPolicy([]string{inputPath, correctOutputPath, submitterOutputPath})
	stat, err := sandbox.Run(ctx, sandbox.Options{
		TimeLimit:   TimeLimit,
		MemoryLimit: MemoryLimit,
		ExecPath:    checkerPath,
		Argv:        []string{checkerPath, inputPath, correctOutputPath, submitterOutputPath},
		Stdout:      stdoutFile,
	}, policy)
	if err != nil {
		return Verdict{}, fmt.Errorf("checker: sandbox run: %w", err)
	}

	comment := captureComment(stdoutFile)

	switch {
	case stat.Status == sandbox.RTE && stat.ExitCode == 1:
		return Verdict{WA: true, Ratio: 0, Comment: comment}, nil
	case stat.Status != sandbox.OK:
		return Verdict{Error: true, Comment: stat.Message}, nil
	case stat.ExitCode == 0:
		return Verdict{Ratio: parseRatio(comment, 1), Comment: comment}, nil
	case stat.ExitCode == 1:
		return Verdict{WA: true, Ratio: 0, Comment: comment}, nil
	default:
		return Verdict{Error: true, Comment: comment}, nil
	}
}

// captureComment reads up to stdoutCaptureLimit bytes of the checker's
// stdout and truncates with an ellipsis if more was written.
func captureComment(f *os.File) string {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ""
	}
	buf := make([]byte, stdoutCaptureLimit+1)
	n, _ := f.Read(buf)
	comment := string(buf[:n])
	if n > stdoutCaptureLimit {
		comment = comment[:stdoutCaptureLimit] + "…"
	}
	return strings.TrimSpace(comment)
}

// parseRatio parses a partial-credit ratio from the checker's first stdout
// token, falling back to def when absent or unparsable.
func parseRatio(comment string, def float64) float64 {
	fields := strings.Fields(comment)
	if len(fields) == 0 {
		return def
	}
	ratio, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return def
	}
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}
