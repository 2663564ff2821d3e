// Package compiler compiles a submission's or checker's source under
// resource limits, targeting the host's native architecture (the original
// implementation's `-m32` flag is dropped here: compilation targets the
// sandbox's native architecture; the sandbox traces x86_64 syscall numbers
// only and does not detect the child's architecture from its ELF).
package compiler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sim-judge/sim/pkg/sandbox"
	"github.com/sim-judge/sim/pkg/submissions"
)

// CompilationErrorsMaxLength bounds how much of a failing compiler's stderr
// is retained for the submission's report.
const CompilationErrorsMaxLength = 100 << 10

// Limits bounds the compiler process itself (not the program being judged).
type Limits struct {
	TimeLimit   int64 // seconds
	MemoryLimit int64 // bytes
}

// DefaultLimits is generous enough for any single-file submission.
func DefaultLimits() Limits {
	return Limits{TimeLimit: 30, MemoryLimit: 512 << 20}
}

func argvFor(lang submissions.Language, source, dest string) ([]string, error) {
	switch lang {
	case submissions.CPP:
		return []string{"g++", "-O2", "-static", "-o", dest, source}, nil
	case submissions.Pascal:
		return []string{"fpc", "-O2", "-o" + dest, source}, nil
	case submissions.Rust:
		return []string{"rustc", "-O", "-o", dest, source}, nil
	case submissions.Python:
		return []string{"python3", "-m", "py_compile", source}, nil
	default:
		return nil, fmt.Errorf("compiler: unsupported language %d", lang)
	}
}

// Compile builds source into dest under limits. On success it returns
// (nil, nil). On failure it returns the compiler's captured stderr,
// truncated to CompilationErrorsMaxLength, as the first return value,
// together with an error carrying the sandbox's status message.
func Compile(ctx context.Context, lang submissions.Language, source, dest string, limits Limits) ([]byte, error) {
	argv, err := argvFor(lang, source, dest)
	if err != nil {
		return nil, err
	}

	stderrFile, err := os.CreateTemp("", "sim-compile-stderr-*")
	if err != nil {
		return nil, fmt.Errorf("compiler: scratch stderr: %w", err)
	}
	defer os.Remove(stderrFile.Name())
	defer stderrFile.Close()

	stat, err := sandbox.Run(ctx, sandbox.Options{
		TimeLimit:   time.Duration(limits.TimeLimit) * time.Second,
		MemoryLimit: limits.MemoryLimit,
		ExecPath:    argv[0],
		Argv:        argv,
		Stderr:      stderrFile,
	}, sandbox.DefaultPolicy())
	if err != nil {
		return nil, fmt.Errorf("compiler: sandbox run: %w", err)
	}

	if stat.Status == sandbox.OK && stat.ExitCode == 0 {
		return nil, nil
	}

	stderr, readErr := readTruncated(stderrFile, CompilationErrorsMaxLength)
	if readErr != nil {
		return nil, fmt.Errorf("compiler: read stderr: %w", readErr)
	}
	return stderr, fmt.Errorf("compiler: compilation failed: %s", stat.Message)
}

func readTruncated(f *os.File, max int) ([]byte, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	buf := make([]byte, max)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, nil
	}
	return buf[:n], nil
}
