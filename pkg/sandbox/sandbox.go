// Package sandbox runs one traced child process under a syscall policy,
// enforcing wall-clock, CPU-time, memory, and output-size limits. Exactly
// one process is created per Run call and it is torn down on every exit
// path (success, limit violation, policy violation, internal error).
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/containerd/cgroups"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

// Status is the outcome of one traced run, before any checker verdict is
// applied.
type Status int

const (
	OK Status = iota
	TLE
	MLE
	OLE
	RTE
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case TLE:
		return "TLE"
	case MLE:
		return "MLE"
	case OLE:
		return "OLE"
	case RTE:
		return "RTE"
	default:
		return "UNKNOWN"
	}
}

// Options configures one sandboxed run. It is constructed per run, consumed
// once; the runner closes every file descriptor it owns on every exit path.
type Options struct {
	TimeLimit    time.Duration // wall-clock
	CPUTimeLimit time.Duration
	MemoryLimit  int64 // bytes
	OutputLimit  int64 // bytes, 0 means no cap

	Stdin, Stdout, Stderr *os.File // nil connects the stream to /dev/null; it is not left closed

	ExecPath string
	Argv     []string
	Env      []string

	// WorkDir is the directory the child execs from.
	WorkDir string
}

// ExitStat is the classified result of a Run call.
type ExitStat struct {
	Status         Status
	ExitCode       int
	CPUTime        time.Duration
	WallTime       time.Duration
	MemoryPeak     int64
	OutputSize     int64
	Message        string
}

// RunIsolated runs Run on a dedicated, never-reused goroutine pinned to its
// own OS thread for the whole trace. ptrace's tracer/tracee relationship is
// a property of the calling OS thread, and Go's scheduler is free to move a
// goroutine across OS threads between any two ptrace calls unless it is
// pinned; Run already pins its own goroutine with runtime.LockOSThread, but
// RunIsolated additionally guarantees the result is only ever observed after
// that goroutine has fully exited, so a caller invoking many judged runs
// concurrently never shares a traced child's thread state across calls.
func RunIsolated(ctx context.Context, opts Options, policy *SyscallPolicy) (ExitStat, error) {
	type result struct {
		stat ExitStat
		err  error
	}
	done := make(chan result, 1)
	go func() {
		stat, err := Run(ctx, opts, policy)
		done <- result{stat, err}
	}()
	r := <-done
	return r.stat, r.err
}

// Run traces execPath/argv under policy and opts's resource limits.
func Run(ctx context.Context, opts Options, policy *SyscallPolicy) (ExitStat, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cmd := exec.Command("/bin/sh", shellArgs(opts.ExecPath, opts.Argv, rlimitShellPrelude(opts.MemoryLimit, opts.CPUTimeLimit))...)
	cmd.Dir = opts.WorkDir
	cmd.Env = opts.Env
	cmd.SysProcAttr = &unix.SysProcAttr{
		Ptrace:    true,
		Pdeathsig: unix.SIGKILL,
	}

	stdin, err := openOrDevNull(opts.Stdin, os.O_RDONLY)
	if err != nil {
		return ExitStat{}, fmt.Errorf("sandbox: stdin: %w", err)
	}
	if opts.Stdin == nil {
		defer stdin.Close()
	}
	stdout, err := openOrDevNull(opts.Stdout, os.O_WRONLY)
	if err != nil {
		return ExitStat{}, fmt.Errorf("sandbox: stdout: %w", err)
	}
	if opts.Stdout == nil {
		defer stdout.Close()
	}
	stderr, err := openOrDevNull(opts.Stderr, os.O_WRONLY)
	if err != nil {
		return ExitStat{}, fmt.Errorf("sandbox: stderr: %w", err)
	}
	if opts.Stderr == nil {
		defer stderr.Close()
	}

	cmd.Stdin, cmd.Stdout, cmd.Stderr = stdin, stdout, stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ExitStat{}, fmt.Errorf("sandbox: start: %w", err)
	}
	pid := cmd.Process.Pid

	cg, cgErr := newRunCgroup(pid, opts.MemoryLimit)
	if cgErr == nil {
		defer cg.Delete()
	}

	killed := false
	timer := time.AfterFunc(opts.TimeLimit, func() {
		killed = true
		unix.Kill(pid, unix.SIGKILL)
	})
	defer timer.Stop()

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return ExitStat{}, fmt.Errorf("sandbox: initial wait: %w", err)
	}
	unix.PtraceSetOptions(pid, unix.PTRACE_O_EXITKILL|unix.PTRACE_O_TRACESYSGOOD)

	forbidden := ""
	for {
		select {
		case <-ctx.Done():
			unix.Kill(pid, unix.SIGKILL)
		default:
		}

		if err := unix.PtraceSyscall(pid, 0); err != nil {
			break
		}
		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			break
		}
		if ws.Exited() || ws.Signaled() {
			break
		}

		var regs unix.PtraceRegs
		if err := unix.PtraceGetRegs(pid, &regs); err == nil {
			nr := syscallNumber(&regs)
			decision := Allow
			if addr, ok := syscallPathArg(nr, &regs); ok {
				path, perr := readCString(pid, addr)
				if perr != nil {
					decision = Forbid
				} else {
					decision = policy.DecidePath(nr, path)
				}
			} else {
				decision = policy.Decide(nr)
			}
			if decision == Forbid {
				forbidden = fmt.Sprintf("forbidden syscall: %d", nr)
				unix.Kill(pid, unix.SIGKILL)
			}
		}

		if err := unix.PtraceSyscall(pid, 0); err != nil {
			break
		}
		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			break
		}
		if ws.Exited() || ws.Signaled() {
			break
		}
	}
	timer.Stop()
	wall := time.Since(start)

	var memPeak int64
	var cpuTime time.Duration
	if cgErr == nil {
		memPeak, _ = cg.MemoryPeak()
		cpuTime, _ = cg.CPUTime()
	}

	outSize := fileSize(stdout)

	stat := classify(ws, wall, cpuTime, memPeak, outSize, opts, killed, forbidden)
	return stat, nil
}

func classify(ws unix.WaitStatus, wall, cpu time.Duration, memPeak, outSize int64, opts Options, killed bool, forbidden string) ExitStat {
	stat := ExitStat{
		ExitCode:   ws.ExitStatus(),
		WallTime:   wall,
		CPUTime:    cpu,
		MemoryPeak: memPeak,
		OutputSize: outSize,
	}

	switch {
	case forbidden != "":
		stat.Status = RTE
		stat.Message = forbidden
	case ws.Signaled() && ws.Signal() == unix.SIGKILL && (killed || wall >= opts.TimeLimit):
		stat.Status = TLE
		stat.Message = "time limit exceeded"
	case opts.MemoryLimit > 0 && memPeak >= opts.MemoryLimit:
		stat.Status = MLE
		stat.Message = "memory limit exceeded"
	case opts.OutputLimit > 0 && outSize > opts.OutputLimit:
		stat.Status = OLE
		stat.Message = "output limit exceeded"
	case ws.Signaled():
		stat.Status = RTE
		stat.Message = fmt.Sprintf("killed by signal %v", ws.Signal())
	case ws.ExitStatus() != 0:
		stat.Status = RTE
		stat.Message = fmt.Sprintf("exited with status %d", ws.ExitStatus())
	default:
		stat.Status = OK
	}
	return stat
}

// shellArgs builds the argument list passed to /bin/sh: `-c prelude --
// argv...`, with `sh`'s own `$0`/`$@` split landing `argv[0]` on `$0` and
// the rest on `$@` so `exec "$0" "$@"` hands the traced program exactly
// argv, unchanged. Callers always pass execPath as argv[0]; the explicit
// fallback below only prepends it if a caller ever doesn't, rather than
// silently duplicating it as an extra argv entry.
func shellArgs(execPath string, argv []string, prelude string) []string {
	if len(argv) > 0 && argv[0] == execPath {
		return append([]string{"-c", prelude, "--"}, argv...)
	}
	return append([]string{"-c", prelude, "--", execPath}, argv...)
}

// rlimitShellPrelude builds the `sh -c` script that applies the memory and
// CPU-time rlimits before exec'ing the traced program. Go's os/exec has no
// pre-exec hook (unlike a C fork+exec), so the limits are applied by a thin
// shell wrapper instead of a Setrlimit call between fork and exec.
func rlimitShellPrelude(memLimit int64, cpuLimit time.Duration) string {
	memKB := memLimit / 1024
	cpuSecs := int64(cpuLimit / time.Second)
	if cpuSecs < 1 {
		cpuSecs = 1
	}
	return fmt.Sprintf(`ulimit -v %d; ulimit -t %d; exec "$0" "$@"`, memKB, cpuSecs)
}

// maxPathLen bounds readCString so a malicious or corrupt pointer can't
// spin the tracer reading forever.
const maxPathLen = 4096

// readCString reads a NUL-terminated string out of the traced child's
// address space at addr, used to resolve open/openat's pathname argument
// for SyscallPolicy.DecidePath.
func readCString(pid int, addr uintptr) (string, error) {
	if addr == 0 {
		return "", fmt.Errorf("sandbox: null path pointer")
	}
	var buf []byte
	chunk := make([]byte, 8)
	for len(buf) < maxPathLen {
		n, err := unix.PtracePeekData(pid, addr+uintptr(len(buf)), chunk)
		if err != nil {
			return "", fmt.Errorf("sandbox: peek path: %w", err)
		}
		if n == 0 {
			break
		}
		for _, b := range chunk[:n] {
			if b == 0 {
				return string(buf), nil
			}
			buf = append(buf, b)
		}
	}
	return string(buf), nil
}

func openOrDevNull(f *os.File, flag int) (*os.File, error) {
	if f != nil {
		return f, nil
	}
	return os.OpenFile(os.DevNull, flag, 0)
}

func fileSize(f *os.File) int64 {
	info, err := f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

// runCgroup wraps the per-run cgroup created to read CPU/memory accounting
// instead of scraping /proc.
type runCgroup struct {
	cg cgroups.Cgroup
}

func newRunCgroup(pid int, memLimit int64) (*runCgroup, error) {
	path := cgroups.StaticPath(fmt.Sprintf("/sim-sandbox/%d", pid))
	limit := memLimit
	res := &specs.LinuxResources{
		Memory: &specs.LinuxMemory{Limit: &limit},
	}
	cg, err := cgroups.New(cgroups.V1, path, res)
	if err != nil {
		return nil, err
	}
	if err := cg.Add(cgroups.Process{Pid: pid}); err != nil {
		cg.Delete()
		return nil, err
	}
	return &runCgroup{cg: cg}, nil
}

func (r *runCgroup) MemoryPeak() (int64, error) {
	stats, err := r.cg.Stat(cgroups.IgnoreNotExist)
	if err != nil || stats.Memory == nil {
		return 0, err
	}
	return int64(stats.Memory.Usage.Max), nil
}

func (r *runCgroup) CPUTime() (time.Duration, error) {
	stats, err := r.cg.Stat(cgroups.IgnoreNotExist)
	if err != nil || stats.CPU == nil || stats.CPU.Usage == nil {
		return 0, err
	}
	return time.Duration(stats.CPU.Usage.Total), nil
}

func (r *runCgroup) Delete() error {
	return r.cg.Delete()
}
