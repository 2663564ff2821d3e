package sandbox

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Decision is what a SyscallPolicy says about one syscall attempt.
type Decision int

const (
	Allow Decision = iota
	Forbid
)

// SyscallPolicy is a three-part table: an unbounded-repetition allow set, a
// limited set whose entries carry a residual call counter, and an optional
// allowed-path set for open/openat. Syscall numbers are the x86_64 ones
// only; the policy does not detect or switch architecture. This mirrors the shape of the
// seccomp syscall-rule tables in the example pack's gVisor-derived sandbox
// (a map keyed by syscall number to a small rule), adapted here to a
// ptrace-time decision instead of an in-kernel BPF filter.
type SyscallPolicy struct {
	allowed map[uint64]bool
	limited map[uint64]int
	// openPaths restricts openat/open calls to this set when non-empty,
	// used by CheckerCallbackPolicy to confine the checker to its three
	// well-known paths.
	openPaths map[string]bool
}

// Decide consults the policy for syscall number nr. A limited entry's
// counter is decremented on every allowed match; once it reaches zero,
// further attempts are forbidden.
func (p *SyscallPolicy) Decide(nr uint64) Decision {
	if p.allowed[nr] {
		return Allow
	}
	if n, ok := p.limited[nr]; ok {
		if n <= 0 {
			return Forbid
		}
		p.limited[nr] = n - 1
		return Allow
	}
	return Forbid
}

// DecidePath additionally checks a resolved path argument against the
// policy's allowed-path set (only meaningful for CheckerCallbackPolicy).
func (p *SyscallPolicy) DecidePath(nr uint64, path string) Decision {
	if d := p.Decide(nr); d != Allow {
		return d
	}
	if len(p.openPaths) == 0 {
		return Allow
	}
	if p.openPaths[filepath.Clean(path)] {
		return Allow
	}
	return Forbid
}

// DefaultPolicy is the syscall set a judged solution runs under: ordinary
// compute, memory, and single-stream I/O, with no filesystem access beyond
// its already-open stdio descriptors.
func DefaultPolicy() *SyscallPolicy {
	return &SyscallPolicy{
		allowed: map[uint64]bool{
			unix.SYS_READ:         true,
			unix.SYS_WRITE:        true,
			unix.SYS_EXIT:         true,
			unix.SYS_EXIT_GROUP:   true,
			unix.SYS_BRK:          true,
			unix.SYS_MMAP:         true,
			unix.SYS_MUNMAP:       true,
			unix.SYS_MPROTECT:     true,
			unix.SYS_RT_SIGACTION: true,
			unix.SYS_RT_SIGRETURN: true,
			unix.SYS_ARCH_PRCTL:   true,
			unix.SYS_ACCESS:       true,
			unix.SYS_FSTAT:        true,
			unix.SYS_LSEEK:        true,
			unix.SYS_CLOSE:        true,
			unix.SYS_GETRANDOM:    true,
			unix.SYS_FUTEX:        true,
			unix.SYS_SET_TID_ADDRESS: true,
			unix.SYS_SET_ROBUST_LIST: true,
			unix.SYS_RSEQ:            true,
			unix.SYS_PRLIMIT64:       true,
			unix.SYS_SCHED_GETAFFINITY: true,
		},
		limited: map[uint64]int{
			unix.SYS_OPENAT: 8,
			unix.SYS_OPEN:   8,
		},
	}
}

// CheckerCallbackPolicy is the syscall set a checker runs under: the same
// compute/memory set as DefaultPolicy plus path-restricted reads of exactly
// the input, correct-output, and submitted-output files.
func CheckerCallbackPolicy(paths []string) *SyscallPolicy {
	p := DefaultPolicy()
	p.limited[unix.SYS_OPENAT] = len(paths) * 2
	p.limited[unix.SYS_OPEN] = len(paths) * 2
	p.openPaths = make(map[string]bool, len(paths))
	for _, path := range paths {
		p.openPaths[filepath.Clean(path)] = true
	}
	return p
}
