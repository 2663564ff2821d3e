package sandbox

import "golang.org/x/sys/unix"

// syscallNumber reads the syscall number from the traced child's registers
// at a syscall-entry stop. On x86_64 this is Orig_rax.
func syscallNumber(regs *unix.PtraceRegs) uint64 {
	return regs.Orig_rax
}

// syscallPathArg reports the register holding nr's pathname argument, for
// the syscalls SyscallPolicy.DecidePath needs to resolve. x86_64 syscall
// arguments land in rdi, rsi, rdx, r10, r8, r9 in order; open's pathname is
// the first argument, openat's is the second.
func syscallPathArg(nr uint64, regs *unix.PtraceRegs) (uintptr, bool) {
	switch nr {
	case unix.SYS_OPEN:
		return uintptr(regs.Rdi), true
	case unix.SYS_OPENAT:
		return uintptr(regs.Rsi), true
	default:
		return 0, false
	}
}
