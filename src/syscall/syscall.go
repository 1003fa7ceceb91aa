// Package syscall decodes system calls made by user tasks and carries them
// out against the kernel. Every failure is reported to the task as -1.
package syscall

import (
	"equanimity/src/joy"
	"equanimity/src/lib/trust"
)

var sysLog = trust.NewLogger("syscall")

const (
	SysDup         = 24
	SysUnlinkat    = 35
	SysLinkat      = 37
	SysOpen        = 56
	SysClose       = 57
	SysPipe        = 59
	SysRead        = 63
	SysWrite       = 64
	SysFstat       = 80
	SysExit        = 93
	SysYield       = 124
	SysSetPriority = 140
	SysGetTime     = 169
	SysGetPid      = 172
	SysMunmap      = 215
	SysMmap        = 222
	SysWaitPid     = 260
	SysSpawn       = 400
	SysMailRead    = 401
	SysMailWrite   = 402
)

// MaxPathLen bounds the paths read out of user memory.
const MaxPathLen = 256

var names = map[uint64]string{
	SysDup: "dup", SysUnlinkat: "unlinkat", SysLinkat: "linkat",
	SysOpen: "open", SysClose: "close", SysPipe: "pipe", SysRead: "read",
	SysWrite: "write", SysFstat: "fstat", SysExit: "exit", SysYield: "yield",
	SysSetPriority: "set_priority", SysGetTime: "get_time", SysGetPid: "getpid",
	SysMunmap: "munmap", SysMmap: "mmap", SysWaitPid: "waitpid",
	SysSpawn: "spawn", SysMailRead: "mail_read", SysMailWrite: "mail_write",
}

// Name is the name of syscall id, or "" for an unknown one.
func Name(id uint64) string {
	return names[id]
}

// Dispatch runs syscall id for the current task of k and returns the value
// for a0. exit does not return.
func Dispatch(k *joy.Kernel, id uint64, args [3]uint64) int64 {
	sysLog.Debugf("%s(%#x, %#x, %#x)", Name(id), args[0], args[1], args[2])
	switch id {
	case SysDup:
		return sysDup(k, fdArg(args[0]))
	case SysUnlinkat:
		return sysUnlinkat(k, args[0])
	case SysLinkat:
		return sysLinkat(k, args[0], args[1])
	case SysOpen:
		return sysOpen(k, args[0], uint32(args[1]))
	case SysClose:
		return sysClose(k, fdArg(args[0]))
	case SysPipe:
		return sysPipe(k, args[0])
	case SysRead:
		return sysRead(k, fdArg(args[0]), args[1], args[2])
	case SysWrite:
		return sysWrite(k, fdArg(args[0]), args[1], args[2])
	case SysFstat:
		return sysFstat(k, fdArg(args[0]), args[1])
	case SysExit:
		return sysExit(k, int32(args[0]))
	case SysYield:
		return sysYield(k)
	case SysSetPriority:
		return k.SetPriority(int64(args[0]))
	case SysGetTime:
		return k.GetTime()
	case SysGetPid:
		return int64(k.CurrentTask().PID())
	case SysMunmap:
		return sysMunmap(k, args[0], args[1])
	case SysMmap:
		return sysMmap(k, args[0], args[1], args[2])
	case SysWaitPid:
		return sysWaitPid(k, int64(args[0]), args[1])
	case SysSpawn:
		return sysSpawn(k, args[0])
	case SysMailRead:
		return sysMailRead(k, args[0], args[1])
	case SysMailWrite:
		return sysMailWrite(k, joy.PID(args[0]), args[1], args[2])
	}
	sysLog.Warnf("%v: unsupported syscall %d", k.CurrentTask(), id)
	return -1
}

func fdArg(a uint64) int {
	fd := int64(a)
	if fd < 0 || fd > joy.MaxOpenFiles {
		return -1
	}
	return int(fd)
}
