package syscall

import (
	"encoding/binary"

	"equanimity/src/joy"
	"equanimity/src/mm"
)

func sysExit(k *joy.Kernel, code int32) int64 {
	sysLog.Infof("application %v exited with code %d", k.CurrentTask(), code)
	k.ExitCurrentAndRunNext(code)
	panic("unreachable in sys_exit")
}

func sysYield(k *joy.Kernel) int64 {
	k.SuspendCurrentAndRunNext()
	return 0
}

func sysMmap(k *joy.Kernel, start, length, port uint64) int64 {
	cur := k.CurrentTask()
	n, err := cur.Mmap(start, length, port)
	if err != nil {
		sysLog.Debugf("%v: mmap(%#x, %d, %#x): %v", cur, start, length, port, err)
		return -1
	}
	return int64(n)
}

func sysMunmap(k *joy.Kernel, start, length uint64) int64 {
	cur := k.CurrentTask()
	n, err := cur.Munmap(start, length)
	if err != nil {
		sysLog.Debugf("%v: munmap(%#x, %d): %v", cur, start, length, err)
		return -1
	}
	return int64(n)
}

func sysSpawn(k *joy.Kernel, ptr uint64) int64 {
	cur := k.CurrentTask()
	path, ok := userPath(k, cur, ptr)
	if !ok {
		return -1
	}
	child, err := k.Spawn(path)
	if err != nil {
		sysLog.Warnf("%v: spawn %q: %v", cur, path, err)
		return -1
	}
	return int64(child.PID())
}

// sysWaitPid returns -1 when there is no such child and -2 when it is
// still running. The exit code goes to codePtr as a 32 bit word unless
// codePtr is zero.
func sysWaitPid(k *joy.Kernel, pid int64, codePtr uint64) int64 {
	var out mm.UserBuffer
	if codePtr != 0 {
		cur := k.CurrentTask()
		var err error
		out, err = mm.AccessUser(k.Frames(), cur.UserToken(), codePtr, 4, mm.PTEWrite)
		if err != nil {
			return -1
		}
	}
	found, code := k.WaitPid(pid)
	if found >= 0 && codePtr != 0 {
		var raw [4]byte
		binary.LittleEndian.PutUint32(raw[:], uint32(code))
		out.CopyIn(raw[:])
	}
	return found
}
