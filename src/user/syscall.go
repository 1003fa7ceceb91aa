package user

import "fmt"

const (
	sysDup         = 24
	sysUnlinkat    = 35
	sysLinkat      = 37
	sysOpen        = 56
	sysClose       = 57
	sysPipe        = 59
	sysRead        = 63
	sysWrite       = 64
	sysFstat       = 80
	sysExit        = 93
	sysYield       = 124
	sysSetPriority = 140
	sysGetTime     = 169
	sysGetPid      = 172
	sysMunmap      = 215
	sysMmap        = 222
	sysWaitPid     = 260
	sysSpawn       = 400
	sysMailRead    = 401
	sysMailWrite   = 402
)

// open flags
const (
	RDONLY = 0
	WRONLY = 1 << 0
	RDWR   = 1 << 1
	CREATE = 1 << 9
	TRUNC  = 1 << 10
)

// StatSize is the size of the record fstat fills in.
const StatSize = 80

func (e *Env) Dup(fd int) int {
	return int(e.Ecall(sysDup, uint64(fd), 0, 0))
}

func (e *Env) Open(path string, flags uint32) int {
	mark := e.SP()
	defer e.SetSP(mark)
	return int(e.Ecall(sysOpen, e.CString(path), uint64(flags), 0))
}

func (e *Env) Close(fd int) int {
	return int(e.Ecall(sysClose, uint64(fd), 0, 0))
}

// Pipe returns the read and write fds, or -1 twice.
func (e *Env) Pipe() (int, int) {
	mark := e.SP()
	defer e.SetSP(mark)
	p := e.Alloca(16)
	if e.Ecall(sysPipe, p, 0, 0) != 0 {
		return -1, -1
	}
	return int(e.LoadUint64(p)), int(e.LoadUint64(p + 8))
}

func (e *Env) Read(fd int, buf, n uint64) int64 {
	return e.Ecall(sysRead, uint64(fd), buf, n)
}

func (e *Env) Write(fd int, buf, n uint64) int64 {
	return e.Ecall(sysWrite, uint64(fd), buf, n)
}

// WriteBytes copies data to the stack and writes it to fd.
func (e *Env) WriteBytes(fd int, data []byte) int64 {
	mark := e.SP()
	defer e.SetSP(mark)
	p := e.Alloca(uint64(len(data)))
	e.Store(p, data)
	return e.Write(fd, p, uint64(len(data)))
}

// ReadBytes reads up to n bytes from fd through a stack buffer.
func (e *Env) ReadBytes(fd int, n uint64) ([]byte, int64) {
	mark := e.SP()
	defer e.SetSP(mark)
	p := e.Alloca(n)
	r := e.Read(fd, p, n)
	if r <= 0 {
		return nil, r
	}
	return e.Load(p, uint64(r)), r
}

func (e *Env) Printf(format string, args ...interface{}) {
	e.WriteBytes(1, []byte(fmt.Sprintf(format, args...)))
}

func (e *Env) Fstat(fd int, stat uint64) int {
	return int(e.Ecall(sysFstat, uint64(fd), stat, 0))
}

func (e *Env) Link(oldPath, newPath string) int {
	mark := e.SP()
	defer e.SetSP(mark)
	return int(e.Ecall(sysLinkat, e.CString(oldPath), e.CString(newPath), 0))
}

func (e *Env) Unlink(path string) int {
	mark := e.SP()
	defer e.SetSP(mark)
	return int(e.Ecall(sysUnlinkat, e.CString(path), 0, 0))
}

// Exit does not return.
func (e *Env) Exit(code int32) {
	e.Ecall(sysExit, uint64(int64(code)), 0, 0)
	panic("exit returned")
}

func (e *Env) Yield() int {
	return int(e.Ecall(sysYield, 0, 0, 0))
}

// GetTime is milliseconds since boot.
func (e *Env) GetTime() int64 {
	return e.Ecall(sysGetTime, 0, 0, 0)
}

func (e *Env) GetPid() int {
	return int(e.Ecall(sysGetPid, 0, 0, 0))
}

func (e *Env) Mmap(start, length, port uint64) int64 {
	return e.Ecall(sysMmap, start, length, port)
}

func (e *Env) Munmap(start, length uint64) int64 {
	return e.Ecall(sysMunmap, start, length, 0)
}

func (e *Env) SetPriority(prio int64) int64 {
	return e.Ecall(sysSetPriority, uint64(prio), 0, 0)
}

func (e *Env) Spawn(path string) int {
	mark := e.SP()
	defer e.SetSP(mark)
	return int(e.Ecall(sysSpawn, e.CString(path), 0, 0))
}

// WaitPid waits without blocking: -1 no such child, -2 not exited yet.
func (e *Env) WaitPid(pid int) (int, int32) {
	mark := e.SP()
	defer e.SetSP(mark)
	p := e.Alloca(4)
	r := int(e.Ecall(sysWaitPid, uint64(int64(pid)), p, 0))
	if r < 0 {
		return r, 0
	}
	return r, e.LoadInt32(p)
}

// Wait yields until the child pid (or any child, for -1) exits.
func (e *Env) Wait(pid int) (int, int32) {
	for {
		r, code := e.WaitPid(pid)
		if r != -2 {
			return r, code
		}
		e.Yield()
	}
}

func (e *Env) MailRead(buf, n uint64) int64 {
	return e.Ecall(sysMailRead, buf, n, 0)
}

func (e *Env) MailWrite(pid int, buf, n uint64) int64 {
	return e.Ecall(sysMailWrite, uint64(pid), buf, n)
}
