package user

import (
	"bytes"
	"fmt"
)

func init() {
	Register("hello", hello)
	Register("power_3", power(3, 160000))
	Register("power_5", power(5, 140000))
	Register("power_7", power(7, 160000))
	for i := 0; i < 6; i++ {
		Register(fmt.Sprintf("stride%d", i), strideWorker(int64(5+i), 1000))
	}
	Register("mmap", mmapTest)
	Register("mmap_fault", mmapFault)
	Register("mail", mailTest)
	Register("pipe", pipeTest)
	Register("file", fileTest)
	Register("spawn", spawnTest)
	Register("fault", nullStore)
}

func hello(e *Env) int32 {
	e.Printf("Hello, world!\n")
	return 0
}

// power prints the powers of base modulo a prime, yielding every tenth of
// the way.
func power(base uint64, steps int) Program {
	return func(e *Env) int32 {
		const p = 998244353
		step := steps / 10
		acc := uint64(1)
		for i := 1; i <= steps; i++ {
			acc = acc * base % p
			if i%step == 0 {
				e.Printf("power_%d [%d/%d]\n", base, i, steps)
				e.Yield()
			}
		}
		e.Printf("%d^%d = %d(MOD %d)\n", base, steps, acc, p)
		e.Printf("Test power_%d OK!\n", base)
		return 0
	}
}

// strideWorker spins for millis with the given priority and exits with
// the number of rounds it got, which grows with the priority.
func strideWorker(prio int64, millis int64) Program {
	return func(e *Env) int32 {
		e.SetPriority(prio)
		start := e.GetTime()
		count := int32(0)
		for e.GetTime()-start < millis {
			count++
		}
		e.Printf("priority = %d, exitcode = %d\n", prio, count)
		return count
	}
}

func check(e *Env, ok bool, format string, args ...interface{}) bool {
	if !ok {
		e.Printf("FAIL: "+format+"\n", args...)
	}
	return ok
}

func mmapTest(e *Env) int32 {
	const start = 0x1000_0000
	ok := check(e, e.Mmap(start, 4097, 3) == 8192, "mmap should round 4097 up to 8192")
	e.StoreUint64(start+4096, 0xfeed)
	ok = check(e, e.LoadUint64(start+4096) == 0xfeed, "mapped memory lost a store") && ok
	ok = check(e, e.Mmap(start+4096, 4096, 3) == -1, "overlapping mmap accepted") && ok
	ok = check(e, e.Mmap(start+0x10000, 4096, 0) == -1, "mmap without permission accepted") && ok
	ok = check(e, e.Mmap(start+0x10000, 4096, 8) == -1, "mmap with unknown bits accepted") && ok
	ok = check(e, e.Mmap(start+1, 4096, 1) == -1, "unaligned mmap accepted") && ok
	ok = check(e, e.Mmap(start, 0, 3) == 0, "empty mmap should succeed") && ok
	ok = check(e, e.Munmap(start, 4096) == 4096, "munmap of the first page failed") && ok
	ok = check(e, e.Munmap(start, 4096) == -1, "second munmap accepted") && ok
	ok = check(e, e.Munmap(start+4096, 4096) == 4096, "munmap of the second page failed") && ok
	if !ok {
		return 1
	}
	e.Printf("Test mmap OK!\n")
	return 0
}

// mmapFault writes to a read only mapping and is killed for it.
func mmapFault(e *Env) int32 {
	const start = 0x1000_0000
	e.Mmap(start, 4096, 1)
	e.StoreUint64(start, 1)
	e.Printf("Should cause error, Test mmap_fault fail!\n")
	return 1
}

func mailTest(e *Env) int32 {
	pid := e.GetPid()
	buf := e.Alloca(512)
	ok := check(e, e.MailRead(buf, 0) == -1, "probe of an empty mailbox should fail")
	ok = check(e, e.MailWrite(pid, buf, 0) == 0, "probe of an empty mailbox for room should succeed") && ok
	for i := 0; i < 16; i++ {
		e.Store(buf, []byte{byte(i)})
		if !check(e, e.MailWrite(pid, buf, 300) == 256, "message %d was not cut to 256 bytes", i) {
			return 1
		}
	}
	ok = check(e, e.MailWrite(pid, buf, 10) == -1, "write to a full mailbox accepted") && ok
	ok = check(e, e.MailWrite(pid, buf, 0) == -1, "full mailbox claims room") && ok
	ok = check(e, e.MailRead(buf, 0) == 0, "probe of a full mailbox should succeed") && ok
	for i := 0; i < 16; i++ {
		if !check(e, e.MailRead(buf, 8) == 8, "read %d did not fill the buffer", i) {
			return 1
		}
		ok = check(e, e.Load(buf, 1)[0] == byte(i), "message %d out of order", i) && ok
	}
	ok = check(e, e.MailRead(buf, 8) == -1, "read from an empty mailbox succeeded") && ok
	ok = check(e, e.MailWrite(4095, buf, 8) == -1, "mail to a missing task accepted") && ok
	if !ok {
		return 1
	}
	e.Printf("Test mail OK!\n")
	return 0
}

func pipeTest(e *Env) int32 {
	r, w := e.Pipe()
	if !check(e, r >= 0 && w >= 0, "pipe failed") {
		return 1
	}
	msg := []byte("Hello, world, through the pipe!")
	ok := check(e, e.WriteBytes(w, msg) == int64(len(msg)), "short write to the pipe")
	ok = check(e, e.WriteBytes(r, msg) == -1, "write to the read end accepted") && ok
	e.Close(w)
	got, n := e.ReadBytes(r, 64)
	ok = check(e, n == int64(len(msg)) && bytes.Equal(got, msg), "read back %q", got) && ok
	_, n = e.ReadBytes(r, 64)
	ok = check(e, n == 0, "pipe with no writers should read 0, got %d", n) && ok
	e.Close(r)
	if !ok {
		return 1
	}
	e.Printf("Test pipe OK!\n")
	return 0
}

func fileTest(e *Env) int32 {
	name := fmt.Sprintf("file%d", e.GetPid())
	fd := e.Open(name, CREATE|WRONLY)
	if !check(e, fd > 2, "open for create gave %d", fd) {
		return 1
	}
	text := []byte("Hello, file!")
	e.WriteBytes(fd, text)
	e.Close(fd)

	fd = e.Open(name, RDONLY)
	got, _ := e.ReadBytes(fd, 64)
	ok := check(e, bytes.Equal(got, text), "read back %q", got)

	link := name + "_link"
	ok = check(e, e.Link(name, link) == 0, "link failed") && ok
	stat := e.Alloca(StatSize)
	ok = check(e, e.Fstat(fd, stat) == 0, "fstat failed") && ok
	nlink := e.Load(stat+20, 4)[0]
	ok = check(e, nlink == 2, "expected 2 links, got %d", nlink) && ok
	ok = check(e, e.Unlink(link) == 0, "unlink failed") && ok
	ok = check(e, e.Unlink(link) == -1, "second unlink accepted") && ok
	e.Close(fd)
	ok = check(e, e.Open("no such file", RDONLY) == -1, "opened a missing file") && ok
	ok = check(e, e.Close(fd) == -1, "closed a closed fd") && ok
	if !ok {
		return 1
	}
	e.Printf("Test file OK!\n")
	return 0
}

func spawnTest(e *Env) int32 {
	if !check(e, e.Spawn("no such app") == -1, "spawned a missing app") {
		return 1
	}
	pid := e.Spawn("hello")
	if !check(e, pid >= 0, "spawn hello failed") {
		return 1
	}
	got, code := e.Wait(pid)
	if !check(e, got == pid && code == 0, "wait returned %d with code %d", got, code) {
		return 1
	}
	if left, _ := e.Wait(-1); !check(e, left == -1, "no child should be left") {
		return 1
	}
	e.Printf("Test spawn OK!\n")
	return 0
}

// nullStore writes to address zero, which is never mapped.
func nullStore(e *Env) int32 {
	e.StoreUint64(0, 1)
	return 0
}
