package syscall

import (
	"equanimity/src/fs"
	"equanimity/src/joy"
	"equanimity/src/mm"
)

// The fd handlers take their own reference to the handle and let go of the
// task before touching the file, so a blocking pipe read never holds the
// task lock.

func sysWrite(k *joy.Kernel, fd int, ptr, length uint64) int64 {
	cur := k.CurrentTask()
	h, err := cur.FileRef(fd)
	if err != nil {
		return -1
	}
	defer h.Close()
	f := h.File()
	if !f.Writable() {
		return -1
	}
	buf, err := mm.AccessUser(k.Frames(), cur.UserToken(), ptr, length, mm.PTERead)
	if err != nil {
		sysLog.Warnf("%v: write from bad buffer %#x+%d", cur, ptr, length)
		return -1
	}
	return int64(f.Write(buf))
}

func sysRead(k *joy.Kernel, fd int, ptr, length uint64) int64 {
	cur := k.CurrentTask()
	h, err := cur.FileRef(fd)
	if err != nil {
		return -1
	}
	defer h.Close()
	f := h.File()
	if !f.Readable() {
		return -1
	}
	buf, err := mm.AccessUser(k.Frames(), cur.UserToken(), ptr, length, mm.PTEWrite)
	if err != nil {
		sysLog.Warnf("%v: read into bad buffer %#x+%d", cur, ptr, length)
		return -1
	}
	return int64(f.Read(buf))
}

func userPath(k *joy.Kernel, cur *joy.TaskControlBlock, ptr uint64) (string, bool) {
	path, err := mm.TranslatedStrSafe(k.Frames(), cur.UserToken(), ptr, MaxPathLen)
	if err != nil {
		sysLog.Warnf("%v: bad path pointer %#x", cur, ptr)
		return "", false
	}
	return path, true
}

func sysOpen(k *joy.Kernel, ptr uint64, flags uint32) int64 {
	cur := k.CurrentTask()
	path, ok := userPath(k, cur, ptr)
	if !ok {
		return -1
	}
	f, ok := k.FS().OpenFile(path, fs.OpenFlags(flags))
	if !ok {
		return -1
	}
	h := fs.NewHandle(f)
	fd, err := cur.AllocFd(h)
	if err != nil {
		h.Close()
		return -1
	}
	return int64(fd)
}

func sysClose(k *joy.Kernel, fd int) int64 {
	if err := k.CurrentTask().CloseFd(fd); err != nil {
		return -1
	}
	return 0
}

func sysDup(k *joy.Kernel, fd int) int64 {
	newFd, err := k.CurrentTask().DupFd(fd)
	if err != nil {
		return -1
	}
	return int64(newFd)
}

// sysPipe stores the read end and the write end fds as two 64 bit words
// at ptr.
func sysPipe(k *joy.Kernel, ptr uint64) int64 {
	cur := k.CurrentTask()
	if _, err := mm.AccessUser(k.Frames(), cur.UserToken(), ptr, 16, mm.PTEWrite); err != nil {
		return -1
	}
	r, w := fs.MakePipe(k.SuspendCurrentAndRunNext)
	rh, wh := fs.NewHandle(r), fs.NewHandle(w)
	rfd, err := cur.AllocFd(rh)
	if err != nil {
		rh.Close()
		wh.Close()
		return -1
	}
	wfd, err := cur.AllocFd(wh)
	if err != nil {
		cur.CloseFd(rfd)
		wh.Close()
		return -1
	}
	mm.PutUint64(k.Frames(), cur.UserToken(), ptr, uint64(rfd))
	mm.PutUint64(k.Frames(), cur.UserToken(), ptr+8, uint64(wfd))
	return 0
}

func sysFstat(k *joy.Kernel, fd int, ptr uint64) int64 {
	cur := k.CurrentTask()
	h, err := cur.FileRef(fd)
	if err != nil {
		return -1
	}
	defer h.Close()
	buf, err := mm.AccessUser(k.Frames(), cur.UserToken(), ptr, fs.StatSize, mm.PTEWrite)
	if err != nil {
		return -1
	}
	st := h.File().Stat()
	buf.CopyIn(st.Bytes())
	return 0
}

func sysLinkat(k *joy.Kernel, oldPtr, newPtr uint64) int64 {
	cur := k.CurrentTask()
	oldName, ok := userPath(k, cur, oldPtr)
	if !ok {
		return -1
	}
	newName, ok := userPath(k, cur, newPtr)
	if !ok || oldName == newName {
		return -1
	}
	if !k.FS().LinkFile(oldName, newName) {
		return -1
	}
	return 0
}

func sysUnlinkat(k *joy.Kernel, ptr uint64) int64 {
	cur := k.CurrentTask()
	name, ok := userPath(k, cur, ptr)
	if !ok || !k.FS().UnlinkFile(name) {
		return -1
	}
	return 0
}
