package fs

import (
	"sort"
	"sync"

	"equanimity/src/mm"
)

type inode struct {
	mu    sync.Mutex
	id    uint64
	data  []byte
	nlink uint32
}

// RamFS is a flat, single directory file system kept in memory. It
// stands in for the block device backed file system of a real board.
type RamFS struct {
	mu      sync.Mutex
	entries map[string]*inode
	nextIno uint64
}

func NewRamFS() *RamFS {
	return &RamFS{entries: make(map[string]*inode), nextIno: 1}
}

// OSInode is an open file of the RamFS.
type OSInode struct {
	mu       sync.Mutex
	readable bool
	writable bool
	offset   int
	inode    *inode
}

// OpenFile opens name. CREATE makes the file if needed and truncates an
// existing one; TRUNC truncates an existing file. ok is false if the
// file does not exist and CREATE was not given.
func (r *RamFS) OpenFile(name string, flags OpenFlags) (*OSInode, bool) {
	readable, writable := flags.ReadWrite()
	r.mu.Lock()
	defer r.mu.Unlock()
	ino, found := r.entries[name]
	switch {
	case flags&OpenCREATE != 0:
		if found {
			ino.mu.Lock()
			ino.data = nil
			ino.mu.Unlock()
		} else {
			ino = &inode{id: r.nextIno, nlink: 1}
			r.nextIno++
			r.entries[name] = ino
			fsLog.Debugf("created %s as inode %d", name, ino.id)
		}
	case !found:
		return nil, false
	case flags&OpenTRUNC != 0:
		ino.mu.Lock()
		ino.data = nil
		ino.mu.Unlock()
	}
	return &OSInode{readable: readable, writable: writable, inode: ino}, true
}

// LinkFile adds newName as another name for oldName.
func (r *RamFS) LinkFile(oldName, newName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ino, ok := r.entries[oldName]
	if !ok || oldName == newName {
		return false
	}
	if _, taken := r.entries[newName]; taken {
		return false
	}
	r.entries[newName] = ino
	ino.mu.Lock()
	ino.nlink++
	ino.mu.Unlock()
	return true
}

// UnlinkFile removes one name. Open files keep their data.
func (r *RamFS) UnlinkFile(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ino, ok := r.entries[name]
	if !ok {
		return false
	}
	delete(r.entries, name)
	ino.mu.Lock()
	ino.nlink--
	ino.mu.Unlock()
	return true
}

// NLink returns the hard link count of the named file.
func (r *RamFS) NLink(name string) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ino, ok := r.entries[name]
	if !ok {
		return 0, false
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.nlink, true
}

// ListApps returns every name in the root directory, sorted.
func (r *RamFS) ListApps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WriteFile creates or replaces name with data, used to install images.
func (r *RamFS) WriteFile(name string, data []byte) {
	f, _ := r.OpenFile(name, OpenCREATE|OpenWRONLY)
	f.inode.mu.Lock()
	f.inode.data = append([]byte(nil), data...)
	f.inode.mu.Unlock()
}

func (f *OSInode) Readable() bool { return f.readable }
func (f *OSInode) Writable() bool { return f.writable }

func (f *OSInode) Read(buf mm.UserBuffer) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inode.mu.Lock()
	var rest []byte
	if f.offset < len(f.inode.data) {
		rest = f.inode.data[f.offset:]
	}
	n := buf.CopyIn(rest)
	f.inode.mu.Unlock()
	f.offset += n
	return n
}

func (f *OSInode) Write(buf mm.UserBuffer) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := buf.Bytes()
	f.inode.mu.Lock()
	end := f.offset + len(data)
	if end > len(f.inode.data) {
		grown := make([]byte, end)
		copy(grown, f.inode.data)
		f.inode.data = grown
	}
	copy(f.inode.data[f.offset:], data)
	f.inode.mu.Unlock()
	f.offset = end
	return len(data)
}

// ReadAll returns the rest of the file from the current offset.
func (f *OSInode) ReadAll() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inode.mu.Lock()
	defer f.inode.mu.Unlock()
	if f.offset >= len(f.inode.data) {
		return nil
	}
	out := append([]byte(nil), f.inode.data[f.offset:]...)
	f.offset = len(f.inode.data)
	return out
}

func (f *OSInode) Stat() Stat {
	f.inode.mu.Lock()
	defer f.inode.mu.Unlock()
	return Stat{Ino: f.inode.id, Mode: StatFile, NLink: f.inode.nlink}
}
