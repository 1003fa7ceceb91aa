package fs

import (
	"fmt"
	"sync/atomic"
)

// Handle is a counted share of a File. Every fd slot and every syscall
// in flight holds one reference; the file is released when the last
// reference is closed.
type Handle struct {
	file File
	refs int32
}

func NewHandle(f File) *Handle {
	return &Handle{file: f, refs: 1}
}

func (h *Handle) File() File {
	return h.file
}

// Dup takes another reference to the same file.
func (h *Handle) Dup() *Handle {
	if atomic.AddInt32(&h.refs, 1) <= 1 {
		panic("dup of a closed handle")
	}
	return h
}

// Close drops one reference.
func (h *Handle) Close() {
	n := atomic.AddInt32(&h.refs, -1)
	switch {
	case n < 0:
		panic(fmt.Sprintf("handle closed too many times (%d)", n))
	case n == 0:
		if r, ok := h.file.(Releaser); ok {
			r.Release()
		}
	}
}

func (h *Handle) Refs() int {
	return int(atomic.LoadInt32(&h.refs))
}
