package joy

import "equanimity/src/fs"

// MaxOpenFiles bounds the fd table of a task.
const MaxOpenFiles = 64

// AllocFd installs h in the lowest free slot and returns its index.
func (t *TaskControlBlock) AllocFd(h *fs.Handle) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocFdLocked(h)
}

func (t *TaskControlBlock) allocFdLocked(h *fs.Handle) (int, error) {
	for i, slot := range t.inner.fdTable {
		if slot == nil {
			t.inner.fdTable[i] = h
			return i, nil
		}
	}
	if len(t.inner.fdTable) >= MaxOpenFiles {
		return -1, MakeError(ErrorFileTooManyOpen, t.pid)
	}
	t.inner.fdTable = append(t.inner.fdTable, h)
	return len(t.inner.fdTable) - 1, nil
}

// FileRef returns a new reference to the handle in slot fd. The caller
// closes it when its I/O is done, so the file outlives a concurrent close
// of fd.
func (t *TaskControlBlock) FileRef(fd int) (*fs.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.inner.fdTable) || t.inner.fdTable[fd] == nil {
		return nil, MakeError(ErrorFileBadDescriptor, t.pid)
	}
	return t.inner.fdTable[fd].Dup(), nil
}

// CloseFd empties slot fd and drops its reference.
func (t *TaskControlBlock) CloseFd(fd int) error {
	t.mu.Lock()
	if fd < 0 || fd >= len(t.inner.fdTable) || t.inner.fdTable[fd] == nil {
		t.mu.Unlock()
		return MakeError(ErrorFileBadDescriptor, t.pid)
	}
	h := t.inner.fdTable[fd]
	t.inner.fdTable[fd] = nil
	t.mu.Unlock()
	h.Close()
	return nil
}

// DupFd puts another reference to the handle of fd in the lowest free slot.
func (t *TaskControlBlock) DupFd(fd int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.inner.fdTable) || t.inner.fdTable[fd] == nil {
		return -1, MakeError(ErrorFileBadDescriptor, t.pid)
	}
	h := t.inner.fdTable[fd].Dup()
	newFd, err := t.allocFdLocked(h)
	if err != nil {
		h.Close()
	}
	return newFd, err
}

// OpenFds counts the occupied slots.
func (t *TaskControlBlock) OpenFds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, h := range t.inner.fdTable {
		if h != nil {
			n++
		}
	}
	return n
}
