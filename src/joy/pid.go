package joy

import (
	"fmt"
	"sync"
)

type PID uint64

// PidAllocator hands out the lowest recycled pid first, then new ones.
type PidAllocator struct {
	mu       sync.Mutex
	current  PID
	recycled []PID
}

func (p *PidAllocator) Alloc() PID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.recycled); n > 0 {
		lowest := 0
		for i, r := range p.recycled {
			if r < p.recycled[lowest] {
				lowest = i
			}
		}
		pid := p.recycled[lowest]
		p.recycled = append(p.recycled[:lowest], p.recycled[lowest+1:]...)
		return pid
	}
	pid := p.current
	p.current++
	return pid
}

func (p *PidAllocator) Dealloc(pid PID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pid >= p.current {
		panic(fmt.Sprintf("pid %d has not been allocated", pid))
	}
	for _, r := range p.recycled {
		if r == pid {
			panic(fmt.Sprintf("pid %d has been deallocated", pid))
		}
	}
	p.recycled = append(p.recycled, pid)
}
