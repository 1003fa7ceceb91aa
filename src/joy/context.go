package joy

import (
	"fmt"
	"runtime"
	"sync"
)

// trapReturnAddr is what a fresh context holds in ra: the first switch
// into it "returns" into the trap return path.
const trapReturnAddr = 0xffff_ffff_ffff_f000

// TaskContext is the register save area used by Switch: return address,
// stack pointer and the twelve callee saved registers.
type TaskContext struct {
	RA uint64
	SP uint64
	S  [12]uint64
}

// ContextHandle names a slot of a ContextArena. The zero handle is invalid.
type ContextHandle struct {
	idx int
}

func (h ContextHandle) Valid() bool {
	return h.idx > 0
}

func (h ContextHandle) String() string {
	return fmt.Sprintf("ctx#%d", h.idx)
}

// a slot is one execution flow: its saved registers and the goroutine
// that runs while the flow holds the hart.
type contextSlot struct {
	ctx      TaskContext
	resume   chan bool
	entry    func()
	started  bool
	released bool
}

// ContextArena owns every saved context and the registers of the hart.
// Exactly one flow runs at a time; Switch hands the hart to another flow
// and parks the caller until some later Switch hands it back.
type ContextArena struct {
	mu      sync.Mutex
	slots   []*contextSlot
	free    []int
	hart    TaskContext
	current ContextHandle
}

func NewContextArena() *ContextArena {
	return &ContextArena{slots: []*contextSlot{nil}}
}

func (a *ContextArena) alloc(s *contextSlot) ContextHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx] = s
		return ContextHandle{idx}
	}
	a.slots = append(a.slots, s)
	return ContextHandle{len(a.slots) - 1}
}

// Alloc builds the context of a flow that has never run: the first
// switch to it starts entry on the given kernel stack.
func (a *ContextArena) Alloc(entry func(), kstackTop uint64) ContextHandle {
	return a.alloc(&contextSlot{
		ctx:    TaskContext{RA: trapReturnAddr, SP: kstackTop},
		resume: make(chan bool, 1),
		entry:  entry,
	})
}

// Sentinel is a context for the flow that is already running, usually
// the boot flow. Its registers are filled by the first Switch away.
func (a *ContextArena) Sentinel() ContextHandle {
	h := a.alloc(&contextSlot{resume: make(chan bool, 1), started: true})
	a.mu.Lock()
	a.current = h
	a.mu.Unlock()
	return h
}

func (a *ContextArena) slot(h ContextHandle) *contextSlot {
	if h.idx <= 0 || h.idx >= len(a.slots) || a.slots[h.idx] == nil {
		panic(fmt.Sprintf("unknown context %v", h))
	}
	return a.slots[h.idx]
}

// Saved returns a copy of the registers saved in h.
func (a *ContextArena) Saved(h ContextHandle) TaskContext {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slot(h).ctx
}

// Hart returns the registers of the flow that holds the hart.
func (a *ContextArena) Hart() TaskContext {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hart
}

// Release marks h as never to be resumed and recycles its slot. A
// parked flow is terminated. The running flow keeps its slot until its
// next Switch, which then does not come back.
func (a *ContextArena) Release(h ContextHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.slot(h)
	if s.released {
		panic(fmt.Sprintf("%v released twice", h))
	}
	s.released = true
	if h == a.current {
		return
	}
	a.recycle(h)
	if s.started {
		s.resume <- false
	}
}

func (a *ContextArena) recycle(h ContextHandle) {
	a.slots[h.idx] = nil
	a.free = append(a.free, h.idx)
}

// Switch saves the hart into cur, loads next and gives the hart to the
// flow of next. It returns when cur is switched to again. A released cur
// never comes back: its goroutine exits once the hart is handed over.
func (a *ContextArena) Switch(cur, next ContextHandle) {
	if cur == next {
		return
	}
	a.mu.Lock()
	c := a.slot(cur)
	n := a.slot(next)
	if n.released {
		panic(fmt.Sprintf("switch to released context %v", next))
	}
	released := c.released
	if released {
		a.recycle(cur)
	} else {
		c.ctx = a.hart
	}
	a.hart = n.ctx
	a.current = next
	start := !n.started
	n.started = true
	a.mu.Unlock()

	if start {
		go a.launch(n)
	} else {
		n.resume <- true
	}
	if released || !<-c.resume {
		runtime.Goexit()
	}
}

func (a *ContextArena) launch(s *contextSlot) {
	s.entry()
	panic("task flow returned from its entry")
}
