package mm

import (
	"fmt"
	"sync"

	"equanimity/src/lib/loader"
	"equanimity/src/lib/trust"
	"equanimity/src/lib/upbeat"
)

// FrameAllocator hands out the physical frames between two addresses and
// holds the simulated contents of those frames. Only frames it manages
// have backing store, everything else in the physical address space is
// mapped but unreadable.
type FrameAllocator struct {
	mu     sync.Mutex
	base   PhysPageNum
	count  uint32
	inUse  *upbeat.BitSet
	search upbeat.BitIndex
	mem    []byte
}

var mmLog = trust.NewLogger("mm")

// FrameTracker owns one frame until Release is called.
type FrameTracker struct {
	PPN   PhysPageNum
	alloc *FrameAllocator
}

func NewFrameAllocator(start, end PhysAddr) *FrameAllocator {
	first, last := start.Ceil(), end.Floor()
	if last <= first {
		panic(fmt.Sprintf("no frames between %v and %v", start, end))
	}
	count := uint32(last - first)
	bitmapSize := (count + 63) &^ 63
	bs, err := upbeat.NewBitSet(bitmapSize)
	if err != nil {
		panic(err.Error())
	}
	for i := count; i < bitmapSize; i++ {
		bs.Set(upbeat.BitIndex(i)) // not real frames
	}
	f := &FrameAllocator{
		base:  first,
		count: count,
		inUse: bs,
		mem:   make([]byte, uint64(count)*loader.PageSize),
	}
	mmLog.Debugf("frame allocator: %v..%v (%d frames)", first, last, count)
	return f
}

// Alloc returns a zeroed frame.
func (f *FrameAllocator) Alloc() (*FrameTracker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bit := f.inUse.FirstClear(f.search)
	if bit == upbeat.NoBit {
		return nil, ErrOutOfFrames
	}
	f.inUse.Set(bit)
	f.search = bit + 1
	ppn := f.base + PhysPageNum(bit)
	page := f.pageLocked(ppn)
	for i := range page {
		page[i] = 0
	}
	return &FrameTracker{PPN: ppn, alloc: f}, nil
}

// Dealloc returns the frame to the pool. Freeing a frame that is not
// allocated means the kernel lost track of its memory.
func (f *FrameAllocator) Dealloc(ppn PhysPageNum) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ppn < f.base || uint32(ppn-f.base) >= f.count {
		panic(fmt.Sprintf("frame %v is not managed by this allocator", ppn))
	}
	bit := upbeat.BitIndex(ppn - f.base)
	if !f.inUse.On(bit) {
		panic(fmt.Sprintf("frame %v has not been allocated", ppn))
	}
	f.inUse.Clear(bit)
	if bit < f.search {
		f.search = bit
	}
}

// IsFree is true if the frame is managed and not in use.
func (f *FrameAllocator) IsFree(ppn PhysPageNum) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ppn < f.base || uint32(ppn-f.base) >= f.count {
		return false
	}
	return !f.inUse.On(upbeat.BitIndex(ppn - f.base))
}

// InUse is the number of frames handed out.
func (f *FrameAllocator) InUse() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inUse.Count() - int(f.inUse.Size()-f.count)
}

// Page returns the contents of a frame, nil if the frame has no backing.
func (f *FrameAllocator) Page(ppn PhysPageNum) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageLocked(ppn)
}

func (f *FrameAllocator) pageLocked(ppn PhysPageNum) []byte {
	if ppn < f.base || uint32(ppn-f.base) >= f.count {
		return nil
	}
	off := uint64(ppn-f.base) * loader.PageSize
	return f.mem[off : off+loader.PageSize : off+loader.PageSize]
}

func (t *FrameTracker) Bytes() []byte {
	return t.alloc.Page(t.PPN)
}

func (t *FrameTracker) Release() {
	t.alloc.Dealloc(t.PPN)
}
