package mm

import (
	"encoding/binary"
	"fmt"
)

type PTEFlags uint8

const (
	PTEValid PTEFlags = 1 << iota
	PTERead
	PTEWrite
	PTEExec
	PTEUser
	PTEGlobal
	PTEAccessed
	PTEDirty
)

func (f PTEFlags) String() string {
	const names = "VRWXUGAD"
	b := []byte("--------")
	for i := 0; i < 8; i++ {
		if f&(1<<i) != 0 {
			b[i] = names[i]
		}
	}
	return string(b)
}

// PageTableEntry is an Sv39 PTE: 44 bit PPN above bit 10, flags in the
// low byte.
type PageTableEntry uint64

func NewPTE(ppn PhysPageNum, flags PTEFlags) PageTableEntry {
	return PageTableEntry(uint64(ppn)<<10 | uint64(flags))
}

func (p PageTableEntry) PPN() PhysPageNum {
	return PhysPageNum((uint64(p) >> 10) & (1<<ppnWidthSv39 - 1))
}

func (p PageTableEntry) Flags() PTEFlags {
	return PTEFlags(p & 0xff)
}

func (p PageTableEntry) IsValid() bool    { return p.Flags()&PTEValid != 0 }
func (p PageTableEntry) Readable() bool   { return p.Flags()&PTERead != 0 }
func (p PageTableEntry) Writable() bool   { return p.Flags()&PTEWrite != 0 }
func (p PageTableEntry) Executable() bool { return p.Flags()&PTEExec != 0 }
func (p PageTableEntry) User() bool       { return p.Flags()&PTEUser != 0 }

const satpModeSv39 = 8

// PageTable is a three level Sv39 table whose nodes live in frames of a
// FrameAllocator. A table built from a token owns nothing and is only
// good for lookups.
type PageTable struct {
	root   PhysPageNum
	frames []*FrameTracker
	mem    *FrameAllocator
}

type pteSlot struct {
	table PhysPageNum
	index uint64
}

func NewPageTable(mem *FrameAllocator) (*PageTable, error) {
	frame, err := mem.Alloc()
	if err != nil {
		return nil, err
	}
	return &PageTable{root: frame.PPN, frames: []*FrameTracker{frame}, mem: mem}, nil
}

// PageTableFromToken wraps the table a satp value points at.
func (mem *FrameAllocator) PageTableFromToken(token uint64) *PageTable {
	return &PageTable{root: PhysPageNum(token & (1<<ppnWidthSv39 - 1)), mem: mem}
}

// Token is the satp value that selects this table.
func (pt *PageTable) Token() uint64 {
	return satpModeSv39<<60 | uint64(pt.root)
}

func (pt *PageTable) read(s pteSlot) PageTableEntry {
	page := pt.mem.Page(s.table)
	if page == nil {
		panic(fmt.Sprintf("page table node %v has no backing frame", s.table))
	}
	return PageTableEntry(binary.LittleEndian.Uint64(page[s.index*8:]))
}

func (pt *PageTable) write(s pteSlot, pte PageTableEntry) {
	page := pt.mem.Page(s.table)
	if page == nil {
		panic(fmt.Sprintf("page table node %v has no backing frame", s.table))
	}
	binary.LittleEndian.PutUint64(page[s.index*8:], uint64(pte))
}

// walk finds the leaf slot for vpn, building intermediate nodes when
// create is set. ok is false when an intermediate node is missing.
func (pt *PageTable) walk(vpn VirtPageNum, create bool) (slot pteSlot, ok bool, err error) {
	idxs := vpn.Indexes()
	table := pt.root
	for level, idx := range idxs {
		slot = pteSlot{table: table, index: idx}
		if level == 2 {
			return slot, true, nil
		}
		pte := pt.read(slot)
		if !pte.IsValid() {
			if !create {
				return slot, false, nil
			}
			frame, err := pt.mem.Alloc()
			if err != nil {
				return slot, false, err
			}
			pt.frames = append(pt.frames, frame)
			pte = NewPTE(frame.PPN, PTEValid)
			pt.write(slot, pte)
		}
		table = pte.PPN()
	}
	return slot, false, nil
}

// Map installs vpn -> ppn. Mapping a page twice is a kernel bug.
func (pt *PageTable) Map(vpn VirtPageNum, ppn PhysPageNum, flags PTEFlags) error {
	slot, _, err := pt.walk(vpn, true)
	if err != nil {
		return err
	}
	if pt.read(slot).IsValid() {
		panic(fmt.Sprintf("%v is mapped before mapping", vpn))
	}
	pt.write(slot, NewPTE(ppn, flags|PTEValid))
	return nil
}

// Unmap clears the leaf for vpn. Unmapping an invalid page is a kernel bug.
func (pt *PageTable) Unmap(vpn VirtPageNum) {
	slot, ok, _ := pt.walk(vpn, false)
	if !ok || !pt.read(slot).IsValid() {
		panic(fmt.Sprintf("%v is invalid before unmapping", vpn))
	}
	pt.write(slot, 0)
}

// Translate returns the leaf entry of vpn, ok is false if there is none.
func (pt *PageTable) Translate(vpn VirtPageNum) (PageTableEntry, bool) {
	slot, ok, _ := pt.walk(vpn, false)
	if !ok {
		return 0, false
	}
	pte := pt.read(slot)
	if !pte.IsValid() {
		return 0, false
	}
	return pte, true
}

func (pt *PageTable) TranslateVA(va VirtAddr) (PhysAddr, bool) {
	pte, ok := pt.Translate(va.Floor())
	if !ok {
		return 0, false
	}
	return PhysAddr(uint64(pte.PPN().Addr()) + va.PageOffset()), true
}

// Release frees the nodes of the table. Tables built from a token own
// nothing and Release does nothing.
func (pt *PageTable) Release() {
	for _, f := range pt.frames {
		f.Release()
	}
	pt.frames = nil
}
