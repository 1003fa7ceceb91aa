package mm

import (
	"bytes"
	"debug/elf"
	"fmt"

	"equanimity/src/lib/loader"
)

type MapType int

const (
	Identical MapType = iota
	Framed
)

// MapPermission uses the same bit positions as the PTE flags.
type MapPermission uint8

const (
	PermR MapPermission = MapPermission(PTERead)
	PermW MapPermission = MapPermission(PTEWrite)
	PermX MapPermission = MapPermission(PTEExec)
	PermU MapPermission = MapPermission(PTEUser)
)

// MaxMmapLen is the largest request mmap and munmap accept.
const MaxMmapLen = 1 << 30

// MapArea is a contiguous run of pages with one mapping type and one
// permission. Framed areas own a frame per page.
type MapArea struct {
	vpnRange   VPNRange
	dataFrames map[VirtPageNum]*FrameTracker
	mapType    MapType
	perm       MapPermission
}

func NewMapArea(start, end VirtAddr, t MapType, perm MapPermission) *MapArea {
	return &MapArea{
		vpnRange:   NewVPNRange(start.Floor(), end.Ceil()),
		dataFrames: make(map[VirtPageNum]*FrameTracker),
		mapType:    t,
		perm:       perm,
	}
}

func (a *MapArea) Range() VPNRange {
	return a.vpnRange
}

func (a *MapArea) Permission() MapPermission {
	return a.perm
}

func (a *MapArea) mapOne(pt *PageTable, vpn VirtPageNum) error {
	var ppn PhysPageNum
	switch a.mapType {
	case Identical:
		ppn = PhysPageNum(vpn)
	case Framed:
		frame, err := pt.mem.Alloc()
		if err != nil {
			return err
		}
		ppn = frame.PPN
		a.dataFrames[vpn] = frame
	}
	if err := pt.Map(vpn, ppn, PTEFlags(a.perm)); err != nil {
		if f, ok := a.dataFrames[vpn]; ok {
			f.Release()
			delete(a.dataFrames, vpn)
		}
		return err
	}
	return nil
}

func (a *MapArea) unmapOne(pt *PageTable, vpn VirtPageNum) {
	if f, ok := a.dataFrames[vpn]; ok {
		f.Release()
		delete(a.dataFrames, vpn)
	}
	pt.Unmap(vpn)
}

// mapAll maps every page of the area, unwinding on failure.
func (a *MapArea) mapAll(pt *PageTable) error {
	for vpn := a.vpnRange.Start; vpn < a.vpnRange.End; vpn++ {
		if err := a.mapOne(pt, vpn); err != nil {
			for done := a.vpnRange.Start; done < vpn; done++ {
				a.unmapOne(pt, done)
			}
			return err
		}
	}
	return nil
}

func (a *MapArea) unmapAll(pt *PageTable) {
	for vpn := a.vpnRange.Start; vpn < a.vpnRange.End; vpn++ {
		a.unmapOne(pt, vpn)
	}
}

// copyData writes data into the pages of a framed area starting offset
// bytes into its first page.
func (a *MapArea) copyData(data []byte, offset uint64) {
	vpn := a.vpnRange.Start
	for len(data) > 0 {
		page := a.dataFrames[vpn].Bytes()
		n := copy(page[offset:], data)
		data = data[n:]
		offset = 0
		vpn++
	}
}

// split cuts the area around vpn, returning the pieces before and after
// it that still hold pages. vpn itself must already be unmapped.
func (a *MapArea) split(vpn VirtPageNum) (before, after *MapArea) {
	if vpn > a.vpnRange.Start {
		before = &MapArea{vpnRange: NewVPNRange(a.vpnRange.Start, vpn),
			dataFrames: make(map[VirtPageNum]*FrameTracker), mapType: a.mapType, perm: a.perm}
	}
	if vpn+1 < a.vpnRange.End {
		after = &MapArea{vpnRange: NewVPNRange(vpn+1, a.vpnRange.End),
			dataFrames: make(map[VirtPageNum]*FrameTracker), mapType: a.mapType, perm: a.perm}
	}
	for v, f := range a.dataFrames {
		if v < vpn {
			before.dataFrames[v] = f
		} else {
			after.dataFrames[v] = f
		}
	}
	return before, after
}

// MemorySet is an address space: a page table plus the areas mapped in
// it. It is not safe for concurrent use, the owner serializes access.
type MemorySet struct {
	pageTable *PageTable
	areas     []*MapArea
	mem       *FrameAllocator
}

func NewBareMemorySet(mem *FrameAllocator) (*MemorySet, error) {
	pt, err := NewPageTable(mem)
	if err != nil {
		return nil, err
	}
	return &MemorySet{pageTable: pt, mem: mem}, nil
}

func (m *MemorySet) Token() uint64 {
	return m.pageTable.Token()
}

func (m *MemorySet) PageTable() *PageTable {
	return m.pageTable
}

func (m *MemorySet) Areas() []*MapArea {
	return m.areas
}

func (m *MemorySet) Translate(vpn VirtPageNum) (PageTableEntry, bool) {
	return m.pageTable.Translate(vpn)
}

// FindVPN reports whether vpn is currently mapped.
func (m *MemorySet) FindVPN(vpn VirtPageNum) bool {
	_, ok := m.pageTable.Translate(vpn)
	return ok
}

func (m *MemorySet) push(area *MapArea, data []byte, offset uint64) error {
	if err := area.mapAll(m.pageTable); err != nil {
		return err
	}
	if data != nil {
		area.copyData(data, offset)
	}
	m.areas = append(m.areas, area)
	return nil
}

// InsertFramedArea maps [start, end) with fresh frames. The caller
// guarantees the range is not mapped yet.
func (m *MemorySet) InsertFramedArea(start, end VirtAddr, perm MapPermission) error {
	return m.push(NewMapArea(start, end, Framed, perm), nil, 0)
}

// RemoveAreaWithStartVPN unmaps the area beginning at start, if any.
func (m *MemorySet) RemoveAreaWithStartVPN(start VirtPageNum) bool {
	for i, a := range m.areas {
		if a.vpnRange.Start == start {
			a.unmapAll(m.pageTable)
			m.areas = append(m.areas[:i], m.areas[i+1:]...)
			return true
		}
	}
	return false
}

func (m *MemorySet) mapTrampoline() error {
	return m.pageTable.Map(NewVirtAddr(loader.Trampoline).Floor(),
		PhysAddr(loader.TrampolinePhys).Floor(), PTERead|PTEExec)
}

// NewKernelMemorySet identity maps the kernel image and all of physical
// memory, plus the trampoline.
func NewKernelMemorySet(mem *FrameAllocator) (*MemorySet, error) {
	m, err := NewBareMemorySet(mem)
	if err != nil {
		return nil, err
	}
	if err := m.mapTrampoline(); err != nil {
		return nil, err
	}
	sections := []struct {
		name       string
		start, end uint64
		perm       MapPermission
	}{
		{".text", loader.KernelTextStart, loader.KernelRodataStart, PermR | PermX},
		{".rodata", loader.KernelRodataStart, loader.KernelDataStart, PermR},
		{".data", loader.KernelDataStart, loader.KernelEnd, PermR | PermW},
		{"physical memory", loader.KernelEnd, loader.MemoryEnd, PermR | PermW},
	}
	for _, s := range sections {
		mmLog.Debugf("mapping %-15s [%#x, %#x)", s.name, s.start, s.end)
		area := NewMapArea(NewVirtAddr(s.start), NewVirtAddr(s.end), Identical, s.perm)
		if err := m.push(area, nil, 0); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FromELF builds a user address space from an image: its loadable
// segments, a guard page, the user stack, the trap context page and the
// trampoline. It returns the space, the user stack top and the entry.
func FromELF(mem *FrameAllocator, image []byte) (*MemorySet, uint64, uint64, error) {
	elfFile, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrBadELF, err)
	}
	m, err := NewBareMemorySet(mem)
	if err != nil {
		return nil, 0, 0, err
	}
	fail := func(e error) (*MemorySet, uint64, uint64, error) {
		m.Release()
		return nil, 0, 0, e
	}
	if err := m.mapTrampoline(); err != nil {
		return fail(err)
	}
	maxEnd := VirtPageNum(0)
	for _, p := range elfFile.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		start := NewVirtAddr(p.Vaddr)
		end := NewVirtAddr(p.Vaddr + p.Memsz)
		if end.Ceil() > NewVirtAddr(loader.TrapContext).Floor() {
			return fail(fmt.Errorf("%w: segment at %v reaches the trap context", ErrBadELF, start))
		}
		perm := PermU
		if p.Flags&elf.PF_R != 0 {
			perm |= PermR
		}
		if p.Flags&elf.PF_W != 0 {
			perm |= PermW
		}
		if p.Flags&elf.PF_X != 0 {
			perm |= PermX
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil && p.Filesz > 0 {
			return fail(fmt.Errorf("%w: %v", ErrBadELF, err))
		}
		area := NewMapArea(start, end, Framed, perm)
		if err := m.push(area, data, start.PageOffset()); err != nil {
			return fail(err)
		}
		if area.vpnRange.End > maxEnd {
			maxEnd = area.vpnRange.End
		}
	}
	if maxEnd == 0 {
		return fail(fmt.Errorf("%w: no loadable segment", ErrBadELF))
	}
	stackBottom := uint64(maxEnd.Addr()) + loader.PageSize // guard page
	stackTop := stackBottom + loader.UserStackSize
	if err := m.InsertFramedArea(NewVirtAddr(stackBottom), NewVirtAddr(stackTop), PermR|PermW|PermU); err != nil {
		return fail(err)
	}
	if err := m.InsertFramedArea(NewVirtAddr(loader.TrapContext), NewVirtAddr(loader.Trampoline), PermR|PermW); err != nil {
		return fail(err)
	}
	return m, stackTop, elfFile.Entry, nil
}

// Mmap maps [start, start+length) rounded up to whole pages with the
// protection in port (bit 0 read, bit 1 write, bit 2 exec), user
// accessible. Nothing is changed unless the whole range is free. It
// returns the rounded length. A zero length request succeeds trivially.
func (m *MemorySet) Mmap(start, length, port uint64) (uint64, error) {
	if length == 0 {
		return 0, nil
	}
	if start%loader.PageSize != 0 {
		return 0, ErrNotAligned
	}
	if port&^0x7 != 0 || port&0x7 == 0 {
		return 0, ErrBadPort
	}
	if length > MaxMmapLen {
		return 0, ErrTooLarge
	}
	r, err := userRange(start, length)
	if err != nil {
		return 0, err
	}
	for vpn := r.Start; vpn < r.End; vpn++ {
		if m.FindVPN(vpn) {
			return 0, ErrOverlap
		}
	}
	perm := MapPermission(port<<1) | PermU
	if err := m.InsertFramedArea(r.Start.Addr(), r.End.Addr(), perm); err != nil {
		return 0, err
	}
	for vpn := r.Start; vpn < r.End; vpn++ {
		if pte, ok := m.Translate(vpn); !ok || pte.Flags()&PTEFlags(perm) != PTEFlags(perm) {
			panic(fmt.Sprintf("mmap left %v unmapped or with wrong permissions", vpn))
		}
	}
	return r.Len() * loader.PageSize, nil
}

// Munmap unmaps [start, start+length) rounded up to whole pages. Every
// page of the range must be mapped, else nothing changes. It returns the
// length as requested. A zero length request succeeds trivially.
func (m *MemorySet) Munmap(start, length uint64) (uint64, error) {
	if length == 0 {
		return 0, nil
	}
	if start%loader.PageSize != 0 {
		return 0, ErrNotAligned
	}
	if length > MaxMmapLen {
		return 0, ErrTooLarge
	}
	r, err := userRange(start, length)
	if err != nil {
		return 0, err
	}
	for vpn := r.Start; vpn < r.End; vpn++ {
		if m.areaOf(vpn) < 0 {
			return 0, ErrNotMapped
		}
	}
	for vpn := r.Start; vpn < r.End; vpn++ {
		m.unmapPage(vpn)
	}
	for vpn := r.Start; vpn < r.End; vpn++ {
		if m.FindVPN(vpn) {
			panic(fmt.Sprintf("munmap left %v mapped", vpn))
		}
	}
	return length, nil
}

func userRange(start, length uint64) (VPNRange, error) {
	end := start + length
	if end < start || end > loader.TrapContext {
		return VPNRange{}, ErrBadAddress
	}
	return NewVPNRange(VirtAddr(start).Floor(), VirtAddr(end).Ceil()), nil
}

// areaOf returns the index of the user area that maps vpn, or -1. Pages
// that are mapped but not user accessible do not count.
func (m *MemorySet) areaOf(vpn VirtPageNum) int {
	for i, a := range m.areas {
		if a.vpnRange.Contains(vpn) && a.perm&PermU != 0 {
			return i
		}
	}
	return -1
}

func (m *MemorySet) unmapPage(vpn VirtPageNum) {
	i := m.areaOf(vpn)
	a := m.areas[i]
	a.unmapOne(m.pageTable, vpn)
	before, after := a.split(vpn)
	rest := append([]*MapArea{}, m.areas[i+1:]...)
	m.areas = m.areas[:i]
	if before != nil {
		m.areas = append(m.areas, before)
	}
	if after != nil {
		m.areas = append(m.areas, after)
	}
	m.areas = append(m.areas, rest...)
}

// Release unmaps every area and frees the page table.
func (m *MemorySet) Release() {
	for _, a := range m.areas {
		a.unmapAll(m.pageTable)
	}
	m.areas = nil
	m.pageTable.Release()
}

// RemapTest checks the kernel image permissions in a kernel space.
func (m *MemorySet) RemapTest() error {
	check := func(addr uint64, want, deny PTEFlags) error {
		pte, ok := m.Translate(NewVirtAddr(addr).Floor())
		if !ok {
			return fmt.Errorf("%#x is not mapped", addr)
		}
		if pte.Flags()&want != want || pte.Flags()&deny != 0 {
			return fmt.Errorf("%#x has flags %v", addr, pte.Flags())
		}
		return nil
	}
	mid := func(a, b uint64) uint64 { return (a + b) / 2 }
	if err := check(mid(loader.KernelTextStart, loader.KernelRodataStart), PTEExec, PTEWrite); err != nil {
		return err
	}
	if err := check(mid(loader.KernelRodataStart, loader.KernelDataStart), PTERead, PTEWrite|PTEExec); err != nil {
		return err
	}
	if err := check(mid(loader.KernelDataStart, loader.KernelEnd), PTEWrite, PTEExec); err != nil {
		return err
	}
	mmLog.Infof("remap_test passed!")
	return nil
}
