package mm

import (
	"debug/elf"
	"testing"

	"equanimity/src/lib/loader"
)

func userSpace(t *testing.T) (*FrameAllocator, *MemorySet) {
	t.Helper()
	f := smallAllocator(t, 256)
	m, err := NewBareMemorySet(f)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return f, m
}

func TestMmapRoundsUpAndMapsPages(t *testing.T) {
	_, m := userSpace(t)
	n, err := m.Mmap(0x1000_0000, 4097, 3)
	if err != nil || n != 8192 {
		t.Fatalf("expected 8192, nil got %d %v", n, err)
	}
	for _, vpn := range []VirtPageNum{0x10000, 0x10001} {
		pte, ok := m.Translate(vpn)
		if !ok {
			t.Fatalf("%v not mapped", vpn)
		}
		if !pte.Readable() || !pte.Writable() || pte.Executable() || !pte.User() {
			t.Errorf("%v has flags %v", vpn, pte.Flags())
		}
	}
	if m.FindVPN(0x10002) {
		t.Errorf("mmap mapped one page too many")
	}
}

// The link address is free in a bare set; only loaded images occupy it.
func TestMmapAtLinkAddress(t *testing.T) {
	_, m := userSpace(t)
	n, err := m.Mmap(loader.UserProcessLinkAddr, 4097, 3)
	if err != nil || n != 8192 {
		t.Fatalf("expected 8192, nil got %d %v", n, err)
	}
	for _, vpn := range []VirtPageNum{0x10, 0x11} {
		pte, ok := m.Translate(vpn)
		if !ok || !pte.Readable() || !pte.Writable() || pte.Executable() || !pte.User() {
			t.Errorf("%v not mapped read write user: %v", vpn, pte.Flags())
		}
	}
	if m.FindVPN(0x12) || m.FindVPN(0xf) {
		t.Errorf("mmap mapped outside the request")
	}
}

func TestMmapRejections(t *testing.T) {
	_, m := userSpace(t)
	cases := []struct {
		name               string
		start, length, prt uint64
		want               error
	}{
		{"unaligned", 0x1000_0001, 4096, 1, ErrNotAligned},
		{"port zero", 0x1000_0000, 4096, 0, ErrBadPort},
		{"port high bits", 0x1000_0000, 4096, 0x9, ErrBadPort},
		{"too long", 0x1000_0000, 1<<30 + 1, 1, ErrTooLarge},
		{"into trap context", loader.TrapContext - loader.PageSize, 2 * loader.PageSize, 1, ErrBadAddress},
	}
	for _, c := range cases {
		if _, err := m.Mmap(c.start, c.length, c.prt); err != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, err)
		}
	}
	if len(m.Areas()) != 0 {
		t.Errorf("rejected mmap left areas behind")
	}
	if n, err := m.Mmap(0x1000_0001, 0, 0); n != 0 || err != nil {
		t.Errorf("zero length mmap must succeed trivially, got %d %v", n, err)
	}
}

func TestMmapOverlapIsAtomic(t *testing.T) {
	f, m := userSpace(t)
	if _, err := m.Mmap(0x1000_1000, 4096, 1); err != nil {
		t.Fatalf("%v", err)
	}
	used := f.InUse()
	// three pages, the middle one already mapped
	if _, err := m.Mmap(0x1000_0000, 3*4096, 3); err != ErrOverlap {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	if m.FindVPN(0x10000) || m.FindVPN(0x10002) {
		t.Errorf("failed mmap mapped part of the range")
	}
	if f.InUse() != used {
		t.Errorf("failed mmap leaked %d frames", f.InUse()-used)
	}
}

func TestMunmapRoundTrip(t *testing.T) {
	f, m := userSpace(t)
	base := f.InUse()
	if _, err := m.Mmap(0x1000_0000, 3*4096, 3); err != nil {
		t.Fatalf("%v", err)
	}
	n, err := m.Munmap(0x1000_1000, 100)
	if err != nil || n != 100 {
		t.Fatalf("munmap of middle page: %d %v", n, err)
	}
	if !m.FindVPN(0x10000) || m.FindVPN(0x10001) || !m.FindVPN(0x10002) {
		t.Errorf("munmap removed the wrong pages")
	}
	if len(m.Areas()) != 2 {
		t.Errorf("expected area split in two, got %d areas", len(m.Areas()))
	}
	// range now has a hole, so it is not fully mapped
	if _, err := m.Munmap(0x1000_0000, 3*4096); err != ErrNotMapped {
		t.Errorf("expected ErrNotMapped, got %v", err)
	}
	if !m.FindVPN(0x10000) {
		t.Errorf("failed munmap unmapped a page")
	}
	// the hole can be mapped again
	if _, err := m.Mmap(0x1000_1000, 4096, 1); err != nil {
		t.Errorf("remapping the hole failed: %v", err)
	}
	if _, err := m.Munmap(0x1000_0000, 3*4096); err != nil {
		t.Errorf("munmap across areas failed: %v", err)
	}
	if len(m.Areas()) != 0 {
		t.Errorf("areas left after full munmap: %d", len(m.Areas()))
	}
	m.Release()
	if f.InUse() != base-1 {
		t.Errorf("frames leaked: %d in use, started with %d plus the root", f.InUse(), base)
	}
}

func TestMunmapRejections(t *testing.T) {
	_, m := userSpace(t)
	if _, err := m.Munmap(0x1000_0000, 4096); err != ErrNotMapped {
		t.Errorf("expected ErrNotMapped, got %v", err)
	}
	if _, err := m.Munmap(0x1000_0010, 4096); err != ErrNotAligned {
		t.Errorf("expected ErrNotAligned, got %v", err)
	}
	if n, err := m.Munmap(0x1000_0000, 0); n != 0 || err != nil {
		t.Errorf("zero length munmap must succeed trivially")
	}
}

func TestMunmapCannotTouchKernelPages(t *testing.T) {
	f := smallAllocator(t, 256)
	image := loader.BuildELF(loader.UserProcessLinkAddr, []loader.Segment{
		{VAddr: loader.UserProcessLinkAddr, Flags: elf.PF_R | elf.PF_X, Data: []byte("code")},
	})
	m, _, _, err := FromELF(f, image)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if _, err := m.Munmap(loader.TrapContext, loader.PageSize); err == nil {
		t.Errorf("munmap of the trap context must fail")
	}
}

func TestFromELF(t *testing.T) {
	f := smallAllocator(t, 256)
	image := loader.BuildELF(loader.UserProcessLinkAddr, []loader.Segment{
		{VAddr: loader.UserProcessLinkAddr, Flags: elf.PF_R | elf.PF_X, Data: []byte("code")},
		{VAddr: loader.UserProcessLinkAddr + loader.PageSize, Flags: elf.PF_R | elf.PF_W,
			Data: []byte("data"), MemSize: 2 * loader.PageSize},
	})
	m, sp, entry, err := FromELF(f, image)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if entry != loader.UserProcessLinkAddr {
		t.Errorf("entry %x", entry)
	}
	// segments end at 0x13000, guard page, two stack pages
	if sp != 0x1_3000+loader.PageSize+loader.UserStackSize {
		t.Errorf("user sp %x", sp)
	}
	if m.FindVPN(0x13) {
		t.Errorf("guard page is mapped")
	}
	text, _ := m.Translate(0x10)
	if !text.Executable() || text.Writable() || !text.User() {
		t.Errorf("text flags %v", text.Flags())
	}
	if got := string(f.Page(text.PPN())[:4]); got != "code" {
		t.Errorf("text contents %q", got)
	}
	tc, ok := m.Translate(NewVirtAddr(loader.TrapContext).Floor())
	if !ok || tc.User() {
		t.Errorf("trap context must be mapped and kernel only")
	}
	tr, ok := m.Translate(NewVirtAddr(loader.Trampoline).Floor())
	if !ok || !tr.Executable() || tr.User() {
		t.Errorf("trampoline mapping wrong")
	}
}

func TestFromELFRejectsGarbage(t *testing.T) {
	f := smallAllocator(t, 64)
	if _, _, _, err := FromELF(f, []byte("garbage")); err == nil {
		t.Errorf("expected error")
	}
	if f.InUse() != 0 {
		t.Errorf("failed load leaked frames")
	}
}

func TestKernelSpaceRemap(t *testing.T) {
	f := NewFrameAllocator(PhysAddr(loader.KernelEnd), PhysAddr(loader.MemoryEnd))
	k, err := NewKernelMemorySet(f)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if err := k.RemapTest(); err != nil {
		t.Errorf("remap test: %v", err)
	}
	pte, ok := k.Translate(NewVirtAddr(loader.KernelEnd + 5*loader.PageSize).Floor())
	if !ok || pte.PPN() != PhysAddr(loader.KernelEnd+5*loader.PageSize).Floor() {
		t.Errorf("physical memory is not identity mapped")
	}
}
