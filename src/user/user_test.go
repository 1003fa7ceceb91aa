package user

import (
	"debug/elf"
	"errors"
	"sort"
	"testing"

	"equanimity/src/lib/loader"
	"equanimity/src/mm"
)

type faulted struct {
	kind Fault
	addr uint64
}

// fakeTrapper answers every ecall with a7+a0 and turns faults into panics.
type fakeTrapper struct {
	calls []uint64
}

func (f *fakeTrapper) Ecall(regs *[32]uint64) {
	f.calls = append(f.calls, regs[RegA7])
	regs[RegA0] = regs[RegA7] + regs[RegA0]
}

func (f *fakeTrapper) Fault(kind Fault, addr uint64) {
	panic(faulted{kind, addr})
}

func loadImage(t *testing.T, image []byte) (*mm.FrameAllocator, *mm.MemorySet, uint64, uint64) {
	t.Helper()
	mem := mm.NewFrameAllocator(loader.KernelEnd, loader.KernelEnd+64*loader.PageSize)
	set, sp, entry, err := mm.FromELF(mem, image)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return mem, set, sp, entry
}

func expectFault(t *testing.T, want Fault, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		f, ok := r.(faulted)
		if !ok {
			t.Errorf("expected %v, got %v", want, r)
			return
		}
		if f.kind != want {
			t.Errorf("expected %v, got %v at %#x", want, f.kind, f.addr)
		}
	}()
	fn()
}

func TestImageResolvesToItsProgram(t *testing.T) {
	mem, set, _, entry := loadImage(t, Image("hello"))
	if entry != loader.UserProcessLinkAddr {
		t.Errorf("unexpected entry %#x", entry)
	}
	p, name, err := Resolve(mem, set.Token(), entry)
	if err != nil || p == nil || name != "hello" {
		t.Errorf("expected hello, got %q %v", name, err)
	}
	if _, _, err := Resolve(mem, set.Token(), DataStart); err == nil {
		t.Errorf("resolved a program in the data page")
	}
}

func TestResolveRejectsForeignText(t *testing.T) {
	image := loader.BuildELF(loader.UserProcessLinkAddr, []loader.Segment{
		{VAddr: loader.UserProcessLinkAddr, Flags: elf.PF_R | elf.PF_X, Data: []byte("\x13\x00\x00\x00 nop sled....")},
	})
	mem, set, _, entry := loadImage(t, image)
	if _, _, err := Resolve(mem, set.Token(), entry); !errors.Is(err, ErrNoProgram) {
		t.Errorf("expected ErrNoProgram, got %v", err)
	}
	unknown := loader.BuildELF(loader.UserProcessLinkAddr, []loader.Segment{
		{VAddr: loader.UserProcessLinkAddr, Flags: elf.PF_R | elf.PF_X, Data: []byte(textMagic + "nobody\x00")},
	})
	mem, set, _, entry = loadImage(t, unknown)
	if _, name, err := Resolve(mem, set.Token(), entry); !errors.Is(err, ErrNoProgram) || name != "nobody" {
		t.Errorf("expected unregistered nobody, got %q %v", name, err)
	}
}

func TestEnvMemory(t *testing.T) {
	mem, set, sp, _ := loadImage(t, Image("hello"))
	e := NewEnv(&fakeTrapper{}, mem, set.Token(), sp)

	mark := e.SP()
	p := e.Alloca(13)
	if p%8 != 0 || p >= mark || mark-p < 13 {
		t.Errorf("bad alloca %#x below %#x", p, mark)
	}
	s := e.CString("hi there")
	if got := string(e.Load(s, 9)); got != "hi there\x00" {
		t.Errorf("read back %q", got)
	}
	e.StoreUint64(DataStart+8, 0xdeadbeef)
	if e.LoadUint64(DataStart+8) != 0xdeadbeef {
		t.Errorf("data page lost a store")
	}
	e.Store(DataStart, []byte{0xfe, 0xff, 0xff, 0xff})
	if e.LoadInt32(DataStart) != -2 {
		t.Errorf("expected -2, got %d", e.LoadInt32(DataStart))
	}
	e.SetSP(mark)
	if e.SP() != mark {
		t.Errorf("stack pointer not restored")
	}

	expectFault(t, FaultLoad, func() { e.Load(0, 8) })
	expectFault(t, FaultStore, func() { e.StoreUint64(loader.UserProcessLinkAddr, 1) })
	// the trap context page is not user accessible
	expectFault(t, FaultStore, func() { e.StoreUint64(loader.TrapContext, 1) })
}

func TestEcallPassesRegisters(t *testing.T) {
	mem, set, sp, _ := loadImage(t, Image("hello"))
	trap := &fakeTrapper{}
	e := NewEnv(trap, mem, set.Token(), sp)
	if got := e.Ecall(sysGetTime, 5, 0, 0); got != sysGetTime+5 {
		t.Errorf("expected %d, got %d", sysGetTime+5, got)
	}
	if e.Regs[RegA7] != sysGetTime || len(trap.calls) != 1 {
		t.Errorf("ecall not made with a7 set: %v", trap.calls)
	}
}

func TestRegistry(t *testing.T) {
	names := Names()
	if !sort.StringsAreSorted(names) {
		t.Errorf("names not sorted: %v", names)
	}
	for _, want := range []string{"hello", "stride0", "stride5", "spawn", "fault"} {
		if _, ok := Lookup(want); !ok {
			t.Errorf("%s not registered", want)
		}
	}
	defer func() {
		if recover() == nil {
			t.Errorf("registering hello twice should panic")
		}
	}()
	if _, err := Apps("hello", "no such app"); err == nil {
		t.Errorf("apps accepted an unknown name")
	}
	ld, err := Apps("hello", "spawn")
	if err != nil || ld.NumApp() != 2 || ld.AppName(1) != "spawn" {
		t.Errorf("unexpected loader %v", err)
	}
	Register("hello", hello)
}
