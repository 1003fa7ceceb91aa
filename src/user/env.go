// Package user is the user mode side of the machine: the register file
// and memory view a program runs with, the syscall wrappers, and the
// registry of programs that application images name.
package user

import (
	"encoding/binary"
	"fmt"

	"equanimity/src/mm"
)

// register numbers
const (
	RegSP = 2
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA7 = 17
)

type Fault int

const (
	FaultLoad Fault = iota
	FaultStore
	FaultIllegalInstruction
)

func (f Fault) String() string {
	switch f {
	case FaultLoad:
		return "LoadPageFault"
	case FaultStore:
		return "StorePageFault"
	case FaultIllegalInstruction:
		return "IllegalInstruction"
	}
	return fmt.Sprintf("Fault(%d)", int(f))
}

// Trapper is the way from user mode into the kernel.
type Trapper interface {
	// Ecall traps with the registers in regs and returns with a0 set.
	Ecall(regs *[32]uint64)
	// Fault kills the program. It does not return.
	Fault(kind Fault, addr uint64)
}

// Env is what a running program sees: its registers and its address
// space, reached only through the page table of the task.
type Env struct {
	Regs  [32]uint64
	trap  Trapper
	mem   *mm.FrameAllocator
	token uint64
}

func NewEnv(trap Trapper, mem *mm.FrameAllocator, token, sp uint64) *Env {
	e := &Env{trap: trap, mem: mem, token: token}
	e.Regs[RegSP] = sp
	return e
}

func (e *Env) SP() uint64 {
	return e.Regs[RegSP]
}

// SetSP moves the stack pointer, usually back to a mark taken with SP.
func (e *Env) SetSP(sp uint64) {
	e.Regs[RegSP] = sp
}

// Alloca reserves n bytes on the user stack, 8 byte aligned, and returns
// their address. The bytes are not touched, so overflowing into the guard
// page is only noticed on first use.
func (e *Env) Alloca(n uint64) uint64 {
	sp := (e.Regs[RegSP] - n) &^ 7
	e.Regs[RegSP] = sp
	return sp
}

// Load copies n bytes from user memory. An unreadable page faults.
func (e *Env) Load(va, n uint64) []byte {
	buf, err := mm.AccessUser(e.mem, e.token, va, n, mm.PTERead)
	if err != nil {
		e.trap.Fault(FaultLoad, va)
	}
	return buf.Bytes()
}

// Store copies data into user memory. An unwritable page faults.
func (e *Env) Store(va uint64, data []byte) {
	buf, err := mm.AccessUser(e.mem, e.token, va, uint64(len(data)), mm.PTEWrite)
	if err != nil {
		e.trap.Fault(FaultStore, va)
	}
	buf.CopyIn(data)
}

func (e *Env) LoadUint64(va uint64) uint64 {
	return binary.LittleEndian.Uint64(e.Load(va, 8))
}

func (e *Env) StoreUint64(va, v uint64) {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], v)
	e.Store(va, raw[:])
}

func (e *Env) LoadInt32(va uint64) int32 {
	return int32(binary.LittleEndian.Uint32(e.Load(va, 4)))
}

// CString puts s and a terminating NUL on the stack.
func (e *Env) CString(s string) uint64 {
	p := e.Alloca(uint64(len(s) + 1))
	e.Store(p, append([]byte(s), 0))
	return p
}

// Ecall traps into the kernel and returns a0.
func (e *Env) Ecall(id, a0, a1, a2 uint64) int64 {
	e.Regs[RegA7] = id
	e.Regs[RegA0] = a0
	e.Regs[RegA1] = a1
	e.Regs[RegA2] = a2
	e.trap.Ecall(&e.Regs)
	return int64(e.Regs[RegA0])
}
