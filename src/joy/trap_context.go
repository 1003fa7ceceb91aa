package joy

import "encoding/binary"

// sstatus.SPP, clear means the trap came from (and sret goes to) user mode
const sstatusSPP = 1 << 8

// trapHandlerAddr stands in for the address of the kernel trap handler.
const trapHandlerAddr = 0xffff_ffff_ffff_f100

// Register numbers of the RISC-V calling convention used by the trap layer.
const (
	RegSP = 2
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA7 = 17
)

// TrapContextSize is the number of bytes the trap context takes in its page.
const TrapContextSize = (32 + 5) * 8

// TrapContext is what the trampoline saves on entry from user mode: all
// general registers, sstatus and sepc, plus what it needs to get into the
// kernel (kernel satp, kernel stack, handler address).
type TrapContext struct {
	X           [32]uint64
	Sstatus     uint64
	Sepc        uint64
	KernelSatp  uint64
	KernelSP    uint64
	TrapHandler uint64
}

// AppInitContext is the context a task first returns to user mode with.
func AppInitContext(entry, sp, kernelSatp, kernelSP, handler uint64) TrapContext {
	cx := TrapContext{
		Sepc:        entry,
		KernelSatp:  kernelSatp,
		KernelSP:    kernelSP,
		TrapHandler: handler,
	}
	cx.X[RegSP] = sp
	cx.Sstatus &^= sstatusSPP
	return cx
}

func (c *TrapContext) Encode(b []byte) {
	for i, x := range c.X {
		binary.LittleEndian.PutUint64(b[i*8:], x)
	}
	tail := []uint64{c.Sstatus, c.Sepc, c.KernelSatp, c.KernelSP, c.TrapHandler}
	for i, v := range tail {
		binary.LittleEndian.PutUint64(b[(32+i)*8:], v)
	}
}

func DecodeTrapContext(b []byte) TrapContext {
	var c TrapContext
	for i := range c.X {
		c.X[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	tail := []*uint64{&c.Sstatus, &c.Sepc, &c.KernelSatp, &c.KernelSP, &c.TrapHandler}
	for i, p := range tail {
		*p = binary.LittleEndian.Uint64(b[(32+i)*8:])
	}
	return c
}
