// Package trap connects user programs to the kernel: it starts a task's
// program in its flow, carries ecalls to the syscall layer, kills tasks
// that fault, and preempts a task whose time slice ran out at the next
// trap boundary.
package trap

import (
	"equanimity/src/joy"
	"equanimity/src/lib/trust"
	"equanimity/src/syscall"
	"equanimity/src/user"
)

var trapLog = trust.NewLogger("trap")

// exit codes of killed tasks
const (
	ExitPageFault          = -2
	ExitIllegalInstruction = -3
)

// Install makes k start task flows in user mode.
func Install(k *joy.Kernel) {
	k.SetTrapReturn(func(t *joy.TaskControlBlock) {
		enterUser(k, t)
	})
}

// NewMachine builds a kernel running the named programs in that order,
// with every registered program in its file system so that spawn finds
// them.
func NewMachine(cfg joy.Config, names ...string) (*joy.Kernel, error) {
	apps, err := user.Apps(names...)
	if err != nil {
		return nil, err
	}
	k, err := joy.NewKernel(cfg, apps)
	if err != nil {
		return nil, err
	}
	for _, n := range user.Names() {
		k.FS().WriteFile(n, user.Image(n))
	}
	Install(k)
	return k, nil
}

type hart struct {
	k    *joy.Kernel
	task *joy.TaskControlBlock
}

func enterUser(k *joy.Kernel, t *joy.TaskControlBlock) {
	h := &hart{k: k, task: t}
	cx := joy.DecodeTrapContext(t.TrapContextPage(k.Frames()))
	prog, name, err := user.Resolve(k.Frames(), t.UserToken(), cx.Sepc)
	if err != nil {
		trapLog.Debugf("%v: entry %#x: %v", t, cx.Sepc, err)
		h.Fault(user.FaultIllegalInstruction, cx.Sepc)
	}
	trapLog.Debugf("%v enters %s at %#x", t, name, cx.Sepc)
	env := user.NewEnv(h, k.Frames(), t.UserToken(), cx.X[joy.RegSP])
	env.Exit(prog(env))
}

// Ecall saves the user registers in the trap context, runs the syscall,
// and hands a0 back. An expired time slice suspends the task before it
// returns to user mode.
func (h *hart) Ecall(regs *[32]uint64) {
	page := h.task.TrapContextPage(h.k.Frames())
	cx := joy.DecodeTrapContext(page)
	cx.X = *regs
	cx.Sepc += 4
	cx.Encode(page)

	args := [3]uint64{regs[joy.RegA0], regs[joy.RegA1], regs[joy.RegA2]}
	ret := syscall.Dispatch(h.k, regs[joy.RegA7], args)

	cx = joy.DecodeTrapContext(page)
	cx.X[joy.RegA0] = uint64(ret)
	cx.Encode(page)
	if h.k.TimeSliceExpired() {
		trapLog.Debugf("%v: time slice expired", h.task)
		h.k.SuspendCurrentAndRunNext()
	}
	*regs = cx.X
}

func (h *hart) Fault(kind user.Fault, addr uint64) {
	cx := joy.DecodeTrapContext(h.task.TrapContextPage(h.k.Frames()))
	if kind == user.FaultIllegalInstruction {
		trapLog.Errorf("IllegalInstruction in application %v, kernel killed it.", h.task)
		h.k.ExitCurrentAndRunNext(ExitIllegalInstruction)
	}
	trapLog.Errorf("%v in application %v, bad addr = %#x, bad instruction = %#x, kernel killed it.",
		kind, h.task, addr, cx.Sepc)
	h.k.ExitCurrentAndRunNext(ExitPageFault)
}
