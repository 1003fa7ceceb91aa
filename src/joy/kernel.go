package joy

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"equanimity/src/fs"
	"equanimity/src/lib/loader"
	"equanimity/src/lib/trust"
	"equanimity/src/mm"
)

var kernelLog = trust.NewLogger("kernel")

// Halt says why the machine powered off.
type Halt int

const (
	HaltAllCompleted Halt = iota
	HaltShutdown
)

func (h Halt) String() string {
	switch h {
	case HaltAllCompleted:
		return "all applications completed"
	case HaltShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("Halt(%d)", int(h))
}

type Config struct {
	Policy PolicyKind
	Clock  Clock
	Slice  time.Duration
	Stdin  io.Reader
	Stdout io.Writer
	Tracer Tracer
	// MaxDispatches powers the machine off after that many scheduling
	// decisions. Zero means no limit.
	MaxDispatches uint64
}

// Kernel is one simulated machine: physical memory, the kernel address
// space, the task manager and the hart.
type Kernel struct {
	frames      *mm.FrameAllocator
	pids        PidAllocator
	kernelMu    sync.Mutex
	kernelSpace *mm.MemorySet
	arena       *ContextArena
	manager     *TaskManager
	timer       *Timer
	fs          *fs.RamFS
	stdin       fs.File
	stdout      fs.File
	trapReturn  func(t *TaskControlBlock)

	// only touched by the flow holding the hart
	boot    ContextHandle
	halted  Halt
	pending []exited

	offMu sync.Mutex
	off   bool
}

type exited struct {
	task *TaskControlBlock
	reap bool
}

// NewKernel builds the machine and one Ready task per application, in
// loader order. The apps are also put into the file system so that spawn
// can find them by name.
func NewKernel(cfg Config, apps *loader.Loader) (*Kernel, error) {
	frames := mm.NewFrameAllocator(mm.NewPhysAddr(loader.KernelEnd), mm.NewPhysAddr(loader.MemoryEnd))
	ks, err := mm.NewKernelMemorySet(frames)
	if err != nil {
		return nil, fmt.Errorf("kernel space: %w", err)
	}
	if err := ks.RemapTest(); err != nil {
		return nil, fmt.Errorf("kernel space: %w", err)
	}
	kernelLog.Infof("kernel space ready, %d frames in use", frames.InUse())

	if cfg.Clock == nil {
		cfg.Clock = NewWallClock()
	}
	if cfg.Stdin == nil {
		cfg.Stdin = bytes.NewReader(nil)
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	k := &Kernel{
		frames:      frames,
		kernelSpace: ks,
		arena:       NewContextArena(),
		manager:     NewTaskManager(newPolicy(cfg.Policy), cfg.Tracer, cfg.MaxDispatches),
		timer:       NewTimer(cfg.Clock, cfg.Slice),
		fs:          fs.NewRamFS(),
		stdin:       fs.NewStdin(cfg.Stdin),
		stdout:      fs.NewStdout(cfg.Stdout),
		trapReturn: func(t *TaskControlBlock) {
			panic("no trap layer installed, cannot enter " + t.String())
		},
	}
	for i := 0; i < apps.NumApp(); i++ {
		k.fs.WriteFile(apps.AppName(i), apps.AppData(i))
	}
	for i := 0; i < apps.NumApp(); i++ {
		t, err := k.newTaskControlBlock(apps.AppName(i), apps.AppData(i), nil)
		if err != nil {
			k.manager.Shutdown()
			return nil, err
		}
		k.manager.Add(t)
	}
	kernelLog.Infof("%d applications loaded, policy %v", apps.NumApp(), cfg.Policy)
	return k, nil
}

// SetTrapReturn installs the function a task flow starts in. It gets the
// task and must never return.
func (k *Kernel) SetTrapReturn(fn func(t *TaskControlBlock)) {
	k.trapReturn = fn
}

func (k *Kernel) Frames() *mm.FrameAllocator {
	return k.frames
}

func (k *Kernel) FS() *fs.RamFS {
	return k.fs
}

func (k *Kernel) Manager() *TaskManager {
	return k.manager
}

func (k *Kernel) KernelToken() uint64 {
	k.kernelMu.Lock()
	defer k.kernelMu.Unlock()
	return k.kernelSpace.Token()
}

// Run switches from the boot flow into the first task and returns once
// the machine halts.
func (k *Kernel) Run() Halt {
	k.boot = k.arena.Sentinel()
	first, err := k.manager.RunFirstTask()
	if err != nil {
		k.halted = haltFor(err)
	} else {
		k.timer.Reset()
		k.arena.Switch(k.boot, first.context)
		k.afterSwitch()
	}
	k.powerOff()
	return k.halted
}

func haltFor(err error) Halt {
	if err == ErrorTaskShutdown {
		return HaltShutdown
	}
	return HaltAllCompleted
}

// Close powers the machine off if Run has not done so already. It is safe
// before Run, after Run and more than once.
func (k *Kernel) Close() {
	k.powerOff()
}

// powerOff ends every flow still parked and gives back what the remaining
// tasks hold. The task table stays readable.
func (k *Kernel) powerOff() {
	k.offMu.Lock()
	defer k.offMu.Unlock()
	if k.off {
		return
	}
	k.off = true
	for _, info := range k.manager.Snapshot() {
		t := k.manager.TaskByPID(info.PID)
		k.arena.Release(t.context)
		k.release(t)
	}
	k.manager.Shutdown()
	kernelLog.Infof("power off: %v, %d frames still in use", k.halted, k.frames.InUse())
}

func (k *Kernel) CurrentTask() *TaskControlBlock {
	return k.manager.Current()
}

func (k *Kernel) TaskByPID(pid PID) *TaskControlBlock {
	return k.manager.TaskByPID(pid)
}

// SuspendCurrentAndRunNext puts the running task back to Ready and runs
// whatever the policy picks, which may be the same task. It returns when
// the task is scheduled again.
func (k *Kernel) SuspendCurrentAndRunNext() {
	k.manager.MarkCurrentSuspended()
	k.runNext()
}

// ExitCurrentAndRunNext never returns. The task's resources are released
// by the next flow to run; its pid is recycled once it is reaped.
func (k *Kernel) ExitCurrentAndRunNext(code int32) {
	cur := k.manager.MarkCurrentExited()
	taskLog.Infof("%v exited with code %d", cur, code)

	cur.mu.Lock()
	cur.inner.exitCode = code
	cur.inner.zombie = true
	parent := cur.inner.parent
	children := cur.inner.children
	cur.inner.children = nil
	cur.mu.Unlock()

	for _, c := range children {
		c.mu.Lock()
		c.inner.parent = nil
		zombie := c.inner.zombie
		c.mu.Unlock()
		if zombie {
			k.reap(c)
		}
	}
	k.arena.Release(cur.context)
	k.pending = append(k.pending, exited{task: cur, reap: parent == nil})
	k.runNext()
	panic("exited task resumed")
}

func (k *Kernel) runNext() {
	prev, next, err := k.manager.RunNextTask()
	if err != nil {
		k.halted = haltFor(err)
		kernelLog.Infof("%v", k.halted)
		k.arena.Switch(prev.context, k.boot)
		panic("halted machine resumed")
	}
	k.timer.Reset()
	k.arena.Switch(prev.context, next.context)
	k.afterSwitch()
}

// afterSwitch runs first thing in a flow that just got the hart.
func (k *Kernel) afterSwitch() {
	pending := k.pending
	k.pending = nil
	for _, e := range pending {
		k.release(e.task)
		if e.reap {
			k.reap(e.task)
		}
	}
}

// TimeSliceExpired is asked by the trap layer at every trap boundary.
func (k *Kernel) TimeSliceExpired() bool {
	return k.timer.Expired()
}

// GetTime returns milliseconds since boot.
func (k *Kernel) GetTime() int64 {
	return k.timer.Millis()
}

func (k *Kernel) SetPriority(prio int64) int64 {
	return k.manager.SetPriority(prio)
}

// Spawn creates a Ready child of the current task from the file at path.
// Before boot the new task has no parent.
func (k *Kernel) Spawn(path string) (*TaskControlBlock, error) {
	cur := k.manager.Current()
	var pid PID
	if cur != nil {
		pid = cur.pid
	}
	if k.poweredOff() {
		return nil, MakeError(ErrorTaskShutdown, pid)
	}
	f, ok := k.fs.OpenFile(path, fs.OpenRDONLY)
	if !ok {
		return nil, MakeError(ErrorTaskNoSuchApp, pid)
	}
	child, err := k.newTaskControlBlock(path, f.ReadAll(), cur)
	if err != nil {
		return nil, err
	}
	if cur != nil {
		cur.mu.Lock()
		cur.inner.children = append(cur.inner.children, child)
		cur.mu.Unlock()
	}
	k.manager.Add(child)
	return child, nil
}

// WaitPid looks for an exited child of the current task, any child when
// pid is -1. It returns -1 if there is no such child, -2 if none of the
// matching children has exited yet, otherwise the child's pid and exit
// code. A child that is returned is reaped.
func (k *Kernel) WaitPid(pid int64) (int64, int32) {
	cur := k.manager.Current()
	cur.mu.Lock()
	found := false
	idx := -1
	for i, c := range cur.inner.children {
		if pid != -1 && int64(c.pid) != pid {
			continue
		}
		found = true
		if _, zombie := c.ExitCode(); zombie {
			idx = i
			break
		}
	}
	if idx < 0 {
		cur.mu.Unlock()
		if !found {
			return -1, 0
		}
		return -2, 0
	}
	child := cur.inner.children[idx]
	cur.inner.children = append(cur.inner.children[:idx], cur.inner.children[idx+1:]...)
	cur.mu.Unlock()

	code, _ := child.ExitCode()
	k.reap(child)
	return int64(child.pid), code
}

func (k *Kernel) poweredOff() bool {
	k.offMu.Lock()
	defer k.offMu.Unlock()
	return k.off
}

// Snapshot lists the tasks that have not exited.
func (k *Kernel) Snapshot() []TaskInfo {
	return k.manager.Snapshot()
}
