package joy

import (
	"errors"
	"fmt"
	"sync"

	"equanimity/src/fs"
	"equanimity/src/lib/loader"
	"equanimity/src/mm"
)

type TaskStatus int

const (
	TaskUnInit TaskStatus = iota
	TaskReady
	TaskRunning
	TaskExited
)

func (s TaskStatus) String() string {
	switch s {
	case TaskUnInit:
		return "UnInit"
	case TaskReady:
		return "Ready"
	case TaskRunning:
		return "Running"
	case TaskExited:
		return "Exited"
	}
	return fmt.Sprintf("TaskStatus(%d)", int(s))
}

// TaskControlBlock is everything the kernel knows about one task.
//
// pid, name, kstack and context never change. status, stride and pass
// belong to the task manager loop and are only touched there. The rest
// is behind mu.
type TaskControlBlock struct {
	pid     PID
	name    string
	kstack  uint64
	context ContextHandle

	status TaskStatus
	stride int64
	pass   int64

	mu    sync.Mutex
	inner taskInner

	Mailbox Mailbox
}

type taskInner struct {
	trapCxPPN mm.PhysPageNum
	baseSize  uint64
	memorySet *mm.MemorySet
	fdTable   []*fs.Handle
	parent    *TaskControlBlock
	children  []*TaskControlBlock
	exitCode  int32
	zombie    bool
}

func (t *TaskControlBlock) PID() PID {
	return t.pid
}

func (t *TaskControlBlock) Name() string {
	return t.name
}

func (t *TaskControlBlock) Context() ContextHandle {
	return t.context
}

func (t *TaskControlBlock) String() string {
	return fmt.Sprintf("task %d (%s)", t.pid, t.name)
}

// UserToken is the satp of the task's address space.
func (t *TaskControlBlock) UserToken() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.memorySet.Token()
}

func (t *TaskControlBlock) TrapContextPage(frames *mm.FrameAllocator) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return frames.Page(t.inner.trapCxPPN)[:TrapContextSize]
}

// Mmap maps fresh user pages into the task, see mm.MemorySet.Mmap.
func (t *TaskControlBlock) Mmap(start, length, port uint64) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.memorySet.Mmap(start, length, port)
}

func (t *TaskControlBlock) Munmap(start, length uint64) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.memorySet.Munmap(start, length)
}

func (t *TaskControlBlock) ExitCode() (int32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.exitCode, t.inner.zombie
}

func (t *TaskControlBlock) Parent() *TaskControlBlock {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.parent
}

// Stride and Pass are only meaningful inside the manager loop, these
// copies are for reports and tests.
type TaskInfo struct {
	PID    PID
	Name   string
	Status TaskStatus
	Stride int64
	Pass   int64
}

func (t *TaskControlBlock) info() TaskInfo {
	return TaskInfo{PID: t.pid, Name: t.name, Status: t.status, Stride: t.stride, Pass: t.pass}
}

// newTaskControlBlock builds a Ready task from an image: its address
// space, kernel stack and first context.
func (k *Kernel) newTaskControlBlock(name string, image []byte, parent *TaskControlBlock) (*TaskControlBlock, error) {
	ms, userSP, entry, err := mm.FromELF(k.frames, image)
	if err != nil {
		if errors.Is(err, mm.ErrOutOfFrames) {
			return nil, ErrorMemoryOutOfFrames
		}
		return nil, fmt.Errorf("%s: %w (%v)", name, ErrorMemoryBadImage, err)
	}
	pte, ok := ms.Translate(mm.NewVirtAddr(loader.TrapContext).Floor())
	if !ok {
		panic("user space without a trap context page")
	}
	pid := k.pids.Alloc()
	bottom, top := loader.KernelStackPosition(uint64(pid))
	k.kernelMu.Lock()
	err = k.kernelSpace.InsertFramedArea(mm.NewVirtAddr(bottom), mm.NewVirtAddr(top), mm.PermR|mm.PermW)
	k.kernelMu.Unlock()
	if err != nil {
		ms.Release()
		k.pids.Dealloc(pid)
		return nil, ErrorMemoryOutOfFrames
	}
	t := &TaskControlBlock{
		pid:    pid,
		name:   name,
		kstack: uint64(pid),
		status: TaskReady,
		stride: DefaultStride,
		pass:   DefaultPass,
	}
	t.inner = taskInner{
		trapCxPPN: pte.PPN(),
		baseSize:  userSP,
		memorySet: ms,
		fdTable: []*fs.Handle{
			fs.NewHandle(k.stdin),
			fs.NewHandle(k.stdout),
			fs.NewHandle(k.stdout),
		},
		parent: parent,
	}
	t.context = k.arena.Alloc(func() {
		k.afterSwitch()
		k.trapReturn(t)
	}, top)
	cx := AppInitContext(entry, userSP, k.kernelSpace.Token(), top, trapHandlerAddr)
	cx.Encode(k.frames.Page(pte.PPN()))
	taskLog.Debugf("created %v: entry %#x, user sp %#x, kernel sp %#x", t, entry, userSP, top)
	return t, nil
}

// release gives back the address space, the open files and the mail of
// an exited task. The kernel stack and the pid stay until it is reaped.
func (k *Kernel) release(t *TaskControlBlock) {
	t.mu.Lock()
	fds := t.inner.fdTable
	t.inner.fdTable = nil
	ms := t.inner.memorySet
	t.inner.memorySet = nil
	t.mu.Unlock()

	for _, h := range fds {
		if h != nil {
			h.Close()
		}
	}
	t.Mailbox.Drop()
	if ms != nil {
		ms.Release()
	}
}

// reap drops the last traces of a task: its kernel stack and its pid.
func (k *Kernel) reap(t *TaskControlBlock) {
	bottom, _ := loader.KernelStackPosition(t.kstack)
	k.kernelMu.Lock()
	k.kernelSpace.RemoveAreaWithStartVPN(mm.NewVirtAddr(bottom).Floor())
	k.kernelMu.Unlock()
	k.pids.Dealloc(t.pid)
	taskLog.Debugf("reaped %v", t)
}
