package joy

import (
	"equanimity/src/lib/trust"
)

var taskLog = trust.NewLogger("task")

// ErrAllCompleted is returned when there is no Ready task left to run.
var ErrAllCompleted = ErrorTaskNoReadyTask

// Tracer sees every dispatch decision. seq counts dispatches from 0.
type Tracer interface {
	Dispatch(seq uint64, pid PID, name string)
}

// TaskManager owns the task table. All access goes through its loop, one
// request at a time, so table, statuses, strides and passes need no lock.
type TaskManager struct {
	tasks   []*TaskControlBlock
	current *TaskControlBlock
	policy  Policy
	tracer  Tracer
	limit   uint64
	seq     uint64

	in   chan reqTaskManager
	out  chan resTaskManager
	done chan struct{}
}

// NewTaskManager starts the manager loop. A limit above zero makes the
// manager refuse to dispatch more than limit times.
func NewTaskManager(policy Policy, tracer Tracer, limit uint64) *TaskManager {
	m := &TaskManager{
		policy: policy,
		tracer: tracer,
		limit:  limit,
		in:     make(chan reqTaskManager),
		out:    make(chan resTaskManager),
		done:   make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *TaskManager) loop() {
	defer close(m.done)
	alive := true
	for alive {
		req := <-m.in
		switch req := req.(type) {
		case req_TaskManager_Add:
			m.tasks = append(m.tasks, req.task)
			if req.task.status == TaskReady {
				m.policy.Ready(req.task)
			}
			m.out <- res_TaskManager_Add{}
		case req_TaskManager_RunFirstTask:
			if m.current != nil {
				panic("first task already running")
			}
			next, err := m.dispatch()
			m.out <- res_TaskManager_RunFirstTask{next, err}
		case req_TaskManager_MarkCurrentSuspended:
			cur := m.mustCurrent()
			cur.status = TaskReady
			m.policy.Ready(cur)
			m.out <- res_TaskManager_MarkCurrentSuspended{cur}
		case req_TaskManager_MarkCurrentExited:
			cur := m.mustCurrent()
			cur.status = TaskExited
			m.remove(cur)
			m.out <- res_TaskManager_MarkCurrentExited{cur}
		case req_TaskManager_FindNextTaskStride:
			m.out <- res_TaskManager_FindNextTaskStride{FindNextTaskStride(m.tasks)}
		case req_TaskManager_RunNextTask:
			prev := m.current
			if prev != nil && prev.status == TaskRunning {
				panic("run next task while " + prev.String() + " is still running")
			}
			next, err := m.dispatch()
			m.out <- res_TaskManager_RunNextTask{prev, next, err}
		case req_TaskManager_SetPriority:
			m.out <- res_TaskManager_SetPriority{m.setPriority(req.prio)}
		case req_TaskManager_Current:
			m.out <- res_TaskManager_Current{m.current}
		case req_TaskManager_TaskByPID:
			m.out <- res_TaskManager_TaskByPID{m.lookup(req.pid)}
		case req_TaskManager_Remove:
			m.out <- res_TaskManager_Remove{m.remove(req.task)}
		case req_TaskManager_Snapshot:
			m.out <- res_TaskManager_Snapshot{m.snapshot()}
		case req_TaskManager_Shutdown:
			alive = false
			m.out <- res_TaskManager_Shutdown{}
		}
	}
}

func (m *TaskManager) mustCurrent() *TaskControlBlock {
	if m.current == nil || m.current.status != TaskRunning {
		panic("no running task")
	}
	return m.current
}

// dispatch picks the next task, charges it one pass and makes it current.
// The pass is charged when a task is dispatched, not when it is switched
// away from.
func (m *TaskManager) dispatch() (*TaskControlBlock, error) {
	if m.limit > 0 && m.seq >= m.limit {
		return nil, ErrorTaskShutdown
	}
	next := m.policy.Pick(m.tasks)
	if next == nil {
		return nil, ErrAllCompleted
	}
	if next.status != TaskReady {
		panic("policy picked " + next.String() + " which is " + next.status.String())
	}
	next.stride += next.pass
	next.status = TaskRunning
	m.current = next
	taskLog.Debugf("dispatch %d: %v stride %d pass %d", m.seq, next, next.stride, next.pass)
	if m.tracer != nil {
		m.tracer.Dispatch(m.seq, next.pid, next.name)
	}
	m.seq++
	return next, nil
}

func (m *TaskManager) setPriority(prio int64) int64 {
	if prio <= 1 {
		return -1
	}
	cur := m.mustCurrent()
	cur.pass = BigStride / prio
	return prio
}

func (m *TaskManager) lookup(pid PID) *TaskControlBlock {
	for _, t := range m.tasks {
		if t.pid == pid {
			return t
		}
	}
	return nil
}

func (m *TaskManager) snapshot() []TaskInfo {
	infos := make([]TaskInfo, len(m.tasks))
	for i, t := range m.tasks {
		infos[i] = t.info()
	}
	return infos
}

// call hands req to the loop. It reports false once the loop has stopped;
// the table is then frozen and may be read directly.
func (m *TaskManager) call(req reqTaskManager) (resTaskManager, bool) {
	select {
	case m.in <- req:
		return <-m.out, true
	case <-m.done:
		return nil, false
	}
}

func (m *TaskManager) remove(t *TaskControlBlock) bool {
	for i, x := range m.tasks {
		if x == t {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			m.policy.Forget(t)
			return true
		}
	}
	return false
}

// Add puts a task into the table; a Ready task becomes eligible at once.
// A stopped manager drops it.
func (m *TaskManager) Add(t *TaskControlBlock) bool {
	_, ok := m.call(req_TaskManager_Add{t})
	return ok
}

// RunFirstTask makes the first task of the policy current and charges it.
// The caller switches into it from the boot context.
func (m *TaskManager) RunFirstTask() (*TaskControlBlock, error) {
	res, ok := m.call(req_TaskManager_RunFirstTask{})
	if !ok {
		return nil, ErrorTaskShutdown
	}
	r := res.(res_TaskManager_RunFirstTask)
	return r.Arg0, r.Arg1
}

func (m *TaskManager) MarkCurrentSuspended() *TaskControlBlock {
	res, ok := m.call(req_TaskManager_MarkCurrentSuspended{})
	if !ok {
		return nil
	}
	return res.(res_TaskManager_MarkCurrentSuspended).Arg0
}

// MarkCurrentExited also takes the task out of the table. It stays current
// until the next RunNextTask.
func (m *TaskManager) MarkCurrentExited() *TaskControlBlock {
	res, ok := m.call(req_TaskManager_MarkCurrentExited{})
	if !ok {
		return nil
	}
	return res.(res_TaskManager_MarkCurrentExited).Arg0
}

func (m *TaskManager) FindNextTaskStride() *TaskControlBlock {
	res, ok := m.call(req_TaskManager_FindNextTaskStride{})
	if !ok {
		return nil
	}
	return res.(res_TaskManager_FindNextTaskStride).Arg0
}

// RunNextTask selects the next task by policy, charges it its pass and
// makes it Running. It returns the previous current task so the caller can
// switch from it. With nothing Ready the error is ErrAllCompleted.
func (m *TaskManager) RunNextTask() (prev, next *TaskControlBlock, err error) {
	res, ok := m.call(req_TaskManager_RunNextTask{})
	if !ok {
		return m.current, nil, ErrorTaskShutdown
	}
	r := res.(res_TaskManager_RunNextTask)
	return r.Arg0, r.Arg1, r.Arg2
}

// SetPriority sets the pass of the current task to BigStride/prio. A prio
// of 1 or less is refused with -1.
func (m *TaskManager) SetPriority(prio int64) int64 {
	res, ok := m.call(req_TaskManager_SetPriority{prio})
	if !ok {
		return -1
	}
	return res.(res_TaskManager_SetPriority).Arg0
}

func (m *TaskManager) Current() *TaskControlBlock {
	res, ok := m.call(req_TaskManager_Current{})
	if !ok {
		return m.current
	}
	return res.(res_TaskManager_Current).Arg0
}

func (m *TaskManager) TaskByPID(pid PID) *TaskControlBlock {
	res, ok := m.call(req_TaskManager_TaskByPID{pid})
	if !ok {
		return m.lookup(pid)
	}
	return res.(res_TaskManager_TaskByPID).Arg0
}

func (m *TaskManager) Remove(t *TaskControlBlock) bool {
	res, ok := m.call(req_TaskManager_Remove{t})
	if !ok {
		return false
	}
	return res.(res_TaskManager_Remove).Arg0
}

// Snapshot lists the tasks in the table. After Shutdown it lists them as
// they were when the loop stopped.
func (m *TaskManager) Snapshot() []TaskInfo {
	res, ok := m.call(req_TaskManager_Snapshot{})
	if !ok {
		return m.snapshot()
	}
	return res.(res_TaskManager_Snapshot).Arg0
}

// Shutdown stops the loop. Queries keep answering from the final table;
// anything that would change it is refused. Shutting down twice is fine.
func (m *TaskManager) Shutdown() {
	m.call(req_TaskManager_Shutdown{})
	<-m.done
}
