package joy

import "fmt"

const (
	BigStride       = 65536
	DefaultPriority = 16
	DefaultPass     = BigStride / DefaultPriority
	DefaultStride   = 0
)

type PolicyKind int

const (
	PolicyStride PolicyKind = iota
	PolicyFIFO
)

func (p PolicyKind) String() string {
	switch p {
	case PolicyStride:
		return "stride"
	case PolicyFIFO:
		return "fifo"
	}
	return fmt.Sprintf("PolicyKind(%d)", int(p))
}

func ParsePolicy(s string) (PolicyKind, error) {
	switch s {
	case "stride", "":
		return PolicyStride, nil
	case "fifo":
		return PolicyFIFO, nil
	}
	return PolicyStride, fmt.Errorf("unknown scheduling policy %q", s)
}

// Policy chooses which Ready task runs next. The manager loop is its only
// caller, so implementations need no locking.
type Policy interface {
	// Ready is told about every task that enters the Ready state.
	Ready(t *TaskControlBlock)
	// Pick returns a Ready task of table, or nil. table is in creation order.
	Pick(table []*TaskControlBlock) *TaskControlBlock
	// Forget drops t, which is leaving the table.
	Forget(t *TaskControlBlock)
}

func newPolicy(kind PolicyKind) Policy {
	if kind == PolicyFIFO {
		return NewFIFOPolicy()
	}
	return &StridePolicy{}
}

// StridePolicy runs the Ready task with the smallest stride.
type StridePolicy struct{}

func (s *StridePolicy) Ready(*TaskControlBlock)  {}
func (s *StridePolicy) Forget(*TaskControlBlock) {}

func (s *StridePolicy) Pick(table []*TaskControlBlock) *TaskControlBlock {
	return FindNextTaskStride(table)
}

// FindNextTaskStride scans table in order and returns the Ready task with
// the minimum stride; the first one seen wins a tie.
func FindNextTaskStride(table []*TaskControlBlock) *TaskControlBlock {
	var best *TaskControlBlock
	for _, t := range table {
		if t.status != TaskReady {
			continue
		}
		if best == nil || t.stride < best.stride {
			best = t
		}
	}
	return best
}

// FIFOPolicy is a plain ready queue: tasks run in the order they became
// Ready. A pid index finds queued tasks without walking the queue.
type FIFOPolicy struct {
	queue TaskControlBlockDoublyLinkedList
	byPID map[PID]*TaskControlBlockNodeDL
}

func NewFIFOPolicy() *FIFOPolicy {
	return &FIFOPolicy{
		queue: NewTaskControlBlockDoublyLinkedList(),
		byPID: make(map[PID]*TaskControlBlockNodeDL),
	}
}

// Add puts t at the back of the queue. A task already queued keeps its place.
func (f *FIFOPolicy) Add(t *TaskControlBlock) {
	if _, ok := f.byPID[t.pid]; ok {
		return
	}
	f.byPID[t.pid] = f.queue.Append(t)
}

// Fetch takes the task at the front of the queue, nil when it is empty.
func (f *FIFOPolicy) Fetch() *TaskControlBlock {
	n := f.queue.Pop()
	if n == nil {
		return nil
	}
	t := n.Value()
	delete(f.byPID, t.pid)
	return t
}

// Lookup finds a queued task by pid.
func (f *FIFOPolicy) Lookup(pid PID) *TaskControlBlock {
	n, ok := f.byPID[pid]
	if !ok {
		return nil
	}
	return n.Value()
}

func (f *FIFOPolicy) Len() int {
	return f.queue.Length()
}

func (f *FIFOPolicy) Ready(t *TaskControlBlock) {
	f.Add(t)
}

func (f *FIFOPolicy) Pick([]*TaskControlBlock) *TaskControlBlock {
	for {
		t := f.Fetch()
		if t == nil || t.status == TaskReady {
			return t
		}
	}
}

func (f *FIFOPolicy) Forget(t *TaskControlBlock) {
	n, ok := f.byPID[t.pid]
	if !ok {
		return
	}
	f.queue.Remove(n)
	delete(f.byPID, t.pid)
}
