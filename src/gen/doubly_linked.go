package gen

import (
	"github.com/cheekybits/genny/generic"
)

//go:generate genny -in=doubly_linked.go -out=../joy/task_dl.go -pkg=joy gen "Generic=TaskControlBlock"

type Generic generic.Type

type GenericNodeDL struct {
	prev  *GenericNodeDL
	next  *GenericNodeDL
	value *Generic
}

// GenericDoublyLinkedList implements a doubly linked list
// that is not concurrent safe.
type GenericDoublyLinkedList struct {
	first  *GenericNodeDL
	last   *GenericNodeDL
	length int
}

// Next returns the next element of the list.  This is probably only
// needed by people doing specialized traversals that are too complex
// for Traverse and TraverseBackwards.  Returns nil for the last node
// in the list.
func (g *GenericNodeDL) Next() *GenericNodeDL {
	return g.next
}

// Prev returns the previous element of the list.  Returns nil for the
// first node in the list.
func (g *GenericNodeDL) Prev() *GenericNodeDL {
	return g.prev
}

// Value returns the element's value. This is used by traversal
// functions and others because they are given a GenericNodeDL not
// just a Generic.
func (g *GenericNodeDL) Value() *Generic {
	return g.value
}

// NewGenericNodeDL wraps v in a node that is not in any list.
func NewGenericNodeDL(v *Generic) *GenericNodeDL {
	return &GenericNodeDL{value: v}
}

// NewGenericDoublyLinkedList returns an empty doubly linked list.
// Note: It returns a value, not a pointer but the methods have
// pointer receivers.
func NewGenericDoublyLinkedList() GenericDoublyLinkedList {
	return GenericDoublyLinkedList{first: nil, last: nil}
}

// Empty returns true if the list is empty.
func (g *GenericDoublyLinkedList) Empty() bool {
	if g.first == nil {
		if g.last != nil || g.length != 0 {
			panic("invariant violated checking for Empty")
		}
		return true
	}
	return false
}

// Length returns the number of elements in the list.
func (g *GenericDoublyLinkedList) Length() int {
	return g.length
}

// First returns the first node in the list or a nil if the list is empty.
func (g *GenericDoublyLinkedList) First() *GenericNodeDL {
	if g.first == nil {
		if g.last != nil {
			panic("invariant violated getting First()")
		}
		return nil
	}
	if g.first.prev != nil {
		panic("invariant of first node violated (First())")
	}
	return g.first
}

// Last returns the last node in the list or a nil if the list is empty.
func (g *GenericDoublyLinkedList) Last() *GenericNodeDL {
	if g.last == nil {
		if g.first != nil {
			panic("invariant violated getting Last()")
		}
		return nil
	}
	if g.last.next != nil {
		panic("invariant of last node violated (Last())")
	}
	return g.last
}

// Push puts v at the front of the list. Traversals that start at the
// front will see it first.  Returns the node holding v.
func (g *GenericDoublyLinkedList) Push(v *Generic) *GenericNodeDL {
	n := NewGenericNodeDL(v)
	g.PushNode(n)
	return n
}

// PushNode inserts the given node at the front of the list.
// Traversals that start at the front will see the newly
// pushed node first.  Returns the newly modified list.
func (g *GenericDoublyLinkedList) PushNode(n *GenericNodeDL) *GenericDoublyLinkedList {
	if n.next != nil || n.prev != nil {
		panic("attempt to insert node that is likely a member of " +
			"another list (PushNode)")
	}
	g.length++
	if g.first == nil {
		if g.last != nil {
			panic("invariant of empty list is broken (push)")
		}
		g.first = n
		g.last = n
		return g
	}
	old := g.first
	if old.prev != nil {
		panic("invariant of first node of list is broken (push)")
	}
	g.first = n
	old.prev = n
	n.next = old
	return g
}

// Append puts v at the end of the list. Traversals that start at the
// front will see it last.  Returns the node holding v.
func (g *GenericDoublyLinkedList) Append(v *Generic) *GenericNodeDL {
	n := NewGenericNodeDL(v)
	g.AppendNode(n)
	return n
}

// AppendNode inserts the given node at the end of the list.  Traversals
// that start at the front will see the newly pushed node last.
// Returns the newly modified list.  This method does a check to insure
// that Next() and Prev() of the new node are nil. If they are not nil,
// it panics.
func (g *GenericDoublyLinkedList) AppendNode(n *GenericNodeDL) *GenericDoublyLinkedList {
	if n.next != nil || n.prev != nil {
		panic("attempt to insert node that is likely a member of " +
			"another list (AppendNode)")
	}
	g.length++
	if g.last == nil {
		if g.first != nil {
			panic("invariant of empty list is broken (AppendNode)")
		}
		g.first = n
		g.last = n
		return g
	}
	old := g.last
	if old.next != nil {
		panic("invariant of last node of list is broken (AppendNode)")
	}
	g.last = n
	old.next = n
	n.prev = old
	return g
}

// TraverseNodesGeneric walks all the nodes in the list, in order, starting
// at the front.  It is ok to modify elements that are "behind" the current
// node in the iteration.  If the iteration function returns an error,
// the traversal is halted and that error is returned.
func (g *GenericDoublyLinkedList) TraverseNodesGeneric(fn func(v *GenericNodeDL) error) error {
	curr := g.first
	for curr != nil {
		next := curr.next
		if err := fn(curr); err != nil {
			return err
		}
		curr = next
	}
	return nil
}

// TraverseGeneric walks all the items in the list, in order, starting at the
// front. This passes the _value_ of each node to the function supplied
// and the nodes in the list cannot be modified during traversal.
func (g *GenericDoublyLinkedList) TraverseGeneric(fn func(v *Generic) error) error {
	curr := g.first
	for curr != nil {
		if err := fn(curr.value); err != nil {
			return err
		}
		curr = curr.next
	}
	return nil
}

// TraverseBackwardsGeneric walks all the _values_ in the list, in reverse
// order, starting at the last element.
func (g *GenericDoublyLinkedList) TraverseBackwardsGeneric(fn func(v *Generic) error) error {
	curr := g.last
	for curr != nil {
		if err := fn(curr.value); err != nil {
			return err
		}
		curr = curr.prev
	}
	return nil
}

// Nth returns the node that is the Nth element of the list, or nil if there are
// insufficient nodes in the list to reach the Nth.
func (g *GenericDoublyLinkedList) Nth(i int) *GenericNodeDL {
	if i < 0 || i >= g.length {
		return nil
	}
	current := g.first
	for ct := 0; ct < i; ct++ {
		current = current.next
	}
	return current
}

// FindGeneric returns the first node whose value satisfies fn, or nil.
func (g *GenericDoublyLinkedList) FindGeneric(fn func(v *Generic) bool) *GenericNodeDL {
	for curr := g.first; curr != nil; curr = curr.next {
		if fn(curr.value) {
			return curr
		}
	}
	return nil
}

// Remove takes a node out of the list.
func (g *GenericDoublyLinkedList) Remove(n *GenericNodeDL) {
	switch {
	case g.first == n && g.last == n:
		g.first = nil
		g.last = nil
	case g.first == n:
		if n.prev != nil {
			panic("invariant of removing first element violated")
		}
		g.first = n.next
		n.next.prev = nil
	case g.last == n:
		if n.next != nil {
			panic("invariant of removing last element violated")
		}
		g.last = n.prev
		n.prev.next = nil
	default:
		if n.prev == nil || n.next == nil {
			panic("attempt to remove a node that is not in this list")
		}
		n.prev.next = n.next
		n.next.prev = n.prev
	}
	n.next = nil
	n.prev = nil
	g.length--
}

// InsertBefore takes in the node before which to insert the second
// parameter.  It is permitted to give nil as the value of target and this
// makes this function perform AppendNode().
func (g *GenericDoublyLinkedList) InsertBefore(target *GenericNodeDL,
	n *GenericNodeDL) {

	if target == nil {
		g.AppendNode(n)
		return
	}
	prev := target.prev
	if prev == nil {
		if g.first != target {
			panic("invariant violated with first element (InsertBefore)")
		}
		g.PushNode(n)
		return
	}
	if prev.next != target {
		panic("invariant violated with intermediate node (InsertBefore)")
	}
	prev.next = n
	n.prev = prev
	target.prev = n
	n.next = target
	g.length++
}

// InsertAfter takes in the node after which to insert the second
// parameter.  It is permitted to give nil as the value of target and this
// makes this function perform PushNode().
func (g *GenericDoublyLinkedList) InsertAfter(target *GenericNodeDL,
	n *GenericNodeDL) {

	if target == nil {
		g.PushNode(n)
		return
	}
	next := target.next
	if next == nil {
		if g.last != target {
			panic("invariant violated with last element (InsertAfter)")
		}
		g.AppendNode(n)
		return
	}
	if next.prev != target {
		panic("invariant violated with intermediate node (InsertAfter)")
	}
	next.prev = n
	n.next = next
	n.prev = target
	target.next = n
	g.length++
}

// Pop is a shorthand for Remove(First()) and it returns the removed
// node, or nil if the list is empty.
func (g *GenericDoublyLinkedList) Pop() *GenericNodeDL {
	f := g.First()
	if f != nil {
		g.Remove(f)
	}
	return f
}

// Dequeue is a shorthand for Remove(Last()) and it returns the removed
// node, or nil if the list is empty.
func (g *GenericDoublyLinkedList) Dequeue() *GenericNodeDL {
	f := g.Last()
	if f != nil {
		g.Remove(f)
	}
	return f
}
