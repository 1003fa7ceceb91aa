package gen

import (
	"errors"
	"testing"
)

func value(s string) *Generic {
	var g Generic = s
	return &g
}

func TestBasics(t *testing.T) {
	g := NewGenericDoublyLinkedList()
	basicHelper(t, &g)
}

func basicHelper(t *testing.T, g *GenericDoublyLinkedList) {
	t.Helper()

	if !g.Empty() {
		t.Errorf("doubly linked list not empty at start")
	}
	if 0 != g.Length() {
		t.Errorf("doubly linked list not empty at start")
	}
	if g.First() != nil || g.Last() != nil {
		t.Errorf("doubly linked list not empty at start")
	}

	s1 := value("iansmith")
	s2 := value("love will tear us apart")
	s3 := value("the four ladies")

	g.Append(s1)
	if g.Empty() {
		t.Errorf("doubly linked list failed empty test after append")
	}
	if 1 != g.Length() {
		t.Errorf("doubly linked list failed to update length() correct")
	}
	if s1 != g.First().Value() || s1 != g.Last().Value() {
		t.Errorf("doubly linked list First()/Last() error")
	}

	g.Append(s2)
	if 2 != g.Length() {
		t.Errorf("doubly linked list failed to update length() after 2nd append")
	}
	if s2 != g.First().Next().Value() {
		t.Errorf("doubly linked list failed to update Last() properly")
	}

	g.Push(s3)
	if 3 != g.Length() {
		t.Errorf("doubly linked list failed to update Length() after 3rd (push)")
	}
	if s3 != g.First().Value() {
		t.Errorf("doubly linked list failed to update First() correctly after 3rd (push)")
	}
	if s3 != g.Last().Prev().Prev().Value() {
		t.Errorf("doubly linked list failed to update Last().Prev().Prev() correctly after 3rd (push)")
	}
	if s2 != g.Nth(2).Value() || g.Nth(3) != nil {
		t.Errorf("Nth disagrees with the list order")
	}
}

func TestRemoveMiddleAndEnds(t *testing.T) {
	g := NewGenericDoublyLinkedList()
	a := g.Append(value("a"))
	b := g.Append(value("b"))
	c := g.Append(value("c"))

	g.Remove(b)
	if g.Length() != 2 || g.First() != a || g.Last() != c {
		t.Fatalf("remove of middle node broke the list")
	}
	if a.Next() != c || c.Prev() != a {
		t.Errorf("neighbours not relinked after remove")
	}
	if b.Next() != nil || b.Prev() != nil {
		t.Errorf("removed node still linked")
	}

	if g.Pop() != a {
		t.Errorf("pop did not return the first node")
	}
	if g.Dequeue() != c {
		t.Errorf("dequeue did not return the last node")
	}
	if !g.Empty() || g.Pop() != nil {
		t.Errorf("list should be empty")
	}
}

func TestInsertBeforeAfter(t *testing.T) {
	g := NewGenericDoublyLinkedList()
	b := g.Append(value("b"))
	a := NewGenericNodeDL(value("a"))
	g.InsertBefore(b, a)
	d := NewGenericNodeDL(value("d"))
	g.InsertAfter(b, d)
	c := NewGenericNodeDL(value("c"))
	g.InsertAfter(b, c)
	e := NewGenericNodeDL(value("e"))
	g.InsertBefore(nil, e)

	want := []string{"a", "b", "c", "d", "e"}
	var got []string
	g.TraverseGeneric(func(v *Generic) error {
		got = append(got, (*v).(string))
		return nil
	})
	if len(got) != len(want) || g.Length() != len(want) {
		t.Fatalf("expected %v, got %v (length %d)", want, got, g.Length())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	var back []string
	g.TraverseBackwardsGeneric(func(v *Generic) error {
		back = append(back, (*v).(string))
		return nil
	})
	if back[0] != "e" || back[4] != "a" {
		t.Errorf("backwards traversal out of order: %v", back)
	}
}

func TestTraverseStopsAndFind(t *testing.T) {
	g := NewGenericDoublyLinkedList()
	for _, s := range []string{"x", "y", "z"} {
		g.Append(value(s))
	}
	stop := errors.New("stop")
	seen := 0
	err := g.TraverseNodesGeneric(func(n *GenericNodeDL) error {
		seen++
		if (*n.Value()).(string) == "y" {
			return stop
		}
		return nil
	})
	if err != stop || seen != 2 {
		t.Errorf("traversal should stop at y: err=%v seen=%d", err, seen)
	}

	n := g.FindGeneric(func(v *Generic) bool { return (*v).(string) == "z" })
	if n == nil || n != g.Last() {
		t.Errorf("find did not return the last node")
	}
	if g.FindGeneric(func(v *Generic) bool { return false }) != nil {
		t.Errorf("find should fail when nothing matches")
	}
}

func TestDoubleInsertPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic when appending a linked node")
		}
	}()
	g := NewGenericDoublyLinkedList()
	g.Append(value("a"))
	n := g.Append(value("b"))
	g.AppendNode(n)
}
