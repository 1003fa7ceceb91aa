package upbeat

import "testing"

func TestBitSetSizeMustBeMultipleOf64(t *testing.T) {
	if _, err := NewBitSet(100); err == nil {
		t.Errorf("expected error for size 100")
	}
	if _, err := NewBitSet(0); err == nil {
		t.Errorf("expected error for size 0")
	}
	b, err := NewBitSet(128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Size() != 128 {
		t.Errorf("wrong size %d", b.Size())
	}
}

func TestBitSetSetClear(t *testing.T) {
	b, _ := NewBitSet(128)
	for _, i := range []BitIndex{0, 63, 64, 127} {
		if b.On(i) {
			t.Errorf("bit %d on at start", i)
		}
		b.Set(i)
		if !b.On(i) {
			t.Errorf("bit %d not on after Set", i)
		}
	}
	if b.Count() != 4 {
		t.Errorf("expected 4 bits, got %d", b.Count())
	}
	b.Clear(63)
	if b.On(63) || !b.On(64) {
		t.Errorf("Clear touched the wrong bit")
	}
	b.ClearAll()
	if b.Count() != 0 {
		t.Errorf("ClearAll left %d bits", b.Count())
	}
}

func TestBitSetFirstClear(t *testing.T) {
	b, _ := NewBitSet(128)
	if got := b.FirstClear(0); got != 0 {
		t.Errorf("empty set: expected 0, got %d", got)
	}
	for i := BitIndex(0); i < 70; i++ {
		b.Set(i)
	}
	if got := b.FirstClear(0); got != 70 {
		t.Errorf("expected 70, got %d", got)
	}
	if got := b.FirstClear(100); got != 100 {
		t.Errorf("expected search to start at hint, got %d", got)
	}
	for i := BitIndex(70); i < 128; i++ {
		b.Set(i)
	}
	b.Clear(5)
	if got := b.FirstClear(90); got != 5 {
		t.Errorf("expected wrap around to 5, got %d", got)
	}
	b.Set(5)
	if got := b.FirstClear(0); got != NoBit {
		t.Errorf("full set: expected NoBit, got %d", got)
	}
}
