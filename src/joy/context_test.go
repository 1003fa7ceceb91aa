package joy

import "testing"

func TestSwitchHandsTheHartAround(t *testing.T) {
	a := NewContextArena()
	boot := a.Sentinel()
	var trail []string
	var f1, f2 ContextHandle
	var spInF1 uint64

	f1 = a.Alloc(func() {
		trail = append(trail, "f1 start")
		spInF1 = a.Hart().SP
		a.Switch(f1, f2)
		trail = append(trail, "f1 resumed")
		a.Release(f1)
		a.Switch(f1, boot)
		panic("released flow came back")
	}, 0x1000)
	f2 = a.Alloc(func() {
		trail = append(trail, "f2 start")
		a.Switch(f2, f1)
		panic("f2 should never resume")
	}, 0x2000)

	if a.Saved(f2).RA != trapReturnAddr || a.Saved(f2).SP != 0x2000 {
		t.Errorf("fresh context should return into trap return on its stack: %+v", a.Saved(f2))
	}
	a.Switch(boot, f1)

	want := []string{"f1 start", "f2 start", "f1 resumed"}
	if len(trail) != len(want) {
		t.Fatalf("expected %v, got %v", want, trail)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Errorf("step %d: expected %q got %q", i, want[i], trail[i])
		}
	}
	if spInF1 != 0x1000 {
		t.Errorf("f1 ran with sp %#x", spInF1)
	}
	if a.Saved(f2).SP != 0x2000 {
		t.Errorf("f2's registers were not saved on switch")
	}
	// f2 is parked; releasing it ends its goroutine
	a.Release(f2)
}

func TestSwitchToSelfIsNoop(t *testing.T) {
	a := NewContextArena()
	boot := a.Sentinel()
	a.Switch(boot, boot)
}

func TestReleasedSlotIsReused(t *testing.T) {
	a := NewContextArena()
	a.Sentinel()
	h := a.Alloc(func() {}, 0)
	a.Release(h)
	h2 := a.Alloc(func() {}, 0)
	if h2 != h {
		t.Errorf("expected slot %v to be reused, got %v", h, h2)
	}
}

func TestSwitchToReleasedPanics(t *testing.T) {
	a := NewContextArena()
	boot := a.Sentinel()
	h := a.Alloc(func() {}, 0)
	a.Release(h)
	defer func() {
		if recover() == nil {
			t.Errorf("switch to a released context should panic")
		}
	}()
	a.Switch(boot, h)
}

func TestDoubleReleasePanics(t *testing.T) {
	a := NewContextArena()
	boot := a.Sentinel()
	defer func() {
		if recover() == nil {
			t.Errorf("second release should panic")
		}
	}()
	a.Release(boot)
	a.Release(boot)
}

func TestReleaseOfParkedFlowEndsIt(t *testing.T) {
	a := NewContextArena()
	boot := a.Sentinel()
	ended := make(chan struct{})
	rounds := 0
	var f ContextHandle
	f = a.Alloc(func() {
		defer close(ended)
		for {
			rounds++
			a.Switch(f, boot)
		}
	}, 0x1000)
	for i := 0; i < 3; i++ {
		a.Switch(boot, f)
	}
	a.Release(f)
	<-ended
	if rounds != 3 {
		t.Errorf("expected 3 rounds before release, got %d", rounds)
	}
}
