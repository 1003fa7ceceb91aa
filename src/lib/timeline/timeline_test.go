package timeline

import (
	"bytes"
	"image/png"
	"testing"

	"equanimity/src/joy"
)

func TestSharesCountDispatches(t *testing.T) {
	r := NewRecorder()
	for i, pid := range []joy.PID{0, 1, 0, 0, 2} {
		r.Dispatch(uint64(i), pid, "task")
	}
	s := r.Shares()
	if s[0] != 3 || s[1] != 1 || s[2] != 1 {
		t.Errorf("unexpected shares %v", s)
	}
	if len(r.Events()) != 5 {
		t.Errorf("expected 5 events")
	}
}

func TestRenderPNG(t *testing.T) {
	r := NewRecorder()
	r.Dispatch(0, 0, "stride0")
	r.Dispatch(1, 1, "stride1")
	r.Dispatch(2, 1, "stride1")
	var buf bytes.Buffer
	if err := r.RenderPNG(&buf, 400, 20); err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("not a png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 40 {
		t.Errorf("expected 400x40, got %v", b)
	}
	// last third of the second row belongs to pid 1
	if _, _, _, a := img.At(390, 30).RGBA(); a == 0 {
		t.Errorf("no slice drawn for pid 1")
	}
	if err := r.RenderPNG(&buf, 50, 20); err == nil {
		t.Errorf("too narrow a picture should be refused")
	}
}
