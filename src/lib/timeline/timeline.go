// Package timeline records which task the scheduler dispatched, in order,
// and draws the record as a picture with one row per task.
package timeline

import (
	"fmt"
	"image/color"
	"io"
	"sort"
	"sync"

	"github.com/fogleman/gg"

	"equanimity/src/joy"
)

type Event struct {
	Seq uint64
	PID joy.PID
}

// Recorder is a joy.Tracer.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	names  map[joy.PID]string
}

func NewRecorder() *Recorder {
	return &Recorder{names: make(map[joy.PID]string)}
}

func (r *Recorder) Dispatch(seq uint64, pid joy.PID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Seq: seq, PID: pid})
	r.names[pid] = name
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Shares counts the slices each pid was given.
func (r *Recorder) Shares() map[joy.PID]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	shares := make(map[joy.PID]int)
	for _, e := range r.events {
		shares[e.PID]++
	}
	return shares
}

func (r *Recorder) pids() []joy.PID {
	pids := make([]joy.PID, 0, len(r.names))
	for pid := range r.names {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

const labelWidth = 120

// palette is cycled through by row.
var palette = []color.RGBA{
	{0x1f, 0x77, 0xb4, 0xff},
	{0xff, 0x7f, 0x0e, 0xff},
	{0x2c, 0xa0, 0x2c, 0xff},
	{0xd6, 0x27, 0x28, 0xff},
	{0x94, 0x67, 0xbd, 0xff},
	{0x8c, 0x56, 0x4b, 0xff},
}

// RenderPNG draws the dispatches left to right, one row of rowHeight
// pixels per pid, and writes the picture to w as a PNG.
func (r *Recorder) RenderPNG(w io.Writer, width, rowHeight int) error {
	r.mu.Lock()
	pids := r.pids()
	events := append([]Event(nil), r.events...)
	names := make(map[joy.PID]string, len(r.names))
	for k, v := range r.names {
		names[k] = v
	}
	r.mu.Unlock()

	if width <= labelWidth || rowHeight <= 0 {
		return fmt.Errorf("timeline: %dx%d rows is too small to draw", width, rowHeight)
	}
	rows := len(pids)
	if rows == 0 {
		rows = 1
	}
	dc := gg.NewContext(width, rows*rowHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	row := make(map[joy.PID]int, len(pids))
	for i, pid := range pids {
		row[pid] = i
		y := float64(i * rowHeight)
		if i%2 == 1 {
			dc.SetRGB(0.95, 0.95, 0.95)
			dc.DrawRectangle(0, y, float64(width), float64(rowHeight))
			dc.Fill()
		}
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(fmt.Sprintf("%d %s", pid, names[pid]), 4, y+float64(rowHeight)/2, 0, 0.5)
	}

	if len(events) > 0 {
		slot := float64(width-labelWidth) / float64(len(events))
		for i, e := range events {
			c := palette[row[e.PID]%len(palette)]
			dc.SetColor(c)
			y := float64(row[e.PID]*rowHeight) + 2
			dc.DrawRectangle(labelWidth+float64(i)*slot, y, slot, float64(rowHeight-4))
			dc.Fill()
		}
	}
	return dc.EncodePNG(w)
}
