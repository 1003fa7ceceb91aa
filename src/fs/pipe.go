package fs

import (
	"sync"

	"equanimity/src/mm"
)

const PipeRingBufferSize = 32

type ringStatus int

const (
	ringNormal ringStatus = iota
	ringFull
	ringEmpty
)

type pipeRing struct {
	mu      sync.Mutex
	arr     [PipeRingBufferSize]byte
	head    int
	tail    int
	status  ringStatus
	readers int
	writers int
}

func (r *pipeRing) writeByte(b byte) {
	r.status = ringNormal
	r.arr[r.tail] = b
	r.tail = (r.tail + 1) % PipeRingBufferSize
	if r.tail == r.head {
		r.status = ringFull
	}
}

func (r *pipeRing) readByte() byte {
	r.status = ringNormal
	b := r.arr[r.head]
	r.head = (r.head + 1) % PipeRingBufferSize
	if r.head == r.tail {
		r.status = ringEmpty
	}
	return b
}

func (r *pipeRing) availableRead() int {
	if r.status == ringEmpty {
		return 0
	}
	if r.tail > r.head {
		return r.tail - r.head
	}
	return r.tail + PipeRingBufferSize - r.head
}

func (r *pipeRing) availableWrite() int {
	if r.status == ringFull {
		return 0
	}
	return PipeRingBufferSize - r.availableRead()
}

// Pipe is one end of a pipe. Both ends share the ring.
type Pipe struct {
	readable bool
	writable bool
	ring     *pipeRing
	yield    func()
}

// MakePipe returns the read and the write end of a new pipe. yield is
// called whenever an end has to wait for the other side.
func MakePipe(yield func()) (*Pipe, *Pipe) {
	ring := &pipeRing{status: ringEmpty, readers: 1, writers: 1}
	return &Pipe{readable: true, ring: ring, yield: yield},
		&Pipe{writable: true, ring: ring, yield: yield}
}

func (p *Pipe) Readable() bool { return p.readable }
func (p *Pipe) Writable() bool { return p.writable }

// Read waits until buf is full or every write end is closed.
func (p *Pipe) Read(buf mm.UserBuffer) int {
	if !p.readable {
		panic("read on the write end of a pipe")
	}
	want := buf.Len()
	out := make([]byte, 0, want)
	for len(out) < want {
		p.ring.mu.Lock()
		n := p.ring.availableRead()
		if n == 0 {
			closed := p.ring.writers == 0
			p.ring.mu.Unlock()
			if closed {
				break
			}
			p.yield()
			continue
		}
		for i := 0; i < n && len(out) < want; i++ {
			out = append(out, p.ring.readByte())
		}
		p.ring.mu.Unlock()
	}
	return buf.CopyIn(out)
}

// Write waits for room until buf is drained. If every read end is gone
// the rest of buf is dropped.
func (p *Pipe) Write(buf mm.UserBuffer) int {
	if !p.writable {
		panic("write on the read end of a pipe")
	}
	data := buf.Bytes()
	written := 0
	for written < len(data) {
		p.ring.mu.Lock()
		if p.ring.readers == 0 {
			p.ring.mu.Unlock()
			fsLog.Debugf("pipe has no readers, dropping %d bytes", len(data)-written)
			break
		}
		n := p.ring.availableWrite()
		if n == 0 {
			p.ring.mu.Unlock()
			p.yield()
			continue
		}
		for i := 0; i < n && written < len(data); i++ {
			p.ring.writeByte(data[written])
			written++
		}
		p.ring.mu.Unlock()
	}
	return written
}

func (p *Pipe) Stat() Stat {
	return Stat{Mode: StatNull, NLink: 1}
}

// Release is called when the last handle to this end is closed.
func (p *Pipe) Release() {
	p.ring.mu.Lock()
	defer p.ring.mu.Unlock()
	if p.readable {
		p.ring.readers--
	} else {
		p.ring.writers--
	}
}
