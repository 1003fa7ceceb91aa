package fs

import (
	"io"

	"equanimity/src/mm"
)

// Stdin reads from the console. A read blocks the hart until the console
// has at least one byte, then returns what fits.
type Stdin struct {
	in io.Reader
}

func NewStdin(in io.Reader) *Stdin {
	return &Stdin{in: in}
}

func (s *Stdin) Readable() bool { return true }
func (s *Stdin) Writable() bool { return false }

func (s *Stdin) Read(buf mm.UserBuffer) int {
	total := 0
	for _, b := range buf.Buffers {
		n, err := s.in.Read(b)
		total += n
		if err != nil || n < len(b) {
			if err != nil && err != io.EOF {
				fsLog.Warnf("console read: %v", err)
			}
			break
		}
	}
	return total
}

func (s *Stdin) Write(mm.UserBuffer) int {
	panic("cannot write to stdin")
}

func (s *Stdin) Stat() Stat {
	return Stat{Mode: StatFile, NLink: 1}
}

// Stdout writes to the console.
type Stdout struct {
	out io.Writer
}

func NewStdout(out io.Writer) *Stdout {
	return &Stdout{out: out}
}

func (s *Stdout) Readable() bool { return false }
func (s *Stdout) Writable() bool { return true }

func (s *Stdout) Read(mm.UserBuffer) int {
	panic("cannot read from stdout")
}

func (s *Stdout) Write(buf mm.UserBuffer) int {
	total := 0
	for _, b := range buf.Buffers {
		n, err := s.out.Write(b)
		total += n
		if err != nil {
			fsLog.Warnf("console write: %v", err)
			break
		}
	}
	return total
}

func (s *Stdout) Stat() Stat {
	return Stat{Mode: StatFile, NLink: 1}
}
