package fs

import (
	"bytes"
	"strings"
	"testing"

	"equanimity/src/mm"
)

func userBuf(parts ...[]byte) mm.UserBuffer {
	return mm.UserBuffer{Buffers: parts}
}

func TestPipeReadWaitsForWriter(t *testing.T) {
	var w *Pipe
	yields := 0
	r, w := MakePipe(func() {
		yields++
		switch yields {
		case 1:
			w.Write(userBuf([]byte("lo")))
		case 2:
			NewHandle(w).Close()
		}
	})
	w.Write(userBuf([]byte("hel")))
	dst := make([]byte, 10)
	n := r.Read(userBuf(dst[:4], dst[4:]))
	if n != 5 || string(dst[:5]) != "hello" {
		t.Errorf("expected hello, got %d %q", n, dst[:n])
	}
	if yields != 2 {
		t.Errorf("expected reader to yield twice, got %d", yields)
	}
	if n := r.Read(userBuf(dst)); n != 0 {
		t.Errorf("read after writers closed must return 0, got %d", n)
	}
}

func TestPipeWriteWaitsForRoom(t *testing.T) {
	var r *Pipe
	var drained bytes.Buffer
	r, w := MakePipe(func() {
		tmp := make([]byte, 16)
		n := r.Read(userBuf(tmp))
		drained.Write(tmp[:n])
	})
	msg := []byte(strings.Repeat("x", 40))
	if n := w.Write(userBuf(msg)); n != 40 {
		t.Errorf("wrote %d", n)
	}
	if drained.Len() != 16 {
		t.Errorf("expected one drain of 16 bytes, got %d", drained.Len())
	}
}

func TestPipeWriteWithoutReaders(t *testing.T) {
	r, w := MakePipe(func() { t.Fatalf("must not yield") })
	NewHandle(r).Close()
	if n := w.Write(userBuf([]byte("abc"))); n != 0 {
		t.Errorf("expected nothing written, got %d", n)
	}
}

func TestHandleRefCounting(t *testing.T) {
	r, w := MakePipe(func() {})
	h := NewHandle(w)
	h.Dup()
	if h.Refs() != 2 {
		t.Errorf("expected 2 refs")
	}
	h.Close()
	if r.ring.writers != 1 {
		t.Errorf("write end released while a reference remains")
	}
	h.Close()
	if r.ring.writers != 0 {
		t.Errorf("write end not released on last close")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on extra close")
		}
	}()
	h.Close()
}

func TestStdio(t *testing.T) {
	var out bytes.Buffer
	so := NewStdout(&out)
	if n := so.Write(userBuf([]byte("ab"), []byte("cd"))); n != 4 || out.String() != "abcd" {
		t.Errorf("stdout wrote %d %q", n, out.String())
	}
	si := NewStdin(strings.NewReader("xy"))
	dst := make([]byte, 4)
	if n := si.Read(userBuf(dst)); n != 2 || string(dst[:2]) != "xy" {
		t.Errorf("stdin read %d %q", n, dst)
	}
	if !si.Readable() || si.Writable() || so.Readable() || !so.Writable() {
		t.Errorf("stdio capabilities wrong")
	}
}

func TestRamFSOpenLinkUnlink(t *testing.T) {
	r := NewRamFS()
	if _, ok := r.OpenFile("missing", OpenRDONLY); ok {
		t.Errorf("open of missing file without CREATE must fail")
	}
	f, ok := r.OpenFile("fname", OpenCREATE|OpenWRONLY)
	if !ok || f.Readable() || !f.Writable() {
		t.Fatalf("create failed or wrong mode")
	}
	f.Write(userBuf([]byte("hello world")))

	if !r.LinkFile("fname", "linked") {
		t.Fatalf("link failed")
	}
	if r.LinkFile("fname", "fname") || r.LinkFile("nope", "x") || r.LinkFile("fname", "linked") {
		t.Errorf("bad links must fail")
	}
	if n, _ := r.NLink("fname"); n != 2 {
		t.Errorf("expected nlink 2, got %d", n)
	}
	g, _ := r.OpenFile("linked", OpenRDONLY)
	if string(g.ReadAll()) != "hello world" {
		t.Errorf("link does not share data")
	}
	if g.Stat().Ino != f.Stat().Ino || g.Stat().NLink != 2 || g.Stat().Mode != StatFile {
		t.Errorf("stat through link wrong: %+v", g.Stat())
	}
	if !r.UnlinkFile("fname") || r.UnlinkFile("fname") {
		t.Errorf("unlink semantics wrong")
	}
	if g.Stat().NLink != 1 {
		t.Errorf("expected nlink 1 after unlink")
	}
	if names := r.ListApps(); len(names) != 1 || names[0] != "linked" {
		t.Errorf("unexpected directory %v", names)
	}
	h, _ := r.OpenFile("linked", OpenRDWR|OpenTRUNC)
	if len(h.ReadAll()) != 0 {
		t.Errorf("TRUNC did not clear the file")
	}
}

func TestStatBytes(t *testing.T) {
	s := Stat{Ino: 9, Mode: StatFile, NLink: 3}
	b := s.Bytes()
	if len(b) != StatSize {
		t.Fatalf("stat size %d", len(b))
	}
	if StatFromBytes(b) != s {
		t.Errorf("stat layout does not round trip")
	}
	if b[16] != 0 || b[17] != 0x80 {
		t.Errorf("mode not at offset 16: % x", b[16:20])
	}
}
