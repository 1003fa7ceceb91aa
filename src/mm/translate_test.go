package mm

import (
	"encoding/binary"
	"testing"
)

func TestTranslatedByteBufferSpansPages(t *testing.T) {
	f, m := userSpace(t)
	if _, err := m.Mmap(0x2000_0000, 2*4096, 3); err != nil {
		t.Fatalf("%v", err)
	}
	buf, err := TranslatedByteBuffer(f, m.Token(), 0x2000_0ff0, 0x20)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if len(buf.Buffers) != 2 || buf.Len() != 0x20 {
		t.Fatalf("expected two slices of 0x20 bytes total, got %d slices %d bytes", len(buf.Buffers), buf.Len())
	}
	msg := []byte("0123456789abcdef0123456789ABCDEF")
	if n := buf.CopyIn(msg); n != 32 {
		t.Errorf("copied %d", n)
	}
	again, _ := TranslatedByteBuffer(f, m.Token(), 0x2000_0ff0, 0x20)
	if string(again.Bytes()) != string(msg) {
		t.Errorf("round trip through physical pages failed: %q", again.Bytes())
	}
}

func TestTranslationFailsOnUnmappedOrKernelPages(t *testing.T) {
	f, m := userSpace(t)
	_, _ = m.Mmap(0x2000_0000, 4096, 1)
	if _, err := TranslatedByteBuffer(f, m.Token(), 0x2000_0ff0, 0x20); err != ErrBadAddress {
		t.Errorf("expected ErrBadAddress crossing into an unmapped page, got %v", err)
	}
	if _, err := TranslatedRefMut(f, m.Token(), 0x2000_0000, 8); err != ErrBadAddress {
		t.Errorf("read only page must not be writable through TranslatedRefMut")
	}
	_ = m.InsertFramedArea(0x3000_0000, 0x3000_1000, PermR|PermW)
	if _, err := TranslatedByteBuffer(f, m.Token(), 0x3000_0000, 4); err != ErrBadAddress {
		t.Errorf("kernel only page must not be reachable")
	}
}

func TestTranslatedRefMutAndPutUint64(t *testing.T) {
	f, m := userSpace(t)
	_, _ = m.Mmap(0x2000_0000, 4096, 3)
	if err := PutUint64(f, m.Token(), 0x2000_0008, 0xdead_beef); err != nil {
		t.Fatalf("%v", err)
	}
	ref, err := TranslatedRefMut(f, m.Token(), 0x2000_0008, 8)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if binary.LittleEndian.Uint64(ref) != 0xdead_beef {
		t.Errorf("wrong value through ref")
	}
	if _, err := TranslatedRefMut(f, m.Token(), 0x2000_0ffc, 8); err != ErrBadAddress {
		t.Errorf("object straddling a page must be rejected")
	}
}

func TestTranslatedStr(t *testing.T) {
	f, m := userSpace(t)
	_, _ = m.Mmap(0x2000_0000, 2*4096, 3)
	buf, _ := TranslatedByteBuffer(f, m.Token(), 0x2000_0ffc, 8)
	buf.CopyIn([]byte("hello\x00"))
	s, err := TranslatedStr(f, m.Token(), 0x2000_0ffc)
	if err != nil || s != "hello" {
		t.Errorf("expected hello across the page boundary, got %q %v", s, err)
	}
	if _, err := TranslatedStrSafe(f, m.Token(), 0x2000_0ffc, 3); err != ErrBadAddress {
		t.Errorf("expected limit to trip, got %v", err)
	}
	if _, err := TranslatedStr(f, m.Token(), 0x4000_0000); err != ErrBadAddress {
		t.Errorf("expected ErrBadAddress for unmapped string")
	}
}
