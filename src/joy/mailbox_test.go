package joy

import (
	"bytes"
	"testing"
)

func TestMailboxFIFOAndCapacity(t *testing.T) {
	var m Mailbox
	if !m.Empty() {
		t.Errorf("new mailbox should be empty")
	}
	for i := 0; i < MailBoxSize; i++ {
		if n, ok := m.Post([]byte{byte(i)}); !ok || n != 1 {
			t.Fatalf("post %d failed", i)
		}
	}
	if !m.Full() {
		t.Errorf("mailbox should be full after %d messages", MailBoxSize)
	}
	if _, ok := m.Post(nil); ok {
		t.Errorf("post to a full mailbox should fail, whatever the length")
	}
	for i := 0; i < MailBoxSize; i++ {
		msg, ok := m.Take()
		if !ok || msg[0] != byte(i) {
			t.Fatalf("take %d: got %v %v", i, msg, ok)
		}
	}
	if _, ok := m.Take(); ok {
		t.Errorf("take from an empty mailbox should fail")
	}
}

func TestMailboxTruncates(t *testing.T) {
	var m Mailbox
	long := bytes.Repeat([]byte("x"), MailBoxMessageSize+40)
	n, ok := m.Post(long)
	if !ok || n != MailBoxMessageSize {
		t.Errorf("expected %d, got %d %v", MailBoxMessageSize, n, ok)
	}
	msg, _ := m.Take()
	if len(msg) != MailBoxMessageSize {
		t.Errorf("stored message has %d bytes", len(msg))
	}
	long[0] = 'y'
	m.Post(long)
	m.Drop()
	if m.Len() != 0 {
		t.Errorf("drop left %d messages", m.Len())
	}
}

func TestPidAllocator(t *testing.T) {
	var p PidAllocator
	for want := PID(0); want < 4; want++ {
		if got := p.Alloc(); got != want {
			t.Errorf("expected %d got %d", want, got)
		}
	}
	p.Dealloc(2)
	p.Dealloc(1)
	if got := p.Alloc(); got != 1 {
		t.Errorf("lowest recycled pid should come first, got %d", got)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("double dealloc should panic")
		}
	}()
	p.Dealloc(2)
}

func TestTrapContextEncoding(t *testing.T) {
	cx := AppInitContext(0x10000, 0x13000, 8<<60|0x80400, 0x7fff_ff000, trapHandlerAddr)
	cx.X[RegA0] = 42
	page := make([]byte, TrapContextSize)
	cx.Encode(page)
	back := DecodeTrapContext(page)
	if back != cx {
		t.Errorf("decoded %+v, want %+v", back, cx)
	}
	if back.X[RegSP] != 0x13000 {
		t.Errorf("sp not set up")
	}
}
