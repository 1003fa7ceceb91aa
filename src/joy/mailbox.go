package joy

import "sync"

const MailBoxSize = 16
const MailBoxMessageSize = 256

// Mailbox is a bounded queue of messages, oldest first.
type Mailbox struct {
	mu    sync.Mutex
	ring  [MailBoxSize][]byte
	head  int
	count int
}

// Post copies msg into the box, truncated to MailBoxMessageSize. It
// returns the stored length, or false if the box is full.
func (m *Mailbox) Post(msg []byte) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == MailBoxSize {
		return 0, false
	}
	if len(msg) > MailBoxMessageSize {
		msg = msg[:MailBoxMessageSize]
	}
	m.ring[(m.head+m.count)%MailBoxSize] = append([]byte(nil), msg...)
	m.count++
	return len(msg), true
}

// Take removes the oldest message.
func (m *Mailbox) Take() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return nil, false
	}
	msg := m.ring[m.head]
	m.ring[m.head] = nil
	m.head = (m.head + 1) % MailBoxSize
	m.count--
	return msg, true
}

func (m *Mailbox) Full() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count == MailBoxSize
}

func (m *Mailbox) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count == 0
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Drop throws every message away.
func (m *Mailbox) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.ring {
		m.ring[i] = nil
	}
	m.head, m.count = 0, 0
}
