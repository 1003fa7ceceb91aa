package syscall

import (
	"equanimity/src/joy"
	"equanimity/src/mm"
)

// sysMailRead takes the oldest message of the current task's mailbox into
// buf, cut to length. A zero length only asks whether there is mail.
func sysMailRead(k *joy.Kernel, ptr, length uint64) int64 {
	cur := k.CurrentTask()
	if length == 0 {
		if cur.Mailbox.Empty() {
			return -1
		}
		return 0
	}
	if length > joy.MailBoxMessageSize {
		length = joy.MailBoxMessageSize
	}
	buf, err := mm.AccessUser(k.Frames(), cur.UserToken(), ptr, length, mm.PTEWrite)
	if err != nil {
		return -1
	}
	msg, ok := cur.Mailbox.Take()
	if !ok {
		return -1
	}
	return int64(buf.CopyIn(msg))
}

// sysMailWrite posts buf to the task with the given pid, which may be the
// caller. A zero length only asks whether the mailbox has room.
func sysMailWrite(k *joy.Kernel, pid joy.PID, ptr, length uint64) int64 {
	cur := k.CurrentTask()
	target := cur
	if pid != cur.PID() {
		target = k.TaskByPID(pid)
	}
	if target == nil {
		return -1
	}
	if length == 0 {
		if target.Mailbox.Full() {
			return -1
		}
		return 0
	}
	if length > joy.MailBoxMessageSize {
		length = joy.MailBoxMessageSize
	}
	buf, err := mm.AccessUser(k.Frames(), cur.UserToken(), ptr, length, mm.PTERead)
	if err != nil {
		return -1
	}
	n, ok := target.Mailbox.Post(buf.Bytes())
	if !ok {
		return -1
	}
	return int64(n)
}
