package fs

import (
	"encoding/binary"

	"equanimity/src/lib/trust"
	"equanimity/src/mm"
)

var fsLog = trust.NewLogger("fs")

// File is anything a file descriptor can name.
type File interface {
	Readable() bool
	Writable() bool
	// Read fills buf from the file and returns the number of bytes read.
	Read(buf mm.UserBuffer) int
	// Write drains buf into the file and returns the number of bytes written.
	Write(buf mm.UserBuffer) int
	Stat() Stat
}

// Releaser is implemented by files that hold something beyond memory,
// it is called when the last handle goes away.
type Releaser interface {
	Release()
}

type StatMode uint32

const (
	StatNull StatMode = 0
	StatDir  StatMode = 0o040000
	StatFile StatMode = 0o100000
)

// StatSize is the size of Stat in user memory.
const StatSize = 80

type Stat struct {
	Dev   uint64
	Ino   uint64
	Mode  StatMode
	NLink uint32
}

// Bytes lays the stat out the way user programs read it: dev, ino,
// mode, nlink and seven words of padding.
func (s Stat) Bytes() []byte {
	b := make([]byte, StatSize)
	binary.LittleEndian.PutUint64(b[0:], s.Dev)
	binary.LittleEndian.PutUint64(b[8:], s.Ino)
	binary.LittleEndian.PutUint32(b[16:], uint32(s.Mode))
	binary.LittleEndian.PutUint32(b[20:], s.NLink)
	return b
}

// StatFromBytes is the inverse of Bytes.
func StatFromBytes(b []byte) Stat {
	return Stat{
		Dev:   binary.LittleEndian.Uint64(b[0:]),
		Ino:   binary.LittleEndian.Uint64(b[8:]),
		Mode:  StatMode(binary.LittleEndian.Uint32(b[16:])),
		NLink: binary.LittleEndian.Uint32(b[20:]),
	}
}

type OpenFlags uint32

const (
	OpenRDONLY OpenFlags = 0
	OpenWRONLY OpenFlags = 1 << 0
	OpenRDWR   OpenFlags = 1 << 1
	OpenCREATE OpenFlags = 1 << 9
	OpenTRUNC  OpenFlags = 1 << 10
)

// ReadWrite decodes the access mode.
func (f OpenFlags) ReadWrite() (bool, bool) {
	switch {
	case f&OpenWRONLY != 0:
		return false, true
	case f&OpenRDWR != 0:
		return true, true
	default:
		return true, false
	}
}
