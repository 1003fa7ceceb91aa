package mm

import (
	"encoding/binary"

	"equanimity/src/lib/loader"
)

// UserBuffer is a user range seen through the page table: one slice per
// physical page it touches.
type UserBuffer struct {
	Buffers [][]byte
}

func (u UserBuffer) Len() int {
	total := 0
	for _, b := range u.Buffers {
		total += len(b)
	}
	return total
}

// Bytes copies the buffer out of user memory.
func (u UserBuffer) Bytes() []byte {
	out := make([]byte, 0, u.Len())
	for _, b := range u.Buffers {
		out = append(out, b...)
	}
	return out
}

// CopyIn writes data into user memory, returning how much fit.
func (u UserBuffer) CopyIn(data []byte) int {
	n := 0
	for _, b := range u.Buffers {
		if len(data) == 0 {
			break
		}
		c := copy(b, data)
		data = data[c:]
		n += c
	}
	return n
}

// AccessUser translates [ptr, ptr+length) in the space named by token.
// Every page must be valid, user accessible and carry the flags in need.
func AccessUser(mem *FrameAllocator, token, ptr, length uint64, need PTEFlags) (UserBuffer, error) {
	pt := mem.PageTableFromToken(token)
	var result UserBuffer
	if ptr+length < ptr {
		return result, ErrBadAddress
	}
	start, end := ptr, ptr+length
	for start < end {
		va := NewVirtAddr(start)
		if uint64(va) != start {
			return UserBuffer{}, ErrBadAddress
		}
		vpn := va.Floor()
		pte, ok := pt.Translate(vpn)
		if !ok || !pte.User() || pte.Flags()&need != need {
			return UserBuffer{}, ErrBadAddress
		}
		page := mem.Page(pte.PPN())
		if page == nil {
			return UserBuffer{}, ErrBadAddress
		}
		pageEnd := uint64(vpn+1) * loader.PageSize
		if pageEnd > end {
			pageEnd = end
		}
		result.Buffers = append(result.Buffers, page[va.PageOffset():va.PageOffset()+(pageEnd-start)])
		start = pageEnd
	}
	return result, nil
}

// TranslatedByteBuffer is the user range [ptr, ptr+length) as kernel
// visible slices.
func TranslatedByteBuffer(mem *FrameAllocator, token, ptr, length uint64) (UserBuffer, error) {
	return AccessUser(mem, token, ptr, length, 0)
}

// TranslatedRefMut returns a writable view of size bytes at ptr. The
// object may not straddle a page boundary.
func TranslatedRefMut(mem *FrameAllocator, token, ptr, size uint64) ([]byte, error) {
	if VirtAddr(ptr).PageOffset()+size > loader.PageSize {
		return nil, ErrBadAddress
	}
	buf, err := AccessUser(mem, token, ptr, size, PTEWrite)
	if err != nil {
		return nil, err
	}
	if len(buf.Buffers) != 1 {
		return nil, ErrBadAddress
	}
	return buf.Buffers[0], nil
}

// PutUint64 stores v at ptr in user memory.
func PutUint64(mem *FrameAllocator, token, ptr, v uint64) error {
	buf, err := AccessUser(mem, token, ptr, 8, PTEWrite)
	if err != nil {
		return err
	}
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], v)
	buf.CopyIn(raw[:])
	return nil
}

// TranslatedStr reads a NUL terminated string out of user memory.
func TranslatedStr(mem *FrameAllocator, token, ptr uint64) (string, error) {
	return TranslatedStrSafe(mem, token, ptr, 0)
}

// TranslatedStrSafe is TranslatedStr that gives up after max bytes
// without a terminator. A max of zero means no limit.
func TranslatedStrSafe(mem *FrameAllocator, token, ptr uint64, max int) (string, error) {
	var out []byte
	for {
		va := ptr + uint64(len(out))
		chunk := loader.PageSize - VirtAddr(va).PageOffset()
		buf, err := AccessUser(mem, token, va, chunk, 0)
		if err != nil {
			return "", err
		}
		for _, c := range buf.Buffers[0] {
			if c == 0 {
				return string(out), nil
			}
			if max > 0 && len(out) >= max {
				return "", ErrBadAddress
			}
			out = append(out, c)
		}
	}
}
