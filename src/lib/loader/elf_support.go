package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Segment is one PT_LOAD entry of an image under construction. MemSize
// may exceed len(Data), the tail is zero filled (bss).
type Segment struct {
	VAddr   uint64
	Flags   elf.ProgFlag
	Data    []byte
	MemSize uint64
}

const elfHeaderSize = 64
const progHeaderSize = 56

// BuildELF produces a little endian ELF64 RISC-V executable with one
// program header per segment and no section headers.
func BuildELF(entry uint64, segs []Segment) []byte {
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     elfHeaderSize,
		Ehsize:    elfHeaderSize,
		Phentsize: progHeaderSize,
		Phnum:     uint16(len(segs)),
		Shentsize: 64,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, &hdr)

	offset := uint64(elfHeaderSize + progHeaderSize*len(segs))
	for _, s := range segs {
		mem := s.MemSize
		if mem < uint64(len(s.Data)) {
			mem = uint64(len(s.Data))
		}
		ph := elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(s.Flags),
			Off:    offset,
			Vaddr:  s.VAddr,
			Paddr:  s.VAddr,
			Filesz: uint64(len(s.Data)),
			Memsz:  mem,
			Align:  PageSize,
		}
		_ = binary.Write(&buf, binary.LittleEndian, &ph)
		offset += uint64(len(s.Data))
	}
	for _, s := range segs {
		buf.Write(s.Data)
	}
	return buf.Bytes()
}
