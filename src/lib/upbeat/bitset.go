package upbeat

import (
	"fmt"
	"math/bits"
)

type BitSet struct {
	size uint32
	data []uint64
}

type BitIndex uint32

// NoBit is returned by searches that find nothing.
const NoBit = BitIndex(0xffff_ffff)

//bitsets have to be multiples of 64.
func NewBitSet(size uint32) (*BitSet, error) {
	mask := ^(uint32(0x3f))
	if size&mask != size || size == 0 {
		return nil, fmt.Errorf("bitset size is not a multiple of 64: %d", size)
	}
	return &BitSet{
		data: make([]uint64, size>>6),
		size: size,
	}, nil
}

func (b *BitSet) Size() uint32 {
	return b.size
}

func (b *BitSet) On(bit BitIndex) bool {
	boff := bit >> 6                //which uint64
	mask := uint64(1 << (bit % 64)) //which bit in the right
	return b.data[boff]&mask != 0
}

func (b *BitSet) Set(bit BitIndex) {
	b.data[bit>>6] |= uint64(1 << (bit % 64))
}

func (b *BitSet) Clear(bit BitIndex) {
	b.data[bit>>6] &^= uint64(1 << (bit % 64))
}

func (b *BitSet) ClearAll() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// FirstClear returns the lowest clear bit at or after start, wrapping
// around once. NoBit if every bit is set.
func (b *BitSet) FirstClear(start BitIndex) BitIndex {
	if uint32(start) >= b.size {
		start = 0
	}
	words := uint32(len(b.data))
	first := uint32(start >> 6)
	for n := uint32(0); n <= words; n++ {
		w := (first + n) % words
		free := ^b.data[w]
		if n == 0 {
			free &= ^uint64(0) << (start % 64) // bits below start come last
		}
		if free != 0 {
			return BitIndex(w*64 + uint32(bits.TrailingZeros64(free)))
		}
	}
	return NoBit
}

// Count returns how many bits are set.
func (b *BitSet) Count() int {
	total := 0
	for _, w := range b.data {
		total += bits.OnesCount64(w)
	}
	return total
}
