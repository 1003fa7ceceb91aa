package mm

import (
	"fmt"

	"equanimity/src/lib/loader"
)

const paWidthSv39 = 56
const vaWidthSv39 = 39
const ppnWidthSv39 = paWidthSv39 - loader.PageSizeBits
const vpnWidthSv39 = vaWidthSv39 - loader.PageSizeBits

type PhysAddr uint64
type VirtAddr uint64
type PhysPageNum uint64
type VirtPageNum uint64

// NewPhysAddr truncates to the Sv39 physical address width.
func NewPhysAddr(v uint64) PhysAddr {
	return PhysAddr(v & (1<<paWidthSv39 - 1))
}

// NewVirtAddr truncates to the 39 significant bits of an Sv39 address.
func NewVirtAddr(v uint64) VirtAddr {
	return VirtAddr(v & (1<<vaWidthSv39 - 1))
}

func (p PhysAddr) Floor() PhysPageNum {
	return PhysPageNum(p / loader.PageSize)
}

func (p PhysAddr) Ceil() PhysPageNum {
	return PhysPageNum((p + loader.PageSize - 1) / loader.PageSize)
}

func (p PhysAddr) PageOffset() uint64 {
	return uint64(p) & (loader.PageSize - 1)
}

func (p PhysAddr) String() string {
	return fmt.Sprintf("PA:%#x", uint64(p))
}

func (v VirtAddr) Floor() VirtPageNum {
	return VirtPageNum(v / loader.PageSize)
}

func (v VirtAddr) Ceil() VirtPageNum {
	return VirtPageNum((v + loader.PageSize - 1) / loader.PageSize)
}

func (v VirtAddr) PageOffset() uint64 {
	return uint64(v) & (loader.PageSize - 1)
}

func (v VirtAddr) Aligned() bool {
	return v.PageOffset() == 0
}

func (v VirtAddr) String() string {
	return fmt.Sprintf("VA:%#x", uint64(v))
}

func (p PhysPageNum) Addr() PhysAddr {
	return PhysAddr(uint64(p) << loader.PageSizeBits)
}

func (p PhysPageNum) String() string {
	return fmt.Sprintf("PPN:%#x", uint64(p))
}

func (v VirtPageNum) Addr() VirtAddr {
	return VirtAddr(uint64(v) << loader.PageSizeBits)
}

// Indexes splits the page number into the three 9 bit table indexes,
// root level first.
func (v VirtPageNum) Indexes() [3]uint64 {
	vpn := uint64(v)
	var idx [3]uint64
	for i := 2; i >= 0; i-- {
		idx[i] = vpn & 0x1ff
		vpn >>= 9
	}
	return idx
}

func (v VirtPageNum) String() string {
	return fmt.Sprintf("VPN:%#x", uint64(v))
}

// VPNRange is the half open range [Start, End).
type VPNRange struct {
	Start VirtPageNum
	End   VirtPageNum
}

func NewVPNRange(start, end VirtPageNum) VPNRange {
	if start > end {
		panic(fmt.Sprintf("start %v > end %v", start, end))
	}
	return VPNRange{Start: start, End: end}
}

func (r VPNRange) Contains(v VirtPageNum) bool {
	return v >= r.Start && v < r.End
}

func (r VPNRange) Len() uint64 {
	return uint64(r.End - r.Start)
}

// Overlaps reports whether the two ranges share a page.
func (r VPNRange) Overlaps(o VPNRange) bool {
	return r.Start < o.End && o.Start < r.End
}
