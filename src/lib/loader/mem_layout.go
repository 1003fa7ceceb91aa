package loader

// Sv39 pages
const PageSize = 0x1000
const PageSizeBits = 12

// physical memory of the simulated board (PHYS ADDR)
const MemoryStart = 0x8000_0000

// kernel image sections, identity mapped in kernel space
const KernelTextStart = 0x8020_0000   //rx
const KernelRodataStart = 0x8022_0000 //r
const KernelDataStart = 0x8023_0000   //rw, .data and .bss
const KernelEnd = 0x8040_0000         //first frame handed to the allocator

// frames between KernelEnd and MemoryEnd are managed by the frame allocator
const MemoryEnd = 0x80c0_0000

// the trampoline is the highest page of every address space, the trap
// context page sits right below it in user spaces
const Trampoline = (1 << 39) - PageSize
const TrapContext = Trampoline - PageSize

// the trampoline code page is reserved, not allocated (PHYS ADDR)
const TrampolinePhys = KernelTextStart

// user process stack sits above the highest segment plus one guard page
const UserStackSize = 2 * PageSize

// kernel stacks are placed downward from the trampoline, one guard page
// between each pair
const KernelStackSize = 2 * PageSize

// this is where user programs are linked
const UserProcessLinkAddr = 0x1_0000

// KernelStackPosition returns [bottom, top) of the kernel stack for the
// given kernel stack id.
func KernelStackPosition(id uint64) (uint64, uint64) {
	top := Trampoline - id*(KernelStackSize+PageSize)
	return top - KernelStackSize, top
}
