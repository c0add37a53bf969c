package slab

import (
	"fmt"
	"math/bits"
)

// MaxWordBits is the widest supported chunk: one cell per bit of a uint64 mask.
const MaxWordBits = 64

// NativeWordBits is the bit width of the platform word and the default chunk width.
const NativeWordBits = bits.UintSize

// Chunk tracks a block of Width() cells with a single free mask. A set bit
// marks a free cell. Index 0 is the most significant of the Width() low bits
// of the mask, so the first free cell is the count of leading zero bits.
//
// Chunk holds no pointers so a chunk table can be laid over raw memory.
type Chunk struct {
	mask  uint64
	gens  [MaxWordBits]uint32
	width uint8
}

func (c *Chunk) reset(width int) {
	c.width = uint8(width)
	c.mask = fullMask(width)
	// Generations are left as-is; a reused chunk keeps rejecting old handles.
}

// Width returns the number of cells in the chunk.
func (c *Chunk) Width() int {
	return int(c.width)
}

// Mask returns the raw free mask. Only the low Width() bits are meaningful.
func (c *Chunk) Mask() uint64 {
	return c.mask
}

// Empty reports whether no cell is allocated.
func (c *Chunk) Empty() bool {
	return c.mask == fullMask(int(c.width))
}

// Full reports whether every cell is allocated.
func (c *Chunk) Full() bool {
	return c.mask == 0
}

// Free returns the number of free cells.
func (c *Chunk) Free() int {
	return bits.OnesCount64(c.mask)
}

// Used returns the number of allocated cells.
func (c *Chunk) Used() int {
	return int(c.width) - c.Free()
}

// FirstFree returns the lowest free cell index. ok is false when the chunk is full.
func (c *Chunk) FirstFree() (index int, ok bool) {
	if c.mask == 0 {
		return 0, false
	}
	return bits.LeadingZeros64(c.mask) - (MaxWordBits - int(c.width)), true
}

// IsFree reports whether the cell at index is free. Out-of-range indices are
// reported as not free.
func (c *Chunk) IsFree(index int) bool {
	if index < 0 || index >= int(c.width) {
		return false
	}
	return c.mask&c.bit(index) != 0
}

// Generation returns the release counter of the cell at index, or 0 for an
// out-of-range index.
func (c *Chunk) Generation(index int) uint32 {
	if index < 0 || index >= int(c.width) {
		return 0
	}
	return c.gens[index]
}

func (c *Chunk) bit(index int) uint64 {
	return 1 << uint(int(c.width)-1-index)
}

// occupy clears the bit for index. The bit must be set.
func (c *Chunk) occupy(index int) {
	b := c.bit(index)
	if c.mask&b == 0 {
		panic(fmt.Sprintf("slab: cell %d occupied twice", index))
	}
	c.mask &^= b
}

// vacate sets the bit for index and advances its generation. The bit must be clear.
func (c *Chunk) vacate(index int) {
	b := c.bit(index)
	if c.mask&b != 0 {
		panic(fmt.Sprintf("slab: cell %d released twice", index))
	}
	c.mask |= b
	c.gens[index]++
}

// occupied calls fn for each allocated cell index in ascending order.
func (c *Chunk) occupied(fn func(index int)) {
	width := int(c.width)
	used := ^c.mask & fullMask(width)
	for used != 0 {
		i := bits.LeadingZeros64(used) - (MaxWordBits - width)
		fn(i)
		used &^= 1 << uint(width-1-i)
	}
}

func fullMask(width int) uint64 {
	if width == 0 {
		return 0
	}
	return ^uint64(0) >> uint(MaxWordBits-width)
}

func validWordBits(w int) bool {
	switch w {
	case 8, 16, 32, 64:
		return true
	}
	return false
}
