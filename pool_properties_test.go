package slab

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var widths = []int{8, 16, 32, 64}

// TestPoolCapacityProperties validates allocation limits using property-based testing.
func TestPoolCapacityProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: exactly N*W allocations succeed, the next one fails
	properties.Property("capacity is chunks times width", prop.ForAll(
		func(chunks, widthIdx int) bool {
			w := widths[widthIdx]
			pool := MustNew[int](chunks, WithWordBits(w))
			for i := 0; i < chunks*w; i++ {
				if _, ok := pool.Allocate(i); !ok {
					return false
				}
			}
			_, ok := pool.Allocate(-1)
			return !ok && pool.InUse() == chunks*w
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, len(widths)-1),
	))

	// Property: k allocations into one chunk leave W-k free bits
	properties.Property("free bits track allocations", prop.ForAll(
		func(widthIdx, k int) bool {
			w := widths[widthIdx]
			if k > w {
				k = w
			}
			pool := MustNew[int](1, WithWordBits(w))
			for i := 0; i < k; i++ {
				pool.Allocate(i)
			}
			c, _ := pool.ChunkAt(0)
			return c.Free() == w-k && c.Used() == k
		},
		gen.IntRange(0, len(widths)-1),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}

// TestPoolReleaseProperties validates release behavior using property-based testing.
func TestPoolReleaseProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: releasing every handle in any order restores all-ones masks
	properties.Property("release order does not matter", prop.ForAll(
		func(chunks int, order []int) bool {
			pool := MustNew[uint32](chunks, WithWordBits(16))
			boxes := make([]Box[uint32], 0, pool.Capacity())
			for i := 0; i < pool.Capacity(); i++ {
				b, _ := pool.Allocate(uint32(i))
				boxes = append(boxes, b)
			}

			// Release according to the generated permutation seed, then sweep the rest.
			for _, o := range order {
				if len(boxes) == 0 {
					break
				}
				i := o % len(boxes)
				if boxes[i].Release() != nil {
					return false
				}
				boxes = append(boxes[:i], boxes[i+1:]...)
			}
			for _, b := range boxes {
				if b.Release() != nil {
					return false
				}
			}

			for i := 0; i < pool.Chunks(); i++ {
				c, _ := pool.ChunkAt(i)
				if !c.Empty() {
					return false
				}
			}
			return pool.InUse() == 0
		},
		gen.IntRange(1, 4),
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	// Property: a value read back through its handle equals the value written
	properties.Property("round trip", prop.ForAll(
		func(values []int64) bool {
			pool := MustNew[int64](2)
			var boxes []Box[int64]
			for _, v := range values {
				b, ok := pool.Allocate(v)
				if !ok {
					break
				}
				boxes = append(boxes, b)
			}
			for i, b := range boxes {
				if b.Value() != values[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64()),
	))

	// Property: chunk i receives nothing until chunks 0..i-1 are full
	properties.Property("lowest chunk first", prop.ForAll(
		func(n int) bool {
			pool := MustNew[int](4, WithWordBits(8))
			for i := 0; i < n; i++ {
				b, ok := pool.Allocate(i)
				if !ok {
					return n > pool.Capacity()
				}
				if b.Chunk() != i/8 || b.Cell() != i%8 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}
