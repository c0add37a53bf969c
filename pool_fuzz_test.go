package slab

import "testing"

// FuzzPool_AllocateRelease drives a pool with an arbitrary sequence of
// allocate/release operations and checks the bitmap against a shadow model.
func FuzzPool_AllocateRelease(f *testing.F) {
	f.Add(uint8(1), []byte{0, 0, 0, 1, 1, 0})
	f.Add(uint8(3), []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 7, 0})
	f.Add(uint8(0), []byte{0, 1})

	f.Fuzz(func(t *testing.T, chunks uint8, ops []byte) {
		n := int(chunks % 5)
		pool := MustNew[int](n, WithWordBits(8))

		live := make([]Box[int], 0)
		var released []Box[int]
		for step, op := range ops {
			switch {
			case op%3 == 0:
				b, ok := pool.Allocate(step)
				if ok != (len(live) < pool.Capacity()) {
					t.Fatalf("step %d: allocate ok=%v with %d live of %d", step, ok, len(live), pool.Capacity())
				}
				if ok {
					live = append(live, b)
				}
			case op%3 == 1 && len(live) > 0:
				i := int(op) % len(live)
				if err := live[i].Release(); err != nil {
					t.Fatalf("step %d: release: %v", step, err)
				}
				released = append(released, live[i])
				live = append(live[:i], live[i+1:]...)
			case len(released) > 0:
				if err := released[int(op)%len(released)].Release(); err == nil {
					t.Fatalf("step %d: stale release succeeded", step)
				}
			}

			if pool.InUse() != len(live) {
				t.Fatalf("step %d: InUse=%d, live=%d", step, pool.InUse(), len(live))
			}
			if int(pool.Occupancy().GetCardinality()) != len(live) {
				t.Fatalf("step %d: occupancy mismatch", step)
			}
		}

		for _, b := range live {
			if !b.Valid() {
				t.Fatalf("live handle reported stale")
			}
			if err := b.Release(); err != nil {
				t.Fatalf("final release: %v", err)
			}
		}
		if s := pool.Stats(); s.EmptyChunks != n {
			t.Fatalf("expected %d empty chunks, got %d", n, s.EmptyChunks)
		}
	})
}
