package memory

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/slab/internal/metrics"
)

// TrackingAllocator forwards to an inner memory.Allocator and accounts for
// every byte that passes through it, both locally and in Prometheus.
type TrackingAllocator struct {
	inner memory.Allocator

	allocated atomic.Int64
	freed     atomic.Int64
	live      atomic.Int64
	peak      atomic.Int64
}

// NewTrackingAllocator wraps inner; nil selects memory.DefaultAllocator.
func NewTrackingAllocator(inner memory.Allocator) *TrackingAllocator {
	if inner == nil {
		inner = memory.DefaultAllocator
	}
	return &TrackingAllocator{inner: inner}
}

func (a *TrackingAllocator) Allocate(size int) []byte {
	a.grow(size)
	a.live.Add(1)
	metrics.AllocatorAllocationsActive.Inc()
	return a.inner.Allocate(size)
}

// Reallocate counts growth as new bytes and shrinkage as freed bytes; the
// number of live buffers does not change.
func (a *TrackingAllocator) Reallocate(size int, b []byte) []byte {
	switch delta := size - len(b); {
	case delta > 0:
		a.grow(delta)
	case delta < 0:
		a.shrink(-delta)
	}
	return a.inner.Reallocate(size, b)
}

func (a *TrackingAllocator) Free(b []byte) {
	a.shrink(len(b))
	a.live.Add(-1)
	metrics.AllocatorAllocationsActive.Dec()
	a.inner.Free(b)
}

func (a *TrackingAllocator) grow(n int) {
	a.allocated.Add(int64(n))
	metrics.AllocatorBytesAllocatedTotal.Add(float64(n))

	out := a.Outstanding()
	for {
		p := a.peak.Load()
		if out <= p || a.peak.CompareAndSwap(p, out) {
			return
		}
	}
}

func (a *TrackingAllocator) shrink(n int) {
	a.freed.Add(int64(n))
	metrics.AllocatorBytesFreedTotal.Add(float64(n))
}

// BytesAllocated is the running total of bytes handed out.
func (a *TrackingAllocator) BytesAllocated() int64 { return a.allocated.Load() }

// BytesFreed is the running total of bytes given back.
func (a *TrackingAllocator) BytesFreed() int64 { return a.freed.Load() }

// Outstanding is BytesAllocated minus BytesFreed.
func (a *TrackingAllocator) Outstanding() int64 { return a.allocated.Load() - a.freed.Load() }

// Peak is the highest Outstanding value observed.
func (a *TrackingAllocator) Peak() int64 { return a.peak.Load() }

// Live is the number of buffers not yet freed.
func (a *TrackingAllocator) Live() int64 { return a.live.Load() }

// Inner returns the wrapped allocator.
func (a *TrackingAllocator) Inner() memory.Allocator { return a.inner }

var _ memory.Allocator = (*TrackingAllocator)(nil)
