package memory

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"

	"github.com/23skdu/slab"
	"github.com/23skdu/slab/internal/metrics"
	"github.com/23skdu/slab/internal/region"
)

const (
	// CellBytes is the size of one pooled allocation, one cache line.
	CellBytes = 64
)

// Cell is the element type of the pool backing a CellAllocator.
type Cell [CellBytes]byte

// CellAllocatorConfig configures a CellAllocator.
type CellAllocatorConfig struct {
	// Chunks is the number of pool chunks; capacity is Chunks*WordBits cells.
	Chunks int
	// WordBits sets cells per chunk (0 means the platform word).
	WordBits int
	// Placement hosts the pool in an anonymous memory mapping instead of the Go heap.
	Placement bool
	// Fallback serves requests larger than a cell and requests made while the
	// pool is exhausted. Defaults to memory.DefaultAllocator.
	Fallback memory.Allocator
	Name     string
	Logger   *zerolog.Logger
}

// CellAllocator implements memory.Allocator on top of a slab pool of
// fixed-size cells. Requests of at most CellBytes are served from the pool;
// everything else goes to the fallback allocator.
//
// The pool only frees through its handles, so the allocator keeps its own
// table from cell address to handle. Unlike the pool it is safe for
// concurrent use; a single mutex serializes every call.
type CellAllocator struct {
	mu       sync.Mutex
	pool     *slab.Pool[Cell]
	fallback memory.Allocator
	live     map[uintptr]slab.Box[Cell]

	allocated int64
}

// NewCellAllocator builds the backing pool and returns the allocator.
func NewCellAllocator(cfg CellAllocatorConfig) (*CellAllocator, error) {
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = memory.DefaultAllocator
	}

	// Arrow expects buffers on 64-byte boundaries.
	opts := []slab.Option{slab.WithWordBits(cfg.WordBits), slab.WithCellAlign(CellBytes)}
	if cfg.Name != "" {
		opts = append(opts, slab.WithName(cfg.Name))
	}
	if cfg.Logger != nil {
		opts = append(opts, slab.WithLogger(cfg.Logger))
	}

	var (
		pool *slab.Pool[Cell]
		err  error
	)
	if cfg.Placement {
		pool, err = newPlacedPool(cfg.Chunks, opts)
	} else {
		pool, err = slab.New[Cell](cfg.Chunks, opts...)
	}
	if err != nil {
		return nil, err
	}

	return &CellAllocator{
		pool:     pool,
		fallback: fallback,
		live:     make(map[uintptr]slab.Box[Cell]),
	}, nil
}

func newPlacedPool(chunks int, opts []slab.Option) (*slab.Pool[Cell], error) {
	size := slab.RequiredSize[Cell](chunks, opts...)
	if size == 0 {
		// Let Init report the configuration error.
		return slab.Init[Cell](nil, chunks, opts...)
	}
	r, err := region.Map(size)
	if err != nil {
		return nil, fmt.Errorf("cell allocator: map %d bytes: %w", size, err)
	}
	pool, err := slab.Init[Cell](r.Bytes(), chunks, append(opts, slab.WithCloser(r.Close))...)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return pool, nil
}

// Allocate returns a zeroed slice of length size.
func (a *CellAllocator) Allocate(size int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocate(size)
}

func (a *CellAllocator) allocate(size int) []byte {
	atomic.AddInt64(&a.allocated, int64(size))

	if size <= CellBytes {
		if box, ok := a.pool.Allocate(Cell{}); ok {
			ptr := box.Ptr()
			a.live[uintptr(unsafe.Pointer(ptr))] = box
			metrics.CellAllocatorBytesTotal.WithLabelValues("cell").Add(float64(size))
			return ptr[:size]
		}
	}

	metrics.CellAllocatorBytesTotal.WithLabelValues("fallback").Add(float64(size))
	return a.fallback.Allocate(size)
}

// Reallocate resizes b, keeping its contents. A cell-backed slice that still
// fits stays in its cell.
func (a *CellAllocator) Reallocate(size int, b []byte) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := sliceKey(b)
	if box, ok := a.live[key]; ok {
		if size <= CellBytes {
			atomic.AddInt64(&a.allocated, int64(size-len(b)))
			cell := box.Ptr()
			if size > len(b) {
				clear(cell[len(b):size])
			}
			return cell[:size]
		}
		out := a.allocate(size)
		copy(out, b)
		a.free(b)
		return out
	}

	atomic.AddInt64(&a.allocated, int64(size-len(b)))
	return a.fallback.Reallocate(size, b)
}

// Free returns b to the pool if it is a cell, otherwise to the fallback.
func (a *CellAllocator) Free(b []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free(b)
}

func (a *CellAllocator) free(b []byte) {
	atomic.AddInt64(&a.allocated, -int64(len(b)))

	key := sliceKey(b)
	if box, ok := a.live[key]; ok {
		delete(a.live, key)
		if err := box.Release(); err != nil {
			panic(fmt.Sprintf("cell allocator: release: %v", err))
		}
		return
	}
	a.fallback.Free(b)
}

// Allocated returns total bytes currently allocated.
func (a *CellAllocator) Allocated() int64 {
	return atomic.LoadInt64(&a.allocated)
}

// LiveCells returns the number of outstanding pooled allocations.
func (a *CellAllocator) LiveCells() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Stats exposes the backing pool's summary.
func (a *CellAllocator) Stats() slab.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pool.Stats()
}

// Close releases the pool. Outstanding cell slices must not be used afterwards.
func (a *CellAllocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.live = make(map[uintptr]slab.Box[Cell])
	return a.pool.Close()
}

// AssertSize is a test helper that returns an error if size mismatch occurs
func (a *CellAllocator) AssertSize(sz int) error {
	if int(a.Allocated()) != sz {
		return fmt.Errorf("allocator size mismatch: expected %d, got %d", sz, a.Allocated())
	}
	return nil
}

func sliceKey(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

var _ memory.Allocator = (*CellAllocator)(nil)
