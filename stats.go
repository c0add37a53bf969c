package slab

import "unsafe"

// Stats is a point-in-time summary of a pool. It carries what an adapter
// needs to serve a host allocator interface on top of the pool.
type Stats struct {
	Name        string
	Chunks      int
	WordBits    int
	Capacity    int
	InUse       int
	Free        int
	FullChunks  int
	EmptyChunks int
	CellSize    int
	Placement   bool
	Closed      bool

	Allocations uint64
	Releases    uint64
	Exhaustions uint64
}

// Utilization returns InUse/Capacity, or 0 for an empty pool.
func (s Stats) Utilization() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.InUse) / float64(s.Capacity)
}

// Stats summarizes the pool.
func (p *Pool[T]) Stats() Stats {
	var zero T
	s := Stats{
		Name:        p.Name(),
		Chunks:      len(p.chunks),
		WordBits:    p.WordBits(),
		Capacity:    p.Capacity(),
		InUse:       p.inUse,
		CellSize:    int(unsafe.Sizeof(zero)),
		Placement:   p.Placement(),
		Closed:      p.closed,
		Allocations: p.allocations,
		Releases:    p.releases,
		Exhaustions: p.exhaustions,
	}
	for i := range p.chunks {
		c := &p.chunks[i]
		s.Free += c.Free()
		switch {
		case c.Full():
			s.FullChunks++
		case c.Empty():
			s.EmptyChunks++
		}
	}
	return s
}
