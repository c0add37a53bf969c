// Package slab implements a fixed-capacity, typed cell pool.
//
// A Pool owns N chunks of W cells each, where W is the machine word width
// (or 8, 16 or 32 for narrow configurations). Each chunk tracks its cells with
// a single W-bit free mask, so finding a free cell is a leading-zero count and
// releasing one is a single OR.
//
// Allocate hands out a Box that owns exactly one cell. Box.Release is the only
// way a cell is reclaimed. A Box names its cell by chunk and cell index plus the
// cell's generation, so releasing or reading through a stale copy is detected
// rather than corrupting the pool.
//
// Pools are built either on the Go heap with New, or laid over a caller-owned
// memory region with Init after sizing it with RequiredSize:
//
//	buf := make([]byte, slab.RequiredSize[uint32](4))
//	pool, err := slab.Init[uint32](buf, 4)
//
// Pools do no locking.
package slab
