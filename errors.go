package slab

import "errors"

// Common errors
var (
	// ErrExhausted reports that every cell of every chunk is in use.
	ErrExhausted = errors.New("slab: pool exhausted")
	// ErrStaleHandle reports access through a released (or zero) Box.
	ErrStaleHandle = errors.New("slab: handle already released")
	// ErrPoolClosed reports access after the pool's Close.
	ErrPoolClosed = errors.New("slab: pool closed")

	ErrInvalidChunkCount  = errors.New("slab: chunk count out of range")
	ErrInvalidWordBits    = errors.New("slab: word bits must be 8, 16, 32 or 64")
	ErrRegionTooSmall     = errors.New("slab: region smaller than required size")
	ErrRegionMisaligned   = errors.New("slab: region is not suitably aligned")
	ErrAlreadyInitialized = errors.New("slab: region already hosts a pool")
	ErrPointerElem        = errors.New("slab: placement element type contains pointers")
	ErrInvalidCellAlign   = errors.New("slab: cell alignment must be a power of two")
)
