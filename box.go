package slab

import (
	"fmt"

	slaberrors "github.com/23skdu/slab/internal/errors"
)

// Box owns one cell of a Pool. It records the cell by index together with the
// cell's generation at allocation time, so any copy of a Box becomes stale the
// moment one of them is released.
//
// Release is the only way a cell is returned to its chunk; the usual pattern
// is
//
//	b, ok := pool.Allocate(v)
//	if !ok {
//		// pool exhausted
//	}
//	defer b.Release()
//
// The zero Box is stale.
type Box[T any] struct {
	pool  *Pool[T]
	chunk uint32
	gen   uint32
	cell  uint8
}

// Valid reports whether the Box still owns its cell.
func (b Box[T]) Valid() bool {
	if b.pool == nil {
		return false
	}
	_, err := b.pool.resolve(b)
	return err == nil
}

// Chunk returns the index of the chunk housing the cell.
func (b Box[T]) Chunk() int {
	return int(b.chunk)
}

// Cell returns the index of the cell within its chunk.
func (b Box[T]) Cell() int {
	return int(b.cell)
}

// Get returns a copy of the held value.
func (b Box[T]) Get() (T, error) {
	ptr, err := b.lookup("get")
	if err != nil {
		var zero T
		return zero, err
	}
	return *ptr, nil
}

// Ptr returns a pointer to the cell. The pointer is valid until Release.
// It panics if the Box is stale.
func (b Box[T]) Ptr() *T {
	return b.mustLookup("ptr")
}

// Value returns a copy of the held value. It panics if the Box is stale.
func (b Box[T]) Value() T {
	return *b.mustLookup("value")
}

// Set overwrites the held value. It panics if the Box is stale.
func (b Box[T]) Set(v T) {
	*b.mustLookup("set") = v
}

// Release returns the cell to its chunk. Releasing a stale Box, including any
// copy of an already released one, leaves the pool untouched and returns
// ErrStaleHandle.
func (b Box[T]) Release() error {
	if _, err := b.lookup("release"); err != nil {
		return err
	}
	b.pool.release(b)
	return nil
}

// String formats the held value, or a marker for a stale Box.
func (b Box[T]) String() string {
	v, err := b.Get()
	if err != nil {
		return "<released>"
	}
	return fmt.Sprint(v)
}

func (b Box[T]) lookup(op string) (*T, error) {
	if b.pool == nil {
		return nil, ErrStaleHandle
	}
	ptr, err := b.pool.resolve(b)
	if err != nil {
		b.pool.noteStale(op, err)
		return nil, slaberrors.WrapHandleError(err, op, "handle rejected").
			WithContext("chunk", b.chunk).
			WithContext("cell", b.cell)
	}
	return ptr, nil
}

func (b Box[T]) mustLookup(op string) *T {
	ptr, err := b.lookup(op)
	if err != nil {
		panic(fmt.Sprintf("slab: %s: %v", op, err))
	}
	return ptr
}

// Equal reports whether b holds v. A stale Box equals nothing.
func Equal[T comparable](b Box[T], v T) bool {
	got, err := b.Get()
	return err == nil && got == v
}
