// Package region provides raw, GC-invisible memory regions used to host
// placement-initialized pools when no general-purpose heap should be touched.
package region

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSize = errors.New("region size must be positive")
	ErrClosed      = errors.New("region is closed")
)

// Region is a contiguous, page-aligned block of writable memory.
type Region struct {
	data   []byte
	unmap  func([]byte) error
	advise func([]byte) error
}

// Bytes returns the usable memory. It is nil once the region is closed.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the usable size in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

// Release hints the OS that the pages backing the region can be reclaimed.
// The region stays mapped; touching it again yields zeroed pages.
func (r *Region) Release() error {
	if r.data == nil {
		return ErrClosed
	}
	if r.advise == nil {
		return nil
	}
	if err := r.advise(r.data); err != nil {
		return fmt.Errorf("region release: %w", err)
	}
	return nil
}

// Close unmaps the region. Closing twice is a no-op.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	if r.unmap == nil {
		return nil
	}
	if err := r.unmap(data); err != nil {
		return fmt.Errorf("region close: %w", err)
	}
	return nil
}

func roundUp(n, to int) int {
	return (n + to - 1) / to * to
}
