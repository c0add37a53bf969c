//go:build unix

package region

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Map reserves an anonymous private mapping of at least size bytes, rounded
// up to the page size. The memory is zeroed and outside the Go heap.
func Map(size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	length := roundUp(size, unix.Getpagesize())
	data, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &Region{
		data:   data,
		unmap:  munmap,
		advise: dontNeed,
	}, nil
}

func munmap(b []byte) error {
	err := unix.Munmap(b)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

func dontNeed(b []byte) error {
	return unix.Madvise(b, unix.MADV_DONTNEED)
}
