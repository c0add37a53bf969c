//go:build !unix

package region

import "unsafe"

const fallbackAlign = 4096

// Map allocates a heap-backed region when anonymous mappings are unavailable.
// The returned slice is aligned to fallbackAlign.
func Map(size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	length := roundUp(size, fallbackAlign)
	raw := make([]byte, length+fallbackAlign)
	off := 0
	if rem := uintptr(unsafe.Pointer(&raw[0])) % fallbackAlign; rem != 0 {
		off = int(fallbackAlign - rem)
	}
	return &Region{data: raw[off : off+length : off+length]}, nil
}
