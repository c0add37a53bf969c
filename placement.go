package slab

import (
	"math"
	"math/bits"
	"reflect"
	"unsafe"

	slaberrors "github.com/23skdu/slab/internal/errors"
	"github.com/23skdu/slab/internal/metrics"
)

// Placement layout over a caller-supplied region:
//
//	[header][chunk 0 .. chunk N-1][pad][cell 0 .. cell N*W-1]
//
// The header records the geometry so that a region already hosting a pool is
// recognised and rejected by Init.

const (
	headerMagic   uint64 = 0x534c41425f504f4c // "SLAB_POL"
	layoutVersion uint32 = 1
)

type header struct {
	magic       uint64
	version     uint32
	wordBits    uint32
	chunkCount  uint64
	cellSize    uint64
	cellsOffset uint64
}

var (
	headerSize = int(unsafe.Sizeof(header{}))
	chunkSize  = int(unsafe.Sizeof(Chunk{}))
	chunkAlign = int(unsafe.Alignof(Chunk{}))
)

// Layout describes where the parts of a placement pool live in its region.
type Layout struct {
	ChunksOffset int
	CellsOffset  int
	CellSize     int
	Align        int
	Size         int
}

// cellAlignFor returns the alignment of the first cell: the natural alignment
// of T, raised to minAlign when that is larger.
func cellAlignFor[T any](minAlign int) int {
	var zero T
	align := int(unsafe.Alignof(zero))
	if minAlign > align {
		align = minAlign
	}
	return align
}

// maxChunks returns the largest chunk count whose layout size fits in an int
// and whose chunk indices fit in a Box.
func maxChunks[T any](wordBits, cellAlign int) int {
	var zero T
	hi, lo := bits.Mul64(uint64(wordBits), uint64(unsafe.Sizeof(zero)))
	headroom := uint64(headerSize + chunkAlign + cellAlign)
	if hi != 0 || lo > math.MaxInt-uint64(chunkSize)-headroom {
		return 0
	}
	perChunk := lo + uint64(chunkSize)
	limit := (math.MaxInt - headroom) / perChunk
	if limit > math.MaxUint32 {
		limit = math.MaxUint32
	}
	return int(limit)
}

// checkChunkCount rejects counts that are negative or whose layout would
// overflow.
func checkChunkCount[T any](op string, chunkCount int, o options) error {
	limit := maxChunks[T](o.wordBits, cellAlignFor[T](o.cellAlign))
	if chunkCount < 0 || chunkCount > limit {
		return slaberrors.WrapConfigurationError(ErrInvalidChunkCount, op, "invalid chunk count").
			WithContext("chunks", chunkCount).
			WithContext("max", limit)
	}
	return nil
}

// layoutFor assumes chunkCount passed checkChunkCount.
func layoutFor[T any](chunkCount int, o options) Layout {
	var zero T
	cellSize := int(unsafe.Sizeof(zero))
	cellAlign := cellAlignFor[T](o.cellAlign)
	wordBits := o.wordBits

	align := chunkAlign
	if cellAlign > align {
		align = cellAlign
	}

	chunksOffset := alignUp(headerSize, chunkAlign)
	cellsOffset := alignUp(chunksOffset+chunkCount*chunkSize, cellAlign)
	return Layout{
		ChunksOffset: chunksOffset,
		CellsOffset:  cellsOffset,
		CellSize:     cellSize,
		Align:        align,
		Size:         cellsOffset + chunkCount*wordBits*cellSize,
	}
}

// RequiredSize returns the number of bytes a region must provide for Init to
// host chunkCount chunks of T. Only WithWordBits and WithCellAlign affect it.
// It returns 0 for an out-of-range chunk count or invalid options.
func RequiredSize[T any](chunkCount int, opts ...Option) int {
	l, err := PlacementLayout[T](chunkCount, opts...)
	if err != nil {
		return 0
	}
	return l.Size
}

// PlacementLayout returns the full layout used by Init.
func PlacementLayout[T any](chunkCount int, opts ...Option) (Layout, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return Layout{}, err
	}
	if err := checkChunkCount[T]("layout", chunkCount, o); err != nil {
		return Layout{}, err
	}
	return layoutFor[T](chunkCount, o), nil
}

// Init lays a pool of chunkCount chunks over region, marking every chunk
// fully free. The region must be at least RequiredSize bytes, aligned for both
// the chunk table and T, and not already host a pool. T must not contain Go
// pointers because the region is not scanned by the garbage collector.
//
// The returned pool refers into region; region must stay valid until Close.
func Init[T any](region []byte, chunkCount int, opts ...Option) (*Pool[T], error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if err := checkChunkCount[T]("init", chunkCount, o); err != nil {
		return nil, err
	}
	if t := reflect.TypeFor[T](); hasPointers(t) {
		return nil, slaberrors.WrapConfigurationError(ErrPointerElem, "init", "element type not placeable").
			WithContext("type", t.String())
	}

	l := layoutFor[T](chunkCount, o)
	if len(region) < l.Size {
		return nil, slaberrors.WrapConfigurationError(ErrRegionTooSmall, "init", "region too small").
			WithContext("required", l.Size).
			WithContext("size", len(region))
	}
	base := unsafe.Pointer(unsafe.SliceData(region))
	if uintptr(base)%uintptr(l.Align) != 0 {
		return nil, slaberrors.WrapConfigurationError(ErrRegionMisaligned, "init", "region misaligned").
			WithContext("align", l.Align)
	}

	h := (*header)(base)
	if h.magic == headerMagic {
		return nil, slaberrors.WrapConfigurationError(ErrAlreadyInitialized, "init", "region already initialized").
			WithContext("chunks", h.chunkCount).
			WithContext("word_bits", h.wordBits)
	}

	p := &Pool[T]{
		chunks:      unsafe.Slice((*Chunk)(unsafe.Add(base, l.ChunksOffset)), chunkCount),
		header:      h,
		placed:      true,
		regionBytes: l.Size,
	}
	if n := chunkCount * o.wordBits; l.CellSize == 0 || n == 0 {
		p.cells = make([]T, n)
	} else {
		p.cells = unsafe.Slice((*T)(unsafe.Add(base, l.CellsOffset)), n)
	}

	// Chunk contents in a fresh region are undefined; start from zeroed
	// generations and all-free masks.
	for i := range p.chunks {
		p.chunks[i] = Chunk{}
	}
	p.setup(o)

	*h = header{
		magic:       headerMagic,
		version:     layoutVersion,
		wordBits:    uint32(o.wordBits),
		chunkCount:  uint64(chunkCount),
		cellSize:    uint64(l.CellSize),
		cellsOffset: uint64(l.CellsOffset),
	}
	metrics.SlabRegionBytes.WithLabelValues(p.Name()).Add(float64(l.Size))

	p.log().Debug().
		Str("pool", p.name).
		Int("chunks", chunkCount).
		Int("word_bits", p.wordBits).
		Int("required", l.Size).
		Int("region", len(region)).
		Msg("slab pool placed")

	return p, nil
}

// Placement reports whether the pool was laid over a caller-supplied region.
func (p *Pool[T]) Placement() bool {
	return p.placed
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice,
		reflect.String, reflect.Chan, reflect.Func, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
