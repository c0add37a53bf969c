package slab

import (
	"errors"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/rs/zerolog"

	slaberrors "github.com/23skdu/slab/internal/errors"
	"github.com/23skdu/slab/internal/metrics"
)

// DefaultPoolName labels pools created without WithName.
const DefaultPoolName = "default"

var nopLogger = zerolog.Nop()

// Pool hands out cells of type T from a fixed number of chunks. The number of
// chunks never changes after construction, so capacity is Chunks()*WordBits().
//
// A Pool is not safe for concurrent use; callers serialize Allocate and
// Box.Release. The zero value is an empty pool with no capacity.
//
// A Pool must not be copied after first use.
type Pool[T any] struct {
	_ noCopy

	chunks   []Chunk
	cells    []T
	wordBits int

	name   string
	logger *zerolog.Logger
	m      *metrics.PoolCollectors

	// placement state
	header      *header
	placed      bool
	regionBytes int
	closer      func() error

	closed    bool
	exhausted bool

	inUse       int
	allocations uint64
	releases    uint64
	exhaustions uint64
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	wordBits  int
	cellAlign int
	name      string
	logger    *zerolog.Logger
	closer    func() error
}

// WithWordBits sets the chunk width. Valid widths are 8, 16, 32 and 64;
// the default is the platform word width.
func WithWordBits(w int) Option {
	return func(o *options) { o.wordBits = w }
}

// WithCellAlign raises the alignment of the first cell of a placement pool
// to align bytes, which must be a power of two. Heap pools ignore it.
func WithCellAlign(align int) Option {
	return func(o *options) { o.cellAlign = align }
}

// WithName labels the pool in metrics and logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger. Pools log nothing by default.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCloser registers a function run once by Close, typically unmapping the
// memory region of a placement-initialized pool.
func WithCloser(fn func() error) Option {
	return func(o *options) { o.closer = fn }
}

func buildOptions(opts []Option) (options, error) {
	o := options{
		wordBits: NativeWordBits,
		name:     DefaultPoolName,
		logger:   &nopLogger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.wordBits == 0 {
		o.wordBits = NativeWordBits
	}
	if !validWordBits(o.wordBits) {
		return o, slaberrors.WrapConfigurationError(ErrInvalidWordBits, "options", "unsupported chunk width").
			WithContext("word_bits", o.wordBits)
	}
	if o.cellAlign < 0 || o.cellAlign&(o.cellAlign-1) != 0 {
		return o, slaberrors.WrapConfigurationError(ErrInvalidCellAlign, "options", "cell alignment not a power of two").
			WithContext("align", o.cellAlign)
	}
	if o.logger == nil {
		o.logger = &nopLogger
	}
	return o, nil
}

// New creates a heap-backed pool of chunkCount chunks, all free.
// chunkCount may be zero, giving a pool that is always exhausted.
func New[T any](chunkCount int, opts ...Option) (*Pool[T], error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if err := checkChunkCount[T]("new", chunkCount, o); err != nil {
		return nil, err
	}

	p := &Pool[T]{
		chunks: make([]Chunk, chunkCount),
		cells:  make([]T, chunkCount*o.wordBits),
	}
	p.setup(o)

	p.logger.Debug().
		Str("pool", p.name).
		Int("chunks", chunkCount).
		Int("word_bits", p.wordBits).
		Int("capacity", p.Capacity()).
		Msg("slab pool created")

	return p, nil
}

// MustNew is like New but panics on a configuration error.
func MustNew[T any](chunkCount int, opts ...Option) *Pool[T] {
	p, err := New[T](chunkCount, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pool[T]) setup(o options) {
	p.wordBits = o.wordBits
	p.name = o.name
	p.logger = o.logger
	p.closer = o.closer
	for i := range p.chunks {
		p.chunks[i].reset(o.wordBits)
	}
	c := metrics.ForPool(o.name)
	p.m = &c
	// Pools may share a name, so gauges move by deltas.
	p.m.Capacity.Add(float64(p.Capacity()))
}

func (p *Pool[T]) log() *zerolog.Logger {
	if p.logger == nil {
		return &nopLogger
	}
	return p.logger
}

// Name returns the metrics label of the pool.
func (p *Pool[T]) Name() string {
	if p.name == "" {
		return DefaultPoolName
	}
	return p.name
}

// Chunks returns the number of chunks.
func (p *Pool[T]) Chunks() int {
	return len(p.chunks)
}

// WordBits returns the number of cells per chunk.
func (p *Pool[T]) WordBits() int {
	if p.wordBits == 0 {
		return NativeWordBits
	}
	return p.wordBits
}

// Capacity returns the total number of cells.
func (p *Pool[T]) Capacity() int {
	return len(p.chunks) * p.WordBits()
}

// InUse returns the number of allocated cells.
func (p *Pool[T]) InUse() int {
	return p.inUse
}

// ChunkAt returns the chunk at index, or false when index is out of range.
func (p *Pool[T]) ChunkAt(index int) (*Chunk, bool) {
	if index < 0 || index >= len(p.chunks) {
		return nil, false
	}
	return &p.chunks[index], true
}

// findChunkWithSpace returns the lowest-indexed chunk that is not full.
func (p *Pool[T]) findChunkWithSpace() (int, bool) {
	for i := 0; ; i++ {
		c, ok := p.ChunkAt(i)
		if !ok {
			return 0, false
		}
		if !c.Full() {
			return i, true
		}
	}
}

// Allocate stores v in the first free cell and returns its handle. ok is false
// when the pool is exhausted; that is a normal outcome, not a fault.
// A closed pool reports exhaustion.
func (p *Pool[T]) Allocate(v T) (b Box[T], ok bool) {
	if p.closed {
		p.log().Warn().Str("pool", p.Name()).Msg("allocate on closed pool")
		return Box[T]{}, false
	}

	ci, ok := p.findChunkWithSpace()
	if !ok {
		p.noteExhausted()
		return Box[T]{}, false
	}

	chunk := &p.chunks[ci]
	// Safe: the chunk was found not full.
	cell, _ := chunk.FirstFree()

	p.cells[ci*p.wordBits+cell] = v
	chunk.occupy(cell)

	p.inUse++
	p.allocations++
	if p.m != nil {
		p.m.Allocated.Inc()
		p.m.InUse.Inc()
	}

	return Box[T]{
		pool:  p,
		chunk: uint32(ci),
		cell:  uint8(cell),
		gen:   chunk.gens[cell],
	}, true
}

// AllocateErr is Allocate reporting the reason for failure as an error.
func (p *Pool[T]) AllocateErr(v T) (Box[T], error) {
	if p.closed {
		return Box[T]{}, ErrPoolClosed
	}
	b, ok := p.Allocate(v)
	if !ok {
		return Box[T]{}, slaberrors.Wrap(ErrExhausted, slaberrors.ErrorTypeCapacity, "allocate", "no free cell").
			WithContext("pool", p.Name()).
			WithContext("capacity", p.Capacity())
	}
	return b, nil
}

func (p *Pool[T]) noteExhausted() {
	p.exhaustions++
	if p.m != nil {
		p.m.Exhausted.Inc()
	}
	if !p.exhausted {
		p.exhausted = true
		p.log().Debug().
			Str("pool", p.Name()).
			Int("capacity", p.Capacity()).
			Msg("slab pool exhausted")
	}
}

// release returns the cell of b to its chunk. b must have been resolved.
func (p *Pool[T]) release(b Box[T]) {
	chunk := &p.chunks[b.chunk]
	var zero T
	p.cells[int(b.chunk)*p.wordBits+int(b.cell)] = zero
	chunk.vacate(int(b.cell))

	p.inUse--
	p.releases++
	p.exhausted = false
	if p.m != nil {
		p.m.Released.Inc()
		p.m.InUse.Dec()
	}
}

// resolve validates b against the pool and returns its cell.
func (p *Pool[T]) resolve(b Box[T]) (*T, error) {
	if p.closed {
		return nil, ErrPoolClosed
	}
	if int(b.chunk) >= len(p.chunks) {
		return nil, ErrStaleHandle
	}
	chunk := &p.chunks[b.chunk]
	cell := int(b.cell)
	if cell >= p.wordBits || chunk.IsFree(cell) || chunk.gens[cell] != b.gen {
		return nil, ErrStaleHandle
	}
	return &p.cells[int(b.chunk)*p.wordBits+cell], nil
}

func (p *Pool[T]) noteStale(op string, err error) {
	if p.m != nil && errors.Is(err, ErrStaleHandle) {
		p.m.Stale.Inc()
	}
	p.log().Warn().
		Str("pool", p.Name()).
		Str("op", op).
		Err(err).
		Msg("rejected handle")
}

// Occupancy returns the global indices (chunk*WordBits()+cell) of occupied cells.
func (p *Pool[T]) Occupancy() *roaring.Bitmap {
	bm := roaring.New()
	w := p.WordBits()
	for ci := range p.chunks {
		base := uint32(ci * w)
		p.chunks[ci].occupied(func(i int) {
			bm.Add(base + uint32(i))
		})
	}
	return bm
}

// Close ends the pool's lifetime. Outstanding handles report ErrPoolClosed and
// further allocations fail. Placement pools clear their header so the region
// can host a new pool, then run the registered closer.
func (p *Pool[T]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.m != nil {
		p.m.InUse.Sub(float64(p.inUse))
		p.m.Capacity.Sub(float64(p.Capacity()))
	}
	if p.header != nil {
		p.header.magic = 0
		metrics.SlabRegionBytes.WithLabelValues(p.Name()).Sub(float64(p.regionBytes))
	}
	p.log().Debug().
		Str("pool", p.Name()).
		Int("outstanding", p.inUse).
		Msg("slab pool closed")

	p.chunks = nil
	p.cells = nil
	p.header = nil
	if p.closer != nil {
		if err := p.closer(); err != nil {
			return slaberrors.WrapRegionError(err, "close", "closer failed").WithContext("pool", p.Name())
		}
	}
	return nil
}

// noCopy may be embedded into structs which must not be copied after first use.
// See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
