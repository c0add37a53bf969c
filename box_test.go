package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slaberrors "github.com/23skdu/slab/internal/errors"
)

type point struct {
	X, Y int32
}

func TestBox_ReadWrite(t *testing.T) {
	pool := MustNew[point](1)
	b, ok := pool.Allocate(point{1, 2})
	require.True(t, ok)
	defer b.Release()

	assert.Equal(t, point{1, 2}, b.Value())

	b.Set(point{3, 4})
	assert.Equal(t, point{3, 4}, b.Value())

	b.Ptr().X = 10
	got, err := b.Get()
	require.NoError(t, err)
	assert.Equal(t, point{10, 4}, got)

	assert.True(t, Equal(b, point{10, 4}))
	assert.False(t, Equal(b, point{0, 0}))
	assert.Equal(t, "{10 4}", b.String())
}

func TestBox_PtrIsStableUntilRelease(t *testing.T) {
	pool := MustNew[int](2, WithWordBits(8))
	b, _ := pool.Allocate(7)
	p1 := b.Ptr()
	for i := 0; i < 12; i++ {
		pool.Allocate(i)
	}
	assert.Same(t, p1, b.Ptr())
	assert.Equal(t, 7, *p1)
}

func TestBox_DoubleReleaseIsRejected(t *testing.T) {
	pool := MustNew[int](1, WithWordBits(8))
	b, _ := pool.Allocate(1)
	other, _ := pool.Allocate(2)

	require.NoError(t, b.Release())
	assert.ErrorIs(t, b.Release(), ErrStaleHandle)

	chunk, _ := pool.ChunkAt(0)
	assert.Equal(t, 7, chunk.Free(), "second release must not touch the mask")
	assert.Equal(t, 1, pool.InUse())
	assert.True(t, other.Valid())
}

func TestBox_CopiesShareOwnership(t *testing.T) {
	pool := MustNew[int](1, WithWordBits(8))
	b, _ := pool.Allocate(1)
	cp := b

	require.NoError(t, cp.Release())
	assert.False(t, b.Valid())
	assert.ErrorIs(t, b.Release(), ErrStaleHandle)
}

func TestBox_StaleAfterCellReuse(t *testing.T) {
	pool := MustNew[int](1, WithWordBits(8))
	old, _ := pool.Allocate(1)
	require.NoError(t, old.Release())

	fresh, ok := pool.Allocate(2)
	require.True(t, ok)
	require.Equal(t, old.Cell(), fresh.Cell(), "freed cell is reused first")

	assert.False(t, old.Valid())
	_, err := old.Get()
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.ErrorIs(t, old.Release(), ErrStaleHandle)
	assert.False(t, Equal(old, 2))

	assert.True(t, fresh.Valid())
	assert.Equal(t, 2, fresh.Value())
}

func TestBox_StaleAccessPanics(t *testing.T) {
	pool := MustNew[int](1)
	b, _ := pool.Allocate(1)
	require.NoError(t, b.Release())

	assert.Panics(t, func() { b.Value() })
	assert.Panics(t, func() { b.Set(2) })
	assert.Panics(t, func() { b.Ptr() })
	assert.Equal(t, "<released>", b.String())
}

func TestBox_ZeroValue(t *testing.T) {
	var b Box[int]
	assert.False(t, b.Valid())
	assert.ErrorIs(t, b.Release(), ErrStaleHandle)
	_, err := b.Get()
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.Panics(t, func() { b.Value() })
}

func TestBox_ReleaseOrderIndependent(t *testing.T) {
	pool := MustNew[int](2, WithWordBits(16))
	var boxes []Box[int]
	for i := 0; i < 32; i++ {
		b, ok := pool.Allocate(i)
		require.True(t, ok)
		boxes = append(boxes, b)
	}

	// Interleave: odd indices backwards, then even indices forwards.
	for i := len(boxes) - 1; i >= 0; i-- {
		if i%2 == 1 {
			require.NoError(t, boxes[i].Release())
		}
	}
	for i := 0; i < len(boxes); i += 2 {
		require.NoError(t, boxes[i].Release())
	}

	for i := 0; i < pool.Chunks(); i++ {
		c, _ := pool.ChunkAt(i)
		assert.True(t, c.Empty())
	}
}

func TestBox_StaleErrorCarriesHandle(t *testing.T) {
	pool := MustNew[int](1, WithWordBits(8))
	b, ok := pool.Allocate(1)
	require.True(t, ok)
	require.NoError(t, b.Release())

	err := b.Release()
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.ErrorIs(t, err, slaberrors.Kind(slaberrors.ErrorTypeHandle))

	var se *slaberrors.StructuredError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "release", se.Operation)
	assert.Equal(t, uint32(0), se.Context["chunk"])
}
