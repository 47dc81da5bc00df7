package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMorton(t *testing.T) {
	require.Equal(t, uint32(0), Morton(0, 0))
	require.Equal(t, uint32(1), Morton(1, 0))
	require.Equal(t, uint32(2), Morton(0, 1))
	require.Equal(t, uint32(3), Morton(1, 1))
	require.Equal(t, uint32(15), Morton(3, 3))
	require.Equal(t, uint32(0b10010), Morton(0b100, 0b001))
	require.Equal(t, uint32(0xffffffff), Morton(0xffff, 0xffff))
}

func TestKeyAt(t *testing.T) {
	// world min = (0, 0), cell width = height = 10.
	q := newTestTree(t, 20, 1)

	width, height := q.CellSize()
	require.Equal(t, 10.0, width)
	require.Equal(t, 10.0, height)

	t.Run("points of the same cell share a key", func(t *testing.T) {
		require.Equal(t, uint32(0), q.KeyAt(2, 2))
		require.Equal(t, uint32(0), q.KeyAt(7, 9))
	})

	t.Run("keys interleave the grid coordinates", func(t *testing.T) {
		require.Equal(t, uint32(1), q.KeyAt(15, 5))
		require.Equal(t, uint32(2), q.KeyAt(5, 15))
		require.Equal(t, uint32(3), q.KeyAt(15, 15))
	})

	t.Run("points outside the world are clamped", func(t *testing.T) {
		require.Equal(t, uint32(0), q.KeyAt(-5, -5))
		require.Equal(t, uint32(3), q.KeyAt(25, 25))
	})
}
