package geometry

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestEqualWithEpsilon(t *testing.T) {
	require.True(t, EqualWithEpsilon(0.1, 0.2, 0.11))
	require.False(t, EqualWithEpsilon(0.1, 0.3, 0.11))
}

func TestNewAABB(t *testing.T) {
	t.Run("box from center and size", func(t *testing.T) {
		b := NewAABB(mgl64.Vec3{5, 0, 5}, mgl64.Vec3{10, 2, 10})
		require.Equal(t, mgl64.Vec3{0, -1, 0}, b.Min)
		require.Equal(t, mgl64.Vec3{10, 1, 10}, b.Max)
		require.Equal(t, mgl64.Vec3{5, 0, 5}, b.Center())
		require.Equal(t, mgl64.Vec3{10, 2, 10}, b.Size())
		require.Equal(t, mgl64.Vec3{5, 1, 5}, b.Extents())
	})

	t.Run("negative size is folded", func(t *testing.T) {
		b := NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{-2, -2, -2})
		require.Equal(t, mgl64.Vec3{-1, -1, -1}, b.Min)
		require.Equal(t, mgl64.Vec3{1, 1, 1}, b.Max)
	})

	t.Run("box from points", func(t *testing.T) {
		b := NewAABBFromPoints(mgl64.Vec3{3, 0, -1}, mgl64.Vec3{1, 2, 4})
		require.Equal(t, mgl64.Vec3{1, 0, -1}, b.Min)
		require.Equal(t, mgl64.Vec3{3, 2, 4}, b.Max)
	})
}

func TestAABBIntersects(t *testing.T) {
	a := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{10, 10, 10}}

	t.Run("overlapping boxes intersect", func(t *testing.T) {
		b := AABB{Min: mgl64.Vec3{5, 5, 5}, Max: mgl64.Vec3{15, 15, 15}}
		require.True(t, a.Intersects(b))
		require.True(t, b.Intersects(a))
	})

	t.Run("touching boxes intersect", func(t *testing.T) {
		b := AABB{Min: mgl64.Vec3{10, 0, 0}, Max: mgl64.Vec3{20, 10, 10}}
		require.True(t, a.Intersects(b))
	})

	t.Run("boxes separated on one axis do not intersect", func(t *testing.T) {
		b := AABB{Min: mgl64.Vec3{0, 11, 0}, Max: mgl64.Vec3{10, 20, 10}}
		require.False(t, a.Intersects(b))
	})
}

func TestAABBContains(t *testing.T) {
	a := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{10, 10, 10}}

	require.True(t, a.ContainsPoint(mgl64.Vec3{0, 5, 10}))
	require.False(t, a.ContainsPoint(mgl64.Vec3{-0.1, 5, 5}))
	require.True(t, a.ContainsAABB(AABB{Min: mgl64.Vec3{1, 1, 1}, Max: mgl64.Vec3{2, 2, 2}}))
	require.False(t, a.ContainsAABB(AABB{Min: mgl64.Vec3{1, 1, 1}, Max: mgl64.Vec3{12, 2, 2}}))
}

func TestAABBUnion(t *testing.T) {
	a := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}
	b := AABB{Min: mgl64.Vec3{-1, 0.5, 2}, Max: mgl64.Vec3{0.5, 3, 4}}

	u := a.Union(b)
	require.True(t, u.EqualWithEpsilon(AABB{Min: mgl64.Vec3{-1, 0, 0}, Max: mgl64.Vec3{1, 3, 4}}, 1e-9))
	require.Equal(t, u, b.Union(a))
}
