package detector

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/realfan-1s/FFTOcean/geometry"
	"github.com/stretchr/testify/require"
)

func TestBoxBounds(t *testing.T) {
	b := NewBox(mgl64.Vec3{10, 10, 10}, WithPosition(mgl64.Vec3{5, 5, 5}))
	require.Equal(t, mgl64.Vec3{5, 5, 5}, b.Position())
	require.Equal(t, mgl64.Vec3{0, 0, 0}, b.Bounds().Min)
	require.Equal(t, mgl64.Vec3{10, 10, 10}, b.Bounds().Max)

	b.MoveTo(mgl64.Vec3{100, 0, 100})
	require.Equal(t, mgl64.Vec3{95, -5, 95}, b.Bounds().Min)
}

func TestBoxDetect(t *testing.T) {
	b := NewBox(mgl64.Vec3{10, 10, 10}, WithPosition(mgl64.Vec3{5, 5, 5}))

	t.Run("overlapping bounds are detected", func(t *testing.T) {
		require.True(t, b.Detect(geometry.NewAABB(mgl64.Vec3{9, 5, 9}, mgl64.Vec3{4, 4, 4})))
	})

	t.Run("touching bounds are detected", func(t *testing.T) {
		require.True(t, b.Detect(geometry.AABB{
			Min: mgl64.Vec3{10, 0, 10},
			Max: mgl64.Vec3{12, 2, 12},
		}))
	})

	t.Run("far bounds are not detected", func(t *testing.T) {
		require.False(t, b.Detect(geometry.NewAABB(mgl64.Vec3{50, 5, 50}, mgl64.Vec3{4, 4, 4})))
	})

	t.Run("detection follows the observer", func(t *testing.T) {
		far := geometry.NewAABB(mgl64.Vec3{50, 5, 50}, mgl64.Vec3{4, 4, 4})
		moved := NewBox(mgl64.Vec3{10, 10, 10}, WithPosition(mgl64.Vec3{5, 5, 5}))
		moved.MoveTo(mgl64.Vec3{48, 5, 48})
		require.True(t, moved.Detect(far))
	})
}

func TestBoxQuadrantCode(t *testing.T) {
	// box min = (0, 0), max = (10, 10) on the xz plane.
	position := WithPosition(mgl64.Vec3{5, 0, 5})
	size := mgl64.Vec3{10, 10, 10}

	t.Run("split point inside the box descends everywhere", func(t *testing.T) {
		b := NewBox(size, position, WithMargin(0))
		require.Equal(t, AllQuadrants, b.QuadrantCode(5, 5))
		require.Equal(t, Quadrant(15), b.QuadrantCode(5, 5))
	})

	t.Run("split point outside the box with no margin descends nowhere", func(t *testing.T) {
		b := NewBox(size, position, WithMargin(0))
		require.Equal(t, Quadrant(0), b.QuadrantCode(20, 20))
	})

	t.Run("unbounded margin keeps the half plane test", func(t *testing.T) {
		b := NewBox(size, position)
		require.Equal(t, AllQuadrants, b.QuadrantCode(5, 5))
		require.Equal(t, SouthWest, b.QuadrantCode(20, 20))
		require.Equal(t, NorthEast, b.QuadrantCode(-20, -20))
		require.Equal(t, SouthWest|SouthEast, b.QuadrantCode(5, 20))
		require.Equal(t, SouthEast|NorthEast, b.QuadrantCode(-20, 5))
	})

	t.Run("margin limits the reach", func(t *testing.T) {
		b := NewBox(size, position, WithMargin(15))
		require.Equal(t, SouthWest, b.QuadrantCode(20, 20))
		require.Equal(t, Quadrant(0), b.QuadrantCode(30, 30))
	})

	t.Run("split point on the box edge descends on both sides", func(t *testing.T) {
		b := NewBox(size, position, WithMargin(0))
		require.Equal(t, AllQuadrants, b.QuadrantCode(10, 10))
	})

	t.Run("negative margin is clamped", func(t *testing.T) {
		b := NewBox(size, position, WithMargin(-3))
		require.Zero(t, b.Margin())
	})
}

func TestQuadrantHas(t *testing.T) {
	q := SouthWest | NorthEast
	require.True(t, q.Has(SouthWest))
	require.True(t, q.Has(NorthEast))
	require.False(t, q.Has(NorthWest))
	require.False(t, q.Has(SouthEast))
}
