package detector

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/realfan-1s/FFTOcean/geometry"
)

// Box is a fixed size detector centered on the observer.
//
// Its quadrant test only looks at a split point, not at the extent of the
// quadrants around it. The margin bounds how far beyond the box a split point
// can sit while still descending toward the box: with an unbounded margin the
// test never skips a quadrant that overlaps the box, with a margin smaller
// than the quadrant size of a descent level it may. A margin of zero
// descends only from split points inside the box.
type Box struct {
	size     mgl64.Vec3
	margin   float64
	position mgl64.Vec3
}

type BoxOption func(*Box)

// WithMargin sets the reach of the quadrant test beyond the box. Negative
// values are treated as zero.
func WithMargin(m float64) BoxOption {
	return func(b *Box) {
		b.margin = math.Max(m, 0)
	}
}

// WithPosition sets the initial observer position.
func WithPosition(p mgl64.Vec3) BoxOption {
	return func(b *Box) {
		b.position = p
	}
}

// NewBox creates a box detector of the given size. The margin is unbounded by
// default: for a box spanning (0,0)-(10,10), QuadrantCode(20, 20) is SouthWest.
// WithMargin(0) makes it 0.
func NewBox(size mgl64.Vec3, options ...BoxOption) *Box {
	b := &Box{
		size:   size,
		margin: math.Inf(1),
	}

	for _, o := range options {
		o(b)
	}
	return b
}

// MoveTo moves the observer.
func (b *Box) MoveTo(p mgl64.Vec3) {
	b.position = p
}

func (b *Box) Position() mgl64.Vec3 {
	return b.position
}

func (b *Box) Size() mgl64.Vec3 {
	return b.size
}

func (b *Box) Margin() float64 {
	return b.margin
}

// Bounds returns the detector region at the current observer position.
func (b *Box) Bounds() geometry.AABB {
	return geometry.NewAABB(b.position, b.size)
}

func (b *Box) Detect(bounds geometry.AABB) bool {
	return b.Bounds().Intersects(bounds)
}

func (b *Box) QuadrantCode(x, z float64) Quadrant {
	bounds := b.Bounds()
	minX, minZ := bounds.Min.X(), bounds.Min.Z()
	maxX, maxZ := bounds.Max.X(), bounds.Max.Z()

	// reach checks: the split point is not too far past the side being
	// descended toward.
	westOK := x-b.margin <= maxX
	eastOK := x+b.margin >= minX
	southOK := z-b.margin <= maxZ
	northOK := z+b.margin >= minZ

	var code Quadrant
	if x >= minX && z >= minZ && westOK && southOK {
		code |= SouthWest
	}
	if x >= minX && z <= maxZ && westOK && northOK {
		code |= NorthWest
	}
	if x <= maxX && z >= minZ && eastOK && southOK {
		code |= SouthEast
	}
	if x <= maxX && z <= maxZ && eastOK && northOK {
		code |= NorthEast
	}
	return code
}
