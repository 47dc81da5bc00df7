package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func VecEqualWithEpsilon(a mgl64.Vec3, b mgl64.Vec3, epsilon float64) bool {
	return EqualWithEpsilon(a.X(), b.X(), epsilon) &&
		EqualWithEpsilon(a.Y(), b.Y(), epsilon) &&
		EqualWithEpsilon(a.Z(), b.Z(), epsilon)
}

// MinVec returns the component-wise minimum of a and b.
func MinVec(a mgl64.Vec3, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Min(a.X(), b.X()), math.Min(a.Y(), b.Y()), math.Min(a.Z(), b.Z())}
}

// MaxVec returns the component-wise maximum of a and b.
func MaxVec(a mgl64.Vec3, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Max(a.X(), b.X()), math.Max(a.Y(), b.Y()), math.Max(a.Z(), b.Z())}
}

// AABB is an axis aligned bounding box stored as its min and max corners.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// NewAABB creates a box from its center and its full size. Negative sizes are
// folded so that Min is always lesser or equal than Max.
func NewAABB(center mgl64.Vec3, size mgl64.Vec3) AABB {
	extents := size.Mul(0.5)
	a := center.Sub(extents)
	b := center.Add(extents)

	return AABB{
		Min: MinVec(a, b),
		Max: MaxVec(a, b),
	}
}

// NewAABBFromPoints creates the smallest box containing both points.
func NewAABBFromPoints(a mgl64.Vec3, b mgl64.Vec3) AABB {
	return AABB{
		Min: MinVec(a, b),
		Max: MaxVec(a, b),
	}
}

func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Half-Extents!
func (b AABB) Extents() mgl64.Vec3 {
	return b.Size().Mul(0.5)
}

// Intersects reports whether both boxes overlap on every axis. Boxes that only
// touch are considered overlapping.
func (b AABB) Intersects(o AABB) bool {
	return b.Min.X() <= o.Max.X() && b.Max.X() >= o.Min.X() &&
		b.Min.Y() <= o.Max.Y() && b.Max.Y() >= o.Min.Y() &&
		b.Min.Z() <= o.Max.Z() && b.Max.Z() >= o.Min.Z()
}

func (b AABB) ContainsPoint(p mgl64.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

func (b AABB) ContainsAABB(o AABB) bool {
	return b.ContainsPoint(o.Min) && b.ContainsPoint(o.Max)
}

// Union returns the smallest box containing both boxes.
func (b AABB) Union(o AABB) AABB {
	return AABB{
		Min: MinVec(b.Min, o.Min),
		Max: MaxVec(b.Max, o.Max),
	}
}

func (b AABB) EqualWithEpsilon(o AABB, epsilon float64) bool {
	return VecEqualWithEpsilon(b.Min, o.Min, epsilon) &&
		VecEqualWithEpsilon(b.Max, o.Max, epsilon)
}
