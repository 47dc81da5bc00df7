package detector

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/realfan-1s/FFTOcean/geometry"
)

// Quadrant is a bit mask of the child quadrants a spatial descent should visit.
//
// Looking down on the xz plane:
//
//	+z
//	| NorthWest(2) | NorthEast(8) |
//	| SouthWest(1) | SouthEast(4) |
//	                              +x
type Quadrant uint8

const (
	SouthWest Quadrant = 1 << iota // toward -x/-z
	NorthWest                      // toward -x/+z
	SouthEast                      // toward +x/-z
	NorthEast                      // toward +x/+z

	AllQuadrants = SouthWest | NorthWest | SouthEast | NorthEast
)

func (q Quadrant) Has(o Quadrant) bool {
	return q&o != 0
}

// Detector describes the region around an observer that the streaming
// controller considers near.
type Detector interface {
	// Returns the observer position.
	Position() mgl64.Vec3

	// Reports whether the given bounds overlap the detector region. This is the
	// precise test applied to individual objects.
	Detect(bounds geometry.AABB) bool

	// Returns the quadrants around the split point (x, z) that may overlap the
	// detector region. This is the coarse test used to prune a spatial descent;
	// several bits can be set at once.
	QuadrantCode(x, z float64) Quadrant
}
