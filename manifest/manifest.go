// Package manifest reads the placement manifest of a world: the world box and
// the objects placed in it.
package manifest

import (
	"context"
	"io"
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/realfan-1s/FFTOcean/geometry"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeInvalidManifest = "manifest_invalid"
)

type Manifest struct {
	// The name of the world.
	Name string `json:"name"`

	World   World    `json:"world"`
	Objects []Object `json:"objects"`
}

type World struct {
	Center mgl64.Vec3 `json:"center"`
	Size   mgl64.Vec3 `json:"size"`
}

func (w World) Bounds() geometry.AABB {
	return geometry.NewAABB(w.Center, w.Size)
}

// Object is an asset placed in the world.
type Object struct {
	ID    string `json:"id"`
	Asset string `json:"asset"`

	Position mgl64.Vec3 `json:"position"`

	// Euler angles in degrees, applied in x, y, z order.
	Rotation mgl64.Vec3 `json:"rotation"`

	Scale mgl64.Vec3 `json:"scale"`

	// Overrides the bounds computed from the placement.
	Box *Box `json:"bounds,omitempty"`
}

type Box struct {
	Center mgl64.Vec3 `json:"center"`
	Size   mgl64.Vec3 `json:"size"`
}

// Bounds returns the object bounds. Without explicit bounds, they are the
// bounds of a box of the object scale, rotated and moved to the object
// position.
func (o Object) Bounds() geometry.AABB {
	if o.Box != nil {
		return geometry.NewAABB(o.Box.Center, o.Box.Size)
	}

	q := mgl64.AnglesToQuat(
		mgl64.DegToRad(o.Rotation.X()),
		mgl64.DegToRad(o.Rotation.Y()),
		mgl64.DegToRad(o.Rotation.Z()),
		mgl64.XYZ,
	)

	// Each corner and its opposite give a box, the four pairs cover the
	// rotated box.
	half := o.Scale.Mul(0.5)
	var b geometry.AABB
	for i := 0; i < 4; i++ {
		corner := mgl64.Vec3{half.X(), half.Y(), half.Z()}
		if i&1 != 0 {
			corner[1] = -corner[1]
		}
		if i&2 != 0 {
			corner[2] = -corner[2]
		}

		r := q.Rotate(corner)
		diagonal := geometry.NewAABBFromPoints(o.Position.Add(r), o.Position.Sub(r))
		if i == 0 {
			b = diagonal
			continue
		}
		b = b.Union(diagonal)
	}
	return b
}

// Load reads and validates the manifest at the given path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("opening manifest failed").
			WithTag("path", path).
			Wrap(err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, errors.New("loading manifest failed").
			WithType(errors.Type(err)).
			WithTag("path", path).
			Wrap(err)
	}
	return m, nil
}

// Decode reads and validates a manifest.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.New("decoding manifest failed").
			WithType(ErrTypeInvalidManifest).
			Wrap(err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) Validate() error {
	if m.World.Size.X() <= 0 || m.World.Size.Z() <= 0 {
		return errors.New("world size must be positive on x and z").
			WithType(ErrTypeInvalidManifest).
			WithTag("world_size", m.World.Size)
	}

	ids := make(map[string]struct{}, len(m.Objects))
	for i, o := range m.Objects {
		if o.ID == "" {
			return errors.New("object without id").
				WithType(ErrTypeInvalidManifest).
				WithTag("index", i)
		}

		if _, ok := ids[o.ID]; ok {
			return errors.New("duplicated object id").
				WithType(ErrTypeInvalidManifest).
				WithTag("object_id", o.ID)
		}
		ids[o.ID] = struct{}{}

		if o.Asset == "" {
			return errors.New("object without asset").
				WithType(ErrTypeInvalidManifest).
				WithTag("object_id", o.ID)
		}

		if o.Box != nil && (o.Box.Size.X() < 0 || o.Box.Size.Y() < 0 || o.Box.Size.Z() < 0) {
			return errors.New("negative object bounds").
				WithType(ErrTypeInvalidManifest).
				WithTag("object_id", o.ID).
				WithTag("size", o.Box.Size)
		}
	}
	return nil
}

// OutsideWorld returns the ids of the objects whose bounds are not entirely
// inside the world. They stay valid but parts of them are never streamed, and
// objects that do not overlap the world at all are never loaded.
func (m *Manifest) OutsideWorld() []string {
	world := m.World.Bounds()

	var ids []string
	for _, o := range m.Objects {
		if !world.ContainsAABB(o.Bounds()) {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// AssetLoader loads and releases the assets of placed objects.
type AssetLoader interface {
	LoadAsset(ctx context.Context, o Object) error
	UnloadAsset(ctx context.Context, o Object) error
}

// Placements returns the objects of the manifest bound to the given loader.
func (m *Manifest) Placements(l AssetLoader) []*Placement {
	placements := make([]*Placement, len(m.Objects))
	for i, o := range m.Objects {
		placements[i] = &Placement{
			Object: o,
			bounds: o.Bounds(),
			loader: l,
		}
	}
	return placements
}

// Placement is a manifest object whose asset is loaded by an AssetLoader.
type Placement struct {
	Object

	bounds geometry.AABB
	loader AssetLoader
}

func (p *Placement) Bounds() geometry.AABB {
	return p.bounds
}

func (p *Placement) Load(ctx context.Context) error {
	return p.loader.LoadAsset(ctx, p.Object)
}

func (p *Placement) Unload(ctx context.Context) error {
	return p.loader.UnloadAsset(ctx, p.Object)
}
