package streaming

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/realfan-1s/FFTOcean/geometry"
)

type recorder struct {
	calls []string
}

type testObject struct {
	name      string
	bounds    geometry.AABB
	rec       *recorder
	loadErr   error
	unloadErr error
}

func newTestObject(rec *recorder, name string, x, z, size float64) *testObject {
	return &testObject{
		name:   name,
		bounds: geometry.NewAABB(mgl64.Vec3{x, 0, z}, mgl64.Vec3{size, size, size}),
		rec:    rec,
	}
}

func (o *testObject) Bounds() geometry.AABB {
	return o.bounds
}

func (o *testObject) Load(ctx context.Context) error {
	o.rec.calls = append(o.rec.calls, fmt.Sprintf("load:%s", o.name))
	return o.loadErr
}

func (o *testObject) Unload(ctx context.Context) error {
	o.rec.calls = append(o.rec.calls, fmt.Sprintf("unload:%s", o.name))
	return o.unloadErr
}
