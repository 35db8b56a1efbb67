package geo_test

import (
	"math"
	"testing"

	"github.com/eak1mov/go-globetiles/geo"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
)

func TestPatchOfRoots(t *testing.T) {
	west := geo.PatchOf(tile.Address{Level: 0, X: 0, Y: 0})
	if got, want := west.Bound(), (orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{0, 90}}); !boundsClose(got, want) {
		t.Errorf("west root bound = %v, want = %v", got, want)
	}
	east := geo.PatchOf(tile.Address{Level: 0, X: 1, Y: 0})
	if got, want := east.Bound(), (orb.Bound{Min: orb.Point{0, -90}, Max: orb.Point{180, 90}}); !boundsClose(got, want) {
		t.Errorf("east root bound = %v, want = %v", got, want)
	}
}

func TestChildPatchesNestInParent(t *testing.T) {
	parent := tile.Address{Level: 3, X: 9, Y: 2}
	pb := geo.PatchOf(parent).Bound()
	for _, child := range parent.Children() {
		cb := geo.PatchOf(child).Bound()
		const eps = 1e-9
		if cb.Min[0] < pb.Min[0]-eps || cb.Min[1] < pb.Min[1]-eps ||
			cb.Max[0] > pb.Max[0]+eps || cb.Max[1] > pb.Max[1]+eps {
			t.Errorf("child %v bound %v escapes parent bound %v", child, cb, pb)
		}
	}
}

func TestSphereSurfacePosition(t *testing.T) {
	s := geo.Sphere(10)
	p := s.CartesianSurfacePosition(geo.Geodetic2{Lat: 0, Lon: 0})
	if !p.ApproxEqual(mgl64.Vec3{10, 0, 0}) {
		t.Errorf("surface position = %v, want (10,0,0)", p)
	}
	north := s.CartesianSurfacePosition(geo.Geodetic2{Lat: math.Pi / 2, Lon: 0})
	if !north.ApproxEqualThreshold(mgl64.Vec3{0, 0, 10}, 1e-9) {
		t.Errorf("north pole = %v, want (0,0,10)", north)
	}
	if got := s.MinimumRadius(); got != 10 {
		t.Errorf("MinimumRadius() = %v, want = 10", got)
	}
}

func boundsClose(a, b orb.Bound) bool {
	const eps = 1e-9
	return math.Abs(a.Min[0]-b.Min[0]) < eps && math.Abs(a.Min[1]-b.Min[1]) < eps &&
		math.Abs(a.Max[0]-b.Max[0]) < eps && math.Abs(a.Max[1]-b.Max[1]) < eps
}
