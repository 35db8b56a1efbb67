// Package geo holds the small geodetic surface the tile engine needs from the ellipsoid
// library of the host: patches covered by quadtree addresses and surface positions.
package geo

import (
	"math"

	"github.com/eak1mov/go-globetiles/tile"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
)

// Geodetic2 is a latitude/longitude pair in radians.
type Geodetic2 struct {
	Lat float64
	Lon float64
}

// LonLat returns the pair as (lon, lat), the order the shaders expect.
func (g Geodetic2) LonLat() mgl64.Vec2 {
	return mgl64.Vec2{g.Lon, g.Lat}
}

// Quad names a patch corner.
type Quad int

const (
	NorthWest Quad = iota
	NorthEast
	SouthWest
	SouthEast
)

// Patch is the geodetic rectangle covered by a quadtree address.
type Patch struct {
	Center   Geodetic2
	HalfSize Geodetic2
}

// PatchOf returns the patch covered by addr. Both level-0 tiles span a hemisphere:
// longitude [-π, 0] and [0, π], latitude [-π/2, π/2].
func PatchOf(addr tile.Address) Patch {
	size := math.Pi / float64(uint64(1)<<addr.Level)
	return Patch{
		Center: Geodetic2{
			Lat: math.Pi/2 - (float64(addr.Y)+0.5)*size,
			Lon: -math.Pi + (float64(addr.X)+0.5)*size,
		},
		HalfSize: Geodetic2{Lat: size / 2, Lon: size / 2},
	}
}

func (p Patch) Size() Geodetic2 {
	return Geodetic2{Lat: 2 * p.HalfSize.Lat, Lon: 2 * p.HalfSize.Lon}
}

func (p Patch) Corner(q Quad) Geodetic2 {
	switch q {
	case NorthWest:
		return Geodetic2{Lat: p.Center.Lat + p.HalfSize.Lat, Lon: p.Center.Lon - p.HalfSize.Lon}
	case NorthEast:
		return Geodetic2{Lat: p.Center.Lat + p.HalfSize.Lat, Lon: p.Center.Lon + p.HalfSize.Lon}
	case SouthWest:
		return Geodetic2{Lat: p.Center.Lat - p.HalfSize.Lat, Lon: p.Center.Lon - p.HalfSize.Lon}
	default:
		return Geodetic2{Lat: p.Center.Lat - p.HalfSize.Lat, Lon: p.Center.Lon + p.HalfSize.Lon}
	}
}

// Bound returns the patch as a lon/lat bound in degrees.
func (p Patch) Bound() orb.Bound {
	sw, ne := p.Corner(SouthWest), p.Corner(NorthEast)
	return orb.Bound{
		Min: orb.Point{degrees(sw.Lon), degrees(sw.Lat)},
		Max: orb.Point{degrees(ne.Lon), degrees(ne.Lat)},
	}
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

type Ellipsoid interface {
	GeodeticSurfaceNormal(g Geodetic2) mgl64.Vec3
	CartesianSurfacePosition(g Geodetic2) mgl64.Vec3
	RadiiSquared() mgl64.Vec3
	MinimumRadius() float64
}

// Spheroid is an axis-aligned ellipsoid centered at the origin.
type Spheroid struct {
	Radii mgl64.Vec3
}

func Sphere(radius float64) Spheroid {
	return Spheroid{Radii: mgl64.Vec3{radius, radius, radius}}
}

func (s Spheroid) RadiiSquared() mgl64.Vec3 {
	return mgl64.Vec3{s.Radii[0] * s.Radii[0], s.Radii[1] * s.Radii[1], s.Radii[2] * s.Radii[2]}
}

func (s Spheroid) MinimumRadius() float64 {
	return min(s.Radii[0], s.Radii[1], s.Radii[2])
}

// GeodeticSurfaceNormal returns the unit normal of the surface at g.
func (s Spheroid) GeodeticSurfaceNormal(g Geodetic2) mgl64.Vec3 {
	cosLat := math.Cos(g.Lat)
	return mgl64.Vec3{cosLat * math.Cos(g.Lon), cosLat * math.Sin(g.Lon), math.Sin(g.Lat)}
}

func (s Spheroid) CartesianSurfacePosition(g Geodetic2) mgl64.Vec3 {
	n := s.GeodeticSurfaceNormal(g)
	r2 := s.RadiiSquared()
	k := mgl64.Vec3{r2[0] * n[0], r2[1] * n[1], r2[2] * n[2]}
	gamma := math.Sqrt(k.Dot(n))
	return k.Mul(1 / gamma)
}

// CartesianPosition returns the position height units above the surface at g.
func (s Spheroid) CartesianPosition(g Geodetic2, height float64) mgl64.Vec3 {
	return s.CartesianSurfacePosition(g).Add(s.GeodeticSurfaceNormal(g).Mul(height))
}
