// Package chunk selects the quadtree nodes drawn in a frame.
package chunk

import (
	"github.com/eak1mov/go-globetiles/cull"
	"github.com/eak1mov/go-globetiles/geo"
	"github.com/eak1mov/go-globetiles/layer"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/gammazero/deque"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultHeight is the surface height assumed where no height data is available.
const DefaultHeight = 0.0

// Heights bounds the surface height of a chunk in meters.
type Heights struct {
	Min float64
	Max float64
}

// Chunk is one quadtree node rendered as a patch of the globe.
type Chunk struct {
	Address tile.Address
	Patch   geo.Patch
	Heights Heights
}

func New(addr tile.Address) Chunk {
	return Chunk{
		Address: addr,
		Patch:   geo.PatchOf(addr),
		Heights: Heights{Min: DefaultHeight, Max: DefaultHeight},
	}
}

func (c Chunk) Level() uint32 {
	return c.Address.Level
}

// Corners samples the patch on a 3x3 grid at the minimum and maximum height and returns
// the points in homogeneous model coordinates. Edge midpoints are included because a
// large patch bulges past its four corners.
func (c Chunk) Corners(e geo.Ellipsoid) []mgl64.Vec4 {
	sw := c.Patch.Corner(geo.SouthWest)
	size := c.Patch.Size()
	corners := make([]mgl64.Vec4, 0, 18)
	for _, h := range []float64{c.Heights.Min, c.Heights.Max} {
		for i := range 3 {
			for j := range 3 {
				g := geo.Geodetic2{
					Lat: sw.Lat + size.Lat*float64(i)/2,
					Lon: sw.Lon + size.Lon*float64(j)/2,
				}
				p := e.CartesianSurfacePosition(g).Add(e.GeodeticSurfaceNormal(g).Mul(h))
				corners = append(corners, p.Vec4(1))
			}
		}
	}
	return corners
}

// BoundingHeights derives the height range of addr from the decoded statistics of the
// active height layers. Layers whose tile is not loaded yet are skipped.
func BoundingHeights(addr tile.Address, heights *layer.Group) Heights {
	h := Heights{Min: DefaultHeight, Max: DefaultHeight}
	if heights == nil {
		return h
	}
	found := false
	for _, l := range heights.ActiveLayers() {
		ct := l.ChunkTilePile(addr, 1)[0]
		meta := ct.Tile.Metadata
		if !ct.Tile.OK() || meta == nil {
			continue
		}
		d := l.DepthTransform()
		lo := float64(d.Scale*meta.MinValue + d.Offset)
		hi := float64(d.Scale*meta.MaxValue + d.Offset)
		if meta.HasMissingData {
			lo, hi = min(lo, DefaultHeight), max(hi, DefaultHeight)
		}
		if !found {
			h, found = Heights{Min: lo, Max: hi}, true
			continue
		}
		h.Min, h.Max = min(h.Min, lo), max(h.Max, hi)
	}
	return h
}

// Camera is the per-frame view of the globe.
type Camera struct {
	// ModelViewProjection maps globe model space to clip space.
	ModelViewProjection mgl64.Mat4
	// Screen is the viewport size in pixels.
	Screen mgl64.Vec2
}

// Options tune Select. Ellipsoid is required.
type Options struct {
	Ellipsoid geo.Ellipsoid
	// Heights, when set, gives chunks bounding heights from the height layers.
	Heights *layer.Group
	// MaxLevel stops refinement. Zero means tile.MaxLevel.
	MaxLevel uint32
	// SplitPixels is the projected size above which a chunk is split. Defaults to 256.
	SplitPixels float64
}

// Roots returns the two level-0 addresses.
func Roots() []tile.Address {
	return []tile.Address{{Level: 0, X: 0, Y: 0}, {Level: 0, X: 1, Y: 0}}
}

// Select walks the quadtree breadth-first from roots and returns the visible chunks that
// are small enough on screen or at the maximum level. Invisible subtrees are dropped.
func Select(roots []tile.Address, classifier *cull.Classifier, camera Camera, opts Options) []Chunk {
	maxLevel := opts.MaxLevel
	if maxLevel == 0 || maxLevel > tile.MaxLevel {
		maxLevel = tile.MaxLevel
	}
	split := opts.SplitPixels
	if split <= 0 {
		split = 256
	}

	var queue deque.Deque[tile.Address]
	for _, root := range roots {
		queue.PushBack(root)
	}
	var chunks []Chunk
	for queue.Len() > 0 {
		addr := queue.PopFront()
		c := New(addr)
		c.Heights = BoundingHeights(addr, opts.Heights)
		corners := c.Corners(opts.Ellipsoid)
		if !classifier.IsVisible(corners, camera.ModelViewProjection) {
			continue
		}
		size := classifier.ProjectedSizeInPixels(corners, camera.ModelViewProjection, camera.Screen)
		if addr.Level < maxLevel && max(size[0], size[1]) > split {
			for _, child := range addr.Children() {
				queue.PushBack(child)
			}
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks
}
