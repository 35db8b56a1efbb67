// Package cull decides whether hierarchical nodes (quadtree chunks, octree cells) are inside
// the view frustum and how large they appear on screen.
//
// The test works on a 2D axis aligned box in normalized device coordinates, so it is a
// frustum test only: nodes hidden behind terrain still pass.
package cull

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Box is an axis aligned box in normalized device coordinates (x and y only).
type Box struct {
	Min mgl64.Vec2
	Max mgl64.Vec2
}

// NDC returns the [-1,1]² box of the whole viewport.
func NDC() Box {
	return Box{Min: mgl64.Vec2{-1, -1}, Max: mgl64.Vec2{1, 1}}
}

// Intersects reports whether the closed boxes overlap; touching edges count.
func (b Box) Intersects(o Box) bool {
	return b.Min[0] <= o.Max[0] && o.Min[0] <= b.Max[0] &&
		b.Min[1] <= o.Max[1] && o.Min[1] <= b.Max[1]
}

func (b Box) Size() mgl64.Vec2 {
	return b.Max.Sub(b.Min)
}

// Classifier holds the fixed view frustum box. It keeps no per-node state and is safe for
// concurrent use.
type Classifier struct {
	frustum Box
}

func NewClassifier(viewFrustum Box) *Classifier {
	return &Classifier{frustum: viewFrustum}
}

// IsVisible reports whether any part of the node spanned by corners is in view.
func (c *Classifier) IsVisible(corners []mgl64.Vec4, mvp mgl64.Mat4) bool {
	bounds, ok := c.nodeBounds(corners, mvp)
	return ok && bounds.Intersects(c.frustum)
}

// ProjectedSizeInPixels returns the screen extent of the node. NDC spans two units per
// axis, so half the NDC extent scales to pixels.
func (c *Classifier) ProjectedSizeInPixels(corners []mgl64.Vec4, mvp mgl64.Mat4, screenSize mgl64.Vec2) mgl64.Vec2 {
	bounds, ok := c.nodeBounds(corners, mvp)
	if !ok {
		return mgl64.Vec2{}
	}
	size := bounds.Size().Mul(0.5)
	return mgl64.Vec2{size[0] * screenSize[0], size[1] * screenSize[1]}
}

// nodeBounds projects the corners and returns their NDC bounding box. A corner behind the
// camera (w <= 0) stretches the box over the whole frustum, since such a node straddles the
// camera plane. ok is false when every corner is behind the camera.
func (c *Classifier) nodeBounds(corners []mgl64.Vec4, mvp mgl64.Mat4) (bounds Box, ok bool) {
	empty := true
	straddles := false
	for _, corner := range corners {
		clip := mvp.Mul4x1(corner)
		if clip[3] <= 0 {
			straddles = true
			continue
		}
		p := mgl64.Vec2{clip[0] / clip[3], clip[1] / clip[3]}
		if empty {
			bounds = Box{Min: p, Max: p}
			empty = false
			continue
		}
		bounds.Min = mgl64.Vec2{min(bounds.Min[0], p[0]), min(bounds.Min[1], p[1])}
		bounds.Max = mgl64.Vec2{max(bounds.Max[0], p[0]), max(bounds.Max[1], p[1])}
	}
	if empty {
		return Box{}, false
	}
	if straddles {
		bounds.Min = mgl64.Vec2{min(bounds.Min[0], c.frustum.Min[0]), min(bounds.Min[1], c.frustum.Min[1])}
		bounds.Max = mgl64.Vec2{max(bounds.Max[0], c.frustum.Max[0]), max(bounds.Max[1], c.frustum.Max[1])}
	}
	return bounds, true
}
