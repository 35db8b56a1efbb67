package cull_test

import (
	"testing"

	"github.com/eak1mov/go-globetiles/cull"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
)

func square(x0, y0, x1, y1 float64) []mgl64.Vec4 {
	return []mgl64.Vec4{
		{x0, y0, 0, 1},
		{x1, y0, 0, 1},
		{x0, y1, 0, 1},
		{x1, y1, 0, 1},
	}
}

func TestIsVisible(t *testing.T) {
	c := cull.NewClassifier(cull.NDC())
	identity := mgl64.Ident4()

	tests := map[string]struct {
		corners []mgl64.Vec4
		want    bool
	}{
		"inside":          {square(-0.5, -0.5, 0.5, 0.5), true},
		"covers frustum":  {square(-3, -3, 3, 3), true},
		"right of view":   {square(1.5, -0.5, 2, 0.5), false},
		"left of view":    {square(-4, -0.5, -1.01, 0.5), false},
		"above view":      {square(-0.5, 1.2, 0.5, 3), false},
		"below view":      {square(-0.5, -3, 0.5, -1.2), false},
		"touches right":   {square(1, -0.5, 2, 0.5), true},
		"touches corner":  {square(-2, -2, -1, -1), true},
		"partly overlaps": {square(0.9, 0.9, 5, 5), true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := c.IsVisible(tc.corners, identity); got != tc.want {
				t.Errorf("IsVisible() = %v, want = %v", got, tc.want)
			}
		})
	}
}

func TestProjectedSizeInPixelsFullScreen(t *testing.T) {
	c := cull.NewClassifier(cull.NDC())
	got := c.ProjectedSizeInPixels(square(-1, -1, 1, 1), mgl64.Ident4(), mgl64.Vec2{1920, 1080})
	if diff := cmp.Diff(mgl64.Vec2{1920, 1080}, got); diff != "" {
		t.Errorf("ProjectedSizeInPixels mismatch (-want +got):\n%v", diff)
	}
}

func TestProjectedSizeWithPerspectiveDivide(t *testing.T) {
	c := cull.NewClassifier(cull.NDC())
	corners := []mgl64.Vec4{
		{-1, -1, 0, 2},
		{1, 1, 0, 2},
	}
	got := c.ProjectedSizeInPixels(corners, mgl64.Ident4(), mgl64.Vec2{100, 100})
	if diff := cmp.Diff(mgl64.Vec2{50, 50}, got); diff != "" {
		t.Errorf("ProjectedSizeInPixels mismatch (-want +got):\n%v", diff)
	}
}

func TestAllCornersBehindCamera(t *testing.T) {
	c := cull.NewClassifier(cull.NDC())
	corners := []mgl64.Vec4{
		{0, 0, 0, -1},
		{1, 1, 0, 0},
	}
	if c.IsVisible(corners, mgl64.Ident4()) {
		t.Errorf("IsVisible() = true for a node behind the camera")
	}
	if got := c.ProjectedSizeInPixels(corners, mgl64.Ident4(), mgl64.Vec2{800, 600}); got != (mgl64.Vec2{}) {
		t.Errorf("ProjectedSizeInPixels() = %v, want zero", got)
	}
}

func TestStraddlingNodeIsNotCulled(t *testing.T) {
	c := cull.NewClassifier(cull.NDC())
	// One corner far off to the right, one behind the camera: the box stretches over
	// the frustum instead of being culled.
	corners := []mgl64.Vec4{
		{5, 5, 0, 1},
		{0, 0, 0, -1},
	}
	if !c.IsVisible(corners, mgl64.Ident4()) {
		t.Errorf("IsVisible() = false for a node straddling the camera plane")
	}
}

func TestIsVisibleWithPerspectiveCamera(t *testing.T) {
	c := cull.NewClassifier(cull.NDC())
	proj := mgl64.Perspective(mgl64.DegToRad(60), 16.0/9.0, 0.1, 100)
	view := mgl64.LookAtV(mgl64.Vec3{0, 0, 10}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0})
	mvp := proj.Mul4(view)

	front := []mgl64.Vec4{{-1, -1, 0, 1}, {1, 1, 0, 1}}
	if !c.IsVisible(front, mvp) {
		t.Errorf("node in front of the camera culled")
	}
	behind := []mgl64.Vec4{{-1, -1, 20, 1}, {1, 1, 20, 1}}
	if c.IsVisible(behind, mvp) {
		t.Errorf("node behind the camera reported visible")
	}
	aside := []mgl64.Vec4{{200, -1, 0, 1}, {201, 1, 0, 1}}
	if c.IsVisible(aside, mvp) {
		t.Errorf("node far to the side reported visible")
	}
}
