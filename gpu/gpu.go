// Package gpu declares the GPU collaborators used by the tile engine.
//
// Nothing in this module talks to a graphics API directly: textures are created through an
// Uploader, shader programs come from a ProgramProvider and chunk geometry is drawn by a Grid.
// All of them must be called from the rendering goroutine only.
package gpu

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// Texture is a copyable handle to a GPU texture. A zero Texture is not bound to anything.
type Texture struct {
	ID     uint64
	Format gputypes.TextureFormat
	Size   gputypes.Extent3D
}

func (t Texture) Valid() bool {
	return t.ID != 0
}

// TextureDescriptor describes a 2D texture created from CPU pixel data.
type TextureDescriptor struct {
	Label  string
	Format gputypes.TextureFormat
	Size   gputypes.Extent3D
	Usage  gputypes.TextureUsage
}

// NewTextureDescriptor returns a sampled, copy-destination 2D texture descriptor.
func NewTextureDescriptor(label string, format gputypes.TextureFormat, width, height int) TextureDescriptor {
	return TextureDescriptor{
		Label:  label,
		Format: format,
		Size: gputypes.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		Usage: gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	}
}

// BytesPerPixel returns the pixel stride of the formats produced by the tile decoders.
func BytesPerPixel(format gputypes.TextureFormat) int {
	if format == gputypes.TextureFormatR8Unorm {
		return 1
	}
	return 4 // RGBA8Unorm, R32Float
}

type Uploader interface {
	// Upload creates a texture and copies pixels (tightly packed rows) into it.
	Upload(desc TextureDescriptor, pixels []byte) (Texture, error)

	// Release destroys a texture. Releasing an invalid texture is a no-op.
	Release(tex Texture)
}

// Program is an activated, compiled shader program.
type Program interface {
	Activate()
	Deactivate()

	// BindTexture binds tex to the given texture unit.
	BindTexture(unit int, tex Texture)

	SetInt(name string, v int)
	SetFloat(name string, v float32)
	SetVec2(name string, v mgl32.Vec2)
	SetVec3(name string, v mgl32.Vec3)
	SetMat4(name string, v mgl32.Mat4)
}

// Define is one preprocessor key/value pair handed to the shader compiler.
type Define struct {
	Key   string
	Value string
}

type ProgramProvider interface {
	// Program returns the compiled program for name and defines. ok is false while the
	// program is pending compilation or failed to compile.
	Program(name string, defines []Define) (p Program, ok bool)
}

// Grid is the shared chunk geometry.
type Grid interface {
	XSegments() int
	YSegments() int

	// Draw issues one draw call using the currently active program.
	Draw()
}
