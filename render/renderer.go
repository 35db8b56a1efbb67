// Package render assembles the shader state of globe chunks and draws them.
//
// A chunk is drawn in one of two modes. Far chunks (low levels) are drawn globally: the
// vertex shader evaluates the ellipsoid from geodetic coordinates in model space. Near
// chunks are drawn locally: their corners are transformed to camera space on the CPU in
// double precision so the shader only interpolates small single precision offsets.
package render

import (
	"log/slog"
	"slices"

	"github.com/eak1mov/go-globetiles/chunk"
	"github.com/eak1mov/go-globetiles/geo"
	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/eak1mov/go-globetiles/layer"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

type Mode int

const (
	ModeGlobal Mode = iota
	ModeLocal
)

func (m Mode) String() string {
	if m == ModeGlobal {
		return "Global"
	}
	return "Local"
}

// Program names requested from the ProgramProvider.
const (
	GlobalProgram = "GlobalChunkedLodPatch"
	LocalProgram  = "LocalChunkedLodPatch"
)

const (
	DefaultGlobalRenderingMaxLevel = 10
	maxSkirtLength                 = 8700
)

// Options are the globe properties that influence rendering.
type Options struct {
	// GlobalRenderingMaxLevel is the first level drawn in local mode.
	GlobalRenderingMaxLevel uint32
	LODScaleFactor          float64
	Atmosphere              bool
	PerformShading          bool

	ShowChunkEdges        bool
	ShowHeightResolution  bool
	ShowHeightIntensities bool
	DefaultHeight         float64

	Logger *slog.Logger
}

// Scene is the per-frame input from the camera system.
type Scene struct {
	// Model places the globe in world space.
	Model      mgl64.Mat4
	View       mgl64.Mat4
	Projection mgl64.Mat4
	// CameraPosition is in world space.
	CameraPosition mgl64.Vec3
	// SunPosition is in world space. The default places the sun at the origin.
	SunPosition mgl64.Vec3
}

// Stats counts chunk draws since the renderer was created.
type Stats struct {
	Drawn   int
	Skipped int
}

type shaderState struct {
	name    string
	defines []gpu.Define
	program gpu.Program
}

// ChunkRenderer draws chunks with the active layers of a layer manager. It must be used
// from the rendering goroutine.
type ChunkRenderer struct {
	programs  gpu.ProgramProvider
	grid      gpu.Grid
	layers    *layer.Manager
	ellipsoid geo.Ellipsoid
	opts      Options
	logger    *slog.Logger

	global shaderState
	local  shaderState
	stats  Stats
}

func NewChunkRenderer(programs gpu.ProgramProvider, grid gpu.Grid, layers *layer.Manager, ellipsoid geo.Ellipsoid, opts Options) *ChunkRenderer {
	if opts.GlobalRenderingMaxLevel == 0 {
		opts.GlobalRenderingMaxLevel = DefaultGlobalRenderingMaxLevel
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &ChunkRenderer{
		programs:  programs,
		grid:      grid,
		layers:    layers,
		ellipsoid: ellipsoid,
		opts:      opts,
		logger:    opts.Logger,
		global:    shaderState{name: GlobalProgram},
		local:     shaderState{name: LocalProgram},
	}
}

// ModeFor returns the mode a chunk at level is drawn in. It is re-evaluated on every draw.
func (r *ChunkRenderer) ModeFor(level uint32) Mode {
	if level < r.opts.GlobalRenderingMaxLevel {
		return ModeGlobal
	}
	return ModeLocal
}

func (r *ChunkRenderer) Stats() Stats {
	return r.stats
}

// RenderFrame draws chunks in order and returns how many were drawn.
func (r *ChunkRenderer) RenderFrame(chunks []chunk.Chunk, scene Scene) int {
	drawn := 0
	for _, c := range chunks {
		if r.RenderChunk(c, scene) {
			drawn++
		}
	}
	return drawn
}

// RenderChunk draws one chunk. It returns false when no shader program is available yet,
// in which case the chunk is skipped for this frame.
func (r *ChunkRenderer) RenderChunk(c chunk.Chunk, scene Scene) bool {
	mode := r.ModeFor(c.Level())
	state := &r.global
	if mode == ModeLocal {
		state = &r.local
	}
	p, ok := r.program(state)
	if !ok {
		r.stats.Skipped++
		return false
	}

	p.Activate()
	r.setTileData(p, c)

	blending := r.layers.HasAnyBlendingLayersEnabled()
	modelView := scene.View.Mul4(scene.Model)
	if mode == ModeGlobal {
		r.setGlobalUniforms(p, c, scene, modelView, blending)
	} else {
		r.setLocalUniforms(p, c, scene, modelView, blending)
	}
	if r.needsLight() {
		p.SetVec3(UniformLightDirection, lightDirection(scene))
		if mode == ModeGlobal {
			p.SetMat4(UniformModelView, mat4(modelView))
		}
	}

	r.grid.Draw()
	p.Deactivate()
	r.stats.Drawn++
	return true
}

// program returns the program for the current layer configuration. The program is only
// requested again when the defines changed or the previous request failed.
func (r *ChunkRenderer) program(state *shaderState) (gpu.Program, bool) {
	defines := Defines(r.layers, r.opts)
	if state.program != nil && slices.Equal(defines, state.defines) {
		return state.program, true
	}
	p, ok := r.programs.Program(state.name, defines)
	if !ok {
		state.program = nil
		return nil, false
	}
	if state.program != nil {
		r.logger.Debug("globetiles: shader program changed", "program", state.name)
	}
	state.defines, state.program = defines, p
	return p, true
}

// setTileData binds the pile of every active layer, one texture unit per tile, and
// uploads the per-layer and per-chunk uniforms shared by both modes.
func (r *ChunkRenderer) setTileData(p gpu.Program, c chunk.Chunk) {
	unit := 0
	for _, g := range r.layers.Groups() {
		category := g.Category()
		pileSize := 1
		if g.LevelBlendingEnabled() {
			pileSize = 3
		}
		for i, l := range g.ActiveLayers() {
			pile := l.ChunkTilePile(c.Address, pileSize)
			for slot, ct := range pile {
				if !ct.Tile.OK() {
					ct = tile.ChunkTile{Tile: l.DefaultTile(), UV: tile.IdentityUV()}
				}
				suffix := Suffix(slot)
				p.BindTexture(unit, ct.Tile.Texture)
				p.SetInt(TileUniform(category, suffix, i, FieldTextureSampler), unit)
				p.SetVec2(TileUniform(category, suffix, i, FieldUVScale), ct.UV.Scale)
				p.SetVec2(TileUniform(category, suffix, i, FieldUVOffset), ct.UV.Offset)
				unit++
			}
			setLayerUniforms(p, category, i, l)
		}
	}

	for i, l := range r.layers.Group(layer.CategoryHeight).ActiveLayers() {
		d := l.DepthTransform()
		p.SetFloat(TileUniform(layer.CategoryHeight, SuffixNone, i, FieldDepthScale), d.Scale)
		p.SetFloat(TileUniform(layer.CategoryHeight, SuffixNone, i, FieldDepthOffset), d.Offset)
	}

	// Skirts grow with the patch, 1e6 meters per radian of half size.
	p.SetFloat(UniformSkirtLength, min(float32(c.Patch.HalfSize.Lat*1e6), maxSkirtLength))
	p.SetInt(UniformXSegments, r.grid.XSegments())
	p.SetFloat(UniformChunkMinHeight, float32(c.Heights.Min))
	if r.opts.ShowHeightResolution {
		p.SetVec2(UniformVertexResolution, mgl32.Vec2{float32(r.grid.XSegments()), float32(r.grid.YSegments())})
	}
}

func setLayerUniforms(p gpu.Program, category layer.Category, i int, l *layer.Layer) {
	s := l.Settings()
	p.SetFloat(SettingsUniform(category, i, FieldOpacity), s.Opacity)
	p.SetFloat(SettingsUniform(category, i, FieldGamma), s.Gamma)
	p.SetFloat(SettingsUniform(category, i, FieldMultiplier), s.Multiplier)
	p.SetFloat(SettingsUniform(category, i, FieldOffset), s.Offset)
	p.SetVec2(SettingsUniform(category, i, FieldPadStartOffset), l.TilePixelStartOffset())
	p.SetVec2(SettingsUniform(category, i, FieldPadSizeDifference), l.TilePixelSizeDifference())
	if a := l.Adjustment(); a.Kind == layer.AdjustmentChromaKey {
		p.SetVec3(SettingsUniform(category, i, FieldChromaKeyColor), a.ChromaKeyColor)
		p.SetFloat(SettingsUniform(category, i, FieldChromaKeyTolerance), a.ChromaKeyTolerance)
	}
}

func (r *ChunkRenderer) setGlobalUniforms(p gpu.Program, c chunk.Chunk, scene Scene, modelView mgl64.Mat4, blending bool) {
	if blending {
		// Distances are measured in the globe's frame.
		camera := scene.Model.Inv().Mul4x1(scene.CameraPosition.Vec4(1)).Vec3()
		p.SetVec3(UniformCameraPosition, vec3(camera))
		p.SetFloat(UniformDistanceScaleFactor, r.distanceScaleFactor())
		p.SetInt(UniformChunkLevel, int(c.Level()))
	}

	sw := c.Patch.Corner(geo.SouthWest)
	p.SetMat4(UniformModelViewProjection, mat4(scene.Projection.Mul4(modelView)))
	p.SetVec2(UniformMinLatLon, vec2(sw.LonLat()))
	p.SetVec2(UniformLonLatScaling, vec2(c.Patch.Size().LonLat()))
	p.SetVec3(UniformRadiiSquared, vec3(r.ellipsoid.RadiiSquared()))
}

func (r *ChunkRenderer) setLocalUniforms(p gpu.Program, c chunk.Chunk, scene Scene, modelView mgl64.Mat4, blending bool) {
	if blending {
		p.SetFloat(UniformDistanceScaleFactor, r.distanceScaleFactor())
		p.SetInt(UniformChunkLevel, int(c.Level()))
	}

	var corners [4]mgl64.Vec3
	for q := geo.NorthWest; q <= geo.SouthEast; q++ {
		model := r.ellipsoid.CartesianSurfacePosition(c.Patch.Corner(q))
		corners[q] = modelView.Mul4x1(model.Vec4(1)).Vec3()
		p.SetVec3(cornerUniforms[q], vec3(corners[q]))
	}
	sw := corners[geo.SouthWest]
	normal := corners[geo.SouthEast].Sub(sw).Cross(corners[geo.NorthEast].Sub(sw)).Normalize()
	p.SetVec3(UniformPatchNormal, vec3(normal))
	p.SetMat4(UniformProjection, mat4(scene.Projection))
}

func (r *ChunkRenderer) distanceScaleFactor() float32 {
	return float32(r.opts.LODScaleFactor * r.ellipsoid.MinimumRadius())
}

// needsLight reports whether any shader stage consumes the light direction.
func (r *ChunkRenderer) needsLight() bool {
	return len(r.layers.Group(layer.CategoryNight).ActiveLayers()) > 0 ||
		len(r.layers.Group(layer.CategoryWater).ActiveLayers()) > 0 ||
		r.opts.Atmosphere || r.opts.PerformShading
}

// lightDirection returns the direction the light travels, in camera space.
func lightDirection(scene Scene) mgl32.Vec3 {
	toSun := scene.SunPosition.Sub(scene.Model.Col(3).Vec3())
	if toSun.Len() > 0 {
		toSun = toSun.Normalize()
	}
	camera := scene.View.Mul4x1(toSun.Vec4(0)).Vec3()
	return vec3(camera.Mul(-1))
}

func vec2(v mgl64.Vec2) mgl32.Vec2 { return mgl32.Vec2{float32(v[0]), float32(v[1])} }

func vec3(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func mat4(m mgl64.Mat4) mgl32.Mat4 {
	var out mgl32.Mat4
	for i := range m {
		out[i] = float32(m[i])
	}
	return out
}
