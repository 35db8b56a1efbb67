// Package layer binds tile providers to texture categories and groups them for rendering.
package layer

import (
	"log/slog"

	"github.com/eak1mov/go-globetiles/provider"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/go-gl/mathgl/mgl32"
)

// Layer is one configured texture source. It is either provider-backed or, for the
// SolidColor type, a constant color; the two are never set together.
type Layer struct {
	record   Record
	category Category
	typ      Type
	env      provider.Env
	logger   *slog.Logger

	provider provider.Provider
	solid    *provider.Solid

	enabled    bool
	blendMode  BlendMode
	settings   Settings
	adjustment Adjustment

	padStartOffset    mgl32.Vec2
	padSizeDifference mgl32.Vec2

	onChange func()
}

// New validates the declared type of rec, then builds the provider or solid color it names.
func New(category Category, rec Record, env provider.Env) (*Layer, error) {
	typ, err := ParseType(rec.Type)
	if err != nil {
		return nil, err
	}

	if env.Logger == nil {
		env.Logger = slog.New(slog.DiscardHandler)
	}
	if rec.Settings == (Settings{}) {
		rec.Settings = DefaultSettings()
	}
	l := &Layer{
		record:     rec,
		category:   category,
		env:        env,
		logger:     env.Logger.With("layer", rec.ID),
		enabled:    rec.Enabled,
		blendMode:  rec.BlendMode,
		settings:   rec.Settings,
		adjustment: rec.Adjustment,
	}
	if rec.PadTiles {
		l.padStartOffset = mgl32.Vec2{-1, -1}
		l.padSizeDifference = mgl32.Vec2{2, 2}
	}

	if err := l.build(typ); err != nil {
		return nil, err
	}
	l.logger.Info("globetiles: layer created", "category", category, "type", typ, "enabled", l.enabled)
	return l, nil
}

// build replaces the provider or solid color with one for typ.
func (l *Layer) build(typ Type) error {
	kind, tiled := typ.ProviderKind()
	var (
		p     provider.Provider
		solid *provider.Solid
	)
	if tiled {
		params := l.record.Provider
		params.Kind = kind
		params.Name = l.record.ID
		params.Height = l.category == CategoryHeight
		params.PadTiles = l.record.PadTiles
		var err error
		if p, err = provider.New(params, l.env); err != nil {
			return err
		}
	} else {
		solid = provider.NewSolid(l.record.ID, l.record.Color, l.env.Uploader)
	}

	if err := l.release(); err != nil {
		l.logger.Warn("globetiles: failed to close provider", "error", err)
	}
	l.typ, l.provider, l.solid = typ, p, solid
	return nil
}

func (l *Layer) release() error {
	var err error
	if l.provider != nil {
		err = l.provider.Close()
	}
	if l.solid != nil {
		l.solid.Release()
	}
	l.provider, l.solid = nil, nil
	return err
}

func (l *Layer) changed() {
	if l.onChange != nil {
		l.onChange()
	}
}

// OnChange registers the single observer notified when the layer's shader-relevant state
// changes: enabled, type, blend mode or adjustment. A later registration replaces it.
func (l *Layer) OnChange(fn func()) {
	l.onChange = fn
}

func (l *Layer) ID() string             { return l.record.ID }
func (l *Layer) Name() string           { return l.record.Name }
func (l *Layer) Category() Category     { return l.category }
func (l *Layer) Type() Type             { return l.typ }
func (l *Layer) Enabled() bool          { return l.enabled }
func (l *Layer) BlendMode() BlendMode   { return l.blendMode }
func (l *Layer) Settings() Settings     { return l.settings }
func (l *Layer) Adjustment() Adjustment { return l.adjustment }
func (l *Layer) LevelBlending() bool    { return l.record.LevelBlending }

// Provider returns the backing provider, nil for solid-color layers.
func (l *Layer) Provider() provider.Provider { return l.provider }

func (l *Layer) SetEnabled(enabled bool) {
	if l.enabled == enabled {
		return
	}
	l.enabled = enabled
	l.changed()
}

func (l *Layer) SetBlendMode(mode BlendMode) {
	if l.blendMode == mode {
		return
	}
	l.blendMode = mode
	l.changed()
}

func (l *Layer) SetAdjustment(adjustment Adjustment) {
	if l.adjustment == adjustment {
		return
	}
	l.adjustment = adjustment
	l.changed()
}

// SetSettings only changes uniforms, so observers are not notified.
func (l *Layer) SetSettings(settings Settings) {
	l.settings = settings
}

// SetType rebuilds the layer as typ. On error the layer keeps its current type.
func (l *Layer) SetType(typ Type) error {
	if err := l.build(typ); err != nil {
		return err
	}
	l.logger.Info("globetiles: layer type changed", "type", typ)
	l.changed()
	return nil
}

// ChunkTilePile resolves size pile slots for addr. Solid-color layers return their
// constant tile in every slot.
func (l *Layer) ChunkTilePile(addr tile.Address, size int) tile.Pile {
	if l.provider == nil {
		return l.solid.Pile(size)
	}
	return provider.ChunkTilePile(l.provider, addr, size)
}

func (l *Layer) TileStatus(addr tile.Address) tile.Status {
	if l.provider == nil {
		return l.solid.Tile().Status
	}
	return l.provider.TileStatus(addr)
}

// DefaultTile is bound in place of pile slots that are not OK.
func (l *Layer) DefaultTile() tile.Tile {
	if l.provider == nil {
		return l.solid.Tile()
	}
	return l.provider.DefaultTile()
}

func (l *Layer) DepthTransform() tile.DepthTransform {
	if l.provider == nil {
		return tile.IdentityDepth()
	}
	return l.provider.DepthTransform()
}

func (l *Layer) Update() {
	if l.provider != nil {
		l.provider.Update()
	}
}

// Reset drops every cached tile of the layer, including its durable cache entries.
func (l *Layer) Reset() {
	if l.provider != nil {
		l.provider.Reset()
	}
}

func (l *Layer) Close() error {
	return l.release()
}

// TilePixelStartOffset is the position of the first tile pixel in the texture, negative
// when tiles are padded.
func (l *Layer) TilePixelStartOffset() mgl32.Vec2 { return l.padStartOffset }

// TilePixelSizeDifference is how many pixels padding adds to each texture dimension.
func (l *Layer) TilePixelSizeDifference() mgl32.Vec2 { return l.padSizeDifference }

// TileUVToTextureSamplePosition maps a chunk UV through uv into the padded texture of a
// tile whose unpadded size is resolution.
func (l *Layer) TileUVToTextureSamplePosition(uv tile.UVTransform, tileUV, resolution mgl32.Vec2) mgl32.Vec2 {
	p := uv.Apply(tileUV)
	var out mgl32.Vec2
	for i := range out {
		source := resolution[i] + l.padSizeDifference[i]
		out[i] = (p[i]*resolution[i] - l.padStartOffset[i]) / source
	}
	return out
}
