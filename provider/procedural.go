package provider

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/eak1mov/go-globetiles/tile"
	"golang.org/x/image/draw"
)

// levelPalette colors consecutive levels so that neighbouring levels always differ.
var levelPalette = []color.NRGBA{
	{R: 230, G: 25, B: 75, A: 255},
	{R: 60, G: 180, B: 75, A: 255},
	{R: 255, G: 225, B: 25, A: 255},
	{R: 0, G: 130, B: 200, A: 255},
	{R: 245, G: 130, B: 48, A: 255},
	{R: 145, G: 30, B: 180, A: 255},
	{R: 70, G: 240, B: 240, A: 255},
	{R: 240, G: 50, B: 230, A: 255},
}

// PaintLevel paints a size x size tile in the color of the address's level.
func PaintLevel(addr tile.Address, size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	c := levelPalette[int(addr.Level)%len(levelPalette)]
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// PaintIndex paints a size x size tile whose color encodes the column and row of the
// address, framed by a dark border so tile edges stay visible.
func PaintIndex(addr tile.Address, size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	cols := uint64(2)<<addr.Level - 1
	rows := max(uint64(1)<<addr.Level-1, 1)
	fill := color.NRGBA{
		R: uint8(uint64(addr.X) * 255 / cols),
		G: uint8(uint64(addr.Y) * 255 / rows),
		B: levelPalette[int(addr.Level)%len(levelPalette)].B,
		A: 255,
	}
	border := color.NRGBA{A: 255}
	draw.Draw(img, img.Bounds(), image.NewUniform(border), image.Point{}, draw.Src)
	if size > 2 {
		draw.Draw(img, image.Rect(1, 1, size-1, size-1), image.NewUniform(fill), image.Point{}, draw.Src)
	}
	return img
}

// Procedural paints debugging tiles on demand. Painting is cheap and needs no I/O, so
// tiles are produced and uploaded synchronously and are always OK.
type Procedural struct {
	name     string
	paint    func(tile.Address, int) *image.NRGBA
	size     int
	pad      bool
	maxLevel uint32
	uploader gpu.Uploader
	logger   *slog.Logger

	tiles    *lru[tile.Address, tile.Tile]
	released []gpu.Texture
	fallback *fallbackTile
}

// NewIndexColored returns a provider painting tiles with PaintIndex.
func NewIndexColored(params Params, env Env) *Procedural {
	return newProcedural(params, env, PaintIndex)
}

// NewLevelColored returns a provider painting tiles with PaintLevel.
func NewLevelColored(params Params, env Env) *Procedural {
	return newProcedural(params, env, PaintLevel)
}

func newProcedural(params Params, env Env, paint func(tile.Address, int) *image.NRGBA) *Procedural {
	env = env.withDefaults()
	size := params.TileSize
	if size <= 0 {
		size = defaultTileSize
	}
	return &Procedural{
		name:     params.Name,
		paint:    paint,
		size:     size,
		pad:      params.PadTiles,
		maxLevel: maxLevelOf(params),
		uploader: env.Uploader,
		logger:   env.Logger.With("provider", params.Name),
		tiles:    newLRU[tile.Address, tile.Tile](env.Capacity),
		fallback: newFallbackTile(env.Uploader, params.Name, false),
	}
}

func (p *Procedural) TileAt(addr tile.Address) tile.Tile {
	if !addr.Valid() || addr.Level > p.maxLevel {
		return tile.OutOfRange
	}
	if t, ok := p.tiles.get(addr); ok {
		return t
	}
	d := colorPixels(padded(p.paint(addr, p.size), p.pad, image.NewNRGBA))
	t, err := upload(p.uploader, fmt.Sprintf("%s %v", p.name, addr), d)
	if err != nil {
		p.logger.Warn("globetiles: failed to upload tile", "tile", addr, "error", err)
		return tile.Unavailable
	}
	for _, old := range p.tiles.add(addr, t) {
		p.released = append(p.released, old.Texture)
	}
	return t
}

func (p *Procedural) TileStatus(addr tile.Address) tile.Status {
	if !addr.Valid() || addr.Level > p.maxLevel {
		return tile.StatusOutOfRange
	}
	return tile.StatusOK
}

func (p *Procedural) DepthTransform() tile.DepthTransform { return tile.IdentityDepth() }

func (p *Procedural) Reset() {
	for _, t := range p.tiles.clear() {
		p.released = append(p.released, t.Texture)
	}
}

func (p *Procedural) Update() {
	for _, tex := range p.released {
		p.uploader.Release(tex)
	}
	p.released = p.released[:0]
}

func (p *Procedural) MaxLevel() uint32 { return p.maxLevel }

func (p *Procedural) DefaultTile() tile.Tile { return p.fallback.get() }

func (p *Procedural) Close() error {
	p.Reset()
	p.Update()
	p.fallback.release()
	return nil
}

// Solid is the constant tile of a solid-color layer. It is not a Provider: a solid-color
// layer has no provider, every pile slot is this one tile.
type Solid struct {
	Color    color.NRGBA
	uploader gpu.Uploader
	label    string
	tile     tile.Tile
}

func NewSolid(name string, c color.NRGBA, uploader gpu.Uploader) *Solid {
	return &Solid{Color: c, uploader: uploader, label: name + " solid"}
}

// Tile returns the 1x1 texture in the solid color, uploading it on first use.
func (s *Solid) Tile() tile.Tile {
	if s.tile.OK() || s.uploader == nil {
		return s.tile
	}
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, s.Color)
	t, err := upload(s.uploader, s.label, colorPixels(img))
	if err != nil {
		return tile.Unavailable
	}
	s.tile = t
	return s.tile
}

// Pile returns size copies of the solid tile with identity UV transforms.
func (s *Solid) Pile(size int) tile.Pile {
	t := s.Tile()
	pile := make(tile.Pile, size)
	for i := range pile {
		pile[i] = tile.ChunkTile{Tile: t, UV: tile.IdentityUV()}
	}
	return pile
}

func (s *Solid) Release() {
	if s.tile.OK() {
		s.uploader.Release(s.tile.Texture)
	}
	s.tile = tile.Tile{}
}
