package provider

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/eak1mov/go-globetiles/cache"
	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodeTile turns encoded tile bytes (png, jpeg, tiff or webp) into uploadable pixels.
func decodeTile(data []byte, height, pad bool) (cache.Decoded, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return cache.Decoded{}, fmt.Errorf("failed to decode: %w", err)
	}
	if height {
		return heightPixels(padded(img, pad, image.NewNRGBA64)), nil
	}
	return colorPixels(padded(img, pad, image.NewNRGBA)), nil
}

// padded draws src into a new image created by newImage. With pad set the result has a
// one-pixel border repeating the outermost rows and columns, so bilinear sampling at tile
// edges never reads past the tile.
func padded[I draw.Image](src image.Image, pad bool, newImage func(image.Rectangle) I) I {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if !pad {
		dst := newImage(image.Rect(0, 0, w, h))
		draw.Copy(dst, image.Point{}, src, b, draw.Src, nil)
		return dst
	}

	dst := newImage(image.Rect(0, 0, w+2, h+2))
	draw.Copy(dst, image.Pt(1, 1), src, b, draw.Src, nil)
	if w == 0 || h == 0 {
		return dst
	}
	// Columns first, then full rows so the corners are filled too.
	draw.Copy(dst, image.Pt(0, 1), dst, image.Rect(1, 1, 2, h+1), draw.Src, nil)
	draw.Copy(dst, image.Pt(w+1, 1), dst, image.Rect(w, 1, w+1, h+1), draw.Src, nil)
	draw.Copy(dst, image.Pt(0, 0), dst, image.Rect(0, 1, w+2, 2), draw.Src, nil)
	draw.Copy(dst, image.Pt(0, h+1), dst, image.Rect(0, h, w+2, h+1), draw.Src, nil)
	return dst
}

func colorPixels(img *image.NRGBA) cache.Decoded {
	b := img.Bounds()
	pixels := make([]byte, 0, b.Dx()*b.Dy()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		pixels = append(pixels, row...)
	}
	return cache.Decoded{
		Format: gputypes.TextureFormatRGBA8Unorm,
		Width:  b.Dx(),
		Height: b.Dy(),
		Pixels: pixels,
	}
}

// heightPixels stores the luminance of every pixel as a normalized float height.
// Transparent pixels carry no data: they are stored as zero and flagged in the metadata.
func heightPixels(img *image.NRGBA64) cache.Decoded {
	b := img.Bounds()
	pixels := make([]byte, 0, b.Dx()*b.Dy()*4)
	meta := tile.Metadata{MinValue: math.MaxFloat32, MaxValue: -math.MaxFloat32}
	valid := false

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBA64At(x, y)
			var v float32
			if c.A == 0 {
				meta.HasMissingData = true
			} else {
				gray := color.Gray16Model.Convert(color.NRGBA64{R: c.R, G: c.G, B: c.B, A: math.MaxUint16}).(color.Gray16)
				v = float32(gray.Y) / math.MaxUint16
				meta.MinValue = min(meta.MinValue, v)
				meta.MaxValue = max(meta.MaxValue, v)
				valid = true
			}
			pixels = binary.LittleEndian.AppendUint32(pixels, math.Float32bits(v))
		}
	}
	if !valid {
		meta.MinValue, meta.MaxValue = 0, 0
	}
	return cache.Decoded{
		Format:   gputypes.TextureFormatR32Float,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Pixels:   pixels,
		Metadata: &meta,
	}
}

// upload creates the texture for d and wraps it in an OK tile.
func upload(uploader gpu.Uploader, label string, d cache.Decoded) (tile.Tile, error) {
	desc := gpu.NewTextureDescriptor(label, d.Format, d.Width, d.Height)
	tex, err := uploader.Upload(desc, d.Pixels)
	if err != nil {
		return tile.Tile{}, err
	}
	return tile.Tile{Status: tile.StatusOK, Texture: tex, Metadata: d.Metadata}, nil
}

// fallbackTile lazily uploads the 1x1 texture a provider binds for tiles that are not OK:
// transparent black for colors, zero for heights.
type fallbackTile struct {
	uploader gpu.Uploader
	label    string
	height   bool
	tile     tile.Tile
}

func newFallbackTile(uploader gpu.Uploader, name string, height bool) *fallbackTile {
	return &fallbackTile{uploader: uploader, label: name + " default", height: height}
}

func (f *fallbackTile) get() tile.Tile {
	if f.tile.OK() || f.uploader == nil {
		return f.tile
	}
	d := cache.Decoded{Format: gputypes.TextureFormatRGBA8Unorm, Width: 1, Height: 1, Pixels: make([]byte, 4)}
	if f.height {
		d.Format = gputypes.TextureFormatR32Float
	}
	t, err := upload(f.uploader, f.label, d)
	if err != nil {
		return tile.Unavailable
	}
	f.tile = t
	return f.tile
}

func (f *fallbackTile) release() {
	if f.tile.OK() {
		f.uploader.Release(f.tile.Texture)
	}
	f.tile = tile.Tile{}
}
