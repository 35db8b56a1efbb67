package provider

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestPaddedRepeatsEdges(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 1, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 2, A: 255})
	src.SetNRGBA(0, 1, color.NRGBA{R: 3, A: 255})
	src.SetNRGBA(1, 1, color.NRGBA{R: 4, A: 255})

	dst := padded(src, true, image.NewNRGBA)
	require.Equal(t, image.Rect(0, 0, 4, 4), dst.Bounds())

	var got [4][4]uint8
	for y := range 4 {
		for x := range 4 {
			got[y][x] = dst.NRGBAAt(x, y).R
		}
	}
	want := [4][4]uint8{
		{1, 1, 2, 2},
		{1, 1, 2, 2},
		{3, 3, 4, 4},
		{3, 3, 4, 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("padded mismatch (-want +got):\n%v", diff)
	}
}

func TestDecodeHeightFlagsMissingData(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	d, err := decodeTile(buf.Bytes(), true, false)
	require.NoError(t, err)
	require.Equal(t, gputypes.TextureFormatR32Float, d.Format)
	require.Len(t, d.Pixels, 8)
	require.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(d.Pixels[0:])))
	require.Equal(t, float32(0), math.Float32frombits(binary.LittleEndian.Uint32(d.Pixels[4:])))

	require.True(t, d.Metadata.HasMissingData)
	require.Equal(t, float32(1), d.Metadata.MinValue)
	require.Equal(t, float32(1), d.Metadata.MaxValue)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decodeTile([]byte("not an image"), false, true)
	require.Error(t, err)
}

func TestLRUEvictsOldest(t *testing.T) {
	c := newLRU[int, string](2)
	require.Empty(t, c.add(1, "a"))
	require.Empty(t, c.add(2, "b"))
	c.get(1)
	require.Equal(t, []string{"b"}, c.add(3, "c"))
	require.Equal(t, []string{"a"}, c.add(1, "A"))

	_, ok := c.peek(2)
	require.False(t, ok)
	require.ElementsMatch(t, []string{"A", "c"}, c.clear())
	require.Zero(t, c.len())
}
