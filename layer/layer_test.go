package layer_test

import (
	"errors"
	"image/color"
	"testing"

	"github.com/eak1mov/go-globetiles/gpu/record"
	"github.com/eak1mov/go-globetiles/layer"
	"github.com/eak1mov/go-globetiles/provider"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func env() provider.Env {
	return provider.Env{Uploader: record.NewDevice()}
}

func indexRecord(id string, enabled bool) layer.Record {
	return layer.Record{ID: id, Type: "TileIndexTileLayer", Enabled: enabled, LevelBlending: true}
}

func layerIDs(layers []*layer.Layer) []string {
	ids := make([]string, len(layers))
	for i, l := range layers {
		ids[i] = l.ID()
	}
	return ids
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want layer.Type
	}{
		{"", layer.TypeDefaultTile},
		{"DefaultTileLayer", layer.TypeDefaultTile},
		{"SizeReferenceTileLayer", layer.TypeSizeReference},
		{"SolidColor", layer.TypeSolidColor},
	}
	for _, tt := range tests {
		got, err := layer.ParseType(tt.in)
		require.NoError(t, err)
		if got != tt.want {
			t.Errorf("ParseType(%q) = %v, want = %v", tt.in, got, tt.want)
		}
	}

	_, err := layer.ParseType("WmsLayer")
	require.ErrorIs(t, err, layer.ErrUnknownLayerType)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := layer.New(layer.CategoryColor, layer.Record{ID: "x", Type: "Hologram"}, env())
	require.ErrorIs(t, err, layer.ErrUnknownLayerType)
}

func TestNewReportsProviderErrors(t *testing.T) {
	_, err := layer.New(layer.CategoryColor, layer.Record{ID: "x"}, env())
	require.ErrorIs(t, err, provider.ErrNoSource)
}

func TestActiveLayersKeepOrder(t *testing.T) {
	m := layer.NewManager(env())
	defer m.Close()
	g := m.Group(layer.CategoryColor)

	for _, rec := range []layer.Record{indexRecord("a", true), indexRecord("b", false), indexRecord("c", true)} {
		_, err := g.AddLayer(rec)
		require.NoError(t, err)
	}

	if diff := cmp.Diff([]string{"a", "c"}, layerIDs(g.ActiveLayers())); diff != "" {
		t.Errorf("ActiveLayers mismatch (-want +got):\n%v", diff)
	}
	require.Len(t, g.Layers(), 3)
}

func TestToggleFiresObserverOncePerToggle(t *testing.T) {
	l, err := layer.New(layer.CategoryColor, indexRecord("a", true), env())
	require.NoError(t, err)
	defer l.Close()

	calls := 0
	l.OnChange(func() { calls++ })

	l.SetEnabled(false)
	require.Equal(t, 1, calls)
	l.SetEnabled(false)
	require.Equal(t, 1, calls, "no change, no notification")
	l.SetEnabled(true)
	require.Equal(t, 2, calls)

	l.SetBlendMode(layer.BlendMultiply)
	l.SetAdjustment(layer.Adjustment{Kind: layer.AdjustmentChromaKey, ChromaKeyTolerance: 0.1})
	require.Equal(t, 4, calls)

	l.SetSettings(layer.Settings{Opacity: 0.5, Gamma: 1, Multiplier: 1})
	require.Equal(t, 4, calls)
}

func TestLastObserverWins(t *testing.T) {
	l, err := layer.New(layer.CategoryColor, indexRecord("a", true), env())
	require.NoError(t, err)
	defer l.Close()

	first, second := 0, 0
	l.OnChange(func() { first++ })
	l.OnChange(func() { second++ })
	l.SetEnabled(false)
	require.Equal(t, 0, first)
	require.Equal(t, 1, second)
}

func TestGroupTracksLayerChanges(t *testing.T) {
	m := layer.NewManager(env())
	defer m.Close()

	changes := 0
	m.OnChange(func() { changes++ })

	g := m.Group(layer.CategoryColor)
	a, err := g.AddLayer(indexRecord("a", true))
	require.NoError(t, err)
	require.Equal(t, 1, changes)
	require.True(t, g.LevelBlendingEnabled())
	require.True(t, m.HasAnyBlendingLayersEnabled())

	a.SetEnabled(false)
	require.Equal(t, 2, changes)
	require.Empty(t, g.ActiveLayers())
	require.False(t, g.LevelBlendingEnabled())

	a.SetEnabled(true)
	g.SetLevelBlending(false)
	require.False(t, g.LevelBlendingEnabled())
	require.Equal(t, 4, changes)
}

func TestLevelBlendingNeedsARequestingLayer(t *testing.T) {
	m := layer.NewManager(env())
	defer m.Close()
	g := m.Group(layer.CategoryHeight)

	rec := indexRecord("flat", true)
	rec.LevelBlending = false
	_, err := g.AddLayer(rec)
	require.NoError(t, err)
	require.False(t, g.LevelBlendingEnabled())

	_, err = g.AddLayer(indexRecord("blended", true))
	require.NoError(t, err)
	require.True(t, g.LevelBlendingEnabled())
}

func TestDeleteLayer(t *testing.T) {
	m := layer.NewManager(env())
	defer m.Close()
	g := m.Group(layer.CategoryOverlay)

	_, err := g.AddLayer(indexRecord("a", true))
	require.NoError(t, err)
	_, err = g.AddLayer(indexRecord("b", true))
	require.NoError(t, err)
	_, err = g.AddLayer(indexRecord("a", true))
	require.Error(t, err, "duplicate id")

	require.NoError(t, g.DeleteLayer("a"))
	require.Equal(t, []string{"b"}, layerIDs(g.ActiveLayers()))
	require.Error(t, g.DeleteLayer("a"))

	_, ok := m.Layer("b")
	require.True(t, ok)
}

func TestSolidColorLayer(t *testing.T) {
	device := record.NewDevice()
	l, err := layer.New(layer.CategoryColor, layer.Record{
		ID:    "ocean",
		Type:  "SolidColor",
		Color: color.NRGBA{B: 200, A: 255},
	}, provider.Env{Uploader: device})
	require.NoError(t, err)
	defer l.Close()

	require.Nil(t, l.Provider())
	pile := l.ChunkTilePile(tile.Address{Level: 3, X: 1, Y: 1}, 3)
	require.Len(t, pile, 3)
	for _, ct := range pile {
		require.True(t, ct.Tile.OK())
		require.Equal(t, pile[0].Tile, ct.Tile)
		require.Equal(t, tile.IdentityUV(), ct.UV)
	}
	require.Equal(t, 1, device.Uploads())
	require.Equal(t, tile.IdentityDepth(), l.DepthTransform())
}

func TestSetTypeRebuilds(t *testing.T) {
	device := record.NewDevice()
	l, err := layer.New(layer.CategoryColor, layer.Record{ID: "dbg", Type: "SolidColor"}, provider.Env{Uploader: device})
	require.NoError(t, err)
	defer l.Close()

	calls := 0
	l.OnChange(func() { calls++ })

	require.NoError(t, l.SetType(layer.TypeSizeReference))
	require.Equal(t, layer.TypeSizeReference, l.Type())
	require.NotNil(t, l.Provider())
	require.Equal(t, 1, calls)

	err = l.SetType(layer.TypeDefaultTile)
	require.True(t, errors.Is(err, provider.ErrNoSource))
	require.Equal(t, layer.TypeSizeReference, l.Type(), "failed rebuild keeps the type")
	require.Equal(t, 1, calls)
}

func TestPaddedSamplePosition(t *testing.T) {
	rec := indexRecord("a", true)
	rec.PadTiles = true
	l, err := layer.New(layer.CategoryColor, rec, env())
	require.NoError(t, err)
	defer l.Close()

	require.Equal(t, mgl32.Vec2{-1, -1}, l.TilePixelStartOffset())
	require.Equal(t, mgl32.Vec2{2, 2}, l.TilePixelSizeDifference())

	res := mgl32.Vec2{254, 254}
	tests := []struct {
		uv   mgl32.Vec2
		want mgl32.Vec2
	}{
		{mgl32.Vec2{0, 0}, mgl32.Vec2{1.0 / 256, 1.0 / 256}},
		{mgl32.Vec2{1, 1}, mgl32.Vec2{255.0 / 256, 255.0 / 256}},
	}
	for _, tt := range tests {
		got := l.TileUVToTextureSamplePosition(tile.IdentityUV(), tt.uv, res)
		if !got.ApproxEqual(tt.want) {
			t.Errorf("TileUVToTextureSamplePosition(%v) = %v, want = %v", tt.uv, got, tt.want)
		}
	}
}

func TestParseCategoryAndBlendMode(t *testing.T) {
	c, err := layer.ParseCategory("NightLayers")
	require.NoError(t, err)
	require.Equal(t, layer.CategoryNight, c)
	_, err = layer.ParseCategory("Clouds")
	require.ErrorIs(t, err, layer.ErrUnknownCategory)

	b, err := layer.ParseBlendMode("")
	require.NoError(t, err)
	require.Equal(t, layer.BlendNormal, b)
	_, err = layer.ParseBlendMode("Screen")
	require.ErrorIs(t, err, layer.ErrUnknownBlendMode)
}
