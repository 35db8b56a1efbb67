package config_test

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eak1mov/go-globetiles/config"
	"github.com/eak1mov/go-globetiles/layer"
	"github.com/eak1mov/go-globetiles/provider"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

const globeYAML = `
globe:
  atmosphere: true
  debug:
    show_chunk_edges: true
engine:
  workers: 2
  cache_dir: /tmp/globe-cache
layers:
  height:
    - id: terrain
      source: terrain.mbtiles
      enabled: true
      depth_transform: {scale: 8848, offset: -500}
  color:
    - id: blue-marble
      source: "tiles/{z}/{x}/{y}.jpg"
      enabled: true
      max_level: 8
      settings: {opacity: 0.5}
    - id: ocean
      type: SolidColor
      color: "#0000c8"
      blend_mode: Multiply
  night:
    - id: lights
      type: TemporalTileLayer
      source: "night/{time}.mbtiles"
      temporal:
        start: 2024-01-01T00:00:00Z
        end: 2024-01-03T00:00:00Z
        step: 24h
  overlay:
    - id: regions
      type: ByIndexTileLayer
      by_index:
        - address: 2/1/1
          source: detail.mbtiles
        - region: [-10, 35, 30, 60]
          type: TileIndexTileLayer
      fallback:
        type: SizeReferenceTileLayer
    - id: levels
      type: ByLevelTileLayer
      pad_tiles: false
      by_level:
        - up_to_level: 5
          source: coarse.mbtiles
        - up_to_level: 12
          source: fine.mbtiles
          bounds: [0, 0, 10, 10]
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(globeYAML))
	require.NoError(t, err)

	require.Equal(t, [3]float64{6378137, 6378137, 6356752.314245}, cfg.Globe.Radii)
	require.Equal(t, 10, cfg.Engine.GlobalRenderingMaxLevel)
	require.Equal(t, [2]int{1920, 1080}, cfg.Engine.Screen)
	require.True(t, *cfg.Globe.BlendLevels)

	rec, err := cfg.Layers.Color[0].Record()
	require.NoError(t, err)
	want := layer.Record{
		ID:            "blue-marble",
		Type:          "DefaultTileLayer",
		Enabled:       true,
		BlendMode:     layer.BlendNormal,
		Settings:      layer.Settings{Opacity: 0.5, Gamma: 1, Multiplier: 1},
		PadTiles:      true,
		LevelBlending: true,
		Provider: provider.Params{
			Kind:     provider.KindTiled,
			Source:   "tiles/{z}/{x}/{y}.jpg",
			MaxLevel: 8,
		},
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("Record mismatch (-want +got):\n%v", diff)
	}
}

func TestSolidColorRecord(t *testing.T) {
	cfg, err := config.Parse([]byte(globeYAML))
	require.NoError(t, err)

	rec, err := cfg.Layers.Color[1].Record()
	require.NoError(t, err)
	require.Equal(t, color.NRGBA{B: 200, A: 255}, rec.Color)
	require.Equal(t, layer.BlendMultiply, rec.BlendMode)
	require.False(t, rec.Enabled)
}

func TestTemporalRecord(t *testing.T) {
	cfg, err := config.Parse([]byte(globeYAML))
	require.NoError(t, err)

	rec, err := cfg.Layers.Night[0].Record()
	require.NoError(t, err)
	want := provider.TemporalParams{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Step:  24 * time.Hour,
	}
	require.Equal(t, provider.KindTemporal, rec.Provider.Kind)
	if diff := cmp.Diff(want, rec.Provider.Temporal); diff != "" {
		t.Errorf("TemporalParams mismatch (-want +got):\n%v", diff)
	}
}

func TestCompositeRecords(t *testing.T) {
	cfg, err := config.Parse([]byte(globeYAML))
	require.NoError(t, err)

	regions, err := cfg.Layers.Overlay[0].Record()
	require.NoError(t, err)
	wantRegions := provider.Params{
		Kind: provider.KindByIndex,
		ByIndex: []provider.IndexEntry{
			{
				Address: &tile.Address{Level: 2, X: 1, Y: 1},
				Params:  provider.Params{Kind: provider.KindTiled, Source: "detail.mbtiles"},
			},
			{
				Bounds: &orb.Bound{Min: orb.Point{-10, 35}, Max: orb.Point{30, 60}},
				Params: provider.Params{Kind: provider.KindIndexColored},
			},
		},
		Fallback: &provider.Params{Kind: provider.KindLevelColored},
	}
	if diff := cmp.Diff(wantRegions, regions.Provider); diff != "" {
		t.Errorf("ByIndex params mismatch (-want +got):\n%v", diff)
	}

	levels, err := cfg.Layers.Overlay[1].Record()
	require.NoError(t, err)
	require.False(t, levels.PadTiles)
	require.Len(t, levels.Provider.ByLevel, 2)
	require.Equal(t, uint32(12), levels.Provider.ByLevel[1].MaxLevel)
	require.Equal(t, &orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}, levels.Provider.ByLevel[1].Params.Bounds)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown type", "layers: {color: [{id: a, type: WmsLayer}]}"},
		{"missing id", "layers: {color: [{source: a.mbtiles}]}"},
		{"missing source", "layers: {color: [{id: a}]}"},
		{"duplicate id", "layers: {color: [{id: a, source: x}], overlay: [{id: a, source: y}]}"},
		{"unknown blend mode", "layers: {color: [{id: a, source: x, blend_mode: Screen}]}"},
		{"bad solid color", "layers: {color: [{id: a, type: SolidColor, color: blue}]}"},
		{"bad opacity", "layers: {color: [{id: a, source: x, settings: {opacity: 2}}]}"},
		{"bad bounds", "layers: {color: [{id: a, source: x, bounds: [10, 0, 0, 10]}]}"},
		{"bad address", "layers: {color: [{id: a, type: ByIndexTileLayer, by_index: [{address: 0/5/0}]}]}"},
		{"address and region", "layers: {color: [{id: a, type: ByIndexTileLayer, by_index: [{address: 0/0/0, region: [0, 0, 1, 1]}]}]}"},
		{"solid color entry", "layers: {color: [{id: a, type: ByLevelTileLayer, by_level: [{type: SolidColor}]}]}"},
		{"temporal without step", "layers: {night: [{id: a, type: TemporalTileLayer, source: x, temporal: {start: 2024-01-01}}]}"},
		{"bad adjustment", "layers: {color: [{id: a, source: x, adjustment: {type: Sepia}}]}"},
		{"negative workers", "engine: {workers: -1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, config.ErrConfiguration)
		})
	}
}

func TestBadDuration(t *testing.T) {
	_, err := config.Parse([]byte("layers: {night: [{id: a, type: TemporalTileLayer, source: x, temporal: {step: soon}}]}"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "globe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(globeYAML), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Layers.Category(layer.CategoryOverlay), 2)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultBuildsLayers(t *testing.T) {
	cfg := config.Default()
	for _, c := range layer.Categories {
		for _, lc := range cfg.Layers.Category(c) {
			_, err := lc.Record()
			require.NoError(t, err, lc.ID)
		}
	}
	require.Len(t, cfg.Layers.Color, 1)
	require.True(t, cfg.Layers.Color[0].Enabled)
}
