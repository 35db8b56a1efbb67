package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-globetiles/provider"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/eak1mov/go-globetiles/xyz"
	"github.com/stretchr/testify/require"
)

func TestParseLevels(t *testing.T) {
	tests := []struct {
		in       string
		min, max uint32
		wantErr  bool
	}{
		{in: "3", min: 3, max: 3},
		{in: "0-4", min: 0, max: 4},
		{in: "4-0", wantErr: true},
		{in: "a-b", wantErr: true},
		{in: "0-31", wantErr: true},
	}
	for _, tt := range tests {
		minLevel, maxLevel, err := parseLevels(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, [2]uint32{tt.min, tt.max}, [2]uint32{minLevel, maxLevel}, tt.in)
	}
}

func TestDeduceFormat(t *testing.T) {
	require.Equal(t, "mbtiles", deduceFormat("", "out.mbtiles"))
	require.Equal(t, "xyz", deduceFormat("", "out/{z}/{x}/{y}.png"))
	require.Equal(t, "mbtiles", deduceFormat("mbtiles", "out"))
}

func TestBakeWritesEveryTile(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "{z}", "{x}", "{y}.png")
	writer, err := openWriter("xyz", pattern)
	require.NoError(t, err)
	defer writer.Close()

	c := &bakeCmd{levels: "0-2", size: 8, workers: 4}
	require.NoError(t, c.bake(context.Background(), writer, provider.PaintLevel))

	reader, err := xyz.NewReader(pattern)
	require.NoError(t, err)
	count := 0
	for range tile.IterTiles(reader) {
		count++
	}
	require.Equal(t, tile.CountLevels(0, 2), count)
}

func TestOpenGlobeDefault(t *testing.T) {
	g, err := openGlobe("", nil)
	require.NoError(t, err)
	defer g.Close()

	require.Nil(t, g.store)
	_, err = g.layer("tile-index")
	require.NoError(t, err)
	_, err = g.layer("missing")
	require.Error(t, err)
}
