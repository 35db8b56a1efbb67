package xyz_test

import (
	"errors"
	"maps"
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-globetiles/tile"
	"github.com/eak1mov/go-globetiles/xyz"
	"github.com/google/go-cmp/cmp"
)

func TestWriterReader(t *testing.T) {
	rootDir := t.TempDir()
	pattern := filepath.Join(rootDir, "{z}", "{x}", "{y}.png")

	tiles := map[tile.Address][]byte{
		{Level: 0, X: 0, Y: 0}: []byte("tile000"),
		{Level: 0, X: 1, Y: 0}: []byte("tile010"),
		{Level: 1, X: 3, Y: 1}: []byte("tile131"),
		{Level: 6, X: 0, Y: 0}: []byte("tile600"),
		{Level: 6, X: 9, Y: 6}: []byte("tile696"),
	}

	writer, err := xyz.NewWriter(pattern)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	for addr, tileData := range tiles {
		if err := writer.WriteTile(addr, tileData); err != nil {
			t.Errorf("WriteTile(%v) failed: %v", addr, err)
		}
	}

	if err := writer.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	reader, err := xyz.NewReader(pattern)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	if diff := cmp.Diff(tiles, maps.Collect(tile.IterTiles(reader))); diff != "" {
		t.Errorf("VisitTiles mismatch (-want +got):\n%v", diff)
	}

	for addr, tileData := range tiles {
		data, err := reader.ReadTile(addr)
		if err != nil {
			t.Errorf("ReadTile(%v) failed: %v", addr, err)
			continue
		}
		if !cmp.Equal(data, tileData) {
			t.Errorf("ReadTile data mismatch for %v", addr)
		}
	}

	for _, addr := range []tile.Address{{Level: 9, X: 9, Y: 9}, {Level: 0, X: 2, Y: 0}} {
		tileData, err := reader.ReadTile(addr)
		if err != nil {
			t.Errorf("ReadTile(%v) failed: %v", addr, err)
		}
		if len(tileData) != 0 {
			t.Errorf("ReadTile(%v) expected empty tile, got: %v bytes", addr, len(tileData))
		}
	}
}

func TestWriterRejectsInvalidAddress(t *testing.T) {
	writer, err := xyz.NewWriter(filepath.Join(t.TempDir(), "{z}", "{x}", "{y}.png"))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := writer.WriteTile(tile.Address{Level: 1, X: 0, Y: 2}, []byte("x")); err == nil {
		t.Error("WriteTile(invalid) succeeded")
	}
}

func TestInvalidPattern(t *testing.T) {
	for _, pattern := range []string{"tiles/{z}/{x}.png", "tiles/{x}/{y}.png", ""} {
		if _, err := xyz.NewReader(pattern); !errors.Is(err, xyz.ErrInvalidPattern) {
			t.Errorf("NewReader(%q) error = %v, want ErrInvalidPattern", pattern, err)
		}
	}
}

func TestFormatPattern(t *testing.T) {
	got := xyz.FormatPattern("a/{z}-{x}-{y}.{x}", tile.Address{Level: 4, X: 17, Y: 3})
	if want := "a/4-17-3.17"; got != want {
		t.Errorf("FormatPattern() = %q, want = %q", got, want)
	}
}
