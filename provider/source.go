package provider

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/eak1mov/go-globetiles/mb"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/eak1mov/go-globetiles/xyz"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openSource opens an MBTiles archive (".mbtiles") or an XYZ file pattern.
func openSource(source string) (tile.Reader, io.Closer, error) {
	if source == "" {
		return nil, nil, ErrNoSource
	}
	if strings.EqualFold(filepath.Ext(source), ".mbtiles") {
		r, err := mb.NewReader(source)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %v: %w", source, err)
		}
		return r, r, nil
	}
	r, err := xyz.NewReader(source)
	if err != nil {
		return nil, nil, err
	}
	return r, nopCloser{}, nil
}
