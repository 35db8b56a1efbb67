package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eak1mov/go-globetiles/cache"
	"github.com/eak1mov/go-globetiles/config"
	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/eak1mov/go-globetiles/layer"
	"github.com/eak1mov/go-globetiles/mb"
	"github.com/eak1mov/go-globetiles/provider"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/eak1mov/go-globetiles/xyz"
)

const cacheFile = "tiles.db"

// globe is a loaded configuration with its layers built.
type globe struct {
	cfg    *config.Config
	layers *layer.Manager
	store  *cache.Store
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openGlobe(path string, uploader gpu.Uploader) (*globe, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	g := &globe{cfg: cfg}
	if dir := cfg.Engine.CacheDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		g.store, err = cache.Open(filepath.Join(dir, cacheFile), cache.WithLogger(slog.Default()))
		if err != nil {
			return nil, err
		}
	}

	env := cfg.Engine.Env(provider.Env{Uploader: uploader, Store: g.store, Logger: slog.Default()})
	g.layers = layer.NewManager(env, layer.WithLevelBlending(*cfg.Globe.BlendLevels))
	for _, category := range layer.Categories {
		for _, lc := range cfg.Layers.Category(category) {
			rec, err := lc.Record()
			if err == nil {
				_, err = g.layers.AddLayer(category, rec)
			}
			if err != nil {
				return nil, errors.Join(fmt.Errorf("%v %q: %w", category, lc.ID, err), g.Close())
			}
		}
	}
	return g, nil
}

func (g *globe) Close() error {
	var errs []error
	if g.layers != nil {
		errs = append(errs, g.layers.Close())
	}
	if g.store != nil {
		errs = append(errs, g.store.Close())
	}
	return errors.Join(errs...)
}

func (g *globe) layer(id string) (*layer.Layer, error) {
	l, ok := g.layers.Layer(id)
	if !ok {
		return nil, fmt.Errorf("layer %q not found", id)
	}
	return l, nil
}

// parseLevels reads "3" or "0-4".
func parseLevels(s string) (minLevel, maxLevel uint32, err error) {
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	minValue, err := strconv.ParseUint(lo, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid levels %q", s)
	}
	maxValue, err := strconv.ParseUint(hi, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid levels %q", s)
	}
	if minValue > maxValue || maxValue > tile.MaxLevel {
		return 0, 0, fmt.Errorf("invalid levels %q", s)
	}
	return uint32(minValue), uint32(maxValue), nil
}

func deduceFormat(format, filePath string) string {
	if format == "" && strings.HasSuffix(filePath, ".mbtiles") {
		return "mbtiles"
	}
	if format == "" {
		return "xyz"
	}
	return format
}

type tileWriter interface {
	tile.Writer
	Close() error
}

type xyzWriter struct{ *xyz.Writer }

func (xyzWriter) Close() error { return nil }

func openWriter(format, path string) (tileWriter, error) {
	switch format {
	case "mbtiles":
		return mb.NewWriter(path, mb.WithLogger(slog.Default()), mb.WithMetadata(map[string]string{"format": "png"}))
	case "xyz":
		w, err := xyz.NewWriter(path)
		if err != nil {
			return nil, err
		}
		return xyzWriter{w}, nil
	}
	return nil, fmt.Errorf("invalid output format: %q", format)
}
