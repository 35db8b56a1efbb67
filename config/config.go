// Package config loads globe descriptions from YAML files.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"time"

	"github.com/eak1mov/go-globetiles/layer"
	"github.com/eak1mov/go-globetiles/provider"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration wraps every validation failure.
var ErrConfiguration = errors.New("globetiles: invalid configuration")

type Config struct {
	Globe  GlobeConfig  `yaml:"globe"`
	Engine EngineConfig `yaml:"engine"`
	Layers LayersConfig `yaml:"layers"`
}

type GlobeConfig struct {
	// Radii of the ellipsoid in meters. Defaults to WGS84.
	Radii          [3]float64  `yaml:"radii"`
	LODScaleFactor float64     `yaml:"lod_scale_factor"`
	Atmosphere     bool        `yaml:"atmosphere"`
	PerformShading bool        `yaml:"perform_shading"`
	BlendLevels    *bool       `yaml:"blend_levels"`
	DefaultHeight  float64     `yaml:"default_height"`
	Debug          DebugConfig `yaml:"debug"`
}

type DebugConfig struct {
	ShowChunkEdges        bool `yaml:"show_chunk_edges"`
	ShowHeightResolution  bool `yaml:"show_height_resolution"`
	ShowHeightIntensities bool `yaml:"show_height_intensities"`
}

type EngineConfig struct {
	Workers       int     `yaml:"workers"`
	JobsPerSecond float64 `yaml:"jobs_per_second"`
	// CacheDir holds the durable tile cache. Empty disables it.
	CacheDir     string `yaml:"cache_dir"`
	TileCapacity int    `yaml:"tile_capacity"`
	// GlobalRenderingMaxLevel is the first level rendered in camera space.
	GlobalRenderingMaxLevel int    `yaml:"global_rendering_max_level"`
	Screen                  [2]int `yaml:"screen"`
}

type LayersConfig struct {
	Height  []LayerConfig `yaml:"height"`
	Color   []LayerConfig `yaml:"color"`
	Overlay []LayerConfig `yaml:"overlay"`
	Night   []LayerConfig `yaml:"night"`
	Water   []LayerConfig `yaml:"water"`
}

// Category returns the layer list of c.
func (l *LayersConfig) Category(c layer.Category) []LayerConfig {
	switch c {
	case layer.CategoryHeight:
		return l.Height
	case layer.CategoryColor:
		return l.Color
	case layer.CategoryOverlay:
		return l.Overlay
	case layer.CategoryNight:
		return l.Night
	case layer.CategoryWater:
		return l.Water
	}
	return nil
}

var categoryKeys = map[layer.Category]string{
	layer.CategoryHeight:  "height",
	layer.CategoryColor:   "color",
	layer.CategoryOverlay: "overlay",
	layer.CategoryNight:   "night",
	layer.CategoryWater:   "water",
}

type LayerConfig struct {
	ID            string           `yaml:"id"`
	Name          string           `yaml:"name"`
	Type          string           `yaml:"type"`
	Enabled       bool             `yaml:"enabled"`
	BlendMode     string           `yaml:"blend_mode"`
	PadTiles      *bool            `yaml:"pad_tiles"`
	LevelBlending *bool            `yaml:"level_blending"`
	Settings      SettingsConfig   `yaml:"settings"`
	Adjustment    AdjustmentConfig `yaml:"adjustment"`
	// Color is the "#rrggbb" or "#rrggbbaa" color of a SolidColor layer.
	Color string `yaml:"color"`

	SourceConfig `yaml:",inline"`
}

// SourceConfig holds the provider parameters of a layer or of a composite entry.
type SourceConfig struct {
	Source         string                `yaml:"source"`
	MaxLevel       uint32                `yaml:"max_level"`
	Bounds         []float64             `yaml:"bounds"`
	TileSize       int                   `yaml:"tile_size"`
	DepthTransform *DepthTransformConfig `yaml:"depth_transform"`
	Temporal       *TemporalConfig       `yaml:"temporal"`
	ByIndex        []IndexEntryConfig    `yaml:"by_index"`
	ByLevel        []LevelEntryConfig    `yaml:"by_level"`
	Fallback       *EntryConfig          `yaml:"fallback"`
}

type SettingsConfig struct {
	Opacity    *float32 `yaml:"opacity"`
	Gamma      *float32 `yaml:"gamma"`
	Multiplier *float32 `yaml:"multiplier"`
	Offset     *float32 `yaml:"offset"`
}

type AdjustmentConfig struct {
	// Type is "", "None", "ChromaKey" or "TransferFunction".
	Type               string  `yaml:"type"`
	ChromaKeyColor     string  `yaml:"chroma_key_color"`
	ChromaKeyTolerance float32 `yaml:"chroma_key_tolerance"`
	TransferFunction   string  `yaml:"transfer_function"`
}

type DepthTransformConfig struct {
	Scale  float32 `yaml:"scale"`
	Offset float32 `yaml:"offset"`
}

type TemporalConfig struct {
	Start  time.Time `yaml:"start"`
	End    time.Time `yaml:"end"`
	Step   Duration  `yaml:"step"`
	Layout string    `yaml:"layout"`
}

// EntryConfig is a nested provider of a composite layer.
type EntryConfig struct {
	Type         string `yaml:"type"`
	SourceConfig `yaml:",inline"`
}

type IndexEntryConfig struct {
	// Address is "level/x/y". Exactly one of Address and Region is set.
	Address     string    `yaml:"address"`
	Region      []float64 `yaml:"region"`
	EntryConfig `yaml:",inline"`
}

type LevelEntryConfig struct {
	UpToLevel   uint32 `yaml:"up_to_level"`
	EntryConfig `yaml:",inline"`
}

// Duration is a time.Duration written as "6h" or "30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML globe description.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated globe with a tile-index color layer and a disabled
// size-reference overlay, useful without any data on disk.
func Default() *Config {
	cfg := &Config{
		Layers: LayersConfig{
			Color:   []LayerConfig{{ID: "tile-index", Type: layer.TypeTileIndex.String(), Enabled: true}},
			Overlay: []LayerConfig{{ID: "size-reference", Type: layer.TypeSizeReference.String()}},
		},
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Validate fills in defaults and checks every layer record.
func (c *Config) Validate() error {
	g := &c.Globe
	if g.Radii == [3]float64{} {
		g.Radii = [3]float64{6378137, 6378137, 6356752.314245}
	}
	for i, r := range g.Radii {
		if r <= 0 {
			return invalid("globe.radii[%d] must be positive", i)
		}
	}
	if g.LODScaleFactor == 0 {
		g.LODScaleFactor = 10
	}
	if g.LODScaleFactor < 0 {
		return invalid("globe.lod_scale_factor cannot be negative")
	}
	if g.BlendLevels == nil {
		g.BlendLevels = ptr(true)
	}

	e := &c.Engine
	if e.Workers < 0 {
		return invalid("engine.workers cannot be negative")
	}
	if e.JobsPerSecond < 0 {
		return invalid("engine.jobs_per_second cannot be negative")
	}
	if e.TileCapacity < 0 {
		return invalid("engine.tile_capacity cannot be negative")
	}
	if e.GlobalRenderingMaxLevel == 0 {
		e.GlobalRenderingMaxLevel = 10
	}
	if e.GlobalRenderingMaxLevel < 0 || e.GlobalRenderingMaxLevel > int(tile.MaxLevel)+1 {
		return invalid("engine.global_rendering_max_level must be in [1, %d]", tile.MaxLevel+1)
	}
	if e.Screen == [2]int{} {
		e.Screen = [2]int{1920, 1080}
	}
	if e.Screen[0] <= 0 || e.Screen[1] <= 0 {
		return invalid("engine.screen dimensions must be positive")
	}

	ids := make(map[string]string)
	for _, category := range layer.Categories {
		key := categoryKeys[category]
		layers := c.Layers.Category(category)
		for i := range layers {
			path := fmt.Sprintf("layers.%s[%d]", key, i)
			if err := layers[i].validate(path); err != nil {
				return err
			}
			if prev, ok := ids[layers[i].ID]; ok {
				return invalid("%s.id %q already used by %s", path, layers[i].ID, prev)
			}
			ids[layers[i].ID] = path
		}
	}
	return nil
}

func (l *LayerConfig) validate(path string) error {
	if l.ID == "" {
		return invalid("%s.id must be set", path)
	}
	typ, err := layer.ParseType(l.Type)
	if err != nil {
		return fmt.Errorf("%w: %s.type: %w", ErrConfiguration, path, err)
	}
	l.Type = typ.String()
	if _, err := layer.ParseBlendMode(l.BlendMode); err != nil {
		return fmt.Errorf("%w: %s.blend_mode: %w", ErrConfiguration, path, err)
	}
	if l.BlendMode == "" {
		l.BlendMode = layer.BlendNormal.String()
	}
	if l.PadTiles == nil {
		l.PadTiles = ptr(true)
	}
	if l.LevelBlending == nil {
		l.LevelBlending = ptr(true)
	}

	s := &l.Settings
	defaults := layer.DefaultSettings()
	for _, f := range []struct {
		v   **float32
		def float32
	}{{&s.Opacity, defaults.Opacity}, {&s.Gamma, defaults.Gamma}, {&s.Multiplier, defaults.Multiplier}, {&s.Offset, defaults.Offset}} {
		if *f.v == nil {
			*f.v = ptr(f.def)
		}
	}
	if *s.Opacity < 0 || *s.Opacity > 1 {
		return invalid("%s.settings.opacity must be in [0, 1]", path)
	}
	if *s.Gamma <= 0 {
		return invalid("%s.settings.gamma must be positive", path)
	}

	switch l.Adjustment.Type {
	case "", "None", "TransferFunction":
	case "ChromaKey":
		if _, err := parseHexColor(l.Adjustment.ChromaKeyColor); err != nil {
			return invalid("%s.adjustment.chroma_key_color must be a hex RGB value", path)
		}
	default:
		return invalid("%s.adjustment.type %q is not one of None, ChromaKey, TransferFunction", path, l.Adjustment.Type)
	}

	if typ == layer.TypeSolidColor {
		if _, err := parseHexColor(l.Color); err != nil {
			return invalid("%s.color must be a hex RGB or RGBA value", path)
		}
		return nil
	}
	return l.SourceConfig.validate(path, typ)
}

func (s *SourceConfig) validate(path string, typ layer.Type) error {
	if s.MaxLevel > tile.MaxLevel {
		return invalid("%s.max_level cannot exceed %d", path, tile.MaxLevel)
	}
	if s.Bounds != nil {
		if _, err := parseBound(s.Bounds); err != nil {
			return invalid("%s.bounds: %v", path, err)
		}
	}
	if s.TileSize < 0 {
		return invalid("%s.tile_size cannot be negative", path)
	}

	switch typ {
	case layer.TypeDefaultTile, layer.TypeSingleImage:
		if s.Source == "" {
			return invalid("%s.source must be set", path)
		}
	case layer.TypeTemporal:
		if s.Source == "" {
			return invalid("%s.source must be set", path)
		}
		t := s.Temporal
		if t == nil {
			return invalid("%s.temporal must be set", path)
		}
		if t.Step <= 0 {
			return invalid("%s.temporal.step must be positive", path)
		}
		if t.End.Before(t.Start) {
			return invalid("%s.temporal.end cannot precede start", path)
		}
	case layer.TypeByIndex:
		if len(s.ByIndex) == 0 && s.Fallback == nil {
			return invalid("%s.by_index cannot be empty", path)
		}
		for i := range s.ByIndex {
			entry := &s.ByIndex[i]
			entryPath := fmt.Sprintf("%s.by_index[%d]", path, i)
			switch {
			case entry.Address != "" && entry.Region != nil:
				return invalid("%s sets both address and region", entryPath)
			case entry.Address != "":
				if _, err := tile.ParseAddress(entry.Address); err != nil {
					return fmt.Errorf("%w: %s.address: %w", ErrConfiguration, entryPath, err)
				}
			case entry.Region != nil:
				if _, err := parseBound(entry.Region); err != nil {
					return invalid("%s.region: %v", entryPath, err)
				}
			default:
				return invalid("%s needs an address or a region", entryPath)
			}
			if err := entry.EntryConfig.validate(entryPath); err != nil {
				return err
			}
		}
		if s.Fallback != nil {
			if err := s.Fallback.validate(path + ".fallback"); err != nil {
				return err
			}
		}
	case layer.TypeByLevel:
		if len(s.ByLevel) == 0 {
			return invalid("%s.by_level cannot be empty", path)
		}
		seen := make(map[uint32]bool)
		for i := range s.ByLevel {
			entry := &s.ByLevel[i]
			entryPath := fmt.Sprintf("%s.by_level[%d]", path, i)
			if seen[entry.UpToLevel] {
				return invalid("%s.up_to_level %d is used twice", entryPath, entry.UpToLevel)
			}
			seen[entry.UpToLevel] = true
			if err := entry.EntryConfig.validate(entryPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *EntryConfig) validate(path string) error {
	typ, err := layer.ParseType(e.Type)
	if err != nil {
		return fmt.Errorf("%w: %s.type: %w", ErrConfiguration, path, err)
	}
	if typ == layer.TypeSolidColor {
		return invalid("%s.type cannot be %v inside a composite", path, typ)
	}
	e.Type = typ.String()
	return e.SourceConfig.validate(path, typ)
}

// Record converts a validated layer into the record the layer package builds from.
func (l *LayerConfig) Record() (layer.Record, error) {
	blend, err := layer.ParseBlendMode(l.BlendMode)
	if err != nil {
		return layer.Record{}, err
	}
	rec := layer.Record{
		ID:            l.ID,
		Name:          l.Name,
		Type:          l.Type,
		Enabled:       l.Enabled,
		BlendMode:     blend,
		PadTiles:      deref(l.PadTiles, true),
		LevelBlending: deref(l.LevelBlending, true),
		Settings: layer.Settings{
			Opacity:    deref(l.Settings.Opacity, 1),
			Gamma:      deref(l.Settings.Gamma, 1),
			Multiplier: deref(l.Settings.Multiplier, 1),
			Offset:     deref(l.Settings.Offset, 0),
		},
	}
	if rec.Adjustment, err = l.Adjustment.adjustment(); err != nil {
		return layer.Record{}, err
	}
	if l.Type == layer.TypeSolidColor.String() {
		if rec.Color, err = parseHexColor(l.Color); err != nil {
			return layer.Record{}, err
		}
		return rec, nil
	}
	if rec.Provider, err = l.SourceConfig.params(l.Type); err != nil {
		return layer.Record{}, err
	}
	return rec, nil
}

func (a AdjustmentConfig) adjustment() (layer.Adjustment, error) {
	switch a.Type {
	case "ChromaKey":
		c, err := parseHexColor(a.ChromaKeyColor)
		if err != nil {
			return layer.Adjustment{}, err
		}
		return layer.Adjustment{
			Kind:               layer.AdjustmentChromaKey,
			ChromaKeyColor:     mgl32.Vec3{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255},
			ChromaKeyTolerance: a.ChromaKeyTolerance,
		}, nil
	case "TransferFunction":
		return layer.Adjustment{Kind: layer.AdjustmentTransferFunction, TransferFunction: a.TransferFunction}, nil
	}
	return layer.Adjustment{}, nil
}

// params converts provider parameters. Name, Height and PadTiles are filled in by the
// layer package.
func (s SourceConfig) params(typeName string) (provider.Params, error) {
	typ, err := layer.ParseType(typeName)
	if err != nil {
		return provider.Params{}, err
	}
	kind, ok := typ.ProviderKind()
	if !ok {
		return provider.Params{}, fmt.Errorf("%w: %v has no provider", ErrConfiguration, typ)
	}
	p := provider.Params{
		Kind:     kind,
		Source:   s.Source,
		MaxLevel: s.MaxLevel,
		TileSize: s.TileSize,
	}
	if s.Bounds != nil {
		b, err := parseBound(s.Bounds)
		if err != nil {
			return provider.Params{}, err
		}
		p.Bounds = &b
	}
	if s.DepthTransform != nil {
		p.DepthTransform = tile.DepthTransform{Scale: s.DepthTransform.Scale, Offset: s.DepthTransform.Offset}
	}
	if t := s.Temporal; t != nil {
		p.Temporal = provider.TemporalParams{Start: t.Start, End: t.End, Step: time.Duration(t.Step), Layout: t.Layout}
	}
	for _, entry := range s.ByIndex {
		child, err := entry.SourceConfig.params(entry.Type)
		if err != nil {
			return provider.Params{}, err
		}
		ie := provider.IndexEntry{Params: child}
		if entry.Address != "" {
			addr, err := tile.ParseAddress(entry.Address)
			if err != nil {
				return provider.Params{}, err
			}
			ie.Address = &addr
		} else {
			b, err := parseBound(entry.Region)
			if err != nil {
				return provider.Params{}, err
			}
			ie.Bounds = &b
		}
		p.ByIndex = append(p.ByIndex, ie)
	}
	for _, entry := range s.ByLevel {
		child, err := entry.SourceConfig.params(entry.Type)
		if err != nil {
			return provider.Params{}, err
		}
		p.ByLevel = append(p.ByLevel, provider.LevelEntry{MaxLevel: entry.UpToLevel, Params: child})
	}
	if s.Fallback != nil {
		child, err := s.Fallback.SourceConfig.params(s.Fallback.Type)
		if err != nil {
			return provider.Params{}, err
		}
		p.Fallback = &child
	}
	return p, nil
}

// Env returns the provider environment described by the engine section. The uploader,
// store and logger are supplied by the caller.
func (e EngineConfig) Env(env provider.Env) provider.Env {
	env.Workers = e.Workers
	env.JobsPerSecond = e.JobsPerSecond
	env.Capacity = e.TileCapacity
	return env
}

// RadiiVec returns the ellipsoid radii as a vector.
func (g GlobeConfig) RadiiVec() mgl64.Vec3 {
	return mgl64.Vec3{g.Radii[0], g.Radii[1], g.Radii[2]}
}

// parseBound reads [minLon, minLat, maxLon, maxLat] in degrees.
func parseBound(v []float64) (orb.Bound, error) {
	if len(v) != 4 {
		return orb.Bound{}, fmt.Errorf("want [min_lon, min_lat, max_lon, max_lat], got %d values", len(v))
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if b.Min.Lon() > b.Max.Lon() || b.Min.Lat() > b.Max.Lat() {
		return orb.Bound{}, fmt.Errorf("min exceeds max in %v", v)
	}
	if b.Min.Lon() < -180 || b.Max.Lon() > 180 || b.Min.Lat() < -90 || b.Max.Lat() > 90 {
		return orb.Bound{}, fmt.Errorf("%v is outside [-180, 180] x [-90, 90]", v)
	}
	return b, nil
}

func parseHexColor(s string) (color.NRGBA, error) {
	if (len(s) != 7 && len(s) != 9) || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("bad color %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("bad color %q", s)
	}
	if len(s) == 7 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
