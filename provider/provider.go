// Package provider produces and caches layer tiles.
//
// Every Provider is driven from the rendering goroutine: TileAt never blocks and never
// waits for I/O, Update is called once per frame and is the only place where finished work
// is uploaded to the GPU and evicted textures are released. Decoding runs on a worker pool.
package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eak1mov/go-globetiles/cache"
	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/paulmach/orb"
)

// ErrNoSource is returned when a tile-backed provider is built without a source.
var ErrNoSource = errors.New("globetiles: provider has no source")

// Provider is the contract shared by every tile provider variant.
type Provider interface {
	// TileAt returns a snapshot of the tile at addr and schedules its production when it
	// is neither cached nor in flight.
	TileAt(addr tile.Address) tile.Tile

	// TileStatus reports the status TileAt would return, without scheduling anything.
	TileStatus(addr tile.Address) tile.Status

	DepthTransform() tile.DepthTransform

	// Reset drops every cached tile, forgets failures and ignores the results of jobs
	// still in flight. Textures are released at the next Update.
	Reset()

	// Update advances time-dependent state and installs finished tiles.
	Update()

	// MaxLevel is the deepest level the provider has data for.
	MaxLevel() uint32

	// DefaultTile is bound in place of tiles that are not OK.
	DefaultTile() tile.Tile

	Close() error
}

// Kind selects the provider variant built by New.
type Kind int

const (
	KindTiled Kind = iota
	KindSingleImage
	KindTemporal
	KindIndexColored
	KindLevelColored
	KindByIndex
	KindByLevel
)

func (k Kind) String() string {
	switch k {
	case KindTiled:
		return "Tiled"
	case KindSingleImage:
		return "SingleImage"
	case KindTemporal:
		return "Temporal"
	case KindIndexColored:
		return "IndexColored"
	case KindLevelColored:
		return "LevelColored"
	case KindByIndex:
		return "ByIndex"
	case KindByLevel:
		return "ByLevel"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Params is the tagged record a provider is built from. Only the fields of the selected
// Kind are read.
type Params struct {
	Kind Kind
	Name string

	// Source is an MBTiles file, an XYZ file pattern or, for SingleImage, an image file.
	// Temporal sources may contain a {time} placeholder.
	Source string

	// Height decodes tiles into single-channel float heights instead of colors.
	Height   bool
	PadTiles bool

	// MaxLevel limits the levels requested from the source. Zero means tile.MaxLevel.
	MaxLevel uint32

	// Bounds limits the provider to patches intersecting it (lon/lat degrees).
	Bounds *orb.Bound

	DepthTransform tile.DepthTransform

	// TileSize is the edge length of procedurally painted tiles.
	TileSize int

	Temporal TemporalParams
	ByIndex  []IndexEntry
	ByLevel  []LevelEntry
	// Fallback serves addresses no ByIndex entry matches.
	Fallback *Params
}

type TemporalParams struct {
	Start time.Time
	End   time.Time
	Step  time.Duration
	// Layout is the Go time layout substituted for {time}. Defaults to time.DateOnly.
	Layout string
}

// IndexEntry routes an address subtree or a lon/lat region to its own provider.
// Exactly one of Address and Bounds is set.
type IndexEntry struct {
	Address *tile.Address
	Bounds  *orb.Bound
	Params  Params
}

// LevelEntry serves levels up to and including MaxLevel not served by an earlier entry.
type LevelEntry struct {
	MaxLevel uint32
	Params   Params
}

// Env carries the collaborators shared by all providers of a globe.
type Env struct {
	Uploader gpu.Uploader
	// Store is optional. Without it nothing is persisted.
	Store  *cache.Store
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time

	Workers       int
	JobsPerSecond float64
	// Capacity is the number of tiles each provider keeps in memory.
	Capacity int
}

const (
	defaultCapacity = 512
	defaultTileSize = 64
)

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = slog.New(slog.DiscardHandler)
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Capacity <= 0 {
		e.Capacity = defaultCapacity
	}
	return e
}

// New builds the provider variant selected by params.Kind.
func New(params Params, env Env) (Provider, error) {
	env = env.withDefaults()
	if params.DepthTransform == (tile.DepthTransform{}) {
		params.DepthTransform = tile.IdentityDepth()
	}

	switch params.Kind {
	case KindTiled:
		return NewTiled(params, env)
	case KindSingleImage:
		return NewSingleImage(params, env)
	case KindTemporal:
		return NewTemporal(params, env)
	case KindIndexColored:
		return NewIndexColored(params, env), nil
	case KindLevelColored:
		return NewLevelColored(params, env), nil
	case KindByIndex:
		return NewByIndex(params, env)
	case KindByLevel:
		return NewByLevel(params, env)
	}
	return nil, fmt.Errorf("unknown provider kind %v", params.Kind)
}

func maxLevelOf(params Params) uint32 {
	if params.MaxLevel == 0 || params.MaxLevel > tile.MaxLevel {
		return tile.MaxLevel
	}
	return params.MaxLevel
}
