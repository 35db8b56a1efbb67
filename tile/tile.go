// Package tile provides the quadtree tile address, tile snapshots and tile source interfaces.
package tile

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxLevel is the deepest addressable level.
const MaxLevel = 30

// Address identifies one node of the globe quadtree.
//
// Level 0 covers the globe with two tiles side by side (west and east hemisphere), so X is in
// [0, 2^(Level+1)) and Y is in [0, 2^Level). Y grows southward.
type Address struct {
	Level uint32
	X     uint32
	Y     uint32
}

func (a Address) Valid() bool {
	return a.Level <= MaxLevel && a.X < (2<<a.Level) && a.Y < (1<<a.Level)
}

func (a Address) IsRoot() bool {
	return a.Level == 0
}

// Parent returns the enclosing address one level up. ok is false for root addresses.
func (a Address) Parent() (parent Address, ok bool) {
	if a.Level == 0 {
		return a, false
	}
	return Address{Level: a.Level - 1, X: a.X / 2, Y: a.Y / 2}, true
}

// Child returns the child in quadrant (dx, dy), dx and dy being 0 or 1.
func (a Address) Child(dx, dy uint32) Address {
	return Address{Level: a.Level + 1, X: 2*a.X + dx, Y: 2*a.Y + dy}
}

// Children returns the four children in north-west, north-east, south-west, south-east order.
func (a Address) Children() [4]Address {
	return [4]Address{a.Child(0, 0), a.Child(1, 0), a.Child(0, 1), a.Child(1, 1)}
}

// IsAncestorOf reports whether a strictly contains b.
func (a Address) IsAncestorOf(b Address) bool {
	if b.Level <= a.Level {
		return false
	}
	shift := b.Level - a.Level
	return b.X>>shift == a.X && b.Y>>shift == a.Y
}

// PositionRelativeParent returns the UV offset of a inside its parent tile.
// V grows northward while Y grows southward, hence the flip.
func (a Address) PositionRelativeParent() mgl32.Vec2 {
	var u, v float32
	if a.X%2 == 1 {
		u = 0.5
	}
	if a.Y%2 == 0 {
		v = 0.5
	}
	return mgl32.Vec2{u, v}
}

// Compare orders addresses by level, then row, then column.
func Compare(a, b Address) int {
	return cmp.Or(cmp.Compare(a.Level, b.Level), cmp.Compare(a.Y, b.Y), cmp.Compare(a.X, b.X))
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Level, a.X, a.Y)
}

var ErrInvalidAddress = errors.New("globetiles: invalid tile address")

// ParseAddress parses the "level/x/y" form produced by String.
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	var values [3]uint32
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		values[i] = uint32(v)
	}
	a := Address{Level: values[0], X: values[1], Y: values[2]}
	if !a.Valid() {
		return Address{}, fmt.Errorf("%w: %q out of range", ErrInvalidAddress, s)
	}
	return a, nil
}

// Status tells whether a Tile is usable for rendering or why it is not.
type Status int

const (
	// StatusUnavailable means the data is not in memory (yet). Texture and Metadata are absent.
	StatusUnavailable Status = iota
	// StatusOutOfRange means the address is outside the provider's domain. Permanent.
	StatusOutOfRange
	// StatusIOError means producing the tile failed. Permanent until the provider is reset.
	StatusIOError
	// StatusOK means the texture is uploaded and ready. Metadata may be present.
	StatusOK
)

func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "Unavailable"
	case StatusOutOfRange:
		return "OutOfRange"
	case StatusIOError:
		return "IOError"
	case StatusOK:
		return "OK"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Metadata holds statistics decoded together with the tile pixels. It is never mutated
// after construction so it can be shared between snapshots.
type Metadata struct {
	MinValue       float32
	MaxValue       float32
	HasMissingData bool
}

// Tile is a snapshot of one cached raster cell. Tiles are values: a copy taken during a
// frame stays intact even if the provider evicts the tile afterwards.
type Tile struct {
	Status   Status
	Texture  gpu.Texture
	Metadata *Metadata
}

var (
	Unavailable = Tile{Status: StatusUnavailable}
	OutOfRange  = Tile{Status: StatusOutOfRange}
	IOError     = Tile{Status: StatusIOError}
)

func (t Tile) OK() bool {
	return t.Status == StatusOK
}

// UVTransform maps a chunk's local [0,1]² UV into the UV space of the tile bound for it.
type UVTransform struct {
	Offset mgl32.Vec2
	Scale  mgl32.Vec2
}

func IdentityUV() UVTransform {
	return UVTransform{Offset: mgl32.Vec2{0, 0}, Scale: mgl32.Vec2{1, 1}}
}

// Ascend rewrites t so that it maps into the parent of a instead of a.
func (t UVTransform) Ascend(a Address) UVTransform {
	return UVTransform{
		Offset: t.Offset.Mul(0.5).Add(a.PositionRelativeParent()),
		Scale:  t.Scale.Mul(0.5),
	}
}

// Apply maps a local UV through the transform.
func (t UVTransform) Apply(uv mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{t.Offset[0] + t.Scale[0]*uv[0], t.Offset[1] + t.Scale[1]*uv[1]}
}

type ChunkTile struct {
	Tile Tile
	UV   UVTransform
}

// Pile is an address's tile followed by successively higher ancestor tiles.
type Pile []ChunkTile

// DepthTransform decodes a normalized height sample into physical units.
type DepthTransform struct {
	Scale  float32
	Offset float32
}

func IdentityDepth() DepthTransform {
	return DepthTransform{Scale: 1, Offset: 0}
}

// Writer defines an interface for writing encoded tiles to a tileset.
type Writer interface {
	// WriteTile writes a single tile to the tileset.
	WriteTile(addr Address, tileData []byte) error

	// Finalize completes the writing process: flushes buffers, writes indices.
	// It must be called before closing the Writer.
	Finalize() error
}

// Reader is the contract every tile source satisfies.
type Reader interface {
	// ReadTile reads a single encoded tile from the tileset.
	// If the tile does not exist, it returns an empty slice with no error.
	ReadTile(addr Address) ([]byte, error)
}

type Visitor interface {
	// VisitTiles visits all tiles in the tileset, calling the visitor for each.
	// Order of tiles, upfront cpu and memory consumption are implementation-defined.
	VisitTiles(visitor func(Address, []byte) error) error
}
