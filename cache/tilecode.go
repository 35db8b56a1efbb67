package cache

import (
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/google/hilbert"
)

// levelOffset returns the number of addresses on levels above level: two root tiles,
// each level four times the previous one.
func levelOffset(level uint32) uint64 {
	return 2 * ((uint64(1)<<(2*level) - 1) / 3)
}

// EncodeAddress maps an address to a dense integer code. Within a level, codes follow a
// Hilbert curve over each hemisphere so neighbouring tiles get nearby codes.
func EncodeAddress(addr tile.Address) uint64 {
	side := uint32(1) << addr.Level
	half := addr.X / side
	h, _ := hilbert.NewHilbert(int(side))
	d, _ := h.MapInverse(int(addr.X%side), int(addr.Y))

	return levelOffset(addr.Level) + uint64(half)*uint64(side)*uint64(side) + uint64(d)
}

func DecodeAddress(code uint64) tile.Address {
	level := uint32(0)
	for levelOffset(level+1) <= code {
		level++
	}
	side := uint64(1) << level
	rem := code - levelOffset(level)
	half := rem / (side * side)

	h, _ := hilbert.NewHilbert(int(side))
	x, y, _ := h.Map(int(rem % (side * side)))

	return tile.Address{Level: level, X: uint32(half*side) + uint32(x), Y: uint32(y)}
}
