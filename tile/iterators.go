package tile

import (
	"errors"
	"iter"
)

var errVisitCancelled = errors.New("visit cancelled")

// IterTiles returns an iterator over all tiles in the tileset.
// It yields addresses and their data. Iteration may panic on unrecoverable errors.
func IterTiles(r Visitor) iter.Seq2[Address, []byte] {
	return func(yield func(Address, []byte) bool) {
		err := r.VisitTiles(func(addr Address, tileData []byte) error {
			if !yield(addr, tileData) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}

// Ancestors yields the parent of a, then its grandparent, up to and including the root.
func Ancestors(a Address) iter.Seq[Address] {
	return func(yield func(Address) bool) {
		for {
			parent, ok := a.Parent()
			if !ok || !yield(parent) {
				return
			}
			a = parent
		}
	}
}

// Levels yields every address of levels minLevel..maxLevel inclusive, row by row.
func Levels(minLevel, maxLevel uint32) iter.Seq[Address] {
	return func(yield func(Address) bool) {
		for level := minLevel; level <= maxLevel; level++ {
			for y := range uint32(1) << level {
				for x := range uint32(2) << level {
					if !yield(Address{Level: level, X: x, Y: y}) {
						return
					}
				}
			}
		}
	}
}

// CountLevels returns the number of addresses Levels yields.
func CountLevels(minLevel, maxLevel uint32) int {
	n := 0
	for level := minLevel; level <= maxLevel; level++ {
		n += 2 << (2 * level)
	}
	return n
}
