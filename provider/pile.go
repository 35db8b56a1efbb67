package provider

import "github.com/eak1mov/go-globetiles/tile"

// chunkTile returns the tile for slot `parents` of addr's pile: the nearest OK tile at or
// above the parents-th ancestor, together with the UV transform into it.
func chunkTile(p Provider, addr tile.Address, parents int) tile.ChunkTile {
	uv := tile.IdentityUV()
	ascend := func() bool {
		parent, ok := addr.Parent()
		if !ok {
			return false
		}
		uv = uv.Ascend(addr)
		addr = parent
		return true
	}

	for parents > 0 && ascend() {
		parents--
	}
	for addr.Level > p.MaxLevel() {
		ascend()
	}
	for {
		if t := p.TileAt(addr); t.OK() {
			return tile.ChunkTile{Tile: t, UV: uv}
		}
		if !ascend() {
			return tile.ChunkTile{Tile: tile.Unavailable, UV: tile.IdentityUV()}
		}
	}
}

// ChunkTilePile resolves size pile slots for addr. Slot i holds the nearest OK tile at or
// above addr's i-th ancestor. A slot with no OK tile repeats the slot below it; if slot 0
// has none it is Unavailable with the identity transform, and callers bind the provider's
// DefaultTile instead.
func ChunkTilePile(p Provider, addr tile.Address, size int) tile.Pile {
	pile := make(tile.Pile, size)
	for i := range pile {
		pile[i] = chunkTile(p, addr, i)
		if !pile[i].Tile.OK() && i > 0 {
			pile[i] = pile[i-1]
		}
	}
	return pile
}
