package mb

import (
	"maps"
	"strconv"

	"github.com/eak1mov/go-globetiles/tile"
)

const (
	createSchema = `
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE TABLE tiles (
			zoom_level INTEGER,
			tile_column INTEGER,
			tile_row INTEGER,
			tile_data BLOB
		);
	`
	createIndex    = "CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)"
	insertMetadata = "INSERT INTO metadata (name, value) VALUES (?, ?)"
	insertTile     = "INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)"
	selectMetadata = "SELECT name, value FROM metadata"
	selectTile     = "SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?"
	selectTiles    = "SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles"
	selectLevels   = "SELECT MIN(zoom_level), MAX(zoom_level) FROM tiles"
)

// SchemeKey is the metadata entry that marks a 2:1 geodetic globe pyramid, as opposed to the
// square web-mercator pyramid of ordinary MBTiles archives.
const (
	SchemeKey      = "globetiles"
	SchemeGeodetic = "geodetic"
)

// key returns the stored (zoom_level, tile_column, tile_row) of addr. Rows are bottom-up.
func key(addr tile.Address) (level, column, row uint32) {
	return addr.Level, addr.X, flipRow(addr.Level, addr.Y)
}

// address is the inverse of key. ok is false for rows that are not on the globe.
func address(level, column, row uint32) (addr tile.Address, ok bool) {
	if level > tile.MaxLevel || row >= 1<<level {
		return tile.Address{}, false
	}
	addr = tile.Address{Level: level, X: column, Y: flipRow(level, row)}
	return addr, addr.Valid()
}

// flipRow converts between top-down and bottom-up row numbering. It is its own inverse.
func flipRow(level, row uint32) uint32 {
	return (1 << level) - 1 - row
}

// globeMetadata merges user entries with the entries describing a globe archive holding
// levels minLevel..maxLevel. The row scheme and the pyramid marker cannot be overridden.
func globeMetadata(user map[string]string, minLevel, maxLevel uint32, empty bool) map[string]string {
	metadata := map[string]string{
		"bounds": "-180,-90,180,90",
		"center": "0,0,0",
	}
	if !empty {
		metadata["minzoom"] = strconv.FormatUint(uint64(minLevel), 10)
		metadata["maxzoom"] = strconv.FormatUint(uint64(maxLevel), 10)
	}
	maps.Copy(metadata, user)
	metadata["scheme"] = "tms"
	metadata[SchemeKey] = SchemeGeodetic
	return metadata
}
