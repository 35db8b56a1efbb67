// Package mb reads and writes globe tiles and metadata in MBTiles archives.
//
// Rows are stored bottom-up (TMS); a level has 2^level rows and twice as many columns.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.
package mb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/eak1mov/go-globetiles/tile"
)

// Reader implements tile.Reader interface for MBTiles format.
type Reader struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// NewReader opens the MBTiles file at filePath read-only.
//
// The returned Reader must be closed after use to release database resources.
func NewReader(filePath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}
	stmt, err := db.Prepare(selectTile)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return &Reader{db: db, stmt: stmt}, nil
}

func (r *Reader) Close() error {
	return errors.Join(r.stmt.Close(), r.db.Close())
}

func (r *Reader) ReadMetadata() (map[string]string, error) {
	rows, err := r.db.Query(selectMetadata)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}
	return metadata, rows.Err()
}

// Levels returns the range of levels present in the tiles table. ok is false for an empty
// archive.
func (r *Reader) Levels() (minLevel, maxLevel uint32, ok bool, err error) {
	var lo, hi sql.NullInt64
	if err := r.db.QueryRow(selectLevels).Scan(&lo, &hi); err != nil {
		return 0, 0, false, err
	}
	if !lo.Valid || !hi.Valid {
		return 0, 0, false, nil
	}
	return uint32(lo.Int64), uint32(hi.Int64), true, nil
}

// ReadTile returns an empty slice for missing tiles and for addresses outside the globe.
func (r *Reader) ReadTile(addr tile.Address) ([]byte, error) {
	if !addr.Valid() {
		return make([]byte, 0), nil
	}

	var tileData []byte
	level, column, row := key(addr)
	if err := r.stmt.QueryRow(level, column, row).Scan(&tileData); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return make([]byte, 0), nil
		}
		return nil, err
	}
	return tileData, nil
}

// VisitTiles calls visitor for every stored tile. Rows that are not on the globe are skipped.
func (r *Reader) VisitTiles(visitor func(tile.Address, []byte) error) error {
	rows, err := r.db.Query(selectTiles)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var level, column, row uint32
		var tileData []byte
		if err := rows.Scan(&level, &column, &row, &tileData); err != nil {
			return err
		}
		addr, ok := address(level, column, row)
		if !ok {
			continue
		}
		if err := visitor(addr, tileData); err != nil {
			return err
		}
	}
	return rows.Err()
}
