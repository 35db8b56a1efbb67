package mb

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eak1mov/go-globetiles/tile"
)

// Writer implements tile.Writer interface for MBTiles format.
//
// Metadata is written by Finalize, together with the level range of the written tiles and
// the SchemeKey entry.
type Writer struct {
	db       *sql.DB
	stmt     *sql.Stmt
	logger   *slog.Logger
	metadata map[string]string

	written            int
	minLevel, maxLevel uint32
}

type writerConfig struct {
	Metadata map[string]string
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

func WithMetadata(metadata map[string]string) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates the tables of a new MBTiles file at filePath.
func NewWriter(filePath string, opts ...WriterOption) (*Writer, error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createSchema); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	stmt, err := db.Prepare(insertTile)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return &Writer{db: db, stmt: stmt, logger: config.Logger, metadata: config.Metadata}, nil
}

func (w *Writer) Close() error {
	return errors.Join(w.stmt.Close(), w.db.Close())
}

func (w *Writer) WriteTile(addr tile.Address, tileData []byte) error {
	if !addr.Valid() {
		return fmt.Errorf("invalid tile address %v", addr)
	}
	level, column, row := key(addr)
	if _, err := w.stmt.Exec(level, column, row, tileData); err != nil {
		return err
	}
	if w.written == 0 {
		w.minLevel, w.maxLevel = level, level
	}
	w.minLevel, w.maxLevel = min(w.minLevel, level), max(w.maxLevel, level)
	w.written++
	return nil
}

// Finalize writes the metadata and indexes the tiles table.
func (w *Writer) Finalize() error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	for name, value := range globeMetadata(w.metadata, w.minLevel, w.maxLevel, w.written == 0) {
		if _, err := tx.Exec(insertMetadata, name, value); err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	w.logger.Debug("globetiles: indexing tiles", "count", w.written, "minLevel", w.minLevel, "maxLevel", w.maxLevel)
	_, err = w.db.Exec(createIndex)
	return err
}
