// Package cache persists decoded tiles on disk so providers can skip decoding on restart.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eak1mov/go-globetiles/tile"
)

// Store is a durable decoded-tile cache keyed by source fingerprint and address.
// It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	get    *sql.Stmt
	put    *sql.Stmt
	logger *slog.Logger
}

type storeConfig struct {
	Logger *slog.Logger
}

type Option func(*storeConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *storeConfig) { c.Logger = logger }
}

// Fingerprint identifies a tile source. Entries written under one fingerprint are never
// returned for another, so changing a layer's source invalidates its cached tiles.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:16])
}

// Open opens or creates the cache database at filePath.
func Open(filePath string, opts ...Option) (*Store, error) {
	config := storeConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	var err error
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filePath))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS tiles (
			fingerprint TEXT NOT NULL,
			code INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (fingerprint, code)
		);
	`)
	if err != nil {
		return nil, err
	}

	get, err := db.Prepare("SELECT data FROM tiles WHERE fingerprint = ? AND code = ?")
	if err != nil {
		return nil, err
	}
	put, err := db.Prepare("INSERT OR REPLACE INTO tiles (fingerprint, code, data) VALUES (?, ?, ?)")
	if err != nil {
		get.Close()
		return nil, err
	}

	config.Logger.Debug("globetiles: cache opened", "path", filePath)
	return &Store{db: db, get: get, put: put, logger: config.Logger}, nil
}

func (s *Store) Close() error {
	return errors.Join(s.get.Close(), s.put.Close(), s.db.Close())
}

// Get returns the decoded tile stored for addr. ok is false when there is no entry.
// A corrupt entry is reported as an error wrapping ErrCorruptEntry.
func (s *Store) Get(fingerprint string, addr tile.Address) (d Decoded, ok bool, err error) {
	var data []byte
	if err := s.get.QueryRow(fingerprint, int64(EncodeAddress(addr))).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Decoded{}, false, nil
		}
		return Decoded{}, false, err
	}
	d, err = decodeEntry(data)
	if err != nil {
		return Decoded{}, false, fmt.Errorf("tile %v: %w", addr, err)
	}
	return d, true, nil
}

func (s *Store) Put(fingerprint string, addr tile.Address, d Decoded) error {
	data, err := encodeEntry(d)
	if err != nil {
		return err
	}
	_, err = s.put.Exec(fingerprint, int64(EncodeAddress(addr)), data)
	return err
}

// Clear removes every entry stored under fingerprint and returns how many were removed.
func (s *Store) Clear(fingerprint string) (int64, error) {
	result, err := s.db.Exec("DELETE FROM tiles WHERE fingerprint = ?", fingerprint)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.logger.Debug("globetiles: cache cleared", "fingerprint", fingerprint, "entries", n)
	return n, nil
}

func (s *Store) Count(fingerprint string) (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM tiles WHERE fingerprint = ?", fingerprint).Scan(&n)
	return n, err
}

// Visit calls visitor for every address stored under fingerprint, in tile code order.
func (s *Store) Visit(fingerprint string, visitor func(tile.Address) error) error {
	rows, err := s.db.Query("SELECT code FROM tiles WHERE fingerprint = ? ORDER BY code", fingerprint)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var code int64
		if err := rows.Scan(&code); err != nil {
			return err
		}
		if err := visitor(DecodeAddress(uint64(code))); err != nil {
			return err
		}
	}

	return rows.Err()
}
