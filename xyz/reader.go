package xyz

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/eak1mov/go-globetiles/tile"
)

// Reader implements tile.Reader and tile.Visitor for tiles in XYZ format.
type Reader struct {
	filePattern string
	rootDir     string
	pathRegexp  *regexp.Regexp
}

// NewReader creates a new Reader for the given file pattern (e.g. "/home/user/tiles/{z}/{x}/{y}.png").
func NewReader(filePattern string) (*Reader, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}

	regexPattern := regexp.QuoteMeta(filePattern)
	regexPattern = strings.ReplaceAll(regexPattern, regexp.QuoteMeta("{x}"), `(?P<x>\d+)`)
	regexPattern = strings.ReplaceAll(regexPattern, regexp.QuoteMeta("{y}"), `(?P<y>\d+)`)
	regexPattern = strings.ReplaceAll(regexPattern, regexp.QuoteMeta("{z}"), `(?P<z>\d+)`)
	pathRegex, err := regexp.Compile("^" + regexPattern + "$")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	path0 := FormatPattern(filePattern, tile.Address{Level: 0, X: 0, Y: 0})
	path1 := FormatPattern(filePattern, tile.Address{Level: 1, X: 1, Y: 1})
	for path0 != path1 {
		path0 = filepath.Dir(path0)
		path1 = filepath.Dir(path1)
	}
	rootDir := path0

	return &Reader{filePattern, rootDir, pathRegex}, nil
}

// ReadTile returns an empty slice for missing files and for addresses outside the globe.
func (r *Reader) ReadTile(addr tile.Address) ([]byte, error) {
	if !addr.Valid() {
		return make([]byte, 0), nil
	}
	tileData, err := os.ReadFile(FormatPattern(r.filePattern, addr))
	if os.IsNotExist(err) {
		return make([]byte, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return tileData, nil
}

// VisitTiles walks the directory tree below the pattern's root. Files that do not match
// the pattern or name an invalid address are skipped.
func (r *Reader) VisitTiles(visitor func(tile.Address, []byte) error) error {
	return filepath.WalkDir(r.rootDir, func(filePath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		matches := r.pathRegexp.FindStringSubmatch(filePath)
		if matches == nil {
			return nil
		}

		x, _ := strconv.ParseUint(matches[r.pathRegexp.SubexpIndex("x")], 10, 32)
		y, _ := strconv.ParseUint(matches[r.pathRegexp.SubexpIndex("y")], 10, 32)
		z, _ := strconv.ParseUint(matches[r.pathRegexp.SubexpIndex("z")], 10, 32)
		addr := tile.Address{Level: uint32(z), X: uint32(x), Y: uint32(y)}
		if !addr.Valid() {
			return nil
		}

		tileData, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}

		return visitor(addr, tileData)
	})
}
