// Package xyz reads and writes globe tiles stored as individual files, with paths like
// "/z/x/y.ext". Level 0 holds two files, 0/0/0 and 0/1/0.
package xyz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/eak1mov/go-globetiles/tile"
)

var ErrInvalidPattern = errors.New("globetiles: invalid file pattern")

var placeholders = []string{"{x}", "{y}", "{z}"}

func validatePattern(pattern string) error {
	for _, p := range placeholders {
		if !strings.Contains(pattern, p) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	return nil
}

// FormatPattern substitutes the address into pattern.
func FormatPattern(pattern string, addr tile.Address) string {
	return strings.NewReplacer(
		"{x}", strconv.FormatUint(uint64(addr.X), 10),
		"{y}", strconv.FormatUint(uint64(addr.Y), 10),
		"{z}", strconv.FormatUint(uint64(addr.Level), 10),
	).Replace(pattern)
}
