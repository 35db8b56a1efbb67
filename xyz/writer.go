package xyz

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eak1mov/go-globetiles/tile"
)

// Writer implements tile.Writer interface for tiles in XYZ format.
type Writer struct {
	filePattern string
}

// NewWriter creates a new Writer for the given file pattern (e.g. "/home/user/tiles/{z}/{x}/{y}.png").
func NewWriter(filePattern string) (*Writer, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	return &Writer{filePattern}, nil
}

func (w *Writer) WriteTile(addr tile.Address, tileData []byte) error {
	if !addr.Valid() {
		return fmt.Errorf("invalid tile address %v", addr)
	}
	filePath := FormatPattern(w.filePattern, addr)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}

	return os.WriteFile(filePath, tileData, 0644)
}

func (w *Writer) Finalize() error {
	return nil
}
