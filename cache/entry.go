package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/gogpu/gputypes"
)

var ErrCorruptEntry = errors.New("globetiles: corrupt cache entry")

// Decoded is a tile after decoding and pixel processing, ready for upload.
type Decoded struct {
	Format   gputypes.TextureFormat
	Width    int
	Height   int
	Pixels   []byte
	Metadata *tile.Metadata
}

// entryHeader precedes the pixel data of a serialized entry.
type entryHeader struct {
	Format         uint32
	Width          uint32
	Height         uint32
	HasMetadata    uint8
	HasMissingData uint8
	MinValue       float32
	MaxValue       float32
}

var formatCodes = []gputypes.TextureFormat{
	gputypes.TextureFormatUndefined,
	gputypes.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatR8Unorm,
	gputypes.TextureFormatR32Float,
}

func formatCode(f gputypes.TextureFormat) uint32 {
	for i, known := range formatCodes {
		if known == f {
			return uint32(i)
		}
	}
	return 0
}

func codeFormat(code uint32) (gputypes.TextureFormat, bool) {
	if code == 0 || int(code) >= len(formatCodes) {
		return gputypes.TextureFormatUndefined, false
	}
	return formatCodes[code], true
}

func encodeEntry(d Decoded) ([]byte, error) {
	header := entryHeader{
		Format: formatCode(d.Format),
		Width:  uint32(d.Width),
		Height: uint32(d.Height),
	}
	if d.Metadata != nil {
		header.HasMetadata = 1
		header.MinValue = d.Metadata.MinValue
		header.MaxValue = d.Metadata.MaxValue
		if d.Metadata.HasMissingData {
			header.HasMissingData = 1
		}
	}

	var buffer bytes.Buffer
	writer, _ := gzip.NewWriterLevel(&buffer, gzip.BestSpeed)
	if err := binary.Write(writer, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if _, err := writer.Write(d.Pixels); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	return buffer.Bytes(), nil
}

func decodeEntry(data []byte) (Decoded, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %w", ErrCorruptEntry, err)
	}
	defer reader.Close()

	var header entryHeader
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return Decoded{}, fmt.Errorf("%w: %w", ErrCorruptEntry, err)
	}
	pixels, err := io.ReadAll(reader)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %w", ErrCorruptEntry, err)
	}

	format, ok := codeFormat(header.Format)
	if !ok {
		return Decoded{}, fmt.Errorf("%w: unknown format code %d", ErrCorruptEntry, header.Format)
	}
	d := Decoded{
		Format: format,
		Width:  int(header.Width),
		Height: int(header.Height),
		Pixels: pixels,
	}
	if want := d.Width * d.Height * gpu.BytesPerPixel(d.Format); len(pixels) != want {
		return Decoded{}, fmt.Errorf("%w: %d pixel bytes, want %d", ErrCorruptEntry, len(pixels), want)
	}
	if header.HasMetadata != 0 {
		d.Metadata = &tile.Metadata{
			MinValue:       header.MinValue,
			MaxValue:       header.MaxValue,
			HasMissingData: header.HasMissingData != 0,
		}
	}
	return d, nil
}
