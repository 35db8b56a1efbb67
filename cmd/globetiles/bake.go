package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"runtime"
	"sync"

	"github.com/eak1mov/go-globetiles/provider"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

type bakeCmd struct {
	paintType    string
	levels       string
	size         int
	outputPath   string
	outputFormat string
	workers      int
}

func (c *bakeCmd) Name() string     { return "bake" }
func (c *bakeCmd) Synopsis() string { return "write a procedural debug tileset" }
func (c *bakeCmd) Usage() string {
	return "globetiles bake -o <path> [-type index|level -levels 0-4 -size 256 -of <format>]\n"
}
func (c *bakeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.paintType, "type", "index", "Painter (index, level)")
	f.StringVar(&c.levels, "levels", "0-4", "Level range")
	f.IntVar(&c.size, "size", 256, "Tile size in pixels")
	f.StringVar(&c.outputPath, "o", "", "Output path (.mbtiles file or xyz pattern)")
	f.StringVar(&c.outputFormat, "of", "", "Output format (mbtiles, xyz)")
	f.IntVar(&c.workers, "workers", runtime.NumCPU(), "Number of painting goroutines")
}

func (c *bakeCmd) bake(ctx context.Context, writer tile.Writer, paint func(tile.Address, int) *image.NRGBA) error {
	minLevel, maxLevel, err := parseLevels(c.levels)
	if err != nil {
		return err
	}
	bar := progressbar.NewOptions(tile.CountLevels(minLevel, maxLevel), progressbar.OptionShowIts(), progressbar.OptionShowCount())
	defer fmt.Println()
	defer bar.Finish()

	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(c.workers, 1))
	for addr := range tile.Levels(minLevel, maxLevel) {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			var buf bytes.Buffer
			if err := png.Encode(&buf, paint(addr, c.size)); err != nil {
				return fmt.Errorf("tile %v: %w", addr, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if err := writer.WriteTile(addr, buf.Bytes()); err != nil {
				return fmt.Errorf("tile %v: %w", addr, err)
			}
			return bar.Add(1)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return writer.Finalize()
}

func (c *bakeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	var paint func(tile.Address, int) *image.NRGBA
	switch c.paintType {
	case "index":
		paint = provider.PaintIndex
	case "level":
		paint = provider.PaintLevel
	default:
		log.Printf("invalid painter: %q", c.paintType)
		return subcommands.ExitUsageError
	}
	if c.outputPath == "" || c.size <= 0 {
		log.Print(c.Usage())
		return subcommands.ExitUsageError
	}

	writer, err := openWriter(deduceFormat(c.outputFormat, c.outputPath), c.outputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer writer.Close()

	if err := c.bake(ctx, writer, paint); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
