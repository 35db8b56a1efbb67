package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/eak1mov/go-globetiles/gpu/record"
	"github.com/eak1mov/go-globetiles/provider"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type prefetchCmd struct {
	configPath string
	layerID    string
	levels     string
	poll       time.Duration
}

func (c *prefetchCmd) Name() string     { return "prefetch" }
func (c *prefetchCmd) Synopsis() string { return "decode layer tiles into the durable cache" }
func (c *prefetchCmd) Usage() string {
	return "globetiles prefetch -c <globe.yaml> -layer <id> [-levels 0-3]\n"
}
func (c *prefetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "c", "", "Globe configuration")
	f.StringVar(&c.layerID, "layer", "", "Layer id")
	f.StringVar(&c.levels, "levels", "0-3", "Level range")
	f.DurationVar(&c.poll, "poll", 10*time.Millisecond, "Interval between provider updates")
}

// prefetch requests every tile of the level range and drives the provider until each one
// settled. The provider writes decoded tiles to the store as they complete. Tiles are
// requested in windows of the provider's memory capacity so completed tiles are not
// evicted before they are counted.
func (c *prefetchCmd) prefetch(ctx context.Context, p provider.Provider, capacity int) (ok, failed int, err error) {
	minLevel, maxLevel, err := parseLevels(c.levels)
	if err != nil {
		return 0, 0, err
	}
	bar := progressbar.NewOptions(tile.CountLevels(minLevel, maxLevel), progressbar.OptionShowIts(), progressbar.OptionShowCount())
	defer fmt.Println()
	defer bar.Finish()

	window := make([]tile.Address, 0, capacity)
	flush := func() error {
		for len(window) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.Update()
			pending := window[:0]
			for _, addr := range window {
				switch p.TileAt(addr).Status {
				case tile.StatusUnavailable:
					pending = append(pending, addr)
					continue
				case tile.StatusOK:
					ok++
				default:
					failed++
				}
				bar.Add(1)
			}
			window = pending
			if len(window) > 0 {
				time.Sleep(c.poll)
			}
		}
		return nil
	}

	for addr := range tile.Levels(minLevel, maxLevel) {
		if addr.Level > p.MaxLevel() {
			break
		}
		window = append(window, addr)
		if len(window) == cap(window) {
			if err := flush(); err != nil {
				return ok, failed, err
			}
		}
	}
	return ok, failed, flush()
}

func (c *prefetchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.layerID == "" {
		log.Print(c.Usage())
		return subcommands.ExitUsageError
	}
	g, err := openGlobe(c.configPath, record.NewDevice())
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer g.Close()

	if g.store == nil {
		log.Println("engine.cache_dir is not set, nothing to prefetch into")
		return subcommands.ExitFailure
	}
	l, err := g.layer(c.layerID)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	p := l.Provider()
	if p == nil {
		log.Printf("layer %q has no provider", c.layerID)
		return subcommands.ExitFailure
	}

	capacity := g.cfg.Engine.TileCapacity
	if capacity <= 0 {
		capacity = 256
	}
	ok, failed, err := c.prefetch(ctx, p, capacity)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Println(err)
		return subcommands.ExitFailure
	}
	log.Printf("prefetched %d tiles, %d failed or out of range", ok, failed)
	return subcommands.ExitSuccess
}
