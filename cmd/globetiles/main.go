// Command globetiles inspects globe configurations, bakes debug tilesets, warms the tile
// cache and renders headless frames.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&layersCmd{}, "")
	subcommands.Register(&bakeCmd{}, "")
	subcommands.Register(&prefetchCmd{}, "")
	subcommands.Register(&clearCacheCmd{}, "")
	subcommands.Register(&frameCmd{}, "")

	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()
	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	os.Exit(int(subcommands.Execute(context.Background())))
}
