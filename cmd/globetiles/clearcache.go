package main

import (
	"context"
	"flag"
	"log"

	"github.com/eak1mov/go-globetiles/gpu/record"
	"github.com/google/subcommands"
)

type clearCacheCmd struct {
	configPath string
	layerID    string
}

func (c *clearCacheCmd) Name() string     { return "clearcache" }
func (c *clearCacheCmd) Synopsis() string { return "drop cached tiles of one or all layers" }
func (c *clearCacheCmd) Usage() string {
	return "globetiles clearcache -c <globe.yaml> [-layer <id>]\n"
}
func (c *clearCacheCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "c", "", "Globe configuration")
	f.StringVar(&c.layerID, "layer", "", "Layer id (default: every layer)")
}

func (c *clearCacheCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	g, err := openGlobe(c.configPath, record.NewDevice())
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer g.Close()

	if g.store == nil {
		log.Println("engine.cache_dir is not set, nothing to clear")
		return subcommands.ExitFailure
	}
	if c.layerID == "" {
		g.layers.Reset(true)
		log.Println("cleared cached tiles of every layer")
		return subcommands.ExitSuccess
	}
	l, err := g.layer(c.layerID)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	l.Reset()
	log.Printf("cleared cached tiles of %q", c.layerID)
	return subcommands.ExitSuccess
}
