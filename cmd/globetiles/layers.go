package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/eak1mov/go-globetiles/gpu/record"
	"github.com/google/subcommands"
)

type layersCmd struct {
	configPath string
}

func (c *layersCmd) Name() string     { return "layers" }
func (c *layersCmd) Synopsis() string { return "list the layers of a globe configuration" }
func (c *layersCmd) Usage() string {
	return "globetiles layers [-c <globe.yaml>]\n"
}
func (c *layersCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "c", "", "Globe configuration (default: built-in debug globe)")
}

func (c *layersCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	g, err := openGlobe(c.configPath, record.NewDevice())
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer g.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tID\tTYPE\tENABLED\tBLEND\tMAX LEVEL\tLEVEL BLENDING")
	for _, group := range g.layers.Groups() {
		for _, l := range group.Layers() {
			maxLevel := "-"
			if p := l.Provider(); p != nil {
				maxLevel = fmt.Sprint(p.MaxLevel())
			}
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\t%v\n",
				group.Category(), l.ID(), l.Type(), l.Enabled(), l.BlendMode(), maxLevel, l.LevelBlending())
		}
	}
	if err := w.Flush(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
