package render

import (
	"fmt"
	"strconv"

	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/eak1mov/go-globetiles/layer"
)

// Defines derives the shader preprocessor keys from the active layer configuration and
// the feature toggles. Two calls return equal slices exactly when the same program serves
// both.
func Defines(layers *layer.Manager, opts Options) []gpu.Define {
	var defines []gpu.Define
	add := func(key string, value string) {
		defines = append(defines, gpu.Define{Key: key, Value: value})
	}

	for _, g := range layers.Groups() {
		active := g.ActiveLayers()
		name := g.Category().String()
		add("lastLayerIndex"+name, strconv.Itoa(len(active)-1))
		add("use"+name, flag(len(active) > 0))
		add("blend"+name, flag(g.LevelBlendingEnabled()))
		for i, l := range active {
			add(fmt.Sprintf("%sBlendMode%d", name, i), strconv.Itoa(int(l.BlendMode())))
			add(fmt.Sprintf("%sAdjustment%d", name, i), strconv.Itoa(int(l.Adjustment().Kind)))
		}
	}

	add("useAtmosphere", flag(opts.Atmosphere))
	add("performShading", flag(opts.PerformShading))
	add("showChunkEdges", flag(opts.ShowChunkEdges))
	add("showHeightResolution", flag(opts.ShowHeightResolution))
	add("showHeightIntensities", flag(opts.ShowHeightIntensities))
	add("defaultHeight", strconv.FormatFloat(opts.DefaultHeight, 'f', -1, 64))
	return defines
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
