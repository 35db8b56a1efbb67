package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"math"
	"time"

	"github.com/eak1mov/go-globetiles/chunk"
	"github.com/eak1mov/go-globetiles/cull"
	"github.com/eak1mov/go-globetiles/geo"
	"github.com/eak1mov/go-globetiles/gpu/record"
	"github.com/eak1mov/go-globetiles/layer"
	"github.com/eak1mov/go-globetiles/render"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/subcommands"
)

// Distance from the globe to the sun in meters.
const sunDistance = 1.496e11

type frameCmd struct {
	configPath string
	frames     int
	interval   time.Duration
	lon, lat   float64
	altitude   float64
	maxLevel   uint
}

func (c *frameCmd) Name() string     { return "frame" }
func (c *frameCmd) Synopsis() string { return "render headless frames and report chunk statistics" }
func (c *frameCmd) Usage() string {
	return "globetiles frame [-c <globe.yaml> -frames N -lon 0 -lat 0 -altitude 2e7]\n"
}
func (c *frameCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "c", "", "Globe configuration (default: built-in debug globe)")
	f.IntVar(&c.frames, "frames", 10, "Number of frames")
	f.DurationVar(&c.interval, "interval", 16*time.Millisecond, "Time between frames")
	f.Float64Var(&c.lon, "lon", 0, "Camera longitude in degrees")
	f.Float64Var(&c.lat, "lat", 0, "Camera latitude in degrees")
	f.Float64Var(&c.altitude, "altitude", 2e7, "Camera altitude in meters")
	f.UintVar(&c.maxLevel, "max_level", 16, "Deepest chunk level")
}

func (c *frameCmd) scene(ellipsoid geo.Spheroid, screen mgl64.Vec2) (render.Scene, chunk.Camera) {
	target := geo.Geodetic2{Lat: mgl64.DegToRad(c.lat), Lon: mgl64.DegToRad(c.lon)}
	eye := ellipsoid.CartesianPosition(target, c.altitude)
	view := mgl64.LookAtV(eye, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})
	if math.Abs(c.lat) > 89 {
		view = mgl64.LookAtV(eye, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})
	}
	near := max(c.altitude*0.01, 1)
	far := c.altitude + 2*ellipsoid.Radii.Len()
	projection := mgl64.Perspective(mgl64.DegToRad(45), screen[0]/screen[1], near, far)

	scene := render.Scene{
		Model:          mgl64.Ident4(),
		View:           view,
		Projection:     projection,
		CameraPosition: eye,
		SunPosition:    mgl64.Vec3{sunDistance, 0, 0},
	}
	camera := chunk.Camera{ModelViewProjection: projection.Mul4(view), Screen: screen}
	return scene, camera
}

func (c *frameCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	device := record.NewDevice()
	g, err := openGlobe(c.configPath, device)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer g.Close()

	cfg := g.cfg
	ellipsoid := geo.Spheroid{Radii: cfg.Globe.RadiiVec()}
	programs := record.NewPrograms()
	grid := record.NewGrid(64, 64)
	renderer := render.NewChunkRenderer(programs, grid, g.layers, ellipsoid, render.Options{
		GlobalRenderingMaxLevel: uint32(cfg.Engine.GlobalRenderingMaxLevel),
		LODScaleFactor:          cfg.Globe.LODScaleFactor,
		Atmosphere:              cfg.Globe.Atmosphere,
		PerformShading:          cfg.Globe.PerformShading,
		ShowChunkEdges:          cfg.Globe.Debug.ShowChunkEdges,
		ShowHeightResolution:    cfg.Globe.Debug.ShowHeightResolution,
		ShowHeightIntensities:   cfg.Globe.Debug.ShowHeightIntensities,
		DefaultHeight:           cfg.Globe.DefaultHeight,
		Logger:                  slog.Default(),
	})

	screen := mgl64.Vec2{float64(cfg.Engine.Screen[0]), float64(cfg.Engine.Screen[1])}
	scene, camera := c.scene(ellipsoid, screen)
	classifier := cull.NewClassifier(cull.NDC())
	opts := chunk.Options{
		Ellipsoid: ellipsoid,
		Heights:   g.layers.Group(layer.CategoryHeight),
		MaxLevel:  uint32(c.maxLevel),
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for frame := range c.frames {
		g.layers.Update()
		chunks := chunk.Select(chunk.Roots(), classifier, camera, opts)
		drawn := renderer.RenderFrame(chunks, scene)
		log.Printf("frame %d: %d chunks selected, %d drawn, %d textures uploaded, %d released",
			frame, len(chunks), drawn, device.Uploads(), device.Releases())

		select {
		case <-ctx.Done():
			return subcommands.ExitFailure
		case <-ticker.C:
		}
	}
	log.Printf("%d shader variants requested", programs.Variants())
	return subcommands.ExitSuccess
}
