package provider

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/eak1mov/go-globetiles/internal/jobpool"
	"github.com/eak1mov/go-globetiles/tile"
)

// SingleImage serves one image at every address and level. The image is read and decoded
// on a worker after the first request and uploaded at the following Update.
type SingleImage struct {
	name     string
	path     string
	height   bool
	pad      bool
	depth    tile.DepthTransform
	uploader gpu.Uploader
	logger   *slog.Logger

	// Jobs are keyed by generation; Reset starts a new one.
	pool       *jobpool.Pool[uint64, jobResult]
	generation uint64
	tile       tile.Tile
	released   []gpu.Texture
	fallback   *fallbackTile
}

func NewSingleImage(params Params, env Env) (*SingleImage, error) {
	env = env.withDefaults()
	if params.Source == "" {
		return nil, ErrNoSource
	}
	if params.DepthTransform == (tile.DepthTransform{}) {
		params.DepthTransform = tile.IdentityDepth()
	}
	logger := env.Logger.With("provider", params.Name)
	return &SingleImage{
		name:     params.Name,
		path:     params.Source,
		height:   params.Height,
		pad:      params.PadTiles,
		depth:    params.DepthTransform,
		uploader: env.Uploader,
		logger:   logger,
		pool:     jobpool.New[uint64, jobResult](jobpool.WithWorkers(1), jobpool.WithLogger(logger)),
		tile:     tile.Unavailable,
		fallback: newFallbackTile(env.Uploader, params.Name, params.Height),
	}, nil
}

func (p *SingleImage) decode(ctx context.Context) jobResult {
	if err := ctx.Err(); err != nil {
		return jobResult{err: err}
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return jobResult{err: err}
	}
	d, err := decodeTile(data, p.height, p.pad)
	if err != nil {
		return jobResult{err: err}
	}
	return jobResult{decoded: d}
}

func (p *SingleImage) TileAt(addr tile.Address) tile.Tile {
	if !addr.Valid() {
		return tile.OutOfRange
	}
	if p.tile.Status == tile.StatusUnavailable {
		p.pool.Submit(p.generation, p.decode)
	}
	return p.tile
}

func (p *SingleImage) TileStatus(addr tile.Address) tile.Status {
	if !addr.Valid() {
		return tile.StatusOutOfRange
	}
	return p.tile.Status
}

func (p *SingleImage) DepthTransform() tile.DepthTransform { return p.depth }

func (p *SingleImage) Reset() {
	p.generation++
	p.pool.Discard(func(g uint64) bool { return g != p.generation })
	if p.tile.OK() {
		p.released = append(p.released, p.tile.Texture)
	}
	p.tile = tile.Unavailable
}

// Update releases the texture dropped by Reset and installs the decoded image. A failure is
// kept as IOError until Reset.
func (p *SingleImage) Update() {
	for _, tex := range p.released {
		p.uploader.Release(tex)
	}
	p.released = p.released[:0]

	for _, r := range p.pool.Drain() {
		if r.Key != p.generation {
			continue
		}
		err := r.Value.err
		if errors.Is(err, context.Canceled) {
			continue
		}
		var t tile.Tile
		if err == nil {
			t, err = upload(p.uploader, p.name, r.Value.decoded)
		}
		if err != nil {
			p.logger.Warn("globetiles: failed to load image", "path", p.path, "error", err)
			t = tile.IOError
		}
		p.tile = t
	}
}

// MaxLevel is unbounded: the image is mapped whole onto every chunk at every level.
func (p *SingleImage) MaxLevel() uint32 { return tile.MaxLevel }

func (p *SingleImage) DefaultTile() tile.Tile { return p.fallback.get() }

func (p *SingleImage) Close() error {
	err := p.pool.Close()
	p.Reset()
	p.Update()
	p.fallback.release()
	return err
}
