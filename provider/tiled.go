package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/eak1mov/go-globetiles/cache"
	"github.com/eak1mov/go-globetiles/geo"
	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/eak1mov/go-globetiles/internal/jobpool"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/paulmach/orb"
)

// jobKey ties a production job to the cache generation that requested it. Reset starts a
// new generation, so results of older jobs are recognized and dropped.
type jobKey struct {
	addr       tile.Address
	generation uint64
}

type jobResult struct {
	decoded cache.Decoded
	missing bool
	err     error
}

// Tiled serves tiles read from a tile source, decoded in the background and cached by
// address. At most one production job per address is in flight.
type Tiled struct {
	name        string
	fingerprint string
	reader      tile.Reader
	closer      io.Closer
	uploader    gpu.Uploader
	store       *cache.Store
	logger      *slog.Logger

	height   bool
	pad      bool
	maxLevel uint32
	bounds   *orb.Bound
	depth    tile.DepthTransform

	pool       *jobpool.Pool[jobKey, jobResult]
	generation uint64
	tiles      *lru[tile.Address, tile.Tile]
	// settled holds permanent non-OK statuses: IOError and OutOfRange for missing data.
	settled  map[tile.Address]tile.Status
	released []gpu.Texture
	fallback *fallbackTile
}

// levelReader is implemented by sources that know which levels they hold.
type levelReader interface {
	Levels() (minLevel, maxLevel uint32, ok bool, err error)
}

// NewTiled opens params.Source and returns a provider reading from it. Without an explicit
// MaxLevel, an MBTiles source is limited to the deepest level it holds.
func NewTiled(params Params, env Env) (*Tiled, error) {
	env = env.withDefaults()
	reader, closer, err := openSource(params.Source)
	if err != nil {
		return nil, err
	}
	if lr, ok := reader.(levelReader); ok && params.MaxLevel == 0 {
		if _, maxLevel, ok, err := lr.Levels(); err != nil {
			env.Logger.Warn("globetiles: failed to read source levels", "source", params.Source, "error", err)
		} else if ok && maxLevel > 0 {
			params.MaxLevel = maxLevel
		}
	}
	p := NewTiledFrom(params, env, reader)
	p.closer = closer
	return p, nil
}

// NewTiledFrom returns a provider reading from reader. The caller keeps ownership of reader.
func NewTiledFrom(params Params, env Env, reader tile.Reader) *Tiled {
	env = env.withDefaults()
	if params.DepthTransform == (tile.DepthTransform{}) {
		params.DepthTransform = tile.IdentityDepth()
	}
	logger := env.Logger.With("provider", params.Name)

	poolOpts := []jobpool.Option{jobpool.WithLogger(logger), jobpool.WithRate(env.JobsPerSecond, env.Workers)}
	if env.Workers > 0 {
		poolOpts = append(poolOpts, jobpool.WithWorkers(env.Workers))
	}

	p := &Tiled{
		name:        params.Name,
		fingerprint: cache.Fingerprint(params.Name, params.Source, fmt.Sprint(params.Height, params.PadTiles)),
		reader:      reader,
		closer:      nopCloser{},
		uploader:    env.Uploader,
		store:       env.Store,
		logger:      logger,
		height:      params.Height,
		pad:         params.PadTiles,
		maxLevel:    maxLevelOf(params),
		bounds:      params.Bounds,
		depth:       params.DepthTransform,
		pool:        jobpool.New[jobKey, jobResult](poolOpts...),
		tiles:       newLRU[tile.Address, tile.Tile](env.Capacity),
		settled:     make(map[tile.Address]tile.Status),
		fallback:    newFallbackTile(env.Uploader, params.Name, params.Height),
	}
	logger.Debug("globetiles: tiled provider created", "source", params.Source, "maxLevel", p.maxLevel)
	return p
}

func (p *Tiled) outOfRange(addr tile.Address) bool {
	if !addr.Valid() || addr.Level > p.maxLevel {
		return true
	}
	return p.bounds != nil && !p.bounds.Intersects(geo.PatchOf(addr).Bound())
}

func (p *Tiled) TileAt(addr tile.Address) tile.Tile {
	if p.outOfRange(addr) {
		return tile.OutOfRange
	}
	if t, ok := p.tiles.get(addr); ok {
		return t
	}
	if status, ok := p.settled[addr]; ok {
		return tile.Tile{Status: status}
	}

	key := jobKey{addr: addr, generation: p.generation}
	p.pool.Submit(key, func(ctx context.Context) jobResult {
		return p.produce(ctx, addr)
	})
	return tile.Unavailable
}

func (p *Tiled) TileStatus(addr tile.Address) tile.Status {
	if p.outOfRange(addr) {
		return tile.StatusOutOfRange
	}
	if t, ok := p.tiles.peek(addr); ok {
		return t.Status
	}
	if status, ok := p.settled[addr]; ok {
		return status
	}
	return tile.StatusUnavailable
}

// produce runs on a pool worker. It must not touch the provider's cache state.
func (p *Tiled) produce(ctx context.Context, addr tile.Address) jobResult {
	if err := ctx.Err(); err != nil {
		return jobResult{err: err}
	}
	if p.store != nil {
		d, ok, err := p.store.Get(p.fingerprint, addr)
		if err != nil {
			p.logger.Debug("globetiles: ignoring cache entry", "tile", addr, "error", err)
		} else if ok {
			return jobResult{decoded: d}
		}
	}

	data, err := p.reader.ReadTile(addr)
	if err != nil {
		return jobResult{err: err}
	}
	if len(data) == 0 {
		return jobResult{missing: true}
	}
	d, err := decodeTile(data, p.height, p.pad)
	if err != nil {
		return jobResult{err: err}
	}

	if p.store != nil {
		if err := p.store.Put(p.fingerprint, addr, d); err != nil {
			p.logger.Warn("globetiles: failed to cache tile", "tile", addr, "error", err)
		}
	}
	return jobResult{decoded: d}
}

// Update releases textures evicted since the previous frame and installs finished jobs.
func (p *Tiled) Update() {
	p.releaseTextures()

	for _, r := range p.pool.Drain() {
		if r.Key.generation != p.generation {
			p.logger.Debug("globetiles: dropping stale tile", "tile", r.Key.addr)
			continue
		}
		p.install(r.Key.addr, r.Value)
	}
}

func (p *Tiled) install(addr tile.Address, r jobResult) {
	switch {
	case r.err != nil:
		if errors.Is(r.err, context.Canceled) {
			return
		}
		p.logger.Warn("globetiles: failed to produce tile", "tile", addr, "error", r.err)
		p.settled[addr] = tile.StatusIOError
	case r.missing:
		p.settled[addr] = tile.StatusOutOfRange
	default:
		t, err := upload(p.uploader, fmt.Sprintf("%s %v", p.name, addr), r.decoded)
		if err != nil {
			p.logger.Warn("globetiles: failed to upload tile", "tile", addr, "error", err)
			p.settled[addr] = tile.StatusIOError
			return
		}
		p.evict(p.tiles.add(addr, t))
	}
}

func (p *Tiled) evict(tiles []tile.Tile) {
	for _, t := range tiles {
		p.released = append(p.released, t.Texture)
	}
}

func (p *Tiled) Reset() {
	p.generation++
	n := p.pool.Discard(func(k jobKey) bool { return k.generation != p.generation })
	p.evict(p.tiles.clear())
	clear(p.settled)

	if p.store != nil {
		if _, err := p.store.Clear(p.fingerprint); err != nil {
			p.logger.Warn("globetiles: failed to clear cache", "error", err)
		}
	}
	p.logger.Debug("globetiles: provider reset", "generation", p.generation, "discarded", n)
}

func (p *Tiled) DepthTransform() tile.DepthTransform { return p.depth }

func (p *Tiled) MaxLevel() uint32 { return p.maxLevel }

func (p *Tiled) DefaultTile() tile.Tile { return p.fallback.get() }

// Stats reports the production counters of the provider's worker pool.
func (p *Tiled) Stats() jobpool.Stats { return p.pool.Stats() }

// Cached returns the number of tiles held in memory.
func (p *Tiled) Cached() int { return p.tiles.len() }

func (p *Tiled) releaseTextures() {
	for _, tex := range p.released {
		p.uploader.Release(tex)
	}
	p.released = p.released[:0]
}

// shutdown releases every texture of the provider on the calling goroutine, then stops the
// workers and closes the source in the background. done receives the result of the latter.
func (p *Tiled) shutdown(done func(error)) {
	p.pool.Discard(func(jobKey) bool { return true })
	p.evict(p.tiles.clear())
	p.releaseTextures()
	p.fallback.release()
	go func() {
		done(errors.Join(p.pool.Close(), p.closer.Close()))
	}()
}

func (p *Tiled) Close() error {
	errc := make(chan error, 1)
	p.shutdown(func(err error) { errc <- err })
	return <-errc
}
