package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eak1mov/go-globetiles/tile"
)

// Temporal serves a time series of tiled sources. The source path carries a {time}
// placeholder. Only the current timestep is open: moving to another step shuts the
// previous one down at that Update. A step that fails to open reports IOError until Reset.
type Temporal struct {
	params Params
	env    Env
	logger *slog.Logger
	now    func() time.Time

	step     time.Time
	inRange  bool
	current  *Tiled // nil when the clock is outside the timeline or the step failed to open
	failed   map[time.Time]bool
	closing  sync.WaitGroup
	closeMu  sync.Mutex
	closeErr []error
	fallback *fallbackTile
}

func NewTemporal(params Params, env Env) (*Temporal, error) {
	env = env.withDefaults()
	tp := params.Temporal
	if params.Source == "" {
		return nil, ErrNoSource
	}
	if !strings.Contains(params.Source, "{time}") {
		return nil, fmt.Errorf("temporal source %q has no {time} placeholder", params.Source)
	}
	if tp.Step <= 0 || tp.End.Before(tp.Start) {
		return nil, fmt.Errorf("invalid timeline %v..%v step %v", tp.Start, tp.End, tp.Step)
	}
	if params.Temporal.Layout == "" {
		params.Temporal.Layout = time.DateOnly
	}
	if params.DepthTransform == (tile.DepthTransform{}) {
		params.DepthTransform = tile.IdentityDepth()
	}

	p := &Temporal{
		params:   params,
		env:      env,
		logger:   env.Logger.With("provider", params.Name),
		now:      env.Now,
		failed:   make(map[time.Time]bool),
		fallback: newFallbackTile(env.Uploader, params.Name, params.Height),
	}
	p.Update()
	return p, nil
}

// timestep quantizes t onto the timeline. ok is false outside [Start, End].
func (p *Temporal) timestep(t time.Time) (step time.Time, ok bool) {
	tp := p.params.Temporal
	if t.Before(tp.Start) || t.After(tp.End) {
		return time.Time{}, false
	}
	n := t.Sub(tp.Start) / tp.Step
	return tp.Start.Add(n * tp.Step), true
}

func (p *Temporal) open(step time.Time) (*Tiled, error) {
	params := p.params
	params.Kind = KindTiled
	params.Name = fmt.Sprintf("%s@%s", p.params.Name, step.Format(p.params.Temporal.Layout))
	params.Source = strings.ReplaceAll(p.params.Source, "{time}", step.Format(p.params.Temporal.Layout))
	return NewTiled(params, p.env)
}

// retire shuts the current step down. Its textures are released now, between frames;
// workers and the source are closed in the background.
func (p *Temporal) retire() {
	if p.current == nil {
		return
	}
	p.closing.Add(1)
	p.current.shutdown(func(err error) {
		defer p.closing.Done()
		if err != nil {
			p.closeMu.Lock()
			p.closeErr = append(p.closeErr, err)
			p.closeMu.Unlock()
		}
	})
	p.current = nil
}

// Update selects the timestep for the current clock, opening it when it changed.
func (p *Temporal) Update() {
	step, ok := p.timestep(p.now())
	if !ok || !step.Equal(p.step) {
		p.retire()
	}
	p.step, p.inRange = step, ok
	if ok && p.current == nil && !p.failed[step] {
		sub, err := p.open(step)
		if err != nil {
			p.logger.Warn("globetiles: failed to open timestep", "time", step, "error", err)
			p.failed[step] = true
		} else {
			p.current = sub
		}
	}
	if p.current != nil {
		p.current.Update()
	}
}

// missing reports the status served when no step is open.
func (p *Temporal) missing() tile.Status {
	if p.inRange && p.failed[p.step] {
		return tile.StatusIOError
	}
	return tile.StatusOutOfRange
}

func (p *Temporal) TileAt(addr tile.Address) tile.Tile {
	if p.current == nil {
		return tile.Tile{Status: p.missing()}
	}
	return p.current.TileAt(addr)
}

func (p *Temporal) TileStatus(addr tile.Address) tile.Status {
	if p.current == nil {
		return p.missing()
	}
	return p.current.TileStatus(addr)
}

func (p *Temporal) DepthTransform() tile.DepthTransform { return p.params.DepthTransform }

// Reset resets the open step and forgets steps that failed to open.
func (p *Temporal) Reset() {
	if p.current != nil {
		p.current.Reset()
	}
	clear(p.failed)
}

func (p *Temporal) MaxLevel() uint32 { return maxLevelOf(p.params) }

func (p *Temporal) DefaultTile() tile.Tile { return p.fallback.get() }

// Current returns the time of the step served since the last Update.
func (p *Temporal) Current() (time.Time, bool) {
	return p.timestep(p.now())
}

func (p *Temporal) Close() error {
	p.retire()
	p.closing.Wait()
	p.fallback.release()
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	return errors.Join(p.closeErr...)
}
