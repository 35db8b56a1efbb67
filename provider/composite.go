package provider

import (
	"errors"
	"fmt"
	"slices"

	"github.com/eak1mov/go-globetiles/geo"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/paulmach/orb"
)

type indexRoute struct {
	address  *tile.Address
	bounds   *orb.Bound
	provider Provider
}

func (r indexRoute) matches(addr tile.Address) bool {
	if r.address != nil {
		return *r.address == addr || r.address.IsAncestorOf(addr)
	}
	return containsBound(*r.bounds, geo.PatchOf(addr).Bound())
}

// boundEpsilon absorbs rounding in the radian to degree conversion of patch corners.
const boundEpsilon = 1e-9

func containsBound(outer, inner orb.Bound) bool {
	return inner.Min[0] >= outer.Min[0]-boundEpsilon && inner.Min[1] >= outer.Min[1]-boundEpsilon &&
		inner.Max[0] <= outer.Max[0]+boundEpsilon && inner.Max[1] <= outer.Max[1]+boundEpsilon
}

// ByIndex routes addresses to sub-providers by tile subtree or lon/lat region. The first
// matching entry wins; addresses matching none go to the fallback, if any.
type ByIndex struct {
	routes   []indexRoute
	fallback Provider
	children []Provider
	depth    tile.DepthTransform
	maxLevel uint32
	def      *fallbackTile
}

func NewByIndex(params Params, env Env) (*ByIndex, error) {
	env = env.withDefaults()
	p := &ByIndex{
		depth: params.DepthTransform,
		def:   newFallbackTile(env.Uploader, params.Name, params.Height),
	}
	if p.depth == (tile.DepthTransform{}) {
		p.depth = tile.IdentityDepth()
	}

	for i, entry := range params.ByIndex {
		if (entry.Address == nil) == (entry.Bounds == nil) {
			p.Close()
			return nil, fmt.Errorf("by-index entry %d: exactly one of address and bounds must be set", i)
		}
		sub, err := newChild(params, entry.Params, env)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("by-index entry %d: %w", i, err)
		}
		p.routes = append(p.routes, indexRoute{address: entry.Address, bounds: entry.Bounds, provider: sub})
		p.children = append(p.children, sub)
		p.maxLevel = max(p.maxLevel, sub.MaxLevel())
	}
	if params.Fallback != nil {
		sub, err := newChild(params, *params.Fallback, env)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("by-index fallback: %w", err)
		}
		p.fallback = sub
		p.children = append(p.children, sub)
		p.maxLevel = max(p.maxLevel, sub.MaxLevel())
	}
	return p, nil
}

// newChild builds a sub-provider inheriting the parent's name and height flag.
func newChild(parent, child Params, env Env) (Provider, error) {
	if child.Name == "" {
		child.Name = parent.Name
	}
	child.Height = parent.Height
	return New(child, env)
}

func (p *ByIndex) route(addr tile.Address) Provider {
	for _, r := range p.routes {
		if r.matches(addr) {
			return r.provider
		}
	}
	return p.fallback
}

func (p *ByIndex) TileAt(addr tile.Address) tile.Tile {
	sub := p.route(addr)
	if sub == nil || !addr.Valid() {
		return tile.OutOfRange
	}
	return sub.TileAt(addr)
}

func (p *ByIndex) TileStatus(addr tile.Address) tile.Status {
	sub := p.route(addr)
	if sub == nil || !addr.Valid() {
		return tile.StatusOutOfRange
	}
	return sub.TileStatus(addr)
}

func (p *ByIndex) DepthTransform() tile.DepthTransform { return p.depth }
func (p *ByIndex) MaxLevel() uint32                    { return p.maxLevel }
func (p *ByIndex) DefaultTile() tile.Tile              { return p.def.get() }
func (p *ByIndex) Reset()                              { resetAll(p.children) }
func (p *ByIndex) Update()                             { updateAll(p.children) }

func (p *ByIndex) Close() error {
	p.def.release()
	return closeAll(p.children)
}

// ByLevel serves each level from the first entry whose MaxLevel covers it.
type ByLevel struct {
	levels   []uint32 // ascending, parallel to children
	children []Provider
	depth    tile.DepthTransform
	def      *fallbackTile
}

func NewByLevel(params Params, env Env) (*ByLevel, error) {
	env = env.withDefaults()
	entries := slices.Clone(params.ByLevel)
	if len(entries) == 0 {
		return nil, errors.New("by-level provider has no entries")
	}
	slices.SortStableFunc(entries, func(a, b LevelEntry) int { return int(a.MaxLevel) - int(b.MaxLevel) })

	p := &ByLevel{
		depth: params.DepthTransform,
		def:   newFallbackTile(env.Uploader, params.Name, params.Height),
	}
	if p.depth == (tile.DepthTransform{}) {
		p.depth = tile.IdentityDepth()
	}
	for i, entry := range entries {
		sub, err := newChild(params, entry.Params, env)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("by-level entry %d: %w", i, err)
		}
		p.levels = append(p.levels, entry.MaxLevel)
		p.children = append(p.children, sub)
	}
	return p, nil
}

func (p *ByLevel) route(addr tile.Address) Provider {
	i, _ := slices.BinarySearch(p.levels, addr.Level)
	if i == len(p.levels) {
		return nil
	}
	return p.children[i]
}

func (p *ByLevel) TileAt(addr tile.Address) tile.Tile {
	sub := p.route(addr)
	if sub == nil || !addr.Valid() {
		return tile.OutOfRange
	}
	return sub.TileAt(addr)
}

func (p *ByLevel) TileStatus(addr tile.Address) tile.Status {
	sub := p.route(addr)
	if sub == nil || !addr.Valid() {
		return tile.StatusOutOfRange
	}
	return sub.TileStatus(addr)
}

func (p *ByLevel) DepthTransform() tile.DepthTransform { return p.depth }
func (p *ByLevel) MaxLevel() uint32                    { return p.levels[len(p.levels)-1] }
func (p *ByLevel) DefaultTile() tile.Tile              { return p.def.get() }
func (p *ByLevel) Reset()                              { resetAll(p.children) }
func (p *ByLevel) Update()                             { updateAll(p.children) }

func (p *ByLevel) Close() error {
	p.def.release()
	return closeAll(p.children)
}

func resetAll(providers []Provider) {
	for _, sub := range providers {
		sub.Reset()
	}
}

func updateAll(providers []Provider) {
	for _, sub := range providers {
		sub.Update()
	}
}

func closeAll(providers []Provider) error {
	var errs []error
	for _, sub := range providers {
		errs = append(errs, sub.Close())
	}
	return errors.Join(errs...)
}
