package layer

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/eak1mov/go-globetiles/provider"
)

// Group is the ordered set of layers of one category. Order is composite order.
type Group struct {
	category Category
	env      provider.Env
	logger   *slog.Logger

	layers        []*Layer
	active        []*Layer
	blendLevels   bool
	levelBlending bool

	onChange func()
}

func newGroup(category Category, env provider.Env, blendLevels bool) *Group {
	return &Group{
		category:    category,
		env:         env,
		logger:      env.Logger.With("group", category.String()),
		blendLevels: blendLevels,
	}
}

func (g *Group) Category() Category { return g.category }

// Layers returns every layer, enabled or not, in composite order.
func (g *Group) Layers() []*Layer { return g.layers }

// ActiveLayers returns the enabled layers in composite order.
func (g *Group) ActiveLayers() []*Layer { return g.active }

// LevelBlendingEnabled reports whether the group blends across three pile levels: level
// blending is on for the group and at least one active layer asks for it.
func (g *Group) LevelBlendingEnabled() bool { return g.levelBlending }

// SetLevelBlending toggles level blending for the whole group.
func (g *Group) SetLevelBlending(enabled bool) {
	if g.blendLevels == enabled {
		return
	}
	g.blendLevels = enabled
	g.refresh()
}

// OnChange registers the single observer notified after any layer of the group changed,
// was added or was deleted.
func (g *Group) OnChange(fn func()) {
	g.onChange = fn
}

// refresh recomputes the derived state and notifies the observer.
func (g *Group) refresh() {
	g.active = make([]*Layer, 0, len(g.layers))
	g.levelBlending = false
	for _, l := range g.layers {
		if l.Enabled() {
			g.active = append(g.active, l)
			g.levelBlending = g.levelBlending || (g.blendLevels && l.LevelBlending())
		}
	}
	if g.onChange != nil {
		g.onChange()
	}
}

// Layer returns the layer with the given id.
func (g *Group) Layer(id string) (*Layer, bool) {
	i := slices.IndexFunc(g.layers, func(l *Layer) bool { return l.ID() == id })
	if i < 0 {
		return nil, false
	}
	return g.layers[i], true
}

// AddLayer builds a layer from rec and appends it on top of the composite order. The group
// takes the layer's change observer slot.
func (g *Group) AddLayer(rec Record) (*Layer, error) {
	if _, ok := g.Layer(rec.ID); ok {
		return nil, fmt.Errorf("layer %q already exists in %v", rec.ID, g.category)
	}
	l, err := New(g.category, rec, g.env)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", rec.ID, err)
	}
	l.OnChange(g.refresh)
	g.layers = append(g.layers, l)
	g.refresh()
	return l, nil
}

// DeleteLayer resets the layer, closes it and removes it from the group.
func (g *Group) DeleteLayer(id string) error {
	i := slices.IndexFunc(g.layers, func(l *Layer) bool { return l.ID() == id })
	if i < 0 {
		return fmt.Errorf("layer %q not found in %v", id, g.category)
	}
	l := g.layers[i]
	g.layers = slices.Delete(g.layers, i, i+1)
	l.OnChange(nil)
	l.Reset()
	err := l.Close()
	g.logger.Info("globetiles: layer deleted", "layer", id)
	g.refresh()
	return err
}

// Update advances the providers of every layer. Disabled layers are updated too so their
// pending work and texture releases still complete.
func (g *Group) Update() {
	for _, l := range g.layers {
		l.Update()
	}
}

// Reset resets the enabled layers, or every layer when includeDisabled is set.
func (g *Group) Reset(includeDisabled bool) {
	for _, l := range g.layers {
		if includeDisabled || l.Enabled() {
			l.Reset()
		}
	}
}

func (g *Group) close() error {
	var errs []error
	for _, l := range g.layers {
		errs = append(errs, l.Close())
	}
	g.layers, g.active = nil, nil
	return errors.Join(errs...)
}
