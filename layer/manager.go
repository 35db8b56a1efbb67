package layer

import (
	"errors"
	"log/slog"

	"github.com/eak1mov/go-globetiles/provider"
)

// Manager owns one Group per category for the lifetime of a globe.
type Manager struct {
	groups   [numCategories]*Group
	onChange func()
}

type managerConfig struct {
	blendLevels bool
}

type ManagerOption func(*managerConfig)

// WithLevelBlending sets the initial level blending flag of every group (default on).
func WithLevelBlending(enabled bool) ManagerOption {
	return func(c *managerConfig) { c.blendLevels = enabled }
}

// NewManager returns a manager with an empty group for each category. Layers are built
// with env.
func NewManager(env provider.Env, opts ...ManagerOption) *Manager {
	config := managerConfig{blendLevels: true}
	for _, opt := range opts {
		opt(&config)
	}
	if env.Logger == nil {
		env.Logger = slog.New(slog.DiscardHandler)
	}

	m := &Manager{}
	for _, c := range Categories {
		g := newGroup(c, env, config.blendLevels)
		g.OnChange(m.changed)
		m.groups[c] = g
	}
	return m
}

func (m *Manager) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}

// OnChange registers the single observer notified after any group changed.
func (m *Manager) OnChange(fn func()) {
	m.onChange = fn
}

// Group returns the group of category c.
func (m *Manager) Group(c Category) *Group {
	return m.groups[c]
}

// Groups returns all groups in category order.
func (m *Manager) Groups() []*Group {
	return m.groups[:]
}

// AddLayer adds a layer built from rec to the group of category c.
func (m *Manager) AddLayer(c Category, rec Record) (*Layer, error) {
	return m.groups[c].AddLayer(rec)
}

// Layer finds a layer by id in any group.
func (m *Manager) Layer(id string) (*Layer, bool) {
	for _, g := range m.groups {
		if l, ok := g.Layer(id); ok {
			return l, true
		}
	}
	return nil, false
}

// HasAnyBlendingLayersEnabled reports whether any group blends across pile levels.
func (m *Manager) HasAnyBlendingLayersEnabled() bool {
	for _, g := range m.groups {
		if g.LevelBlendingEnabled() {
			return true
		}
	}
	return false
}

// Update advances every layer once per frame.
func (m *Manager) Update() {
	for _, g := range m.groups {
		g.Update()
	}
}

func (m *Manager) Reset(includeDisabled bool) {
	for _, g := range m.groups {
		g.Reset(includeDisabled)
	}
}

func (m *Manager) Close() error {
	var errs []error
	for _, g := range m.groups {
		errs = append(errs, g.close())
	}
	return errors.Join(errs...)
}
