// Package record implements the gpu interfaces in memory. Every call is recorded so tests
// and the headless CLI can inspect uploads, bound textures, uniforms and draw calls.
package record

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/eak1mov/go-globetiles/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrUploadFailed = errors.New("record: upload failed")

// Device implements gpu.Uploader.
type Device struct {
	mu       sync.Mutex
	nextID   uint64
	live     map[uint64]gpu.TextureDescriptor
	uploads  int
	releases int

	// FailUploads makes every Upload fail.
	FailUploads bool
}

func NewDevice() *Device {
	return &Device{live: make(map[uint64]gpu.TextureDescriptor)}
}

func (d *Device) Upload(desc gpu.TextureDescriptor, pixels []byte) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailUploads {
		return gpu.Texture{}, ErrUploadFailed
	}
	want := int(desc.Size.Width) * int(desc.Size.Height) * gpu.BytesPerPixel(desc.Format)
	if len(pixels) != want {
		return gpu.Texture{}, fmt.Errorf("%w: %q has %d bytes, want %d", ErrUploadFailed, desc.Label, len(pixels), want)
	}
	d.nextID++
	d.uploads++
	d.live[d.nextID] = desc
	return gpu.Texture{ID: d.nextID, Format: desc.Format, Size: desc.Size}, nil
}

func (d *Device) Release(tex gpu.Texture) {
	if !tex.Valid() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.live[tex.ID]; ok {
		delete(d.live, tex.ID)
		d.releases++
	}
}

// Live reports whether tex has been uploaded and not released.
func (d *Device) Live(tex gpu.Texture) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.live[tex.ID]
	return ok
}

// Label returns the descriptor label of a live texture.
func (d *Device) Label(tex gpu.Texture) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[tex.ID].Label
}

func (d *Device) Uploads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uploads
}

func (d *Device) Releases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releases
}

// Program implements gpu.Program.
type Program struct {
	Name     string
	Defines  []gpu.Define
	Active   bool
	Bound    map[int]gpu.Texture
	Uniforms map[string]any

	Activations int
}

func newProgram(name string, defines []gpu.Define) *Program {
	return &Program{
		Name:     name,
		Defines:  slices.Clone(defines),
		Bound:    make(map[int]gpu.Texture),
		Uniforms: make(map[string]any),
	}
}

func (p *Program) Activate()   { p.Active = true; p.Activations++ }
func (p *Program) Deactivate() { p.Active = false }

func (p *Program) BindTexture(unit int, tex gpu.Texture) { p.Bound[unit] = tex }

func (p *Program) SetInt(name string, v int)         { p.Uniforms[name] = v }
func (p *Program) SetFloat(name string, v float32)   { p.Uniforms[name] = v }
func (p *Program) SetVec2(name string, v mgl32.Vec2) { p.Uniforms[name] = v }
func (p *Program) SetVec3(name string, v mgl32.Vec3) { p.Uniforms[name] = v }
func (p *Program) SetMat4(name string, v mgl32.Mat4) { p.Uniforms[name] = v }

// Define returns the value of a preprocessor key.
func (p *Program) Define(key string) (string, bool) {
	for _, d := range p.Defines {
		if d.Key == key {
			return d.Value, true
		}
	}
	return "", false
}

// Programs implements gpu.ProgramProvider. Programs are keyed by name and defines.
type Programs struct {
	programs map[string]*Program
	last     *Program
	requests int

	// Pending makes every request report a program still compiling.
	Pending bool
}

func NewPrograms() *Programs {
	return &Programs{programs: make(map[string]*Program)}
}

func (ps *Programs) Program(name string, defines []gpu.Define) (gpu.Program, bool) {
	ps.requests++
	if ps.Pending {
		return nil, false
	}
	key := programKey(name, defines)
	p, ok := ps.programs[key]
	if !ok {
		p = newProgram(name, defines)
		ps.programs[key] = p
	}
	ps.last = p
	return p, true
}

// Last returns the program handed out by the most recent successful request.
func (ps *Programs) Last() *Program {
	return ps.last
}

// Variants returns how many distinct programs were compiled.
func (ps *Programs) Variants() int {
	return len(ps.programs)
}

// Requests returns how many times Program was called.
func (ps *Programs) Requests() int {
	return ps.requests
}

func programKey(name string, defines []gpu.Define) string {
	key := name
	for _, d := range defines {
		key += ";" + d.Key + "=" + d.Value
	}
	return key
}

// Grid implements gpu.Grid and counts draw calls.
type Grid struct {
	X, Y  int
	Draws int
}

func NewGrid(xSegments, ySegments int) *Grid {
	return &Grid{X: xSegments, Y: ySegments}
}

func (g *Grid) XSegments() int { return g.X }
func (g *Grid) YSegments() int { return g.Y }

func (g *Grid) Draw() {
	g.Draws++
}
