// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software provides a CPU implementation of gpucore.Device.
//
// Resources live in memory. Shader modules run the CPU programs attached
// to them; compute dispatches are spread over a worker pool. Submitted
// command streams execute before Submit returns.
//
// The device checks what a GPU validation layer would: bind group layouts
// against bound resources, buffer and texture usage flags, and the usage
// state of every texture a pass touches. Sampling a texture that was not
// transitioned out of storage use is reported as a hazard.
//
// Importing the package registers it as the "software" backend.
package software

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/raytrace/backend"
	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/internal/parallel"
)

// Software device errors.
var (
	// ErrOutOfMemory is returned when a buffer would exceed the memory limit.
	ErrOutOfMemory = errors.New("software: out of buffer memory")

	// ErrNoProgram is returned for a shader module without a CPU program
	// for the requested stage.
	ErrNoProgram = errors.New("software: shader module has no CPU program")

	// ErrUsageMismatch is returned when a transition's source state is not
	// the texture's current state.
	ErrUsageMismatch = errors.New("software: texture usage mismatch")

	// ErrHazard is returned when a pass binds a texture in a state that
	// does not allow the access.
	ErrHazard = errors.New("software: texture hazard")

	// ErrInvalidBinding is returned when a bind group does not match its
	// layout or its resources lack the needed usage.
	ErrInvalidBinding = errors.New("software: invalid binding")
)

func init() {
	backend.Register(backend.BackendSoftware, func() (gpucore.Device, error) {
		return New(), nil
	})
}

// Stats counts device activity.
type Stats struct {
	BuffersCreated   int
	BuffersDestroyed int
	LiveBuffers      int
	BufferBytes      uint64
	Dispatches       int
	Draws            int
	Submits          int
}

type buffer struct {
	desc gpucore.BufferDesc
	data []byte
}

type texture struct {
	desc  gpucore.TextureDesc
	img   *image.RGBA
	usage gpucore.TextureUsage
}

type bindGroup struct {
	layout  gpucore.BindGroupLayoutID
	entries []gpucore.BindGroupEntry
}

type computePipeline struct {
	program gpucore.ComputeProgram
	layouts []gpucore.BindGroupLayoutID
}

type renderPipeline struct {
	program gpucore.RenderProgram
	desc    gpucore.RenderPipelineDesc
}

// Device is a CPU gpucore.Device.
//
// Thread Safety: Device is safe for concurrent use from multiple goroutines.
// Command execution holds the device lock.
type Device struct {
	mu     sync.Mutex
	pool   *parallel.WorkerPool
	logger atomic.Pointer[slog.Logger]
	nextID atomic.Uint64
	closed bool

	memoryLimit uint64
	stats       Stats

	buffers          map[gpucore.BufferID]*buffer
	textures         map[gpucore.TextureID]*texture
	views            map[gpucore.TextureViewID]gpucore.TextureID
	samplers         map[gpucore.SamplerID]gpucore.SamplerDesc
	modules          map[gpucore.ShaderModuleID]*gpucore.ShaderModuleDesc
	layouts          map[gpucore.BindGroupLayoutID]*gpucore.BindGroupLayoutDesc
	groups           map[gpucore.BindGroupID]*bindGroup
	computePipelines map[gpucore.ComputePipelineID]*computePipeline
	renderPipelines  map[gpucore.RenderPipelineID]*renderPipeline
}

var _ gpucore.Device = (*Device)(nil)

// Option configures a Device.
type Option func(*Device)

// WithWorkers sets the number of dispatch workers. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(d *Device) {
		d.pool.Close()
		d.pool = parallel.NewWorkerPool(n)
	}
}

// WithMemoryLimit caps the total size of live buffers. Zero means no limit.
func WithMemoryLimit(bytes uint64) Option {
	return func(d *Device) { d.memoryLimit = bytes }
}

// New creates a software device.
func New(opts ...Option) *Device {
	d := &Device{
		pool:             parallel.NewWorkerPool(0),
		buffers:          make(map[gpucore.BufferID]*buffer),
		textures:         make(map[gpucore.TextureID]*texture),
		views:            make(map[gpucore.TextureViewID]gpucore.TextureID),
		samplers:         make(map[gpucore.SamplerID]gpucore.SamplerDesc),
		modules:          make(map[gpucore.ShaderModuleID]*gpucore.ShaderModuleDesc),
		layouts:          make(map[gpucore.BindGroupLayoutID]*gpucore.BindGroupLayoutDesc),
		groups:           make(map[gpucore.BindGroupID]*bindGroup),
		computePipelines: make(map[gpucore.ComputePipelineID]*computePipeline),
		renderPipelines:  make(map[gpucore.RenderPipelineID]*renderPipeline),
	}
	d.logger.Store(slog.New(slog.DiscardHandler))
	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns "software".
func (d *Device) Name() string { return backend.BackendSoftware }

// SetLogger sets the device logger. Nil restores silent logging.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	d.logger.Store(l)
}

// SetMemoryLimit changes the buffer memory limit. Zero means no limit.
// Existing buffers are kept even if they exceed the new limit.
func (d *Device) SetMemoryLimit(bytes uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memoryLimit = bytes
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// TextureUsage returns the current usage state of a texture.
func (d *Device) TextureUsage(id gpucore.TextureID) (gpucore.TextureUsage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return 0, false
	}
	return t.usage, true
}

func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// Close releases all resources and stops the worker pool.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	clear(d.buffers)
	clear(d.textures)
	clear(d.views)
	clear(d.samplers)
	clear(d.modules)
	clear(d.layouts)
	clear(d.groups)
	clear(d.computePipelines)
	clear(d.renderPipelines)
	d.stats.LiveBuffers = 0
	d.stats.BufferBytes = 0
	d.pool.Close()
}

// === Buffer Management ===

// CreateBuffer creates a zero-filled buffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: buffer %q: zero size", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	if d.memoryLimit > 0 && d.stats.BufferBytes+desc.Size > d.memoryLimit {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer %q needs %d bytes, %d of %d in use",
			ErrOutOfMemory, desc.Label, desc.Size, d.stats.BufferBytes, d.memoryLimit)
	}

	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{desc: *desc, data: make([]byte, desc.Size)}
	d.stats.BuffersCreated++
	d.stats.LiveBuffers++
	d.stats.BufferBytes += desc.Size
	d.logger.Load().Debug("software: buffer created", "label", desc.Label, "size", desc.Size)
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	delete(d.buffers, id)
	d.stats.BuffersDestroyed++
	d.stats.LiveBuffers--
	d.stats.BufferBytes -= b.desc.Size
}

// WriteBuffer copies data into a buffer.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("software: write of %d bytes at %d overflows buffer %q (%d bytes)",
			len(data), offset, b.desc.Label, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// === Texture Management ===

// CreateTexture creates a texture in the undefined usage state.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: texture %q: zero extent", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = &texture{
		desc: *desc,
		img:  image.NewRGBA(image.Rect(0, 0, int(desc.Width), int(desc.Height))),
	}
	return id, nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, id)
}

// CreateTextureView creates a view of a texture.
func (d *Device) CreateTextureView(tex gpucore.TextureID, label string) (gpucore.TextureViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.textures[tex]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %d for view %q", gpucore.ErrUnknownResource, tex, label)
	}
	id := gpucore.TextureViewID(d.newID())
	d.views[id] = tex
	return id, nil
}

// DestroyTextureView releases a texture view.
func (d *Device) DestroyTextureView(id gpucore.TextureViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, id)
}

// ReadTexture returns a copy of a texture's contents.
func (d *Device) ReadTexture(id gpucore.TextureID) (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
	}
	out := image.NewRGBA(t.img.Rect)
	copy(out.Pix, t.img.Pix)
	return out, nil
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.SamplerID(d.newID())
	d.samplers[id] = *desc
	return id, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.samplers, id)
}

// === Shaders and Pipelines ===

// CreateShaderModule registers a module. The module must carry at least
// one CPU program; the WGSL source is not interpreted.
func (d *Device) CreateShaderModule(desc *gpucore.ShaderModuleDesc) (gpucore.ShaderModuleID, error) {
	if desc.Compute == nil && desc.Render == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: %q", ErrNoProgram, desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.ShaderModuleID(d.newID())
	m := *desc
	d.modules[id] = &m
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.modules, id)
}

// CreateBindGroupLayout creates a bind group layout.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	seen := make(map[uint32]bool, len(desc.Entries))
	for _, e := range desc.Entries {
		if seen[e.Binding] {
			return gpucore.InvalidID, fmt.Errorf("%w: layout %q: duplicate binding %d", ErrInvalidBinding, desc.Label, e.Binding)
		}
		seen[e.Binding] = true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.BindGroupLayoutID(d.newID())
	l := *desc
	l.Entries = append([]gpucore.BindGroupLayoutEntry(nil), desc.Entries...)
	d.layouts[id] = &l
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.layouts, id)
}

// CreateBindGroup creates a bind group after checking it against its layout.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	layout, ok := d.layouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: layout %d for bind group %q", gpucore.ErrUnknownResource, desc.Layout, desc.Label)
	}
	if len(desc.Entries) != len(layout.Entries) {
		return gpucore.InvalidID, fmt.Errorf("%w: bind group %q has %d entries, layout %q has %d",
			ErrInvalidBinding, desc.Label, len(desc.Entries), layout.Label, len(layout.Entries))
	}
	for _, le := range layout.Entries {
		e, found := findEntry(desc.Entries, le.Binding)
		if !found {
			return gpucore.InvalidID, fmt.Errorf("%w: bind group %q: binding %d missing", ErrInvalidBinding, desc.Label, le.Binding)
		}
		if err := d.checkEntry(le, e); err != nil {
			return gpucore.InvalidID, fmt.Errorf("bind group %q: %w", desc.Label, err)
		}
	}

	id := gpucore.BindGroupID(d.newID())
	d.groups[id] = &bindGroup{
		layout:  desc.Layout,
		entries: append([]gpucore.BindGroupEntry(nil), desc.Entries...),
	}
	return id, nil
}

func findEntry(entries []gpucore.BindGroupEntry, binding uint32) (gpucore.BindGroupEntry, bool) {
	for _, e := range entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return gpucore.BindGroupEntry{}, false
}

// checkEntry validates one entry against its layout entry.
// Must be called with mu held.
func (d *Device) checkEntry(le gpucore.BindGroupLayoutEntry, e gpucore.BindGroupEntry) error {
	switch le.Type {
	case gpucore.BindingTypeUniformBuffer, gpucore.BindingTypeStorageBuffer, gpucore.BindingTypeReadOnlyStorageBuffer:
		b, ok := d.buffers[e.Buffer]
		if !ok {
			return fmt.Errorf("%w: buffer %d at binding %d", gpucore.ErrUnknownResource, e.Buffer, e.Binding)
		}
		want := gpucore.BufferUsageStorage
		if le.Type == gpucore.BindingTypeUniformBuffer {
			want = gpucore.BufferUsageUniform
		}
		if b.desc.Usage&want == 0 {
			return fmt.Errorf("%w: buffer %q at binding %d lacks usage %#x", ErrInvalidBinding, b.desc.Label, e.Binding, want)
		}
		if e.Offset+e.Size > b.desc.Size {
			return fmt.Errorf("%w: range %d+%d exceeds buffer %q", ErrInvalidBinding, e.Offset, e.Size, b.desc.Label)
		}
	case gpucore.BindingTypeSampledTexture, gpucore.BindingTypeStorageTexture:
		texID, ok := d.views[e.TextureView]
		if !ok {
			return fmt.Errorf("%w: view %d at binding %d", gpucore.ErrUnknownResource, e.TextureView, e.Binding)
		}
		t := d.textures[texID]
		want := gpucore.TextureUsageTextureBinding
		if le.Type == gpucore.BindingTypeStorageTexture {
			want = gpucore.TextureUsageStorageBinding
		}
		if t == nil || t.desc.Usage&want == 0 {
			return fmt.Errorf("%w: texture at binding %d lacks usage %s", ErrInvalidBinding, e.Binding, want)
		}
	case gpucore.BindingTypeSampler:
		if _, ok := d.samplers[e.Sampler]; !ok {
			return fmt.Errorf("%w: sampler %d at binding %d", gpucore.ErrUnknownResource, e.Sampler, e.Binding)
		}
	default:
		return fmt.Errorf("%w: binding %d has unknown type %d", ErrInvalidBinding, le.Binding, le.Type)
	}
	return nil
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.groups, id)
}

// CreateComputePipeline creates a compute pipeline from a module's CPU
// compute program.
func (d *Device) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.modules[desc.ShaderModule]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", gpucore.ErrUnknownResource, desc.ShaderModule)
	}
	if m.Compute == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: %q has no compute stage", ErrNoProgram, m.Label)
	}
	if err := d.checkLayouts(desc.BindGroupLayouts); err != nil {
		return gpucore.InvalidID, fmt.Errorf("compute pipeline %q: %w", desc.Label, err)
	}
	id := gpucore.ComputePipelineID(d.newID())
	d.computePipelines[id] = &computePipeline{
		program: m.Compute,
		layouts: append([]gpucore.BindGroupLayoutID(nil), desc.BindGroupLayouts...),
	}
	return id, nil
}

// DestroyComputePipeline releases a compute pipeline.
func (d *Device) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.computePipelines, id)
}

// CreateRenderPipeline creates a render pipeline from a module's CPU
// render program.
func (d *Device) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.modules[desc.ShaderModule]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", gpucore.ErrUnknownResource, desc.ShaderModule)
	}
	if m.Render == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: %q has no render stages", ErrNoProgram, m.Label)
	}
	if err := d.checkLayouts(desc.BindGroupLayouts); err != nil {
		return gpucore.InvalidID, fmt.Errorf("render pipeline %q: %w", desc.Label, err)
	}
	id := gpucore.RenderPipelineID(d.newID())
	p := *desc
	p.BindGroupLayouts = append([]gpucore.BindGroupLayoutID(nil), desc.BindGroupLayouts...)
	d.renderPipelines[id] = &renderPipeline{program: m.Render, desc: p}
	return id, nil
}

// DestroyRenderPipeline releases a render pipeline.
func (d *Device) DestroyRenderPipeline(id gpucore.RenderPipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.renderPipelines, id)
}

// Must be called with mu held.
func (d *Device) checkLayouts(ids []gpucore.BindGroupLayoutID) error {
	if len(ids) > gpucore.MaxBindGroups {
		return fmt.Errorf("%w: %d bind groups, max %d", ErrInvalidBinding, len(ids), gpucore.MaxBindGroups)
	}
	for i, id := range ids {
		if _, ok := d.layouts[id]; !ok {
			return fmt.Errorf("%w: layout %d for group %d", gpucore.ErrUnknownResource, id, i)
		}
	}
	return nil
}
