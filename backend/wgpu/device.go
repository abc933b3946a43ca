// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // register the Vulkan hal backend

	"github.com/gogpu/raytrace/backend"
	"github.com/gogpu/raytrace/gpucore"
)

// Device errors.
var (
	// ErrNoAdapter is returned when no GPU adapter can be opened.
	ErrNoAdapter = errors.New("wgpu: no GPU adapter")

	// ErrUsageMismatch is returned when a transition's source state is not
	// the texture's current state.
	ErrUsageMismatch = errors.New("wgpu: texture usage mismatch")

	// ErrNotHAL is returned by NewFromProvider when the provider does not
	// expose hal types.
	ErrNotHAL = errors.New("wgpu: provider does not expose HAL types")
)

// waitTimeout bounds every fence wait.
const waitTimeout = 5 * time.Second

// rowAlignment is the required BytesPerRow alignment of texture copies.
const rowAlignment = 256

func init() {
	backend.Register(backend.BackendWGPU, func() (gpucore.Device, error) {
		return New()
	})
}

type buffer struct {
	buf  hal.Buffer
	desc gpucore.BufferDesc
}

type texture struct {
	tex   hal.Texture
	desc  gpucore.TextureDesc
	usage gpucore.TextureUsage
}

type textureView struct {
	view hal.TextureView
	tex  gpucore.TextureID
}

type bindGroupLayout struct {
	layout hal.BindGroupLayout
	desc   gpucore.BindGroupLayoutDesc
}

type computePipeline struct {
	pipeline hal.ComputePipeline
	layout   hal.PipelineLayout
}

type renderPipeline struct {
	pipeline hal.RenderPipeline
	layout   hal.PipelineLayout
}

// inflight is a submitted command buffer and the fence signaled when it
// completes. Objects destroyed while it was pending are freed with it.
type inflight struct {
	cmd     hal.CommandBuffer
	fence   hal.Fence
	retired []func()
}

// finish runs the deferred frees in destruction order.
func (f *inflight) finish() {
	for _, free := range f.retired {
		free()
	}
	f.retired = nil
}

// Device is a gpucore.Device backed by a hal device.
//
// Thread Safety: Device is safe for concurrent use from multiple goroutines.
type Device struct {
	mu       sync.Mutex
	logger   atomic.Pointer[slog.Logger]
	nextID   atomic.Uint64
	closed   bool
	external bool // true when using a shared device (don't destroy on Close)

	instance    hal.Instance
	device      hal.Device
	queue       hal.Queue
	adapterName string

	buffers          map[gpucore.BufferID]*buffer
	textures         map[gpucore.TextureID]*texture
	views            map[gpucore.TextureViewID]*textureView
	samplers         map[gpucore.SamplerID]hal.Sampler
	modules          map[gpucore.ShaderModuleID]hal.ShaderModule
	layouts          map[gpucore.BindGroupLayoutID]*bindGroupLayout
	groups           map[gpucore.BindGroupID]hal.BindGroup
	computePipelines map[gpucore.ComputePipelineID]*computePipeline
	renderPipelines  map[gpucore.RenderPipelineID]*renderPipeline

	pending []inflight
}

var _ gpucore.Device = (*Device)(nil)

// New opens the first discrete or integrated GPU adapter, or any adapter
// when neither is present.
func New() (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrNoAdapter, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open %s: %w", ErrNoAdapter, selected.Info.Name, err)
	}
	d := newDevice(open.Device, open.Queue)
	d.instance = instance
	d.adapterName = selected.Info.Name
	return d, nil
}

// NewFromProvider wraps the hal device of a host application. The provider
// must implement HalDevice() any and HalQueue() any returning hal.Device
// and hal.Queue. Close does not destroy the shared device.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHAL)
	}
	d := newDevice(device, queue)
	d.external = true
	d.adapterName = "shared"
	return d, nil
}

func newDevice(device hal.Device, queue hal.Queue) *Device {
	d := &Device{
		device:           device,
		queue:            queue,
		buffers:          make(map[gpucore.BufferID]*buffer),
		textures:         make(map[gpucore.TextureID]*texture),
		views:            make(map[gpucore.TextureViewID]*textureView),
		samplers:         make(map[gpucore.SamplerID]hal.Sampler),
		modules:          make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		layouts:          make(map[gpucore.BindGroupLayoutID]*bindGroupLayout),
		groups:           make(map[gpucore.BindGroupID]hal.BindGroup),
		computePipelines: make(map[gpucore.ComputePipelineID]*computePipeline),
		renderPipelines:  make(map[gpucore.RenderPipelineID]*renderPipeline),
	}
	d.logger.Store(slog.New(slog.DiscardHandler))
	d.nextID.Store(1)
	return d
}

// Name returns "wgpu".
func (d *Device) Name() string { return backend.BackendWGPU }

// AdapterName returns the name of the opened adapter.
func (d *Device) AdapterName() string { return d.adapterName }

// SetLogger sets the device logger. Nil restores silent logging.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	d.logger.Store(l)
}

// TextureUsage returns the tracked usage state of a texture.
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

// Close waits for submitted work and releases every live resource.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.reapLocked(true)

	for id, g := range d.groups {
		d.device.DestroyBindGroup(g)
		delete(d.groups, id)
	}
	for id, p := range d.computePipelines {
		d.device.DestroyComputePipeline(p.pipeline)
		d.device.DestroyPipelineLayout(p.layout)
		delete(d.computePipelines, id)
	}
	for id, p := range d.renderPipelines {
		d.device.DestroyRenderPipeline(p.pipeline)
		d.device.DestroyPipelineLayout(p.layout)
		delete(d.renderPipelines, id)
	}
	for id, l := range d.layouts {
		d.device.DestroyBindGroupLayout(l.layout)
		delete(d.layouts, id)
	}
	for id, m := range d.modules {
		d.device.DestroyShaderModule(m)
		delete(d.modules, id)
	}
	for id, s := range d.samplers {
		d.device.DestroySampler(s)
		delete(d.samplers, id)
	}
	for id, v := range d.views {
		d.device.DestroyTextureView(v.view)
		delete(d.views, id)
	}
	for id, t := range d.textures {
		d.device.DestroyTexture(t.tex)
		delete(d.textures, id)
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}

	if !d.external {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
	d.logger.Load().Info("wgpu: device closed", "adapter", d.adapterName)
}

// reapLocked frees command buffers whose fences have signaled. With wait
// set it blocks until all submitted work completes.
func (d *Device) reapLocked(wait bool) {
	timeout := time.Duration(0)
	if wait {
		timeout = waitTimeout
	}
	kept := d.pending[:0]
	for _, f := range d.pending {
		done, err := d.device.Wait(f.fence, 1, timeout)
		if err != nil {
			d.logger.Load().Warn("wgpu: fence wait failed", "err", err)
		}
		if !done && err == nil && !wait {
			kept = append(kept, f)
			continue
		}
		d.device.FreeCommandBuffer(f.cmd)
		d.device.DestroyFence(f.fence)
		f.finish()
	}
	clear(d.pending[len(kept):])
	d.pending = kept
}

// retireLocked frees a hal object once all work submitted so far has
// completed, or at once when nothing is in flight. The queue executes in
// submission order, so the newest fence covers every earlier submission.
// Must be called with mu held.
func (d *Device) retireLocked(free func()) {
	if len(d.pending) == 0 {
		free()
		return
	}
	last := &d.pending[len(d.pending)-1]
	last.retired = append(last.retired, free)
}

// === Buffer Management ===

// CreateBuffer creates a buffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("wgpu: buffer %q: zero size", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create buffer %q: %w", desc.Label, err)
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{buf: buf, desc: *desc}
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		d.retireLocked(func() { d.device.DestroyBuffer(b.buf) })
		delete(d.buffers, id)
	}
}

// WriteBuffer queues a write to a buffer.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("wgpu: write of %d bytes at %d overflows buffer %q (%d bytes)",
			len(data), offset, b.desc.Label, b.desc.Size)
	}
	d.queue.WriteBuffer(b.buf, offset, data)
	return nil
}

// === Texture Management ===

// CreateTexture creates a 2D texture in the undefined usage state.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("wgpu: texture %q: zero extent", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat(desc.Format),
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = &texture{tex: tex, desc: *desc}
	return id, nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.textures[id]; ok {
		d.retireLocked(func() { d.device.DestroyTexture(t.tex) })
		delete(d.textures, id)
	}
}

// CreateTextureView creates a full 2D view of a texture.
func (d *Device) CreateTextureView(tex gpucore.TextureID, label string) (gpucore.TextureViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[tex]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %d for view %q", gpucore.ErrUnknownResource, tex, label)
	}
	view, err := d.device.CreateTextureView(t.tex, &hal.TextureViewDescriptor{
		Label:         label,
		Format:        textureFormat(t.desc.Format),
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create view %q: %w", label, err)
	}
	id := gpucore.TextureViewID(d.newID())
	d.views[id] = &textureView{view: view, tex: tex}
	return id, nil
}

// DestroyTextureView releases a texture view.
func (d *Device) DestroyTextureView(id gpucore.TextureViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.views[id]; ok {
		d.retireLocked(func() { d.device.DestroyTextureView(v.view) })
		delete(d.views, id)
	}
}

// ReadTexture waits for submitted work and copies a texture to the CPU.
// The texture must have been created with TextureUsageCopySrc. Its usage
// state is unchanged on return. A texture that was never transitioned has
// undefined contents and reads back as transparent black.
func (d *Device) ReadTexture(id gpucore.TextureID) (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, gpucore.ErrDeviceClosed
	}
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
	}
	w, h := t.desc.Width, t.desc.Height
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	if t.usage == gpucore.TextureUsageUndefined {
		return img, nil
	}
	if t.desc.Usage&gpucore.TextureUsageCopySrc == 0 {
		return nil, fmt.Errorf("wgpu: texture %q was not created with usage %s", t.desc.Label, gpucore.TextureUsageCopySrc)
	}

	bytesPerRow := alignUp(w*4, rowAlignment)
	size := uint64(bytesPerRow) * uint64(h)
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create encoder: %w", err)
	}
	if err := enc.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	if t.usage != gpucore.TextureUsageCopySrc {
		enc.TransitionTextures([]hal.TextureBarrier{barrier(t.tex, t.usage, gpucore.TextureUsageCopySrc)})
	}
	enc.CopyTextureToBuffer(t.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	if t.usage != gpucore.TextureUsageCopySrc {
		enc.TransitionTextures([]hal.TextureBarrier{barrier(t.tex, gpucore.TextureUsageCopySrc, t.usage)})
	}
	cmd, err := enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		return nil, fmt.Errorf("wgpu: submit readback: %w", err)
	}
	// Queue order puts the readback after all earlier submissions.
	ok, err = d.device.Wait(fence, 1, waitTimeout)
	if err != nil || !ok {
		return nil, fmt.Errorf("wgpu: wait for readback: ok=%v err=%w", ok, err)
	}
	d.reapLocked(true)

	raw := make([]byte, size)
	if err := d.queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("wgpu: readback: %w", err)
	}
	unpackRows(img, raw, int(bytesPerRow), t.desc.Format == gpucore.TextureFormatBGRA8Unorm)
	return img, nil
}

// unpackRows copies padded rows into img, swapping red and blue for BGRA.
func unpackRows(img *image.RGBA, raw []byte, bytesPerRow int, bgra bool) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		copy(row, raw[y*bytesPerRow:])
		if bgra {
			for i := 0; i < len(row); i += 4 {
				row[i], row[i+2] = row[i+2], row[i]
			}
		}
	}
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}

// CreateSampler creates a clamp-to-edge sampler.
func (d *Device) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	filter := gputypes.FilterModeNearest
	if desc.Filter == gpucore.FilterLinear {
		filter = gputypes.FilterModeLinear
	}
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: filter,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create sampler %q: %w", desc.Label, err)
	}
	id := gpucore.SamplerID(d.newID())
	d.samplers[id] = s
	return id, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.samplers[id]; ok {
		d.retireLocked(func() { d.device.DestroySampler(s) })
		delete(d.samplers, id)
	}
}

// === Shaders and Pipelines ===

// CreateShaderModule compiles the module's WGSL source.
func (d *Device) CreateShaderModule(desc *gpucore.ShaderModuleDesc) (gpucore.ShaderModuleID, error) {
	if desc.WGSL == "" {
		return gpucore.InvalidID, fmt.Errorf("wgpu: shader module %q has no WGSL source", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	m, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{WGSL: desc.WGSL},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: compile %q: %w", desc.Label, err)
	}
	id := gpucore.ShaderModuleID(d.newID())
	d.modules[id] = m
	d.logger.Load().Debug("wgpu: shader module compiled", "label", desc.Label)
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.modules[id]; ok {
		d.device.DestroyShaderModule(m)
		delete(d.modules, id)
	}
}

// CreateBindGroupLayout creates a bind group layout.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entries = append(entries, layoutEntry(e))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	l, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create layout %q: %w", desc.Label, err)
	}
	id := gpucore.BindGroupLayoutID(d.newID())
	kept := *desc
	kept.Entries = append([]gpucore.BindGroupLayoutEntry(nil), desc.Entries...)
	d.layouts[id] = &bindGroupLayout{layout: l, desc: kept}
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.layouts[id]; ok {
		d.device.DestroyBindGroupLayout(l.layout)
		delete(d.layouts, id)
	}
}

// CreateBindGroup creates a bind group.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	layout, ok := d.layouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: layout %d for bind group %q", gpucore.ErrUnknownResource, desc.Layout, desc.Label)
	}
	entries := make([]gputypes.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry, err := d.groupEntry(e)
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("wgpu: bind group %q: %w", desc.Label, err)
		}
		entries = append(entries, entry)
	}
	g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create bind group %q: %w", desc.Label, err)
	}
	id := gpucore.BindGroupID(d.newID())
	d.groups[id] = g
	return id, nil
}

// groupEntry converts an entry. Must be called with mu held.
func (d *Device) groupEntry(e gpucore.BindGroupEntry) (gputypes.BindGroupEntry, error) {
	out := gputypes.BindGroupEntry{Binding: e.Binding}
	switch {
	case e.Buffer != gpucore.InvalidID:
		b, ok := d.buffers[e.Buffer]
		if !ok {
			return out, fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, e.Buffer)
		}
		size := e.Size
		if size == 0 {
			size = b.desc.Size - e.Offset
		}
		out.Resource = gputypes.BufferBinding{Buffer: b.buf.NativeHandle(), Offset: e.Offset, Size: size}
	case e.TextureView != gpucore.InvalidID:
		v, ok := d.views[e.TextureView]
		if !ok {
			return out, fmt.Errorf("%w: texture view %d", gpucore.ErrUnknownResource, e.TextureView)
		}
		out.Resource = gputypes.TextureViewBinding{TextureView: v.view.NativeHandle()}
	case e.Sampler != gpucore.InvalidID:
		s, ok := d.samplers[e.Sampler]
		if !ok {
			return out, fmt.Errorf("%w: sampler %d", gpucore.ErrUnknownResource, e.Sampler)
		}
		out.Resource = gputypes.SamplerBinding{Sampler: s.NativeHandle()}
	default:
		return out, fmt.Errorf("binding %d names no resource", e.Binding)
	}
	return out, nil
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g, ok := d.groups[id]; ok {
		d.retireLocked(func() { d.device.DestroyBindGroup(g) })
		delete(d.groups, id)
	}
}

// pipelineLayout creates a pipeline layout. Must be called with mu held.
func (d *Device) pipelineLayout(label string, ids []gpucore.BindGroupLayoutID) (hal.PipelineLayout, error) {
	layouts := make([]hal.BindGroupLayout, 0, len(ids))
	for _, id := range ids {
		l, ok := d.layouts[id]
		if !ok {
			return nil, fmt.Errorf("%w: layout %d", gpucore.ErrUnknownResource, id)
		}
		layouts = append(layouts, l.layout)
	}
	return d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: layouts,
	})
}

// CreateComputePipeline creates a compute pipeline.
func (d *Device) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	m, ok := d.modules[desc.ShaderModule]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", gpucore.ErrUnknownResource, desc.ShaderModule)
	}
	layout, err := d.pipelineLayout(desc.Label+"_layout", desc.BindGroupLayouts)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: pipeline %q: %w", desc.Label, err)
	}
	p, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Compute: hal.ComputeState{Module: m, EntryPoint: desc.EntryPoint},
	})
	if err != nil {
		d.device.DestroyPipelineLayout(layout)
		return gpucore.InvalidID, fmt.Errorf("wgpu: create compute pipeline %q: %w", desc.Label, err)
	}
	id := gpucore.ComputePipelineID(d.newID())
	d.computePipelines[id] = &computePipeline{pipeline: p, layout: layout}
	return id, nil
}

// DestroyComputePipeline releases a compute pipeline.
func (d *Device) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.computePipelines[id]; ok {
		d.retireLocked(func() {
			d.device.DestroyComputePipeline(p.pipeline)
			d.device.DestroyPipelineLayout(p.layout)
		})
		delete(d.computePipelines, id)
	}
}

// CreateRenderPipeline creates a triangle-list render pipeline with one
// vertex buffer and one color target.
func (d *Device) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	m, ok := d.modules[desc.ShaderModule]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", gpucore.ErrUnknownResource, desc.ShaderModule)
	}
	layout, err := d.pipelineLayout(desc.Label+"_layout", desc.BindGroupLayouts)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: pipeline %q: %w", desc.Label, err)
	}
	attrs := make([]gputypes.VertexAttribute, 0, len(desc.VertexAttributes))
	for _, a := range desc.VertexAttributes {
		attrs = append(attrs, gputypes.VertexAttribute{
			Format:         vertexFormat(a.Format),
			Offset:         a.Offset,
			ShaderLocation: a.Location,
		})
	}
	p, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     m,
			EntryPoint: desc.VertexEntry,
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: desc.VertexStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes:  attrs,
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     m,
			EntryPoint: desc.FragmentEntry,
			Targets: []gputypes.ColorTargetState{{
				Format:    textureFormat(desc.TargetFormat),
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		d.device.DestroyPipelineLayout(layout)
		return gpucore.InvalidID, fmt.Errorf("wgpu: create render pipeline %q: %w", desc.Label, err)
	}
	id := gpucore.RenderPipelineID(d.newID())
	d.renderPipelines[id] = &renderPipeline{pipeline: p, layout: layout}
	return id, nil
}

// DestroyRenderPipeline releases a render pipeline.
func (d *Device) DestroyRenderPipeline(id gpucore.RenderPipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.renderPipelines[id]; ok {
		d.retireLocked(func() {
			d.device.DestroyRenderPipeline(p.pipeline)
			d.device.DestroyPipelineLayout(p.layout)
		})
		delete(d.renderPipelines, id)
	}
}
