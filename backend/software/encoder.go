// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/gogpu/raytrace/gpucore"
)

// errEncoderFinished is returned when an encoder is used after Submit or
// Discard.
var errEncoderFinished = errors.New("software: command encoder already finished")

// command is one recorded operation. It runs with the device lock held.
type command func(d *Device) error

// encoder records commands and runs them on Submit.
//
// State machine:
//
//	Recording -> (BeginComputePass/BeginRenderPass) -> InPass -> (End) -> Recording
//	Recording -> (Submit/Discard) -> Finished
type encoder struct {
	dev      *Device
	label    string
	cmds     []command
	inPass   bool
	finished bool
	err      error
}

// BeginCommands starts recording a command stream.
func (d *Device) BeginCommands(label string) (gpucore.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, gpucore.ErrDeviceClosed
	}
	return &encoder{dev: d, label: label}, nil
}

// fail records the first recording error; Submit reports it.
func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) record(c command) {
	if e.finished {
		e.fail(errEncoderFinished)
		return
	}
	e.cmds = append(e.cmds, c)
}

func (e *encoder) beginPass() {
	if e.inPass {
		e.fail(fmt.Errorf("software: %q: pass begun while another pass is open", e.label))
	}
	e.inPass = true
}

func (e *encoder) BeginComputePass(label string) gpucore.ComputePassEncoder {
	e.beginPass()
	return &computePass{enc: e, label: label}
}

func (e *encoder) BeginRenderPass(desc *gpucore.RenderPassDesc) gpucore.RenderPassEncoder {
	e.beginPass()
	rp := &renderPass{enc: e, label: desc.Label, target: desc.Target}
	d := *desc
	e.record(func(dev *Device) error { return dev.beginRenderPass(&d) })
	return rp
}

func (e *encoder) TransitionTexture(id gpucore.TextureID, from, to gpucore.TextureUsage) {
	if e.inPass {
		e.fail(fmt.Errorf("software: %q: transition inside a pass", e.label))
	}
	e.record(func(d *Device) error {
		t, ok := d.textures[id]
		if !ok {
			return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
		}
		if t.usage != from {
			return fmt.Errorf("%w: texture %q is %s, transition expects %s", ErrUsageMismatch, t.desc.Label, t.usage, from)
		}
		if to != gpucore.TextureUsageUndefined && t.desc.Usage&to == 0 {
			return fmt.Errorf("%w: texture %q was not created with usage %s", ErrInvalidBinding, t.desc.Label, to)
		}
		t.usage = to
		return nil
	})
}

// Submit executes the recorded commands in order. Execution stops at the
// first failing command; commands before it have taken effect.
func (e *encoder) Submit() error {
	if e.finished {
		return errEncoderFinished
	}
	e.finished = true
	if e.inPass {
		e.fail(fmt.Errorf("software: %q: submitted with an open pass", e.label))
	}
	if e.err != nil {
		return e.err
	}

	d := e.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.ErrDeviceClosed
	}
	d.stats.Submits++
	for i, c := range e.cmds {
		if err := c(d); err != nil {
			return fmt.Errorf("software: %q command %d: %w", e.label, i, err)
		}
	}
	return nil
}

func (e *encoder) Discard() {
	e.finished = true
	e.cmds = nil
}

// === Compute ===

type computePass struct {
	enc      *encoder
	label    string
	pipeline gpucore.ComputePipelineID
	groups   [gpucore.MaxBindGroups]gpucore.BindGroupID
}

func (p *computePass) SetPipeline(pipeline gpucore.ComputePipelineID) { p.pipeline = pipeline }

func (p *computePass) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	if index >= gpucore.MaxBindGroups {
		p.enc.fail(fmt.Errorf("%w: group index %d", ErrInvalidBinding, index))
		return
	}
	p.groups[index] = group
}

func (p *computePass) Dispatch(x, y, z uint32) {
	pipeline, groups, label := p.pipeline, p.groups, p.label
	p.enc.record(func(d *Device) error {
		if err := d.dispatch(pipeline, groups, x, y, z); err != nil {
			return fmt.Errorf("pass %q: %w", label, err)
		}
		return nil
	})
}

func (p *computePass) End() { p.enc.inPass = false }

// dispatch runs a compute program over an x*y*z workgroup grid.
// Must be called with mu held.
func (d *Device) dispatch(id gpucore.ComputePipelineID, groups [gpucore.MaxBindGroups]gpucore.BindGroupID, x, y, z uint32) error {
	cp, ok := d.computePipelines[id]
	if !ok {
		return fmt.Errorf("%w: compute pipeline %d", gpucore.ErrUnknownResource, id)
	}
	b, err := d.resolve(cp.layouts, groups)
	if err != nil {
		return err
	}
	inv, err := cp.program.Bind(b)
	if err != nil {
		return err
	}

	ws := cp.program.WorkgroupSize()
	d.pool.Dispatch(x, y, z, func(g [3]uint32) {
		for lz := range ws[2] {
			for ly := range ws[1] {
				for lx := range ws[0] {
					inv([3]uint32{g[0]*ws[0] + lx, g[1]*ws[1] + ly, g[2]*ws[2] + lz})
				}
			}
		}
	})
	d.stats.Dispatches++
	d.logger.Load().Debug("software: dispatch", "groups", [3]uint32{x, y, z}, "workgroup", ws)
	return nil
}

// === Render ===

type renderPass struct {
	enc      *encoder
	label    string
	target   gpucore.TextureViewID
	pipeline gpucore.RenderPipelineID
	groups   [gpucore.MaxBindGroups]gpucore.BindGroupID
	vertex   gpucore.BufferID
	offset   uint64
}

func (p *renderPass) SetPipeline(pipeline gpucore.RenderPipelineID) { p.pipeline = pipeline }

func (p *renderPass) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	if index >= gpucore.MaxBindGroups {
		p.enc.fail(fmt.Errorf("%w: group index %d", ErrInvalidBinding, index))
		return
	}
	p.groups[index] = group
}

func (p *renderPass) SetVertexBuffer(slot uint32, buffer gpucore.BufferID, offset uint64) {
	if slot != 0 {
		p.enc.fail(fmt.Errorf("%w: vertex slot %d", ErrInvalidBinding, slot))
		return
	}
	p.vertex, p.offset = buffer, offset
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, _ uint32) {
	if instanceCount == 0 {
		return
	}
	pipeline, groups, vb, off, target, label := p.pipeline, p.groups, p.vertex, p.offset, p.target, p.label
	p.enc.record(func(d *Device) error {
		if err := d.draw(pipeline, groups, vb, off, target, firstVertex, vertexCount); err != nil {
			return fmt.Errorf("pass %q: %w", label, err)
		}
		return nil
	})
}

func (p *renderPass) End() { p.enc.inPass = false }

// beginRenderPass moves the target into the render attachment state and
// applies the load op. Must be called with mu held.
func (d *Device) beginRenderPass(desc *gpucore.RenderPassDesc) error {
	t, err := d.viewTexture(desc.Target)
	if err != nil {
		return err
	}
	if t.desc.Usage&gpucore.TextureUsageRenderAttachment == 0 {
		return fmt.Errorf("%w: texture %q is not a render attachment", ErrInvalidBinding, t.desc.Label)
	}
	if t.usage == gpucore.TextureUsageStorageBinding {
		return fmt.Errorf("%w: texture %q is in %s", ErrHazard, t.desc.Label, t.usage)
	}
	t.usage = gpucore.TextureUsageRenderAttachment
	if desc.Clear {
		c := desc.ClearColor
		fill := color.RGBA{R: unorm(c.R), G: unorm(c.G), B: unorm(c.B), A: unorm(c.A)}
		draw.Draw(t.img, t.img.Rect, image.NewUniform(fill), image.Point{}, draw.Src)
	}
	return nil
}

// draw runs a render program. Must be called with mu held.
func (d *Device) draw(
	id gpucore.RenderPipelineID, groups [gpucore.MaxBindGroups]gpucore.BindGroupID,
	vb gpucore.BufferID, offset uint64, target gpucore.TextureViewID, first, count uint32,
) error {
	rp, ok := d.renderPipelines[id]
	if !ok {
		return fmt.Errorf("%w: render pipeline %d", gpucore.ErrUnknownResource, id)
	}
	buf, ok := d.buffers[vb]
	if !ok {
		return fmt.Errorf("%w: vertex buffer %d", gpucore.ErrUnknownResource, vb)
	}
	if buf.desc.Usage&gpucore.BufferUsageVertex == 0 {
		return fmt.Errorf("%w: buffer %q is not a vertex buffer", ErrInvalidBinding, buf.desc.Label)
	}
	if offset > uint64(len(buf.data)) {
		return fmt.Errorf("%w: vertex offset %d past buffer %q", ErrInvalidBinding, offset, buf.desc.Label)
	}
	t, err := d.viewTexture(target)
	if err != nil {
		return err
	}
	b, err := d.resolve(rp.desc.BindGroupLayouts, groups)
	if err != nil {
		return err
	}
	if err := rp.program.Draw(b, buf.data[offset:], rp.desc.VertexStride, first, count, t.img); err != nil {
		return err
	}
	d.stats.Draws++
	return nil
}

// === Binding resolution ===

// Must be called with mu held.
func (d *Device) viewTexture(id gpucore.TextureViewID) (*texture, error) {
	texID, ok := d.views[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture view %d", gpucore.ErrUnknownResource, id)
	}
	t, ok := d.textures[texID]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d behind view %d", gpucore.ErrUnknownResource, texID, id)
	}
	return t, nil
}

// resolve turns bound groups into program bindings and checks every
// texture against its current usage state. Must be called with mu held.
func (d *Device) resolve(layouts []gpucore.BindGroupLayoutID, groups [gpucore.MaxBindGroups]gpucore.BindGroupID) (*gpucore.Bindings, error) {
	var b gpucore.Bindings
	for i, layoutID := range layouts {
		g, ok := d.groups[groups[i]]
		if !ok {
			return nil, fmt.Errorf("%w: no bind group at index %d", ErrInvalidBinding, i)
		}
		if g.layout != layoutID {
			return nil, fmt.Errorf("%w: bind group at index %d has layout %d, pipeline expects %d", ErrInvalidBinding, i, g.layout, layoutID)
		}
		layout, ok := d.layouts[layoutID]
		if !ok {
			return nil, fmt.Errorf("%w: layout %d", gpucore.ErrUnknownResource, layoutID)
		}
		for _, le := range layout.Entries {
			e, _ := findEntry(g.entries, le.Binding)
			r, err := d.resource(le, e)
			if err != nil {
				return nil, fmt.Errorf("@group(%d) @binding(%d): %w", i, le.Binding, err)
			}
			b.Set(uint32(i), le.Binding, r) //nolint:gosec // i < MaxBindGroups
		}
	}
	return &b, nil
}

// Must be called with mu held.
func (d *Device) resource(le gpucore.BindGroupLayoutEntry, e gpucore.BindGroupEntry) (gpucore.Resource, error) {
	switch le.Type {
	case gpucore.BindingTypeSampler:
		s, ok := d.samplers[e.Sampler]
		if !ok {
			return gpucore.Resource{}, fmt.Errorf("%w: sampler %d", gpucore.ErrUnknownResource, e.Sampler)
		}
		return gpucore.Resource{IsSampler: true, Filter: s.Filter}, nil

	case gpucore.BindingTypeSampledTexture, gpucore.BindingTypeStorageTexture:
		t, err := d.viewTexture(e.TextureView)
		if err != nil {
			return gpucore.Resource{}, err
		}
		want := gpucore.TextureUsageTextureBinding
		if le.Type == gpucore.BindingTypeStorageTexture {
			want = gpucore.TextureUsageStorageBinding
		}
		if t.usage != want {
			return gpucore.Resource{}, fmt.Errorf("%w: texture %q bound for %s while in %s", ErrHazard, t.desc.Label, want, t.usage)
		}
		return gpucore.Resource{Texture: t.img}, nil

	default:
		buf, ok := d.buffers[e.Buffer]
		if !ok {
			return gpucore.Resource{}, fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, e.Buffer)
		}
		end := uint64(len(buf.data))
		if e.Size > 0 {
			end = e.Offset + e.Size
		}
		return gpucore.Resource{Buffer: buf.data[e.Offset:end]}, nil
	}
}

func unorm(v float64) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
