// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/raytrace/gpucore"
)

// errEncoderFinished is returned when an encoder is used after Submit or
// Discard.
var errEncoderFinished = errors.New("wgpu: command encoder already finished")

// encoder records directly into a hal command encoder. Texture usage
// states are projected while recording and committed to the device on
// Submit.
type encoder struct {
	dev      *Device
	label    string
	enc      hal.CommandEncoder
	usage    map[gpucore.TextureID]gpucore.TextureUsage
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
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create encoder %q: %w", label, err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding %q: %w", label, err)
	}
	return &encoder{
		dev:   d,
		label: label,
		enc:   enc,
		usage: make(map[gpucore.TextureID]gpucore.TextureUsage),
	}, nil
}

// fail records the first recording error; Submit reports it.
func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) usable() bool {
	if e.finished {
		e.fail(errEncoderFinished)
		return false
	}
	return e.err == nil
}

func (e *encoder) beginPass() {
	if e.inPass {
		e.fail(fmt.Errorf("wgpu: %q: pass begun while another pass is open", e.label))
	}
	e.inPass = true
}

func (e *encoder) BeginComputePass(label string) gpucore.ComputePassEncoder {
	e.beginPass()
	p := &computePass{enc: e}
	if e.usable() {
		p.pass = e.enc.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	}
	return p
}

func (e *encoder) BeginRenderPass(desc *gpucore.RenderPassDesc) gpucore.RenderPassEncoder {
	e.beginPass()
	p := &renderPass{enc: e}
	if !e.usable() {
		return p
	}
	d := e.dev
	d.mu.Lock()
	v, ok := d.views[desc.Target]
	var t *texture
	if ok {
		t, ok = d.textures[v.tex]
	}
	d.mu.Unlock()
	if !ok {
		e.fail(fmt.Errorf("%w: render target view %d", gpucore.ErrUnknownResource, desc.Target))
		return p
	}
	current, seen := e.usage[v.tex]
	if !seen {
		current, _ = d.TextureUsage(v.tex)
	}
	if current != gpucore.TextureUsageRenderAttachment {
		e.enc.TransitionTextures([]hal.TextureBarrier{barrier(t.tex, current, gpucore.TextureUsageRenderAttachment)})
		e.usage[v.tex] = gpucore.TextureUsageRenderAttachment
	}
	load := gputypes.LoadOpLoad
	if desc.Clear {
		load = gputypes.LoadOpClear
	}
	c := desc.ClearColor
	p.pass = e.enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       v.view,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: c.R, G: c.G, B: c.B, A: c.A},
		}},
	})
	return p
}

func (e *encoder) TransitionTexture(id gpucore.TextureID, from, to gpucore.TextureUsage) {
	if e.inPass {
		e.fail(fmt.Errorf("wgpu: %q: transition inside a pass", e.label))
	}
	if !e.usable() {
		return
	}
	d := e.dev
	d.mu.Lock()
	t, ok := d.textures[id]
	d.mu.Unlock()
	if !ok {
		e.fail(fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id))
		return
	}
	current, seen := e.usage[id]
	if !seen {
		current, _ = d.TextureUsage(id)
	}
	if current != from {
		e.fail(fmt.Errorf("%w: texture %q is %s, transition expects %s", ErrUsageMismatch, t.desc.Label, current, from))
		return
	}
	if to != gpucore.TextureUsageUndefined && t.desc.Usage&to == 0 {
		e.fail(fmt.Errorf("wgpu: texture %q was not created with usage %s", t.desc.Label, to))
		return
	}
	e.enc.TransitionTextures([]hal.TextureBarrier{barrier(t.tex, from, to)})
	e.usage[id] = to
}

// Submit ends recording and queues the command buffer behind a fence.
func (e *encoder) Submit() error {
	if e.finished {
		return errEncoderFinished
	}
	e.finished = true
	if e.inPass {
		e.fail(fmt.Errorf("wgpu: %q: submitted with an open pass", e.label))
	}
	if e.err != nil {
		e.enc.DiscardEncoding()
		return e.err
	}
	cmd, err := e.enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: %q: end encoding: %w", e.label, err)
	}

	d := e.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.ErrDeviceClosed
	}
	fence, err := d.device.CreateFence()
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("wgpu: %q: create fence: %w", e.label, err)
	}
	if err := d.queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		d.device.FreeCommandBuffer(cmd)
		d.device.DestroyFence(fence)
		return fmt.Errorf("wgpu: %q: submit: %w", e.label, err)
	}
	d.pending = append(d.pending, inflight{cmd: cmd, fence: fence})
	for id, u := range e.usage {
		if t, ok := d.textures[id]; ok {
			t.usage = u
		}
	}
	d.reapLocked(false)
	d.logger.Load().Debug("wgpu: submit", "label", e.label, "inflight", len(d.pending))
	return nil
}

func (e *encoder) Discard() {
	if e.finished {
		return
	}
	e.finished = true
	e.enc.DiscardEncoding()
}

// === Compute ===

type computePass struct {
	enc  *encoder
	pass hal.ComputePassEncoder
}

func (p *computePass) SetPipeline(id gpucore.ComputePipelineID) {
	if p.pass == nil {
		return
	}
	d := p.enc.dev
	d.mu.Lock()
	cp, ok := d.computePipelines[id]
	d.mu.Unlock()
	if !ok {
		p.enc.fail(fmt.Errorf("%w: compute pipeline %d", gpucore.ErrUnknownResource, id))
		return
	}
	p.pass.SetPipeline(cp.pipeline)
}

func (p *computePass) SetBindGroup(index uint32, id gpucore.BindGroupID) {
	if p.pass == nil {
		return
	}
	g, err := p.enc.group(index, id)
	if err != nil {
		p.enc.fail(err)
		return
	}
	p.pass.SetBindGroup(index, g, nil)
}

func (p *computePass) Dispatch(x, y, z uint32) {
	if p.pass != nil && p.enc.err == nil {
		p.pass.Dispatch(x, y, z)
	}
}

func (p *computePass) End() {
	if p.pass != nil {
		p.pass.End()
	}
	p.enc.inPass = false
}

// group resolves a bind group for slot index.
func (e *encoder) group(index uint32, id gpucore.BindGroupID) (hal.BindGroup, error) {
	if index >= gpucore.MaxBindGroups {
		return nil, fmt.Errorf("wgpu: %q: bind group index %d out of range", e.label, index)
	}
	d := e.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: bind group %d", gpucore.ErrUnknownResource, id)
	}
	return g, nil
}

// === Render ===

type renderPass struct {
	enc  *encoder
	pass hal.RenderPassEncoder
}

func (p *renderPass) SetPipeline(id gpucore.RenderPipelineID) {
	if p.pass == nil {
		return
	}
	d := p.enc.dev
	d.mu.Lock()
	rp, ok := d.renderPipelines[id]
	d.mu.Unlock()
	if !ok {
		p.enc.fail(fmt.Errorf("%w: render pipeline %d", gpucore.ErrUnknownResource, id))
		return
	}
	p.pass.SetPipeline(rp.pipeline)
}

func (p *renderPass) SetBindGroup(index uint32, id gpucore.BindGroupID) {
	if p.pass == nil {
		return
	}
	g, err := p.enc.group(index, id)
	if err != nil {
		p.enc.fail(err)
		return
	}
	p.pass.SetBindGroup(index, g, nil)
}

func (p *renderPass) SetVertexBuffer(slot uint32, id gpucore.BufferID, offset uint64) {
	if p.pass == nil {
		return
	}
	d := p.enc.dev
	d.mu.Lock()
	b, ok := d.buffers[id]
	d.mu.Unlock()
	if !ok {
		p.enc.fail(fmt.Errorf("%w: vertex buffer %d", gpucore.ErrUnknownResource, id))
		return
	}
	p.pass.SetVertexBuffer(slot, b.buf, offset)
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if p.pass != nil && p.enc.err == nil {
		p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	}
}

func (p *renderPass) End() {
	if p.pass != nil {
		p.pass.End()
	}
	p.enc.inPass = false
}
