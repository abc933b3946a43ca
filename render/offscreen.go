// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
)

// ErrUnknownShader is returned by BindShader for a kind the renderer does
// not provide.
var ErrUnknownShader = errors.New("render: unknown shader kind")

// Default surface size.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Option configures an Offscreen renderer.
type Option func(*options)

type options struct {
	width, height int
}

// WithSize sets the surface size. Default: 800x600.
func WithSize(width, height int) Option {
	return func(o *options) {
		o.width, o.height = width, height
	}
}

// Offscreen is a renderer that presents into a Surface instead of a
// window. It owns the textured pipeline, the samplers and the transform
// uniform buffer, and tracks which shader and sampler are bound.
//
// Offscreen is not safe for concurrent use.
type Offscreen struct {
	dev     gpucore.Device
	surface *Surface
	logger  atomic.Pointer[slog.Logger]

	transforms   [gpucore.TransformCount]mgl32.Mat4
	transformBuf gpucore.BufferID

	module   gpucore.ShaderModuleID
	layout   gpucore.BindGroupLayoutID
	pipeline gpucore.RenderPipelineID
	nearest  gpucore.SamplerID
	linear   gpucore.SamplerID

	boundShader  gpucore.ShaderKind
	boundSampler gpucore.SamplerID
}

// NewOffscreen creates the presentation resources on dev. All transforms
// start as identity.
func NewOffscreen(dev gpucore.Device, opts ...Option) (*Offscreen, error) {
	o := options{width: DefaultWidth, height: DefaultHeight}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Offscreen{dev: dev}
	r.logger.Store(slog.New(slog.DiscardHandler))
	for i := range r.transforms {
		r.transforms[i] = mgl32.Ident4()
	}

	var err error
	if r.surface, err = NewSurface(dev, o.width, o.height); err != nil {
		return nil, err
	}
	if err = r.createPipeline(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Offscreen) createPipeline() error {
	var err error
	r.transformBuf, err = r.dev.CreateBuffer(&gpucore.BufferDesc{
		Label: "transforms",
		Size:  gpucore.TransformBufferSize,
		Usage: gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("render: create transform buffer: %w", err)
	}
	if err = r.dev.WriteBuffer(r.transformBuf, 0, encodeTransforms(&r.transforms)); err != nil {
		return fmt.Errorf("render: write transforms: %w", err)
	}

	if r.nearest, err = r.dev.CreateSampler(&gpucore.SamplerDesc{Label: "nearest", Filter: gpucore.FilterNearest}); err != nil {
		return fmt.Errorf("render: create sampler: %w", err)
	}
	if r.linear, err = r.dev.CreateSampler(&gpucore.SamplerDesc{Label: "linear", Filter: gpucore.FilterLinear}); err != nil {
		return fmt.Errorf("render: create sampler: %w", err)
	}

	r.module, err = r.dev.CreateShaderModule(&gpucore.ShaderModuleDesc{
		Label:  "textured",
		WGSL:   texturedWGSL,
		Render: texturedProgram{},
	})
	if err != nil {
		return fmt.Errorf("render: textured shader: %w", err)
	}
	r.layout, err = r.dev.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "textured_layout",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: bindingTransforms, Type: gpucore.BindingTypeUniformBuffer, Visibility: gpucore.ShaderStageVertex},
			{Binding: bindingTexture, Type: gpucore.BindingTypeSampledTexture, Visibility: gpucore.ShaderStageFragment},
			{Binding: bindingSampler, Type: gpucore.BindingTypeSampler, Visibility: gpucore.ShaderStageFragment},
		},
	})
	if err != nil {
		return fmt.Errorf("render: textured layout: %w", err)
	}
	r.pipeline, err = r.dev.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Label:            "textured",
		ShaderModule:     r.module,
		VertexEntry:      "vs_main",
		FragmentEntry:    "fs_main",
		BindGroupLayouts: []gpucore.BindGroupLayoutID{r.layout},
		VertexStride:     VertexStride,
		VertexAttributes: []gpucore.VertexAttribute{
			{Format: gpucore.VertexFormatFloat32x2, Offset: 0, Location: 0},
			{Format: gpucore.VertexFormatFloat32x2, Offset: 8, Location: 1},
		},
		TargetFormat: gpucore.TextureFormatRGBA8Unorm,
	})
	if err != nil {
		return fmt.Errorf("render: textured pipeline: %w", err)
	}
	return nil
}

// SetLogger sets the renderer logger. Nil restores silent logging.
func (r *Offscreen) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	r.logger.Store(l)
}

// Device returns the device the renderer draws with.
func (r *Offscreen) Device() gpucore.Device { return r.dev }

// Surface returns the presentation surface.
func (r *Offscreen) Surface() *Surface { return r.surface }

// BindShader binds a pipeline and returns it with its bind group layout.
func (r *Offscreen) BindShader(kind gpucore.ShaderKind) (gpucore.RenderPipelineID, gpucore.BindGroupLayoutID, error) {
	if kind != gpucore.ShaderTextured {
		return gpucore.InvalidID, gpucore.InvalidID, fmt.Errorf("%w: %d", ErrUnknownShader, kind)
	}
	r.boundShader = kind
	return r.pipeline, r.layout, nil
}

// UnbindShader clears the bound shader.
func (r *Offscreen) UnbindShader() { r.boundShader = 0 }

// BoundShader returns the bound shader kind, or 0.
func (r *Offscreen) BoundShader() gpucore.ShaderKind { return r.boundShader }

// BindSampler binds the linear or the nearest sampler and returns it.
func (r *Offscreen) BindSampler(linear bool) gpucore.SamplerID {
	r.boundSampler = r.nearest
	if linear {
		r.boundSampler = r.linear
	}
	return r.boundSampler
}

// UnbindSampler clears the bound sampler.
func (r *Offscreen) UnbindSampler() { r.boundSampler = gpucore.InvalidID }

// BoundSampler returns the bound sampler, or gpucore.InvalidID.
func (r *Offscreen) BoundSampler() gpucore.SamplerID { return r.boundSampler }

// RenderTarget returns the surface view.
func (r *Offscreen) RenderTarget() gpucore.TextureViewID { return r.surface.View() }

// TransformBuffer returns the uniform buffer holding the current
// world, view and projection transforms.
func (r *Offscreen) TransformBuffer() gpucore.BufferID { return r.transformBuf }

// Transform returns the current transform of the given kind.
func (r *Offscreen) Transform(kind gpucore.TransformKind) mgl32.Mat4 {
	if kind >= gpucore.TransformCount {
		return mgl32.Ident4()
	}
	return r.transforms[kind]
}

// SetTransform replaces a transform and uploads it to the transform buffer.
func (r *Offscreen) SetTransform(kind gpucore.TransformKind, m mgl32.Mat4) {
	if kind >= gpucore.TransformCount {
		return
	}
	r.transforms[kind] = m
	data, _ := binary.Append(nil, binary.LittleEndian, m)
	if err := r.dev.WriteBuffer(r.transformBuf, uint64(kind)*64, data); err != nil {
		r.logger.Load().Warn("render: transform upload failed", "kind", kind, "err", err)
	}
}

// Snapshot reads back the presented surface.
func (r *Offscreen) Snapshot() (*image.RGBA, error) { return r.surface.Snapshot() }

// Close releases everything the renderer created. The device is not
// closed. Safe to call twice.
func (r *Offscreen) Close() {
	if r.surface == nil {
		return
	}
	dev := r.dev
	if r.pipeline != gpucore.InvalidID {
		dev.DestroyRenderPipeline(r.pipeline)
	}
	if r.layout != gpucore.InvalidID {
		dev.DestroyBindGroupLayout(r.layout)
	}
	if r.module != gpucore.InvalidID {
		dev.DestroyShaderModule(r.module)
	}
	for _, s := range []gpucore.SamplerID{r.nearest, r.linear} {
		if s != gpucore.InvalidID {
			dev.DestroySampler(s)
		}
	}
	if r.transformBuf != gpucore.InvalidID {
		dev.DestroyBuffer(r.transformBuf)
	}
	r.surface.Destroy()
	r.surface = nil
	r.pipeline, r.layout, r.module = gpucore.InvalidID, gpucore.InvalidID, gpucore.InvalidID
	r.nearest, r.linear, r.transformBuf = gpucore.InvalidID, gpucore.InvalidID, gpucore.InvalidID
	r.boundShader, r.boundSampler = 0, gpucore.InvalidID
}

func encodeTransforms(t *[gpucore.TransformCount]mgl32.Mat4) []byte {
	out, _ := binary.Append(make([]byte, 0, gpucore.TransformBufferSize), binary.LittleEndian, t)
	return out
}
