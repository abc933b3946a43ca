// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render_test

import (
	"errors"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/backend/software"
	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/render"
)

func newOffscreen(t *testing.T, dev gpucore.Device, opts ...render.Option) *render.Offscreen {
	t.Helper()
	r, err := render.NewOffscreen(dev, opts...)
	if err != nil {
		t.Fatalf("NewOffscreen() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestNewOffscreen(t *testing.T) {
	dev := software.New()
	defer dev.Close()

	r := newOffscreen(t, dev)
	if s := r.Surface(); s.Width() != render.DefaultWidth || s.Height() != render.DefaultHeight {
		t.Errorf("surface = %dx%d, want default", s.Width(), s.Height())
	}
	if r.Device() != gpucore.Device(dev) {
		t.Error("Device() is not the device passed in")
	}
	for k := gpucore.TransformWorld; k < gpucore.TransformCount; k++ {
		if r.Transform(k) != mgl32.Ident4() {
			t.Errorf("Transform(%d) is not identity", k)
		}
	}

	if _, err := render.NewOffscreen(dev, render.WithSize(0, 10)); !errors.Is(err, render.ErrInvalidSize) {
		t.Errorf("NewOffscreen(0x10) error = %v, want ErrInvalidSize", err)
	}
}

func TestOffscreen_Binding(t *testing.T) {
	dev := software.New()
	defer dev.Close()
	r := newOffscreen(t, dev, render.WithSize(4, 4))

	if _, _, err := r.BindShader(gpucore.ShaderKind(99)); !errors.Is(err, render.ErrUnknownShader) {
		t.Errorf("BindShader(99) error = %v, want ErrUnknownShader", err)
	}
	pipeline, layout, err := r.BindShader(gpucore.ShaderTextured)
	if err != nil || pipeline == gpucore.InvalidID || layout == gpucore.InvalidID {
		t.Fatalf("BindShader(textured) = %d, %d, %v", pipeline, layout, err)
	}
	if r.BoundShader() != gpucore.ShaderTextured {
		t.Error("BoundShader() after bind")
	}
	r.UnbindShader()
	if r.BoundShader() != 0 {
		t.Error("BoundShader() after unbind")
	}

	linear, nearest := r.BindSampler(true), r.BindSampler(false)
	if linear == nearest || r.BoundSampler() != nearest {
		t.Errorf("samplers linear=%d nearest=%d bound=%d", linear, nearest, r.BoundSampler())
	}
	r.UnbindSampler()
	if r.BoundSampler() != gpucore.InvalidID {
		t.Error("BoundSampler() after unbind")
	}
}

func TestOffscreen_SetTransform(t *testing.T) {
	dev := software.New()
	defer dev.Close()
	r := newOffscreen(t, dev, render.WithSize(4, 4))

	m := mgl32.Translate3D(1, 2, 3)
	r.SetTransform(gpucore.TransformView, m)
	if r.Transform(gpucore.TransformView) != m {
		t.Error("Transform(view) did not round trip")
	}
	if r.Transform(gpucore.TransformWorld) != mgl32.Ident4() {
		t.Error("SetTransform(view) changed world")
	}
}

// TestOffscreen_PresentTexture clears one surface, then draws it into a
// second one through the textured pipeline.
func TestOffscreen_PresentTexture(t *testing.T) {
	dev := software.New()
	defer dev.Close()
	src := newOffscreen(t, dev, render.WithSize(4, 4))
	dst := newOffscreen(t, dev, render.WithSize(8, 6))

	enc, err := dev.BeginCommands("fill")
	if err != nil {
		t.Fatal(err)
	}
	rp := enc.BeginRenderPass(&gpucore.RenderPassDesc{
		Target: src.RenderTarget(), Clear: true, ClearColor: gpucore.Color{R: 1, A: 1},
	})
	rp.End()
	enc.TransitionTexture(src.Surface().Texture(), gpucore.TextureUsageRenderAttachment, gpucore.TextureUsageTextureBinding)
	if err := enc.Submit(); err != nil {
		t.Fatalf("fill Submit() error = %v", err)
	}

	pipeline, layout, err := dst.BindShader(gpucore.ShaderTextured)
	if err != nil {
		t.Fatal(err)
	}
	vb, err := dev.CreateBuffer(&gpucore.BufferDesc{Label: "quad", Size: 6 * render.VertexStride, Usage: gpucore.BufferUsageVertex | gpucore.BufferUsageCopyDst})
	if err != nil {
		t.Fatal(err)
	}
	quad := render.EncodeVertices([]render.Vertex{
		{Position: [2]float32{-1, 1}, UV: [2]float32{0, 0}},
		{Position: [2]float32{-1, -1}, UV: [2]float32{0, 1}},
		{Position: [2]float32{1, -1}, UV: [2]float32{1, 1}},
		{Position: [2]float32{-1, 1}, UV: [2]float32{0, 0}},
		{Position: [2]float32{1, -1}, UV: [2]float32{1, 1}},
		{Position: [2]float32{1, 1}, UV: [2]float32{1, 0}},
	})
	if err := dev.WriteBuffer(vb, 0, quad); err != nil {
		t.Fatal(err)
	}
	group, err := dev.CreateBindGroup(&gpucore.BindGroupDesc{
		Layout: layout,
		Entries: []gpucore.BindGroupEntry{
			{Binding: 0, Buffer: dst.TransformBuffer()},
			{Binding: 1, TextureView: src.RenderTarget()},
			{Binding: 2, Sampler: dst.BindSampler(false)},
		},
	})
	if err != nil {
		t.Fatalf("CreateBindGroup() error = %v", err)
	}

	enc, _ = dev.BeginCommands("present")
	rp = enc.BeginRenderPass(&gpucore.RenderPassDesc{Target: dst.RenderTarget(), Clear: true})
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, group)
	rp.SetVertexBuffer(0, vb, 0)
	rp.Draw(6, 1, 0, 0)
	rp.End()
	if err := enc.Submit(); err != nil {
		t.Fatalf("present Submit() error = %v", err)
	}

	img, err := dst.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
		t.Fatalf("snapshot bounds = %v", img.Bounds())
	}
	red := color.RGBA{R: 255, A: 255}
	for y := range 6 {
		for x := range 8 {
			if got := img.RGBAAt(x, y); got != red {
				t.Fatalf("pixel (%d,%d) = %v, want red", x, y, got)
			}
		}
	}
}

func TestOffscreen_CloseTwice(t *testing.T) {
	dev := software.New()
	defer dev.Close()
	r, err := render.NewOffscreen(dev, render.WithSize(2, 2))
	if err != nil {
		t.Fatal(err)
	}
	r.Close()
	r.Close()
	if r.Surface() != nil {
		t.Error("Surface() after Close should be nil")
	}
}
