package raytrace

import (
	"encoding/binary"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
)

// Bindings of the renderer's textured pipeline.
const (
	presentBindingTransforms uint32 = 0
	presentBindingTexture    uint32 = 1
	presentBindingSampler    uint32 = 2
)

// quadVertices is a full-screen quad as two triangles: NDC position.xy
// then uv, with uv (0, 0) at the top-left of the output image.
var quadVertices = [6][4]float32{
	{-1, 1, 0, 0},
	{-1, -1, 0, 1},
	{1, -1, 1, 1},
	{-1, 1, 0, 0},
	{1, -1, 1, 1},
	{1, 1, 1, 0},
}

const quadVertexStride = 16

func encodeQuad() []byte {
	out, _ := binary.Append(nil, binary.LittleEndian, &quadVertices)
	return out
}

// presentKey identifies the resources a present bind group was built for.
type presentKey struct {
	layout    gpucore.BindGroupLayoutID
	transform gpucore.BufferID
	view      gpucore.TextureViewID
	sampler   gpucore.SamplerID
}

// Render draws the output image over the renderer's target with a
// full-screen quad.
//
// The renderer's transforms are set to identity for the draw and restored
// afterwards; the shader and sampler are unbound on return. Render does
// not depend on the view transform. It fails with ErrOutputNotReadable if
// the last Run did not complete.
func (rt *RayTracer) Render() error {
	if !rt.ready {
		return ErrNotInitialized
	}
	view, err := rt.out.readView()
	if err != nil {
		return err
	}

	r := rt.renderer
	pipeline, layout, err := r.BindShader(ShaderTextured)
	if err != nil {
		return presentFailed(fmt.Errorf("raytrace: bind textured shader: %w", err))
	}
	defer r.UnbindShader()
	sampler := r.BindSampler(true)
	defer r.UnbindSampler()

	var saved [gpucore.TransformCount]mgl32.Mat4
	for k := range saved {
		kind := TransformKind(k) //nolint:gosec // k < TransformCount
		saved[k] = r.Transform(kind)
		r.SetTransform(kind, mgl32.Ident4())
	}
	defer func() {
		for k, m := range saved {
			r.SetTransform(TransformKind(k), m) //nolint:gosec // k < TransformCount
		}
	}()

	group, err := rt.presentGroup(presentKey{
		layout:    layout,
		transform: r.TransformBuffer(),
		view:      view,
		sampler:   sampler,
	})
	if err != nil {
		return presentFailed(fmt.Errorf("raytrace: present bind group: %w", err))
	}

	enc, err := rt.dev.BeginCommands("raytrace_present")
	if err != nil {
		return presentFailed(fmt.Errorf("raytrace: begin commands: %w", err))
	}
	rp := enc.BeginRenderPass(&gpucore.RenderPassDesc{
		Label:      "raytrace_present",
		Target:     r.RenderTarget(),
		Clear:      true,
		ClearColor: gpucore.Color{A: 1},
	})
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, group)
	rp.SetVertexBuffer(0, rt.quadBuf, 0)
	rp.Draw(uint32(len(quadVertices)), 1, 0, 0)
	rp.End()
	if err := enc.Submit(); err != nil {
		return presentFailed(fmt.Errorf("raytrace: present: %w", err))
	}
	rt.stats.Presents++
	return nil
}

func presentFailed(err error) error {
	Logger().Warn("raytrace: present failed", "err", err)
	return err
}

// presentGroup returns the bind group for key, rebuilding it when any of
// the resources changed since the last Render.
func (rt *RayTracer) presentGroup(key presentKey) (gpucore.BindGroupID, error) {
	if rt.presentBG != gpucore.InvalidID && rt.presentFor == key {
		return rt.presentBG, nil
	}
	group, err := rt.dev.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:  "raytrace_present_group",
		Layout: key.layout,
		Entries: []gpucore.BindGroupEntry{
			{Binding: presentBindingTransforms, Buffer: key.transform},
			{Binding: presentBindingTexture, TextureView: key.view},
			{Binding: presentBindingSampler, Sampler: key.sampler},
		},
	})
	if err != nil {
		return gpucore.InvalidID, err
	}
	rt.releasePresentGroup()
	rt.presentBG, rt.presentFor = group, key
	return group, nil
}

func (rt *RayTracer) releasePresentGroup() {
	if rt.presentBG != gpucore.InvalidID {
		rt.dev.DestroyBindGroup(rt.presentBG)
		rt.presentBG = gpucore.InvalidID
	}
	rt.presentFor = presentKey{}
}
