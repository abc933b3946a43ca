package raytrace

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
)

// ShaderKind names a pipeline the Renderer provides.
type ShaderKind = gpucore.ShaderKind

// ShaderTextured is the renderer's textured-triangle pipeline.
const ShaderTextured = gpucore.ShaderTextured

// TransformKind selects one of the renderer's vertex transforms.
type TransformKind = gpucore.TransformKind

// Transform kinds.
const (
	TransformWorld      = gpucore.TransformWorld
	TransformView       = gpucore.TransformView
	TransformProjection = gpucore.TransformProjection
)

// Renderer is the general-purpose renderer the ray tracer presents
// through. It lends its device and owns the presentation pipeline, the
// samplers and the vertex transforms.
//
// render.Offscreen is the implementation in this module.
type Renderer interface {
	// Device returns the device all ray tracer resources are created on.
	Device() gpucore.Device

	// BindShader binds a render pipeline and returns it with the layout of
	// its bind group 0.
	BindShader(kind ShaderKind) (gpucore.RenderPipelineID, gpucore.BindGroupLayoutID, error)

	// UnbindShader clears the bound pipeline.
	UnbindShader()

	// BindSampler binds the linear (true) or nearest sampler.
	BindSampler(linear bool) gpucore.SamplerID

	// UnbindSampler clears the bound sampler.
	UnbindSampler()

	// RenderTarget returns the view presentation passes draw into.
	RenderTarget() gpucore.TextureViewID

	// TransformBuffer returns the uniform buffer holding the current
	// transforms, in the layout of gpucore.TransformBufferSize.
	TransformBuffer() gpucore.BufferID

	// Transform returns the current transform of the given kind.
	Transform(kind TransformKind) mgl32.Mat4

	// SetTransform replaces a transform.
	SetTransform(kind TransformKind, m mgl32.Mat4)
}
