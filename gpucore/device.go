package gpucore

import (
	"errors"
	"image"
)

// Common device errors.
var (
	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = errors.New("gpucore: unknown resource")

	// ErrDeviceClosed is returned when a device is used after Close.
	ErrDeviceClosed = errors.New("gpucore: device closed")
)

// Device abstracts over different GPU backend implementations.
//
// Implementations must be safe for concurrent use. Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying an unknown or already destroyed ID is a no-op
//   - IDs are never reused
type Device interface {
	// Name returns the device identifier (e.g. "software", "wgpu").
	Name() string

	// === Buffer Management ===

	// CreateBuffer creates a buffer. Contents are zero-initialized.
	CreateBuffer(desc *BufferDesc) (BufferID, error)

	// DestroyBuffer releases a buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer at offset. The write is ordered
	// before any work submitted afterwards.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// === Texture Management ===

	// CreateTexture creates a 2D texture in the undefined usage state.
	CreateTexture(desc *TextureDesc) (TextureID, error)

	// DestroyTexture releases a texture. Views of it must be destroyed first.
	DestroyTexture(id TextureID)

	// CreateTextureView creates a full view of a texture.
	CreateTextureView(texture TextureID, label string) (TextureViewID, error)

	// DestroyTextureView releases a texture view.
	DestroyTextureView(id TextureViewID)

	// ReadTexture copies a texture back to the CPU as RGBA.
	// This waits for all submitted work and stalls the device.
	ReadTexture(id TextureID) (*image.RGBA, error)

	// CreateSampler creates a sampler.
	CreateSampler(desc *SamplerDesc) (SamplerID, error)

	// DestroySampler releases a sampler.
	DestroySampler(id SamplerID)

	// === Shaders and Pipelines ===

	// CreateShaderModule compiles a shader module.
	// Returns an error if the module cannot be compiled or loaded.
	CreateShaderModule(desc *ShaderModuleDesc) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)
	DestroyBindGroupLayout(id BindGroupLayoutID)

	CreateBindGroup(desc *BindGroupDesc) (BindGroupID, error)
	DestroyBindGroup(id BindGroupID)

	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error)
	DestroyComputePipeline(id ComputePipelineID)

	CreateRenderPipeline(desc *RenderPipelineDesc) (RenderPipelineID, error)
	DestroyRenderPipeline(id RenderPipelineID)

	// === Command Recording ===

	// BeginCommands starts recording a command stream.
	BeginCommands(label string) (CommandEncoder, error)

	// Close releases the device. Resources not yet destroyed are released.
	Close()
}

// CommandEncoder records passes and texture transitions.
// An encoder is used by a single goroutine and is finished by exactly one
// call to Submit or Discard.
type CommandEncoder interface {
	// BeginComputePass starts a compute pass. The pass must be ended before
	// any other command is recorded.
	BeginComputePass(label string) ComputePassEncoder

	// BeginRenderPass starts a render pass. The target texture moves to
	// the render attachment state.
	BeginRenderPass(desc *RenderPassDesc) RenderPassEncoder

	// TransitionTexture records a usage change of a texture from one state
	// to another. Work recorded after the transition observes all writes
	// recorded before it.
	TransitionTexture(id TextureID, from, to TextureUsage)

	// Submit finishes recording and queues the commands for execution.
	// It does not wait for completion.
	Submit() error

	// Discard abandons the recording.
	Discard()
}

// ComputePassEncoder records compute commands.
type ComputePassEncoder interface {
	SetPipeline(pipeline ComputePipelineID)
	SetBindGroup(index uint32, group BindGroupID)

	// Dispatch dispatches x*y*z workgroups.
	Dispatch(x, y, z uint32)

	End()
}

// RenderPassEncoder records draw commands.
type RenderPassEncoder interface {
	SetPipeline(pipeline RenderPipelineID)
	SetBindGroup(index uint32, group BindGroupID)
	SetVertexBuffer(slot uint32, buffer BufferID, offset uint64)

	// Draw draws vertexCount vertices as a triangle list.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	End()
}
