package gpucore

// Resource IDs
//
// These opaque IDs represent GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// TextureViewID is an opaque handle to a view of a texture.
type TextureViewID uint64

// SamplerID is an opaque handle to a texture sampler.
type SamplerID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// ComputePipelineID is an opaque handle to a compute pipeline.
type ComputePipelineID uint64

// RenderPipelineID is an opaque handle to a render pipeline.
type RenderPipelineID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// MaxBindGroups is the number of bind group slots a pipeline may use.
const MaxBindGroups = 4

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags. Bit positions follow WebGPU.
const (
	BufferUsageMapRead BufferUsage = 1 << 0
	BufferUsageCopySrc BufferUsage = 1 << 2
	BufferUsageCopyDst BufferUsage = 1 << 3
	BufferUsageVertex  BufferUsage = 1 << 5
	BufferUsageUniform BufferUsage = 1 << 6
	BufferUsageStorage BufferUsage = 1 << 7
)

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats. Both are 8 bits per channel, normalized.
const (
	TextureFormatRGBA8Unorm TextureFormat = iota + 1
	TextureFormatBGRA8Unorm
)

// String returns the WGSL name of the format.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "rgba8unorm"
	case TextureFormatBGRA8Unorm:
		return "bgra8unorm"
	default:
		return "unknown"
	}
}

// TextureUsage is a bitmask specifying how a texture will be used.
// A single usage bit also names the state a texture is in between passes.
type TextureUsage uint32

// Texture usage flags.
const (
	TextureUsageCopySrc          TextureUsage = 1 << 0
	TextureUsageCopyDst          TextureUsage = 1 << 1
	TextureUsageTextureBinding   TextureUsage = 1 << 2 // sampled in a shader
	TextureUsageStorageBinding   TextureUsage = 1 << 3 // written by a compute shader
	TextureUsageRenderAttachment TextureUsage = 1 << 4
)

// TextureUsageUndefined is the state of a texture that has not been
// transitioned since creation.
const TextureUsageUndefined TextureUsage = 0

// String returns a short name for a single usage state.
func (u TextureUsage) String() string {
	switch u {
	case TextureUsageUndefined:
		return "undefined"
	case TextureUsageCopySrc:
		return "copy-src"
	case TextureUsageCopyDst:
		return "copy-dst"
	case TextureUsageTextureBinding:
		return "texture-binding"
	case TextureUsageStorageBinding:
		return "storage-binding"
	case TextureUsageRenderAttachment:
		return "render-attachment"
	default:
		return "mixed"
	}
}

// ShaderStage is a bitmask of the stages a binding is visible to.
type ShaderStage uint32

// Shader stages.
const (
	ShaderStageVertex   ShaderStage = 1 << 0
	ShaderStageFragment ShaderStage = 1 << 1
	ShaderStageCompute  ShaderStage = 1 << 2
)

// BindingType specifies the type of a shader binding.
type BindingType uint32

// Binding types.
const (
	// BindingTypeUniformBuffer is a uniform buffer binding.
	BindingTypeUniformBuffer BindingType = iota + 1

	// BindingTypeStorageBuffer is a storage buffer binding (read-write).
	BindingTypeStorageBuffer

	// BindingTypeReadOnlyStorageBuffer is a read-only storage buffer binding.
	BindingTypeReadOnlyStorageBuffer

	// BindingTypeSampler is a texture sampler binding.
	BindingTypeSampler

	// BindingTypeSampledTexture is a sampled texture binding.
	BindingTypeSampledTexture

	// BindingTypeStorageTexture is a write-only storage texture binding.
	BindingTypeStorageTexture
)

// FilterMode selects how a sampler reads between texels.
type FilterMode uint32

// Filter modes.
const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// VertexFormat is the format of a single vertex attribute.
type VertexFormat uint32

// Vertex formats.
const (
	VertexFormatFloat32x2 VertexFormat = iota + 1
	VertexFormatFloat32x4
)

// Color is a clear color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// BufferDesc describes a buffer.
type BufferDesc struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes. Must be greater than zero.
	Size uint64

	// Usage is a bitmask of BufferUsage flags.
	Usage BufferUsage
}

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Label  string
	Width  uint32
	Height uint32
	Format TextureFormat
	Usage  TextureUsage
}

// SamplerDesc describes a clamp-to-edge sampler.
type SamplerDesc struct {
	Label  string
	Filter FilterMode
}

// ShaderModuleDesc describes a shader module.
type ShaderModuleDesc struct {
	// Label is an optional debug label.
	Label string

	// WGSL is the shader source compiled by GPU devices.
	WGSL string

	// Compute is the CPU form of the module's compute entry point.
	Compute ComputeProgram

	// Render is the CPU form of the module's vertex and fragment entry points.
	Render RenderProgram
}

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	// Label is an optional debug label.
	Label string

	// Entries defines the bindings in this layout.
	Entries []BindGroupLayoutEntry
}

// BindGroupLayoutEntry describes a single binding in a bind group layout.
type BindGroupLayoutEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Type is the type of resource bound at this index.
	Type BindingType

	// Visibility lists the shader stages that access the binding.
	Visibility ShaderStage
}

// BindGroupEntry describes a single binding in a bind group.
// Exactly one of Buffer, TextureView and Sampler is set.
type BindGroupEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Buffer is the buffer to bind (for buffer bindings).
	Buffer BufferID

	// Offset is the offset into the buffer.
	Offset uint64

	// Size is the size of the buffer range to bind.
	// Use 0 to bind the entire buffer from offset.
	Size uint64

	// TextureView is the view to bind (for texture bindings).
	TextureView TextureViewID

	// Sampler is the sampler to bind (for sampler bindings).
	Sampler SamplerID
}

// BindGroupDesc describes a bind group.
type BindGroupDesc struct {
	// Label is an optional debug label.
	Label string

	// Layout is the bind group layout.
	Layout BindGroupLayoutID

	// Entries are the resource bindings.
	Entries []BindGroupEntry
}

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	// Label is an optional debug label.
	Label string

	// ShaderModule contains the compute shader.
	ShaderModule ShaderModuleID

	// EntryPoint is the name of the shader entry point function.
	EntryPoint string

	// BindGroupLayouts are the layouts of groups 0..n-1.
	BindGroupLayouts []BindGroupLayoutID
}

// VertexAttribute describes one attribute of the vertex buffer in slot 0.
type VertexAttribute struct {
	Format   VertexFormat
	Offset   uint64
	Location uint32
}

// RenderPipelineDesc describes a render pipeline drawing triangle lists.
type RenderPipelineDesc struct {
	Label            string
	ShaderModule     ShaderModuleID
	VertexEntry      string
	FragmentEntry    string
	BindGroupLayouts []BindGroupLayoutID

	// VertexStride is the byte stride of the vertex buffer in slot 0.
	VertexStride uint64

	// VertexAttributes describe the vertex buffer in slot 0.
	VertexAttributes []VertexAttribute

	// TargetFormat is the format of the color attachment.
	TargetFormat TextureFormat
}

// RenderPassDesc describes a render pass with a single color attachment.
type RenderPassDesc struct {
	Label string

	// Target is the color attachment.
	Target TextureViewID

	// Clear selects LoadOpClear with ClearColor; otherwise the existing
	// contents are loaded.
	Clear      bool
	ClearColor Color
}

// ShaderKind names a render pipeline a renderer can bind.
type ShaderKind uint32

// Shader kinds.
const (
	// ShaderTextured draws position+uv vertices sampling one texture.
	ShaderTextured ShaderKind = iota + 1
)

// TransformKind selects one of a renderer's vertex transforms.
type TransformKind uint32

// Transform kinds, in the order they are stored in a transform buffer.
const (
	TransformWorld TransformKind = iota
	TransformView
	TransformProjection

	// TransformCount is the number of transform kinds.
	TransformCount
)

// TransformBufferSize is the size of a transform uniform buffer: one
// column-major mat4x4<f32> per transform kind.
const TransformBufferSize = uint64(TransformCount) * 64
