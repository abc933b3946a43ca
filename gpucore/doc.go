// Package gpucore provides the GPU device abstraction shared by the ray tracer
// and its renderer.
//
// The [Device] interface abstracts over backend implementations so the same
// compute and presentation code runs on:
//   - gogpu/wgpu (Pure Go WebGPU via HAL), see backend/wgpu
//   - the CPU software device, see backend/software
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([BufferID], [TextureID], etc.).
// A Device provides creation and destruction methods for each resource type
// and keeps the mapping between IDs and backend resources. [InvalidID] is
// never returned for a live resource.
//
// # Command Recording
//
// Work is recorded into a [CommandEncoder] obtained from [Device.BeginCommands]
// and executed in recording order on [CommandEncoder.Submit]. Submit does not
// wait for the GPU to finish. Texture usage changes are declared explicitly
// with [CommandEncoder.TransitionTexture]; devices may reject a pass that uses
// a texture in a state other than the one it was last transitioned to.
//
// # CPU Programs
//
// A shader module carries its WGSL source and, optionally, CPU programs
// ([ComputeProgram], [RenderProgram]) with the same semantics. GPU devices
// compile the WGSL; the software device executes the CPU programs.
//
//	module, err := dev.CreateShaderModule(&gpucore.ShaderModuleDesc{
//	    Label:   "raytrace",
//	    WGSL:    source,
//	    Compute: kernel.New(),
//	})
package gpucore
