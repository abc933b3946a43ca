package raytrace

import (
	_ "embed"
)

//go:embed shaders/raytrace.wgsl
var raytraceWGSL string

// kernelEntryPoint is the compute entry point in raytrace.wgsl.
const kernelEntryPoint = "main"

// KernelSource returns the WGSL source of the ray-trace kernel.
func KernelSource() string { return raytraceWGSL }
