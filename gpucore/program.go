package gpucore

import (
	"fmt"
	"image"
)

// Invocation runs one shader invocation for a global invocation ID.
// Invocations of the same dispatch may run concurrently; each must only
// write to locations derived from its own ID.
type Invocation func(gid [3]uint32)

// ComputeProgram is the CPU form of a compute entry point.
type ComputeProgram interface {
	// WorkgroupSize returns the @workgroup_size of the entry point.
	WorkgroupSize() [3]uint32

	// Bind resolves the program's bindings once per dispatch.
	// It returns an error if a binding the program reads is missing.
	Bind(b *Bindings) (Invocation, error)
}

// RenderProgram is the CPU form of a vertex/fragment entry point pair.
type RenderProgram interface {
	// Draw rasterizes count vertices starting at first from the vertex data
	// (a triangle list) into target.
	Draw(b *Bindings, vertices []byte, stride uint64, first, count uint32, target *image.RGBA) error
}

// Resource is a bound resource as seen by a CPU program.
type Resource struct {
	// Buffer is the bound buffer range.
	Buffer []byte

	// Texture is the texture behind a bound view.
	Texture *image.RGBA

	// Filter is the filter mode of a bound sampler.
	Filter FilterMode

	// IsSampler reports whether the resource is a sampler.
	IsSampler bool
}

// Bindings holds the resources bound to each group slot for one dispatch
// or draw.
type Bindings struct {
	groups [MaxBindGroups]map[uint32]Resource
}

// Set binds r at (group, binding).
func (b *Bindings) Set(group, binding uint32, r Resource) {
	if b.groups[group] == nil {
		b.groups[group] = make(map[uint32]Resource)
	}
	b.groups[group][binding] = r
}

// Buffer returns the buffer bound at (group, binding).
func (b *Bindings) Buffer(group, binding uint32) ([]byte, error) {
	r, ok := b.lookup(group, binding)
	if !ok || r.Buffer == nil {
		return nil, fmt.Errorf("gpucore: no buffer at @group(%d) @binding(%d)", group, binding)
	}
	return r.Buffer, nil
}

// Texture returns the texture bound at (group, binding).
func (b *Bindings) Texture(group, binding uint32) (*image.RGBA, error) {
	r, ok := b.lookup(group, binding)
	if !ok || r.Texture == nil {
		return nil, fmt.Errorf("gpucore: no texture at @group(%d) @binding(%d)", group, binding)
	}
	return r.Texture, nil
}

// Sampler returns the filter mode of the sampler bound at (group, binding).
func (b *Bindings) Sampler(group, binding uint32) (FilterMode, error) {
	r, ok := b.lookup(group, binding)
	if !ok || !r.IsSampler {
		return 0, fmt.Errorf("gpucore: no sampler at @group(%d) @binding(%d)", group, binding)
	}
	return r.Filter, nil
}

func (b *Bindings) lookup(group, binding uint32) (Resource, bool) {
	if group >= MaxBindGroups || b.groups[group] == nil {
		return Resource{}, false
	}
	r, ok := b.groups[group][binding]
	return r, ok
}
