package raytrace

import (
	"fmt"

	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/internal/abi"
	"github.com/gogpu/raytrace/internal/kernel"
	"github.com/gogpu/raytrace/scene"
)

// sceneCategory is one scene array and the kernel binding it uploads to.
type sceneCategory struct {
	label   string
	binding uint32
	encode  func(*scene.Store) []byte
}

// sceneCategories are uploaded in this order.
var sceneCategories = [...]sceneCategory{
	{"spheres", kernel.BindingSpheres, func(s *scene.Store) []byte { return pack(s.Spheres(), abi.FromSphere) }},
	{"materials", kernel.BindingMaterials, func(s *scene.Store) []byte { return pack(s.Materials(), abi.FromMaterial) }},
	{"planes", kernel.BindingPlanes, func(s *scene.Store) []byte { return pack(s.Planes(), abi.FromPlane) }},
	{"lights", kernel.BindingLights, func(s *scene.Store) []byte { return pack(s.Lights(), abi.FromLight) }},
}

const numCategories = len(sceneCategories)

// pack encodes items as GPU records. An empty category still gets one
// zeroed record, since the device does not accept zero-sized bindings;
// the kernel only reads as many records as Params says are live.
func pack[S any, R abi.Record](items []S, conv func(S) R) []byte {
	records := make([]R, max(len(items), 1))
	for i, v := range items {
		records[i] = conv(v)
	}
	return abi.Pack(records)
}

// ownedBuffer is a buffer handle that releases the buffer it held when
// it is replaced.
type ownedBuffer struct {
	dev gpucore.Device
	id  gpucore.BufferID
}

func (b *ownedBuffer) replace(id gpucore.BufferID) {
	if b.id != gpucore.InvalidID {
		b.dev.DestroyBuffer(b.id)
	}
	b.id = id
}

func (b *ownedBuffer) release() { b.replace(gpucore.InvalidID) }

// updateBuffers rebuilds the scene buffers and the scene bind group when
// the store is dirty, its version moved past the installed one, or
// nothing is installed yet.
//
// The rebuild commits atomically: on any failure every resource created
// by this attempt is released, the previous buffers stay installed and the
// store stays dirty so the next Run retries.
func (rt *RayTracer) updateBuffers() error {
	version := rt.scene.Version()
	if rt.sceneGroup != gpucore.InvalidID && !rt.scene.Dirty() && version == rt.sceneVersion {
		return nil
	}
	dev := rt.dev
	log := Logger()

	var next [numCategories]gpucore.BufferID
	discard := func() {
		for _, id := range next {
			if id != gpucore.InvalidID {
				dev.DestroyBuffer(id)
			}
		}
	}

	for i, c := range sceneCategories {
		data := c.encode(rt.scene)
		id, err := dev.CreateBuffer(&gpucore.BufferDesc{
			Label: c.label,
			Size:  uint64(len(data)),
			Usage: gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst,
		})
		if err != nil {
			discard()
			return fmt.Errorf("allocate %s buffer: %w", c.label, err)
		}
		next[i] = id
		if err := dev.WriteBuffer(id, 0, data); err != nil {
			discard()
			return fmt.Errorf("upload %s buffer: %w", c.label, err)
		}
		log.Debug("raytrace: scene buffer", "category", c.label, "bytes", len(data))
	}

	entries := make([]gpucore.BindGroupEntry, 0, 2+numCategories)
	entries = append(entries,
		gpucore.BindGroupEntry{Binding: kernel.BindingParams, Buffer: rt.paramsBuf},
		gpucore.BindGroupEntry{Binding: kernel.BindingCamera, Buffer: rt.cameraBuf},
	)
	for i, c := range sceneCategories {
		entries = append(entries, gpucore.BindGroupEntry{Binding: c.binding, Buffer: next[i]})
	}
	group, err := dev.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:   "raytrace_scene_group",
		Layout:  rt.sceneLayout,
		Entries: entries,
	})
	if err != nil {
		discard()
		return fmt.Errorf("create scene bind group: %w", err)
	}

	// Commit. The old group references the old buffers, so it goes first.
	if rt.sceneGroup != gpucore.InvalidID {
		dev.DestroyBindGroup(rt.sceneGroup)
	}
	rt.sceneGroup = group
	rt.sceneVersion = version
	for i := range rt.sceneBufs {
		rt.sceneBufs[i].replace(next[i])
	}
	rt.scene.MarkClean()
	rt.stats.Rebuilds++
	rt.stats.BufferAllocations += numCategories
	log.Debug("raytrace: scene buffers rebuilt", "version", version, "counts", rt.scene.Counts())
	return nil
}

// releaseScene drops the installed scene buffers and bind group.
func (rt *RayTracer) releaseScene() {
	if rt.sceneGroup != gpucore.InvalidID {
		rt.dev.DestroyBindGroup(rt.sceneGroup)
		rt.sceneGroup = gpucore.InvalidID
	}
	rt.sceneVersion = 0
	for i := range rt.sceneBufs {
		rt.sceneBufs[i].release()
	}
}
