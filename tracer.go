package raytrace

import (
	"errors"
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/internal/abi"
	"github.com/gogpu/raytrace/internal/kernel"
	"github.com/gogpu/raytrace/scene"
)

// Stats counts the work a RayTracer has done since Init.
type Stats struct {
	// Rebuilds is the number of committed scene buffer rebuilds.
	Rebuilds int

	// BufferAllocations is the number of scene buffers committed.
	BufferAllocations int

	// Dispatches is the number of submitted kernel dispatches.
	Dispatches int

	// Presents is the number of submitted presentation draws.
	Presents int

	// SkippedFrames is the number of Run calls that failed after Init.
	SkippedFrames int
}

// RayTracer renders a scene of spheres and planes lit by point and
// directional lights with a compute kernel, then presents the result
// through a Renderer.
//
// Lifecycle:
//
//	rt := raytrace.New(renderer)
//	if err := rt.Init(); err != nil { ... }
//	defer rt.Close()
//
//	mat, _ := rt.AddMaterial(scene.Material{...})
//	rt.AddSphere(scene.Sphere{Radius: 1, Material: mat})
//	rt.AddLight(scene.Light{Kind: scene.LightDirectional, Vector: mgl32.Vec3{0, 0, -1}})
//
//	for each frame {
//	    rt.Run()    // trace into the 256x256 output image
//	    rt.Render() // draw it over the renderer's target
//	}
//
// RayTracer is not safe for concurrent use.
type RayTracer struct {
	renderer Renderer
	opts     options
	ready    bool

	dev   gpucore.Device
	scene *scene.Store
	view  ViewTransform

	module       gpucore.ShaderModuleID
	sceneLayout  gpucore.BindGroupLayoutID
	outputLayout gpucore.BindGroupLayoutID
	pipeline     gpucore.ComputePipelineID

	paramsBuf gpucore.BufferID
	cameraBuf gpucore.BufferID
	quadBuf   gpucore.BufferID

	sceneBufs    [numCategories]ownedBuffer
	sceneGroup   gpucore.BindGroupID
	sceneVersion uint64 // store version the installed buffers hold
	out          output

	presentBG  gpucore.BindGroupID
	presentFor presentKey

	stats Stats
}

// New creates a ray tracer that presents through r. Call Init before use.
func New(r Renderer, opts ...Option) *RayTracer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RayTracer{renderer: r, opts: o, scene: scene.NewStore()}
}

// Init creates the kernel pipeline, the output image, the quad geometry
// and the uniform buffers on the renderer's device, and starts with an
// empty scene. Any failure releases what was created and is returned; the
// tracer stays uninitialized. Init on an initialized tracer does nothing.
func (rt *RayTracer) Init() error {
	if rt.ready {
		return nil
	}
	log := Logger()
	if rt.renderer == nil {
		return ErrNilRenderer
	}
	dev := rt.renderer.Device()
	if dev == nil {
		return errors.New("raytrace: init: renderer has no device")
	}
	propagateLogger(rt.renderer, log)
	propagateLogger(dev, log)

	rt.dev = dev
	for i := range rt.sceneBufs {
		rt.sceneBufs[i] = ownedBuffer{dev: dev}
	}
	if err := rt.create(); err != nil {
		rt.release()
		log.Error("raytrace: init failed", "device", dev.Name(), "err", err)
		return fmt.Errorf("raytrace: init: %w", err)
	}

	rt.scene = scene.NewStore()
	rt.stats = Stats{}
	rt.ready = true
	log.Info("raytrace: initialized", "device", dev.Name(), "output", [2]int{OutputWidth, OutputHeight})
	return nil
}

func (rt *RayTracer) create() error {
	dev := rt.dev
	var err error

	rt.module, err = dev.CreateShaderModule(&gpucore.ShaderModuleDesc{
		Label:   "raytrace",
		WGSL:    raytraceWGSL,
		Compute: kernel.New(),
	})
	if err != nil {
		return fmt.Errorf("load kernel: %w", err)
	}

	sceneEntries := []gpucore.BindGroupLayoutEntry{
		{Binding: kernel.BindingParams, Type: gpucore.BindingTypeUniformBuffer, Visibility: gpucore.ShaderStageCompute},
		{Binding: kernel.BindingCamera, Type: gpucore.BindingTypeUniformBuffer, Visibility: gpucore.ShaderStageCompute},
	}
	for _, c := range sceneCategories {
		sceneEntries = append(sceneEntries, gpucore.BindGroupLayoutEntry{
			Binding: c.binding, Type: gpucore.BindingTypeReadOnlyStorageBuffer, Visibility: gpucore.ShaderStageCompute,
		})
	}
	if rt.sceneLayout, err = dev.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "raytrace_scene_layout", Entries: sceneEntries,
	}); err != nil {
		return fmt.Errorf("scene layout: %w", err)
	}
	if rt.outputLayout, err = dev.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "raytrace_output_layout",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: kernel.BindingOutput, Type: gpucore.BindingTypeStorageTexture, Visibility: gpucore.ShaderStageCompute},
		},
	}); err != nil {
		return fmt.Errorf("output layout: %w", err)
	}
	if rt.pipeline, err = dev.CreateComputePipeline(&gpucore.ComputePipelineDesc{
		Label:            "raytrace",
		ShaderModule:     rt.module,
		EntryPoint:       kernelEntryPoint,
		BindGroupLayouts: []gpucore.BindGroupLayoutID{rt.sceneLayout, rt.outputLayout},
	}); err != nil {
		return fmt.Errorf("kernel pipeline: %w", err)
	}

	uniform := gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst
	if rt.paramsBuf, err = dev.CreateBuffer(&gpucore.BufferDesc{Label: "raytrace_params", Size: abi.ParamsSize, Usage: uniform}); err != nil {
		return fmt.Errorf("params buffer: %w", err)
	}
	if rt.cameraBuf, err = dev.CreateBuffer(&gpucore.BufferDesc{Label: "raytrace_camera", Size: abi.CameraSize, Usage: uniform}); err != nil {
		return fmt.Errorf("camera buffer: %w", err)
	}

	quad := encodeQuad()
	if rt.quadBuf, err = dev.CreateBuffer(&gpucore.BufferDesc{
		Label: "raytrace_quad",
		Size:  uint64(len(quad)),
		Usage: gpucore.BufferUsageVertex | gpucore.BufferUsageCopyDst,
	}); err != nil {
		return fmt.Errorf("quad buffer: %w", err)
	}
	if err := dev.WriteBuffer(rt.quadBuf, 0, quad); err != nil {
		return fmt.Errorf("upload quad: %w", err)
	}

	if err := rt.out.create(dev, rt.outputLayout); err != nil {
		return err
	}
	return nil
}

// Close releases every resource the tracer created and returns it to the
// uninitialized state. The renderer and its device are left open. Close on
// an uninitialized tracer does nothing.
func (rt *RayTracer) Close() {
	if !rt.ready {
		return
	}
	rt.release()
	rt.ready = false
	Logger().Info("raytrace: closed")
}

// release destroys resources in reverse creation order. Bind groups go
// before the buffers and views they reference.
func (rt *RayTracer) release() {
	dev := rt.dev
	if dev == nil {
		return
	}
	rt.releasePresentGroup()
	rt.releaseScene()
	rt.out.release()
	for _, b := range []*gpucore.BufferID{&rt.quadBuf, &rt.cameraBuf, &rt.paramsBuf} {
		if *b != gpucore.InvalidID {
			dev.DestroyBuffer(*b)
			*b = gpucore.InvalidID
		}
	}
	if rt.pipeline != gpucore.InvalidID {
		dev.DestroyComputePipeline(rt.pipeline)
		rt.pipeline = gpucore.InvalidID
	}
	for _, l := range []*gpucore.BindGroupLayoutID{&rt.outputLayout, &rt.sceneLayout} {
		if *l != gpucore.InvalidID {
			dev.DestroyBindGroupLayout(*l)
			*l = gpucore.InvalidID
		}
	}
	if rt.module != gpucore.InvalidID {
		dev.DestroyShaderModule(rt.module)
		rt.module = gpucore.InvalidID
	}
}

// AddSphere appends a sphere. See scene.Store.AddSphere.
func (rt *RayTracer) AddSphere(s scene.Sphere) error {
	if !rt.ready {
		return ErrNotInitialized
	}
	return rt.scene.AddSphere(s)
}

// AddPlane appends a plane. See scene.Store.AddPlane.
func (rt *RayTracer) AddPlane(p scene.Plane) error {
	if !rt.ready {
		return ErrNotInitialized
	}
	return rt.scene.AddPlane(p)
}

// AddLight appends a light. See scene.Store.AddLight.
func (rt *RayTracer) AddLight(l scene.Light) error {
	if !rt.ready {
		return ErrNotInitialized
	}
	return rt.scene.AddLight(l)
}

// AddMaterial appends a material and returns its index.
func (rt *RayTracer) AddMaterial(m scene.Material) (int, error) {
	if !rt.ready {
		return -1, ErrNotInitialized
	}
	return rt.scene.AddMaterial(m)
}

// SetViewTransform sets the world-to-camera matrix used from the next Run.
func (rt *RayTracer) SetViewTransform(m mgl32.Mat4) { rt.view = NewViewTransform(m) }

// ClearViewTransform returns to DefaultView from the next Run.
func (rt *RayTracer) ClearViewTransform() { rt.view = ViewTransform{} }

// View returns the current view transform.
func (rt *RayTracer) View() ViewTransform { return rt.view }

// Scene returns the scene store. Use the Add methods to modify it.
func (rt *RayTracer) Scene() *scene.Store { return rt.scene }

// Stats returns the work counters.
func (rt *RayTracer) Stats() Stats { return rt.stats }

// OutputSize returns the size of the output image.
func (rt *RayTracer) OutputSize() (width, height int) { return OutputWidth, OutputHeight }

// ReadOutput reads back the output image. It fails with
// ErrOutputNotReadable if the last Run did not complete.
func (rt *RayTracer) ReadOutput() (*image.RGBA, error) {
	if !rt.ready {
		return nil, ErrNotInitialized
	}
	if _, err := rt.out.readView(); err != nil {
		return nil, err
	}
	return rt.dev.ReadTexture(rt.out.tex)
}
