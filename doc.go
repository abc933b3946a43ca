// Package raytrace ray-traces small analytic scenes on a GPU compute
// kernel and presents the result with a full-screen textured quad.
//
// # Overview
//
// A RayTracer keeps the scene on the CPU in a scene.Store: up to 16
// spheres, planes, point or directional lights and materials. On Run the
// scene is uploaded to read-only storage buffers if it changed, and the
// kernel traces one ray per pixel of a fixed 256x256 output image, with
// shadows and bounded reflections. Render then samples that image onto
// the renderer's target.
//
// # Quick Start
//
//	dev, err := backend.Default(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := render.NewOffscreen(dev)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt := raytrace.New(r, raytrace.WithBackground([4]float32{0.1, 0.1, 0.2, 1}))
//	if err := rt.Init(); err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	red, _ := rt.AddMaterial(scene.Material{
//	    AmbientColor: mgl32.Vec3{1, 0, 0}, AmbientIntensity: 0.1,
//	})
//	_ = rt.AddSphere(scene.Sphere{Radius: 1, Material: red})
//	_ = rt.AddLight(scene.Light{Kind: scene.LightDirectional, Vector: mgl32.Vec3{-1, -1, -1}})
//
//	if err := rt.Run(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := rt.Render(); err != nil {
//	    log.Fatal(err)
//	}
//	img, _ := r.Snapshot()
//
// # Output image
//
// The output image alternates between two states. Run moves it to the
// writable state for the dispatch and back to the readable state in the
// same command stream; Render and ReadOutput only accept it readable. If a
// dispatch fails, the image stays writable until the next successful Run.
//
// # Devices
//
// All resources live on the renderer's gpucore.Device. The software
// backend runs the kernel on the CPU; the wgpu backend runs the embedded
// WGSL kernel (KernelSource) on Vulkan.
//
// # Logging
//
// raytrace is silent by default. See SetLogger.
package raytrace
