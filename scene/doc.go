// Package scene holds the CPU-side description of a ray-traced scene.
//
// A [Store] keeps spheres, planes, lights and materials in front-packed
// arrays of fixed capacity ([Capacity] each). Elements can only be appended.
// Spheres and planes reference materials by the index [Store.AddMaterial]
// returned, so materials must be added before the geometry that uses them.
//
//	s := scene.NewStore()
//	red, _ := s.AddMaterial(scene.Material{
//	    AmbientColor:     mgl32.Vec3{1, 0, 0},
//	    AmbientIntensity: 0.2,
//	})
//	_ = s.AddSphere(scene.Sphere{Radius: 1, Material: red})
//	_ = s.AddLight(scene.Light{Kind: scene.LightDirectional, Vector: mgl32.Vec3{0, 0, -1}})
package scene
