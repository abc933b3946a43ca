// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernel

import (
	"image"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/internal/abi"
	"github.com/gogpu/raytrace/scene"
)

const size = 256

var testBackground = [4]float32{0.1, 0.2, 0.3, 1}

func defaultCamera() abi.Camera {
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	return abi.NewCamera(view, mgl32.DegToRad(60), 1)
}

// frameOf builds a frame the way the synchronizer lays out a store.
func frameOf(s *scene.Store) *Frame {
	f := &Frame{
		Params: abi.NewParams(1e-4, testBackground, s.Counts()),
		Camera: defaultCamera(),
	}
	for _, v := range s.Spheres() {
		f.Spheres = append(f.Spheres, abi.FromSphere(v))
	}
	for _, v := range s.Materials() {
		f.Materials = append(f.Materials, abi.FromMaterial(v))
	}
	for _, v := range s.Planes() {
		f.Planes = append(f.Planes, abi.FromPlane(v))
	}
	for _, v := range s.Lights() {
		f.Lights = append(f.Lights, abi.FromLight(v))
	}
	return f
}

func near(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func TestPixel_EmptySceneIsBackground(t *testing.T) {
	f := frameOf(scene.NewStore())
	for _, p := range [][2]int{{0, 0}, {128, 128}, {255, 255}, {17, 200}} {
		got := f.Pixel(p[0], p[1], size, size)
		if got != testBackground {
			t.Errorf("Pixel(%v) = %v, want background %v", p, got, testBackground)
		}
	}
}

func TestPixel_LitSphere(t *testing.T) {
	s := scene.NewStore()
	m, _ := s.AddMaterial(scene.Material{AmbientColor: mgl32.Vec3{0.5, 0.25, 0.1}, AmbientIntensity: 0.2})
	if err := s.AddSphere(scene.Sphere{Radius: 1, Material: m}); err != nil {
		t.Fatal(err)
	}
	// Travels toward -Z, so it lights the side facing the camera.
	if err := s.AddLight(scene.Light{Kind: scene.LightDirectional, Vector: mgl32.Vec3{0, 0, -1}}); err != nil {
		t.Fatal(err)
	}
	f := frameOf(s)

	center := f.Pixel(128, 128, size, size)
	want := [3]float32{0.6, 0.3, 0.12}
	for i := range want {
		if !near(center[i], want[i], 0.01) {
			t.Errorf("center channel %d = %v, want %v", i, center[i], want[i])
		}
	}
	if center[3] != 1 {
		t.Errorf("center alpha = %v, want 1", center[3])
	}

	if corner := f.Pixel(0, 0, size, size); corner != testBackground {
		t.Errorf("corner = %v, want background", corner)
	}
}

func TestPixel_UnlitSideGetsAmbientOnly(t *testing.T) {
	s := scene.NewStore()
	m, _ := s.AddMaterial(scene.Material{AmbientColor: mgl32.Vec3{1, 1, 1}, AmbientIntensity: 0.25})
	_ = s.AddSphere(scene.Sphere{Radius: 1, Material: m})
	// Travels toward +Z: the visible hemisphere faces away from it.
	_ = s.AddLight(scene.Light{Kind: scene.LightDirectional, Vector: mgl32.Vec3{0, 0, 1}})

	got := frameOf(s).Pixel(128, 128, size, size)
	for i := 0; i < 3; i++ {
		if !near(got[i], 0.25, 1e-3) {
			t.Errorf("channel %d = %v, want ambient 0.25", i, got[i])
		}
	}
}

func TestPixel_Shadow(t *testing.T) {
	s := scene.NewStore()
	m, _ := s.AddMaterial(scene.Material{AmbientColor: mgl32.Vec3{1, 1, 1}, AmbientIntensity: 0.1})
	// Floor facing the camera, a blocker between it and a point light.
	_ = s.AddPlane(scene.Plane{Point: mgl32.Vec3{0, 0, -2}, Normal: mgl32.Vec3{0, 0, 1}, Material: m})
	_ = s.AddLight(scene.Light{Kind: scene.LightPoint, Vector: mgl32.Vec3{0, 0, 4}})

	lit := frameOf(s).Pixel(128, 128, size, size)

	_ = s.AddSphere(scene.Sphere{Center: mgl32.Vec3{0, 0, 3}, Radius: 0.2, Material: m})
	// The camera also sees the blocker at the center; sample off-center
	// where the plane is still in the blocker's shadow cone.
	f := frameOf(s)
	shadowed := f.Pixel(128+31, 128, size, size)
	unshadowed := f.Pixel(128+120, 128, size, size)

	if !(lit[0] > 0.5) {
		t.Errorf("lit plane = %v, want > 0.5", lit[0])
	}
	if !near(shadowed[0], 0.1, 1e-3) {
		t.Errorf("shadowed plane = %v, want ambient 0.1", shadowed[0])
	}
	if !(unshadowed[0] > shadowed[0]) {
		t.Errorf("unshadowed = %v, want brighter than shadowed %v", unshadowed[0], shadowed[0])
	}
}

func TestPixel_ReflectionPicksUpBackground(t *testing.T) {
	s := scene.NewStore()
	mirror, _ := s.AddMaterial(scene.Material{Reflectivity: 0.5})
	_ = s.AddPlane(scene.Plane{Normal: mgl32.Vec3{0, 0, 1}, Material: mirror})

	got := frameOf(s).Pixel(128, 128, size, size)
	for i := 0; i < 3; i++ {
		want := 0.5 * testBackground[i]
		if !near(got[i], want, 1e-4) {
			t.Errorf("channel %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestPixel_BounceLimit(t *testing.T) {
	s := scene.NewStore()
	m, _ := s.AddMaterial(scene.Material{AmbientColor: mgl32.Vec3{1, 1, 1}, AmbientIntensity: 1, Reflectivity: 1})
	// Two facing mirrors trap the ray; the last bounce is shaded opaque.
	_ = s.AddPlane(scene.Plane{Point: mgl32.Vec3{0, 0, -1}, Normal: mgl32.Vec3{0, 0, 1}, Material: m})
	_ = s.AddPlane(scene.Plane{Point: mgl32.Vec3{0, 0, 6}, Normal: mgl32.Vec3{0, 0, -1}, Material: m})

	got := frameOf(s).Pixel(128, 128, size, size)
	if !near(got[0], 1, 1e-4) {
		t.Errorf("channel 0 = %v, want 1 from the final bounce", got[0])
	}
}

func TestProgram_BindWritesTexture(t *testing.T) {
	s := scene.NewStore()
	f := frameOf(s)

	var b gpucore.Bindings
	b.Set(0, BindingParams, gpucore.Resource{Buffer: abi.Encode(&f.Params)})
	b.Set(0, BindingCamera, gpucore.Resource{Buffer: abi.Encode(&f.Camera)})
	for _, binding := range []uint32{BindingSpheres, BindingMaterials, BindingPlanes, BindingLights} {
		b.Set(0, binding, gpucore.Resource{Buffer: make([]byte, abi.PlaneStride)})
	}
	out := image.NewRGBA(image.Rect(0, 0, 8, 8))
	b.Set(1, BindingOutput, gpucore.Resource{Texture: out})

	p := New()
	if ws := p.WorkgroupSize(); ws != [3]uint32{16, 16, 1} {
		t.Errorf("WorkgroupSize() = %v", ws)
	}
	inv, err := p.Bind(&b)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	for y := uint32(0); y < 16; y++ {
		for x := uint32(0); x < 16; x++ {
			inv([3]uint32{x, y, 0})
		}
	}

	want := [4]uint8{abi.Unorm8(0.1), abi.Unorm8(0.2), abi.Unorm8(0.3), 255}
	c := out.RGBAAt(7, 7)
	if got := [4]uint8{c.R, c.G, c.B, c.A}; got != want {
		t.Errorf("pixel = %v, want %v", got, want)
	}
}

func TestProgram_BindMissingBuffer(t *testing.T) {
	var b gpucore.Bindings
	if _, err := New().Bind(&b); err == nil {
		t.Error("Bind() with no bindings should fail")
	}
}
