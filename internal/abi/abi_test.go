package abi

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/scene"
)

func f32At(t *testing.T, b []byte, off int) float32 {
	t.Helper()
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func i32At(t *testing.T, b []byte, off int) int32 {
	t.Helper()
	return int32(binary.LittleEndian.Uint32(b[off:])) //nolint:gosec // test helper
}

func TestStrides(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"light", Stride[Light](), LightStride},
		{"material", Stride[Material](), MaterialStride},
		{"sphere", Stride[Sphere](), SphereStride},
		{"plane", Stride[Plane](), PlaneStride},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s stride = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestPackLightLayout(t *testing.T) {
	b := Pack([]Light{FromLight(scene.Light{Kind: scene.LightDirectional, Vector: mgl32.Vec3{1, 2, 3}})})
	if len(b) != LightStride {
		t.Fatalf("len = %d, want %d", len(b), LightStride)
	}
	if k := i32At(t, b, 0); k != 1 {
		t.Errorf("kind = %d, want 1", k)
	}
	for off := 4; off < 16; off += 4 {
		if i32At(t, b, off) != 0 {
			t.Errorf("padding at %d not zero", off)
		}
	}
	if f32At(t, b, 16) != 1 || f32At(t, b, 20) != 2 || f32At(t, b, 24) != 3 {
		t.Errorf("vector = %v %v %v", f32At(t, b, 16), f32At(t, b, 20), f32At(t, b, 24))
	}
}

func TestPackMaterialLayout(t *testing.T) {
	b := Pack([]Material{FromMaterial(scene.Material{
		AmbientColor:     mgl32.Vec3{0.1, 0.2, 0.3},
		AmbientIntensity: 0.4,
		Reflectivity:     0.5,
	})})
	want := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0, 0, 0}
	for i, w := range want {
		if got := f32At(t, b, i*4); got != w {
			t.Errorf("word %d = %v, want %v", i, got, w)
		}
	}
}

func TestPackSphereAndPlaneLayout(t *testing.T) {
	spheres := Pack([]Sphere{
		FromSphere(scene.Sphere{Center: mgl32.Vec3{1, 2, 3}, Radius: 4, Material: 5}),
		FromSphere(scene.Sphere{Radius: 6, Material: 7}),
	})
	if len(spheres) != 2*SphereStride {
		t.Fatalf("len = %d, want %d", len(spheres), 2*SphereStride)
	}
	if f32At(t, spheres, 12) != 4 || i32At(t, spheres, 16) != 5 {
		t.Error("sphere 0 radius/material misplaced")
	}
	if f32At(t, spheres, SphereStride+12) != 6 || i32At(t, spheres, SphereStride+16) != 7 {
		t.Error("sphere 1 radius/material misplaced")
	}

	plane := Pack([]Plane{FromPlane(scene.Plane{
		Point: mgl32.Vec3{1, 2, 3}, Normal: mgl32.Vec3{4, 5, 6}, Material: 2,
	})})
	if f32At(t, plane, 0) != 1 || f32At(t, plane, 16) != 4 || f32At(t, plane, 24) != 6 {
		t.Error("plane vectors misplaced")
	}
	if f32At(t, plane, 12) != 0 || f32At(t, plane, 28) != 0 {
		t.Error("plane padding not zero")
	}
	if i32At(t, plane, 32) != 2 {
		t.Errorf("plane material = %d, want 2", i32At(t, plane, 32))
	}
}

func TestParamsLayout(t *testing.T) {
	p := NewParams(1e-4, [4]float32{0.1, 0.2, 0.3, 1}, scene.Counts{Spheres: 1, Materials: 2, Planes: 3, Lights: 4})
	b := Encode(&p)
	if len(b) != ParamsSize {
		t.Fatalf("len = %d, want %d", len(b), ParamsSize)
	}
	if f32At(t, b, 0) != 1e-4 {
		t.Errorf("epsilon = %v", f32At(t, b, 0))
	}
	if f32At(t, b, 16) != 0.1 || f32At(t, b, 28) != 1 {
		t.Error("background misplaced")
	}
	for i, off := range []int{32, 48, 64, 80} {
		if got := i32At(t, b, off); got != int32(i+1) { //nolint:gosec // small
			t.Errorf("count at %d = %d, want %d", off, got, i+1)
		}
	}
}

func TestCameraRoundTrip(t *testing.T) {
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	c := NewCamera(view, mgl32.DegToRad(60), 1)
	b := Encode(&c)
	if len(b) != CameraSize {
		t.Fatalf("len = %d, want %d", len(b), CameraSize)
	}
	got, err := Decode[Camera](b)
	if err != nil {
		t.Fatal(err)
	}
	// Camera origin is the translation column of the inverse view.
	eye := mgl32.Mat4(got.InvView).Col(3)
	if !eye.Vec3().ApproxEqualThreshold(mgl32.Vec3{0, 0, 5}, 1e-5) {
		t.Errorf("eye = %v, want (0,0,5)", eye)
	}
	if math.Abs(float64(got.TanHalfFov)-math.Tan(math.Pi/6)) > 1e-6 {
		t.Errorf("tan(fov/2) = %v", got.TanHalfFov)
	}
}

func TestUnpack(t *testing.T) {
	in := []Sphere{{Radius: 1, Material: 0}, {Center: [3]float32{1, 1, 1}, Radius: 2, Material: 1}}
	out, err := Unpack[Sphere](Pack(in), 2)
	if err != nil {
		t.Fatal(err)
	}
	if out[1] != in[1] {
		t.Errorf("Unpack()[1] = %+v, want %+v", out[1], in[1])
	}
	if _, err := Unpack[Sphere](make([]byte, SphereStride), 2); err == nil {
		t.Error("Unpack() with short data should fail")
	}
}

func TestUnorm8(t *testing.T) {
	tests := []struct {
		in   float32
		want uint8
	}{
		{-1, 0}, {0, 0}, {0.5, 128}, {1, 255}, {2, 255}, {float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		if got := Unorm8(tt.in); got != tt.want {
			t.Errorf("Unorm8(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
