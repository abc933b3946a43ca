// Package abi defines the byte layout of the ray tracer's GPU records.
//
// Scene records are tightly packed 4-byte scalars indexed by byte stride,
// the layout of HLSL structured buffers. The kernel reads them as
// array<u32> and indexes by word stride, so these structs are the single
// source of truth for both sides. Padding is explicit and zero-filled.
//
// Uniform records (Params, Camera) follow WGSL uniform layout: every
// field group starts on a 16-byte boundary.
package abi

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/scene"
)

// Record strides in bytes.
const (
	LightStride    = 28
	MaterialStride = 32
	SphereStride   = 20
	PlaneStride    = 36
	ParamsSize     = 96
	CameraSize     = 80
)

// Light mirrors the GPU light record.
type Light struct {
	Kind   int32
	_      [3]int32
	Vector [3]float32
}

// Material mirrors the GPU material record.
type Material struct {
	AmbientColor     [3]float32
	AmbientIntensity float32
	Reflectivity     float32
	_                [3]float32
}

// Sphere mirrors the GPU sphere record.
type Sphere struct {
	Center   [3]float32
	Radius   float32
	Material int32
}

// Plane mirrors the GPU plane record. V1 is a point on the plane and V2
// its normal.
type Plane struct {
	V1       [3]float32
	_        float32
	V2       [3]float32
	_        float32
	Material int32
}

// Params is the per-dispatch uniform. Each count sits in the first lane
// of a 16-byte slot.
type Params struct {
	Epsilon      float32
	_            [3]float32
	Background   [4]float32
	NumSpheres   int32
	_            [3]int32
	NumMaterials int32
	_            [3]int32
	NumPlanes    int32
	_            [3]int32
	NumLights    int32
	_            [3]int32
}

// Camera is the per-dispatch view uniform.
type Camera struct {
	// InvView is the camera-to-world matrix, column-major.
	InvView    [16]float32
	TanHalfFov float32
	Aspect     float32
	_          [2]float32
}

// Compile-time layout checks: each pair fails to compile unless the Go
// struct size equals the stride exactly.
var (
	_ [LightStride - unsafe.Sizeof(Light{})]byte
	_ [unsafe.Sizeof(Light{}) - LightStride]byte
	_ [MaterialStride - unsafe.Sizeof(Material{})]byte
	_ [unsafe.Sizeof(Material{}) - MaterialStride]byte
	_ [SphereStride - unsafe.Sizeof(Sphere{})]byte
	_ [unsafe.Sizeof(Sphere{}) - SphereStride]byte
	_ [PlaneStride - unsafe.Sizeof(Plane{})]byte
	_ [unsafe.Sizeof(Plane{}) - PlaneStride]byte
	_ [ParamsSize - unsafe.Sizeof(Params{})]byte
	_ [unsafe.Sizeof(Params{}) - ParamsSize]byte
	_ [CameraSize - unsafe.Sizeof(Camera{})]byte
	_ [unsafe.Sizeof(Camera{}) - CameraSize]byte
)

// Record is any scene record type.
type Record interface {
	Light | Material | Sphere | Plane
}

// Stride returns the byte stride of record type T.
func Stride[T Record]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Pack encodes records back to back in little-endian order.
func Pack[T Record](records []T) []byte {
	buf := make([]byte, 0, len(records)*Stride[T]())
	for i := range records {
		// Fixed-size structs never fail to encode.
		buf, _ = binary.Append(buf, binary.LittleEndian, &records[i])
	}
	return buf
}

// Unpack decodes n records from data.
func Unpack[T Record](data []byte, n int) ([]T, error) {
	stride := Stride[T]()
	if n < 0 || len(data) < n*stride {
		return nil, fmt.Errorf("abi: %d bytes cannot hold %d records of %d bytes", len(data), n, stride)
	}
	out := make([]T, n)
	for i := range out {
		if _, err := binary.Decode(data[i*stride:(i+1)*stride], binary.LittleEndian, &out[i]); err != nil {
			return nil, fmt.Errorf("abi: decode record %d: %w", i, err)
		}
	}
	return out, nil
}

// Encode encodes a uniform record.
func Encode[T Params | Camera](v *T) []byte {
	buf, _ := binary.Append(make([]byte, 0, unsafe.Sizeof(*v)), binary.LittleEndian, v)
	return buf
}

// Decode decodes a uniform record.
func Decode[T Params | Camera](data []byte) (T, error) {
	var v T
	if _, err := binary.Decode(data, binary.LittleEndian, &v); err != nil {
		return v, fmt.Errorf("abi: decode uniform: %w", err)
	}
	return v, nil
}

// FromLight converts a scene light.
func FromLight(l scene.Light) Light {
	return Light{Kind: int32(l.Kind), Vector: l.Vector}
}

// FromMaterial converts a scene material.
func FromMaterial(m scene.Material) Material {
	return Material{
		AmbientColor:     m.AmbientColor,
		AmbientIntensity: m.AmbientIntensity,
		Reflectivity:     m.Reflectivity,
	}
}

// FromSphere converts a scene sphere.
func FromSphere(s scene.Sphere) Sphere {
	return Sphere{Center: s.Center, Radius: s.Radius, Material: int32(s.Material)} //nolint:gosec // material < scene.Capacity
}

// FromPlane converts a scene plane.
func FromPlane(p scene.Plane) Plane {
	return Plane{V1: p.Point, V2: p.Normal, Material: int32(p.Material)} //nolint:gosec // material < scene.Capacity
}

// NewParams builds the dispatch uniform.
func NewParams(epsilon float32, background [4]float32, c scene.Counts) Params {
	return Params{
		Epsilon:      epsilon,
		Background:   background,
		NumSpheres:   int32(c.Spheres),   //nolint:gosec // <= scene.Capacity
		NumMaterials: int32(c.Materials), //nolint:gosec // <= scene.Capacity
		NumPlanes:    int32(c.Planes),    //nolint:gosec // <= scene.Capacity
		NumLights:    int32(c.Lights),    //nolint:gosec // <= scene.Capacity
	}
}

// NewCamera builds the view uniform from a world-to-camera matrix.
func NewCamera(view mgl32.Mat4, fovY, aspect float32) Camera {
	return Camera{
		InvView:    view.Inv(),
		TanHalfFov: float32(math.Tan(float64(fovY) / 2)),
		Aspect:     aspect,
	}
}

// Unorm8 converts a channel value to an 8-bit unorm the way a GPU stores
// it into an rgba8unorm texture.
func Unorm8(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
