// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package kernel is the CPU form of the ray-trace compute shader.
//
// It follows shaders/raytrace.wgsl operation for operation so the software
// device produces the same image a GPU does, up to float rounding.
package kernel

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/internal/abi"
	"github.com/gogpu/raytrace/scene"
)

// Bind group 0 of the kernel.
const (
	BindingParams    = 0
	BindingCamera    = 1
	BindingSpheres   = 2
	BindingMaterials = 3
	BindingPlanes    = 4
	BindingLights    = 5
)

// Bind group 1 of the kernel.
const BindingOutput = 0

// Kernel constants.
const (
	// WorkgroupSize is the width and height of a workgroup.
	WorkgroupSize = 16

	// MaxBounces bounds the reflection depth. The last bounce is shaded as
	// if the surface were not reflective.
	MaxBounces = 4

	far = 1e30
)

// Program implements gpucore.ComputeProgram.
type Program struct{}

// New returns the CPU ray-trace program.
func New() *Program { return &Program{} }

// WorkgroupSize returns the kernel's workgroup size.
func (*Program) WorkgroupSize() [3]uint32 {
	return [3]uint32{WorkgroupSize, WorkgroupSize, 1}
}

// Bind decodes the scene buffers and returns a per-pixel invocation that
// writes the storage texture at group 1.
func (*Program) Bind(b *gpucore.Bindings) (gpucore.Invocation, error) {
	f, err := LoadFrame(b)
	if err != nil {
		return nil, err
	}
	out, err := b.Texture(1, BindingOutput)
	if err != nil {
		return nil, err
	}
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	return func(gid [3]uint32) {
		x, y := int(gid[0]), int(gid[1])
		if x >= w || y >= h {
			return
		}
		c := f.Pixel(x, y, w, h)
		i := out.PixOffset(out.Rect.Min.X+x, out.Rect.Min.Y+y)
		out.Pix[i+0] = abi.Unorm8(c[0])
		out.Pix[i+1] = abi.Unorm8(c[1])
		out.Pix[i+2] = abi.Unorm8(c[2])
		out.Pix[i+3] = abi.Unorm8(c[3])
	}, nil
}

// Frame is the decoded input of one dispatch.
type Frame struct {
	Params    abi.Params
	Camera    abi.Camera
	Spheres   []abi.Sphere
	Materials []abi.Material
	Planes    []abi.Plane
	Lights    []abi.Light
}

// LoadFrame decodes group 0 of b. Record counts come from the params
// uniform; buffers may hold more records than are live.
func LoadFrame(b *gpucore.Bindings) (*Frame, error) {
	raw := func(binding uint32) ([]byte, error) {
		data, err := b.Buffer(0, binding)
		if err != nil {
			return nil, fmt.Errorf("kernel: %w", err)
		}
		return data, nil
	}

	f := &Frame{}
	data, err := raw(BindingParams)
	if err != nil {
		return nil, err
	}
	if f.Params, err = abi.Decode[abi.Params](data); err != nil {
		return nil, err
	}
	if data, err = raw(BindingCamera); err != nil {
		return nil, err
	}
	if f.Camera, err = abi.Decode[abi.Camera](data); err != nil {
		return nil, err
	}

	if data, err = raw(BindingSpheres); err != nil {
		return nil, err
	}
	if f.Spheres, err = abi.Unpack[abi.Sphere](data, liveCount(f.Params.NumSpheres)); err != nil {
		return nil, err
	}
	if data, err = raw(BindingMaterials); err != nil {
		return nil, err
	}
	if f.Materials, err = abi.Unpack[abi.Material](data, liveCount(f.Params.NumMaterials)); err != nil {
		return nil, err
	}
	if data, err = raw(BindingPlanes); err != nil {
		return nil, err
	}
	if f.Planes, err = abi.Unpack[abi.Plane](data, liveCount(f.Params.NumPlanes)); err != nil {
		return nil, err
	}
	if data, err = raw(BindingLights); err != nil {
		return nil, err
	}
	if f.Lights, err = abi.Unpack[abi.Light](data, liveCount(f.Params.NumLights)); err != nil {
		return nil, err
	}
	return f, nil
}

func liveCount(n int32) int {
	if n < 0 {
		return 0
	}
	return int(n)
}

type hit struct {
	t        float32
	normal   mgl32.Vec3
	material int
}

// Pixel traces the primary ray through pixel (x, y) of a w×h image and
// returns the unclamped-alpha RGBA color with RGB clamped to [0, 1].
func (f *Frame) Pixel(x, y, w, h int) [4]float32 {
	eps := f.Params.Epsilon
	ndcX := (float32(x)+0.5)/float32(w)*2 - 1
	ndcY := 1 - (float32(y)+0.5)/float32(h)*2
	tanHalf, aspect := f.Camera.TanHalfFov, f.Camera.Aspect

	inv := mgl32.Mat4(f.Camera.InvView)
	origin := inv.Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
	dir := inv.Mul4x1(mgl32.Vec4{ndcX * tanHalf * aspect, ndcY * tanHalf, -1, 0}).Vec3().Normalize()

	var color mgl32.Vec3
	weight := float32(1)
	alpha := float32(1)
	bg := f.Params.Background

	for bounce := 0; bounce < MaxBounces; bounce++ {
		rec := f.closestHit(origin, dir)
		if rec.material < 0 {
			color = color.Add(mgl32.Vec3{bg[0], bg[1], bg[2]}.Mul(weight))
			if bounce == 0 {
				alpha = bg[3]
			}
			break
		}

		pos := origin.Add(dir.Mul(rec.t))
		m := f.material(rec.material)
		s := f.shade(pos, rec.normal, m)
		r := clamp01(m.Reflectivity)
		if bounce == MaxBounces-1 {
			r = 0
		}
		color = color.Add(s.Mul(weight * (1 - r)))
		if r <= 0 {
			break
		}
		weight *= r
		dir = reflect(dir, rec.normal)
		origin = pos.Add(rec.normal.Mul(eps))
	}

	return [4]float32{clamp01(color[0]), clamp01(color[1]), clamp01(color[2]), alpha}
}

// material returns material i, or a black material when i is not live.
func (f *Frame) material(i int) abi.Material {
	if i >= len(f.Materials) {
		return abi.Material{}
	}
	return f.Materials[i]
}

func (f *Frame) intersectSphere(s *abi.Sphere, origin, dir mgl32.Vec3) float32 {
	eps := f.Params.Epsilon
	oc := origin.Sub(s.Center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return -1
	}
	sq := math32.Sqrt(disc)
	if t0 := -b - sq; t0 > eps {
		return t0
	}
	if t1 := -b + sq; t1 > eps {
		return t1
	}
	return -1
}

func (f *Frame) intersectPlane(p *abi.Plane, origin, dir mgl32.Vec3) float32 {
	n := mgl32.Vec3(p.V2).Normalize()
	denom := n.Dot(dir)
	if math32.Abs(denom) < 1e-6 {
		return -1
	}
	t := mgl32.Vec3(p.V1).Sub(origin).Dot(n) / denom
	if t > f.Params.Epsilon {
		return t
	}
	return -1
}

func (f *Frame) closestHit(origin, dir mgl32.Vec3) hit {
	best := hit{t: far, material: -1}
	for i := range f.Spheres {
		s := &f.Spheres[i]
		if t := f.intersectSphere(s, origin, dir); t > 0 && t < best.t {
			best.t = t
			best.normal = origin.Add(dir.Mul(t)).Sub(s.Center).Normalize()
			best.material = int(s.Material)
		}
	}
	for i := range f.Planes {
		p := &f.Planes[i]
		if t := f.intersectPlane(p, origin, dir); t > 0 && t < best.t {
			best.t = t
			best.normal = mgl32.Vec3(p.V2).Normalize()
			best.material = int(p.Material)
		}
	}
	if best.material >= 0 && best.normal.Dot(dir) > 0 {
		best.normal = best.normal.Mul(-1)
	}
	return best
}

func (f *Frame) occluded(origin, dir mgl32.Vec3, maxT float32) bool {
	for i := range f.Spheres {
		if t := f.intersectSphere(&f.Spheres[i], origin, dir); t > 0 && t < maxT {
			return true
		}
	}
	for i := range f.Planes {
		if t := f.intersectPlane(&f.Planes[i], origin, dir); t > 0 && t < maxT {
			return true
		}
	}
	return false
}

func (f *Frame) shade(pos, n mgl32.Vec3, m abi.Material) mgl32.Vec3 {
	eps := f.Params.Epsilon
	light := m.AmbientIntensity

	for i := range f.Lights {
		l := &f.Lights[i]
		var dirToLight mgl32.Vec3
		dist := float32(far)
		if scene.LightKind(l.Kind) == scene.LightDirectional {
			dirToLight = mgl32.Vec3(l.Vector).Normalize().Mul(-1)
		} else {
			d := mgl32.Vec3(l.Vector).Sub(pos)
			dist = d.Len()
			dirToLight = d.Mul(1 / dist)
		}
		ndl := n.Dot(dirToLight)
		if ndl <= 0 {
			continue
		}
		if !f.occluded(pos.Add(n.Mul(eps)), dirToLight, dist) {
			light += ndl
		}
	}
	return mgl32.Vec3(m.AmbientColor).Mul(light)
}

// reflect mirrors WGSL reflect: d - 2*dot(n, d)*n.
func reflect(d, n mgl32.Vec3) mgl32.Vec3 {
	return d.Sub(n.Mul(2 * n.Dot(d)))
}

func clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}
