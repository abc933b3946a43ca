// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/raytrace/gpucore"
)

//go:embed shaders/textured.wgsl
var texturedWGSL string

// Bindings of the textured pipeline, all in @group(0).
const (
	bindingTransforms uint32 = 0
	bindingTexture    uint32 = 1
	bindingSampler    uint32 = 2
)

// VertexStride is the size of one textured vertex: position.xy then uv.
const VertexStride = 16

// Vertex is one textured vertex.
type Vertex struct {
	Position [2]float32
	UV       [2]float32
}

// EncodeVertices packs vertices in the textured pipeline's layout.
func EncodeVertices(vs []Vertex) []byte {
	out, _ := binary.Append(make([]byte, 0, len(vs)*VertexStride), binary.LittleEndian, vs)
	return out
}

// texturedProgram is the CPU form of vs_main/fs_main in textured.wgsl.
// Each triangle maps texture space to the target with one affine
// transform, which is exact for the screen-aligned triangles it draws.
type texturedProgram struct{}

func (texturedProgram) Draw(b *gpucore.Bindings, vertices []byte, stride uint64, first, count uint32, target *image.RGBA) error {
	raw, err := b.Buffer(0, bindingTransforms)
	if err != nil {
		return err
	}
	tex, err := b.Texture(0, bindingTexture)
	if err != nil {
		return err
	}
	filter, err := b.Sampler(0, bindingSampler)
	if err != nil {
		return err
	}

	var m [gpucore.TransformCount]mgl32.Mat4
	if _, err := binary.Decode(raw, binary.LittleEndian, &m); err != nil {
		return fmt.Errorf("render: transforms: %w", err)
	}
	mvp := m[gpucore.TransformProjection].Mul4(m[gpucore.TransformView]).Mul4(m[gpucore.TransformWorld])

	var interp draw.Interpolator = draw.NearestNeighbor
	if filter == gpucore.FilterLinear {
		interp = draw.ApproxBiLinear
	}

	w, h := float64(target.Rect.Dx()), float64(target.Rect.Dy())
	tw, th := float64(tex.Rect.Dx()), float64(tex.Rect.Dy())
	for v0 := first; v0+3 <= first+count; v0 += 3 {
		var src, dst [3]f64.Vec2
		visible := true
		for k := range uint32(3) {
			v, err := vertexAt(vertices, stride, v0+k)
			if err != nil {
				return err
			}
			clip := mvp.Mul4x1(mgl32.Vec4{v.Position[0], v.Position[1], 0, 1})
			if clip[3] <= 0 {
				visible = false
				break
			}
			ndcX, ndcY := float64(clip[0]/clip[3]), float64(clip[1]/clip[3])
			dst[k] = f64.Vec2{(ndcX + 1) / 2 * w, (1 - ndcY) / 2 * h}
			src[k] = f64.Vec2{float64(v.UV[0]) * tw, float64(v.UV[1]) * th}
		}
		if !visible {
			continue
		}
		s2d, ok := affine(src, dst)
		if !ok {
			continue
		}
		interp.Transform(target, s2d, tex, tex.Rect, draw.Src, &draw.Options{
			DstMask: triangle(dst),
		})
	}
	return nil
}

func vertexAt(data []byte, stride uint64, i uint32) (Vertex, error) {
	off := uint64(i) * stride
	if off+VertexStride > uint64(len(data)) {
		return Vertex{}, fmt.Errorf("render: vertex %d outside vertex buffer (%d bytes)", i, len(data))
	}
	var v Vertex
	_, err := binary.Decode(data[off:off+VertexStride], binary.LittleEndian, &v)
	return v, err
}

// affine solves for the transform taking the src triangle onto dst.
func affine(src, dst [3]f64.Vec2) (f64.Aff3, bool) {
	a, b := src[1][0]-src[0][0], src[1][1]-src[0][1]
	c, d := src[2][0]-src[0][0], src[2][1]-src[0][1]
	det := a*d - c*b
	if math.Abs(det) < 1e-12 || math.Abs(area(dst)) < 1e-12 {
		return f64.Aff3{}, false
	}
	p, q := dst[1][0]-dst[0][0], dst[1][1]-dst[0][1]
	r, s := dst[2][0]-dst[0][0], dst[2][1]-dst[0][1]

	// [p r; q s] * inverse([a c; b d])
	m00 := (p*d - r*b) / det
	m01 := (r*a - p*c) / det
	m10 := (q*d - s*b) / det
	m11 := (s*a - q*c) / det
	tx := dst[0][0] - m00*src[0][0] - m01*src[0][1]
	ty := dst[0][1] - m10*src[0][0] - m11*src[0][1]
	return f64.Aff3{m00, m01, tx, m10, m11, ty}, true
}

func area(t [3]f64.Vec2) float64 {
	return (t[1][0]-t[0][0])*(t[2][1]-t[0][1]) - (t[2][0]-t[0][0])*(t[1][1]-t[0][1])
}

// triangle is a coverage mask: opaque at pixels whose center lies inside
// or on the edge of the triangle.
type triangle [3]f64.Vec2

func (t triangle) ColorModel() color.Model { return color.Alpha16Model }

func (t triangle) Bounds() image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range t {
		minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
		minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

func (t triangle) At(x, y int) color.Color {
	if t.covers(float64(x)+0.5, float64(y)+0.5) {
		return color.Alpha16{A: 0xffff}
	}
	return color.Alpha16{}
}

func (t triangle) covers(px, py float64) bool {
	const eps = 1e-9
	sign := 1.0
	if area(t) < 0 {
		sign = -1
	}
	for i := range 3 {
		a, b := t[i], t[(i+1)%3]
		e := (b[0]-a[0])*(py-a[1]) - (b[1]-a[1])*(px-a[0])
		if e*sign < -eps {
			return false
		}
	}
	return true
}
