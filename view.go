package raytrace

import "github.com/go-gl/mathgl/mgl32"

// ViewTransform is either unset or a world-to-camera matrix.
// The zero value is unset.
type ViewTransform struct {
	m   mgl32.Mat4
	set bool
}

// NewViewTransform returns a set view transform.
func NewViewTransform(m mgl32.Mat4) ViewTransform {
	return ViewTransform{m: m, set: true}
}

// IsSet reports whether a matrix has been supplied.
func (v ViewTransform) IsSet() bool { return v.set }

// Matrix returns the supplied matrix and whether one was supplied.
func (v ViewTransform) Matrix() (mgl32.Mat4, bool) { return v.m, v.set }

// Resolve returns the supplied matrix, or DefaultView when unset.
func (v ViewTransform) Resolve() mgl32.Mat4 {
	if v.set {
		return v.m
	}
	return DefaultView()
}

// DefaultView looks from (0, 0, 5) at the origin with +Y up.
func DefaultView() mgl32.Mat4 {
	return mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
}
