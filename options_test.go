package raytrace

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want options
	}{
		{"defaults", nil, options{epsilon: 1e-4, background: [4]float32{0, 0, 0, 1}, fovDegrees: 60}},
		{"set", []Option{WithEpsilon(1e-3), WithBackground([4]float32{1, 0, 0, 0.5}), WithFieldOfView(90)},
			options{epsilon: 1e-3, background: [4]float32{1, 0, 0, 0.5}, fovDegrees: 90}},
		{"invalid ignored", []Option{WithEpsilon(0), WithEpsilon(-1), WithFieldOfView(180), WithFieldOfView(0)},
			options{epsilon: 1e-4, background: [4]float32{0, 0, 0, 1}, fovDegrees: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(nil, tt.opts...).opts; got != tt.want {
				t.Errorf("options = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestViewTransformZeroValue(t *testing.T) {
	var v ViewTransform
	if v.IsSet() {
		t.Error("zero ViewTransform is set")
	}
	if v.Resolve() != DefaultView() {
		t.Error("unset Resolve() is not DefaultView()")
	}
	eye := DefaultView().Inv().Col(3)
	if !eye.Vec3().ApproxEqualThreshold(mgl32.Vec3{0, 0, 5}, 1e-4) {
		t.Errorf("default eye = %v, want (0, 0, 5)", eye)
	}
}
