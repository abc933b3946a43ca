package main

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace"
	"github.com/gogpu/raytrace/backend/software"
	"github.com/gogpu/raytrace/render"
	"github.com/gogpu/raytrace/scene"
)

func TestDecodeScene_Default(t *testing.T) {
	sf, err := loadScene("")
	if err != nil {
		t.Fatal(err)
	}
	if len(sf.Materials) != 2 || len(sf.Spheres) != 1 || len(sf.Planes) != 1 || len(sf.Lights) != 1 {
		t.Fatalf("counts = %d/%d/%d/%d", len(sf.Materials), len(sf.Spheres), len(sf.Planes), len(sf.Lights))
	}
	if sf.Spheres[0].Radius != 1 {
		t.Errorf("radius = %v", sf.Spheres[0].Radius)
	}
	if sf.Camera.Eye == nil || *sf.Camera.Eye != [3]float32{0, 1, 6} {
		t.Errorf("eye = %v", sf.Camera.Eye)
	}
}

func TestDecodeScene_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", "[[sphere]]\nradius = 1.0\ncolour = 2\n"},
		{"bad syntax", "[[sphere]\n"},
		{"wrong type", "[[sphere]]\nradius = \"big\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeScene(strings.NewReader(tt.src)); err == nil {
				t.Error("decodeScene() succeeded")
			}
		})
	}
}

func TestLightFile(t *testing.T) {
	dir := [3]float32{0, -1, 0}
	l, err := lightFile{Kind: "directional", Dir: &dir}.light()
	if err != nil {
		t.Fatal(err)
	}
	if l.Kind != scene.LightDirectional || l.Vector != (mgl32.Vec3{0, -1, 0}) {
		t.Errorf("light = %+v", l)
	}
	if _, err := (lightFile{Kind: "point"}).light(); err == nil {
		t.Error("point light without position accepted")
	}
	if _, err := (lightFile{Kind: "spot"}).light(); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestApply(t *testing.T) {
	dev := software.New()
	t.Cleanup(dev.Close)
	r, err := render.NewOffscreen(dev, render.WithSize(32, 32))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Close)
	rt := raytrace.New(r)
	if err := rt.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(rt.Close)

	sf, err := loadScene("")
	if err != nil {
		t.Fatal(err)
	}
	if err := sf.apply(rt); err != nil {
		t.Fatal(err)
	}
	want := scene.Counts{Spheres: 1, Materials: 2, Planes: 1, Lights: 1}
	if got := rt.Scene().Counts(); got != want {
		t.Errorf("Counts() = %+v, want %+v", got, want)
	}
	if !rt.View().IsSet() {
		t.Error("camera did not set the view transform")
	}
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}

	bad := &sceneFile{Spheres: []sphereFile{{Radius: 1, Material: 7}}}
	if err := bad.apply(rt); err == nil {
		t.Error("sphere with unknown material accepted")
	}
}
