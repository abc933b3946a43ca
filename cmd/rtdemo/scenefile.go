package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/raytrace"
	"github.com/gogpu/raytrace/scene"
)

// sceneFile is the TOML form of a scene. Spheres and planes name their
// material by position in Materials.
type sceneFile struct {
	Camera    cameraFile     `toml:"camera"`
	Materials []materialFile `toml:"material"`
	Spheres   []sphereFile   `toml:"sphere"`
	Planes    []planeFile    `toml:"plane"`
	Lights    []lightFile    `toml:"light"`
}

type cameraFile struct {
	Eye    *[3]float32 `toml:"eye"`
	Target [3]float32  `toml:"target"`
	Up     *[3]float32 `toml:"up"`
}

type materialFile struct {
	Color        [3]float32 `toml:"color"`
	Intensity    float32    `toml:"intensity"`
	Reflectivity float32    `toml:"reflectivity"`
}

type sphereFile struct {
	Center   [3]float32 `toml:"center"`
	Radius   float32    `toml:"radius"`
	Material int        `toml:"material"`
}

type planeFile struct {
	Point    [3]float32 `toml:"point"`
	Normal   [3]float32 `toml:"normal"`
	Material int        `toml:"material"`
}

type lightFile struct {
	Kind     string      `toml:"kind"`
	Position *[3]float32 `toml:"position"`
	Dir      *[3]float32 `toml:"direction"`
}

// defaultScene is used when no scene file is given.
const defaultScene = `
[camera]
eye = [0.0, 1.0, 6.0]
target = [0.0, 0.0, 0.0]

[[material]]
color = [0.9, 0.2, 0.2]
intensity = 1.0
reflectivity = 0.2

[[material]]
color = [0.6, 0.6, 0.6]
intensity = 0.8
reflectivity = 0.5

[[sphere]]
center = [0.0, 0.0, 0.0]
radius = 1.0
material = 0

[[plane]]
point = [0.0, -1.0, 0.0]
normal = [0.0, 1.0, 0.0]
material = 1

[[light]]
kind = "point"
position = [3.0, 4.0, 4.0]
`

// loadScene decodes a scene file. An empty path loads the built-in scene.
func loadScene(path string) (*sceneFile, error) {
	var r io.Reader
	if path == "" {
		r = bytes.NewReader([]byte(defaultScene))
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	return decodeScene(r)
}

func decodeScene(r io.Reader) (*sceneFile, error) {
	var sf sceneFile
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return &sf, nil
}

// apply adds the scene to rt in file order: materials first.
func (sf *sceneFile) apply(rt *raytrace.RayTracer) error {
	for i, m := range sf.Materials {
		if _, err := rt.AddMaterial(scene.Material{
			AmbientColor:     mgl32.Vec3(m.Color),
			AmbientIntensity: m.Intensity,
			Reflectivity:     m.Reflectivity,
		}); err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}
	}
	for i, s := range sf.Spheres {
		if err := rt.AddSphere(scene.Sphere{
			Center:   mgl32.Vec3(s.Center),
			Radius:   s.Radius,
			Material: s.Material,
		}); err != nil {
			return fmt.Errorf("sphere %d: %w", i, err)
		}
	}
	for i, p := range sf.Planes {
		if err := rt.AddPlane(scene.Plane{
			Point:    mgl32.Vec3(p.Point),
			Normal:   mgl32.Vec3(p.Normal),
			Material: p.Material,
		}); err != nil {
			return fmt.Errorf("plane %d: %w", i, err)
		}
	}
	for i, l := range sf.Lights {
		light, err := l.light()
		if err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
		if err := rt.AddLight(light); err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
	}
	if eye := sf.Camera.Eye; eye != nil {
		up := mgl32.Vec3{0, 1, 0}
		if sf.Camera.Up != nil {
			up = mgl32.Vec3(*sf.Camera.Up)
		}
		rt.SetViewTransform(mgl32.LookAtV(mgl32.Vec3(*eye), mgl32.Vec3(sf.Camera.Target), up))
	}
	return nil
}

func (l lightFile) light() (scene.Light, error) {
	switch l.Kind {
	case "point", "":
		if l.Position == nil {
			return scene.Light{}, fmt.Errorf("point light needs a position")
		}
		return scene.Light{Kind: scene.LightPoint, Vector: mgl32.Vec3(*l.Position)}, nil
	case "directional":
		if l.Dir == nil {
			return scene.Light{}, fmt.Errorf("directional light needs a direction")
		}
		return scene.Light{Kind: scene.LightDirectional, Vector: mgl32.Vec3(*l.Dir)}, nil
	default:
		return scene.Light{}, fmt.Errorf("unknown light kind %q", l.Kind)
	}
}
