package scene

import "github.com/go-gl/mathgl/mgl32"

// Capacity is the maximum number of elements of each kind in a scene.
const Capacity = 16

// LightKind selects how a light's vector is interpreted.
type LightKind int32

// Light kinds. The numeric values are part of the GPU record format.
const (
	// LightPoint emits from a position in world space.
	LightPoint LightKind = 0

	// LightDirectional shines along a direction from infinitely far away.
	LightDirectional LightKind = 1
)

// String returns the name of the light kind.
func (k LightKind) String() string {
	switch k {
	case LightPoint:
		return "point"
	case LightDirectional:
		return "directional"
	default:
		return "unknown"
	}
}

// Light is a point or directional light.
type Light struct {
	Kind LightKind

	// Vector is the position of a point light, or the direction a
	// directional light travels.
	Vector mgl32.Vec3
}

// Material describes how a surface is shaded.
type Material struct {
	AmbientColor     mgl32.Vec3
	AmbientIntensity float32

	// Reflectivity in [0, 1] is the fraction of the color taken from the
	// reflected ray.
	Reflectivity float32
}

// Sphere is an analytic sphere.
type Sphere struct {
	Center   mgl32.Vec3
	Radius   float32
	Material int
}

// Plane is an infinite plane through Point with the given Normal.
type Plane struct {
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	Material int
}

// Counts holds the number of live elements of each kind.
type Counts struct {
	Spheres   int
	Materials int
	Planes    int
	Lights    int
}
