package scene

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Scene store errors.
var (
	// ErrCapacityExceeded is returned when appending to a full array.
	ErrCapacityExceeded = errors.New("scene: capacity exceeded")

	// ErrInvalidMaterial is returned when a sphere or plane references a
	// material index that has not been assigned.
	ErrInvalidMaterial = errors.New("scene: invalid material index")

	// ErrInvalidRadius is returned for a sphere whose radius is not a
	// positive finite number.
	ErrInvalidRadius = errors.New("scene: sphere radius must be positive and finite")

	// ErrInvalidPlane is returned for a plane with a zero or non-finite normal.
	ErrInvalidPlane = errors.New("scene: plane normal must be non-zero and finite")

	// ErrNonFinite is returned when a position, direction or material
	// channel is NaN or infinite.
	ErrNonFinite = errors.New("scene: non-finite value")

	// ErrInvalidLight is returned for a light of unknown kind.
	ErrInvalidLight = errors.New("scene: unknown light kind")
)

// Store is the CPU-side scene: four fixed-capacity arrays and a dirty flag.
//
// Every successful append marks the store dirty and advances Version. The
// flag is cleared only by MarkClean, after the derived GPU buffers have been
// rebuilt; the version never goes back. Rejected appends change nothing.
//
// Store is not safe for concurrent use.
type Store struct {
	spheres   Bounded[Sphere]
	materials Bounded[Material]
	planes    Bounded[Plane]
	lights    Bounded[Light]

	dirty bool

	// version is incremented on each modification.
	version uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		spheres:   NewBounded[Sphere](Capacity),
		materials: NewBounded[Material](Capacity),
		planes:    NewBounded[Plane](Capacity),
		lights:    NewBounded[Light](Capacity),
	}
}

// AddSphere appends a sphere.
func (s *Store) AddSphere(sp Sphere) error {
	if !(sp.Radius > 0) || math32.IsInf(sp.Radius, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRadius, sp.Radius)
	}
	if !finiteVec(sp.Center) {
		return fmt.Errorf("%w: sphere center %v", ErrNonFinite, sp.Center)
	}
	if err := s.checkMaterial(sp.Material); err != nil {
		return err
	}
	if _, err := s.spheres.Append(sp); err != nil {
		return fmt.Errorf("sphere: %w", err)
	}
	s.touch()
	return nil
}

// AddPlane appends a plane.
func (s *Store) AddPlane(p Plane) error {
	if !finiteVec(p.Normal) || p.Normal.Len() == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPlane, p.Normal)
	}
	if !finiteVec(p.Point) {
		return fmt.Errorf("%w: plane point %v", ErrNonFinite, p.Point)
	}
	if err := s.checkMaterial(p.Material); err != nil {
		return err
	}
	if _, err := s.planes.Append(p); err != nil {
		return fmt.Errorf("plane: %w", err)
	}
	s.touch()
	return nil
}

// AddLight appends a light.
func (s *Store) AddLight(l Light) error {
	if l.Kind != LightPoint && l.Kind != LightDirectional {
		return fmt.Errorf("%w: %d", ErrInvalidLight, l.Kind)
	}
	if !finiteVec(l.Vector) {
		return fmt.Errorf("%w: light vector %v", ErrNonFinite, l.Vector)
	}
	if _, err := s.lights.Append(l); err != nil {
		return fmt.Errorf("light: %w", err)
	}
	s.touch()
	return nil
}

// AddMaterial appends a material and returns its index. Indices are
// assigned in call order starting at 0.
func (s *Store) AddMaterial(m Material) (int, error) {
	if !finiteVec(m.AmbientColor) || !finite(m.AmbientIntensity) || !finite(m.Reflectivity) {
		return -1, fmt.Errorf("%w: material %+v", ErrNonFinite, m)
	}
	idx, err := s.materials.Append(m)
	if err != nil {
		return -1, fmt.Errorf("material: %w", err)
	}
	s.touch()
	return idx, nil
}

func (s *Store) checkMaterial(idx int) error {
	if idx < 0 || idx >= s.materials.Len() {
		return fmt.Errorf("%w: %d (have %d)", ErrInvalidMaterial, idx, s.materials.Len())
	}
	return nil
}

func finite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}

func finiteVec(v mgl32.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

func (s *Store) touch() {
	s.dirty = true
	s.version++
}

// Dirty reports whether the store changed since the last MarkClean.
func (s *Store) Dirty() bool { return s.dirty }

// MarkClean clears the dirty flag.
func (s *Store) MarkClean() { s.dirty = false }

// Version returns the modification counter.
func (s *Store) Version() uint64 { return s.version }

// Counts returns the number of live elements of each kind.
func (s *Store) Counts() Counts {
	return Counts{
		Spheres:   s.spheres.Len(),
		Materials: s.materials.Len(),
		Planes:    s.planes.Len(),
		Lights:    s.lights.Len(),
	}
}

// Spheres returns a copy of the spheres.
func (s *Store) Spheres() []Sphere { return s.spheres.Items() }

// Materials returns a copy of the materials.
func (s *Store) Materials() []Material { return s.materials.Items() }

// Planes returns a copy of the planes.
func (s *Store) Planes() []Plane { return s.planes.Items() }

// Lights returns a copy of the lights.
func (s *Store) Lights() []Light { return s.lights.Items() }
