package scene

import (
	"errors"
	"slices"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func newStoreWithMaterial(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	if _, err := s.AddMaterial(Material{AmbientColor: mgl32.Vec3{1, 1, 1}}); err != nil {
		t.Fatalf("AddMaterial() error = %v", err)
	}
	return s
}

func TestStore_Empty(t *testing.T) {
	s := NewStore()
	if s.Dirty() {
		t.Error("new store should not be dirty")
	}
	if got := s.Counts(); got != (Counts{}) {
		t.Errorf("Counts() = %+v, want zero", got)
	}
}

func TestStore_MaterialIndices(t *testing.T) {
	s := NewStore()
	for want := 0; want < 5; want++ {
		got, err := s.AddMaterial(Material{AmbientIntensity: float32(want)})
		if err != nil {
			t.Fatalf("AddMaterial() error = %v", err)
		}
		if got != want {
			t.Errorf("AddMaterial() = %d, want %d", got, want)
		}
	}
	if s.Materials()[3].AmbientIntensity != 3 {
		t.Errorf("material 3 intensity = %v, want 3", s.Materials()[3].AmbientIntensity)
	}
}

func TestStore_CountsMatchCalls(t *testing.T) {
	s := newStoreWithMaterial(t)
	s.MarkClean()

	for i := 0; i < 7; i++ {
		if err := s.AddSphere(Sphere{Radius: 1}); err != nil {
			t.Fatalf("AddSphere() error = %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := s.AddPlane(Plane{Normal: mgl32.Vec3{0, 1, 0}}); err != nil {
			t.Fatalf("AddPlane() error = %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := s.AddLight(Light{Kind: LightPoint}); err != nil {
			t.Fatalf("AddLight() error = %v", err)
		}
	}

	want := Counts{Spheres: 7, Materials: 1, Planes: 3, Lights: 2}
	if got := s.Counts(); got != want {
		t.Errorf("Counts() = %+v, want %+v", got, want)
	}
	if !s.Dirty() {
		t.Error("store should be dirty after appends")
	}
}

func TestStore_CapacityRejectsWithoutSideEffects(t *testing.T) {
	s := newStoreWithMaterial(t)
	if err := s.AddLight(Light{Kind: LightDirectional, Vector: mgl32.Vec3{0, -1, 0}}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < Capacity; i++ {
		if err := s.AddSphere(Sphere{Radius: float32(i + 1)}); err != nil {
			t.Fatalf("AddSphere(%d) error = %v", i, err)
		}
	}
	s.MarkClean()
	before := s.Counts()
	version := s.Version()
	lights, materials := s.Lights(), s.Materials()

	err := s.AddSphere(Sphere{Radius: 100})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("17th AddSphere() error = %v, want ErrCapacityExceeded", err)
	}
	if got := s.Counts(); got != before {
		t.Errorf("Counts() = %+v after rejected append, want %+v", got, before)
	}
	if s.Dirty() {
		t.Error("rejected append must not mark the store dirty")
	}
	if s.Version() != version {
		t.Error("rejected append must not change the version")
	}
	if last := s.Spheres()[Capacity-1]; last.Radius != Capacity {
		t.Errorf("last sphere radius = %v, want %v", last.Radius, Capacity)
	}
	if got := s.Lights(); !slices.Equal(got, lights) {
		t.Errorf("Lights() = %+v after rejected append, want %+v", got, lights)
	}
	if got := s.Materials(); !slices.Equal(got, materials) {
		t.Errorf("Materials() = %+v after rejected append, want %+v", got, materials)
	}
}

func TestStore_Validation(t *testing.T) {
	tests := []struct {
		name string
		add  func(s *Store) error
		want error
	}{
		{"sphere material out of range", func(s *Store) error {
			return s.AddSphere(Sphere{Radius: 1, Material: 1})
		}, ErrInvalidMaterial},
		{"sphere negative material", func(s *Store) error {
			return s.AddSphere(Sphere{Radius: 1, Material: -1})
		}, ErrInvalidMaterial},
		{"sphere zero radius", func(s *Store) error {
			return s.AddSphere(Sphere{Radius: 0})
		}, ErrInvalidRadius},
		{"plane material out of range", func(s *Store) error {
			return s.AddPlane(Plane{Normal: mgl32.Vec3{0, 1, 0}, Material: 4})
		}, ErrInvalidMaterial},
		{"plane zero normal", func(s *Store) error {
			return s.AddPlane(Plane{})
		}, ErrInvalidPlane},
		{"unknown light", func(s *Store) error {
			return s.AddLight(Light{Kind: 7})
		}, ErrInvalidLight},
		{"sphere infinite radius", func(s *Store) error {
			return s.AddSphere(Sphere{Radius: math32.Inf(1)})
		}, ErrInvalidRadius},
		{"sphere NaN radius", func(s *Store) error {
			return s.AddSphere(Sphere{Radius: math32.NaN()})
		}, ErrInvalidRadius},
		{"sphere NaN center", func(s *Store) error {
			return s.AddSphere(Sphere{Center: mgl32.Vec3{0, math32.NaN(), 0}, Radius: 1})
		}, ErrNonFinite},
		{"plane NaN normal", func(s *Store) error {
			return s.AddPlane(Plane{Normal: mgl32.Vec3{0, math32.NaN(), 0}})
		}, ErrInvalidPlane},
		{"plane infinite normal", func(s *Store) error {
			return s.AddPlane(Plane{Normal: mgl32.Vec3{math32.Inf(-1), 1, 0}})
		}, ErrInvalidPlane},
		{"plane infinite point", func(s *Store) error {
			return s.AddPlane(Plane{Point: mgl32.Vec3{0, math32.Inf(1), 0}, Normal: mgl32.Vec3{0, 1, 0}})
		}, ErrNonFinite},
		{"light NaN vector", func(s *Store) error {
			return s.AddLight(Light{Kind: LightPoint, Vector: mgl32.Vec3{math32.NaN(), 0, 0}})
		}, ErrNonFinite},
		{"material infinite intensity", func(s *Store) error {
			_, err := s.AddMaterial(Material{AmbientIntensity: math32.Inf(1)})
			return err
		}, ErrNonFinite},
		{"material NaN color", func(s *Store) error {
			_, err := s.AddMaterial(Material{AmbientColor: mgl32.Vec3{1, math32.NaN(), 1}})
			return err
		}, ErrNonFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStoreWithMaterial(t)
			s.MarkClean()
			if err := tt.add(s); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if s.Dirty() {
				t.Error("rejected value must not mark the store dirty")
			}
			if got := s.Counts(); got != (Counts{Materials: 1}) {
				t.Errorf("Counts() = %+v, want only the material", got)
			}
		})
	}
}

func TestStore_MarkClean(t *testing.T) {
	s := newStoreWithMaterial(t)
	if !s.Dirty() {
		t.Fatal("AddMaterial should mark dirty")
	}
	s.MarkClean()
	if s.Dirty() {
		t.Error("MarkClean should clear dirty")
	}
}

func TestStore_ItemsAreCopies(t *testing.T) {
	s := newStoreWithMaterial(t)
	_ = s.AddSphere(Sphere{Radius: 2})
	spheres := s.Spheres()
	spheres[0].Radius = 9
	if s.Spheres()[0].Radius != 2 {
		t.Error("Spheres() must return a copy")
	}
}

func TestBounded(t *testing.T) {
	b := NewBounded[int](2)
	if b.Cap() != 2 || b.Len() != 0 {
		t.Fatalf("Cap/Len = %d/%d, want 2/0", b.Cap(), b.Len())
	}
	for want := 0; want < 2; want++ {
		idx, err := b.Append(want * 10)
		if err != nil || idx != want {
			t.Fatalf("Append() = %d, %v, want %d", idx, err, want)
		}
	}
	if !b.Full() {
		t.Error("Full() = false, want true")
	}
	if _, err := b.Append(99); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Append() on full error = %v", err)
	}
	if b.At(1) != 10 {
		t.Errorf("At(1) = %d, want 10", b.At(1))
	}
}

func TestLightKindString(t *testing.T) {
	if LightPoint.String() != "point" || LightDirectional.String() != "directional" {
		t.Error("unexpected LightKind names")
	}
	if LightKind(5).String() != "unknown" {
		t.Error("unexpected name for unknown kind")
	}
}
