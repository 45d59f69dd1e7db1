package geometry

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"lumen/contact"
	"lumen/ray"
	"lumen/vmath/vec3"
)

func query(point, slope vec3.T) ray.RaySegment {
	return ray.RaySegment{
		TheRay:     ray.Ray{Point: point, Slope: slope},
		TheSegment: ray.ForwardSpan(),
	}
}

func TestSphereHitFromOutside(t *testing.T) {
	s := &Sphere{Center: vec3.T{0, 0, 0}, Radius: 1}
	q := query(vec3.T{0, 0, 5}, vec3.T{0, 0, -1})

	got := s.RayInto(q)
	want := contact.Contact{
		T: 4,
		R: q.TheRay,
		P: vec3.T{0, 0, 1},
		N: vec3.T{0, 0, 1},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad contact; diff (-got +want)\n%s", diff)
	}
}

func TestSphereHitFromInsideUsesFarRoot(t *testing.T) {
	s := &Sphere{Center: vec3.T{0, 0, 0}, Radius: 2}
	q := query(vec3.T{0, 0, 0}, vec3.T{1, 0, 0})

	got := s.RayInto(q)
	if got.Missed() {
		t.Fatalf("Ray from the center missed the sphere")
	}
	if got.T != 2 {
		t.Errorf("Bad contact parameter; got %v, want 2", got.T)
	}
	// The normal points outward even though the ray arrived from inside.
	if diff := cmp.Diff(got.N, vec3.T{1, 0, 0}); diff != "" {
		t.Errorf("Bad normal; diff (-got +want)\n%s", diff)
	}
}

func TestSphereMiss(t *testing.T) {
	s := &Sphere{Center: vec3.T{0, 0, 0}, Radius: 1}
	q := query(vec3.T{0, 5, 5}, vec3.T{0, 0, -1})

	if got := s.RayInto(q); !got.Missed() {
		t.Errorf("Expected a miss, got %+v", got)
	}
}

func TestSphereTangentIsMiss(t *testing.T) {
	s := &Sphere{Center: vec3.T{0, 0, 0}, Radius: 1}
	q := query(vec3.T{0, 1, 5}, vec3.T{0, 0, -1})

	if got := s.RayInto(q); !got.Missed() {
		t.Errorf("Expected a grazing ray to miss, got %+v", got)
	}
}

func TestSphereBehindRayIsMiss(t *testing.T) {
	s := &Sphere{Center: vec3.T{0, 0, 0}, Radius: 1}
	q := query(vec3.T{0, 0, 5}, vec3.T{0, 0, 1})

	if got := s.RayInto(q); !got.Missed() {
		t.Errorf("Expected a sphere behind the ray to miss, got %+v", got)
	}
}

func TestSphereRespectsSegmentUpperBound(t *testing.T) {
	s := &Sphere{Center: vec3.T{0, 0, 0}, Radius: 1}
	q := query(vec3.T{0, 0, 5}, vec3.T{0, 0, -1})
	q.TheSegment.Hi = 3

	if got := s.RayInto(q); !got.Missed() {
		t.Errorf("Expected a contact past Hi to be ignored, got %+v", got)
	}
}
