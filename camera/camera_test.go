package camera

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"lumen/vmath/mat33"
	"lumen/vmath/vec3"
)

var approx = cmpopts.EquateApprox(1e-5, 1e-5)

func pinhole() *ThinLens {
	return New(Config{
		LookFrom:      vec3.T{0, 0, 0},
		LookAt:        vec3.T{0, 0, -1},
		Up:            vec3.T{0, 1, 0},
		VerticalFOV:   90,
		AspectRatio:   2,
		Aperture:      0,
		FocusDistance: 1,
	})
}

// axis returns the i-th lens basis vector in world space.
func axis(c *ThinLens, i int) vec3.T {
	e := vec3.T{}
	e[i] = 1
	return mat33.MulMV(c.LensToWorld, e)
}

func TestBasisIsOrthonormal(t *testing.T) {
	c := New(Config{
		LookFrom:      vec3.T{3, 3, 2},
		LookAt:        vec3.T{0, 0, -1},
		Up:            vec3.T{0, 1, 0},
		VerticalFOV:   20,
		AspectRatio:   2,
		Aperture:      2,
		FocusDistance: 5,
	})

	axes := []vec3.T{axis(c, 0), axis(c, 1), axis(c, 2)}
	for i := range axes {
		for j := range axes {
			want := float32(0)
			if i == j {
				want = 1
			}
			if got := vec3.IProd(axes[i], axes[j]); !cmp.Equal(got, want, approx) {
				t.Errorf("Bad inner product of axes %d and %d; got %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestPinholeCenterRayLooksAtTarget(t *testing.T) {
	c := pinhole()
	r := c.GetRay(0.5, 0.5, rand.New(rand.NewSource(1)))

	if diff := cmp.Diff(r.Point, vec3.T{0, 0, 0}); diff != "" {
		t.Errorf("Bad origin; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(r.Slope, vec3.T{0, 0, -1}, approx); diff != "" {
		t.Errorf("Bad direction; diff (-got +want)\n%s", diff)
	}
}

func TestPinholeLowerLeftCorner(t *testing.T) {
	c := pinhole()
	r := c.GetRay(0, 0, rand.New(rand.NewSource(1)))

	// A 90 degree vertical field of view at unit focus distance spans [-1, 1]
	// vertically, and twice that horizontally.
	if diff := cmp.Diff(r.Slope, vec3.T{-2, -1, -1}, approx); diff != "" {
		t.Errorf("Bad direction; diff (-got +want)\n%s", diff)
	}
}

func TestThinLensRaysConvergeOnFocusPlane(t *testing.T) {
	c := New(Config{
		LookFrom:      vec3.T{0, 0, 0},
		LookAt:        vec3.T{0, 0, -1},
		Up:            vec3.T{0, 1, 0},
		VerticalFOV:   40,
		AspectRatio:   1.5,
		Aperture:      2,
		FocusDistance: 5,
	})
	rng := rand.New(rand.NewSource(99))

	focusRay := c.GetRay(0.3, 0.7, rng)
	focus := focusRay.Eval(1)
	sawOffset := false
	for i := 0; i < 100; i++ {
		r := c.GetRay(0.3, 0.7, rng)

		offset := vec3.SubVV(r.Point, c.Center)
		if offset.Norm() >= c.LensRadius {
			t.Fatalf("Ray origin %v is off the lens", r.Point)
		}
		if w := vec3.IProd(offset, axis(c, 2)); math32.Abs(w) > 1e-5 {
			t.Fatalf("Ray origin %v is out of the lens plane", r.Point)
		}
		if offset.Norm() > 0 {
			sawOffset = true
		}

		if diff := cmp.Diff(r.Eval(1), focus, approx); diff != "" {
			t.Fatalf("Ray doesn't pass through the focus point; diff (-got +want)\n%s", diff)
		}
	}
	if !sawOffset {
		t.Errorf("Lens sampling never moved the ray origin")
	}
}
