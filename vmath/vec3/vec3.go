package vec3

import (
	"math/rand"

	"github.com/chewxy/math32"
)

// T is a point, a direction, or an RGB color (r, g, b in elements 0, 1, 2).
type T [3]float32

func (v T) Norm() float32 {
	return math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func (v T) NormSquared() float32 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

func Normalize(v T) T {
	l := v.Norm()
	return T{
		v[0] / l,
		v[1] / l,
		v[2] / l,
	}
}

func AddVV(a, b T) T {
	return T{
		a[0] + b[0],
		a[1] + b[1],
		a[2] + b[2],
	}
}

func SubVV(a, b T) T {
	return T{
		a[0] - b[0],
		a[1] - b[1],
		a[2] - b[2],
	}
}

// MulVV is the component-wise product.  It is how a color attenuates another.
func MulVV(a, b T) T {
	return T{
		a[0] * b[0],
		a[1] * b[1],
		a[2] * b[2],
	}
}

func MulVS(a T, b float32) T {
	return T{
		a[0] * b,
		a[1] * b,
		a[2] * b,
	}
}

func DivVS(a T, b float32) T {
	return T{
		a[0] / b,
		a[1] / b,
		a[2] / b,
	}
}

func Neg(a T) T {
	return T{-a[0], -a[1], -a[2]}
}

func IProd(a, b T) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func CProd(a, b T) T {
	return T{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Reflect mirrors a about n.  n must be unit length.
func Reflect(a, n T) T {
	return SubVV(a, MulVS(n, 2*IProd(a, n)))
}

// Lerp returns (1-t)*a + t*b.
func Lerp(t float32, a, b T) T {
	return AddVV(MulVS(a, 1-t), MulVS(b, t))
}

// UniformInUnitSphere rejection-samples a point strictly inside the unit ball.
func UniformInUnitSphere(rng *rand.Rand) T {
	for {
		p := T{
			2*rng.Float32() - 1,
			2*rng.Float32() - 1,
			2*rng.Float32() - 1,
		}
		if p.NormSquared() < 1.0 {
			return p
		}
	}
}

// UniformInUnitDisk rejection-samples a point strictly inside the unit disk in
// the z=0 plane.
func UniformInUnitDisk(rng *rand.Rand) T {
	for {
		p := T{
			2*rng.Float32() - 1,
			2*rng.Float32() - 1,
			0,
		}
		if p.NormSquared() < 1.0 {
			return p
		}
	}
}
