package ray

import (
	"github.com/chewxy/math32"

	"lumen/vmath/vec3"
)

// Span is an open parametric interval (Lo, Hi) along a ray.
type Span struct {
	Lo, Hi float32
}

// ForwardSpan is the interval the integrator searches for surfaces.  The lower
// bound keeps a freshly scattered ray from re-hitting the surface it left.
func ForwardSpan() Span {
	return Span{0.001, math32.Inf(1)}
}

// Contains reports whether t lies strictly inside the span.
func (s Span) Contains(t float32) bool {
	return s.Lo < t && t < s.Hi
}

type Ray struct {
	Point vec3.T
	Slope vec3.T
}

func (r *Ray) Eval(t float32) vec3.T {
	return vec3.T{
		r.Point[0] + t*r.Slope[0],
		r.Point[1] + t*r.Slope[1],
		r.Point[2] + t*r.Slope[2],
	}
}

type RaySegment struct {
	TheRay     Ray
	TheSegment Span
}
