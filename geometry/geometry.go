package geometry

import (
	"github.com/chewxy/math32"

	"lumen/contact"
	"lumen/ray"
	"lumen/vmath/vec3"
)

type Geometry interface {
	// RayInto returns the nearest contact strictly inside the query segment,
	// or ContactNaN if there is none.
	RayInto(query ray.RaySegment) contact.Contact
}

// Sphere is a Geometry bounded by |P - Center| == Radius.
//
// Radius must be positive; degenerate spheres are not rejected and yield
// either no contacts or NaN contacts.
type Sphere struct {
	Center vec3.T
	Radius float32
}

func (s *Sphere) RayInto(query ray.RaySegment) contact.Contact {
	oc := vec3.SubVV(query.TheRay.Point, s.Center)
	a := vec3.IProd(query.TheRay.Slope, query.TheRay.Slope)
	b := vec3.IProd(oc, query.TheRay.Slope)
	c := vec3.IProd(oc, oc) - s.Radius*s.Radius

	discriminant := b*b - a*c
	if discriminant <= 0 {
		return contact.ContactNaN()
	}

	root := math32.Sqrt(discriminant)

	t := (-b - root) / a
	if !query.TheSegment.Contains(t) {
		t = (-b + root) / a
		if !query.TheSegment.Contains(t) {
			return contact.ContactNaN()
		}
	}

	p := query.TheRay.Eval(t)
	return contact.Contact{
		T: t,
		R: query.TheRay,
		P: p,
		N: vec3.DivVS(vec3.SubVV(p, s.Center), s.Radius),
	}
}
