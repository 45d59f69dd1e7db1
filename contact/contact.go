package contact

import (
	"github.com/chewxy/math32"

	"lumen/ray"
	"lumen/vmath/vec3"
)

// Contact describes where a ray met a surface.
type Contact struct {
	// T is the ray parameter at the contact.
	T float32

	// R is the ray that produced the contact.
	R ray.Ray

	P vec3.T

	// N is the unit surface normal, pointing out of the surface regardless of
	// which side the ray arrived from.
	N vec3.T
}

// ContactNaN is the contact reported when a ray misses.
func ContactNaN() Contact {
	return Contact{
		T: math32.NaN(),
	}
}

func (c Contact) Missed() bool {
	return math32.IsNaN(c.T)
}
