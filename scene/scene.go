package scene

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"

	"lumen/contact"
	"lumen/geometry"
	"lumen/material"
	"lumen/ray"
	"lumen/vmath/vec3"
)

// DefaultMaxDepth bounds the number of scattering events along one path.
const DefaultMaxDepth = 50

var (
	horizonColor = vec3.T{1.0, 1.0, 1.0}
	zenithColor  = vec3.T{0.5, 0.7, 1.0}
)

type SceneElement struct {
	TheGeometry geometry.Geometry
	TheMaterial material.Material
}

// Scene is an unordered collection of elements.  Build it with AddElement,
// then Crush it; after Crush it is read-only and may be shared by any number of
// rendering goroutines.
type Scene struct {
	Name     string
	Elements []*SceneElement

	CrushedElements []SceneElement
	crushed         bool
}

func (s *Scene) AddElement(e *SceneElement) int {
	s.Elements = append(s.Elements, e)
	return len(s.Elements) - 1
}

func (s *Scene) AddSphere(center vec3.T, radius float32, m material.Material) int {
	return s.AddElement(&SceneElement{
		TheGeometry: &geometry.Sphere{Center: center, Radius: radius},
		TheMaterial: m,
	})
}

// Crush snapshots the elements for rendering.  Later changes to Elements are
// not seen by the renderer.
func (s *Scene) Crush() {
	s.CrushedElements = make([]SceneElement, 0, len(s.Elements))
	for _, e := range s.Elements {
		s.CrushedElements = append(s.CrushedElements, *e)
	}
	s.crushed = true
}

func (s *Scene) Crushed() bool {
	return s.crushed
}

// Fingerprint identifies the crushed scene's contents.
func (s *Scene) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%q\n", s.Name)
	for _, e := range s.CrushedElements {
		fmt.Fprintf(h, "%v|%+v\n", e.TheGeometry, e.TheMaterial)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SceneRayIntersect finds the closest contact along worldQuery, and the index
// of the element that produced it (-1 for a miss).
func (s *Scene) SceneRayIntersect(worldQuery ray.RaySegment) (contact.Contact, int) {
	minContact := contact.ContactNaN()
	minElementIndex := -1

	for i := range s.CrushedElements {
		c := s.CrushedElements[i].TheGeometry.RayInto(worldQuery)
		if c.Missed() || c.T >= worldQuery.TheSegment.Hi {
			continue
		}
		worldQuery.TheSegment.Hi = c.T
		minContact = c
		minElementIndex = i
	}

	return minContact, minElementIndex
}

// Background is the radiance arriving along a ray that escapes the scene: a
// vertical gradient from white at the horizon to sky blue at the zenith.
func Background(r ray.Ray) vec3.T {
	unit := vec3.Normalize(r.Slope)
	t := 0.5 * (unit[1] + 1.0)
	return vec3.Lerp(t, horizonColor, zenithColor)
}

// SampleRay estimates the radiance arriving along initialQuery.  A path that is
// absorbed, or that is still bouncing after depthLim scattering events,
// contributes black.  bounces is the number of scattering events followed.
func (s *Scene) SampleRay(initialQuery ray.Ray, rng *rand.Rand, depthLim int) (radiance vec3.T, bounces int) {
	attenuation := vec3.T{1, 1, 1}
	curRay := initialQuery

	for depth := 0; ; depth++ {
		c, hitIndex := s.SceneRayIntersect(ray.RaySegment{
			TheRay:     curRay,
			TheSegment: ray.ForwardSpan(),
		})
		if hitIndex == -1 {
			return vec3.MulVV(attenuation, Background(curRay)), depth
		}

		if depth >= depthLim {
			return vec3.T{}, depth
		}

		shading, ok := s.CrushedElements[hitIndex].TheMaterial.Scatter(curRay, c, rng)
		if !ok {
			return vec3.T{}, depth
		}

		attenuation = vec3.MulVV(attenuation, shading.Attenuation)
		curRay = shading.Scattered
	}
}
