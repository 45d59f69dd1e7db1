package camera

import (
	"math/rand"

	"github.com/chewxy/math32"

	"lumen/ray"
	"lumen/vmath/mat33"
	"lumen/vmath/vec3"
)

type Camera interface {
	// GetRay returns the primary ray through normalized screen coordinates
	// (s, t), with (0, 0) the lower left corner of the image.
	GetRay(s, t float32, rng *rand.Rand) ray.Ray
}

type Config struct {
	LookFrom vec3.T
	LookAt   vec3.T
	Up       vec3.T

	// VerticalFOV is in degrees.
	VerticalFOV float32
	AspectRatio float32

	// Aperture is the lens diameter.  Zero gives a pinhole camera.
	Aperture float32

	// FocusDistance is the distance from LookFrom to the plane of perfect
	// focus.
	FocusDistance float32
}

// ThinLens is a camera with a circular lens, producing depth of field.  It is
// immutable once built and safe to share across goroutines.
type ThinLens struct {
	Center vec3.T

	// LensToWorld has the camera basis (u, v, w) as its columns: u points
	// right, v up, and w backwards, away from the scene.
	LensToWorld mat33.T
	LensRadius  float32

	LowerLeftCorner vec3.T
	Horizontal      vec3.T
	Vertical        vec3.T
}

func New(cfg Config) *ThinLens {
	theta := cfg.VerticalFOV * math32.Pi / 180
	halfHeight := math32.Tan(theta / 2)
	halfWidth := cfg.AspectRatio * halfHeight

	w := vec3.Normalize(vec3.SubVV(cfg.LookFrom, cfg.LookAt))
	u := vec3.Normalize(vec3.CProd(cfg.Up, w))
	v := vec3.CProd(w, u)

	fd := cfg.FocusDistance

	lowerLeft := cfg.LookFrom
	lowerLeft = vec3.SubVV(lowerLeft, vec3.MulVS(u, halfWidth*fd))
	lowerLeft = vec3.SubVV(lowerLeft, vec3.MulVS(v, halfHeight*fd))
	lowerLeft = vec3.SubVV(lowerLeft, vec3.MulVS(w, fd))

	return &ThinLens{
		Center:          cfg.LookFrom,
		LensToWorld:     mat33.FromColumns(u, v, w),
		LensRadius:      cfg.Aperture / 2,
		LowerLeftCorner: lowerLeft,
		Horizontal:      vec3.MulVS(u, 2*halfWidth*fd),
		Vertical:        vec3.MulVS(v, 2*halfHeight*fd),
	}
}

func (c *ThinLens) GetRay(s, t float32, rng *rand.Rand) ray.Ray {
	origin := c.Center
	if c.LensRadius != 0 {
		rd := vec3.MulVS(vec3.UniformInUnitDisk(rng), c.LensRadius)
		origin = vec3.AddVV(origin, mat33.MulMV(c.LensToWorld, rd))
	}

	dir := vec3.AddVV(c.LowerLeftCorner, vec3.MulVS(c.Horizontal, s))
	dir = vec3.AddVV(dir, vec3.MulVS(c.Vertical, t))
	dir = vec3.SubVV(dir, origin)

	return ray.Ray{
		Point: origin,
		Slope: dir,
	}
}
