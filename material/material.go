package material

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"

	"lumen/contact"
	"lumen/ray"
	"lumen/vmath/vec3"
)

type Kind int

const (
	KindLambertian Kind = iota
	KindMetal
	KindDielectric
)

func (k Kind) String() string {
	switch k {
	case KindLambertian:
		return "lambertian"
	case KindMetal:
		return "metal"
	case KindDielectric:
		return "dielectric"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Material is a closed set of surface behaviors.  Only the fields relevant to
// Kind are meaningful.
type Material struct {
	Kind Kind

	// Albedo is the per-channel reflectance of lambertian and metal surfaces.
	Albedo vec3.T

	// Fuzz perturbs metal reflections.  It is clamped to [0, 1] when used, so a
	// negative fuzz behaves like a perfect mirror.
	Fuzz float32

	RefractiveIndex float32
}

func Lambertian(albedo vec3.T) Material {
	return Material{Kind: KindLambertian, Albedo: albedo}
}

func Metal(albedo vec3.T, fuzz float32) Material {
	return Material{Kind: KindMetal, Albedo: albedo, Fuzz: fuzz}
}

func Dielectric(refractiveIndex float32) Material {
	return Material{Kind: KindDielectric, RefractiveIndex: refractiveIndex}
}

type ScatterInfo struct {
	Attenuation vec3.T
	Scattered   ray.Ray
}

// Scatter decides what happens to in at c.  ok is false when the surface
// absorbs the ray.
func (m Material) Scatter(in ray.Ray, c contact.Contact, rng *rand.Rand) (info ScatterInfo, ok bool) {
	switch m.Kind {
	case KindLambertian:
		return m.scatterLambertian(c, rng), true
	case KindMetal:
		return m.scatterMetal(in, c, rng)
	case KindDielectric:
		return m.scatterDielectric(in, c, rng), true
	}
	panic(fmt.Sprintf("unhandled material kind %v", m.Kind))
}

func (m Material) scatterLambertian(c contact.Contact, rng *rand.Rand) ScatterInfo {
	target := vec3.AddVV(vec3.AddVV(c.P, c.N), vec3.UniformInUnitSphere(rng))
	return ScatterInfo{
		Attenuation: m.Albedo,
		Scattered: ray.Ray{
			Point: c.P,
			Slope: vec3.SubVV(target, c.P),
		},
	}
}

func (m Material) scatterMetal(in ray.Ray, c contact.Contact, rng *rand.Rand) (ScatterInfo, bool) {
	fuzz := m.Fuzz
	if fuzz < 0 {
		fuzz = 0
	}
	if fuzz > 1 {
		fuzz = 1
	}

	dir := vec3.Reflect(vec3.Normalize(in.Slope), c.N)
	if fuzz != 0 {
		dir = vec3.AddVV(dir, vec3.MulVS(vec3.UniformInUnitSphere(rng), fuzz))
	}

	info := ScatterInfo{
		Attenuation: m.Albedo,
		Scattered: ray.Ray{
			Point: c.P,
			Slope: dir,
		},
	}
	return info, vec3.IProd(dir, c.N) > 0
}

func (m Material) scatterDielectric(in ray.Ray, c contact.Contact, rng *rand.Rand) ScatterInfo {
	idx := m.RefractiveIndex
	cosIn := vec3.IProd(in.Slope, c.N)

	var outwardNormal vec3.T
	var niOverNt, cosine float32
	if cosIn > 0 {
		// Leaving the surface.
		outwardNormal = vec3.Neg(c.N)
		niOverNt = idx
		cosine = idx * cosIn / in.Slope.Norm()
	} else {
		outwardNormal = c.N
		niOverNt = 1 / idx
		cosine = -cosIn / in.Slope.Norm()
	}

	reflectProbability := float32(1.0)
	refracted, canRefract := Refract(in.Slope, outwardNormal, niOverNt)
	if canRefract {
		reflectProbability = Schlick(cosine, idx)
	}

	dir := refracted
	if rng.Float32() < reflectProbability {
		dir = vec3.Reflect(in.Slope, c.N)
	}

	return ScatterInfo{
		Attenuation: vec3.T{1, 1, 1},
		Scattered: ray.Ray{
			Point: c.P,
			Slope: dir,
		},
	}
}

// Refract bends v through a boundary with unit normal n by Snell's law.  ok is
// false on total internal reflection.
func Refract(v, n vec3.T, niOverNt float32) (refracted vec3.T, ok bool) {
	uv := vec3.Normalize(v)
	dt := vec3.IProd(uv, n)
	discriminant := 1 - niOverNt*niOverNt*(1-dt*dt)
	if discriminant <= 0 {
		return vec3.T{}, false
	}

	return vec3.SubVV(
		vec3.MulVS(vec3.SubVV(uv, vec3.MulVS(n, dt)), niOverNt),
		vec3.MulVS(n, math32.Sqrt(discriminant)),
	), true
}

// Schlick approximates Fresnel reflectance at the given incidence cosine.
func Schlick(cosine, refractiveIndex float32) float32 {
	r0 := (1 - refractiveIndex) / (1 + refractiveIndex)
	r0 = r0 * r0
	return r0 + (1-r0)*math32.Pow(1-cosine, 5)
}
