// Package scenepack loads scenes and their cameras from JSON scene files, and
// provides the built-in scenes.
//
// A scene file is a JSON object:
//
//	{
//	  "name": "three-balls",
//	  "camera": {"lookFrom": [3, 3, 2], "lookAt": [0, 0, -1], "vup": [0, 1, 0],
//	             "vfov": 20, "aperture": 0.1, "focusDist": 0},
//	  "spheres": [
//	    {"center": [0, 0, -1], "radius": 0.5,
//	     "material": {"type": "lambertian", "albedo": [0.1, 0.2, 0.5]}}
//	  ]
//	}
//
// Material types are "lambertian" (albedo), "metal" (albedo, fuzz) and
// "dielectric" (refractiveIndex).  Every camera field is optional.
package scenepack

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"lumen/camera"
	"lumen/geometry"
	"lumen/material"
	"lumen/scene"
	"lumen/vmath/vec3"
)

// Pack is a scene together with the camera it is meant to be viewed through.
// Camera.AspectRatio is left for the caller to fill in from the image size.
type Pack struct {
	Scene  *scene.Scene
	Camera camera.Config
}

// DefaultCamera looks down at the origin from above and to the right.  A zero
// FocusDistance is resolved by the caller to the look-from/look-at distance.
func DefaultCamera() camera.Config {
	return camera.Config{
		LookFrom:    vec3.T{3, 3, 2},
		LookAt:      vec3.T{0, 0, -1},
		Up:          vec3.T{0, 1, 0},
		VerticalFOV: 20,
		Aperture:    0,
	}
}

// BuiltinNames lists the names accepted by Builtin.
var BuiltinNames = []string{"weekend", "empty"}

func Builtin(name string) (*Pack, error) {
	switch name {
	case "weekend":
		s := &scene.Scene{Name: name}
		s.AddSphere(vec3.T{0, 0, -1}, 0.5, material.Lambertian(vec3.T{0.1, 0.2, 0.5}))
		s.AddSphere(vec3.T{0, -100.5, -1}, 100, material.Lambertian(vec3.T{0.8, 0.8, 0.0}))
		s.AddSphere(vec3.T{1, 0, -1}, 0.5, material.Metal(vec3.T{0.8, 0.6, 0.2}, 0.0))
		s.AddSphere(vec3.T{-1, 0, -1}, 0.5, material.Dielectric(1.5))
		return &Pack{Scene: s, Camera: DefaultCamera()}, nil
	case "empty":
		return &Pack{Scene: &scene.Scene{Name: name}, Camera: DefaultCamera()}, nil
	}
	return nil, fmt.Errorf("unknown built-in scene %q (have %v)", name, BuiltinNames)
}

// Load reads a scene file.
func Load(ctx context.Context, fileName string) (*Pack, error) {
	_, span := otel.Tracer("lumen/scenepack").Start(ctx, "scenepack.Load")
	defer span.End()
	span.SetAttributes(attribute.String("file", fileName))

	fileBytes, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("while reading scene file: %w", err)
	}

	st := &structpb.Struct{}
	if err := protojson.Unmarshal(fileBytes, st); err != nil {
		return nil, fmt.Errorf("while parsing scene file %q: %w", fileName, err)
	}

	pack, err := FromStruct(st)
	if err != nil {
		return nil, fmt.Errorf("in scene file %q: %w", fileName, err)
	}
	span.SetAttributes(attribute.Int("spheres", len(pack.Scene.Elements)))
	return pack, nil
}

// Save writes pack as a scene file that Load accepts.
func Save(fileName string, pack *Pack) error {
	st, err := ToStruct(pack)
	if err != nil {
		return fmt.Errorf("while converting scene: %w", err)
	}

	fileBytes, err := protojson.MarshalOptions{Multiline: true}.Marshal(st)
	if err != nil {
		return fmt.Errorf("while marshaling scene: %w", err)
	}

	if err := os.WriteFile(fileName, fileBytes, 0644); err != nil {
		return fmt.Errorf("while writing scene file: %w", err)
	}
	return nil
}

func FromStruct(st *structpb.Struct) (*Pack, error) {
	pack := &Pack{
		Scene:  &scene.Scene{Name: "unnamed"},
		Camera: DefaultCamera(),
	}

	fields := st.GetFields()
	if v, ok := fields["name"]; ok {
		name, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("name must be a string")
		}
		pack.Scene.Name = name.StringValue
	}

	if v, ok := fields["camera"]; ok {
		camStruct := v.GetStructValue()
		if camStruct == nil {
			return nil, fmt.Errorf("camera must be an object")
		}
		if err := convertCamera(camStruct, &pack.Camera); err != nil {
			return nil, fmt.Errorf("while converting camera: %w", err)
		}
	}

	if v, ok := fields["spheres"]; ok {
		list := v.GetListValue()
		if list == nil {
			return nil, fmt.Errorf("spheres must be a list")
		}
		for i, sv := range list.GetValues() {
			sphereStruct := sv.GetStructValue()
			if sphereStruct == nil {
				return nil, fmt.Errorf("sphere %d must be an object", i)
			}
			if err := convertSphere(sphereStruct, pack.Scene); err != nil {
				return nil, fmt.Errorf("while converting sphere %d: %w", i, err)
			}
		}
	}

	return pack, nil
}

func convertCamera(st *structpb.Struct, cfg *camera.Config) error {
	var err error
	fields := st.GetFields()
	if cfg.LookFrom, err = optionalVec3(fields, "lookFrom", cfg.LookFrom); err != nil {
		return err
	}
	if cfg.LookAt, err = optionalVec3(fields, "lookAt", cfg.LookAt); err != nil {
		return err
	}
	if cfg.Up, err = optionalVec3(fields, "vup", cfg.Up); err != nil {
		return err
	}
	if cfg.VerticalFOV, err = optionalNumber(fields, "vfov", cfg.VerticalFOV); err != nil {
		return err
	}
	if cfg.Aperture, err = optionalNumber(fields, "aperture", cfg.Aperture); err != nil {
		return err
	}
	if cfg.FocusDistance, err = optionalNumber(fields, "focusDist", cfg.FocusDistance); err != nil {
		return err
	}
	return nil
}

func convertSphere(st *structpb.Struct, s *scene.Scene) error {
	fields := st.GetFields()

	centerValue, ok := fields["center"]
	if !ok {
		return fmt.Errorf("missing center")
	}
	center, err := convertVec3(centerValue)
	if err != nil {
		return fmt.Errorf("center: %w", err)
	}

	radiusValue, ok := fields["radius"]
	if !ok {
		return fmt.Errorf("missing radius")
	}
	radius, err := convertNumber(radiusValue)
	if err != nil {
		return fmt.Errorf("radius: %w", err)
	}
	if radius <= 0 {
		return fmt.Errorf("radius must be positive, got %v", radius)
	}

	materialValue, ok := fields["material"]
	if !ok {
		return fmt.Errorf("missing material")
	}
	materialStruct := materialValue.GetStructValue()
	if materialStruct == nil {
		return fmt.Errorf("material must be an object")
	}
	m, err := convertMaterial(materialStruct)
	if err != nil {
		return fmt.Errorf("while converting material: %w", err)
	}

	s.AddElement(&scene.SceneElement{
		TheGeometry: &geometry.Sphere{Center: center, Radius: radius},
		TheMaterial: m,
	})
	return nil
}

func convertMaterial(st *structpb.Struct) (material.Material, error) {
	fields := st.GetFields()

	typeName := fields["type"].GetStringValue()
	switch typeName {
	case "lambertian":
		albedo, err := optionalVec3(fields, "albedo", vec3.T{0.5, 0.5, 0.5})
		if err != nil {
			return material.Material{}, err
		}
		return material.Lambertian(albedo), nil
	case "metal":
		albedo, err := optionalVec3(fields, "albedo", vec3.T{0.5, 0.5, 0.5})
		if err != nil {
			return material.Material{}, err
		}
		fuzz, err := optionalNumber(fields, "fuzz", 0)
		if err != nil {
			return material.Material{}, err
		}
		return material.Metal(albedo, fuzz), nil
	case "dielectric":
		idx, err := optionalNumber(fields, "refractiveIndex", 1.5)
		if err != nil {
			return material.Material{}, err
		}
		if idx <= 0 {
			return material.Material{}, fmt.Errorf("refractiveIndex must be positive, got %v", idx)
		}
		return material.Dielectric(idx), nil
	}
	return material.Material{}, fmt.Errorf("unknown material type %q", typeName)
}

func optionalVec3(fields map[string]*structpb.Value, key string, def vec3.T) (vec3.T, error) {
	v, ok := fields[key]
	if !ok {
		return def, nil
	}
	out, err := convertVec3(v)
	if err != nil {
		return vec3.T{}, fmt.Errorf("%s: %w", key, err)
	}
	return out, nil
}

func optionalNumber(fields map[string]*structpb.Value, key string, def float32) (float32, error) {
	v, ok := fields[key]
	if !ok {
		return def, nil
	}
	out, err := convertNumber(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return out, nil
}

func convertVec3(v *structpb.Value) (vec3.T, error) {
	list := v.GetListValue()
	if list == nil || len(list.GetValues()) != 3 {
		return vec3.T{}, fmt.Errorf("want a list of 3 numbers")
	}
	out := vec3.T{}
	for i, elt := range list.GetValues() {
		n, err := convertNumber(elt)
		if err != nil {
			return vec3.T{}, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

func convertNumber(v *structpb.Value) (float32, error) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("want a number")
	}
	return float32(n.NumberValue), nil
}

func ToStruct(pack *Pack) (*structpb.Struct, error) {
	spheres := []interface{}{}
	for i, e := range pack.Scene.Elements {
		sphere, ok := e.TheGeometry.(*geometry.Sphere)
		if !ok {
			return nil, fmt.Errorf("element %d: unsupported geometry %T", i, e.TheGeometry)
		}

		m := map[string]interface{}{
			"type": e.TheMaterial.Kind.String(),
		}
		switch e.TheMaterial.Kind {
		case material.KindLambertian:
			m["albedo"] = vecToList(e.TheMaterial.Albedo)
		case material.KindMetal:
			m["albedo"] = vecToList(e.TheMaterial.Albedo)
			m["fuzz"] = float64(e.TheMaterial.Fuzz)
		case material.KindDielectric:
			m["refractiveIndex"] = float64(e.TheMaterial.RefractiveIndex)
		}

		spheres = append(spheres, map[string]interface{}{
			"center":   vecToList(sphere.Center),
			"radius":   float64(sphere.Radius),
			"material": m,
		})
	}

	return structpb.NewStruct(map[string]interface{}{
		"name": pack.Scene.Name,
		"camera": map[string]interface{}{
			"lookFrom":  vecToList(pack.Camera.LookFrom),
			"lookAt":    vecToList(pack.Camera.LookAt),
			"vup":       vecToList(pack.Camera.Up),
			"vfov":      float64(pack.Camera.VerticalFOV),
			"aperture":  float64(pack.Camera.Aperture),
			"focusDist": float64(pack.Camera.FocusDistance),
		},
		"spheres": spheres,
	})
}

func vecToList(v vec3.T) []interface{} {
	return []interface{}{float64(v[0]), float64(v[1]), float64(v[2])}
}
