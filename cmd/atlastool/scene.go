package main

import (
	"fmt"

	"github.com/Faultbox/uvatlas/pkg/atlas"
	"github.com/Faultbox/uvatlas/pkg/mesh"
)

// sceneSpacing separates primitives along X so they never overlap.
const sceneSpacing = 3

// buildScene creates one mesh declaration per named primitive.
func buildScene(names []string, useNormals, useCoords bool) ([]atlas.MeshDecl, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no primitives selected (available: %v)", mesh.PrimitiveNames())
	}
	decls := make([]atlas.MeshDecl, 0, len(names))
	for i, name := range names {
		p, err := mesh.NewPrimitive(name)
		if err != nil {
			return nil, err
		}
		p.Translate(float32(i*sceneSpacing), 0, 0)
		decls = append(decls, atlas.MeshDecl{
			Indices:    p.Indices,
			Positions:  p.Positions,
			Normals:    p.Normals,
			UVs:        p.UVs,
			UseNormals: useNormals && p.Normals != nil,
			UseCoords:  useCoords && p.UVs != nil,
			Tag:        name,
		})
	}
	return decls, nil
}
