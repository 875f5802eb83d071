package chart

import "github.com/Faultbox/uvatlas/pkg/mesh"

// buildIslands groups faces into charts of connected input UV islands.
func buildIslands(m *mesh.Mesh, onSeed SeedFunc) ([]*Chart, error) {
	owner := make([]bool, m.FaceCount())
	var charts []*Chart
	assigned := 0
	for seed := range owner {
		if owner[seed] {
			continue
		}
		if onSeed != nil {
			if err := onSeed(assigned); err != nil {
				return nil, err
			}
		}
		owner[seed] = true
		faces := []int{seed}
		for i := 0; i < len(faces); i++ {
			f := faces[i]
			for e := 0; e < 3; e++ {
				g := m.Neighbor(f, e)
				if g < 0 || owner[g] || m.IsTextureSeam(f, e) {
					continue
				}
				owner[g] = true
				faces = append(faces, g)
			}
		}
		c := New(m, faces)
		c.InputUVs = true
		charts = append(charts, c)
		assigned += len(faces)
	}
	if onSeed != nil {
		if err := onSeed(assigned); err != nil {
			return nil, err
		}
	}
	return charts, nil
}
