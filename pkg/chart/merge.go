package chart

import "sort"

// merge folds small charts into the neighbour they share the most boundary
// with. It returns true if any chart was merged.
func (b *builder) merge() bool {
	order := make([]*region, 0, len(b.regions))
	for _, r := range b.regions {
		if !r.dead {
			order = append(order, r)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].area < order[j].area
	})

	merged := false
	for _, r := range order {
		if r.dead {
			continue
		}
		target, shared, seam := b.bestNeighbor(r)
		if target == nil || shared < 0.5*r.perimeter {
			continue
		}
		if !b.canMerge(target, r, shared, seam) {
			continue
		}
		b.absorb(target, r, shared)
		merged = true
	}
	return merged
}

// bestNeighbor returns the region sharing the longest boundary with r, the
// shared length, and the part of it lying on texture seams.
func (b *builder) bestNeighbor(r *region) (*region, float64, float64) {
	shared := make(map[int]float64)
	seams := make(map[int]float64)
	for _, f := range r.faces {
		face := &b.m.Faces[f]
		for e := 0; e < 3; e++ {
			g := b.m.Neighbor(f, e)
			if g < 0 || b.faceChart[g] == r.id {
				continue
			}
			id := b.faceChart[g]
			shared[id] += face.EdgeLength[e]
			if b.m.IsTextureSeam(f, e) {
				seams[id] += face.EdgeLength[e]
			}
		}
	}

	best, bestLen := -1, 0.0
	for id, l := range shared {
		if l > bestLen || (l == bestLen && id < best) {
			best, bestLen = id, l
		}
	}
	if best < 0 {
		return nil, 0, 0
	}
	return b.regions[best], bestLen, seams[best]
}

func (b *builder) canMerge(a, r *region, shared, seam float64) bool {
	o := &b.opts
	na, nr := a.normal(), r.normal()
	cost := 0.0
	if !na.IsZero() && !nr.IsZero() {
		d := na.Dot(nr)
		if d <= 0 {
			return false
		}
		cost += o.NormalDeviationWeight * (1 - d)
	}
	if b.m.UVs != nil && shared > 0 {
		cost += o.TextureSeamWeight * seam / shared
	}
	if cost > o.MaxCost {
		return false
	}
	if o.MaxChartArea > 0 && a.area+r.area > o.MaxChartArea {
		return false
	}
	if o.MaxBoundaryLength > 0 && a.perimeter+r.perimeter-2*shared > o.MaxBoundaryLength {
		return false
	}
	return true
}

func (b *builder) absorb(a, r *region, shared float64) {
	for _, f := range r.faces {
		b.faceChart[f] = a.id
	}
	a.faces = append(a.faces, r.faces...)
	a.normalSum = a.normalSum.Add(r.normalSum)
	a.area += r.area
	a.perimeter += r.perimeter - 2*shared
	r.faces = nil
	r.dead = true
}
