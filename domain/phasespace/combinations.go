package phasespace

// DiscreteCombinations enumerates every assignment of the discrete dimensions
// as bound data points, first-declared dimension varying slowest. Continuous
// observables are set to their constraint midpoint. The result is fully
// materialised; a boundary with no discrete dimensions yields one point.
func (b *Boundary) DiscreteCombinations() []*DataPoint {
	base := make(map[string]float64, len(b.order))
	var discrete []*Constraint
	for _, name := range b.order {
		c := b.constraints[name]
		if c.IsDiscrete() {
			discrete = append(discrete, c)
			continue
		}
		base[name] = c.Midpoint()
	}

	total := b.NumberOfCombinations()
	combos := make([]*DataPoint, 0, total)

	// odometer over the discrete value indices; the last dimension turns fastest
	idx := make([]int, len(discrete))
	for n := 0; n < total; n++ {
		vals := make(map[string]float64, len(b.order))
		for k, v := range base {
			vals[k] = v
		}
		for i, c := range discrete {
			vals[c.Name()] = c.values[idx[i]]
		}
		combos = append(combos, &DataPoint{values: vals, boundary: b})

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(discrete[i].values) {
				break
			}
			idx[i] = 0
		}
	}
	return combos
}
