package optimizer

import (
	"sort"
)

// Params is one concrete parameter combination.
type Params map[string]float64

// clone returns an independent copy of the combination.
func (p Params) clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}

	return out
}

// Grid maps each parameter name to its candidate values.
type Grid map[string][]float64

// Combinations expands the grid into every parameter combination, in a
// deterministic order: parameter names sorted lexicographically, values
// cycled odometer-style with the last name varying fastest. Tie-breaking
// during optimization relies on this order being stable.
func (g Grid) Combinations() []Params {
	if len(g) == 0 {
		return nil
	}

	names := make([]string, 0, len(g))
	for name := range g {
		if len(g[name]) == 0 {
			return nil
		}

		names = append(names, name)
	}
	sort.Strings(names)

	total := 1
	for _, name := range names {
		total *= len(g[name])
	}

	combos := make([]Params, 0, total)
	indices := make([]int, len(names))

	for {
		combo := make(Params, len(names))
		for i, name := range names {
			combo[name] = g[name][indices[i]]
		}
		combos = append(combos, combo)

		// odometer increment, last name fastest
		pos := len(names) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(g[names[pos]]) {
				break
			}

			indices[pos] = 0
			pos--
		}

		if pos < 0 {
			return combos
		}
	}
}
