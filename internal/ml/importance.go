package ml

import (
	"math"
	"sort"
)

// FeatureWeight is the normalised importance of one transformed column.
type FeatureWeight struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// rankImportance normalises raw scores to sum to one and orders them from
// most to least important. Ties keep column order.
func rankImportance(names []string, raw []float64) []FeatureWeight {
	var total float64
	for _, v := range raw {
		total += math.Abs(v)
	}

	out := make([]FeatureWeight, len(names))
	for i, name := range names {
		w := FeatureWeight{Name: name}
		if total > 0 {
			w.Importance = math.Abs(raw[i]) / total
		}
		out[i] = w
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

// TopFeatures returns the names of the n most important columns.
func TopFeatures(weights []FeatureWeight, n int) []string {
	if n > len(weights) {
		n = len(weights)
	}
	names := make([]string, 0, n)
	for _, w := range weights[:n] {
		names = append(names, w.Name)
	}
	return names
}
