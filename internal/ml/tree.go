package ml

import (
	"fmt"
	"sort"
)

// binnedMatrix is the histogram view of a training matrix: every feature
// value is replaced by the index of the first cut point not below it.
type binnedMatrix struct {
	cuts [][]float64
	bins [][]uint16 // [feature][row]
}

func newBinnedMatrix(x [][]float64, maxBins int) *binnedMatrix {
	nf := len(x[0])
	m := &binnedMatrix{
		cuts: make([][]float64, nf),
		bins: make([][]uint16, nf),
	}

	col := make([]float64, len(x))
	for f := 0; f < nf; f++ {
		for i := range x {
			col[i] = x[i][f]
		}
		m.cuts[f] = cutPoints(col, maxBins)

		b := make([]uint16, len(x))
		for i := range x {
			b[i] = uint16(sort.SearchFloat64s(m.cuts[f], x[i][f]))
		}
		m.bins[f] = b
	}
	return m
}

// cutPoints returns ascending distinct bin upper edges. The largest value is
// always the last edge so every training value lands in a bin.
func cutPoints(values []float64, maxBins int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	distinct := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) <= maxBins {
		return distinct
	}

	cuts := make([]float64, 0, maxBins)
	n := len(sorted)
	for k := 1; k <= maxBins; k++ {
		v := sorted[k*n/maxBins-1]
		if len(cuts) == 0 || v > cuts[len(cuts)-1] {
			cuts = append(cuts, v)
		}
	}
	if last := sorted[n-1]; cuts[len(cuts)-1] != last {
		cuts = append(cuts, last)
	}
	return cuts
}

type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"v,omitempty"`
	Gain      float64 `json:"g,omitempty"`
}

// RegressionTree is one boosted tree stored as a flat node array rooted at
// index 0. Rows with x[Feature] <= Threshold go left.
type RegressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t *RegressionTree) predict(x []float64) float64 {
	i := 0
	for !t.Nodes[i].Leaf {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

func (t *RegressionTree) validate(width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d outside [0,%d)", i, n.Feature, width)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

type treeParams struct {
	maxDepth       int
	lambda         float64
	minChildWeight float64
	learningRate   float64
}

// treeBuilder grows one tree on gradient/hessian statistics for the sampled
// rows and features.
type treeBuilder struct {
	params   treeParams
	data     *binnedMatrix
	grad     []float64
	hess     []float64
	features []int
	nodes    []treeNode
}

func (b *treeBuilder) build(rows []int) RegressionTree {
	b.nodes = b.nodes[:0]
	b.grow(rows, 0)
	return RegressionTree{Nodes: append([]treeNode(nil), b.nodes...)}
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	var g, h float64
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{
		Leaf:  true,
		Value: -g / (h + b.params.lambda) * b.params.learningRate,
	})

	if depth >= b.params.maxDepth || len(rows) < 2 {
		return id
	}

	feature, bin, gain := b.bestSplit(rows, g, h)
	if feature < 0 {
		return id
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		if int(b.data.bins[feature][r]) <= bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left, depth+1)
	rt := b.grow(right, depth+1)
	b.nodes[id] = treeNode{
		Feature:   feature,
		Threshold: b.data.cuts[feature][bin],
		Left:      l,
		Right:     rt,
		Gain:      gain,
	}
	return id
}

func (b *treeBuilder) bestSplit(rows []int, g, h float64) (int, int, float64) {
	lambda := b.params.lambda
	parent := g * g / (h + lambda)

	bestFeature, bestBin, bestGain := -1, -1, 0.0
	for _, f := range b.features {
		nb := len(b.data.cuts[f])
		if nb < 2 {
			continue
		}
		hg := make([]float64, nb)
		hh := make([]float64, nb)
		for _, r := range rows {
			k := b.data.bins[f][r]
			hg[k] += b.grad[r]
			hh[k] += b.hess[r]
		}

		var gl, hl float64
		for k := 0; k < nb-1; k++ {
			gl += hg[k]
			hl += hh[k]
			gr, hr := g-gl, h-hl
			if hl < b.params.minChildWeight || hr < b.params.minChildWeight {
				continue
			}
			gain := 0.5 * (gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent)
			if gain > bestGain+1e-12 {
				bestFeature, bestBin, bestGain = f, k, gain
			}
		}
	}
	return bestFeature, bestBin, bestGain
}
