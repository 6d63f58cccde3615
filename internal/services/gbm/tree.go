package gbm

import (
	"math"
	"sort"

	"github.com/viterin/vek"
)

// Node is one entry of a flattened regression tree. Children are indexes
// into Tree.Nodes; Leaf nodes carry the (already shrunk) output value.
type Node struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks from the root; rows go left when x[feature] < threshold.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeBuilder grows one tree on gradient/hessian statistics.
type treeBuilder struct {
	p        Params
	x        [][]float64
	grad     []float64
	hess     []float64
	features []int
	nodes    []Node
}

func (b *treeBuilder) build(rows []int) *Tree {
	b.nodes = b.nodes[:0]
	b.buildNode(rows, 0)
	return &Tree{Nodes: append([]Node(nil), b.nodes...)}
}

// buildNode appends a node for rows and returns its index.
func (b *treeBuilder) buildNode(rows []int, depth int) int {
	g, h := b.sums(rows)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Value: b.p.LearningRate * b.leafWeight(g, h)})

	if depth >= b.p.MaxDepth || len(rows) < 2 {
		return idx
	}
	split, ok := b.bestSplit(rows, g, h)
	if !ok {
		return idx
	}

	var left, right []int
	for _, r := range rows {
		if b.x[r][split.feature] < split.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	l := b.buildNode(left, depth+1)
	r := b.buildNode(right, depth+1)
	b.nodes[idx] = Node{Feature: split.feature, Threshold: split.threshold, Left: l, Right: r}
	return idx
}

func (b *treeBuilder) sums(rows []int) (float64, float64) {
	g := make([]float64, len(rows))
	h := make([]float64, len(rows))
	for i, r := range rows {
		g[i] = b.grad[r]
		h[i] = b.hess[r]
	}
	return vek.Sum(g), vek.Sum(h)
}

// thresholdL1 is the soft-thresholding applied by L1 regularisation.
func (b *treeBuilder) thresholdL1(g float64) float64 {
	switch {
	case g > b.p.Alpha:
		return g - b.p.Alpha
	case g < -b.p.Alpha:
		return g + b.p.Alpha
	default:
		return 0
	}
}

func (b *treeBuilder) leafWeight(g, h float64) float64 {
	den := h + b.p.Lambda
	if den <= 0 {
		return 0
	}
	return -b.thresholdL1(g) / den
}

func (b *treeBuilder) score(g, h float64) float64 {
	den := h + b.p.Lambda
	if den <= 0 {
		return 0
	}
	t := b.thresholdL1(g)
	return t * t / den
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// bestSplit scans every sampled feature with an exact greedy search.
func (b *treeBuilder) bestSplit(rows []int, g, h float64) (split, bool) {
	parent := b.score(g, h)
	best := split{gain: 0}
	found := false
	sorted := make([]int, len(rows))

	for _, f := range b.features {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })

		gl, hl := 0.0, 0.0
		for i := 0; i < len(sorted)-1; i++ {
			r := sorted[i]
			gl += b.grad[r]
			hl += b.hess[r]
			cur, next := b.x[r][f], b.x[sorted[i+1]][f]
			if cur == next {
				continue
			}
			gr, hr := g-gl, h-hl
			if hl < b.p.MinChildWeight || hr < b.p.MinChildWeight {
				continue
			}
			gain := 0.5*(b.score(gl, hl)+b.score(gr, hr)-parent) - b.p.Gamma
			if gain > best.gain {
				best = split{feature: f, threshold: cur + (next-cur)/2, gain: gain}
				found = true
			}
		}
	}
	if found && math.IsNaN(best.threshold) {
		return split{}, false
	}
	return best, found
}
