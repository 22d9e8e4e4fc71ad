package pace

import "sort"

// node is a regression tree node. Leaves have Feature == -1.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// tree is a least-squares regression tree stored as a flat node slice, root at 0.
type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	x        [][]float64
	y        []float64
	maxDepth int
	minLeaf  int
	nodes    []node
}

// fitTree grows a tree on rows idx of x against targets y.
func fitTree(x [][]float64, y []float64, idx []int, maxDepth, minLeaf int) tree {
	if minLeaf < 1 {
		minLeaf = 1
	}
	b := &treeBuilder{x: x, y: y, maxDepth: maxDepth, minLeaf: minLeaf}
	b.grow(append([]int(nil), idx...), 0)
	return tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: -1, Value: b.mean(idx)})

	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf {
		return self
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: b.nodes[self].Value}
	return self
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	s := 0.0
	for _, i := range idx {
		s += b.y[i]
	}
	return s / float64(len(idx))
}

// bestSplit scans every feature for the threshold maximising the reduction in
// squared error. Ties keep the lowest feature index and threshold.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	total := 0.0
	for _, i := range idx {
		total += b.y[i]
	}
	parent := total * total / float64(n)

	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0
	order := make([]int, n)
	width := len(b.x[idx[0]])

	for f := 0; f < width; f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })

		left := 0.0
		for k := 0; k < n-1; k++ {
			left += b.y[order[k]]
			nl := k + 1
			nr := n - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			lo, hi := b.x[order[k]][f], b.x[order[k+1]][f]
			if lo == hi {
				continue
			}
			right := total - left
			gain := left*left/float64(nl) + right*right/float64(nr) - parent
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (lo + hi) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
