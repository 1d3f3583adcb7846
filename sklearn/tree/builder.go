package tree

import (
	"math"
	"math/rand"
	"sort"
)

// featureThreshold 未満の差しかない特徴量値は同一とみなす
const featureThreshold = 1e-7

// Node は学習済みの木の1ノード
// 葉ノードは Left == Right == -1 となる。
type Node struct {
	Feature          int
	Threshold        float64
	Left             int
	Right            int
	Value            []float64
	NSamples         int
	WeightedNSamples float64
	Impurity         float64
}

// IsLeaf はノードが葉かどうかを返す
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

type split struct {
	feature     int
	threshold   float64
	pos         int
	cost        float64
	impLeft     float64
	impRight    float64
	weightLeft  float64
	weightRight float64
}

// builder は深さ優先で木を構築する
type builder struct {
	x         []float64 // row-major, n_samples × n_features
	nFeatures int
	crit      criterion
	params    params
	rng       *rand.Rand

	nodes       []Node
	importances []float64
}

func newBuilder(x []float64, nFeatures int, crit criterion, p params) *builder {
	return &builder{
		x:           x,
		nFeatures:   nFeatures,
		crit:        crit,
		params:      p,
		rng:         rand.New(rand.NewSource(p.randomState)),
		importances: make([]float64, nFeatures),
	}
}

func (b *builder) value(i, f int) float64 {
	return b.x[i*b.nFeatures+f]
}

// build は idx のサンプルからノードを作成し、そのノード番号を返す
func (b *builder) build(idx []int, depth int) int {
	b.crit.init(idx)
	impurity := b.crit.nodeImpurity()
	wTotal, _, _ := b.crit.weights()

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature:          -1,
		Threshold:        0,
		Left:             -1,
		Right:            -1,
		Value:            b.crit.nodeValue(),
		NSamples:         len(idx),
		WeightedNSamples: wTotal,
		Impurity:         impurity,
	})

	n := len(idx)
	isLeaf := (b.params.maxDepth > 0 && depth >= b.params.maxDepth) ||
		n < b.params.minSamplesSplit ||
		n < 2*b.params.minSamplesLeaf ||
		impurity <= 1e-12
	if isLeaf {
		return id
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	left, right := b.partition(idx, best)
	b.importances[best.feature] += wTotal*impurity -
		best.weightLeft*best.impLeft - best.weightRight*best.impRight

	b.nodes[id].Feature = best.feature
	b.nodes[id].Threshold = best.threshold
	leftID := b.build(left, depth+1)
	rightID := b.build(right, depth+1)
	b.nodes[id].Left = leftID
	b.nodes[id].Right = rightID
	return id
}

// candidateFeatures は分割候補の特徴量を探索順で返す
func (b *builder) candidateFeatures() []int {
	if b.params.maxFeatures > 0 && b.params.maxFeatures < b.nFeatures {
		return b.rng.Perm(b.nFeatures)
	}
	features := make([]int, b.nFeatures)
	for f := range features {
		features[f] = f
	}
	return features
}

func (b *builder) bestSplit(idx []int) (split, bool) {
	n := len(idx)
	minLeaf := b.params.minSamplesLeaf
	limit := b.params.maxFeatures
	if limit <= 0 || limit > b.nFeatures {
		limit = b.nFeatures
	}

	best := split{cost: math.Inf(1)}
	found := false
	sorted := make([]int, n)
	visited := 0

	for _, f := range b.candidateFeatures() {
		if visited >= limit {
			break
		}
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.value(sorted[a], f) < b.value(sorted[c], f)
		})
		// 定数の特徴量は max_features に数えない
		if b.value(sorted[n-1], f) <= b.value(sorted[0], f)+featureThreshold {
			continue
		}
		visited++

		b.crit.reset()
		for p := 0; p < n-1; p++ {
			b.crit.move(sorted[p])
			nLeft := p + 1
			if nLeft < minLeaf {
				continue
			}
			if n-nLeft < minLeaf {
				break
			}
			lo, hi := b.value(sorted[p], f), b.value(sorted[p+1], f)
			if hi <= lo+featureThreshold {
				continue
			}

			impLeft, impRight := b.crit.childrenImpurity()
			_, wLeft, wRight := b.crit.weights()
			cost := wLeft*impLeft + wRight*impRight
			if cost < best.cost {
				threshold := lo/2 + hi/2
				if threshold >= hi || math.IsInf(threshold, 0) {
					threshold = lo
				}
				best = split{
					feature:     f,
					threshold:   threshold,
					pos:         nLeft,
					cost:        cost,
					impLeft:     impLeft,
					impRight:    impRight,
					weightLeft:  wLeft,
					weightRight: wRight,
				}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) partition(idx []int, s split) (left, right []int) {
	left = make([]int, 0, s.pos)
	right = make([]int, 0, len(idx)-s.pos)
	for _, i := range idx {
		if b.value(i, s.feature) <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// normalizeImportances は重要度の合計を1にする
func normalizeImportances(importances []float64) []float64 {
	out := make([]float64, len(importances))
	var sum float64
	for _, v := range importances {
		sum += v
	}
	if sum <= 0 {
		return out
	}
	for i, v := range importances {
		out[i] = v / sum
	}
	return out
}

// apply は行が到達する葉ノード番号を返す
func apply(nodes []Node, row []float64) int {
	id := 0
	for !nodes[id].IsLeaf() {
		node := &nodes[id]
		if row[node.Feature] <= node.Threshold {
			id = node.Left
		} else {
			id = node.Right
		}
	}
	return id
}

func treeDepth(nodes []Node, id int) int {
	if nodes[id].IsLeaf() {
		return 0
	}
	l := treeDepth(nodes, nodes[id].Left)
	r := treeDepth(nodes, nodes[id].Right)
	if l > r {
		return l + 1
	}
	return r + 1
}
