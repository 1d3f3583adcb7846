package tree

import "math"

// criterion はノード内サンプルの不純度を計算する。
// 分割探索では reset の後にサンプルを1つずつ move して左の子に移し、
// その都度 childrenImpurity で左右の不純度を得る。
type criterion interface {
	init(idx []int)
	reset()
	move(i int)
	nodeImpurity() float64
	childrenImpurity() (left, right float64)
	weights() (total, left, right float64)
	nodeValue() []float64
}

// classificationCriterion は gini / entropy の共通実装
type classificationCriterion struct {
	y        []int
	w        []float64
	nClasses int
	entropy  bool

	total  []float64
	left   []float64
	wTotal float64
	wLeft  float64
}

func newClassificationCriterion(y []int, w []float64, nClasses int, entropy bool) *classificationCriterion {
	return &classificationCriterion{
		y:        y,
		w:        w,
		nClasses: nClasses,
		entropy:  entropy,
		total:    make([]float64, nClasses),
		left:     make([]float64, nClasses),
	}
}

func (c *classificationCriterion) init(idx []int) {
	for k := range c.total {
		c.total[k] = 0
	}
	c.wTotal = 0
	for _, i := range idx {
		c.total[c.y[i]] += c.w[i]
		c.wTotal += c.w[i]
	}
	c.reset()
}

func (c *classificationCriterion) reset() {
	for k := range c.left {
		c.left[k] = 0
	}
	c.wLeft = 0
}

func (c *classificationCriterion) move(i int) {
	c.left[c.y[i]] += c.w[i]
	c.wLeft += c.w[i]
}

func (c *classificationCriterion) impurity(counts func(k int) float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	var out float64
	if c.entropy {
		for k := 0; k < c.nClasses; k++ {
			p := counts(k) / total
			if p > 0 {
				out -= p * math.Log2(p)
			}
		}
		return out
	}
	out = 1
	for k := 0; k < c.nClasses; k++ {
		p := counts(k) / total
		out -= p * p
	}
	return out
}

func (c *classificationCriterion) nodeImpurity() float64 {
	return c.impurity(func(k int) float64 { return c.total[k] }, c.wTotal)
}

func (c *classificationCriterion) childrenImpurity() (float64, float64) {
	left := c.impurity(func(k int) float64 { return c.left[k] }, c.wLeft)
	right := c.impurity(func(k int) float64 { return c.total[k] - c.left[k] }, c.wTotal-c.wLeft)
	return left, right
}

func (c *classificationCriterion) weights() (float64, float64, float64) {
	return c.wTotal, c.wLeft, c.wTotal - c.wLeft
}

// nodeValue はクラスごとの確率を返す
func (c *classificationCriterion) nodeValue() []float64 {
	value := make([]float64, c.nClasses)
	if c.wTotal <= 0 {
		return value
	}
	for k := range value {
		value[k] = c.total[k] / c.wTotal
	}
	return value
}

// squaredErrorCriterion は分散（平均二乗誤差）による回帰の不純度
type squaredErrorCriterion struct {
	y []float64
	w []float64

	idx      []int
	sumTotal float64
	sqTotal  float64
	wTotal   float64
	sumLeft  float64
	sqLeft   float64
	wLeft    float64
}

func newSquaredErrorCriterion(y, w []float64) *squaredErrorCriterion {
	return &squaredErrorCriterion{y: y, w: w}
}

func (c *squaredErrorCriterion) init(idx []int) {
	c.idx = idx
	c.sumTotal, c.sqTotal, c.wTotal = 0, 0, 0
	for _, i := range idx {
		wy := c.w[i] * c.y[i]
		c.sumTotal += wy
		c.sqTotal += wy * c.y[i]
		c.wTotal += c.w[i]
	}
	c.reset()
}

func (c *squaredErrorCriterion) reset() {
	c.sumLeft, c.sqLeft, c.wLeft = 0, 0, 0
}

func (c *squaredErrorCriterion) move(i int) {
	wy := c.w[i] * c.y[i]
	c.sumLeft += wy
	c.sqLeft += wy * c.y[i]
	c.wLeft += c.w[i]
}

func variance(sum, sq, w float64) float64 {
	if w <= 0 {
		return 0
	}
	mean := sum / w
	v := sq/w - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// nodeImpurity は桁落ちを避けるため平均からの偏差で計算する
func (c *squaredErrorCriterion) nodeImpurity() float64 {
	if c.wTotal <= 0 {
		return 0
	}
	mean := c.sumTotal / c.wTotal
	var ss float64
	for _, i := range c.idx {
		d := c.y[i] - mean
		ss += c.w[i] * d * d
	}
	return ss / c.wTotal
}

func (c *squaredErrorCriterion) childrenImpurity() (float64, float64) {
	left := variance(c.sumLeft, c.sqLeft, c.wLeft)
	right := variance(c.sumTotal-c.sumLeft, c.sqTotal-c.sqLeft, c.wTotal-c.wLeft)
	return left, right
}

func (c *squaredErrorCriterion) weights() (float64, float64, float64) {
	return c.wTotal, c.wLeft, c.wTotal - c.wLeft
}

func (c *squaredErrorCriterion) nodeValue() []float64 {
	if c.wTotal <= 0 {
		return []float64{0}
	}
	return []float64{c.sumTotal / c.wTotal}
}
