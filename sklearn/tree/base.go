// Package tree はscikit-learn互換の決定木（CART）を提供します。
//
// DecisionTreeClassifier と DecisionTreeRegressor は sample weight を受け付けるため、
// ensemble パッケージのランダムフォレストがブートストラップ標本の重みとして利用します。
package tree

import (
	"bytes"
	"encoding/gob"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/core/model"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// baseTree は分類木と回帰木で共通の状態
type baseTree struct {
	params
	state       *model.StateManager
	nodes       []Node
	importances []float64
}

func newBaseTree(criterion string, opts []Option) baseTree {
	p := defaultParams(criterion)
	for _, opt := range opts {
		opt(&p)
	}
	return baseTree{params: p, state: model.NewStateManager()}
}

// IsFitted はモデルが学習済みかを返す
func (t *baseTree) IsFitted() bool {
	return t.state != nil && t.state.IsFitted()
}

// NFeatures は学習時の特徴量数を返す
func (t *baseTree) NFeatures() int {
	if t.state == nil {
		return 0
	}
	n, _ := t.state.GetDimensions()
	return n
}

// GetFeatureImportances は不純度減少に基づく特徴量重要度（合計1）を返す
func (t *baseTree) GetFeatureImportances() []float64 {
	out := make([]float64, len(t.importances))
	copy(out, t.importances)
	return out
}

// GetDepth は木の深さを返す（根のみの場合は0）
func (t *baseTree) GetDepth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	return treeDepth(t.nodes, 0)
}

// GetNLeaves は葉の数を返す
func (t *baseTree) GetNLeaves() int {
	leaves := 0
	for i := range t.nodes {
		if t.nodes[i].IsLeaf() {
			leaves++
		}
	}
	return leaves
}

// Nodes は学習済みノードのコピーを返す
func (t *baseTree) Nodes() []Node {
	out := make([]Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// leafValue は行が到達した葉の値を返す（入力検証なし）
func (t *baseTree) leafValue(row []float64) []float64 {
	return t.nodes[apply(t.nodes, row)].Value
}

// checkPredictInput は推論前の共通検証
func (t *baseTree) checkPredictInput(name, method string, X mat.Matrix) (rows int, err error) {
	if !t.IsFitted() {
		return 0, errors.NewNotFittedError(name, method)
	}
	op := name + "." + method
	r, c := X.Dims()
	if r == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if c != t.NFeatures() {
		return 0, errors.NewDimensionError(op, t.NFeatures(), c, 1)
	}
	if err := errors.CheckFinite(op, X); err != nil {
		return 0, err
	}
	return r, nil
}

// fitData は学習データを row-major のスライスと重みに変換する
func fitData(op string, X mat.Matrix, y mat.Matrix, sampleWeight []float64) (x []float64, target []float64, w []float64, err error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, nil, nil, errors.NewModelError(op+".Fit", "empty data", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != r {
		return nil, nil, nil, errors.NewDimensionError(op+".Fit", r, yr, 0)
	}
	if yc != 1 {
		return nil, nil, nil, errors.NewValueError(op+".Fit", "y must be a column vector (n×1 matrix)")
	}
	if sampleWeight != nil && len(sampleWeight) != r {
		return nil, nil, nil, errors.NewDimensionError(op+".Fit", r, len(sampleWeight), 0)
	}
	if err := errors.CheckFinite(op+".Fit", X); err != nil {
		return nil, nil, nil, err
	}
	if err := errors.CheckFinite(op+".Fit", y); err != nil {
		return nil, nil, nil, err
	}

	x = make([]float64, r*c)
	target = make([]float64, r)
	w = make([]float64, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x[i*c+j] = X.At(i, j)
		}
		target[i] = y.At(i, 0)
		w[i] = 1
		if sampleWeight != nil {
			if sampleWeight[i] < 0 {
				return nil, nil, nil, errors.NewValidationError("sample_weight", "must be non-negative", sampleWeight[i])
			}
			w[i] = sampleWeight[i]
		}
	}
	return x, target, w, nil
}

// activeSamples は重みが正のサンプル番号を返す
func activeSamples(op string, w []float64) ([]int, error) {
	idx := make([]int, 0, len(w))
	for i, v := range w {
		if v > 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, errors.NewValueError(op+".Fit", "sample_weight has no positive entries")
	}
	return idx, nil
}

type treeState struct {
	Params      paramsState
	Nodes       []Node
	Importances []float64
	Classes     []float64
	State       model.ModelState
}

func (t *baseTree) encodeState(name string, classes []float64) ([]byte, error) {
	if !t.IsFitted() {
		return nil, errors.NewNotFittedError(name, "GobEncode")
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(treeState{
		Params:      t.params.export(),
		Nodes:       t.nodes,
		Importances: t.importances,
		Classes:     classes,
		State:       t.state.GetState(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s: encode", name)
	}
	return buf.Bytes(), nil
}

func (t *baseTree) decodeState(name string, data []byte) (treeState, error) {
	var st treeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return st, errors.Wrapf(err, "%s: decode", name)
	}
	if len(st.Nodes) == 0 {
		return st, errors.NewValueError(name+".GobDecode", "tree has no nodes")
	}
	t.params.restore(st.Params)
	t.nodes = st.Nodes
	t.importances = st.Importances
	t.state = model.NewStateManager()
	t.state.SetState(st.State)
	return st, nil
}

var (
	_ model.Classifier         = (*DecisionTreeClassifier)(nil)
	_ model.Regressor          = (*DecisionTreeRegressor)(nil)
	_ model.FeatureImportancer = (*DecisionTreeClassifier)(nil)
	_ model.ParameterSetter    = (*DecisionTreeRegressor)(nil)
)
