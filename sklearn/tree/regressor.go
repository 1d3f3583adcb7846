package tree

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/metrics"
)

// DecisionTreeRegressor はscikit-learn互換の回帰木
// 葉の値はその葉に属するサンプルの（重み付き）平均。
type DecisionTreeRegressor struct {
	baseTree
}

// NewDecisionTreeRegressor は新しい回帰木を作成する（criterion は "squared_error"）
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{baseTree: newBaseTree("squared_error", opts)}
}

// Fit は回帰木を学習する
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWithWeights(X, y, nil)
}

// FitWithWeights はサンプル重み付きで学習する
func (dt *DecisionTreeRegressor) FitWithWeights(X, y mat.Matrix, sampleWeight []float64) error {
	if err := dt.params.validate("DecisionTreeRegressor", "squared_error"); err != nil {
		return err
	}
	x, target, w, err := fitData("DecisionTreeRegressor", X, y, sampleWeight)
	if err != nil {
		return err
	}
	idx, err := activeSamples("DecisionTreeRegressor", w)
	if err != nil {
		return err
	}

	r, c := X.Dims()
	b := newBuilder(x, c, newSquaredErrorCriterion(target, w), dt.params)
	b.build(idx, 0)

	dt.nodes = b.nodes
	dt.importances = normalizeImportances(b.importances)
	dt.state.SetFitted(c, r)
	return nil
}

// Predict は各サンプルの予測値を n×1 の行列で返す
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, err := dt.checkPredictInput("DecisionTreeRegressor", "Predict", X)
	if err != nil {
		return nil, err
	}
	pred := mat.NewDense(r, 1, nil)
	row := make([]float64, dt.NFeatures())
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		pred.Set(i, 0, dt.ValueRow(row))
	}
	return pred, nil
}

// ValueRow は1行分の予測値を返す（入力検証なし）
func (dt *DecisionTreeRegressor) ValueRow(row []float64) float64 {
	return dt.leafValue(row)[0]
}

// Score は決定係数R²を返す（計算できない場合は0）
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	r, _ := y.Dims()
	yTrue := mat.NewVecDense(r, nil)
	yPred := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yTrue.SetVec(i, y.At(i, 0))
		yPred.SetVec(i, pred.At(i, 0))
	}
	score, err := metrics.R2Score(yTrue, yPred)
	if err != nil {
		return 0
	}
	return score
}

// String はモデルの文字列表現を返す
func (dt *DecisionTreeRegressor) String() string {
	if !dt.IsFitted() {
		return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d)", dt.maxDepth)
	}
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, depth=%d, n_leaves=%d)",
		dt.maxDepth, dt.GetDepth(), dt.GetNLeaves())
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeRegressor) GobEncode() ([]byte, error) {
	return dt.encodeState("DecisionTreeRegressor", nil)
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeRegressor) GobDecode(data []byte) error {
	_, err := dt.decodeState("DecisionTreeRegressor", data)
	return err
}
