package ensemble

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/core/parallel"
	"github.com/YuminosukeSato/cropadvisor/metrics"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/sklearn/tree"
)

// RandomForestRegressor はscikit-learn互換のランダムフォレスト回帰器
// 予測値は各木の予測の平均。
type RandomForestRegressor struct {
	baseForest

	estimators []*tree.DecisionTreeRegressor
}

// NewRandomForestRegressor は新しいランダムフォレスト回帰器を作成する
// max_features のデフォルトは "all"（scikit-learn の 1.0 に相当）。
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	return &RandomForestRegressor{baseForest: newBaseForest("all", opts)}
}

// Fit はブートストラップ標本で各木を学習する
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	r, c, err := f.checkFitInput("RandomForestRegressor", X, y)
	if err != nil {
		return err
	}

	estimators := make([]*tree.DecisionTreeRegressor, f.nEstimators)
	err = f.fitTrees(f.plans(r), func(t int, plan treePlan) error {
		dt := tree.NewDecisionTreeRegressor(f.treeOptions(c, plan.seed)...)
		if err := dt.FitWithWeights(X, y, plan.weights); err != nil {
			return err
		}
		estimators[t] = dt
		return nil
	})
	if err != nil {
		return err
	}

	perTree := make([][]float64, len(estimators))
	for t, dt := range estimators {
		perTree[t] = dt.GetFeatureImportances()
	}

	f.estimators = estimators
	f.importances = meanImportances(perTree, c)
	f.state.SetFitted(c, r)
	return nil
}

// Predict は各サンプルの予測値を n×1 の行列で返す
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, err := f.checkPredictInput("RandomForestRegressor", "Predict", X)
	if err != nil {
		return nil, err
	}

	nTrees := float64(len(f.estimators))
	pred := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, predictParallelThreshold, func(start, end int) {
		row := make([]float64, f.NFeatures())
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			var sum float64
			for _, dt := range f.estimators {
				sum += dt.ValueRow(row)
			}
			pred.Set(i, 0, sum/nTrees)
		}
	})
	return pred, nil
}

// Score は決定係数R²を返す（計算できない場合は0）
func (f *RandomForestRegressor) Score(X, y mat.Matrix) float64 {
	pred, err := f.Predict(X)
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

// Estimators は学習済みの木を返す
func (f *RandomForestRegressor) Estimators() []*tree.DecisionTreeRegressor {
	return f.estimators
}

// String はモデルの文字列表現を返す
func (f *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(%s)", f.forestParams.String())
}

// GobEncode implements gob.GobEncoder.
func (f *RandomForestRegressor) GobEncode() ([]byte, error) {
	return f.encodeState("RandomForestRegressor", nil, f.estimators)
}

// GobDecode implements gob.GobDecoder.
func (f *RandomForestRegressor) GobDecode(data []byte) error {
	var estimators []*tree.DecisionTreeRegressor
	if _, err := f.decodeState("RandomForestRegressor", data, &estimators); err != nil {
		return err
	}
	if len(estimators) == 0 {
		return errors.NewValueError("RandomForestRegressor.GobDecode", "forest has no trees")
	}
	f.estimators = estimators
	return nil
}
