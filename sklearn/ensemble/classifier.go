package ensemble

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/core/parallel"
	"github.com/YuminosukeSato/cropadvisor/metrics"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/sklearn/tree"
)

// RandomForestClassifier はscikit-learn互換のランダムフォレスト分類器
// 予測確率は各木の葉のクラス確率の平均。
//
// 使用例:
//
//	forest := ensemble.NewRandomForestClassifier(
//	    ensemble.WithNEstimators(200),
//	    ensemble.WithRandomState(42),
//	)
//	err := forest.Fit(X, y)
//	proba, err := forest.PredictProba(XTest)
type RandomForestClassifier struct {
	baseForest

	estimators []*tree.DecisionTreeClassifier
	classes    []float64
}

// NewRandomForestClassifier は新しいランダムフォレスト分類器を作成する
// max_features のデフォルトは "sqrt"。
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	return &RandomForestClassifier{baseForest: newBaseForest("sqrt", opts)}
}

// Fit はブートストラップ標本で各木を学習する
func (f *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	r, c, err := f.checkFitInput("RandomForestClassifier", X, y)
	if err != nil {
		return err
	}

	estimators := make([]*tree.DecisionTreeClassifier, f.nEstimators)
	err = f.fitTrees(f.plans(r), func(t int, plan treePlan) error {
		dt := tree.NewDecisionTreeClassifier(f.treeOptions(c, plan.seed)...)
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
	f.classes = uniqueSorted(y)
	f.importances = meanImportances(perTree, c)
	f.state.SetFitted(c, r)
	return nil
}

// PredictProba は各クラスの確率を返す（列はClasses()の順）
func (f *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, err := f.checkPredictInput("RandomForestClassifier", "PredictProba", X)
	if err != nil {
		return nil, err
	}

	nClasses := len(f.classes)
	nTrees := float64(len(f.estimators))
	proba := mat.NewDense(r, nClasses, nil)
	parallel.ParallelizeWithThreshold(r, predictParallelThreshold, func(start, end int) {
		row := make([]float64, f.NFeatures())
		acc := make([]float64, nClasses)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			for k := range acc {
				acc[k] = 0
			}
			for _, dt := range f.estimators {
				for k, p := range dt.ProbaRow(row) {
					acc[k] += p
				}
			}
			for k := range acc {
				acc[k] /= nTrees
			}
			proba.SetRow(i, acc)
		}
	})
	return proba, nil
}

// Predict は確率が最大のクラスラベルを n×1 の行列で返す
func (f *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	pred := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred.Set(i, 0, f.classes[argmaxRow(proba, i)])
	}
	return pred, nil
}

func argmaxRow(m mat.Matrix, i int) int {
	_, c := m.Dims()
	best := 0
	for k := 1; k < c; k++ {
		if m.At(i, k) > m.At(i, best) {
			best = k
		}
	}
	return best
}

// Score は正解率を返す（推論に失敗した場合は0）
func (f *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := f.Predict(X)
	if err != nil {
		return 0
	}
	acc, err := metrics.AccuracyMatrix(y, pred)
	if err != nil {
		return 0
	}
	return acc
}

// Classes は学習済みクラスラベルを昇順で返す
func (f *RandomForestClassifier) Classes() []float64 {
	out := make([]float64, len(f.classes))
	copy(out, f.classes)
	return out
}

// Estimators は学習済みの木を返す
func (f *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return f.estimators
}

// String はモデルの文字列表現を返す
func (f *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(%s)", f.forestParams.String())
}

// GobEncode implements gob.GobEncoder.
func (f *RandomForestClassifier) GobEncode() ([]byte, error) {
	return f.encodeState("RandomForestClassifier", f.classes, f.estimators)
}

// GobDecode implements gob.GobDecoder.
func (f *RandomForestClassifier) GobDecode(data []byte) error {
	var estimators []*tree.DecisionTreeClassifier
	st, err := f.decodeState("RandomForestClassifier", data, &estimators)
	if err != nil {
		return err
	}
	if len(estimators) == 0 || len(st.Classes) == 0 {
		return errors.NewValueError("RandomForestClassifier.GobDecode", "forest has no trees")
	}
	f.estimators = estimators
	f.classes = st.Classes
	return nil
}
