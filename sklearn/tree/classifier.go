package tree

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/metrics"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// DecisionTreeClassifier はscikit-learn互換の分類木
//
// 使用例:
//
//	dt := tree.NewDecisionTreeClassifier(
//	    tree.WithCriterion("entropy"),
//	    tree.WithMaxDepth(5),
//	)
//	err := dt.Fit(X, y)
//	proba, err := dt.PredictProba(XTest)
type DecisionTreeClassifier struct {
	baseTree

	classes_  []float64
	nClasses_ int
}

// NewDecisionTreeClassifier は新しい分類木を作成する（criterion のデフォルトは "gini"）
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{baseTree: newBaseTree("gini", opts)}
}

// Fit は分類木を学習する
// y は n×1 の行列で、値はクラスラベル（整数値を想定）として扱われる。
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWithWeights(X, y, nil)
}

// FitWithWeights はサンプル重み付きで学習する
// 重み0のサンプルは木の構築に使われないが、クラス一覧には含まれる。
func (dt *DecisionTreeClassifier) FitWithWeights(X, y mat.Matrix, sampleWeight []float64) error {
	if err := dt.params.validate("DecisionTreeClassifier", "gini", "entropy"); err != nil {
		return err
	}
	x, target, w, err := fitData("DecisionTreeClassifier", X, y, sampleWeight)
	if err != nil {
		return err
	}
	idx, err := activeSamples("DecisionTreeClassifier", w)
	if err != nil {
		return err
	}

	classes := uniqueSorted(target)
	encoded := make([]int, len(target))
	lookup := make(map[float64]int, len(classes))
	for k, c := range classes {
		lookup[c] = k
	}
	for i, v := range target {
		encoded[i] = lookup[v]
	}

	r, c := X.Dims()
	crit := newClassificationCriterion(encoded, w, len(classes), dt.criterion == "entropy")
	b := newBuilder(x, c, crit, dt.params)
	b.build(idx, 0)

	dt.nodes = b.nodes
	dt.importances = normalizeImportances(b.importances)
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.state.SetFitted(c, r)
	return nil
}

func uniqueSorted(values []float64) []float64 {
	seen := make(map[float64]struct{}, len(values))
	out := make([]float64, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// PredictProba は各クラスの確率を返す（列はClasses()の順）
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, err := dt.checkPredictInput("DecisionTreeClassifier", "PredictProba", X)
	if err != nil {
		return nil, err
	}
	proba := mat.NewDense(r, dt.nClasses_, nil)
	row := make([]float64, dt.NFeatures())
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		proba.SetRow(i, dt.leafValue(row))
	}
	return proba, nil
}

// Predict は各サンプルのクラスラベルを n×1 の行列で返す
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, err := dt.checkPredictInput("DecisionTreeClassifier", "Predict", X)
	if err != nil {
		return nil, err
	}
	pred := mat.NewDense(r, 1, nil)
	row := make([]float64, dt.NFeatures())
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		pred.Set(i, 0, dt.classes_[argmax(dt.leafValue(row))])
	}
	return pred, nil
}

// ProbaRow は1行分のクラス確率を返す
// 入力検証を行わないため、ensemble のように検証済みの行を渡す場合に使う。
func (dt *DecisionTreeClassifier) ProbaRow(row []float64) []float64 {
	return dt.leafValue(row)
}

// Score は正解率を返す（推論に失敗した場合は0）
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
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
func (dt *DecisionTreeClassifier) Classes() []float64 {
	out := make([]float64, len(dt.classes_))
	copy(out, dt.classes_)
	return out
}

// String はモデルの文字列表現を返す
func (dt *DecisionTreeClassifier) String() string {
	if !dt.IsFitted() {
		return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d)", dt.criterion, dt.maxDepth)
	}
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, n_classes=%d, depth=%d, n_leaves=%d)",
		dt.criterion, dt.maxDepth, dt.nClasses_, dt.GetDepth(), dt.GetNLeaves())
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	return dt.encodeState("DecisionTreeClassifier", dt.classes_)
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	st, err := dt.decodeState("DecisionTreeClassifier", data)
	if err != nil {
		return err
	}
	if len(st.Classes) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.GobDecode", "no classes")
	}
	dt.classes_ = st.Classes
	dt.nClasses_ = len(st.Classes)
	return nil
}

func argmax(values []float64) int {
	best := 0
	for k := 1; k < len(values); k++ {
		if values[k] > values[best] {
			best = k
		}
	}
	return best
}
