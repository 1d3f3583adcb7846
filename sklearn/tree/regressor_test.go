package tree

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/core/model"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, 7) // constant feature
		if i >= 5 {
			y.Set(i, 0, 10)
		}
	}
	return X, y
}

func TestDecisionTreeRegressor_StepFunction(t *testing.T) {
	X, y := stepData()

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
	assert.InDelta(t, 1.0, dt.Score(X, y), 1e-12)

	pred, err := dt.Predict(mat.NewDense(2, 2, []float64{4.4, 7, 4.6, 7}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 10.0, pred.At(1, 0))

	nodes := dt.Nodes()
	assert.Equal(t, 0, nodes[0].Feature)
	assert.InDelta(t, 4.5, nodes[0].Threshold, 1e-12)

	assert.Equal(t, []float64{1, 0}, dt.GetFeatureImportances())
}

func TestDecisionTreeRegressor_LeafIsMean(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 6})

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	assert.Equal(t, 1, dt.GetNLeaves())
	assert.InDelta(t, 3.0, dt.ValueRow([]float64{100}), 1e-12)
}

func TestDecisionTreeRegressor_SampleWeights(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{5, 5, 100, 100})

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.FitWithWeights(X, y, []float64{1, 2, 0, 0}))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Equal(t, 5.0, pred.At(i, 0))
	}

	err = dt.FitWithWeights(X, y, []float64{0, 0, 0, 0})
	assert.Error(t, err)

	err = dt.FitWithWeights(X, y, []float64{1, 1})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestDecisionTreeClassifier_ZeroWeightClassesKept(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 2})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.FitWithWeights(X, y, []float64{1, 1, 1, 0}))

	assert.Equal(t, []float64{0, 1, 2}, dt.Classes())
	proba, err := dt.PredictProba(mat.NewDense(1, 1, []float64{3}))
	require.NoError(t, err)
	_, cols := proba.Dims()
	assert.Equal(t, 3, cols)
	assert.Equal(t, 0.0, proba.At(0, 2))
}

func TestDecisionTree_Gob(t *testing.T) {
	X, y := stepData()

	reg := NewDecisionTreeRegressor(WithMaxDepth(3))
	require.NoError(t, reg.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(reg, &buf))
	var loaded DecisionTreeRegressor
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	assert.True(t, loaded.IsFitted())
	assert.Equal(t, 3, loaded.maxDepth)
	assert.Equal(t, reg.Nodes(), loaded.Nodes())
	assert.InDelta(t, reg.Score(X, y), loaded.Score(X, y), 1e-12)

	clf := NewDecisionTreeClassifier(WithCriterion("entropy"))
	require.NoError(t, clf.Fit(X, y))
	buf.Reset()
	require.NoError(t, model.SaveModelToWriter(clf, &buf))
	var loadedClf DecisionTreeClassifier
	require.NoError(t, model.LoadModelFromReader(&loadedClf, &buf))

	assert.Equal(t, "entropy", loadedClf.criterion)
	assert.Equal(t, []float64{0, 10}, loadedClf.Classes())
	assert.Equal(t, 1.0, loadedClf.Score(X, y))

	// 未学習のモデルは保存できない
	assert.Error(t, model.SaveModelToWriter(NewDecisionTreeClassifier(), &buf))
}

func TestDecisionTree_MaxFeaturesDeterministic(t *testing.T) {
	X := mat.NewDense(30, 4, nil)
	y := mat.NewDense(30, 1, nil)
	for i := 0; i < 30; i++ {
		for j := 0; j < 4; j++ {
			X.Set(i, j, math.Mod(float64(i*(j+3)), 11))
		}
		y.Set(i, 0, float64(i%3))
	}

	a := NewDecisionTreeClassifier(WithMaxFeatures(2), WithRandomState(7))
	b := NewDecisionTreeClassifier(WithMaxFeatures(2), WithRandomState(7))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	assert.Equal(t, a.Nodes(), b.Nodes())
}

func TestDecisionTree_RejectsNonFinite(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	_, err := dt.Predict(mat.NewDense(1, 2, []float64{math.NaN(), 7}))
	assert.True(t, errors.Is(err, errors.ErrNonFinite))

	_, err = dt.Predict(mat.NewDense(1, 3, []float64{1, 2, 3}))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestDecisionTree_ParamValidation(t *testing.T) {
	X, y := stepData()

	err := NewDecisionTreeRegressor(WithCriterion("gini")).Fit(X, y)
	var valErr *errors.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "criterion", valErr.ParamName)

	err = NewDecisionTreeClassifier(WithMinSamplesLeaf(0)).Fit(X, y)
	assert.Error(t, err)

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.SetParams(map[string]interface{}{"max_depth": 4.0, "random_state": int64(3)}))
	assert.Equal(t, 4, dt.maxDepth)
	assert.Equal(t, int64(3), dt.randomState)

	assert.Error(t, dt.SetParams(map[string]interface{}{"max_depth": 2.5}))
	assert.Error(t, dt.SetParams(map[string]interface{}{"n_estimators": 10}))
}
