package ensemble

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/core/model"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// blobs は3クラスの分離しやすいデータを生成する
func blobs(n int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	centers := [][]float64{{0, 0, 0}, {5, 5, 0}, {0, 5, 5}}
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		k := i % 3
		for j := 0; j < 3; j++ {
			X.Set(i, j, centers[k][j]+rng.NormFloat64()*0.5)
		}
		y.Set(i, 0, float64(k))
	}
	return X, y
}

func TestRandomForestClassifier_FitPredict(t *testing.T) {
	X, y := blobs(150, 1)

	forest := NewRandomForestClassifier(WithNEstimators(20), WithRandomState(42))
	require.NoError(t, forest.Fit(X, y))

	assert.True(t, forest.IsFitted())
	assert.Equal(t, []float64{0, 1, 2}, forest.Classes())
	assert.Len(t, forest.Estimators(), 20)
	assert.GreaterOrEqual(t, forest.Score(X, y), 0.98)

	XTest, yTest := blobs(60, 2)
	assert.GreaterOrEqual(t, forest.Score(XTest, yTest), 0.95)

	proba, err := forest.PredictProba(XTest)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	require.Equal(t, 60, rows)
	require.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for k := 0; k < cols; k++ {
			p := proba.At(i, k)
			assert.True(t, p >= 0 && p <= 1)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	imp := forest.GetFeatureImportances()
	require.Len(t, imp, 3)
	var total float64
	for _, v := range imp {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestRandomForestClassifier_Reproducible(t *testing.T) {
	X, y := blobs(90, 3)
	XTest, _ := blobs(30, 4)

	a := NewRandomForestClassifier(WithNEstimators(10), WithRandomState(7), WithNJobs(1))
	b := NewRandomForestClassifier(WithNEstimators(10), WithRandomState(7), WithNJobs(4))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.PredictProba(XTest)
	require.NoError(t, err)
	pb, err := b.PredictProba(XTest)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb), "same seed must give the same forest regardless of n_jobs")
}

func TestRandomForestClassifier_StringLabelsViaCodes(t *testing.T) {
	// クラス値が連番でなくても Classes の順に確率列が並ぶ
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{7, 7, 7, 3, 3, 3})

	forest := NewRandomForestClassifier(WithNEstimators(5), WithBootstrap(false))
	require.NoError(t, forest.Fit(X, y))

	assert.Equal(t, []float64{3, 7}, forest.Classes())
	pred, err := forest.Predict(mat.NewDense(2, 1, []float64{0.5, 11.5}))
	require.NoError(t, err)
	assert.Equal(t, 7.0, pred.At(0, 0))
	assert.Equal(t, 3.0, pred.At(1, 0))
}

func TestRandomForestClassifier_Errors(t *testing.T) {
	forest := NewRandomForestClassifier()

	_, err := forest.PredictProba(mat.NewDense(1, 3, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	X, y := blobs(30, 5)
	assert.Error(t, NewRandomForestClassifier(WithNEstimators(0)).Fit(X, y))
	assert.Error(t, NewRandomForestClassifier(WithMaxFeatures("half")).Fit(X, y))
	assert.Error(t, forest.Fit(X, mat.NewDense(29, 1, nil)))

	require.NoError(t, NewRandomForestClassifier(WithNEstimators(3)).Fit(X, y))
	fitted := NewRandomForestClassifier(WithNEstimators(3))
	require.NoError(t, fitted.Fit(X, y))

	_, err = fitted.PredictProba(mat.NewDense(1, 3, []float64{1, math.Inf(1), 0}))
	assert.True(t, errors.Is(err, errors.ErrNonFinite))

	_, err = fitted.Predict(mat.NewDense(1, 2, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestRandomForestClassifier_Gob(t *testing.T) {
	X, y := blobs(60, 6)
	forest := NewRandomForestClassifier(WithNEstimators(8), WithRandomState(1))
	require.NoError(t, forest.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(forest, &buf))

	var loaded RandomForestClassifier
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	assert.Equal(t, forest.Classes(), loaded.Classes())
	assert.Equal(t, forest.GetParams(), loaded.GetParams())
	p1, err := forest.PredictProba(X)
	require.NoError(t, err)
	p2, err := loaded.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))
}

func TestRandomForestRegressor(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	n := 200
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b := rng.Float64()*10, rng.Float64()*10
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		y.Set(i, 0, 3*a+0.1*b)
	}

	forest := NewRandomForestRegressor(WithNEstimators(25), WithRandomState(3))
	require.NoError(t, forest.Fit(X, y))
	assert.Greater(t, forest.Score(X, y), 0.95)

	imp := forest.GetFeatureImportances()
	assert.Greater(t, imp[0], imp[1])

	pred, err := forest.Predict(mat.NewDense(1, 2, []float64{5, 5}))
	require.NoError(t, err)
	assert.InDelta(t, 15.5, pred.At(0, 0), 2.0)

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(forest, &buf))
	var loaded RandomForestRegressor
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))
	pred2, err := loaded.Predict(mat.NewDense(1, 2, []float64{5, 5}))
	require.NoError(t, err)
	assert.Equal(t, pred.At(0, 0), pred2.At(0, 0))
}

func TestForestParams(t *testing.T) {
	forest := NewRandomForestRegressor()
	params := forest.GetParams()
	assert.Equal(t, 100, params["n_estimators"])
	assert.Equal(t, "all", params["max_features"])
	assert.Equal(t, "sqrt", NewRandomForestClassifier().GetParams()["max_features"])

	require.NoError(t, forest.SetParams(map[string]interface{}{"n_estimators": 10.0, "bootstrap": false}))
	assert.Equal(t, 10, forest.nEstimators)
	assert.False(t, forest.bootstrap)
	assert.Error(t, forest.SetParams(map[string]interface{}{"bootstrap": "yes"}))

	p := defaultForestParams("sqrt")
	assert.Equal(t, 2, p.resolveMaxFeatures(7))
	p.maxFeatures = "log2"
	assert.Equal(t, 1, p.resolveMaxFeatures(2))
	p.maxFeatures = "all"
	assert.Equal(t, 7, p.resolveMaxFeatures(7))
}
