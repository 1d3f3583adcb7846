package ensemble

import (
	"bytes"
	"encoding/gob"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/core/model"
	"github.com/YuminosukeSato/cropadvisor/core/parallel"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/sklearn/tree"
)

// predictParallelThreshold 行数がこれ以下なら推論を逐次実行する
const predictParallelThreshold = 256

// baseForest は分類・回帰の森で共通の状態
type baseForest struct {
	forestParams
	state       *model.StateManager
	importances []float64
}

func newBaseForest(maxFeatures string, opts []Option) baseForest {
	p := defaultForestParams(maxFeatures)
	for _, opt := range opts {
		opt(&p)
	}
	return baseForest{forestParams: p, state: model.NewStateManager()}
}

// IsFitted はモデルが学習済みかを返す
func (f *baseForest) IsFitted() bool {
	return f.state != nil && f.state.IsFitted()
}

// NFeatures は学習時の特徴量数を返す
func (f *baseForest) NFeatures() int {
	if f.state == nil {
		return 0
	}
	n, _ := f.state.GetDimensions()
	return n
}

// GetFeatureImportances は木ごとの重要度の平均（合計1）を返す
func (f *baseForest) GetFeatureImportances() []float64 {
	out := make([]float64, len(f.importances))
	copy(out, f.importances)
	return out
}

func (f *baseForest) checkFitInput(op string, X, y mat.Matrix) (rows, cols int, err error) {
	if err := f.forestParams.validate(); err != nil {
		return 0, 0, err
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op+".Fit", "empty data", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != r {
		return 0, 0, errors.NewDimensionError(op+".Fit", r, yr, 0)
	}
	if yc != 1 {
		return 0, 0, errors.NewValueError(op+".Fit", "y must be a column vector (n×1 matrix)")
	}
	return r, c, nil
}

func (f *baseForest) checkPredictInput(name, method string, X mat.Matrix) (rows int, err error) {
	if !f.IsFitted() {
		return 0, errors.NewNotFittedError(name, method)
	}
	op := name + "." + method
	r, c := X.Dims()
	if r == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if c != f.NFeatures() {
		return 0, errors.NewDimensionError(op, f.NFeatures(), c, 1)
	}
	if err := errors.CheckFinite(op, X); err != nil {
		return 0, err
	}
	return r, nil
}

func (f *baseForest) treeOptions(nFeatures int, seed int64) []tree.Option {
	return []tree.Option{
		tree.WithMaxDepth(f.maxDepth),
		tree.WithMinSamplesSplit(f.minSamplesSplit),
		tree.WithMinSamplesLeaf(f.minSamplesLeaf),
		tree.WithMaxFeatures(f.resolveMaxFeatures(nFeatures)),
		tree.WithRandomState(seed),
	}
}

// fitTrees は plans に従って木を並列に学習する
// fit が返した最初のエラーを返す。
func (f *baseForest) fitTrees(plans []treePlan, fit func(t int, plan treePlan) error) error {
	errs := make([]error, len(plans))
	parallel.ParallelizeN(len(plans), f.nJobs, func(start, end int) {
		for t := start; t < end; t++ {
			errs[t] = errors.SafeExecute("ensemble.fitTree", func() error {
				return fit(t, plans[t])
			})
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func uniqueSorted(m mat.Matrix) []float64 {
	r, _ := m.Dims()
	seen := make(map[float64]struct{}, r)
	out := make([]float64, 0)
	for i := 0; i < r; i++ {
		v := m.At(i, 0)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

type forestState struct {
	Params      paramsState
	Classes     []float64
	Importances []float64
	State       model.ModelState
	Trees       []byte
}

func (f *baseForest) encodeState(name string, classes []float64, trees interface{}) ([]byte, error) {
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError(name, "GobEncode")
	}
	var treeBuf bytes.Buffer
	if err := gob.NewEncoder(&treeBuf).Encode(trees); err != nil {
		return nil, errors.Wrapf(err, "%s: encode trees", name)
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(forestState{
		Params:      f.forestParams.export(),
		Classes:     classes,
		Importances: f.importances,
		State:       f.state.GetState(),
		Trees:       treeBuf.Bytes(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s: encode", name)
	}
	return buf.Bytes(), nil
}

func (f *baseForest) decodeState(name string, data []byte, trees interface{}) (forestState, error) {
	var st forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return st, errors.Wrapf(err, "%s: decode", name)
	}
	if err := gob.NewDecoder(bytes.NewReader(st.Trees)).Decode(trees); err != nil {
		return st, errors.Wrapf(err, "%s: decode trees", name)
	}
	f.forestParams.restore(st.Params)
	f.importances = st.Importances
	f.state = model.NewStateManager()
	f.state.SetState(st.State)
	return st, nil
}

var (
	_ model.Classifier         = (*RandomForestClassifier)(nil)
	_ model.Regressor          = (*RandomForestRegressor)(nil)
	_ model.FeatureImportancer = (*RandomForestClassifier)(nil)
	_ model.FeatureImportancer = (*RandomForestRegressor)(nil)
	_ model.ParameterGetter    = (*RandomForestClassifier)(nil)
	_ model.ParameterSetter    = (*RandomForestRegressor)(nil)
)
