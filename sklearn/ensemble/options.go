// Package ensemble はscikit-learn互換のランダムフォレストを提供します。
//
// 各決定木はブートストラップ標本（サンプル重みとして表現）と
// 分割ごとの特徴量サブサンプリングで学習され、木の学習と推論は
// core/parallel によって並列化されます。
package ensemble

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// forestParams はランダムフォレストのハイパーパラメータ
type forestParams struct {
	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     int64
	nJobs           int
}

// Option はランダムフォレストの設定を行う関数型
type Option func(*forestParams)

// WithNEstimators は木の本数を設定する（デフォルト: 100）
func WithNEstimators(n int) Option {
	return func(p *forestParams) {
		p.nEstimators = n
	}
}

// WithMaxDepth は各木の最大深さを設定する（0は無制限）
func WithMaxDepth(depth int) Option {
	return func(p *forestParams) {
		p.maxDepth = depth
	}
}

// WithMinSamplesSplit は内部ノードの分割に必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(p *forestParams) {
		p.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf は葉ノードの最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(p *forestParams) {
		p.minSamplesLeaf = n
	}
}

// WithMaxFeatures は分割ごとに検討する特徴量数の決め方を設定する
// "sqrt", "log2", "all" のいずれか。
func WithMaxFeatures(mode string) Option {
	return func(p *forestParams) {
		p.maxFeatures = mode
	}
}

// WithBootstrap はブートストラップ標本を使うかを設定する
func WithBootstrap(bootstrap bool) Option {
	return func(p *forestParams) {
		p.bootstrap = bootstrap
	}
}

// WithRandomState は乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(p *forestParams) {
		p.randomState = seed
	}
}

// WithNJobs は学習・推論の並列数を設定する（0以下はCPUコア数）
func WithNJobs(n int) Option {
	return func(p *forestParams) {
		p.nJobs = n
	}
}

func defaultForestParams(maxFeatures string) forestParams {
	return forestParams{
		nEstimators:     100,
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     maxFeatures,
		bootstrap:       true,
		randomState:     0,
		nJobs:           -1,
	}
}

func (p *forestParams) validate() error {
	if p.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", p.nEstimators)
	}
	if p.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", p.maxDepth)
	}
	if p.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.minSamplesSplit)
	}
	if p.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.minSamplesLeaf)
	}
	switch p.maxFeatures {
	case "sqrt", "log2", "all":
	default:
		return errors.NewValidationError("max_features", `must be one of "sqrt", "log2", "all"`, p.maxFeatures)
	}
	return nil
}

// resolveMaxFeatures は特徴量数から各分割で検討する数を求める
func (p *forestParams) resolveMaxFeatures(nFeatures int) int {
	var n int
	switch p.maxFeatures {
	case "sqrt":
		n = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		n = int(math.Log2(float64(nFeatures)))
	default:
		n = nFeatures
	}
	if n < 1 {
		n = 1
	}
	return n
}

// GetParams はハイパーパラメータを取得する
func (p *forestParams) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      p.nEstimators,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"bootstrap":         p.bootstrap,
		"random_state":      p.randomState,
		"n_jobs":            p.nJobs,
	}
}

// SetParams はハイパーパラメータを設定する
func (p *forestParams) SetParams(values map[string]interface{}) error {
	for key, value := range values {
		switch key {
		case "max_features":
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			p.maxFeatures = s
		case "bootstrap":
			b, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a bool", value)
			}
			p.bootstrap = b
		case "n_estimators", "max_depth", "min_samples_split", "min_samples_leaf", "random_state", "n_jobs":
			n, ok := toInt64(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			switch key {
			case "n_estimators":
				p.nEstimators = int(n)
			case "max_depth":
				p.maxDepth = int(n)
			case "min_samples_split":
				p.minSamplesSplit = int(n)
			case "min_samples_leaf":
				p.minSamplesLeaf = int(n)
			case "random_state":
				p.randomState = n
			case "n_jobs":
				p.nJobs = int(n)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

func (p *forestParams) String() string {
	return fmt.Sprintf("n_estimators=%d, max_depth=%d, max_features=%s", p.nEstimators, p.maxDepth, p.maxFeatures)
}

// treePlan は1本の木の学習に使う重みと乱数シード
type treePlan struct {
	weights []float64
	seed    int64
}

// plans はマスターシードから各木のブートストラップ重みとシードを決める。
// 同じ randomState からは並列数に関係なく同じ森が得られる。
func (p *forestParams) plans(nSamples int) []treePlan {
	master := rand.New(rand.NewSource(p.randomState))
	out := make([]treePlan, p.nEstimators)
	for t := range out {
		rng := rand.New(rand.NewSource(master.Int63()))
		weights := make([]float64, nSamples)
		if p.bootstrap {
			for i := 0; i < nSamples; i++ {
				weights[rng.Intn(nSamples)]++
			}
		} else {
			for i := range weights {
				weights[i] = 1
			}
		}
		out[t] = treePlan{weights: weights, seed: rng.Int63()}
	}
	return out
}

// meanImportances は木ごとの重要度を平均し、合計1に正規化する
func meanImportances(perTree [][]float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, imp := range perTree {
		for j, v := range imp {
			out[j] += v
		}
	}
	var sum float64
	for _, v := range out {
		sum += v
	}
	for j := range out {
		out[j] = errors.SafeDivide(out[j], sum)
	}
	return out
}

// paramsState は gob 用にエクスポートしたハイパーパラメータ
type paramsState struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	RandomState     int64
	NJobs           int
}

func (p *forestParams) export() paramsState {
	return paramsState{
		NEstimators:     p.nEstimators,
		MaxDepth:        p.maxDepth,
		MinSamplesSplit: p.minSamplesSplit,
		MinSamplesLeaf:  p.minSamplesLeaf,
		MaxFeatures:     p.maxFeatures,
		Bootstrap:       p.bootstrap,
		RandomState:     p.randomState,
		NJobs:           p.nJobs,
	}
}

func (p *forestParams) restore(s paramsState) {
	p.nEstimators = s.NEstimators
	p.maxDepth = s.MaxDepth
	p.minSamplesSplit = s.MinSamplesSplit
	p.minSamplesLeaf = s.MinSamplesLeaf
	p.maxFeatures = s.MaxFeatures
	p.bootstrap = s.Bootstrap
	p.randomState = s.RandomState
	p.nJobs = s.NJobs
}
