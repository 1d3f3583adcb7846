package tree

import (
	"fmt"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// params は決定木のハイパーパラメータ
type params struct {
	criterion       string
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means all features
	randomState     int64
}

// Option は決定木の設定を行う関数型
type Option func(*params)

// WithCriterion は分割品質の評価基準を設定する
// 分類: "gini", "entropy" / 回帰: "squared_error"
func WithCriterion(criterion string) Option {
	return func(p *params) {
		p.criterion = criterion
	}
}

// WithMaxDepth は木の最大深さを設定する（0は無制限）
func WithMaxDepth(depth int) Option {
	return func(p *params) {
		p.maxDepth = depth
	}
}

// WithMinSamplesSplit は内部ノードを分割するのに必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(p *params) {
		p.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf は葉ノードに必要な最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(p *params) {
		p.minSamplesLeaf = n
	}
}

// WithMaxFeatures は各分割で検討する特徴量の数を設定する（0は全特徴量）
func WithMaxFeatures(n int) Option {
	return func(p *params) {
		p.maxFeatures = n
	}
}

// WithRandomState は特徴量サンプリングの乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(p *params) {
		p.randomState = seed
	}
}

func defaultParams(criterion string) params {
	return params{
		criterion:       criterion,
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     0,
		randomState:     0,
	}
}

func (p *params) validate(op string, criteria ...string) error {
	valid := false
	for _, c := range criteria {
		if p.criterion == c {
			valid = true
			break
		}
	}
	if !valid {
		return errors.NewValidationError("criterion", fmt.Sprintf("must be one of %v", criteria), p.criterion)
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
	if p.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be >= 0", p.maxFeatures)
	}
	return nil
}

// GetParams はハイパーパラメータを取得する
func (p *params) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.criterion,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"random_state":      p.randomState,
	}
}

// SetParams はハイパーパラメータを設定する
// 数値は int / int64 / float64（JSON由来）のいずれでも受け付ける。
func (p *params) SetParams(values map[string]interface{}) error {
	for key, value := range values {
		switch key {
		case "criterion":
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			p.criterion = s
		case "max_depth", "min_samples_split", "min_samples_leaf", "max_features", "random_state":
			n, ok := toInt64(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			switch key {
			case "max_depth":
				p.maxDepth = int(n)
			case "min_samples_split":
				p.minSamplesSplit = int(n)
			case "min_samples_leaf":
				p.minSamplesLeaf = int(n)
			case "max_features":
				p.maxFeatures = int(n)
			case "random_state":
				p.randomState = n
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
	case int32:
		return int64(v), true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

// paramsState は gob 用にエクスポートしたハイパーパラメータ
type paramsState struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     int64
}

func (p *params) export() paramsState {
	return paramsState{
		Criterion:       p.criterion,
		MaxDepth:        p.maxDepth,
		MinSamplesSplit: p.minSamplesSplit,
		MinSamplesLeaf:  p.minSamplesLeaf,
		MaxFeatures:     p.maxFeatures,
		RandomState:     p.randomState,
	}
}

func (p *params) restore(s paramsState) {
	p.criterion = s.Criterion
	p.maxDepth = s.MaxDepth
	p.minSamplesSplit = s.MinSamplesSplit
	p.minSamplesLeaf = s.MinSamplesLeaf
	p.maxFeatures = s.MaxFeatures
	p.randomState = s.RandomState
}
