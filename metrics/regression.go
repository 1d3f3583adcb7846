package metrics

import (
	"math"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// pairLen は yTrue と yPred が空でなく同じ長さであることを確認し、その長さを返す
func pairLen(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := pairLen("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は MSE の平方根。単位が目的変数（kg/hectare）と揃う。
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := pairLen("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// MAPE は平均絶対パーセント誤差（%）を計算する
// yTrue が0のサンプルは除外し、全て0の場合はエラーを返す。
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := pairLen("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	counted := 0
	for i := 0; i < n; i++ {
		actual := yTrue.AtVec(i)
		if actual == 0 {
			continue
		}
		sum += math.Abs(actual-yPred.AtVec(i)) / math.Abs(actual)
		counted++
	}
	if counted == 0 {
		return 0, errors.NewValueError("MAPE", "all yTrue values are zero")
	}
	return sum / float64(counted) * 100, nil
}

// R2Score は決定係数を計算する
// yTrue に分散がない場合は定義できないためエラーを返す。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := pairLen("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var mean float64
	for i := 0; i < n; i++ {
		mean += yTrue.AtVec(i)
	}
	mean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		actual := yTrue.AtVec(i)
		tss += (actual - mean) * (actual - mean)
		diff := actual - yPred.AtVec(i)
		rss += diff * diff
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}
