package errors

import (
	"math"
)

// CheckFinite returns ErrNonFinite, wrapped with the operation name, when any
// value in the matrix is NaN or ±Inf. Tree estimators call it before
// inference because comparisons against NaN would silently route a sample
// down the right branch.
func CheckFinite(operation string, matrix interface {
	At(int, int) float64
	Dims() (int, int)
}) error {
	rows, cols := matrix.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Wrapf(ErrNonFinite, "%s: row %d, column %d", operation, i, j)
			}
		}
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}
