package services

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MAPEEpsilon keeps MAPE finite when the actual value is zero.
const MAPEEpsilon = 1e-9

// RMSE returns the root mean squared error. Slices must have equal length.
func RMSE(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return math.NaN()
	}
	return floats.Distance(actual, predicted, 2) / math.Sqrt(float64(len(actual)))
}

// MAE returns the mean absolute error.
func MAE(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return math.NaN()
	}
	return floats.Distance(actual, predicted, 1) / float64(len(actual))
}

// MAPE returns the mean absolute percentage error, in percent, using
// |y - ŷ| / (|y| + eps).
func MAPE(actual, predicted []float64, eps float64) float64 {
	if len(actual) == 0 {
		return math.NaN()
	}
	ratios := make([]float64, len(actual))
	for i, y := range actual {
		ratios[i] = math.Abs(y-predicted[i]) / (math.Abs(y) + eps)
	}
	return stat.Mean(ratios, nil) * 100
}
