// Package metrics provides evaluation and similarity measures:
//
//   - MSE, RMSE, MAE and R2Score for scoring the demand model on its holdout
//   - CosineSimilarity and CosineSimilarityMatrix for product comparison
//
// Vector inputs use gonum's *mat.VecDense; matrix inputs accept any mat.Matrix.
//
// Example:
//
//	mse, err := metrics.MSE(yTrue, yPred)
//	if err != nil {
//		return err
//	}
//	r2, err := metrics.R2Score(yTrue, yPred)
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, mlErrors.NewModelError(op, "empty vector", mlErrors.ErrEmptyData)
	}
	if yPred.Len() != n {
		return 0, mlErrors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE returns the mean squared error (1/n)·Σ(yTrue − yPred)².
//
// Errors:
//   - ErrEmptyData: if the vectors are empty
//   - ErrDimensionMismatch: if the lengths differ
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
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

// RMSE returns the square root of MSE.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE returns the mean absolute error (1/n)·Σ|yTrue − yPred|.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score returns the coefficient of determination 1 − RSS/TSS.
//
// The best score is 1.0; a model that always predicts the mean scores 0 and
// worse models score below 0.
//
// Errors:
//   - ErrEmptyData: if the vectors are empty
//   - ErrDimensionMismatch: if the lengths differ
//   - ErrDegenerateTarget: if yTrue has no variance, which leaves R² undefined
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	truth := make([]float64, n)
	for i := range truth {
		truth[i] = yTrue.AtVec(i)
	}
	yMean := stat.Mean(truth, nil)

	var tss, rss float64
	for i := 0; i < n; i++ {
		t := truth[i]
		p := yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}

	if tss == 0 {
		return 0, mlErrors.NewModelError("R2Score", "total sum of squares is zero", mlErrors.ErrDegenerateTarget)
	}
	return 1 - rss/tss, nil
}
