// Package linear provides least squares regression, used as the baseline
// the demand model is compared against.
//
// Example usage:
//
//	lr := linear.NewLinearRegression().WithAlpha(1e-3)
//	if err := lr.Fit(X, y); err != nil {
//		return err
//	}
//	predictions, err := lr.Predict(XTest)
package linear

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/marketlens/core/model"
	"github.com/ezoic/marketlens/metrics"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
)

// LinearRegression is ordinary least squares with optional L2 penalty on the
// weights. The intercept is never penalized.
type LinearRegression struct {
	State     *model.StateManager // Public for gob encoding
	Alpha     float64             // L2 penalty; 0 is plain OLS
	Weights   *mat.VecDense
	Intercept float64
	logger    log.Logger
}

// NewLinearRegression returns an untrained OLS model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{
		State: model.NewStateManager(),
		logger: log.GetLoggerWithName("linear").With(
			log.ModelNameKey, "LinearRegression",
		),
	}
}

// WithAlpha sets the L2 penalty. A positive alpha keeps the system solvable
// when columns are collinear, as complementary one-hot columns are.
func (lr *LinearRegression) WithAlpha(alpha float64) *LinearRegression {
	lr.Alpha = alpha
	return lr
}

// Fit solves (XcᵀXc + αI)w = Xcᵀyc on column-centered data with a Cholesky
// factorization, then recovers the intercept from the means.
//
// Errors:
//   - ErrEmptyData: if X is empty
//   - ErrDimensionMismatch: if y and X disagree on the number of samples
//   - ErrSingularMatrix: if the system has no unique solution
func (lr *LinearRegression) Fit(X mat.Matrix, y *mat.VecDense) (err error) {
	defer mlErrors.Recover(&err, "LinearRegression.Fit")

	start := time.Now()
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return mlErrors.NewModelError("LinearRegression.Fit", "empty data", mlErrors.ErrEmptyData)
	}
	if y.Len() != r {
		return mlErrors.NewDimensionError("LinearRegression.Fit", r, y.Len(), 0)
	}
	if lr.Alpha < 0 {
		return mlErrors.NewValueErrorf("LinearRegression.Fit", "alpha must be non-negative, got %g", lr.Alpha)
	}

	xMean := make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			xMean[j] += X.At(i, j)
		}
		xMean[j] /= float64(r)
	}
	var yMean float64
	for i := 0; i < r; i++ {
		yMean += y.AtVec(i)
	}
	yMean /= float64(r)

	xc := mat.NewDense(r, c, nil)
	yc := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			xc.Set(i, j, X.At(i, j)-xMean[j])
		}
		yc.SetVec(i, y.AtVec(i)-yMean)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, xc.T())
	for j := 0; j < c; j++ {
		gram.SetSym(j, j, gram.At(j, j)+lr.Alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return mlErrors.NewModelError("LinearRegression.Fit",
			"normal equations are not positive definite", mlErrors.ErrSingularMatrix)
	}
	var xty mat.VecDense
	xty.MulVec(xc.T(), yc)
	w := mat.NewVecDense(c, nil)
	if err := chol.SolveVecTo(w, &xty); err != nil {
		return mlErrors.NewModelError("LinearRegression.Fit", err.Error(), mlErrors.ErrSingularMatrix)
	}

	lr.Weights = w
	lr.Intercept = yMean - mat.Dot(w, mat.NewVecDense(c, xMean))
	lr.State.SetDimensions(c, r)
	lr.State.SetFitted()

	if lr.logger != nil {
		lr.logger.Debug("Training completed",
			log.OperationKey, log.OperationFit,
			log.SamplesKey, r,
			log.FeaturesKey, c,
			log.DurationMsKey, time.Since(start).Milliseconds())
	}
	return nil
}

// Predict returns Xw + intercept.
func (lr *LinearRegression) Predict(X mat.Matrix) (_ *mat.VecDense, err error) {
	defer mlErrors.Recover(&err, "LinearRegression.Predict")

	if !lr.IsFitted() {
		return nil, mlErrors.NewNotFittedError("LinearRegression", "Predict")
	}
	r, c := X.Dims()
	if c != lr.Weights.Len() {
		return nil, mlErrors.NewDimensionError("LinearRegression.Predict", lr.Weights.Len(), c, 1)
	}
	out := mat.NewVecDense(r, nil)
	out.MulVec(X, lr.Weights)
	for i := 0; i < r; i++ {
		out.SetVec(i, out.AtVec(i)+lr.Intercept)
	}
	return out, nil
}

// Score returns the R² of the predictions on X against y.
func (lr *LinearRegression) Score(X mat.Matrix, y *mat.VecDense) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// IsFitted reports whether Fit completed successfully.
func (lr *LinearRegression) IsFitted() bool {
	return lr.State.IsFitted()
}
