// Package preprocessing provides feature transformers used ahead of the
// similarity and demand estimators:
//
//   - StandardScaler: removes the mean and scales each column to unit variance
//   - OneHotEncoder: expands categorical selections into 0/1 indicator columns
//
// Both follow the Fit / Transform / FitTransform pattern. Statistics are always
// learned in Fit and reused unchanged by Transform, so a single query row is
// transformed with the statistics of the catalog it is compared against.
//
// Example:
//
//	scaler := preprocessing.NewStandardScalerDefault()
//	catalogScaled, err := scaler.FitTransform(catalogX)
//	if err != nil {
//		return err
//	}
//	queryScaled, err := scaler.Transform(queryX)
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/marketlens/core/model"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// zeroVarianceTolerance is the standard deviation below which a column is
// treated as constant and left unscaled.
const zeroVarianceTolerance = 1e-8

// StandardScaler standardizes features to zero mean and unit variance using
// the population standard deviation, the same convention as scikit-learn.
type StandardScaler struct {
	model.BaseEstimator

	// Mean holds the per-column mean learned in Fit.
	Mean []float64

	// Scale holds the per-column standard deviation learned in Fit. Constant
	// columns get a scale of 1.
	Scale []float64

	// NFeatures is the column count seen in Fit.
	NFeatures int

	// WithMean controls centering (default true).
	WithMean bool

	// WithStd controls scaling to unit variance (default true).
	WithStd bool
}

// NewStandardScaler creates a scaler. withMean and withStd select centering
// and unit-variance scaling respectively.
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault creates a scaler that both centers and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit learns the per-column mean and standard deviation of X.
//
// Errors:
//   - ErrEmptyData: if X has no rows or no columns
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer mlErrors.Recover(&err, "StandardScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return mlErrors.NewModelError("StandardScaler.Fit", "empty data", mlErrors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)

		if s.WithMean {
			sum := 0.0
			for _, v := range col {
				sum += v
			}
			s.Mean[j] = sum / float64(r)
		}

		s.Scale[j] = 1.0
		if s.WithStd {
			// variance around the true column mean, even when WithMean is off
			mean := s.Mean[j]
			if !s.WithMean {
				sum := 0.0
				for _, v := range col {
					sum += v
				}
				mean = sum / float64(r)
			}
			sumSquares := 0.0
			for _, v := range col {
				d := v - mean
				sumSquares += d * d
			}
			std := math.Sqrt(sumSquares / float64(r))
			if std >= zeroVarianceTolerance {
				s.Scale[j] = std
			}
		}
	}

	s.SetFitted()
	return nil
}

// Transform applies (x - mean) / scale column-wise using the fitted statistics.
//
// Errors:
//   - ErrNotFitted: if Fit has not been called
//   - ErrDimensionMismatch: if X has a different column count than in Fit
func (s *StandardScaler) Transform(X mat.Matrix) (_ *mat.Dense, err error) {
	defer mlErrors.Recover(&err, "StandardScaler.Transform")
	if !s.IsFitted() {
		return nil, mlErrors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, mlErrors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform fits on X and returns X transformed.
func (s *StandardScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized values back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (_ *mat.Dense, err error) {
	defer mlErrors.Recover(&err, "StandardScaler.InverseTransform")
	if !s.IsFitted() {
		return nil, mlErrors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, mlErrors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// GetParams returns the scaler's hyperparameters.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}
