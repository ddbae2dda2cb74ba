// Package model provides the building blocks shared by marketlens estimators:
//
//   - BaseEstimator and StateManager: fitted-state tracking so that untrained
//     estimators refuse to predict or transform
//   - SaveModel / LoadModel: gob persistence of fitted estimators
//   - ArtifactCache: a single on-disk artifact guarded by a cache key, so a
//     stale model is retrained instead of trusted because the file exists
//
// Estimators embed BaseEstimator (or hold a *StateManager) and call SetFitted
// at the end of a successful Fit:
//
//	type Scaler struct {
//		model.BaseEstimator
//		Mean []float64
//	}
//
//	func (s *Scaler) Fit(X mat.Matrix) error {
//		// ...
//		s.SetFitted()
//		return nil
//	}
package model

// EstimatorState represents the learning state of a model.
type EstimatorState int

const (
	// NotFitted indicates the model is not yet trained.
	NotFitted EstimatorState = iota
	// Fitted indicates the model has been trained.
	Fitted
)

// BaseEstimator is embedded by transformers such as scalers and encoders.
// Fields are exported so gob can encode them.
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted reports whether Fit completed successfully.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the estimator as trained. Only estimator implementations
// should call it.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the estimator to its untrained state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}
