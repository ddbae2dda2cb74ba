package model

// StateManager tracks fitted state plus the training dimensions. Estimators
// hold it by pointer (composition) rather than embedding it. Fields are
// exported for gob.
type StateManager struct {
	Fitted    bool
	NFeatures int
	NSamples  int
}

// NewStateManager returns an unfitted state.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether the owning estimator has been trained.
func (s *StateManager) IsFitted() bool {
	return s != nil && s.Fitted
}

// SetFitted marks the owning estimator as trained.
func (s *StateManager) SetFitted() {
	s.Fitted = true
}

// SetDimensions records the shape of the training data.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Reset clears the fitted flag and dimensions.
func (s *StateManager) Reset() {
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}
