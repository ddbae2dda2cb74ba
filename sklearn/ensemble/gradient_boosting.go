// Package ensemble implements gradient boosted regression trees.
package ensemble

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/marketlens/core/model"
	"github.com/ezoic/marketlens/metrics"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
	"github.com/ezoic/marketlens/sklearn/tree"
)

// GradientBoostingRegressor fits an additive model of regression trees on
// squared error. Each round fits a tree to the gradient (pred - y) with unit
// hessians and adds LearningRate times its leaf values to the prediction,
// starting from the mean target.
//
// All fields that define predictions are exported so a fitted model can be
// stored with core/model persistence.
type GradientBoostingRegressor struct {
	// State management using composition
	State *model.StateManager

	// Hyperparameters
	NEstimators    int     // Number of boosting rounds
	LearningRate   float64 // Shrinkage applied to every tree
	MaxDepth       int     // Maximum depth of each tree
	MinChildWeight float64 // Minimum hessian sum in a child
	RegLambda      float64 // L2 regularization on leaf weights
	Gamma          float64 // Minimum split gain
	Subsample      float64 // Row fraction sampled per round, 1 uses all rows
	RandomState    uint64  // Seed for row subsampling

	// Fitted model
	BaseScore float64
	Trees     []*tree.RegressionTree
	NFeatures int

	logger log.Logger
}

// NewGradientBoostingRegressor creates a regressor with the defaults used for
// the demand model: 100 rounds, learning rate 0.1, depth 5, seed 42.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		State:          model.NewStateManager(),
		NEstimators:    100,
		LearningRate:   0.1,
		MaxDepth:       5,
		MinChildWeight: 1,
		RegLambda:      1,
		Gamma:          0,
		Subsample:      1,
		RandomState:    42,
		logger:         log.GetLoggerWithName("ensemble.gradient_boosting"),
	}
}

// WithNEstimators sets the number of boosting rounds
func (g *GradientBoostingRegressor) WithNEstimators(n int) *GradientBoostingRegressor {
	g.NEstimators = n
	return g
}

// WithLearningRate sets the learning rate
func (g *GradientBoostingRegressor) WithLearningRate(lr float64) *GradientBoostingRegressor {
	g.LearningRate = lr
	return g
}

// WithMaxDepth sets the maximum depth
func (g *GradientBoostingRegressor) WithMaxDepth(d int) *GradientBoostingRegressor {
	g.MaxDepth = d
	return g
}

// WithSubsample sets the per-round row fraction
func (g *GradientBoostingRegressor) WithSubsample(f float64) *GradientBoostingRegressor {
	g.Subsample = f
	return g
}

// WithRandomState sets the random seed
func (g *GradientBoostingRegressor) WithRandomState(seed uint64) *GradientBoostingRegressor {
	g.RandomState = seed
	return g
}

func (g *GradientBoostingRegressor) validateParams() error {
	switch {
	case g.NEstimators < 1:
		return mlErrors.NewValueErrorf("GradientBoostingRegressor.Fit", "n_estimators must be >= 1, got %d", g.NEstimators)
	case g.LearningRate <= 0:
		return mlErrors.NewValueErrorf("GradientBoostingRegressor.Fit", "learning_rate must be > 0, got %g", g.LearningRate)
	case g.MaxDepth < 0:
		return mlErrors.NewValueErrorf("GradientBoostingRegressor.Fit", "max_depth must be >= 0, got %d", g.MaxDepth)
	case g.Subsample <= 0 || g.Subsample > 1:
		return mlErrors.NewValueErrorf("GradientBoostingRegressor.Fit", "subsample must be in (0, 1], got %g", g.Subsample)
	}
	return nil
}

// Fit trains the ensemble on X and y.
func (g *GradientBoostingRegressor) Fit(X mat.Matrix, y *mat.VecDense) (err error) {
	defer mlErrors.Recover(&err, "GradientBoostingRegressor.Fit")

	if err := g.validateParams(); err != nil {
		return err
	}

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return mlErrors.NewModelError("GradientBoostingRegressor.Fit", "empty data", mlErrors.ErrEmptyData)
	}
	if y.Len() != rows {
		return mlErrors.NewDimensionError("GradientBoostingRegressor.Fit", rows, y.Len(), 0)
	}
	if rows < 2 {
		return mlErrors.NewModelError("GradientBoostingRegressor.Fit",
			fmt.Sprintf("need at least 2 samples, got %d", rows), mlErrors.ErrEmptyData)
	}

	target := make([]float64, rows)
	for i := range target {
		target[i] = y.AtVec(i)
	}
	if err := checkTarget(target); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := X.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return mlErrors.NewValueErrorf("GradientBoostingRegressor.Fit", "non-finite feature at row %d, column %d", i, j)
			}
		}
	}

	logger := g.logger
	if logger == nil {
		logger = log.GetLoggerWithName("ensemble.gradient_boosting")
	}
	start := time.Now()
	logger.Info("Training GradientBoostingRegressor",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"n_estimators", g.NEstimators,
		"learning_rate", g.LearningRate,
		"max_depth", g.MaxDepth)

	if g.State == nil {
		g.State = model.NewStateManager()
	}
	g.State.Reset()
	g.NFeatures = cols
	g.BaseScore = stat.Mean(target, nil)
	g.Trees = make([]*tree.RegressionTree, 0, g.NEstimators)

	pred := make([]float64, rows)
	floats.AddConst(g.BaseScore, pred)
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	for i := range hess {
		hess[i] = 1
	}

	rng := rand.New(rand.NewPCG(g.RandomState, g.RandomState))
	xRow := make([]float64, cols)

	for m := 0; m < g.NEstimators; m++ {
		floats.SubTo(grad, pred, target)

		t := tree.NewRegressionTree(
			tree.WithMaxDepth(g.MaxDepth),
			tree.WithMinChildWeight(g.MinChildWeight),
			tree.WithLambda(g.RegLambda),
			tree.WithGamma(g.Gamma),
		)
		if err := t.FitGradients(X, grad, hess, g.sampleRows(rng, rows)); err != nil {
			return mlErrors.Wrapf(err, "boosting round %d", m)
		}
		g.Trees = append(g.Trees, t)

		for i := 0; i < rows; i++ {
			mat.Row(xRow, i, X)
			pred[i] += g.LearningRate * t.PredictRow(xRow)
		}

		logger.Debug("Boosting round completed", "round", m, "leaves", t.GetNLeaves())
	}

	g.State.SetFitted()
	g.State.SetDimensions(cols, rows)

	logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

// sampleRows returns the rows used for one boosting round, nil for all.
func (g *GradientBoostingRegressor) sampleRows(rng *rand.Rand, n int) []int {
	if g.Subsample >= 1 {
		return nil
	}
	k := int(math.Ceil(g.Subsample * float64(n)))
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}

// checkTarget rejects targets a regressor cannot learn from.
func checkTarget(y []float64) error {
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return mlErrors.NewModelError("GradientBoostingRegressor.Fit",
				fmt.Sprintf("non-finite target at row %d", i), mlErrors.ErrDegenerateTarget)
		}
	}
	if stat.Variance(y, nil) == 0 {
		return mlErrors.NewModelError("GradientBoostingRegressor.Fit", "target has no variance", mlErrors.ErrDegenerateTarget)
	}
	return nil
}

// Predict returns one prediction per row of X.
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if !g.State.IsFitted() {
		return nil, mlErrors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	rows, cols := X.Dims()
	if cols != g.NFeatures {
		return nil, mlErrors.NewDimensionError("GradientBoostingRegressor.Predict", g.NFeatures, cols, 1)
	}

	out := mat.NewVecDense(rows, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.SetVec(i, g.predictRow(row))
	}
	return out, nil
}

func (g *GradientBoostingRegressor) predictRow(x []float64) float64 {
	sum := 0.0
	for _, t := range g.Trees {
		sum += t.PredictRow(x)
	}
	return g.BaseScore + g.LearningRate*sum
}

// Score returns the coefficient of determination R^2 of the prediction
func (g *GradientBoostingRegressor) Score(X mat.Matrix, y *mat.VecDense) (float64, error) {
	pred, err := g.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// FeatureImportances returns the total split gain per feature normalized to
// sum to 1. A model without any split returns all zeros.
func (g *GradientBoostingRegressor) FeatureImportances() ([]float64, error) {
	if !g.State.IsFitted() {
		return nil, mlErrors.NewNotFittedError("GradientBoostingRegressor", "FeatureImportances")
	}
	imp := make([]float64, g.NFeatures)
	for _, t := range g.Trees {
		floats.Add(imp, t.FeatureGain)
	}
	if total := floats.Sum(imp); total > 0 {
		floats.Scale(1/total, imp)
	}
	return imp, nil
}

// GetParams returns the hyperparameters
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     g.NEstimators,
		"learning_rate":    g.LearningRate,
		"max_depth":        g.MaxDepth,
		"min_child_weight": g.MinChildWeight,
		"reg_lambda":       g.RegLambda,
		"gamma":            g.Gamma,
		"subsample":        g.Subsample,
		"random_state":     g.RandomState,
	}
}

// ParamsString renders the hyperparameters in a stable order.
func (g *GradientBoostingRegressor) ParamsString() string {
	return fmt.Sprintf("n_estimators=%d,learning_rate=%g,max_depth=%d,min_child_weight=%g,reg_lambda=%g,gamma=%g,subsample=%g,random_state=%d",
		g.NEstimators, g.LearningRate, g.MaxDepth, g.MinChildWeight, g.RegLambda, g.Gamma, g.Subsample, g.RandomState)
}

// IsFitted reports whether the model has been trained.
func (g *GradientBoostingRegressor) IsFitted() bool {
	return g.State.IsFitted()
}

func (g *GradientBoostingRegressor) String() string {
	if !g.IsFitted() {
		return fmt.Sprintf("GradientBoostingRegressor(%s)", g.ParamsString())
	}
	return fmt.Sprintf("GradientBoostingRegressor(%s, n_trees=%d)", g.ParamsString(), len(g.Trees))
}
