// Package demand trains, caches and serves the regression model that uses
// review counts as a proxy for demand.
//
// The model is stored as a single artifact guarded by a cache key made of the
// feature schema version, a checksum of the catalog and the training
// parameters. A changed catalog therefore retrains instead of reusing a model
// built from other data. The holdout split is always recomputed from the
// current catalog.
package demand

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/marketlens/core/model"
	"github.com/ezoic/marketlens/internal/catalog"
	"github.com/ezoic/marketlens/linear"
	"github.com/ezoic/marketlens/metrics"
	"github.com/ezoic/marketlens/model_selection"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
	"github.com/ezoic/marketlens/sklearn/ensemble"
)

// Options controls the split, the regressor and where the artifact lives.
type Options struct {
	ArtifactPath string  // Empty disables caching
	TestSize     float64 // Holdout fraction
	SplitSeed    uint64

	NEstimators  int
	LearningRate float64
	MaxDepth     int
	RandomState  uint64
}

// DefaultOptions mirrors the reference configuration: 80/20 split with seed
// 42 and 100 trees of depth 5 at learning rate 0.1.
func DefaultOptions() Options {
	return Options{
		ArtifactPath: "artifacts/demand_model.gob",
		TestSize:     0.2,
		SplitSeed:    42,
		NEstimators:  100,
		LearningRate: 0.1,
		MaxDepth:     5,
		RandomState:  42,
	}
}

func (o Options) regressor() *ensemble.GradientBoostingRegressor {
	return ensemble.NewGradientBoostingRegressor().
		WithNEstimators(o.NEstimators).
		WithLearningRate(o.LearningRate).
		WithMaxDepth(o.MaxDepth).
		WithRandomState(o.RandomState)
}

// paramsHash covers every option that changes the trained model.
func (o Options) paramsHash() string {
	s := fmt.Sprintf("%s;test_size=%g;split_seed=%d", o.regressor().ParamsString(), o.TestSize, o.SplitSeed)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// Source tells where a Model came from.
type Source string

const (
	SourceTrained Source = "trained"
	SourceCache   Source = "cache"
)

// Model is a fitted demand regressor together with the schema it expects.
type Model struct {
	Schema    Schema
	Regressor *ensemble.GradientBoostingRegressor
	Source    Source
}

// artifact is what goes to disk.
type artifact struct {
	Schema    Schema
	Regressor *ensemble.GradientBoostingRegressor
}

// Holdout is the evaluation partition of the current catalog.
type Holdout struct {
	Rows    FeatureRows
	Targets []float64
	Indices []int
}

// Len returns the number of holdout rows.
func (h *Holdout) Len() int { return len(h.Targets) }

// Evaluation holds holdout metrics.
type Evaluation struct {
	MSE float64
	R2  float64
}

// ArtifactKey returns the cache key for training on cat with opts.
func ArtifactKey(cat *catalog.Catalog, opts Options) model.ArtifactKey {
	s := FeatureSchema()
	return model.ArtifactKey{
		SchemaVersion: s.Version + ":" + strings.Join(s.Columns, ","),
		DataChecksum:  cat.Checksum(),
		ParamsHash:    opts.paramsHash(),
	}
}

// TrainOrLoad returns the demand model for cat and the holdout split. A
// cached artifact is reused only when its key matches; otherwise the model is
// trained on the training split and written back.
func TrainOrLoad(cat *catalog.Catalog, opts Options) (*Model, *Holdout, error) {
	logger := log.GetLoggerWithName("demand")

	if cat == nil || cat.Len() == 0 {
		return nil, nil, mlErrors.NewModelError("demand.TrainOrLoad", "catalog is empty", mlErrors.ErrEmptyData)
	}
	if cat.Len() < 2 {
		return nil, nil, mlErrors.NewModelError("demand.TrainOrLoad",
			fmt.Sprintf("need at least 2 products, got %d", cat.Len()), mlErrors.ErrEmptyData)
	}

	X, y := catalogMatrix(cat)
	split, err := model_selection.TrainTestSplit(X, y, opts.TestSize, opts.SplitSeed)
	if err != nil {
		return nil, nil, mlErrors.NewModelError("demand.TrainOrLoad", "cannot split catalog", err)
	}
	holdout := newHoldout(split)

	schema := FeatureSchema()
	key := ArtifactKey(cat, opts)

	var cache *model.ArtifactCache
	if opts.ArtifactPath != "" {
		cache = model.NewArtifactCache(opts.ArtifactPath)
		var stored artifact
		status, err := cache.Load(key, &stored)
		if err != nil {
			logger.Warn("Ignoring unreadable model artifact", log.PathKey, opts.ArtifactPath, log.ErrorKey, err)
		}
		if status == model.ArtifactLoaded && stored.Regressor != nil && stored.Regressor.IsFitted() &&
			stored.Schema.Equal(schema) && stored.Regressor.NFeatures == len(schema.Columns) {
			logger.Info("Loaded cached demand model",
				log.OperationKey, log.OperationLoad,
				log.PathKey, opts.ArtifactPath)
			return &Model{Schema: schema, Regressor: stored.Regressor, Source: SourceCache}, holdout, nil
		}
		logger.Info("Training demand model",
			log.PhaseKey, log.PhaseTraining,
			"cache_status", status.String(),
			log.PathKey, opts.ArtifactPath)
	}

	start := time.Now()
	reg := opts.regressor()
	if err := reg.Fit(split.XTrain, split.YTrain); err != nil {
		return nil, nil, mlErrors.Wrap(err, "demand model training failed")
	}
	logger.Info("Demand model trained",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, split.XTrain.RawMatrix().Rows,
		log.FeaturesKey, len(schema.Columns),
		log.DurationMsKey, time.Since(start).Milliseconds())

	if cache != nil {
		if err := cache.Store(key, artifact{Schema: schema, Regressor: reg}); err != nil {
			return nil, nil, mlErrors.Wrap(err, "failed to store demand model")
		}
		logger.Info("Stored demand model", log.OperationKey, log.OperationSave, log.PathKey, opts.ArtifactPath)
	}
	return &Model{Schema: schema, Regressor: reg, Source: SourceTrained}, holdout, nil
}

func newHoldout(split *model_selection.Split) *Holdout {
	h := &Holdout{
		Rows:    NewFeatureRows(),
		Targets: append([]float64(nil), split.YTest.RawVector().Data...),
		Indices: append([]int(nil), split.TestIdx...),
	}
	rows, _ := split.XTest.Dims()
	for i := 0; i < rows; i++ {
		h.Rows.Append(mat.Row(nil, i, split.XTest))
	}
	return h
}

// Predict returns one demand estimate per row. The rows must carry exactly
// the model's columns in the model's order.
func (m *Model) Predict(rows FeatureRows) ([]float64, error) {
	X, err := m.Schema.matrix("demand.Predict", rows)
	if err != nil {
		return nil, err
	}
	if X == nil {
		return []float64{}, nil
	}
	pred, err := m.Regressor.Predict(X)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), pred.RawVector().Data...), nil
}

// PredictOne predicts a single vector already in schema order.
func (m *Model) PredictOne(x []float64) (float64, error) {
	out, err := m.Predict(FeatureRows{Columns: m.Schema.Columns, Values: [][]float64{x}})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Evaluate scores the model on h. When the holdout target is constant R2 is
// reported as 1 for a perfect fit and 0 otherwise.
func (m *Model) Evaluate(h *Holdout) (Evaluation, error) {
	if h == nil || h.Len() == 0 {
		return Evaluation{}, mlErrors.NewModelError("demand.Evaluate", "empty holdout", mlErrors.ErrEmptyData)
	}
	pred, err := m.Predict(h.Rows)
	if err != nil {
		return Evaluation{}, err
	}
	return score(h.Targets, pred)
}

func score(targets, pred []float64) (Evaluation, error) {
	yTrue := mat.NewVecDense(len(targets), append([]float64(nil), targets...))
	yPred := mat.NewVecDense(len(pred), append([]float64(nil), pred...))

	mse, err := metrics.MSE(yTrue, yPred)
	if err != nil {
		return Evaluation{}, err
	}
	r2, err := metrics.R2Score(yTrue, yPred)
	if mlErrors.Is(err, mlErrors.ErrDegenerateTarget) {
		r2 = 0
		if mse == 0 {
			r2 = 1
		}
	} else if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{MSE: mse, R2: r2}, nil
}

// BaselineAlpha is the ridge penalty of the linear baseline. It only has to
// keep the complementary indicator columns solvable.
const BaselineAlpha = 1e-3

// Baseline fits a linear model on the same training split TrainOrLoad uses
// and scores it on the same holdout, as a reference for the boosted trees.
func Baseline(cat *catalog.Catalog, opts Options) (Evaluation, error) {
	if cat == nil || cat.Len() == 0 {
		return Evaluation{}, mlErrors.NewModelError("demand.Baseline", "catalog is empty", mlErrors.ErrEmptyData)
	}
	X, y := catalogMatrix(cat)
	split, err := model_selection.TrainTestSplit(X, y, opts.TestSize, opts.SplitSeed)
	if err != nil {
		return Evaluation{}, mlErrors.NewModelError("demand.Baseline", "cannot split catalog", err)
	}
	lr := linear.NewLinearRegression().WithAlpha(BaselineAlpha)
	if err := lr.Fit(split.XTrain, split.YTrain); err != nil {
		return Evaluation{}, mlErrors.Wrap(err, "baseline training failed")
	}
	pred, err := lr.Predict(split.XTest)
	if err != nil {
		return Evaluation{}, err
	}
	return score(split.YTest.RawVector().Data, pred.RawVector().Data)
}

// Importance is the share of total split gain credited to one feature.
type Importance struct {
	Feature string
	Value   float64
}

// FeatureImportances returns importances sorted from most to least
// important; ties keep schema order.
func (m *Model) FeatureImportances() ([]Importance, error) {
	imp, err := m.Regressor.FeatureImportances()
	if err != nil {
		return nil, err
	}
	out := make([]Importance, len(imp))
	for i, v := range imp {
		out[i] = Importance{Feature: m.Schema.Columns[i], Value: v}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out, nil
}
