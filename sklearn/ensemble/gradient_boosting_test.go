package ensemble_test

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/marketlens/core/model"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/sklearn/ensemble"
)

// demandLike builds rows of (price, cotton) where reviews fall with price and
// cotton adds a fixed bonus.
func demandLike(n int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		price := float64(10 + 5*i)
		cotton := float64(i % 2)
		X.Set(i, 0, price)
		X.Set(i, 1, cotton)
		y.SetVec(i, 1000/price+40*cotton)
	}
	return X, y
}

func TestGradientBoostingFitsTrainingData(t *testing.T) {
	X, y := demandLike(60)
	gb := ensemble.NewGradientBoostingRegressor()
	require.NoError(t, gb.Fit(X, y))

	assert.Len(t, gb.Trees, 100)
	score, err := gb.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.95)

	for _, tr := range gb.Trees {
		assert.LessOrEqual(t, tr.GetDepth(), 5)
	}
}

func TestGradientBoostingPredictIsPure(t *testing.T) {
	X, y := demandLike(30)
	gb := ensemble.NewGradientBoostingRegressor().WithNEstimators(20)
	require.NoError(t, gb.Fit(X, y))

	first, err := gb.Predict(X)
	require.NoError(t, err)
	second, err := gb.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, first.RawVector().Data, second.RawVector().Data)
}

func TestGradientBoostingDeterministicWithSubsample(t *testing.T) {
	X, y := demandLike(40)

	fit := func() *mat.VecDense {
		gb := ensemble.NewGradientBoostingRegressor().WithNEstimators(15).WithSubsample(0.5).WithRandomState(7)
		require.NoError(t, gb.Fit(X, y))
		pred, err := gb.Predict(X)
		require.NoError(t, err)
		return pred
	}
	assert.Equal(t, fit().RawVector().Data, fit().RawVector().Data)
}

func TestGradientBoostingFirstRoundShrinksTowardTarget(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewVecDense(4, []float64{0, 0, 10, 10})

	gb := ensemble.NewGradientBoostingRegressor().WithNEstimators(1).WithMaxDepth(1)
	require.NoError(t, gb.Fit(X, y))
	assert.InDelta(t, 5.0, gb.BaseScore, 1e-12)

	// leaf = -G/(H+1) = 10/3 on each side, shrunk by 0.1
	pred, err := gb.Predict(mat.NewDense(2, 1, []float64{1, 4}))
	require.NoError(t, err)
	assert.InDelta(t, 5-1.0/3, pred.AtVec(0), 1e-12)
	assert.InDelta(t, 5+1.0/3, pred.AtVec(1), 1e-12)
}

func TestGradientBoostingFeatureImportances(t *testing.T) {
	X, y := demandLike(40)
	gb := ensemble.NewGradientBoostingRegressor().WithNEstimators(30)

	_, err := gb.FeatureImportances()
	assert.True(t, errors.Is(err, mlErrors.ErrNotFitted))

	require.NoError(t, gb.Fit(X, y))
	imp, err := gb.FeatureImportances()
	require.NoError(t, err)
	require.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
	assert.Greater(t, imp[0], 0.0)
	assert.Greater(t, imp[1], 0.0)
}

func TestGradientBoostingRejectsDegenerateInput(t *testing.T) {
	gb := ensemble.NewGradientBoostingRegressor()

	err := gb.Fit(&mat.Dense{}, &mat.VecDense{})
	assert.True(t, errors.Is(err, mlErrors.ErrEmptyData))

	err = gb.Fit(mat.NewDense(1, 1, []float64{1}), mat.NewVecDense(1, []float64{3}))
	assert.True(t, errors.Is(err, mlErrors.ErrEmptyData))

	err = gb.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewVecDense(3, []float64{7, 7, 7}))
	assert.True(t, errors.Is(err, mlErrors.ErrDegenerateTarget))

	err = gb.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewVecDense(2, []float64{1, math.NaN()}))
	assert.True(t, errors.Is(err, mlErrors.ErrDegenerateTarget))

	err = gb.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewVecDense(3, []float64{1, 2, 3}))
	assert.True(t, errors.Is(err, mlErrors.ErrDimensionMismatch))

	err = ensemble.NewGradientBoostingRegressor().WithNEstimators(0).Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewVecDense(2, []float64{1, 2}))
	assert.True(t, errors.Is(err, mlErrors.ErrInvalidInput))

	_, err = gb.Predict(mat.NewDense(1, 1, nil))
	assert.True(t, errors.Is(err, mlErrors.ErrNotFitted))
}

func TestGradientBoostingPersistenceRoundTrip(t *testing.T) {
	X, y := demandLike(30)
	gb := ensemble.NewGradientBoostingRegressor().WithNEstimators(25)
	require.NoError(t, gb.Fit(X, y))

	path := filepath.Join(t.TempDir(), "gb.gob")
	require.NoError(t, model.SaveModel(gb, path))

	loaded := &ensemble.GradientBoostingRegressor{}
	require.NoError(t, model.LoadModel(loaded, path))

	want, err := gb.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want.RawVector().Data, got.RawVector().Data)

	_, err = loaded.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.Is(err, mlErrors.ErrDimensionMismatch))
}

func TestGradientBoostingParamsString(t *testing.T) {
	gb := ensemble.NewGradientBoostingRegressor()
	assert.Equal(t,
		"n_estimators=100,learning_rate=0.1,max_depth=5,min_child_weight=1,reg_lambda=1,gamma=0,subsample=1,random_state=42",
		gb.ParamsString())
	assert.Equal(t, 100, gb.GetParams()["n_estimators"])
}
