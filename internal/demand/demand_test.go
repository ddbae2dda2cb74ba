package demand

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/marketlens/core/model"
	"github.com/ezoic/marketlens/internal/catalog"
	"github.com/ezoic/marketlens/internal/query"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// synthCatalog builds n products whose review counts fall with price and
// rise for cotton and round neck.
func synthCatalog(t *testing.T, n int) *catalog.Catalog {
	t.Helper()
	products := make([]catalog.Product, n)
	details := make([]catalog.Detail, n)
	for i := range products {
		p := catalog.Product{
			Price:            float64(150 + 37*i%900),
			Rating:           3.5 + float64(i%15)/10,
			ReviewGrowthRate: float64(i%5) / 20,
		}
		if i%2 == 0 {
			p.Cotton = 1
		} else {
			p.Polyester = 1
		}
		if i%3 == 0 {
			p.PoloNeck = 1
		} else {
			p.RoundNeck = 1
		}
		if i%4 < 2 {
			p.ShortSleeve = 1
		} else {
			p.LongSleeve = 1
		}
		p.Reviews = int(60000/p.Price + 50*p.Cotton + 30*p.RoundNeck + 200*p.ReviewGrowthRate)
		products[i] = p
		details[i] = catalog.Detail{Title: "product"}
	}
	cat, err := catalog.New(products, details)
	require.NoError(t, err)
	return cat
}

func fastOptions(dir string) Options {
	opts := DefaultOptions()
	opts.ArtifactPath = filepath.Join(dir, "demand.gob")
	opts.NEstimators = 30
	return opts
}

func TestSchemaMatchesQueryFeatures(t *testing.T) {
	assert.Equal(t, query.FeatureNames, FeatureSchema().Columns)
}

func TestTrainOrLoadTrainsThenLoads(t *testing.T) {
	cat := synthCatalog(t, 50)
	opts := fastOptions(t.TempDir())

	m1, h1, err := TrainOrLoad(cat, opts)
	require.NoError(t, err)
	assert.Equal(t, SourceTrained, m1.Source)
	assert.Equal(t, 10, h1.Len())
	assert.FileExists(t, opts.ArtifactPath)

	m2, h2, err := TrainOrLoad(cat, opts)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, m2.Source)
	assert.Equal(t, h1.Indices, h2.Indices)

	want, err := m1.Predict(h1.Rows)
	require.NoError(t, err)
	got, err := m2.Predict(h2.Rows)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTrainOrLoadRetrainsWhenCatalogChanges(t *testing.T) {
	dir := t.TempDir()
	opts := fastOptions(dir)

	_, _, err := TrainOrLoad(synthCatalog(t, 40), opts)
	require.NoError(t, err)

	m, h, err := TrainOrLoad(synthCatalog(t, 41), opts)
	require.NoError(t, err)
	assert.Equal(t, SourceTrained, m.Source)
	assert.Equal(t, 9, h.Len())

	// parameters are part of the key too
	opts.MaxDepth = 3
	m, _, err = TrainOrLoad(synthCatalog(t, 41), opts)
	require.NoError(t, err)
	assert.Equal(t, SourceTrained, m.Source)

	status, err := model.NewArtifactCache(opts.ArtifactPath).Load(ArtifactKey(synthCatalog(t, 41), opts), &artifact{})
	require.NoError(t, err)
	assert.Equal(t, model.ArtifactLoaded, status)
}

func TestTrainOrLoadGarbageArtifact(t *testing.T) {
	opts := fastOptions(t.TempDir())
	require.NoError(t, os.WriteFile(opts.ArtifactPath, []byte("junk"), 0o600))

	m, _, err := TrainOrLoad(synthCatalog(t, 20), opts)
	require.NoError(t, err)
	assert.Equal(t, SourceTrained, m.Source)
}

func TestTrainOrLoadWithoutCache(t *testing.T) {
	opts := fastOptions(t.TempDir())
	opts.ArtifactPath = ""

	m, _, err := TrainOrLoad(synthCatalog(t, 20), opts)
	require.NoError(t, err)
	assert.Equal(t, SourceTrained, m.Source)
}

func TestHoldoutSizeIsDeterministic(t *testing.T) {
	for _, n := range []int{3, 10, 11, 57} {
		cat := synthCatalog(t, n)
		opts := fastOptions(t.TempDir())
		opts.ArtifactPath = ""

		_, a, err := TrainOrLoad(cat, opts)
		require.NoError(t, err)
		_, b, err := TrainOrLoad(cat, opts)
		require.NoError(t, err)

		assert.Equal(t, int(math.Ceil(0.2*float64(n))), a.Len(), "n=%d", n)
		assert.Equal(t, a.Indices, b.Indices)
		for i, idx := range a.Indices {
			p, err := cat.Product(idx)
			require.NoError(t, err)
			assert.Equal(t, float64(p.Reviews), a.Targets[i])
			assert.Equal(t, ProductVector(p), a.Rows.Values[i])
		}
	}
}

func TestTrainOrLoadFailures(t *testing.T) {
	opts := fastOptions(t.TempDir())

	empty, err := catalog.New(nil, nil)
	require.NoError(t, err)
	_, _, err = TrainOrLoad(empty, opts)
	assert.True(t, errors.Is(err, mlErrors.ErrEmptyData))

	_, _, err = TrainOrLoad(synthCatalog(t, 1), opts)
	assert.True(t, errors.Is(err, mlErrors.ErrEmptyData))

	flat := synthCatalog(t, 10).Products()
	for i := range flat {
		flat[i].Reviews = 42
	}
	cat, err := catalog.New(flat, make([]catalog.Detail, len(flat)))
	require.NoError(t, err)
	_, _, err = TrainOrLoad(cat, opts)
	assert.True(t, errors.Is(err, mlErrors.ErrDegenerateTarget))
	assert.NoFileExists(t, opts.ArtifactPath)
}

func TestPredictIsPureAndChecksSchema(t *testing.T) {
	opts := fastOptions(t.TempDir())
	opts.ArtifactPath = ""
	m, h, err := TrainOrLoad(synthCatalog(t, 30), opts)
	require.NoError(t, err)

	a, err := m.Predict(h.Rows)
	require.NoError(t, err)
	b, err := m.Predict(h.Rows)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	one, err := m.PredictOne(h.Rows.Values[0])
	require.NoError(t, err)
	assert.Equal(t, a[0], one)

	swapped := FeatureRows{
		Columns: append([]string(nil), h.Rows.Columns...),
		Values:  h.Rows.Values,
	}
	swapped.Columns[0], swapped.Columns[1] = swapped.Columns[1], swapped.Columns[0]
	_, err = m.Predict(swapped)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mlErrors.ErrSchemaMismatch))
	var se *mlErrors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, FeatureSchema().Columns, se.Expected)

	_, err = m.Predict(FeatureRows{Columns: FeatureSchema().Columns[:7], Values: [][]float64{make([]float64, 7)}})
	assert.True(t, errors.Is(err, mlErrors.ErrSchemaMismatch))

	_, err = m.PredictOne([]float64{1, 2})
	assert.True(t, errors.Is(err, mlErrors.ErrDimensionMismatch))

	_, err = m.PredictOne([]float64{math.NaN(), 0, 1, 0, 1, 0, 1, 0})
	assert.True(t, errors.Is(err, mlErrors.ErrInvalidInput))

	out, err := m.Predict(NewFeatureRows())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEvaluateAndImportances(t *testing.T) {
	opts := fastOptions(t.TempDir())
	opts.NEstimators = 100
	m, h, err := TrainOrLoad(synthCatalog(t, 80), opts)
	require.NoError(t, err)

	ev, err := m.Evaluate(h)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ev.MSE, 0.0)
	assert.False(t, math.IsNaN(ev.R2))

	_, err = m.Evaluate(&Holdout{})
	assert.True(t, errors.Is(err, mlErrors.ErrEmptyData))

	imp, err := m.FeatureImportances()
	require.NoError(t, err)
	require.Len(t, imp, 8)
	total := 0.0
	for i, v := range imp {
		total += v.Value
		if i > 0 {
			assert.GreaterOrEqual(t, imp[i-1].Value, v.Value)
		}
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Equal(t, catalog.ColPrice, imp[0].Feature)
}

func TestBaselineUsesSameHoldout(t *testing.T) {
	cat := synthCatalog(t, 60)
	opts := fastOptions(t.TempDir())
	opts.ArtifactPath = ""

	base, err := Baseline(cat, opts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, base.MSE, 0.0)
	assert.False(t, math.IsNaN(base.R2))

	again, err := Baseline(cat, opts)
	require.NoError(t, err)
	assert.Equal(t, base, again)

	empty, err := catalog.New(nil, nil)
	require.NoError(t, err)
	_, err = Baseline(empty, opts)
	assert.True(t, errors.Is(err, mlErrors.ErrEmptyData))
}
