package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/marketlens/internal/catalog"
	"github.com/ezoic/marketlens/internal/demand"
	"github.com/ezoic/marketlens/internal/forecast"
	"github.com/ezoic/marketlens/internal/insights"
	"github.com/ezoic/marketlens/internal/query"
	"github.com/ezoic/marketlens/internal/similarity"
)

type pricePredictor struct{}

func (pricePredictor) Predict(rows demand.FeatureRows) ([]float64, error) {
	out := make([]float64, rows.Len())
	for i, r := range rows.Values {
		out[i] = r[0] / 2
	}
	return out, nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	products := make([]catalog.Product, 8)
	details := make([]catalog.Detail, 8)
	for i := range products {
		p := catalog.Product{
			Price: float64(150 * (i + 1)), Rating: 3.5 + float64(i%3)/2, Reviews: 40 * (8 - i),
			ReviewGrowthRate: float64(i%4) / 10,
		}
		if i%2 == 0 {
			p.Cotton, p.RoundNeck, p.ShortSleeve = 1, 1, 1
		} else {
			p.Polyester, p.PoloNeck, p.LongSleeve = 1, 1, 1
		}
		products[i] = p
		details[i] = catalog.Detail{Title: "Tee | style " + string(rune('A'+i))}
	}
	cat, err := catalog.New(products, details)
	require.NoError(t, err)
	return cat
}

func fullReport(t *testing.T, cat *catalog.Catalog) *Report {
	t.Helper()
	q := query.Product{Price: 600, Material: "Cotton", NeckType: "Round Neck", SleeveType: "Short Sleeve"}
	r := &Report{GeneratedAt: time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC), Query: q}

	var err error
	r.Summary, err = insights.Summarize(cat)
	require.NoError(t, err)
	r.Segments, err = insights.PriceSegments(cat)
	require.NoError(t, err)
	r.MarketNarrative = "Cotton dominates the budget end."

	engine, err := similarity.NewEngine(cat)
	require.NoError(t, err)
	r.Matches, err = engine.TopK(q, 3)
	require.NoError(t, err)

	r.Evaluation = &demand.Evaluation{MSE: 12.5, R2: 0.81}
	r.Baseline = &demand.Evaluation{MSE: 40, R2: 0.35}
	r.Importances = []demand.Importance{{Feature: catalog.ColPrice, Value: 0.7}, {Feature: catalog.ColCotton, Value: 0.3}}
	r.Strategy, err = insights.Strategy(cat, q, pricePredictor{})
	require.NoError(t, err)

	records, err := forecast.Generate(cat, pricePredictor{}, forecast.Options{
		SampleSize: 4, HorizonDays: 5, Seed: 42, Start: r.GeneratedAt,
	})
	require.NoError(t, err)
	trends := forecast.Trends(records)
	r.Trends = &trends
	r.TopTrending, err = forecast.TopTrending(cat, records, 3)
	require.NoError(t, err)
	r.DailyTotals = forecast.DailyTotals(records)
	return r
}

func TestRenderSections(t *testing.T) {
	cat := testCatalog(t)
	r := fullReport(t, cat)
	out := r.Render()

	for _, want := range []string{
		"# Market Analysis Report",
		"Generated 2024-06-01 09:30",
		"**Your product:** ₹600, Cotton, Round Neck, Short Sleeve, review growth 0.00",
		"## Market Overview",
		"| Total products | 8 |",
		"### Price Segments",
		"Cotton dominates the budget end.",
		"## Competitive Analysis",
		`Tee \| style`,
		"## Product Strategy",
		"Demand model holdout: MSE 12.50, R² 0.81",
		"Linear baseline holdout: MSE 40.00, R² 0.35",
		"- Predicted demand: **300 reviews**",
		"### Feature Prioritization",
		"## Demand Forecast",
		"### Top Trending Products",
	} {
		assert.Contains(t, out, want)
	}
	// charts are only linked once drawn
	assert.NotContains(t, out, PriceChartFile)
}

func TestRenderFailedAndMissingSections(t *testing.T) {
	r := &Report{Query: query.Product{Price: 100, Material: "Cotton", NeckType: "Polo Neck", SleeveType: "Long Sleeve"}}
	r.Fail(SectionStrategy, errors.New("target has zero variance"))
	out := r.Render()

	assert.Contains(t, out, "## Product Strategy")
	assert.Contains(t, out, "_Product Strategy unavailable: target has zero variance_")
	assert.NotContains(t, out, "## Market Overview")
	assert.NotContains(t, out, "## Demand Forecast")
}

func TestWriteWithCharts(t *testing.T) {
	cat := testCatalog(t)
	r := fullReport(t, cat)
	dir := filepath.Join(t.TempDir(), "out")

	files, err := Write(dir, r, cat, true)
	require.NoError(t, err)
	require.Len(t, files, 5)
	for _, name := range []string{PriceChartFile, FeatureChartFile, ImportanceChartFile, ForecastChartFile, FileName} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	md, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(md), "![Price distribution]("+PriceChartFile+")")
	assert.Contains(t, string(md), "![Predicted demand]("+ForecastChartFile+")")
}

func TestWriteWithoutCharts(t *testing.T) {
	cat := testCatalog(t)
	r := fullReport(t, cat)
	dir := t.TempDir()

	files, err := Write(dir, r, cat, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, FileName)}, files)
	assert.NoFileExists(t, filepath.Join(dir, PriceChartFile))
}

func TestPriceChartSkipsSinglePrice(t *testing.T) {
	products := []catalog.Product{
		{Price: 300, Cotton: 1, RoundNeck: 1, ShortSleeve: 1},
		{Price: 300, Polyester: 1, PoloNeck: 1, LongSleeve: 1},
	}
	cat, err := catalog.New(products, make([]catalog.Detail, 2))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), PriceChartFile)
	drawn, err := PriceChart(cat, insights.SegmentMarkers{Budget: 300, Premium: 300}, path)
	require.NoError(t, err)
	assert.False(t, drawn)
	assert.NoFileExists(t, path)
}
