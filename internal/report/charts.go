package report

import (
	"image/color"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ezoic/marketlens/internal/catalog"
	"github.com/ezoic/marketlens/internal/demand"
	"github.com/ezoic/marketlens/internal/forecast"
	"github.com/ezoic/marketlens/internal/insights"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// Chart file names inside the report directory.
const (
	PriceChartFile      = "price_distribution.png"
	FeatureChartFile    = "feature_popularity.png"
	ImportanceChartFile = "feature_importance.png"
	ForecastChartFile   = "demand_forecast.png"
)

const priceBins = 20

var (
	budgetColor  = color.RGBA{R: 46, G: 139, B: 87, A: 255}
	premiumColor = color.RGBA{R: 178, G: 34, B: 34, A: 255}
)

func save(p *plot.Plot, path string) error {
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return mlErrors.Wrapf(err, "save chart %s", filepath.Base(path))
	}
	return nil
}

func markerLine(x, top float64, c color.Color) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: top}})
	if err != nil {
		return nil, err
	}
	line.Color = c
	line.Width = vg.Points(1.5)
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	return line, nil
}

// PriceChart draws the catalog price histogram with the budget and premium
// markers. It returns false when every price is equal and there is nothing
// to bin.
func PriceChart(cat *catalog.Catalog, markers insights.SegmentMarkers, path string) (bool, error) {
	prices, err := cat.Column(catalog.ColPrice)
	if err != nil {
		return false, err
	}
	if len(prices) < 2 || floats.Min(prices) == floats.Max(prices) {
		return false, nil
	}

	p := plot.New()
	p.Title.Text = "Price Distribution"
	p.X.Label.Text = "Price (INR)"
	p.Y.Label.Text = "Products"

	hist, err := plotter.NewHist(plotter.Values(prices), priceBins)
	if err != nil {
		return false, mlErrors.Wrap(err, "price histogram")
	}
	p.Add(hist)

	top := 0.0
	for _, b := range hist.Bins {
		top = max(top, b.Weight)
	}
	budget, err := markerLine(markers.Budget, top, budgetColor)
	if err != nil {
		return false, err
	}
	premium, err := markerLine(markers.Premium, top, premiumColor)
	if err != nil {
		return false, err
	}
	p.Add(budget, premium)
	p.Legend.Add("Budget segment", budget)
	p.Legend.Add("Premium segment", premium)
	p.Legend.Top = true

	return true, save(p, path)
}

// FeatureChart draws the number of products per indicator.
func FeatureChart(features []insights.FeatureStat, path string) error {
	values := make(plotter.Values, len(features))
	names := make([]string, len(features))
	for i, f := range features {
		values[i] = float64(f.Count)
		names[i] = f.Feature
	}

	p := plot.New()
	p.Title.Text = "Feature Popularity"
	p.Y.Label.Text = "Products"
	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return mlErrors.Wrap(err, "feature chart")
	}
	p.Add(bars)
	p.NominalX(names...)
	return save(p, path)
}

// ImportanceChart draws the demand model's feature importances.
func ImportanceChart(imps []demand.Importance, path string) error {
	values := make(plotter.Values, len(imps))
	names := make([]string, len(imps))
	for i, imp := range imps {
		values[i] = imp.Value
		names[i] = imp.Feature
	}

	p := plot.New()
	p.Title.Text = "Feature Importance for Demand Prediction"
	p.Y.Label.Text = "Share of total gain"
	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return mlErrors.Wrap(err, "importance chart")
	}
	p.Add(bars)
	p.NominalX(names...)
	return save(p, path)
}

// ForecastChart draws the summed predicted demand per day.
func ForecastChart(totals []forecast.DailyTotal, path string) error {
	pts := make(plotter.XYs, len(totals))
	for i, d := range totals {
		pts[i].X = float64(d.Date.Unix())
		pts[i].Y = d.PredictedReviews
	}

	p := plot.New()
	p.Title.Text = "Predicted Demand"
	p.Y.Label.Text = "Predicted reviews"
	p.X.Tick.Marker = plot.TimeTicks{Format: "Jan 02"}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return mlErrors.Wrap(err, "forecast chart")
	}
	p.Add(line, points)
	return save(p, path)
}
