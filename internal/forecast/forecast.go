// Package forecast expands a seeded sample of catalog products across a
// future date range and predicts per-product demand for every day.
package forecast

import (
	"sort"
	"time"

	"github.com/ezoic/marketlens/internal/catalog"
	"github.com/ezoic/marketlens/internal/demand"
	"github.com/ezoic/marketlens/model_selection"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
)

// Predictor is the part of the demand model the forecast needs.
type Predictor interface {
	Predict(rows demand.FeatureRows) ([]float64, error)
}

// Options controls the sample and the horizon.
type Options struct {
	SampleSize  int
	HorizonDays int
	Seed        uint64
	Start       time.Time // Truncated to midnight in its location
}

// DefaultOptions samples 10 products over 30 days starting at start.
func DefaultOptions(start time.Time) Options {
	return Options{SampleSize: 10, HorizonDays: 30, Seed: 42, Start: start}
}

// Record is the prediction for one sampled product on one day.
type Record struct {
	Date             time.Time
	ProductIndex     int
	Features         []float64 // demand.FeatureSchema order
	PredictedReviews float64
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Sample returns the indices of the products used by Generate, in sample
// order. Sampling is without replacement and depends only on the seed.
func Sample(cat *catalog.Catalog, size int, seed uint64) ([]int, error) {
	if size <= 0 {
		return nil, mlErrors.NewValueErrorf("forecast.Sample", "sample size must be positive, got %d", size)
	}
	if size > cat.Len() {
		return nil, mlErrors.NewValueErrorf("forecast.Sample",
			"sample size %d larger than catalog of %d products", size, cat.Len())
	}
	return model_selection.ShuffleIndices(cat.Len(), seed)[:size], nil
}

// Generate returns SampleSize x HorizonDays records ordered by sampled
// product, then date. Every record carries the index of the product it was
// expanded from. All records are predicted in one batch.
func Generate(cat *catalog.Catalog, p Predictor, opts Options) ([]Record, error) {
	logger := log.GetLoggerWithName("forecast")
	start := time.Now()

	if opts.HorizonDays <= 0 {
		return nil, mlErrors.NewValueErrorf("forecast.Generate", "horizon must be positive, got %d days", opts.HorizonDays)
	}
	sample, err := Sample(cat, opts.SampleSize, opts.Seed)
	if err != nil {
		return nil, err
	}

	first := day(opts.Start)
	records := make([]Record, 0, len(sample)*opts.HorizonDays)
	rows := demand.NewFeatureRows()
	for _, idx := range sample {
		prod, err := cat.Product(idx)
		if err != nil {
			return nil, err
		}
		vec := demand.ProductVector(prod)
		for d := 0; d < opts.HorizonDays; d++ {
			features := append([]float64(nil), vec...)
			records = append(records, Record{
				Date:         first.AddDate(0, 0, d),
				ProductIndex: prod.ProductIndex,
				Features:     features,
			})
			rows.Append(features)
		}
	}

	pred, err := p.Predict(rows)
	if err != nil {
		return nil, mlErrors.Wrap(err, "forecast prediction failed")
	}
	if len(pred) != len(records) {
		return nil, mlErrors.NewDimensionError("forecast.Generate", len(records), len(pred), 0)
	}
	for i := range records {
		records[i].PredictedReviews = pred[i]
	}

	logger.Info("Forecast generated",
		log.OperationKey, log.OperationForecast,
		log.PhaseKey, log.PhaseInference,
		log.SamplesKey, len(sample),
		log.PredsKey, len(records),
		log.DurationMsKey, time.Since(start).Milliseconds())
	return records, nil
}

// DailyTotal is the summed predicted demand of all records on one date.
type DailyTotal struct {
	Date             time.Time
	PredictedReviews float64
}

// DailyTotals sums predictions per date, in date order.
func DailyTotals(records []Record) []DailyTotal {
	sums := make(map[time.Time]float64)
	for _, r := range records {
		sums[r.Date] += r.PredictedReviews
	}
	out := make([]DailyTotal, 0, len(sums))
	for d, v := range sums {
		out = append(out, DailyTotal{Date: d, PredictedReviews: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
