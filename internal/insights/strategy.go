package insights

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ezoic/marketlens/internal/catalog"
	"github.com/ezoic/marketlens/internal/demand"
	"github.com/ezoic/marketlens/internal/query"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// Predictor is the part of the demand model the strategy needs.
type Predictor interface {
	Predict(rows demand.FeatureRows) ([]float64, error)
}

// TopFeatureCount is the number of best-rated segment features a product is
// scored against.
const TopFeatureCount = 3

// Demand score weights.
const (
	AlignmentWeight = 0.4
	PriceWeight     = 0.3
	GrowthWeight    = 0.3
)

// OptimalRatingQuantile selects the best-rated segment products whose prices
// form the recommended price band.
const OptimalRatingQuantile = 0.75

// PriceBand summarizes the prices of the best-rated products in a segment.
type PriceBand struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// DemandFactors are the unweighted inputs of the demand score.
type DemandFactors struct {
	FeatureAlignment  float64 `json:"feature_alignment"`
	PriceOptimization float64 `json:"price_optimization"`
	MarketGrowth      float64 `json:"market_growth"`
}

// StrategyReport positions a user product against its price segment.
type StrategyReport struct {
	PredictedDemand float64
	Segment         string
	// SegmentFeatures is sorted by mean rating, best first; features no
	// segment product carries come last.
	SegmentFeatures []FeatureStat
	TopFeatures     []string
	Competitiveness float64 // percent of TopFeatures the product has
	OptimalPrice    *PriceBand
	Factors         DemandFactors
	DemandScore     float64
	// Priorities is every feature sorted by mean review count over the
	// whole catalog.
	Priorities []FeatureStat
	// BelowMarket is set when PredictedDemand is under the catalog's mean
	// review count.
	BelowMarket bool
}

// Strategy predicts demand for q and compares it to the products in the same
// price segment. An unset growth rate defaults to
// query.StrategyReviewGrowthRate.
func Strategy(cat *catalog.Catalog, q query.Product, p Predictor) (*StrategyReport, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, mlErrors.NewModelError("insights.Strategy", "catalog is empty", mlErrors.ErrEmptyData)
	}
	x, err := q.Features(query.StrategyReviewGrowthRate)
	if err != nil {
		return nil, err
	}
	rows := demand.NewFeatureRows()
	rows.Append(x)
	pred, err := p.Predict(rows)
	if err != nil {
		return nil, mlErrors.Wrap(err, "strategy prediction failed")
	}
	if len(pred) != 1 {
		return nil, mlErrors.NewDimensionError("insights.Strategy", 1, len(pred), 0)
	}

	segs, err := PriceSegments(cat)
	if err != nil {
		return nil, err
	}
	idx := segs.Index(q.Price)
	products := cat.Products()
	segment := segmentProducts(products, idx)

	r := &StrategyReport{
		PredictedDemand: pred[0],
		Segment:         SegmentLabels[idx],
		SegmentFeatures: FeaturePerformance(segment),
	}
	sortByDesc(r.SegmentFeatures, func(f FeatureStat) *float64 { return f.AvgRating })

	matched := 0
	for _, f := range r.SegmentFeatures {
		if len(r.TopFeatures) == TopFeatureCount || f.AvgRating == nil {
			break
		}
		r.TopFeatures = append(r.TopFeatures, f.Feature)
		if q.Has(f.Feature) {
			matched++
		}
	}
	r.Competitiveness = float64(matched) / TopFeatureCount * 100

	r.OptimalPrice = optimalPrice(segment)
	r.Factors.FeatureAlignment = r.Competitiveness / 100
	if band := r.OptimalPrice; band != nil && band.Mean != 0 {
		r.Factors.PriceOptimization = 1 - math.Abs(q.Price-band.Mean)/band.Mean
	}
	growth := make([]float64, len(segment))
	for i, sp := range segment {
		growth[i] = sp.ReviewGrowthRate
	}
	r.Factors.MarketGrowth = meanOrZero(growth)
	r.DemandScore = (AlignmentWeight*r.Factors.FeatureAlignment +
		PriceWeight*r.Factors.PriceOptimization +
		GrowthWeight*r.Factors.MarketGrowth) * 100

	r.Priorities = FeaturePerformance(products)
	sortByDesc(r.Priorities, func(f FeatureStat) *float64 { return f.AvgReviews })

	reviews, err := cat.Column(catalog.ColReviews)
	if err != nil {
		return nil, err
	}
	r.BelowMarket = r.PredictedDemand < meanOrZero(reviews)
	return r, nil
}

// segmentProducts returns the products priced between the catalog price
// quantiles bounding segment idx, inclusive.
func segmentProducts(products []catalog.Product, idx int) []catalog.Product {
	prices := make([]float64, len(products))
	for i, p := range products {
		prices[i] = p.Price
	}
	step := 1 / float64(len(SegmentLabels))
	lo := Quantile(prices, step*float64(idx))
	hi := Quantile(prices, step*float64(idx+1))

	var out []catalog.Product
	for _, p := range products {
		if p.Price >= lo && p.Price <= hi {
			out = append(out, p)
		}
	}
	return out
}

// optimalPrice returns the price band of the products rated at or above the
// OptimalRatingQuantile of segment, or nil for an empty segment.
func optimalPrice(segment []catalog.Product) *PriceBand {
	if len(segment) == 0 {
		return nil
	}
	ratings := make([]float64, len(segment))
	for i, p := range segment {
		ratings[i] = p.Rating
	}
	cut := Quantile(ratings, OptimalRatingQuantile)

	var prices []float64
	for _, p := range segment {
		if p.Rating >= cut {
			prices = append(prices, p.Price)
		}
	}
	if len(prices) == 0 {
		return nil
	}
	return &PriceBand{Mean: meanOrZero(prices), Min: floats.Min(prices), Max: floats.Max(prices)}
}
