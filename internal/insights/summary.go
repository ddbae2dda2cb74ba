package insights

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/marketlens/internal/catalog"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
)

// Price quantiles separating the budget, mid and premium parts of the market.
const (
	BudgetQuantile  = 0.33
	PremiumQuantile = 0.66
)

type PriceRange struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// FeatureCounts is the number of products carrying each indicator.
type FeatureCounts struct {
	Cotton      int `json:"Cotton"`
	Polyester   int `json:"Polyester"`
	RoundNeck   int `json:"Round_Neck"`
	PoloNeck    int `json:"Polo_Neck"`
	ShortSleeve int `json:"Short_Sleeve"`
	LongSleeve  int `json:"Long_Sleeve"`
}

type ReviewStats struct {
	AvgReviews float64 `json:"avg_reviews"`
	MaxReviews int     `json:"max_reviews"`
	AvgGrowth  float64 `json:"avg_growth"`
}

// SegmentMarkers are the prices at BudgetQuantile and PremiumQuantile.
type SegmentMarkers struct {
	Budget  float64 `json:"budget"`
	Premium float64 `json:"premium"`
}

// MarketSummary aggregates the whole catalog. The JSON form is what the
// market insights narrative receives.
type MarketSummary struct {
	AvgPrice        float64        `json:"avg_price"`
	AvgRating       float64        `json:"avg_rating"`
	PriceRange      PriceRange     `json:"price_range"`
	PopularFeatures FeatureCounts  `json:"popular_features"`
	ReviewStats     ReviewStats    `json:"review_stats"`
	TotalProducts   int            `json:"-"`
	AvgGrowth       float64        `json:"-"`
	Markers         SegmentMarkers `json:"-"`
	Features        []FeatureStat  `json:"-"`
}

// Summarize computes the market summary of cat.
func Summarize(cat *catalog.Catalog) (*MarketSummary, error) {
	start := time.Now()
	if cat == nil || cat.Len() == 0 {
		return nil, mlErrors.NewModelError("insights.Summarize", "catalog is empty", mlErrors.ErrEmptyData)
	}
	products := cat.Products()
	price := make([]float64, len(products))
	rating := make([]float64, len(products))
	reviews := make([]float64, len(products))
	growth := make([]float64, len(products))
	for i, p := range products {
		price[i] = p.Price
		rating[i] = p.Rating
		reviews[i] = float64(p.Reviews)
		growth[i] = p.ReviewGrowthRate
	}

	features := FeaturePerformance(products)
	count := func(name string) int {
		for _, f := range features {
			if f.Feature == name {
				return f.Count
			}
		}
		return 0
	}

	s := &MarketSummary{
		TotalProducts: len(products),
		AvgPrice:      stat.Mean(price, nil),
		AvgRating:     stat.Mean(rating, nil),
		AvgGrowth:     stat.Mean(growth, nil),
		PriceRange: PriceRange{
			Min:    floats.Min(price),
			Max:    floats.Max(price),
			Median: Quantile(price, 0.5),
		},
		PopularFeatures: FeatureCounts{
			Cotton:      count(catalog.ColCotton),
			Polyester:   count(catalog.ColPolyester),
			RoundNeck:   count(catalog.ColRoundNeck),
			PoloNeck:    count(catalog.ColPoloNeck),
			ShortSleeve: count(catalog.ColShortSleeve),
			LongSleeve:  count(catalog.ColLongSleeve),
		},
		ReviewStats: ReviewStats{
			AvgReviews: stat.Mean(reviews, nil),
			MaxReviews: int(floats.Max(reviews)),
			AvgGrowth:  stat.Mean(growth, nil),
		},
		Markers: SegmentMarkers{
			Budget:  Quantile(price, BudgetQuantile),
			Premium: Quantile(price, PremiumQuantile),
		},
		Features: features,
	}

	log.GetLoggerWithName("insights").Debug("Market summarized",
		log.OperationKey, log.OperationSummarize,
		log.SamplesKey, s.TotalProducts,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return s, nil
}
